package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/config"
	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/logging"
	"github.com/hamed0406/keepalive/internal/metrics"
	"github.com/hamed0406/keepalive/internal/probe"
	"github.com/hamed0406/keepalive/internal/repo"
	"github.com/hamed0406/keepalive/internal/repo/memory"
	pg "github.com/hamed0406/keepalive/internal/repo/postgres"
	"github.com/hamed0406/keepalive/internal/scheduler"
)

// app is the wired agent shared by the run and once commands.
type app struct {
	src      *config.Source
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	reports  repo.ReportStore
	agent    *scheduler.Agent
	closers  []func()
}

// loadConfig reads and validates everything a tick needs before any
// scheduling starts; a malformed window is fatal here.
func loadConfig() (*config.Source, config.Config, error) {
	src, err := config.Load()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg := src.Process()
	if err := cfg.Validate(); err != nil {
		return nil, config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	ws := src.Window()
	if err := ws.Validate(); err != nil {
		return nil, config.Config{}, fmt.Errorf("invalid business window: %w", err)
	}
	if _, err := ws.Parse(); err != nil {
		return nil, config.Config{}, fmt.Errorf("invalid business window: %w", err)
	}
	return src, cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	src, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Stdout: cfg.LogStdout})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	a := &app{src: src, cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if cfg.ReportDSN != "" {
		store, err := pg.New(ctx, cfg.ReportDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("report store: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("report store: %w", err)
		}
		a.reports = store
		a.closers = append(a.closers, store.Close)
		logger.Info("report_store", zap.String("kind", "postgres"))
	} else {
		a.reports = memory.New()
		logger.Info("report_store", zap.String("kind", "memory"))
	}

	router := probe.Router{
		domain.KindHTTP:     probe.NewHTTPProber(nil, cfg.DNSDiagnostics),
		domain.KindDatabase: probe.NewDatabaseProber(pg.NewWriter(cfg.Table, logger), cfg.Actor, cfg.Message),
	}
	d := scheduler.NewDispatcher(logger, router, cfg.HTTPTimeout, cfg.DBTimeout, a.metrics)
	a.agent = scheduler.NewAgent(logger, src, d, a.reports, a.metrics, cfg.TickDeadline)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
