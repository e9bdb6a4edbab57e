package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/httpapi"
	apimw "github.com/hamed0406/keepalive/internal/httpapi/middleware"
	"github.com/hamed0406/keepalive/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler and the status server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.logger

		sched, err := scheduler.NewScheduler(log, a.cfg.Schedule, a.agent, a.cfg.RunOnStartup, a.cfg.SkipOverlap)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}

		var ln *httpapi.Listener
		if a.cfg.Addr != "" {
			trigger := func(ctx context.Context) domain.TickReport {
				return a.agent.Tick(ctx, scheduler.TickOptions{})
			}
			api := httpapi.NewServer(log, a.reports, trigger, a.registry, a.metrics)
			api.TrustProxy = a.cfg.TrustProxy
			keys := apimw.Keys{Public: a.cfg.PublicAPIKeys, Admin: a.cfg.AdminAPIKeys}
			ln = httpapi.NewListener(a.cfg.Addr, api.Router(keys, a.cfg.TriggerRPM, a.cfg.TriggerBurst), a.cfg.TickDeadline)

			go func() {
				log.Info("api_listen", zap.String("addr", a.cfg.Addr))
				if err := ln.Start(); err != nil {
					log.Error("api_listen_failed", zap.Error(err))
					stop()
				}
			}()
		} else {
			log.Info("api_disabled")
		}

		err = sched.Run(ctx)
		if ln != nil {
			if serr := ln.Shutdown(context.Background()); serr != nil {
				log.Warn("api_shutdown_error", zap.Error(serr))
			}
		}
		return err
	},
}
