package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/config"
	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/metrics"
	"github.com/hamed0406/keepalive/internal/repo"
	"github.com/hamed0406/keepalive/internal/window"
)

// Settings is what a tick reads. Implementations must return current values
// on every call; *config.Source does.
type Settings interface {
	Window() config.WindowSettings
	HeartbeatURLs() (string, []string)
	Databases() (string, []string)
	ConnectionString(id string) (string, string, bool)
}

// TickOptions changes how a single tick behaves.
type TickOptions struct {
	// Force runs probes even outside the business window.
	Force bool
}

// Agent runs keep-alive ticks: window gate, target resolution, dispatch and
// a summary. Tick never returns an error and never panics.
type Agent struct {
	Logger     *zap.Logger
	Settings   Settings
	Dispatcher *Dispatcher
	Reports    repo.ReportStore // optional
	Metrics    *metrics.Metrics // optional
	Deadline   time.Duration    // soft; only logged when exceeded
	Now        func() time.Time
}

func NewAgent(logger *zap.Logger, s Settings, d *Dispatcher, reports repo.ReportStore, m *metrics.Metrics, deadline time.Duration) *Agent {
	return &Agent{
		Logger:     logger,
		Settings:   s,
		Dispatcher: d,
		Reports:    reports,
		Metrics:    m,
		Deadline:   deadline,
		Now:        time.Now,
	}
}

func (a *Agent) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Agent) Tick(ctx context.Context, opts TickOptions) (rep domain.TickReport) {
	rep = domain.TickReport{ID: uuid.NewString(), StartedAt: a.now().UTC()}
	log := a.Logger.With(zap.String("tick_id", rep.ID))
	result := metrics.TickSkipped

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("tick_panic", zap.Any("panic", rec), zap.Stack("stack"))
			rep.SkipReason = fmt.Sprintf("panic: %v", rec)
			result = metrics.TickPanic
		}
		rep.FinishedAt = a.now().UTC()
		a.Metrics.ObserveTick(result, rep)
		a.save(ctx, log, rep)
	}()

	log.Info("tick_started", zap.Time("utc", rep.StartedAt), zap.Bool("force", opts.Force))

	ws := a.Settings.Window()
	wcfg, err := ws.Parse()
	if err != nil {
		log.Error("window_config_invalid",
			zap.String("time_zone", ws.TimeZone),
			zap.String("work_days", ws.WorkDays),
			zap.String("work_start", ws.Start),
			zap.String("work_end", ws.End),
			zap.Error(err),
		)
		rep.SkipReason = "invalid window: " + err.Error()
		result = metrics.TickInvalid
		return rep
	}

	dec := window.Evaluate(rep.StartedAt, wcfg)
	rep.LocalTime = dec.Local
	rep.TimeZone = dec.Location.String()
	if dec.FellBack {
		log.Warn("timezone_fallback",
			zap.String("configured", ws.TimeZone),
			zap.String("using", dec.Location.String()),
		)
	}

	if !dec.Active && !opts.Force {
		log.Info("tick_skipped_outside_window",
			zap.String("local_now", dec.Local.Format("2006-01-02 15:04:05 Mon")),
			zap.String("time_zone", dec.Location.String()),
			zap.String("work_start", window.FormatTimeOfDay(wcfg.Start)),
			zap.String("work_end", window.FormatTimeOfDay(wcfg.End)),
			zap.String("work_days", wcfg.WorkDays),
			zap.Bool("day_allowed", dec.DayAllowed),
		)
		rep.SkipReason = "outside business window"
		return rep
	}
	if !dec.Active {
		log.Info("tick_forced_outside_window", zap.String("local_now", dec.Local.Format(time.RFC3339)))
	}

	rep.Active = true
	result = metrics.TickActive

	targets := a.resolve(log, &rep)
	if len(targets) == 0 {
		log.Warn("no_targets_configured", zap.Strings("skipped", rep.Skipped))
		return rep
	}

	rep.Outcomes = a.dispatch(ctx, log, targets)
	a.summarize(log, rep)
	return rep
}

// resolve builds the tick's targets from the current settings. HTTP targets
// come first, then databases, each in configured order.
func (a *Agent) resolve(log *zap.Logger, rep *domain.TickReport) []domain.Target {
	var targets []domain.Target

	raw, _ := a.Settings.HeartbeatURLs()
	log.Info("config_read", zap.String("key", "HEARTBEAT_URL"), zap.String("raw", raw))
	if strings.TrimSpace(raw) != "" {
		for i, part := range strings.Split(raw, ",") {
			u := strings.TrimSpace(part)
			if u == "" {
				log.Warn("heartbeat_url_blank", zap.Int("index", i))
				continue
			}
			log.Info("heartbeat_url_configured",
				zap.Int("index", i),
				zap.Int("length", len(u)),
				zap.String("url", u),
			)
			targets = append(targets, domain.HTTPTarget(u))
		}
	}

	rawDB, ids := a.Settings.Databases()
	log.Info("config_read", zap.String("key", "KEEPALIVE_DATABASES"), zap.String("raw", rawDB))
	for _, id := range ids {
		conn, key, ok := a.Settings.ConnectionString(id)
		if !ok {
			log.Warn("database_connection_string_missing",
				zap.String("database", id),
				zap.String("expected_key", "ConnectionStrings__"+id),
			)
			rep.Skipped = append(rep.Skipped, domain.DatabaseTarget(id, "").Label())
			continue
		}
		log.Debug("database_connection_string_resolved",
			zap.String("database", id),
			zap.String("source_key", key),
		)
		targets = append(targets, domain.DatabaseTarget(id, conn))
	}
	return targets
}

// dispatch waits for every probe. The deadline only produces a log line;
// each probe is already bounded by its own timeout.
func (a *Agent) dispatch(ctx context.Context, log *zap.Logger, targets []domain.Target) []domain.Outcome {
	done := make(chan []domain.Outcome, 1)
	go func() { done <- a.Dispatcher.RunTick(ctx, targets) }()

	if a.Deadline <= 0 {
		return <-done
	}
	deadline := time.NewTimer(a.Deadline)
	defer deadline.Stop()

	select {
	case out := <-done:
		return out
	case <-deadline.C:
		log.Warn("tick_deadline_exceeded",
			zap.Duration("deadline", a.Deadline),
			zap.Int("targets", len(targets)),
		)
		return <-done
	}
}

func (a *Agent) summarize(log *zap.Logger, rep domain.TickReport) {
	var errs error
	for _, o := range rep.Outcomes {
		if o.Failed() {
			err := o.Err
			if err == nil {
				err = errors.New(o.Detail)
			}
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", o.Target.Label(), err))
		}
	}
	counts := rep.Counts()
	log.Info("tick_completed",
		zap.Int("targets", len(rep.Outcomes)),
		zap.Int("succeeded", counts[domain.StatusSuccess]),
		zap.Int("degraded", counts[domain.StatusDegraded]),
		zap.Int("failed", counts[domain.StatusFailed]),
		zap.Strings("skipped", rep.Skipped),
		zap.Duration("elapsed", a.now().UTC().Sub(rep.StartedAt)),
		zap.Error(errs),
	)
}

func (a *Agent) save(ctx context.Context, log *zap.Logger, rep domain.TickReport) {
	if a.Reports == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.Reports.Save(sctx, rep); err != nil {
		log.Warn("tick_report_save_failed", zap.Error(err))
	}
}
