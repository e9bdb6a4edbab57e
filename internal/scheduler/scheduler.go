package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/config"
	"github.com/hamed0406/keepalive/internal/domain"
)

// Ticker is anything that can run a keep-alive tick.
type Ticker interface {
	Tick(ctx context.Context, opts TickOptions) domain.TickReport
}

// Scheduler fires ticks on a cron schedule (seconds field first). The
// schedule is evaluated in UTC; the business window does the local-time
// gating.
type Scheduler struct {
	log          *zap.Logger
	cron         *cron.Cron
	ticker       Ticker
	spec         string
	runOnStartup bool
}

func NewScheduler(log *zap.Logger, spec string, t Ticker, runOnStartup, skipOverlap bool) (*Scheduler, error) {
	cl := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	wrappers := []cron.JobWrapper{cron.Recover(cl)}
	if skipOverlap {
		wrappers = append(wrappers, cron.SkipIfStillRunning(cl))
	}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(wrappers...),
	)
	s := &Scheduler{log: log, cron: c, ticker: t, spec: spec, runOnStartup: runOnStartup}
	if _, err := config.CronParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run schedules ticks until ctx is cancelled, then waits for a running
// tick to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() {
		s.ticker.Tick(ctx, TickOptions{})
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.log.Info("scheduler_started",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.cron.Entry(id).Next),
		zap.Bool("run_on_startup", s.runOnStartup),
	)

	var startup sync.WaitGroup
	if s.runOnStartup {
		// the wrapped job goes through the same recover/skip-overlap chain
		job := s.cron.Entry(id).WrappedJob
		startup.Add(1)
		go func() {
			defer startup.Done()
			job.Run()
		}()
	}

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	startup.Wait()
	s.log.Info("scheduler_stopped")
	return nil
}
