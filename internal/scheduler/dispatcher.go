package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/metrics"
	"github.com/hamed0406/keepalive/internal/probe"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultDBTimeout   = 15 * time.Second
	// DefaultGrace is how long past its own timeout a probe may take to
	// return before the dispatcher stops waiting for it. It must cover
	// probe.DNSOverrun so a connection failure keeps its diagnosis.
	DefaultGrace = probe.DNSOverrun + time.Second
)

// Dispatcher runs one probe per target concurrently. A probe that fails,
// times out or panics never affects its siblings.
type Dispatcher struct {
	Logger   *zap.Logger
	Prober   probe.Prober
	Timeouts map[domain.TargetKind]time.Duration
	Grace    time.Duration
	Metrics  *metrics.Metrics
}

func NewDispatcher(
	logger *zap.Logger,
	prober probe.Prober,
	httpTimeout time.Duration,
	dbTimeout time.Duration,
	m *metrics.Metrics,
) *Dispatcher {
	if httpTimeout <= 0 {
		httpTimeout = DefaultHTTPTimeout
	}
	if dbTimeout <= 0 {
		dbTimeout = DefaultDBTimeout
	}
	return &Dispatcher{
		Logger: logger,
		Prober: prober,
		Timeouts: map[domain.TargetKind]time.Duration{
			domain.KindHTTP:     httpTimeout,
			domain.KindDatabase: dbTimeout,
		},
		Grace:   DefaultGrace,
		Metrics: m,
	}
}

// RunTick starts every probe at once and returns when all of them have
// reported. Outcomes are in target order.
func (d *Dispatcher) RunTick(ctx context.Context, targets []domain.Target) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(targets))
	var wg sync.WaitGroup

	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.runOne(ctx, t)
			d.report(outcomes[i])
		}()
	}

	wg.Wait()
	return outcomes
}

func (d *Dispatcher) timeoutFor(kind domain.TargetKind) time.Duration {
	if t, ok := d.Timeouts[kind]; ok && t > 0 {
		return t
	}
	return DefaultHTTPTimeout
}

func (d *Dispatcher) runOne(ctx context.Context, t domain.Target) domain.Outcome {
	timeout := d.timeoutFor(t.Kind)
	d.Logger.Info("probe_attempt",
		zap.String("kind", string(t.Kind)),
		zap.String("target", t.Label()),
		zap.Duration("timeout", timeout),
	)

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffered so a prober that returns after the hard cap does not leak
	done := make(chan domain.Outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("probe panic: %v", rec)
				done <- domain.Outcome{
					Target:  t,
					Status:  domain.StatusFailed,
					Detail:  "panic: " + fmt.Sprint(rec),
					Latency: time.Since(start),
					Err:     err,
				}
			}
		}()
		done <- d.Prober.Probe(cctx, t)
	}()

	hardCap := time.NewTimer(timeout + d.Grace)
	defer hardCap.Stop()

	select {
	case out := <-done:
		out.Target = t
		return out
	case <-hardCap.C:
		err := fmt.Errorf("probe did not return within %s", timeout+d.Grace)
		return domain.Outcome{
			Target:  t,
			Status:  domain.StatusFailed,
			Detail:  "timeout: " + err.Error(),
			Latency: time.Since(start),
			Err:     err,
		}
	}
}

func (d *Dispatcher) report(o domain.Outcome) {
	d.Metrics.ObserveOutcome(o)

	fields := []zap.Field{
		zap.String("kind", string(o.Target.Kind)),
		zap.String("target", o.Target.Label()),
		zap.String("detail", o.Detail),
		zap.Float64("latency_ms", float64(o.Latency.Microseconds())/1000),
	}
	if o.HTTPStatus != 0 {
		fields = append(fields, zap.Int("http_status", o.HTTPStatus))
	}
	if o.Target.Kind == domain.KindDatabase && o.Status == domain.StatusSuccess {
		fields = append(fields, zap.Int64("rows_affected", o.Rows))
	}

	switch o.Status {
	case domain.StatusSuccess:
		d.Logger.Info("probe_succeeded", fields...)
	case domain.StatusDegraded:
		d.Logger.Warn("probe_degraded", fields...)
	default:
		d.Logger.Error("probe_failed", append(fields, zap.Error(o.Err))...)
	}
}
