package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hamed0406/keepalive/internal/domain"
)

// Tick results used as the "result" label.
const (
	TickActive  = "active"
	TickSkipped = "skipped"
	TickInvalid = "invalid_window"
	TickPanic   = "panic"
)

// Metrics bundles prometheus collectors used by the agent.
type Metrics struct {
	TicksTotal        *prometheus.CounterVec
	TickDurationSec   prometheus.Histogram
	ProbesTotal       *prometheus.CounterVec
	ProbeDurationSec  *prometheus.HistogramVec
	LastTickTimestamp prometheus.Gauge
	RequestsTotal     *prometheus.CounterVec
	RateLimitDropped  prometheus.Counter
	AuthFailures      prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keepalive_ticks_total",
			Help: "Total number of keep-alive ticks by result.",
		}, []string{"result"}),
		TickDurationSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "keepalive_tick_duration_seconds",
			Help:    "Wall time of active ticks in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		}),
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keepalive_probes_total",
			Help: "Total number of probes by target kind and status.",
		}, []string{"kind", "status"}),
		ProbeDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keepalive_probe_duration_seconds",
			Help:    "Probe latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		LastTickTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keepalive_last_tick_timestamp_seconds",
			Help: "Unix time of the last tick that ran probes.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keepalive_api_requests_total",
			Help: "Total number of status API requests.",
		}, []string{"route", "method", "status"}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keepalive_api_ratelimit_dropped_total",
			Help: "Total number of trigger requests dropped by the rate limiter.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keepalive_api_auth_failures_total",
			Help: "Total number of rejected API keys.",
		}),
	}

	registry.MustRegister(
		m.TicksTotal,
		m.TickDurationSec,
		m.ProbesTotal,
		m.ProbeDurationSec,
		m.LastTickTimestamp,
		m.RequestsTotal,
		m.RateLimitDropped,
		m.AuthFailures,
	)

	return m
}

// ObserveOutcome records one probe. Safe on a nil receiver.
func (m *Metrics) ObserveOutcome(o domain.Outcome) {
	if m == nil {
		return
	}
	kind := string(o.Target.Kind)
	m.ProbesTotal.WithLabelValues(kind, string(o.Status)).Inc()
	m.ProbeDurationSec.WithLabelValues(kind).Observe(o.Latency.Seconds())
}

// ObserveTick records one tick. Safe on a nil receiver.
func (m *Metrics) ObserveTick(result string, r domain.TickReport) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(result).Inc()
	if result == TickActive {
		m.TickDurationSec.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
		m.LastTickTimestamp.Set(float64(r.FinishedAt.Unix()))
	}
}

// Middleware counts API requests by route pattern.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			m.RequestsTotal.WithLabelValues(route(r), r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
