package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/domain"
	apimw "github.com/hamed0406/keepalive/internal/httpapi/middleware"
	"github.com/hamed0406/keepalive/internal/metrics"
	"github.com/hamed0406/keepalive/internal/repo"
)

const maxRecent = 100

// TriggerFunc runs one tick on demand.
type TriggerFunc func(ctx context.Context) domain.TickReport

type Server struct {
	Logger   *zap.Logger
	Reports  repo.ReportStore
	Trigger  TriggerFunc
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only set it when every request arrives through a proxy you run.
	TrustProxy bool
}

func NewServer(l *zap.Logger, reports repo.ReportStore, trigger TriggerFunc, reg *prometheus.Registry, m *metrics.Metrics) *Server {
	return &Server{Logger: l, Reports: reports, Trigger: trigger, Registry: reg, Metrics: m}
}

// Router wires the status API. triggerRPM <= 0 disables rate limiting of
// POST /api/ticks.
func (s *Server) Router(keys apimw.Keys, triggerRPM, triggerBurst int) http.Handler {
	var onDrop func()
	if s.Metrics != nil {
		keys.OnReject = s.Metrics.AuthFailures.Inc
		onDrop = s.Metrics.RateLimitDropped.Inc
	}

	r := chi.NewRouter()
	if s.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
	}))
	if s.Metrics != nil {
		r.Use(s.Metrics.Middleware(routePattern))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/ticks", func(r chi.Router) {
		r.With(apimw.RequireAny(keys)).Get("/", s.handleRecent)
		r.With(apimw.RequireAny(keys)).Get("/latest", s.handleLatest)
		r.With(
			apimw.RequireAdmin(keys),
			apimw.RateLimit(triggerRPM, triggerBurst, onDrop),
		).Post("/", s.handleTrigger)
	})

	return r
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "other"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Reports.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("api_latest_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load report"})
		return
	}
	if rep == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no ticks yet"})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecent)
	}
	reps, err := s.Reports.Recent(r.Context(), limit)
	if err != nil {
		s.Logger.Warn("api_recent_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load reports"})
		return
	}
	if reps == nil {
		reps = []domain.TickReport{}
	}
	writeJSON(w, http.StatusOK, reps)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.Trigger == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "trigger disabled"})
		return
	}
	s.Logger.Info("api_tick_triggered", zap.String("remote", r.RemoteAddr))
	// a client hanging up must not cancel probes already in flight
	rep := s.Trigger(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, rep)
}
