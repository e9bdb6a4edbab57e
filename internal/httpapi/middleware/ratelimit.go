package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterTTL        = 10 * time.Minute
	limiterSweepAbove = 10_000
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out one token bucket per client IP.
type Limiter struct {
	mu    sync.Mutex
	perIP map[string]*clientLimiter
	rps   rate.Limit
	burst int
}

func NewLimiter(reqPerMin, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		perIP: make(map[string]*clientLimiter),
		rps:   rate.Limit(float64(reqPerMin) / 60.0),
		burst: burst,
	}
}

func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	item, ok := l.perIP[ip]
	if !ok {
		item = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.perIP[ip] = item
	}
	item.lastSeen = now
	if len(l.perIP) > limiterSweepAbove {
		l.sweepLocked(now.Add(-limiterTTL))
	}
	return item.limiter.Allow()
}

func (l *Limiter) sweepLocked(threshold time.Time) {
	for ip, entry := range l.perIP {
		if entry.lastSeen.Before(threshold) {
			delete(l.perIP, ip)
		}
	}
}

// RateLimit returns a middleware that rate-limits by remote IP.
// Example: RateLimit(6, 2, nil) => 6 req/min with burst 2.
// onDrop, if set, is called for every rejected request.
func RateLimit(reqPerMin int, burst int, onDrop func()) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		// disabled
		return func(next http.Handler) http.Handler { return next }
	}
	l := NewLimiter(reqPerMin, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				if onDrop != nil {
					onDrop()
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keys on the connection's address only. Forwarding headers are
// client supplied; behind a trusted proxy chi's RealIP rewrites RemoteAddr
// before this runs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
