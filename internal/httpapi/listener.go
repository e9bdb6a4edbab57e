package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Listener wraps http.Server with graceful shutdown.
type Listener struct {
	server *http.Server
}

// NewListener builds the status server. WriteTimeout leaves room for a
// triggered tick to finish.
func NewListener(addr string, handler http.Handler, tickBudget time.Duration) *Listener {
	return &Listener{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      tickBudget + 15*time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start blocks serving requests. It returns nil after Shutdown.
func (l *Listener) Start() error {
	err := l.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server with a 5-second timeout.
func (l *Listener) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return l.server.Shutdown(shutdownCtx)
}
