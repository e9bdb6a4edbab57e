package probe

import (
	"net/http"
	"sync"
	"time"
)

var (
	sharedOnce   sync.Once
	sharedClient *http.Client
)

// SharedClient returns the process-wide HTTP client used for heartbeats.
// It is created on first use and reused across ticks so connections stay
// pooled. Deadlines come from the request context, not the client.
func SharedClient() *http.Client {
	sharedOnce.Do(func() {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxIdleConnsPerHost = 4
		tr.IdleConnTimeout = 90 * time.Second
		sharedClient = &http.Client{Transport: tr}
	})
	return sharedClient
}
