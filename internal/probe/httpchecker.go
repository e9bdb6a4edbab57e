package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hamed0406/keepalive/internal/domain"
)

// bodyDrainLimit caps how much of a heartbeat body is read so the
// connection can go back to the pool.
const bodyDrainLimit = 64 << 10

// HTTPProber issues a GET against a heartbeat URL. 2xx is a success, 401
// proves the app is up even though it wants credentials, anything else
// fails.
type HTTPProber struct {
	Client *http.Client
	// DNS, when set, explains connection and lookup failures with a DNS class.
	DNS      bool
	Resolver Resolver
}

func NewHTTPProber(client *http.Client, dns bool) *HTTPProber {
	if client == nil {
		client = SharedClient()
	}
	return &HTTPProber{Client: client, DNS: dns}
}

func (h *HTTPProber) Probe(ctx context.Context, t domain.Target) domain.Outcome {
	out := domain.Outcome{Target: t, Status: domain.StatusFailed}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		out.Detail = "invalid_request: " + err.Error()
		out.Err = err
		return out
	}
	req.Header.Set("User-Agent", "keepalive/1")

	resp, err := h.Client.Do(req)
	out.Latency = time.Since(start)
	if err != nil {
		kind := classifyError(ctx, err)
		out.Detail = kind + ": " + err.Error()
		out.Err = err
		if h.DNS && (kind == "connection_error" || kind == "dns_error") {
			if dctx, cancel, ok := dnsContext(ctx); ok {
				dns := CheckDNS(dctx, h.Resolver, hostOf(t.URL))
				cancel()
				out.Detail += " dns=" + dns.Class
			}
		}
		return out
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, bodyDrainLimit))

	out.HTTPStatus = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		out.Status = domain.StatusSuccess
		out.Detail = resp.Status
	case resp.StatusCode == http.StatusUnauthorized:
		out.Status = domain.StatusDegraded
		out.Detail = resp.Status + ": responding, authentication required"
	default:
		out.Detail = "http_status: " + resp.Status
		out.Err = fmt.Errorf("heartbeat %s: unexpected status %s", t.URL, resp.Status)
	}
	return out
}

// dnsContext bounds the diagnostic lookup to the probe's remaining time plus
// DNSOverrun. It reports false when that window has already closed.
func dnsContext(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	budget := dnsLookupBudget
	if deadline, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(deadline)+DNSOverrun)
	}
	if budget <= 0 {
		return nil, nil, false
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
	return dctx, cancel, true
}

// classifyError names the transport failure: timeout, canceled,
// dns_error or connection_error.
func classifyError(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return "dns_error"
	}
	return "connection_error"
}
