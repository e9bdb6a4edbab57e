package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/keepalive/internal/domain"
)

func probeURL(t *testing.T, p *HTTPProber, url string, timeout time.Duration) domain.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Probe(ctx, domain.HTTPTarget(url))
}

func TestHTTPProber_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("want GET, got %s", r.Method)
		}
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	out := probeURL(t, NewHTTPProber(nil, false), s.URL, 2*time.Second)
	if out.Status != domain.StatusSuccess {
		t.Fatalf("want success, got %+v", out)
	}
	if out.HTTPStatus != 200 || !strings.HasPrefix(out.Detail, "200") {
		t.Fatalf("unexpected status/detail: %d %q", out.HTTPStatus, out.Detail)
	}
	if out.Err != nil {
		t.Fatalf("unexpected err: %v", out.Err)
	}
}

func TestHTTPProber_UnauthorizedIsDegraded(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer s.Close()

	out := probeURL(t, NewHTTPProber(nil, false), s.URL, 2*time.Second)
	if out.Status != domain.StatusDegraded {
		t.Fatalf("want degraded, got %+v", out)
	}
	if out.Err != nil {
		t.Fatalf("401 must not carry an error, got %v", out.Err)
	}
}

func TestHTTPProber_Status500(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := probeURL(t, NewHTTPProber(nil, false), s.URL, 2*time.Second)
	if out.Status != domain.StatusFailed {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.HTTPStatus != 500 || !strings.HasPrefix(out.Detail, "http_status: 500") {
		t.Fatalf("unexpected status/detail: %d %q", out.HTTPStatus, out.Detail)
	}
}

func TestHTTPProber_ForbiddenFails(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer s.Close()

	out := probeURL(t, NewHTTPProber(nil, false), s.URL, 2*time.Second)
	if out.Status != domain.StatusFailed || out.HTTPStatus != 403 {
		t.Fatalf("403 should fail, got %+v", out)
	}
}

func TestHTTPProber_TimeoutIsClassified(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer s.Close()
	defer close(release)

	out := probeURL(t, NewHTTPProber(nil, true), s.URL, 50*time.Millisecond)
	if out.Status != domain.StatusFailed {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.HTTPStatus != 0 {
		t.Fatalf("want status 0 on transport error, got %d", out.HTTPStatus)
	}
	if !strings.HasPrefix(out.Detail, "timeout") {
		t.Fatalf("want timeout detail, got %q", out.Detail)
	}
	if strings.Contains(out.Detail, "dns=") {
		t.Fatalf("timeouts should not trigger DNS diagnostics: %q", out.Detail)
	}
}

func TestHTTPProber_ConnectionRefusedAddsDNSClass(t *testing.T) {
	// grab a free port and close it so the dial is refused
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	p := NewHTTPProber(nil, true)
	p.Resolver = &fakeResolver{ips: []net.IP{net.ParseIP("127.0.0.1")}}

	out := probeURL(t, p, "http://"+addr+"/api/heartbeat", 2*time.Second)
	if out.Status != domain.StatusFailed {
		t.Fatalf("want failure, got %+v", out)
	}
	if !strings.HasPrefix(out.Detail, "connection_error") {
		t.Fatalf("want connection_error detail, got %q", out.Detail)
	}
	if !strings.HasSuffix(out.Detail, "dns="+DNSResolves) {
		t.Fatalf("want dns class suffix, got %q", out.Detail)
	}
}

// dialFailing returns a client whose every dial fails with err.
func dialFailing(err error) *http.Client {
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, err
		},
	}}
}

func TestHTTPProber_LookupFailureAddsDNSClass(t *testing.T) {
	nx := &net.DNSError{Err: "no such host", Name: "app.invalid", IsNotFound: true}
	p := NewHTTPProber(dialFailing(nx), true)
	p.Resolver = &fakeResolver{ipErr: nx, nsErr: nx}

	out := probeURL(t, p, "http://app.invalid/api/heartbeat", 2*time.Second)
	if out.Status != domain.StatusFailed {
		t.Fatalf("want failure, got %+v", out)
	}
	if !strings.HasPrefix(out.Detail, "dns_error") {
		t.Fatalf("want dns_error detail, got %q", out.Detail)
	}
	if !strings.HasSuffix(out.Detail, "dns="+DNSNXDomain) {
		t.Fatalf("want NXDOMAIN class, got %q", out.Detail)
	}
}

// hangingResolver blocks every lookup until its context ends.
type hangingResolver struct{}

func (hangingResolver) LookupIP(ctx context.Context, network, host string) ([]net.IP, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (hangingResolver) LookupCNAME(ctx context.Context, host string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (hangingResolver) LookupNS(ctx context.Context, name string) ([]*net.NS, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHTTPProber_DNSDiagnosticBoundedByDeadline(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	p := NewHTTPProber(dialFailing(refused), true)
	p.Resolver = hangingResolver{}

	const timeout = 100 * time.Millisecond
	start := time.Now()
	out := probeURL(t, p, "http://app.example.com/api/heartbeat", timeout)
	elapsed := time.Since(start)

	if !strings.HasPrefix(out.Detail, "connection_error") {
		t.Fatalf("want connection_error detail, got %q", out.Detail)
	}
	if !strings.HasSuffix(out.Detail, "dns="+DNSServfail) {
		t.Fatalf("want lookup to be cut short, got %q", out.Detail)
	}
	if limit := timeout + DNSOverrun + 500*time.Millisecond; elapsed > limit {
		t.Fatalf("diagnostic ran %s, want under %s", elapsed, limit)
	}
}

func TestHTTPProber_InvalidURL(t *testing.T) {
	out := probeURL(t, NewHTTPProber(nil, false), "http://bad host/", time.Second)
	if out.Status != domain.StatusFailed || !strings.HasPrefix(out.Detail, "invalid_request") {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestSharedClient_IsSingleton(t *testing.T) {
	if SharedClient() != SharedClient() {
		t.Fatalf("SharedClient should return the same instance")
	}
	if NewHTTPProber(nil, false).Client != SharedClient() {
		t.Fatalf("prober should default to the shared client")
	}
}
