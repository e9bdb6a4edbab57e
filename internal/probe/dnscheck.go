package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classes attached to failed heartbeat outcomes.
const (
	DNSResolves     = "RESOLVES"
	DNSNXDomain     = "NXDOMAIN"
	DNSNoARecord    = "NO_A_RECORD"
	DNSServfail     = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName  = "INVALID_NAME"
	dnsLookupBudget = 3 * time.Second
)

// DNSOverrun is how long past the probe deadline a DNS diagnostic may run.
// Callers that stop waiting for a probe must allow at least this much.
const DNSOverrun = time.Second

type DNSStatus struct {
	Host          string
	Class         string
	IPs           []net.IP
	CNAME         string
	Nameservers   []string
	ResolverError string
}

// Resolver is the subset of *net.Resolver used for diagnostics.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// CheckDNS classifies how host resolves. It is only used to explain why a
// heartbeat could not connect, so it has its own short budget.
func CheckDNS(ctx context.Context, r Resolver, host string) DNSStatus {
	s := DNSStatus{Host: strings.TrimSpace(host)}
	if s.Host == "" || strings.Contains(s.Host, "://") {
		s.Class = DNSInvalidName
		return s
	}
	if r == nil {
		r = net.DefaultResolver
	}
	ctx, cancel := context.WithTimeout(ctx, dnsLookupBudget)
	defer cancel()

	hasIP, notFound := false, false
	if ips, err := r.LookupIP(ctx, "ip", s.Host); err == nil && len(ips) > 0 {
		hasIP = true
		s.IPs = ips
	} else if err != nil {
		s.ResolverError = err.Error()
		var de *net.DNSError
		notFound = errors.As(err, &de) && de.IsNotFound
	}

	if cname, err := r.LookupCNAME(ctx, s.Host); err == nil && !strings.EqualFold(cname, s.Host+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}
	if ns, err := r.LookupNS(ctx, s.Host); err == nil {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
	}

	switch {
	case hasIP:
		s.Class = DNSResolves
	case len(s.Nameservers) > 0:
		s.Class = DNSNoARecord
	case notFound:
		s.Class = DNSNXDomain
	default:
		s.Class = DNSServfail
	}
	return s
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
