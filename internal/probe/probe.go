package probe

import (
	"context"
	"fmt"

	"github.com/hamed0406/keepalive/internal/domain"
)

// Prober performs one keep-alive operation against a target. Implementations
// report every failure through the returned Outcome and never panic on
// ordinary errors.
type Prober interface {
	Probe(ctx context.Context, t domain.Target) domain.Outcome
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, t domain.Target) domain.Outcome

func (f ProberFunc) Probe(ctx context.Context, t domain.Target) domain.Outcome { return f(ctx, t) }

// Router dispatches each target to the prober registered for its kind.
type Router map[domain.TargetKind]Prober

func (r Router) Probe(ctx context.Context, t domain.Target) domain.Outcome {
	p, ok := r[t.Kind]
	if !ok || p == nil {
		return domain.Outcome{
			Target: t,
			Status: domain.StatusFailed,
			Detail: fmt.Sprintf("no prober for kind %q", t.Kind),
		}
	}
	return p.Probe(ctx, t)
}
