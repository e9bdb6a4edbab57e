package repo

import (
	"context"

	"github.com/hamed0406/keepalive/internal/domain"
)

// ReportStore keeps tick reports for the status API. Swap in any adapter.
type ReportStore interface {
	Save(ctx context.Context, r domain.TickReport) error
	// Latest returns nil, nil before the first tick.
	Latest(ctx context.Context) (*domain.TickReport, error)
	// Recent returns up to limit reports, newest first.
	Recent(ctx context.Context, limit int) ([]domain.TickReport, error)
}
