package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hamed0406/keepalive/internal/domain"
)

// HeartbeatWriter writes one heartbeat row using the given connection
// string and reports rows affected. The connection is owned by the call.
type HeartbeatWriter interface {
	WriteHeartbeat(ctx context.Context, connString string, hb domain.Heartbeat) (int64, error)
}

// DatabaseProber keeps a database awake by writing a small log row.
type DatabaseProber struct {
	Writer  HeartbeatWriter
	Actor   string
	Message string
	Now     func() time.Time
}

func NewDatabaseProber(w HeartbeatWriter, actor, message string) *DatabaseProber {
	return &DatabaseProber{Writer: w, Actor: actor, Message: message, Now: time.Now}
}

func (d *DatabaseProber) Probe(ctx context.Context, t domain.Target) domain.Outcome {
	out := domain.Outcome{Target: t, Status: domain.StatusFailed}
	if t.ConnectionString == "" {
		out.Err = errors.New("no connection string")
		out.Detail = "config_error: " + out.Err.Error()
		return out
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	start := time.Now()
	rows, err := d.Writer.WriteHeartbeat(ctx, t.ConnectionString, domain.Heartbeat{
		Actor:   d.Actor,
		Message: d.Message,
		At:      now().UTC(),
	})
	out.Latency = time.Since(start)
	if err != nil {
		kind := "database_error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = "timeout"
		}
		out.Detail = kind + ": " + err.Error()
		out.Err = err
		return out
	}
	out.Status = domain.StatusSuccess
	out.Rows = rows
	out.Detail = fmt.Sprintf("%d row(s) affected", rows)
	return out
}
