//go:build integration

package postgres

// go test -tags=integration ./internal/repo/postgres -count=1

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/domain"
)

func TestWriter_InsertsOneRow(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	table := fmt.Sprintf("keepalive_log_test_%d", time.Now().UnixNano())
	if err := EnsureHeartbeatTable(ctx, dsn, table); err != nil {
		t.Fatalf("ensure table: %v", err)
	}

	w := NewWriter(table, zap.NewNop())
	rows, err := w.WriteHeartbeat(ctx, dsn, domain.Heartbeat{
		Actor: "ChronJob", Message: "Keeping Alive", At: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}
}

func TestStore_SaveLatestRecent(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx := context.Background()

	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	id := fmt.Sprintf("it-%d", time.Now().UnixNano())
	rep := domain.TickReport{
		ID:        id,
		StartedAt: time.Now().Add(time.Hour).UTC(), // newest row
		Active:    true,
		Outcomes: []domain.Outcome{{
			Target: domain.DatabaseTarget("primary", "postgres://secret"),
			Status: domain.StatusSuccess,
			Detail: "1 row(s) affected",
			Rows:   1,
		}},
	}
	if err := store.Save(ctx, rep); err != nil {
		t.Fatalf("save: %v", err)
	}

	latest, err := store.Latest(ctx)
	if err != nil || latest == nil {
		t.Fatalf("latest: %+v %v", latest, err)
	}
	if latest.ID != id {
		t.Fatalf("latest id=%s want %s", latest.ID, id)
	}
	if latest.Outcomes[0].Target.ConnectionString != "" {
		t.Fatalf("connection string must not be persisted")
	}

	recent, err := store.Recent(ctx, 5)
	if err != nil || len(recent) == 0 {
		t.Fatalf("recent: %d %v", len(recent), err)
	}
}
