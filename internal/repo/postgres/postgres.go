package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/repo"
)

var _ repo.ReportStore = (*Store)(nil)

const reportsSchema = `
CREATE TABLE IF NOT EXISTS keepalive_ticks (
  id          TEXT PRIMARY KEY,
  started_at  TIMESTAMPTZ NOT NULL,
  active      BOOLEAN NOT NULL,
  failed      INTEGER NOT NULL,
  report      JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_keepalive_ticks_started ON keepalive_ticks (started_at DESC);
`

// Store persists tick reports so the status API survives restarts.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the reports table.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, reportsSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, r domain.TickReport) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO keepalive_ticks (id, started_at, active, failed, report)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.StartedAt, r.Active, r.Counts()[domain.StatusFailed], body,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	s.log.Debug("tick_report_saved", zap.String("tick_id", r.ID))
	return nil
}

func (s *Store) Latest(ctx context.Context) (*domain.TickReport, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM keepalive_ticks ORDER BY started_at DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	var r domain.TickReport
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.TickReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT report FROM keepalive_ticks ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent reports: %w", err)
	}
	defer rows.Close()

	var out []domain.TickReport
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var r domain.TickReport
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
