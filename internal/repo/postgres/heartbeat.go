package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/domain"
)

const closeTimeout = 2 * time.Second

// Writer inserts heartbeat rows. Each call opens its own connection and
// closes it before returning, so an idle database is never held open
// between ticks.
type Writer struct {
	table string // already quoted
	log   *zap.Logger
}

// NewWriter returns a Writer for table, which may be schema-qualified
// ("ops.keepalive_log").
func NewWriter(table string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{table: QuoteTable(table), log: log}
}

// QuoteTable turns "schema.table" into a safely quoted identifier.
func QuoteTable(table string) string {
	return pgx.Identifier(strings.Split(strings.TrimSpace(table), ".")).Sanitize()
}

func (w *Writer) insertSQL() string {
	return `INSERT INTO ` + w.table + ` (actor, message, created_at) VALUES ($1, $2, $3)`
}

func (w *Writer) WriteHeartbeat(ctx context.Context, connString string, hb domain.Heartbeat) (int64, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		// the probe context may already be spent
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := conn.Close(cctx); err != nil {
			w.log.Debug("heartbeat_conn_close_failed", zap.Error(err))
		}
	}()

	tag, err := conn.Exec(ctx, w.insertSQL(), hb.Actor, hb.Message, hb.At)
	if err != nil {
		return 0, fmt.Errorf("insert heartbeat: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HeartbeatTableSQL is the DDL for the heartbeat table.
func HeartbeatTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + QuoteTable(table) + ` (
  id         BIGSERIAL PRIMARY KEY,
  actor      TEXT NOT NULL,
  message    TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
}

// EnsureHeartbeatTable creates the heartbeat table if it is missing.
func EnsureHeartbeatTable(ctx context.Context, connString, table string) error {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))
	if _, err := conn.Exec(ctx, HeartbeatTableSQL(table)); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}
