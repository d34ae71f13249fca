// Package service writes scan runs to ClickHouse, or only to the log when
// ClickHouse is not configured
package service

import (
	"context"

	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	"newsroom/internal/platform/store"
	"newsroom/internal/services/runlog/domain"
)

const table = "scan_runs"

// Svc implements domain.LedgerPort
type Svc struct {
	ch  store.Clickhouse
	log logger.Logger
}

// New returns a ledger on ch; a nil ch logs entries instead
func New(ch store.Clickhouse) *Svc {
	return &Svc{ch: ch, log: *logger.Named("runlog")}
}

// Append records e. The log line is always written
func (s *Svc) Append(ctx context.Context, e domain.Entry) error {
	ev := s.log.Info()
	if e.Aborted {
		ev = s.log.Warn()
	}
	ev.Str("run_id", e.RunID.String()).
		Str("method_id", e.MethodID).
		Str("method_type", e.MethodType).
		Int64("elapsed_ms", e.ElapsedMs).
		Int("seen", e.Seen).
		Int("ingested", e.Ingested).
		Int("duplicates", e.Duplicates).
		Int("failed", e.Failed).
		Bool("aborted", e.Aborted).
		Str("error", e.Error).
		Msg("scan run")

	if s.ch == nil {
		return nil
	}
	var aborted uint8
	if e.Aborted {
		aborted = 1
	}
	row := []any{
		e.RunID, e.MethodID, e.MethodType, e.StartedAt.UTC(), uint32(max(e.ElapsedMs, 0)),
		uint32(e.Seen), uint32(e.Ingested), uint32(e.Duplicates), uint32(e.Failed), aborted, e.Error,
	}
	if err := s.ch.Insert(ctx, table, [][]any{row}); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "append scan run")
	}
	return nil
}

// Recent returns the newest runs of a method, newest first. Without
// ClickHouse there is nothing to read
func (s *Svc) Recent(ctx context.Context, methodID string, limit int) ([]domain.Entry, error) {
	if s.ch == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	const sql = `
		SELECT run_id, method_id, method_type, started_at, elapsed_ms,
		       seen, ingested, duplicates, failed, aborted, error
		FROM scan_runs
		WHERE method_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.ch.Query(ctx, sql, methodID, limit)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "read scan runs")
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var (
			e                             domain.Entry
			elapsed, seen, ing, dup, fail uint32
			aborted                       uint8
		)
		if err := rows.Scan(&e.RunID, &e.MethodID, &e.MethodType, &e.StartedAt, &elapsed,
			&seen, &ing, &dup, &fail, &aborted, &e.Error); err != nil {
			return nil, err
		}
		e.ElapsedMs, e.Seen, e.Ingested, e.Duplicates, e.Failed = int64(elapsed), int(seen), int(ing), int(dup), int(fail)
		e.Aborted = aborted == 1
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ domain.LedgerPort = (*Svc)(nil)
