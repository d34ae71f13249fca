// Package repo reads the pending pool and settles processed records
package repo

import (
	"context"
	"time"

	"newsroom/internal/core/priority"
	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/store"
	"newsroom/internal/services/processing/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Repo is the processing persistence surface
type Repo interface {
	PendingBreaking(ctx context.Context, redispatchAfter time.Duration) ([]domain.Candidate, error)
	PendingTiered(ctx context.Context, limit uint64, redispatchAfter time.Duration) ([]domain.Candidate, error)
	MarkDispatched(ctx context.Context, ids []uuid.UUID) error
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type (
	// PG is the Postgres implementation
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// pending selects the eligible pool: pending, and never dispatched or
// dispatched longer ago than redispatchAfter. Rows another dispatcher holds
// are skipped
func pending(breaking bool, redispatchAfter time.Duration) sq.SelectBuilder {
	return psql.
		Select("id", "priority", "is_breaking", "created_at").
		From("signals").
		Where(sq.Eq{"status": "pending", "is_breaking": breaking}).
		Where(sq.Or{
			sq.Expr("dispatched_at IS NULL"),
			sq.Expr("dispatched_at < NOW() - ? * interval '1 millisecond'", redispatchAfter.Milliseconds()),
		}).
		Suffix("FOR UPDATE SKIP LOCKED")
}

// PendingBreaking returns every eligible breaking record, oldest first
func (r *queries) PendingBreaking(ctx context.Context, redispatchAfter time.Duration) ([]domain.Candidate, error) {
	sql, args, err := pending(true, redispatchAfter).OrderBy("created_at ASC", "id ASC").ToSql()
	if err != nil {
		return nil, err
	}
	return store.Many(ctx, r.q, scanCandidate, sql, args...)
}

// PendingTiered returns up to limit eligible non-breaking records by tier
// rank, then age
func (r *queries) PendingTiered(ctx context.Context, limit uint64, redispatchAfter time.Duration) ([]domain.Candidate, error) {
	sql, args, err := pending(false, redispatchAfter).
		OrderBy(priority.RankSQL("priority")+" ASC", "created_at ASC", "id ASC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, err
	}
	return store.Many(ctx, r.q, scanCandidate, sql, args...)
}

// MarkDispatched stamps dispatched_at on ids
func (r *queries) MarkDispatched(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	sql, args, err := psql.
		Update("signals").
		Set("dispatched_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, sql, args...)
	return perr.FromPostgres(err, "mark dispatched")
}

// MarkProcessed moves a pending record to processed
func (r *queries) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	const sql = `
		UPDATE signals
		SET status = 'processed', processed_at = NOW(), last_error = NULL
		WHERE id = $1 AND status = 'pending'
	`
	_, err := r.q.Exec(ctx, sql, id)
	return perr.FromPostgres(err, "mark processed")
}

// MarkFailed moves a pending record to failed with reason
func (r *queries) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const sql = `
		UPDATE signals
		SET status = 'failed', processed_at = NOW(), last_error = LEFT($2, 1000)
		WHERE id = $1 AND status = 'pending'
	`
	_, err := r.q.Exec(ctx, sql, id, reason)
	return perr.FromPostgres(err, "mark failed")
}

func scanCandidate(row store.Row) (domain.Candidate, error) {
	var (
		c    domain.Candidate
		tier string
	)
	if err := row.Scan(&c.ID, &tier, &c.Breaking, &c.CreatedAt); err != nil {
		return c, err
	}
	c.Priority = priority.Parse(tier)
	return c, nil
}
