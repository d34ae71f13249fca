// Package repo persists collection methods and claims the due ones
package repo

import (
	"context"
	"encoding/json"
	"time"

	"newsroom/internal/core/priority"
	"newsroom/internal/core/signal"
	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/store"
	"newsroom/internal/services/collection/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Repo is the collection_methods persistence surface
type Repo interface {
	LeaseDue(ctx context.Context, types []signal.Type, limit int) ([]domain.Due, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Method, error)
	List(ctx context.Context, f Filter) ([]domain.Method, error)
	Create(ctx context.Context, m domain.Method) (domain.Method, error)
	RecordRun(ctx context.Context, r domain.Run) error
}

// Filter narrows List
type Filter struct {
	Type        signal.Type
	EnabledOnly bool
	Limit       uint64
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

const columns = `id, method_type, name, source_name, config, priority, breaking,
	(EXTRACT(EPOCH FROM frequency) * 1000)::bigint, enabled, next_run_at,
	last_run_at, last_status, last_error, last_ingested`

// LeaseDue claims up to limit enabled methods of the given types whose
// next_run_at has passed
// and moves next_run_at to the first slot after now on the method's cadence.
// Rows locked by a concurrent dispatcher are skipped. Must run inside the
// transaction that enqueues the collect tasks
func (r *queries) LeaseDue(ctx context.Context, types []signal.Type, limit int) ([]domain.Due, error) {
	stored := make([]string, len(types))
	for i, t := range types {
		stored[i] = domain.StoredType(t)
	}
	const sql = `
		WITH due AS (
			SELECT id, next_run_at
			FROM collection_methods
			WHERE enabled AND next_run_at <= NOW() AND method_type = ANY($2)
			ORDER BY next_run_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE collection_methods m
		SET next_run_at = due.next_run_at + m.frequency * (
		        FLOOR(EXTRACT(EPOCH FROM NOW() - due.next_run_at) / EXTRACT(EPOCH FROM m.frequency)) + 1
		    )::float8,
		    last_dispatched_at = NOW(),
		    updated_at = NOW()
		FROM due
		WHERE m.id = due.id
		RETURNING m.id, m.method_type, due.next_run_at
	`
	return store.Many(ctx, r.q, func(row store.Row) (domain.Due, error) {
		var (
			d   domain.Due
			typ string
		)
		if err := row.Scan(&d.MethodID, &typ, &d.DueAt); err != nil {
			return d, err
		}
		t, err := signal.ParseType(typ)
		if err != nil {
			return d, err
		}
		d.Type = t
		return d, nil
	}, sql, limit, stored)
}

// Get loads one method
func (r *queries) Get(ctx context.Context, id uuid.UUID) (domain.Method, error) {
	sql := `SELECT ` + columns + ` FROM collection_methods WHERE id = $1`
	m, err := store.One(ctx, r.q, scanMethod, sql, id)
	if perr.Is(err, perr.ErrNotFound) {
		return m, perr.NotFoundf("collection method %s not found", id)
	}
	return m, err
}

// List returns methods ordered by next_run_at
func (r *queries) List(ctx context.Context, f Filter) ([]domain.Method, error) {
	b := psql.Select(columns).From("collection_methods").OrderBy("next_run_at ASC", "id ASC")
	if f.Type != "" {
		b = b.Where(sq.Eq{"method_type": domain.StoredType(f.Type)})
	}
	if f.EnabledOnly {
		b = b.Where("enabled")
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return store.Many(ctx, r.q, scanMethod, sql, args...)
}

// Create inserts m; a zero NextRunAt makes it due immediately
func (r *queries) Create(ctx context.Context, m domain.Method) (domain.Method, error) {
	cfg := m.Config
	if len(cfg) == 0 {
		cfg = json.RawMessage("{}")
	}
	var next any
	if !m.NextRunAt.IsZero() {
		next = m.NextRunAt
	}
	sql := `
		INSERT INTO collection_methods (method_type, name, source_name, config, priority, breaking, frequency, enabled, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7 * interval '1 millisecond', $8, COALESCE($9, NOW()))
		RETURNING ` + columns
	out, err := store.One(ctx, r.q, scanMethod, sql,
		domain.StoredType(m.Type), m.Name, m.SourceName, []byte(cfg), string(priority.Parse(string(m.Priority))),
		m.Breaking, m.Frequency.Milliseconds(), m.Enabled, next,
	)
	if err != nil {
		return out, perr.FromPostgres(err, "create collection method")
	}
	return out, nil
}

// RecordRun stores the outcome of the latest scan
func (r *queries) RecordRun(ctx context.Context, run domain.Run) error {
	const sql = `
		UPDATE collection_methods
		SET last_run_at = $2, last_status = $3, last_error = NULLIF(LEFT($4, 1000), ''),
		    last_ingested = $5, updated_at = NOW()
		WHERE id = $1
	`
	return store.ExecOne(ctx, r.q, sql, run.MethodID, run.At, run.Status, run.Error, run.Ingested)
}

func scanMethod(row store.Row) (domain.Method, error) {
	var (
		m         domain.Method
		typ, tier string
		cfg       []byte
		frequency int64
	)
	err := row.Scan(&m.ID, &typ, &m.Name, &m.SourceName, &cfg, &tier, &m.Breaking,
		&frequency, &m.Enabled, &m.NextRunAt, &m.LastRunAt, &m.LastStatus, &m.LastError, &m.LastIngested)
	if err != nil {
		return m, err
	}
	t, err := signal.ParseType(typ)
	if err != nil {
		return m, err
	}
	m.Type = t
	m.Priority = priority.Parse(tier)
	m.Config = json.RawMessage(cfg)
	m.Frequency = time.Duration(frequency) * time.Millisecond
	return m, nil
}
