// Package repo persists content records
package repo

import (
	"context"
	"encoding/json"

	"newsroom/internal/core/priority"
	"newsroom/internal/core/signal"
	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/store"
	"newsroom/internal/services/signals/domain"

	"github.com/google/uuid"
)

// Repo is the signals persistence surface
type Repo interface {
	Insert(ctx context.Context, r domain.Record) (id uuid.UUID, created bool, err error)
	Get(ctx context.Context, id uuid.UUID) (domain.Record, error)
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

// Insert is the dedup gate: the unique content_hash decides. No row back
// means another writer got there first
func (r *queries) Insert(ctx context.Context, rec domain.Record) (uuid.UUID, bool, error) {
	meta, err := json.Marshal(nonNil(rec.Metadata))
	if err != nil {
		return uuid.Nil, false, perr.Wrap(err, perr.ErrorCodeValidation, "encode signal metadata")
	}
	const sql = `
		INSERT INTO signals (
			type, source_identifier, external_id, content_hash, title, content, url,
			author_name, source_name, metadata, published_at, status, priority, is_breaking
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending', $12, $13)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING id
	`
	var id uuid.UUID
	err = r.q.QueryRow(ctx, sql,
		string(rec.Type), rec.SourceID, rec.ExternalID, rec.ContentHash, rec.Title, rec.Content, rec.URL,
		rec.AuthorName, rec.SourceName, meta, rec.PublishedAt, string(rec.Priority), rec.Breaking,
	).Scan(&id)
	if err != nil {
		if perr.Is(store.NoRows(err), perr.ErrNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// Get loads one record
func (r *queries) Get(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	const sql = `
		SELECT id, type, source_identifier, external_id, content_hash, title, content, url,
		       author_name, source_name, metadata, published_at, status, priority, is_breaking,
		       dispatched_at, processed_at, last_error, created_at
		FROM signals
		WHERE id = $1
	`
	return store.One(ctx, r.q, Scan, sql, id)
}

// Scan reads the column list used by Get
func Scan(row store.Row) (domain.Record, error) {
	var (
		rec         domain.Record
		typ, status string
		tier        string
		meta        []byte
	)
	err := row.Scan(
		&rec.ID, &typ, &rec.SourceID, &rec.ExternalID, &rec.ContentHash, &rec.Title, &rec.Content, &rec.URL,
		&rec.AuthorName, &rec.SourceName, &meta, &rec.PublishedAt, &status, &tier, &rec.Breaking,
		&rec.DispatchedAt, &rec.ProcessedAt, &rec.LastError, &rec.CreatedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.Type = signal.Type(typ)
	rec.Status = domain.Status(status)
	rec.Priority = priority.Tier(tier)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return rec, perr.Wrap(err, perr.ErrorCodeJSON, "decode signal metadata")
		}
	}
	return rec, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
