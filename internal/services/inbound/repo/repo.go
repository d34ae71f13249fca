// Package repo stores inbound email until the email collector consumes it
package repo

import (
	"context"

	"newsroom/internal/adapters/collect/email"
	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/store"
)

// Repo is the inbound_emails persistence surface
type Repo interface {
	Store(ctx context.Context, m email.Message) (id string, created bool, err error)
	Pending(ctx context.Context, limit int) ([]email.Message, error)
	MarkConsumed(ctx context.Context, id string) error
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

// Store inserts m; a known message id returns the existing row id with
// created=false
func (r *queries) Store(ctx context.Context, m email.Message) (string, bool, error) {
	const ins = `
		INSERT INTO inbound_emails (message_id, from_address, from_name, subject, body_text, body_html, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING id::text
	`
	id, err := store.Scalar[string](ctx, r.q, ins,
		m.MessageID, m.FromAddress, m.FromName, m.Subject, m.BodyText, m.BodyHTML, m.ReceivedAt)
	if err == nil {
		return id, true, nil
	}
	if !perr.Is(err, perr.ErrNotFound) {
		return "", false, perr.FromPostgres(err, "store inbound email")
	}
	id, err = store.Scalar[string](ctx, r.q, `SELECT id::text FROM inbound_emails WHERE message_id = $1`, m.MessageID)
	if err != nil {
		return "", false, perr.FromPostgres(err, "load inbound email")
	}
	return id, false, nil
}

// Pending returns unconsumed mail, oldest first
func (r *queries) Pending(ctx context.Context, limit int) ([]email.Message, error) {
	const sql = `
		SELECT id::text, message_id, from_address, from_name, subject, body_text, body_html, received_at
		FROM inbound_emails
		WHERE consumed_at IS NULL
		ORDER BY received_at ASC, id ASC
		LIMIT $1
	`
	return store.Many(ctx, r.q, func(row store.Row) (email.Message, error) {
		var m email.Message
		err := row.Scan(&m.ID, &m.MessageID, &m.FromAddress, &m.FromName, &m.Subject, &m.BodyText, &m.BodyHTML, &m.ReceivedAt)
		return m, err
	}, sql, limit)
}

// MarkConsumed stamps consumed_at; consuming twice is harmless
func (r *queries) MarkConsumed(ctx context.Context, id string) error {
	const sql = `UPDATE inbound_emails SET consumed_at = COALESCE(consumed_at, NOW()) WHERE id = $1::uuid`
	return store.ExecOne(ctx, r.q, sql, id)
}
