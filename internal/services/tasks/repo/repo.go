// Package repo provides the Postgres task queue
package repo

import (
	"context"
	"encoding/json"
	"time"

	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/services/tasks/domain"

	sq "github.com/Masterminds/squirrel"
)

// Repo is the task queue persistence surface
type Repo interface {
	Enqueue(ctx context.Context, t domain.NewTask) (bool, error)
	Lease(ctx context.Context, queue string, n int, worker string) ([]domain.Task, error)
	Ack(ctx context.Context, id string) error
	Nack(ctx context.Context, id string, backoff time.Duration, lastErr string, final bool) (dead bool, err error)
	Reap(ctx context.Context) ([]domain.Task, error)
	Depth(ctx context.Context) ([]domain.QueueDepth, error)
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

// Enqueue inserts t unless its key is already queued. It reports whether a
// row was written
func (r *queries) Enqueue(ctx context.Context, t domain.NewTask) (bool, error) {
	if t.Queue == "" || t.Kind == "" || t.Key == "" {
		return false, perr.InvalidArgf("task needs queue, kind and key")
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = domain.DefaultMaxAttempts
	}
	if t.Timeout <= 0 {
		t.Timeout = domain.DefaultTimeout
	}
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return false, perr.Wrap(err, perr.ErrorCodeJSON, "encode task payload")
	}

	const sql = `
		INSERT INTO tasks (queue, kind, idempotency_key, payload, max_attempts, timeout, next_attempt_at, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6 * interval '1 millisecond', NOW(), NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, sql, t.Queue, string(t.Kind), t.Key, payload, t.MaxAttempts, t.Timeout.Milliseconds())
	if err != nil {
		return false, perr.FromPostgres(err, "enqueue task")
	}
	return tag.RowsAffected() == 1, nil
}

// Lease claims up to n ready tasks of queue. Each claim counts as an attempt
// and hides the task for its timeout, after which it is redelivered
func (r *queries) Lease(ctx context.Context, queue string, n int, worker string) ([]domain.Task, error) {
	const sql = `
		WITH cte AS (
			SELECT id
			FROM tasks
			WHERE queue = $1
			  AND state = 'queued'
			  AND next_attempt_at <= NOW()
			  AND attempts < max_attempts
			ORDER BY next_attempt_at ASC, enqueued_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE tasks t
		SET attempts        = t.attempts + 1,
		    leased_by       = $3,
		    leased_until    = NOW() + t.timeout,
		    next_attempt_at = NOW() + t.timeout
		FROM cte
		WHERE t.id = cte.id
		RETURNING ` + returning + `
	`
	rows, err := r.q.Query(ctx, sql, queue, n, worker)
	if err != nil {
		return nil, perr.FromPostgres(err, "lease tasks")
	}
	return scanTasks(rows)
}

const returning = `t.id, t.queue, t.kind, t.idempotency_key, t.payload, t.attempts, t.max_attempts,
		          (EXTRACT(EPOCH FROM t.timeout) * 1000)::bigint, t.enqueued_at, COALESCE(t.last_error, '')`

func scanTasks(rows repokit.Rows) ([]domain.Task, error) {
	defer rows.Close()
	var out []domain.Task
	for rows.Next() {
		var (
			t         domain.Task
			kind      string
			timeoutMs int64
		)
		if err := rows.Scan(&t.ID, &t.Queue, &kind, &t.Key, &t.Payload, &t.Attempts, &t.MaxAttempts, &timeoutMs, &t.EnqueuedAt, &t.LastError); err != nil {
			return nil, err
		}
		t.Kind = domain.Kind(kind)
		t.Timeout = time.Duration(timeoutMs) * time.Millisecond
		out = append(out, t)
	}
	return out, rows.Err()
}

// Ack removes a finished task
func (r *queries) Ack(ctx context.Context, id string) error {
	const sql = `DELETE FROM tasks WHERE id = $1`
	_, err := r.q.Exec(ctx, sql, id)
	return err
}

// Nack records the failure and schedules a retry; a final failure or a task
// out of attempts is parked as dead
func (r *queries) Nack(ctx context.Context, id string, backoff time.Duration, lastErr string, final bool) (bool, error) {
	const sql = `
		UPDATE tasks
		SET last_error      = LEFT($2, 500),
		    next_attempt_at = NOW() + $3 * interval '1 millisecond',
		    leased_by       = NULL,
		    leased_until    = NULL,
		    state           = CASE WHEN $4 OR attempts >= max_attempts THEN 'dead' ELSE 'queued' END
		WHERE id = $1
		RETURNING state
	`
	var state string
	if err := r.q.QueryRow(ctx, sql, id, lastErr, backoff.Milliseconds(), final).Scan(&state); err != nil {
		return false, err
	}
	return state == "dead", nil
}

// Reap parks tasks whose last lease expired with no attempts left, which
// happens when a worker dies mid-task, and returns them
func (r *queries) Reap(ctx context.Context) ([]domain.Task, error) {
	const sql = `
		UPDATE tasks t
		SET state = 'dead', last_error = COALESCE(t.last_error, 'lease expired on final attempt'),
		    leased_by = NULL, leased_until = NULL
		WHERE t.state = 'queued' AND t.attempts >= t.max_attempts AND t.next_attempt_at <= NOW()
		RETURNING ` + returning
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, perr.FromPostgres(err, "reap tasks")
	}
	return scanTasks(rows)
}

// Depth counts ready, leased and dead tasks per queue
func (r *queries) Depth(ctx context.Context) ([]domain.QueueDepth, error) {
	sql, args, err := psql.
		Select(
			"queue",
			"COUNT(*) FILTER (WHERE state = 'queued' AND next_attempt_at <= NOW())",
			"COUNT(*) FILTER (WHERE state = 'queued' AND leased_until > NOW())",
			"COUNT(*) FILTER (WHERE state = 'dead')",
		).
		From("tasks").
		GroupBy("queue").
		OrderBy("queue").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, perr.FromPostgres(err, "queue depth")
	}
	defer rows.Close()

	var out []domain.QueueDepth
	for rows.Next() {
		var d domain.QueueDepth
		if err := rows.Scan(&d.Queue, &d.Ready, &d.Leased, &d.Dead); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
