package store

import (
	"context"
	stderrs "errors"

	perr "newsroom/internal/platform/errors"

	"github.com/jackc/pgx/v5"
)

// ExecOne runs a write and fails unless exactly one row was affected
func ExecOne(ctx context.Context, q RowQuerier, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n != 1 {
		if n == 0 {
			return perr.ErrNotFound
		}
		return perr.Newf(perr.ErrorCodeConflict, "expected 1 row affected, got %d", n)
	}
	return nil
}

// Scalar scans the first column of the first row into T. No rows maps to
// perr.ErrNotFound
func Scalar[T any](ctx context.Context, q RowQuerier, sql string, args ...any) (T, error) {
	var v T
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		var zero T
		return zero, NoRows(err)
	}
	return v, nil
}

// Many maps every row through scan
func Many[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) ([]T, error) {
	rs, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []T
	for rs.Next() {
		item, err := scan(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rs.Err()
}

// One maps the single row through scan; no rows is perr.ErrNotFound
func One[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) (T, error) {
	item, err := scan(q.QueryRow(ctx, sql, args...))
	if err != nil {
		var zero T
		return zero, NoRows(err)
	}
	return item, nil
}

// NoRows turns pgx.ErrNoRows into perr.ErrNotFound and passes others through
func NoRows(err error) error {
	if stderrs.Is(err, pgx.ErrNoRows) {
		return perr.ErrNotFound
	}
	return err
}
