package store

import (
	"context"
	"errors"
	"testing"

	perr "newsroom/internal/platform/errors"

	"github.com/jackc/pgx/v5"
)

type fakeTag int64

func (f fakeTag) String() string      { return "UPDATE" }
func (f fakeTag) RowsAffected() int64 { return int64(f) }

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dst ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dst {
		switch d := dst[i].(type) {
		case *int:
			*d = r.vals[i].(int)
		case *string:
			*d = r.vals[i].(string)
		}
	}
	return nil
}

type fakeRows struct {
	data [][]any
	i    int
}

func (r *fakeRows) Next() bool            { r.i++; return r.i <= len(r.data) }
func (r *fakeRows) Scan(dst ...any) error { return fakeRow{vals: r.data[r.i-1]}.Scan(dst...) }
func (r *fakeRows) Err() error            { return nil }
func (r *fakeRows) Close()                {}
func (r *fakeRows) Columns() []string     { return nil }

type fakeQ struct {
	tag  fakeTag
	row  fakeRow
	rows [][]any
}

func (f fakeQ) Exec(context.Context, string, ...any) (CommandTag, error) { return f.tag, nil }
func (f fakeQ) Query(context.Context, string, ...any) (Rows, error) {
	return &fakeRows{data: f.rows}, nil
}
func (f fakeQ) QueryRow(context.Context, string, ...any) Row { return f.row }

func TestExecOne(t *testing.T) {
	ctx := context.Background()
	if err := ExecOne(ctx, fakeQ{tag: 1}, "x"); err != nil {
		t.Fatalf("one row: %v", err)
	}
	if err := ExecOne(ctx, fakeQ{tag: 0}, "x"); !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("zero rows: %v", err)
	}
	if err := ExecOne(ctx, fakeQ{tag: 2}, "x"); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("two rows: %v", err)
	}
}

func TestScalarAndOne(t *testing.T) {
	ctx := context.Background()
	n, err := Scalar[int](ctx, fakeQ{row: fakeRow{vals: []any{42}}}, "select 42")
	if err != nil || n != 42 {
		t.Fatalf("Scalar = %d, %v", n, err)
	}
	_, err = Scalar[int](ctx, fakeQ{row: fakeRow{err: pgx.ErrNoRows}}, "select")
	if !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("Scalar no rows = %v", err)
	}

	scan := func(r Row) (string, error) {
		var s string
		err := r.Scan(&s)
		return s, err
	}
	s, err := One(ctx, fakeQ{row: fakeRow{vals: []any{"rss"}}}, scan, "select")
	if err != nil || s != "rss" {
		t.Fatalf("One = %q, %v", s, err)
	}
}

func TestMany(t *testing.T) {
	scan := func(r Row) (string, error) {
		var s string
		err := r.Scan(&s)
		return s, err
	}
	got, err := Many(context.Background(), fakeQ{rows: [][]any{{"a"}, {"b"}, {"c"}}}, scan, "select")
	if err != nil || len(got) != 3 || got[2] != "c" {
		t.Fatalf("Many = %v, %v", got, err)
	}
}
