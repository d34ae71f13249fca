package store

import (
	"context"

	"newsroom/internal/platform/store/ch"
)

// chAdapter narrows *ch.CH to the Clickhouse seam
type chAdapter struct{ c *ch.CH }

func (a *chAdapter) Insert(ctx context.Context, table string, rows [][]any) error {
	return a.c.Insert(ctx, table, rows)
}

func (a *chAdapter) Exec(ctx context.Context, sql string, args ...any) error {
	return a.c.Exec(ctx, sql, args...)
}

func (a *chAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.c.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

func (a *chAdapter) Ping(ctx context.Context) error { return a.c.Ping(ctx) }

func (a *chAdapter) Close() error { return a.c.Close() }

type chRows struct{ r ch.Rows }

func (x chRows) Next() bool             { return x.r.Next() }
func (x chRows) Scan(dest ...any) error { return x.r.Scan(dest...) }
func (x chRows) Err() error             { return x.r.Err() }
func (x chRows) Close()                 { _ = x.r.Close() }
func (x chRows) Columns() []string      { return x.r.Columns() }
