// Package repokit holds the shared types and helpers repo packages bind against
package repokit

import (
	"context"

	"newsroom/internal/platform/store"
)

type (
	// Queryer is the SQL surface a bound repo uses
	Queryer = store.RowQuerier
	// TxRunner can also run a function in a transaction
	TxRunner = store.TxRunner
	// Rows is a result set
	Rows = store.Rows
	// Row is a single row
	Row = store.Row
	// CommandTag is a write result
	CommandTag = store.CommandTag
)

// WithTx runs fn in one transaction on tx
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return tx.Tx(ctx, fn)
}
