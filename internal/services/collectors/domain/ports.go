// Package domain defines the collector contract, its options and the
// registry main builds and injects
package domain

import (
	"context"
	"iter"

	"newsroom/internal/core/signal"
)

// Collector polls one kind of source.
//
// ValidateConfiguration reports false for a recoverable misconfiguration and
// logs why. Scan returns a lazy finite sequence: a malformed item is yielded
// as (zero, ErrorCodeExtraction) and the sequence goes on; a whole-source
// failure is either the outer error or a yielded ErrorCodeSource error, after
// which the sequence ends
type Collector interface {
	ScannerType() signal.Type
	ValidateConfiguration(ctx context.Context, opts Options) bool
	Scan(ctx context.Context, opts Options) (iter.Seq2[signal.Signal, error], error)
}

// Committer is implemented by collectors that remember what a scan already
// saw. Settle runs once per validated scan; clean reports that every item
// the source offered was stored
type Committer interface {
	Settle(ctx context.Context, opts Options, clean bool)
}

// Acker is implemented by collectors whose source must be told when a
// yielded signal has been stored
type Acker interface {
	Ack(ctx context.Context, opts Options, s signal.Signal) error
}
