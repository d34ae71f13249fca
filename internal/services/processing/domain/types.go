// Package domain defines the processing dispatcher types and the per-tier
// processor port
package domain

import (
	"context"
	"time"

	"newsroom/internal/core/priority"
	sdom "newsroom/internal/services/signals/domain"

	"github.com/google/uuid"
)

// DefaultBatchSize caps tiered (non-breaking) items per dispatch
const DefaultBatchSize = 50

// Candidate is a pending record eligible for dispatch
type Candidate struct {
	ID        uuid.UUID
	Priority  priority.Tier
	Breaking  bool
	CreatedAt time.Time
}

// Queue routes c: every breaking item goes to the breaking queue, the rest
// to processing-<tier>
func (c Candidate) Queue() string {
	if c.Breaking {
		return priority.BreakingQueue
	}
	return c.Priority.Queue()
}

// Key is the idempotency key of c's process task
func (c Candidate) Key() string { return "process:" + c.ID.String() }

// Payload is the process task body
type Payload struct {
	SignalID uuid.UUID `json:"signal_id"`
}

// Result counts one dispatch
type Result struct {
	Breaking int            `json:"breaking"`
	Tiered   int            `json:"tiered"`
	Skipped  int            `json:"skipped"`
	ByQueue  map[string]int `json:"by_queue"`
}

// Total is every task emitted
func (r Result) Total() int { return r.Breaking + r.Tiered }

// TierProcessor handles one record of a tier. A nil error marks it processed
type TierProcessor interface {
	Process(ctx context.Context, rec sdom.Record) error
}

// TierProcessorFunc adapts a function to TierProcessor
type TierProcessorFunc func(ctx context.Context, rec sdom.Record) error

// Process calls f
func (f TierProcessorFunc) Process(ctx context.Context, rec sdom.Record) error { return f(ctx, rec) }

// DispatcherPort emits process tasks for the pending pool
type DispatcherPort interface {
	Dispatch(ctx context.Context) (Result, error)
}
