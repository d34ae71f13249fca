// Package domain defines the task queue types and ports
package domain

import (
	"context"
	"encoding/json"
	"time"

	"newsroom/internal/modkit/repokit"

	"github.com/google/uuid"
)

// Kind selects the handler a task runs
type Kind string

// Task kinds
const (
	KindCollect Kind = "collect"
	KindProcess Kind = "process"
)

// Queue defaults
const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 120 * time.Second
)

// NewTask is an enqueue request. Key is the idempotency key: a second
// enqueue with the same key is dropped while the first row exists
type NewTask struct {
	Queue       string
	Kind        Kind
	Key         string
	Payload     any
	MaxAttempts int
	Timeout     time.Duration
}

// Task is a leased queue row. Attempts already counts the current delivery
type Task struct {
	ID          uuid.UUID
	Queue       string
	Kind        Kind
	Key         string
	Payload     json.RawMessage
	Attempts    int
	MaxAttempts int
	Timeout     time.Duration
	EnqueuedAt  time.Time
	// LastError is the failure recorded by the previous delivery, if any
	LastError string
}

// Final reports whether this delivery is the last one the queue will make
func (t Task) Final() bool { return t.Attempts >= t.MaxAttempts }

// Decode unmarshals the payload into dst
func (t Task) Decode(dst any) error { return json.Unmarshal(t.Payload, dst) }

// QueueDepth is a per-queue snapshot for operators
type QueueDepth struct {
	Queue  string `json:"queue"`
	Ready  int    `json:"ready"`
	Leased int    `json:"leased"`
	Dead   int    `json:"dead"`
}

// Handler runs one task. A nil error acks it; anything else is retried with
// backoff until attempts run out
type Handler func(ctx context.Context, t Task) error

// DeadHandler runs after a task of its kind is parked dead, whether a
// handler failed for the last time or the reaper found its final lease
// expired. reason is the last recorded error
type DeadHandler func(ctx context.Context, t Task, reason string) error

// EnqueuePort emits tasks
type EnqueuePort interface {
	Enqueue(ctx context.Context, t NewTask) (bool, error)
}

// TxEnqueuePort emits tasks inside a caller's transaction
type TxEnqueuePort interface {
	Within(q repokit.Queryer) EnqueuePort
}

// WorkerPort runs queue consumers until ctx ends
type WorkerPort interface {
	Run(ctx context.Context) error
}

// StatsPort reports queue depth
type StatsPort interface {
	Depth(ctx context.Context) ([]QueueDepth, error)
}
