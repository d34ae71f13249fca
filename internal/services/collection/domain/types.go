// Package domain defines collection methods, the collect task payload and
// the collection dispatcher port
package domain

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"newsroom/internal/core/priority"
	"newsroom/internal/core/signal"
	cdom "newsroom/internal/services/collectors/domain"

	"github.com/google/uuid"
)

// Method is one configured source. Type is stored lowercase in
// collection_methods.method_type
type Method struct {
	ID           uuid.UUID       `json:"id"`
	Type         signal.Type     `json:"method_type"`
	Name         string          `json:"name"`
	SourceName   string          `json:"source_name"`
	Config       json.RawMessage `json:"config"`
	Priority     priority.Tier   `json:"priority"`
	Breaking     bool            `json:"breaking"`
	Frequency    time.Duration   `json:"frequency"`
	Enabled      bool            `json:"enabled"`
	NextRunAt    time.Time       `json:"next_run_at"`
	LastRunAt    *time.Time      `json:"last_run_at,omitempty"`
	LastStatus   *string         `json:"last_status,omitempty"`
	LastError    *string         `json:"last_error,omitempty"`
	LastIngested int             `json:"last_ingested"`
}

// Options is what the collector sees of m
func (m Method) Options() cdom.Options {
	src := m.SourceName
	if src == "" {
		src = m.Name
	}
	return cdom.Options{
		MethodID:   m.ID.String(),
		SourceName: src,
		Priority:   priority.Parse(string(m.Priority)),
		Breaking:   m.Breaking,
		Config:     m.Config,
	}
}

// StoredType is the column value for t
func StoredType(t signal.Type) string { return strings.ToLower(string(t)) }

// Due is a method claimed by one dispatch, with the slot it was due at
type Due struct {
	MethodID uuid.UUID   `json:"method_id"`
	Type     signal.Type `json:"method_type"`
	DueAt    time.Time   `json:"due_at"`
}

// Key is the idempotency key of the collect task for this slot
func (d Due) Key() string {
	return "collect:" + d.MethodID.String() + ":" + strconv.FormatInt(d.DueAt.Unix(), 10)
}

// Payload is the collect task body
type Payload struct {
	MethodID uuid.UUID `json:"method_id"`
	DueAt    time.Time `json:"due_at"`
}

// Result counts one dispatch
type Result struct {
	Leased   int            `json:"leased"`
	Enqueued int            `json:"enqueued"`
	ByType   map[string]int `json:"by_type"`
}

// Run is the outcome recorded on a method after a scan
type Run struct {
	MethodID uuid.UUID
	At       time.Time
	Status   string
	Error    string
	Ingested int
}

// Run statuses
const (
	RunOK      = "ok"
	RunAborted = "aborted"
)

// DispatcherPort emits collect tasks for due methods
type DispatcherPort interface {
	Dispatch(ctx context.Context) (Result, error)
}

// CollectorPort runs one method now, outside the queue
type CollectorPort interface {
	Collect(ctx context.Context, methodID uuid.UUID) (int, error)
}
