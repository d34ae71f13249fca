// Package domain defines the persisted content record and the processor port
package domain

import (
	"context"
	"time"

	"newsroom/internal/core/priority"
	"newsroom/internal/core/signal"

	"github.com/google/uuid"
)

// Status is the record lifecycle: pending, then processed or failed
type Status string

// Record statuses
const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further processing should happen
func (s Status) Terminal() bool { return s == StatusProcessed || s == StatusFailed }

// Record is the canonical content row
type Record struct {
	ID           uuid.UUID      `json:"id"`
	Type         signal.Type    `json:"type"`
	SourceID     string         `json:"source_identifier"`
	ExternalID   *string        `json:"external_id,omitempty"`
	ContentHash  string         `json:"content_hash"`
	Title        string         `json:"title"`
	Content      *string        `json:"content,omitempty"`
	URL          *string        `json:"url,omitempty"`
	AuthorName   string         `json:"author_name"`
	SourceName   *string        `json:"source_name,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	PublishedAt  time.Time      `json:"published_at"`
	Status       Status         `json:"status"`
	Priority     priority.Tier  `json:"priority"`
	Breaking     bool           `json:"is_breaking"`
	DispatchedAt *time.Time     `json:"dispatched_at,omitempty"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	LastError    *string        `json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// FromSignal builds a pending record. Signal metadata overrides the origin
// defaults; a breaking tier always sets the breaking flag
func FromSignal(o signal.Origin, s signal.Signal) Record {
	tier := s.Priority(priority.Parse(string(o.Priority)))
	breaking := s.Breaking(o.Breaking) || tier == priority.Breaking
	published := s.PublishedAt
	if published.IsZero() {
		published = time.Now()
	}
	return Record{
		Type:        s.Type,
		SourceID:    s.SourceID(o.SourceID),
		ExternalID:  s.OriginalID,
		ContentHash: s.Hash(),
		Title:       s.Title,
		Content:     s.Content,
		URL:         s.URL,
		AuthorName:  s.AuthorName,
		SourceName:  s.SourceName,
		Metadata:    s.Metadata,
		PublishedAt: published.UTC(),
		Status:      StatusPending,
		Priority:    tier,
		Breaking:    breaking,
	}
}

// ProcessorPort ingests signals. created=false with a nil error is the
// duplicate outcome
type ProcessorPort interface {
	Process(ctx context.Context, s signal.Signal) (id uuid.UUID, created bool, err error)
	Ingest(ctx context.Context, o signal.Origin, s signal.Signal) (id uuid.UUID, created bool, err error)
}

// ReaderPort reads records back
type ReaderPort interface {
	Get(ctx context.Context, id uuid.UUID) (Record, error)
}
