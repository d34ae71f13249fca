// Package domain defines the scan run ledger entry
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one scan run
type Entry struct {
	RunID      uuid.UUID `json:"run_id"`
	MethodID   string    `json:"method_id"`
	MethodType string    `json:"method_type"`
	StartedAt  time.Time `json:"started_at"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	Seen       int       `json:"seen"`
	Ingested   int       `json:"ingested"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	Aborted    bool      `json:"aborted"`
	Error      string    `json:"error,omitempty"`
}

// LedgerPort appends and reads scan runs
type LedgerPort interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, methodID string, limit int) ([]Entry, error)
}
