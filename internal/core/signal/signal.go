// Package signal is the canonical unit of discovered content every collector
// produces and the signal processor consumes
package signal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"newsroom/internal/core/priority"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/net/http/bind"
	pstrings "newsroom/internal/platform/strings"
)

// Type tags the collector a signal came from
type Type string

// Collector origins
const (
	RSS    Type = "RSS"
	Scrape Type = "SCRAPE"
	Email  Type = "EMAIL"
)

// Types lists every known origin in a stable order
var Types = []Type{RSS, Scrape, Email}

// ParseType accepts any casing of a known type
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range Types {
		if t == k {
			return t, nil
		}
	}
	return "", perr.InvalidArgf("unknown signal type %q", s)
}

// Queue is the collection queue for methods of this type
func (t Type) Queue() string { return "collect-" + strings.ToLower(string(t)) }

// Metadata keys the processor reads
const (
	MetaPriority = "priority"
	MetaBreaking = "breaking"
	MetaSourceID = "source_identifier"
)

// Origin carries the per-method defaults a signal is ingested under.
// Metadata on the signal overrides each field
type Origin struct {
	SourceID string
	Priority priority.Tier
	Breaking bool
}

// Signal is one normalized, not yet persisted item
type Signal struct {
	Title       string         `json:"title" validate:"required,max=2000"`
	Content     *string        `json:"content,omitempty"`
	URL         *string        `json:"url,omitempty" validate:"omitempty,url"`
	AuthorName  string         `json:"author_name"`
	SourceName  *string        `json:"source_name,omitempty"`
	PublishedAt time.Time      `json:"published_at"`
	Type        Type           `json:"type" validate:"required,oneof=RSS SCRAPE EMAIL"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OriginalID  *string        `json:"original_id,omitempty"`
	ContentHash string         `json:"content_hash,omitempty" validate:"omitempty,len=64,hexadecimal"`
}

// ContentHash is the dedup key: lowercase hex sha256 of "type|url|title".
// A missing url hashes as the empty string
func ContentHash(t Type, url, title string) string {
	sum := sha256.Sum256([]byte(string(t) + "|" + url + "|" + title))
	return hex.EncodeToString(sum[:])
}

// Hash returns the explicit ContentHash when set, else the derived one
func (s Signal) Hash() string {
	if s.ContentHash != "" {
		return s.ContentHash
	}
	return ContentHash(s.Type, pstrings.Deref(s.URL), s.Title)
}

// Validate checks the struct tags and reports the first bad field
func (s Signal) Validate() error {
	return bind.Struct(s)
}

// Priority reads the tier from metadata, falling back to def
func (s Signal) Priority(def priority.Tier) priority.Tier {
	if v, ok := s.Metadata[MetaPriority].(string); ok && strings.TrimSpace(v) != "" {
		return priority.Parse(v)
	}
	return def
}

// SourceID reads the source identifier from metadata, falling back to def
func (s Signal) SourceID(def string) string {
	if v, ok := s.Metadata[MetaSourceID].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Breaking reads the breaking flag from metadata, falling back to def.
// Accepts bool or the strings "true"/"1"/"yes"
func (s Signal) Breaking(def bool) bool {
	switch v := s.Metadata[MetaBreaking].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}
