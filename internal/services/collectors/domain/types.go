package domain

import (
	"encoding/json"

	"newsroom/internal/core/priority"
	perr "newsroom/internal/platform/errors"
)

// Options is what a collection method hands its collector. Config holds the
// collector-specific JSON document stored on the method
type Options struct {
	MethodID   string          `json:"method_id"`
	SourceName string          `json:"source_name"`
	Priority   priority.Tier   `json:"priority"`
	Breaking   bool            `json:"breaking"`
	Config     json.RawMessage `json:"config"`
}

// Decode unmarshals Config into dst. An empty config decodes as {}
func (o Options) Decode(dst any) error {
	raw := o.Config
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return perr.Wrap(err, perr.ErrorCodeConfiguration, "decode collector config")
	}
	return nil
}
