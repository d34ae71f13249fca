// Package domain defines the scan report and the feed manager port
package domain

import (
	"context"
	"time"

	cdom "newsroom/internal/services/collectors/domain"
)

// Report tallies one scan. Aborted scans keep the counts reached before the
// abort but RunScan reports them as zero
type Report struct {
	Seen       int           `json:"seen"`
	Ingested   int           `json:"ingested"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Aborted    bool          `json:"aborted"`
	Elapsed    time.Duration `json:"elapsed"`
	Err        error         `json:"-"`
}

// Result is the ingested count RunScan returns: zero for an aborted or
// rejected scan
func (r Report) Result() int {
	if r.Aborted {
		return 0
	}
	return r.Ingested
}

// ManagerPort drives one collector over one method configuration
type ManagerPort interface {
	RunScan(ctx context.Context, c cdom.Collector, opts cdom.Options) int
	RunScanReport(ctx context.Context, c cdom.Collector, opts cdom.Options) Report
}
