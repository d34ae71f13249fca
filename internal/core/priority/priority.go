// Package priority defines content tiers, their dispatch rank and the
// queues they are routed to
package priority

import "strings"

// Tier is a content priority label. Any non-empty string is a valid tier;
// the named ones carry a rank
type Tier string

// Known tiers
const (
	Breaking Tier = "breaking"
	High     Tier = "high"
	Normal   Tier = "normal"
	Low      Tier = "low"
)

// Default is assigned when neither the source nor the item names a tier
const Default = Normal

// BreakingQueue receives every breaking item, uncapped
const BreakingQueue = "breaking"

// Parse lowercases and trims s; blank maps to Default
func Parse(s string) Tier {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default
	}
	return Tier(s)
}

// Rank orders tiered dispatch: high before normal before everything else.
// Ties keep their arrival order
func (t Tier) Rank() int {
	switch t {
	case High:
		return 0
	case Normal:
		return 1
	default:
		return 2
	}
}

// Queue is the processing queue for the tier
func (t Tier) Queue() string {
	if t == Breaking {
		return BreakingQueue
	}
	return "processing-" + string(t)
}

// RankSQL is the ORDER BY expression matching Rank for a text column
func RankSQL(col string) string {
	return "CASE " + col + " WHEN '" + string(High) + "' THEN 0 WHEN '" + string(Normal) + "' THEN 1 ELSE 2 END"
}
