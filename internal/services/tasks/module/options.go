package module

import (
	"strings"
	"time"

	"newsroom/internal/platform/config"
)

// Options controls the queue consumers
type Options struct {
	Queues      []string
	PoolSizes   map[string]int
	DefaultPool int
	Batch       int
	Poll        time.Duration
	RetryBase   time.Duration
	WorkerID    string
}

// DefaultQueues is every queue the pipeline emits to, tiers included
var DefaultQueues = []string{
	"collect-rss", "collect-scrape", "collect-email",
	"breaking", "processing-high", "processing-normal", "processing-low",
}

// FromConfig reads WORKER_*. Pool sizes are WORKER_POOL_<QUEUE> with dashes
// as underscores, e.g. WORKER_POOL_PROCESSING_HIGH
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("WORKER_")
	o := Options{
		Queues:      c.MayCSV("QUEUES", DefaultQueues),
		PoolSizes:   map[string]int{},
		DefaultPool: c.MayInt("POOL_DEFAULT", 4),
		Batch:       c.MayInt("BATCH", 16),
		Poll:        c.MayDuration("POLL", time.Second),
		RetryBase:   c.MayDuration("RETRY_BASE", 5*time.Second),
		WorkerID:    c.MayString("ID", ""),
	}
	pools := c.Prefix("POOL_")
	for _, q := range o.Queues {
		if n := pools.MayInt(envKey(q), 0); n > 0 {
			o.PoolSizes[q] = n
		}
	}
	return o
}

func envKey(queue string) string {
	return strings.ToUpper(strings.ReplaceAll(queue, "-", "_"))
}
