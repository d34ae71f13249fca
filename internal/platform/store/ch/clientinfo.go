package ch

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo identifies this process in system.query_log.
// role is the CLI command (worker, scheduler, serve)
func BuildClientInfo(role, version string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	type product = struct{ Name, Version string }
	return clickhouse.ClientInfo{Products: []product{
		{Name: "newsroom", Version: orUnknown(version)},
		{Name: "role", Version: orUnknown(role)},
		{Name: "go", Version: runtime.Version()},
		{Name: "commit", Version: vcsRevision()},
		{Name: "host", Version: orUnknown(host)},
	}}
}

func vcsRevision() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "unknown"
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
