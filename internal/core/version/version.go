// Package version reports build metadata set with -ldflags
package version

// BuildInfo is returned by /healthz and tagged on ClickHouse connections
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Set with -ldflags "-X 'newsroom/internal/core/version.version=v0.3.0' ..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build metadata
func Info() BuildInfo {
	return BuildInfo{Service: "newsroom", Version: version, Commit: commit, Date: date}
}
