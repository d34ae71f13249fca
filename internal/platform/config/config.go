// Package config reads settings from prefixed environment variables.
// Must* panics on a missing or malformed value, May* falls back to a default
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"newsroom/internal/platform/logger"

	"github.com/joho/godotenv"
)

// Conf is a namespaced view, e.g. New().Prefix("FEEDS_")
type Conf struct{ prefix string }

// New returns the unprefixed view
func New() Conf { return Conf{} }

// Prefix nests p under the current prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) get(k string) string { return strings.TrimSpace(os.Getenv(c.key(k))) }

// LoadDotenv loads the given env files (default ".env") without overriding
// variables already set and returns the ones found. Missing files are
// skipped. It does not log, so LOG_* from a file still reach the logger
func LoadDotenv(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var loaded []string
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

func (c Conf) fail(k, v, msg string) {
	ev := logger.Get().Panic().Str("key", c.key(k))
	if v != "" {
		ev = ev.Str("value", v)
	}
	ev.Msg(msg)
}

// MustString panics when key is unset or blank
func (c Conf) MustString(k string) string {
	v := c.get(k)
	if v == "" {
		c.fail(k, "", "missing required env")
	}
	return v
}

// MustInt panics when key is unset or not an integer
func (c Conf) MustInt(k string) int {
	s := c.MustString(k)
	n, err := strconv.Atoi(s)
	if err != nil {
		c.fail(k, s, "invalid int value")
	}
	return n
}

// MustDuration panics when key is unset or not a Go duration
func (c Conf) MustDuration(k string) time.Duration {
	s := c.MustString(k)
	d, err := time.ParseDuration(s)
	if err != nil {
		c.fail(k, s, "invalid duration (e.g. 30s, 5m)")
	}
	return d
}

// MustURL panics unless key holds an absolute URL
func (c Conf) MustURL(k string) *url.URL {
	s := c.MustString(k)
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		c.fail(k, s, "invalid absolute URL")
	}
	return u
}

// MayPort returns a listen address like ":4000" from a bare port number
func (c Conf) MayPort(k string, def int) string {
	p := c.MayInt(k, def)
	if p < 1 || p > 65535 {
		c.fail(k, strconv.Itoa(p), "invalid TCP port; expected 1..65535")
	}
	return ":" + strconv.Itoa(p)
}

// MayString returns the value or def
func (c Conf) MayString(k, def string) string {
	if v := c.get(k); v != "" {
		return v
	}
	return def
}

// MayInt returns the value or def; a malformed value is logged and ignored
func (c Conf) MayInt(k string, def int) int {
	s := c.get(k)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(k)).Str("value", s).Int("default", def).Msg("invalid int; using default")
		return def
	}
	return n
}

// MayBool returns the value or def; a malformed value is logged and ignored
func (c Conf) MayBool(k string, def bool) bool {
	s := c.get(k)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(k)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
		return def
	}
	return b
}

// MayDuration returns the value or def; a malformed value is logged and ignored
func (c Conf) MayDuration(k string, def time.Duration) time.Duration {
	s := c.get(k)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(k)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
		return def
	}
	return d
}

// MayCSV splits a comma separated value, dropping blanks
func (c Conf) MayCSV(k string, def []string) []string {
	var out []string
	for _, p := range strings.Split(c.get(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayEnum returns the lowercased value if it is one of allowed, def when unset,
// and panics otherwise
func (c Conf) MayEnum(k, def string, allowed ...string) string {
	v := strings.ToLower(c.MayString(k, def))
	for _, a := range allowed {
		if v == strings.ToLower(a) {
			return v
		}
	}
	logger.Get().Panic().Str("key", c.key(k)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return ""
}
