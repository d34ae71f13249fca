// Package strings holds string helpers for query args and scraped text
package strings

import (
	std "strings"
	"unicode/utf8"
)

// IfEmpty returns def when in is empty
func IfEmpty[T any](in []T, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// Ptr returns &s, or nil when s is blank
func Ptr(s string) *string {
	if std.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Deref returns *ps or ""
func Deref(ps *string) string {
	if ps == nil {
		return ""
	}
	return *ps
}

// SQLNullPtr returns nil for a nil or blank pointer, otherwise the value
func SQLNullPtr(ps *string) any {
	if ps == nil || std.TrimSpace(*ps) == "" {
		return nil
	}
	return *ps
}

// Collapse trims s and folds every whitespace run into one space
func Collapse(s string) string {
	return std.Join(std.Fields(s), " ")
}

// Truncate cuts s to at most n runes, never splitting a rune
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// FirstNonEmpty returns the first argument with non-blank content
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if std.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
