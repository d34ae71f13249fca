// Package testkit holds small helpers shared by package tests
package testkit

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// MustPanic fails t unless fn panics
func MustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic, got none")
		}
	}()
	fn()
}

// MustContain fails t unless haystack contains needle. The haystack is
// dumped to a temp file since log output is often long
func MustContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		return
	}
	dump := filepath.Join(t.TempDir(), "haystack.txt")
	_ = os.WriteFile(dump, []byte(haystack), 0o600)
	t.Fatalf("expected output to contain %q (full output in %s)", needle, dump)
}

var seamMu sync.Mutex

// Swap replaces *target for the duration of the test
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}

// Serial runs the rest of the test under a process-wide lock; use it with Swap
// on package-level seams
func Serial(t *testing.T) {
	t.Helper()
	seamMu.Lock()
	t.Cleanup(seamMu.Unlock)
}

// Page is one canned HTTP response served by Site
type Page struct {
	Status      int
	ContentType string
	Body        string
	Header      map[string]string
}

// Site is an httptest server serving fixed pages by path and counting hits
type Site struct {
	*httptest.Server
	hits sync.Map // path -> *atomic.Int64
}

// NewSite starts a server for pages; unknown paths get 404
func NewSite(t *testing.T, pages map[string]Page) *Site {
	t.Helper()
	s := &Site{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := s.hits.LoadOrStore(r.URL.Path, new(atomic.Int64))
		n.(*atomic.Int64).Add(1)

		p, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		for k, v := range p.Header {
			w.Header().Set(k, v)
		}
		if p.ContentType != "" {
			w.Header().Set("Content-Type", p.ContentType)
		}
		if p.Status != 0 {
			w.WriteHeader(p.Status)
		}
		_, _ = w.Write([]byte(p.Body))
	}))
	t.Cleanup(s.Close)
	return s
}

// Hits returns how many requests path received
func (s *Site) Hits(path string) int64 {
	if n, ok := s.hits.Load(path); ok {
		return n.(*atomic.Int64).Load()
	}
	return 0
}

// Fixture reads testdata/<name> relative to the calling package
func Fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(b)
}
