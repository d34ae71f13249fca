package rss

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"newsroom/internal/adapters/collect/fetch"
	"newsroom/internal/core/signal"
	perr "newsroom/internal/platform/errors"
	kit "newsroom/internal/platform/testkit"
	dom "newsroom/internal/services/collectors/domain"
)

func opts(t *testing.T, cfg map[string]any) dom.Options {
	t.Helper()
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return dom.Options{MethodID: "m-1", SourceName: "City Desk", Config: raw}
}

func collect(t *testing.T, c *Collector, o dom.Options) ([]signal.Signal, []error) {
	t.Helper()
	seq, err := c.Scan(context.Background(), o)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var sigs []signal.Signal
	var errs []error
	for s, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sigs = append(sigs, s)
	}
	return sigs, errs
}

func TestScanRSS(t *testing.T) {
	site := kit.NewSite(t, map[string]kit.Page{
		"/feed.xml": {ContentType: "application/rss+xml", Body: kit.Fixture(t, "city.xml")},
	})
	c := New(fetch.New(fetch.Options{}))

	sigs, errs := collect(t, c, opts(t, map[string]any{"url": site.URL + "/feed.xml"}))
	if len(sigs) != 2 {
		t.Fatalf("signals = %d, want 2", len(sigs))
	}
	if len(errs) != 1 || !perr.IsCode(errs[0], perr.ErrorCodeExtraction) {
		t.Fatalf("errs = %v, want one extraction error", errs)
	}

	first := sigs[0]
	if first.Title != "City Council Meeting" || *first.URL != "https://x.com/a" || first.Type != signal.RSS {
		t.Fatalf("first = %+v", first)
	}
	if *first.OriginalID != "urn:citydesk:1001" {
		t.Fatalf("original id = %q", *first.OriginalID)
	}
	if *first.Content != "The council met to discuss the budget. Vote next week." {
		t.Fatalf("content = %q", *first.Content)
	}
	if first.AuthorName != "Dana Reyes" || *first.SourceName != "City Desk" {
		t.Fatalf("author=%q source=%q", first.AuthorName, *first.SourceName)
	}
	if !first.PublishedAt.Equal(time.Date(2025, 10, 6, 18, 30, 0, 0, time.UTC)) {
		t.Fatalf("published = %v", first.PublishedAt)
	}
	if err := first.Validate(); err != nil {
		t.Fatalf("signal invalid: %v", err)
	}

	second := sigs[1]
	if *second.URL != "https://x.com/traffic/main-st" {
		t.Fatalf("relative link not resolved: %q", *second.URL)
	}
	if *second.OriginalID != *second.URL {
		t.Fatalf("original id should fall back to link, got %q", *second.OriginalID)
	}
}

func TestScanAtom(t *testing.T) {
	site := kit.NewSite(t, map[string]kit.Page{"/atom": {Body: kit.Fixture(t, "atom.xml")}})
	c := New(fetch.New(fetch.Options{}))

	o := opts(t, map[string]any{"url": site.URL + "/atom"})
	o.SourceName = ""
	sigs, errs := collect(t, c, o)
	if len(sigs) != 1 || len(errs) != 0 {
		t.Fatalf("sigs=%d errs=%v", len(sigs), errs)
	}
	s := sigs[0]
	if *s.SourceName != "Harbor Notes" || s.AuthorName != "Harbor Desk" || *s.OriginalID != "urn:harbor:ferry-1" {
		t.Fatalf("signal = %+v", s)
	}
}

func TestMaxItems(t *testing.T) {
	site := kit.NewSite(t, map[string]kit.Page{"/feed.xml": {Body: kit.Fixture(t, "city.xml")}})
	c := New(fetch.New(fetch.Options{}))
	sigs, _ := collect(t, c, opts(t, map[string]any{"url": site.URL + "/feed.xml", "max_items": 1}))
	if len(sigs) != 1 {
		t.Fatalf("sigs = %d", len(sigs))
	}
}

func TestScanWholeSourceFailures(t *testing.T) {
	site := kit.NewSite(t, map[string]kit.Page{"/junk": {Body: "this is not a feed"}})
	c := New(fetch.New(fetch.Options{MaxRetries: -1}))

	if _, err := c.Scan(context.Background(), opts(t, map[string]any{"url": site.URL + "/junk"})); !perr.IsCode(err, perr.ErrorCodeSource) {
		t.Fatalf("unparseable feed: want source error, got %v", err)
	}
	if _, err := c.Scan(context.Background(), opts(t, map[string]any{"url": site.URL + "/gone"})); !perr.IsCode(err, perr.ErrorCodeSource) {
		t.Fatalf("404: want source error, got %v", err)
	}
}

func TestValidateConfiguration(t *testing.T) {
	c := New(fetch.New(fetch.Options{}))
	ctx := context.Background()
	if !c.ValidateConfiguration(ctx, opts(t, map[string]any{"url": "https://x.com/feed"})) {
		t.Fatalf("valid config rejected")
	}
	bad := []dom.Options{
		opts(t, map[string]any{}),
		opts(t, map[string]any{"url": "not a url"}),
		opts(t, map[string]any{"url": "ftp://x.com/feed"}),
		opts(t, map[string]any{"url": "https://x.com", "max_items": -1}),
		{Config: json.RawMessage(`[`)},
	}
	for i, o := range bad {
		if c.ValidateConfiguration(ctx, o) {
			t.Fatalf("case %d: invalid config accepted", i)
		}
	}
}
