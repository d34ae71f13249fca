package email

import (
	"strings"
	"testing"

	"newsroom/internal/core/priority"
	perr "newsroom/internal/platform/errors"
	kit "newsroom/internal/platform/testkit"
)

func loadFixture(t *testing.T) *Classifier {
	t.Helper()
	c, err := Load(strings.NewReader(kit.Fixture(t, "mappings.yaml")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestClassify(t *testing.T) {
	c := loadFixture(t)
	cases := []struct {
		name, addr, display string
		want                string
	}{
		{"exact email wins over domain", "press@cityhall.gov", "", "cityhall-press"},
		{"exact email is case-insensitive", "PRESS@CITYHALL.GOV", "", "cityhall-press"},
		{"domain", "clerk@cityhall.gov", "", "cityhall-any"},
		{"subdomain matches parent", "news@mail.cityhall.gov", "", "cityhall-any"},
		{"priority tie keeps config order", "x@alerts.county.gov", "", "county"},
		{"parent domain", "x@county.gov", "", "county-general"},
		{"suffix is not a subdomain", "x@notcityhall.gov", "", ""},
		{"pattern on display name", "noreply@nws.example", "National Weather Service", "weather"},
		{"domain beats pattern", "x@cityhall.gov", "Weather Service", "cityhall-any"},
		{"no match", "someone@elsewhere.org", "Someone", ""},
	}
	for _, tc := range cases {
		m, ok := c.Classify(tc.addr, tc.display)
		if tc.want == "" {
			if ok {
				t.Fatalf("%s: unexpected match %s", tc.name, m.ID)
			}
			continue
		}
		if !ok || m.ID != tc.want {
			t.Fatalf("%s: got %q (ok=%v), want %q", tc.name, m.ID, ok, tc.want)
		}
	}
}

func TestDomainPriority(t *testing.T) {
	c, err := NewClassifier([]Mapping{
		{ID: "low", Domain: "example.com", Priority: 1},
		{ID: "high", Domain: "news.example.com", Priority: 9},
		{ID: "high-later", Domain: "example.com", Priority: 9},
	})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := c.Classify("a@news.example.com", "")
	if !ok || m.ID != "high" {
		t.Fatalf("got %q, want first of the highest priority", m.ID)
	}
	m, _ = c.Classify("a@example.com", "")
	if m.ID != "high-later" {
		t.Fatalf("got %q", m.ID)
	}
}

func TestPatternOrder(t *testing.T) {
	c, err := NewClassifier([]Mapping{
		{ID: "first", Pattern: "Daily"},
		{ID: "second", Pattern: "Daily Brief"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if m, _ := c.Classify("", "The Daily Brief"); m.ID != "first" {
		t.Fatalf("got %q", m.ID)
	}
}

func TestLoadRejects(t *testing.T) {
	bad := map[string]string{
		"bad pattern":   "mappings:\n  - id: x\n    pattern: '(['\n",
		"no matcher":    "mappings:\n  - id: x\n    source_name: y\n",
		"missing id":    "mappings:\n  - email: a@b.c\n",
		"unknown field": "mappings:\n  - id: x\n    email: a@b.c\n    colour: red\n",
		"not yaml":      "mappings: [",
	}
	for name, doc := range bad {
		if _, err := Load(strings.NewReader(doc)); !perr.IsCode(err, perr.ErrorCodeConfiguration) {
			t.Fatalf("%s: want configuration error, got %v", name, err)
		}
	}
	c, err := Load(strings.NewReader(""))
	if err != nil || c.Len() != 0 {
		t.Fatalf("empty doc: %v %v", c, err)
	}
}

func TestLoadFile(t *testing.T) {
	c, err := LoadFile("testdata/mappings.yaml")
	if err != nil || c.Len() != 5 {
		t.Fatalf("LoadFile: %v len=%d", err, c.Len())
	}
	if m := c.Mappings()[2]; m.TierOrDefault() != priority.Breaking || !m.Breaking {
		t.Fatalf("mapping 2 = %+v", m)
	}
	if _, err := LoadFile("testdata/nope.yaml"); !perr.IsCode(err, perr.ErrorCodeConfiguration) {
		t.Fatalf("missing file: %v", err)
	}
	if c, err := LoadFile(""); err != nil || c.Len() != 0 {
		t.Fatalf("blank path: %v", err)
	}
}

func TestParseFrom(t *testing.T) {
	addr, name := ParseFrom(`"City Hall" <press@cityhall.gov>`)
	if addr != "press@cityhall.gov" || name != "City Hall" {
		t.Fatalf("got %q %q", addr, name)
	}
	addr, name = ParseFrom("not an address")
	if addr != "not an address" || name != "" {
		t.Fatalf("got %q %q", addr, name)
	}
}
