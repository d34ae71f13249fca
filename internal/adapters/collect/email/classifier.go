package email

import (
	"bytes"
	"io"
	"net/mail"
	"os"
	"regexp"
	"strings"

	"newsroom/internal/core/priority"
	perr "newsroom/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

// Mapping routes mail from a sender to a source. Exactly one of Email,
// Domain or Pattern is expected; Priority only breaks ties between domain
// matches
type Mapping struct {
	ID         string `yaml:"id" json:"id"`
	SourceName string `yaml:"source_name" json:"source_name"`
	Email      string `yaml:"email,omitempty" json:"email,omitempty"`
	Domain     string `yaml:"domain,omitempty" json:"domain,omitempty"`
	Pattern    string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Priority   int    `yaml:"priority,omitempty" json:"priority,omitempty"`
	Tier       string `yaml:"tier,omitempty" json:"tier,omitempty"`
	Breaking   bool   `yaml:"breaking,omitempty" json:"breaking,omitempty"`

	re *regexp.Regexp
}

// TierOrDefault parses Tier, blank meaning priority.Default
func (m Mapping) TierOrDefault() priority.Tier { return priority.Parse(m.Tier) }

type mappingFile struct {
	Mappings []Mapping `yaml:"mappings"`
}

// Classifier matches senders against mappings in configuration order
type Classifier struct {
	mappings []Mapping
}

// LoadFile reads a YAML mapping file. A blank path yields an empty classifier
func LoadFile(path string) (*Classifier, error) {
	if strings.TrimSpace(path) == "" {
		return NewClassifier(nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "open sender mappings %s", path)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load decodes a YAML document of the form {mappings: [...]}
func Load(r io.Reader) (*Classifier, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "read sender mappings")
	}
	var doc mappingFile
	if len(bytes.TrimSpace(b)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "decode sender mappings")
		}
	}
	return NewClassifier(doc.Mappings)
}

// NewClassifier normalizes ms and compiles patterns. An invalid pattern or
// a mapping with no matcher is a configuration error
func NewClassifier(ms []Mapping) (*Classifier, error) {
	out := make([]Mapping, 0, len(ms))
	for i, m := range ms {
		m.Email = strings.ToLower(strings.TrimSpace(m.Email))
		m.Domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(m.Domain)), "@")
		if m.ID == "" {
			return nil, perr.WithField(perr.Configf("mapping %d: id is required", i), "id")
		}
		if m.Email == "" && m.Domain == "" && m.Pattern == "" {
			return nil, perr.Configf("mapping %s: one of email, domain or pattern is required", m.ID)
		}
		if m.Pattern != "" {
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return nil, perr.WithField(perr.Wrapf(err, perr.ErrorCodeConfiguration, "mapping %s: bad pattern", m.ID), "pattern")
			}
			m.re = re
		}
		out = append(out, m)
	}
	return &Classifier{mappings: out}, nil
}

// Len is the number of mappings
func (c *Classifier) Len() int { return len(c.mappings) }

// Mappings returns a copy of the mappings in configuration order
func (c *Classifier) Mappings() []Mapping { return append([]Mapping(nil), c.mappings...) }

// Classify finds the mapping for a sender: exact address first, then the
// highest-priority domain match (subdomains match their parent, ties keep
// configuration order), then the first pattern matching the display name
func (c *Classifier) Classify(address, displayName string) (Mapping, bool) {
	address = strings.ToLower(strings.TrimSpace(address))

	if address != "" {
		for _, m := range c.mappings {
			if m.Email != "" && m.Email == address {
				return m, true
			}
		}
	}

	if _, domain, ok := strings.Cut(address, "@"); ok && domain != "" {
		best := -1
		for i, m := range c.mappings {
			if m.Domain == "" || !domainMatches(domain, m.Domain) {
				continue
			}
			if best < 0 || m.Priority > c.mappings[best].Priority {
				best = i
			}
		}
		if best >= 0 {
			return c.mappings[best], true
		}
	}

	if name := strings.TrimSpace(displayName); name != "" {
		for _, m := range c.mappings {
			if m.re != nil && m.re.MatchString(name) {
				return m, true
			}
		}
	}
	return Mapping{}, false
}

func domainMatches(domain, want string) bool {
	return domain == want || strings.HasSuffix(domain, "."+want)
}

// ParseFrom splits a From header into address and display name. Input that
// does not parse is returned as the address
func ParseFrom(from string) (address, name string) {
	if a, err := mail.ParseAddress(from); err == nil {
		return a.Address, a.Name
	}
	return strings.TrimSpace(from), ""
}
