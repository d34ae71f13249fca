package domain

import (
	"sort"

	"newsroom/internal/core/signal"
	perr "newsroom/internal/platform/errors"
)

// Registry maps a signal type to its collector. It is built once in main
// and passed to whatever needs a lookup
type Registry map[signal.Type]Collector

// NewRegistry keys each collector by its ScannerType. A second collector for
// the same type is a wiring bug and panics
func NewRegistry(cs ...Collector) Registry {
	r := make(Registry, len(cs))
	for _, c := range cs {
		t := c.ScannerType()
		if _, dup := r[t]; dup {
			panic("collectors: duplicate collector for " + string(t))
		}
		r[t] = c
	}
	return r
}

// Lookup returns the collector for t or a configuration error
func (r Registry) Lookup(t signal.Type) (Collector, error) {
	if c, ok := r[t]; ok {
		return c, nil
	}
	return nil, perr.Configf("no collector registered for %s", t)
}

// Types lists the registered types sorted
func (r Registry) Types() []signal.Type {
	out := make([]signal.Type, 0, len(r))
	for t := range r {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
