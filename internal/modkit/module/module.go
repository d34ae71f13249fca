// Package module is the contract a service exposes to the HTTP server and
// to other services
package module

import (
	phttp "newsroom/internal/platform/net/http"
)

// Module is a named unit with optional routes and a ports bundle
type Module interface {
	Name() string
	MountRoutes(r phttp.Router)
	Ports() any
}

// Set is an explicit, ordered collection of modules built in main
type Set []Module

// Mount mounts every module's routes on r in order
func (s Set) Mount(r phttp.Router) {
	for _, m := range s {
		m.MountRoutes(r)
	}
}

// Names lists module names in order
func (s Set) Names() []string {
	out := make([]string, len(s))
	for i, m := range s {
		out[i] = m.Name()
	}
	return out
}
