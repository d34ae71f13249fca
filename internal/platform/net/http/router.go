// Package http is the chi-backed HTTP layer: router facade, server, JSON envelope
package http

import "net/http"

// Handler is the handler shape mounted on a Router
type Handler = func(http.ResponseWriter, *http.Request)

// Router is the routing surface modules mount against
type Router interface {
	Get(path string, h Handler)
	Post(path string, h Handler)
	Handle(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Group(fn func(Router))
	Route(pattern string, fn func(Router))
	Mux() http.Handler
}
