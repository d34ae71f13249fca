package http

import (
	"net/http"

	"newsroom/internal/platform/net/http/bind"

	"github.com/go-chi/chi/v5"
)

// GetJSON mounts a body-less JSON handler
func GetJSON(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, Handle(func(req *http.Request) Response {
		out, err := h(req)
		if err != nil {
			return Error(err)
		}
		return OK(out)
	}))
}

// PostJSON decodes and validates T, then calls h. Results are wrapped as 200
// unless h returns a Response itself
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, Handle(func(req *http.Request) Response {
		in, err := bind.ParseJSON[T](req)
		if err != nil {
			return Error(err)
		}
		out, err := h(req, in)
		if err != nil {
			return Error(err)
		}
		if resp, ok := out.(Response); ok {
			return resp
		}
		return OK(out)
	}))
}

// Param returns a path parameter mounted through the chi adapter
func Param(r *http.Request, name string) string { return chi.URLParam(r, name) }
