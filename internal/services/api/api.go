// Package api assembles the operations API: probes, docs and every module's
// routes behind the shared middleware stack
package api

import (
	"context"
	stdhttp "net/http"
	"time"

	"newsroom/internal/core/version"
	"newsroom/internal/modkit/module"
	phttp "newsroom/internal/platform/net/http"
	"newsroom/internal/platform/net/middleware"
	"newsroom/internal/services/api/docs"
)

// Guard reports backend readiness
type Guard interface {
	Guard(ctx context.Context) error
}

// Options are the API options
type Options struct {
	Modules       module.Set
	Guard         Guard
	Timeout       time.Duration
	CORS          middleware.CORSOptions
	EnableSwagger bool
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool              `json:"ok" example:"true"`
	Build   version.BuildInfo `json:"build"`
	Started string            `json:"started" example:"2026-03-01T13:00:00Z"`
	Uptime  int64             `json:"uptime" example:"300"`
}

// ReadyResponse is the readiness payload
type ReadyResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// Mount mounts the middleware stack, probes, docs and module routes on r
func Mount(r phttp.Router, opt Options) {
	if opt.Timeout <= 0 {
		opt.Timeout = 30 * time.Second
	}
	r.Use(middleware.Defaults(opt.Timeout, opt.CORS)...)

	started := time.Now()
	phttp.GetJSON(r, "/healthz", func(*stdhttp.Request) (any, error) {
		return HealthResponse{
			OK:      true,
			Build:   version.Info(),
			Started: started.UTC().Format(time.RFC3339),
			Uptime:  int64(time.Since(started) / time.Second),
		}, nil
	})

	r.Get("/readyz", phttp.Handle(func(req *stdhttp.Request) phttp.Response {
		if opt.Guard == nil {
			return phttp.OK(ReadyResponse{Status: "ok"})
		}
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := opt.Guard.Guard(ctx); err != nil {
			return phttp.Response{Status: stdhttp.StatusServiceUnavailable, Body: ReadyResponse{Status: "fail", Error: err.Error()}}
		}
		return phttp.OK(ReadyResponse{Status: "ok"})
	}))

	if opt.EnableSwagger {
		phttp.MountSwagger(r, func() (string, error) { return docs.SwaggerInfo.ReadDoc(), nil })
	}

	opt.Modules.Mount(r)
}
