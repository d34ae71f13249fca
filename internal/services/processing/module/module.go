// Package module wires the processing dispatcher
package module

import (
	stdhttp "net/http"
	"time"

	"newsroom/internal/modkit"
	phttp "newsroom/internal/platform/net/http"
	"newsroom/internal/services/processing/domain"
	"newsroom/internal/services/processing/service"
)

// Ports holds the ports exposed by the processing module
type Ports struct {
	Dispatcher domain.DispatcherPort
}

// Module is the processing module
type Module struct {
	svc   *service.Svc
	ports Ports
}

// New reads DISPATCH_BATCH_SIZE (default 50), DISPATCH_REDISPATCH_AFTER
// (default 15m) and DISPATCH_PROCESS_TIMEOUT (default 120s)
func New(deps modkit.Deps, d service.Deps) *Module {
	c := deps.Cfg.Prefix("DISPATCH_")
	svc := service.New(deps, d, service.Config{
		BatchSize:       c.MayInt("BATCH_SIZE", domain.DefaultBatchSize),
		RedispatchAfter: c.MayDuration("REDISPATCH_AFTER", 15*time.Minute),
		TaskTimeout:     c.MayDuration("PROCESS_TIMEOUT", 120*time.Second),
	})
	return &Module{svc: svc, ports: Ports{Dispatcher: svc}}
}

// Service returns the dispatcher
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "processing" }

// MountRoutes mounts POST /v1/dispatch/processing
func (m *Module) MountRoutes(r phttp.Router) {
	r.Post("/v1/dispatch/processing", phttp.Handle(func(req *stdhttp.Request) phttp.Response {
		res, err := m.svc.Dispatch(req.Context())
		if err != nil {
			return phttp.Error(err)
		}
		return phttp.OK(res)
	}))
}
