// Package module wires the signal processor
package module

import (
	stdhttp "net/http"

	"newsroom/internal/modkit"
	perr "newsroom/internal/platform/errors"
	phttp "newsroom/internal/platform/net/http"
	dom "newsroom/internal/services/signals/domain"
	"newsroom/internal/services/signals/service"

	"github.com/google/uuid"
)

// Ports holds the ports exposed by the signals module
type Ports struct {
	Processor dom.ProcessorPort
	Reader    dom.ReaderPort
}

// Module is the signals module
type Module struct {
	svc   *service.Svc
	ports Ports
}

// New reads SIGNALS_INSERT_TIMEOUT (default 5s)
func New(deps modkit.Deps) *Module {
	c := deps.Cfg.Prefix("SIGNALS_")
	svc := service.New(deps, service.Config{
		InsertTimeout: c.MayDuration("INSERT_TIMEOUT", 0),
	})
	return &Module{svc: svc, ports: Ports{Processor: svc, Reader: svc}}
}

// Service returns the processor
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "signals" }

// MountRoutes mounts GET /v1/signals/{id}
func (m *Module) MountRoutes(r phttp.Router) {
	phttp.GetJSON(r, "/v1/signals/{id}", func(req *stdhttp.Request) (any, error) {
		id, err := uuid.Parse(phttp.Param(req, "id"))
		if err != nil {
			return nil, perr.WithField(perr.InvalidArgf("invalid signal id"), "id")
		}
		return m.svc.Get(req.Context(), id)
	})
}
