// Package module wires the scan run ledger
package module

import (
	stdhttp "net/http"

	"newsroom/internal/modkit"
	phttp "newsroom/internal/platform/net/http"
	"newsroom/internal/services/runlog/domain"
	"newsroom/internal/services/runlog/service"
)

// Ports holds the ports exposed by the runlog module
type Ports struct {
	Ledger domain.LedgerPort
}

// Module is the run ledger module
type Module struct {
	svc   *service.Svc
	ports Ports
}

// New writes to deps.CH when it is set
func New(deps modkit.Deps) *Module {
	svc := service.New(deps.CH)
	return &Module{svc: svc, ports: Ports{Ledger: svc}}
}

// Service returns the ledger
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "runlog" }

// MountRoutes mounts GET /v1/methods/{id}/runs
func (m *Module) MountRoutes(r phttp.Router) {
	phttp.GetJSON(r, "/v1/methods/{id}/runs", func(req *stdhttp.Request) (any, error) {
		return m.svc.Recent(req.Context(), phttp.Param(req, "id"), 50)
	})
}
