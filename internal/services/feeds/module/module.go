// Package module wires the feed manager
package module

import (
	"time"

	"newsroom/internal/modkit"
	phttp "newsroom/internal/platform/net/http"
	"newsroom/internal/services/feeds/domain"
	"newsroom/internal/services/feeds/service"
	sdom "newsroom/internal/services/signals/domain"
)

// Ports holds the ports exposed by the feeds module
type Ports struct {
	Manager domain.ManagerPort
}

// Module is the feed manager module
type Module struct {
	svc   *service.Svc
	ports Ports
}

// New reads FEEDS_SCAN_TIMEOUT (default 120s)
func New(deps modkit.Deps, proc sdom.ProcessorPort) *Module {
	c := deps.Cfg.Prefix("FEEDS_")
	svc := service.New(proc, service.Config{
		ScanTimeout: c.MayDuration("SCAN_TIMEOUT", 120*time.Second),
	})
	return &Module{svc: svc, ports: Ports{Manager: svc}}
}

// Service returns the manager
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "feeds" }

// MountRoutes mounts nothing; scans are driven by collect tasks
func (m *Module) MountRoutes(phttp.Router) {}
