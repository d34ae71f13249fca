// Package module wires the scheduler to the dispatcher ports
package module

import (
	"context"
	"time"

	"newsroom/internal/modkit"
	phttp "newsroom/internal/platform/net/http"
	cdom "newsroom/internal/services/collection/domain"
	pdom "newsroom/internal/services/processing/domain"
	"newsroom/internal/services/scheduler/service"
)

// Ports holds the ports exposed by the scheduler module
type Ports struct {
	Runner interface {
		Run(ctx context.Context) error
	}
}

// Module is the scheduler module
type Module struct {
	svc   *service.Svc
	ports Ports
}

// New reads SCHEDULER_COLLECTION_EVERY (default 1m),
// SCHEDULER_PROCESSING_EVERY (default 30s) and SCHEDULER_JOB_TIMEOUT
func New(deps modkit.Deps, collection cdom.DispatcherPort, processing pdom.DispatcherPort) *Module {
	c := deps.Cfg.Prefix("SCHEDULER_")
	svc := service.New(
		func(ctx context.Context) (int, error) {
			res, err := collection.Dispatch(ctx)
			return res.Enqueued, err
		},
		func(ctx context.Context) (int, error) {
			res, err := processing.Dispatch(ctx)
			return res.Total(), err
		},
		service.Config{
			CollectionEvery: c.MayDuration("COLLECTION_EVERY", time.Minute),
			ProcessingEvery: c.MayDuration("PROCESSING_EVERY", 30*time.Second),
			JobTimeout:      c.MayDuration("JOB_TIMEOUT", 30*time.Second),
		},
	)
	return &Module{svc: svc, ports: Ports{Runner: svc}}
}

// Service returns the scheduler
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "scheduler" }

// MountRoutes mounts nothing
func (m *Module) MountRoutes(phttp.Router) {}
