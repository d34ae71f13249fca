// Package module wires the task queue and exposes its ports
package module

import (
	stdhttp "net/http"

	"newsroom/internal/modkit"
	phttp "newsroom/internal/platform/net/http"
	"newsroom/internal/services/tasks/service"
)

// Module is the task queue module
type Module struct {
	deps  modkit.Deps
	svc   *service.Svc
	ports Ports
}

// New constructs the module; zero fields of overrides keep config values
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if len(overrides.Queues) > 0 {
		opts.Queues = overrides.Queues
	}
	if overrides.DefaultPool != 0 {
		opts.DefaultPool = overrides.DefaultPool
	}
	if overrides.Batch != 0 {
		opts.Batch = overrides.Batch
	}
	if overrides.Poll != 0 {
		opts.Poll = overrides.Poll
	}
	for q, n := range overrides.PoolSizes {
		opts.PoolSizes[q] = n
	}

	svc := service.New(deps, service.Config{
		Queues:      opts.Queues,
		PoolSizes:   opts.PoolSizes,
		DefaultPool: opts.DefaultPool,
		Batch:       opts.Batch,
		Poll:        opts.Poll,
		RetryBase:   opts.RetryBase,
		WorkerID:    opts.WorkerID,
	})
	return &Module{deps: deps, svc: svc, ports: Ports{Enqueuer: svc, TxEnqueuer: svc, Worker: svc, Stats: svc}}
}

// Service exposes the concrete service so main can register handlers
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "tasks" }

// MountRoutes mounts GET /v1/queues
func (m *Module) MountRoutes(r phttp.Router) {
	phttp.GetJSON(r, "/v1/queues", func(req *stdhttp.Request) (any, error) {
		return m.svc.Depth(req.Context())
	})
}
