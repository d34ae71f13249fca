// Package module wires the collection dispatcher and its operator routes
package module

import (
	"encoding/json"
	stdhttp "net/http"
	"time"

	"newsroom/internal/core/priority"
	"newsroom/internal/core/signal"
	"newsroom/internal/modkit"
	perr "newsroom/internal/platform/errors"
	phttp "newsroom/internal/platform/net/http"
	"newsroom/internal/services/collection/domain"
	crepo "newsroom/internal/services/collection/repo"
	"newsroom/internal/services/collection/service"

	"github.com/google/uuid"
)

// Ports holds the ports exposed by the collection module
type Ports struct {
	Dispatcher domain.DispatcherPort
	Collector  domain.CollectorPort
}

// Module is the collection module
type Module struct {
	svc   *service.Svc
	ports Ports
}

// New reads DISPATCH_COLLECTION_LIMIT (default 500) and
// DISPATCH_COLLECT_TIMEOUT (default 150s)
func New(deps modkit.Deps, d service.Deps) *Module {
	c := deps.Cfg.Prefix("DISPATCH_")
	svc := service.New(deps, d, service.Config{
		Limit:       c.MayInt("COLLECTION_LIMIT", 500),
		TaskTimeout: c.MayDuration("COLLECT_TIMEOUT", 150*time.Second),
	})
	return &Module{svc: svc, ports: Ports{Dispatcher: svc, Collector: svc}}
}

// Service returns the dispatcher
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "collection" }

// MethodInput is the body of POST /v1/methods
type MethodInput struct {
	Type       string          `json:"method_type" validate:"required,oneof=rss scrape email RSS SCRAPE EMAIL"`
	Name       string          `json:"name" validate:"required,max=200"`
	SourceName string          `json:"source_name" validate:"max=200"`
	Config     json.RawMessage `json:"config"`
	Priority   string          `json:"priority" validate:"omitempty,oneof=breaking high normal low"`
	Breaking   bool            `json:"breaking"`
	Frequency  string          `json:"frequency"`
	Disabled   bool            `json:"disabled"`
}

// MountRoutes mounts the dispatch trigger and the method routes
func (m *Module) MountRoutes(r phttp.Router) {
	r.Post("/v1/dispatch/collection", phttp.Handle(func(req *stdhttp.Request) phttp.Response {
		res, err := m.svc.Dispatch(req.Context())
		if err != nil {
			return phttp.Error(err)
		}
		return phttp.OK(res)
	}))

	phttp.GetJSON(r, "/v1/methods", func(req *stdhttp.Request) (any, error) {
		f := crepo.Filter{EnabledOnly: req.URL.Query().Get("enabled") == "true", Limit: 500}
		if t := req.URL.Query().Get("type"); t != "" {
			typ, err := signal.ParseType(t)
			if err != nil {
				return nil, perr.WithField(err, "type")
			}
			f.Type = typ
		}
		return m.svc.List(req.Context(), f)
	})

	phttp.PostJSON(r, "/v1/methods", func(req *stdhttp.Request, in MethodInput) (any, error) {
		typ, err := signal.ParseType(in.Type)
		if err != nil {
			return nil, perr.WithField(err, "method_type")
		}
		var every time.Duration
		if in.Frequency != "" {
			every, err = time.ParseDuration(in.Frequency)
			if err != nil || every <= 0 {
				return nil, perr.WithField(perr.Validationf("frequency must be a positive duration"), "frequency")
			}
		}
		out, err := m.svc.Create(req.Context(), domain.Method{
			Type: typ, Name: in.Name, SourceName: in.SourceName, Config: in.Config,
			Priority: priority.Parse(in.Priority), Breaking: in.Breaking,
			Frequency: every, Enabled: !in.Disabled,
		})
		if err != nil {
			return nil, err
		}
		return phttp.Created(out), nil
	})

	r.Post("/v1/methods/{id}/scan", phttp.Handle(func(req *stdhttp.Request) phttp.Response {
		id, err := uuid.Parse(phttp.Param(req, "id"))
		if err != nil {
			return phttp.Error(perr.WithField(perr.InvalidArgf("invalid method id"), "id"))
		}
		queued, err := m.svc.Trigger(req.Context(), id)
		if err != nil {
			return phttp.Error(err)
		}
		return phttp.Accepted(map[string]bool{"queued": queued})
	}))
}
