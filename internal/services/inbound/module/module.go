// Package module wires the inbound mail store and its webhook routes
package module

import (
	stdhttp "net/http"

	"newsroom/internal/adapters/collect/email"
	"newsroom/internal/modkit"
	phttp "newsroom/internal/platform/net/http"
	"newsroom/internal/services/inbound/service"
)

// Ports holds the ports exposed by the inbound module
type Ports struct {
	Inbox email.Inbox
}

// Module is the inbound mail module
type Module struct {
	svc   *service.Svc
	ports Ports
}

// New builds the inbox with the loaded sender classifier
func New(deps modkit.Deps, cls *email.Classifier) *Module {
	svc := service.New(deps, cls)
	return &Module{svc: svc, ports: Ports{Inbox: svc}}
}

// Service returns the inbox
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "inbound" }

// ClassifyInput is the body of POST /v1/classify/sender
type ClassifyInput struct {
	From string `json:"from" validate:"required,max=998"`
}

// MountRoutes mounts the webhook and the classifier probe
func (m *Module) MountRoutes(r phttp.Router) {
	phttp.PostJSON(r, "/v1/inbound/email", func(req *stdhttp.Request, in service.Input) (any, error) {
		rc, err := m.svc.Receive(req.Context(), in)
		if err != nil {
			return nil, err
		}
		if rc.Created {
			return phttp.Accepted(rc), nil
		}
		return rc, nil
	})

	phttp.PostJSON(r, "/v1/classify/sender", func(_ *stdhttp.Request, in ClassifyInput) (any, error) {
		return m.svc.Classify(in.From), nil
	})
}
