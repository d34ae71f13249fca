// Package service accepts inbound email, serves it to the email collector
// and exposes the sender classifier
package service

import (
	"context"
	"strings"
	"time"

	"newsroom/internal/adapters/collect/email"
	"newsroom/internal/modkit"
	"newsroom/internal/modkit/repokit"
	"newsroom/internal/platform/logger"
	irepo "newsroom/internal/services/inbound/repo"
)

// Input is one email as delivered by the mail relay webhook
type Input struct {
	MessageID  string    `json:"message_id" validate:"required,max=998"`
	From       string    `json:"from" validate:"required,max=998"`
	Subject    string    `json:"subject" validate:"max=2000"`
	Text       string    `json:"text"`
	HTML       string    `json:"html"`
	ReceivedAt time.Time `json:"received_at"`
}

// Receipt acknowledges a stored email
type Receipt struct {
	ID       string         `json:"id"`
	Created  bool           `json:"created"`
	Matched  bool           `json:"matched"`
	Mapping  *email.Mapping `json:"mapping,omitempty"`
	Received time.Time      `json:"received_at"`
}

// Verdict is the classifier outcome for one sender
type Verdict struct {
	Address string         `json:"address"`
	Name    string         `json:"name"`
	Matched bool           `json:"matched"`
	Mapping *email.Mapping `json:"mapping,omitempty"`
}

// Svc implements email.Inbox
type Svc struct {
	repo irepo.Repo
	cls  *email.Classifier
	now  func() time.Time
}

// New builds the inbox on the pool
func New(deps modkit.Deps, cls *email.Classifier) *Svc {
	return newSvc(repokit.MustBind(irepo.NewPG(), deps.PG), cls)
}

func newSvc(r irepo.Repo, cls *email.Classifier) *Svc {
	if cls == nil {
		cls, _ = email.NewClassifier(nil)
	}
	return &Svc{repo: r, cls: cls, now: time.Now}
}

// Receive stores in. Unmapped senders are stored too; the collector decides
func (s *Svc) Receive(ctx context.Context, in Input) (Receipt, error) {
	addr, name := email.ParseFrom(in.From)
	at := in.ReceivedAt
	if at.IsZero() {
		at = s.now()
	}
	msg := email.Message{
		MessageID:   strings.Trim(strings.TrimSpace(in.MessageID), "<>"),
		FromAddress: strings.ToLower(addr),
		FromName:    name,
		Subject:     in.Subject,
		BodyText:    in.Text,
		BodyHTML:    in.HTML,
		ReceivedAt:  at.UTC(),
	}
	id, created, err := s.repo.Store(ctx, msg)
	if err != nil {
		return Receipt{}, err
	}

	rc := Receipt{ID: id, Created: created, Received: msg.ReceivedAt}
	if m, ok := s.cls.Classify(msg.FromAddress, msg.FromName); ok {
		rc.Matched, rc.Mapping = true, &m
	}
	ev := logger.C(ctx).Info()
	if !created {
		ev = logger.C(ctx).Debug()
	}
	ev.Str("message_id", msg.MessageID).
		Str("from", msg.FromAddress).
		Bool("created", created).
		Bool("matched", rc.Matched).
		Msg("inbound email")
	return rc, nil
}

// Classify runs the sender classifier on a From value
func (s *Svc) Classify(from string) Verdict {
	addr, name := email.ParseFrom(from)
	v := Verdict{Address: addr, Name: name}
	if m, ok := s.cls.Classify(addr, name); ok {
		v.Matched, v.Mapping = true, &m
	}
	return v
}

// Pending serves the email collector
func (s *Svc) Pending(ctx context.Context, limit int) ([]email.Message, error) {
	return s.repo.Pending(ctx, limit)
}

// MarkConsumed serves the email collector
func (s *Svc) MarkConsumed(ctx context.Context, id string) error {
	return s.repo.MarkConsumed(ctx, id)
}

var _ email.Inbox = (*Svc)(nil)
