// Package email turns inbound newsletter and press mail into signals, routed
// by a sender classifier
package email

import (
	"context"
	"iter"
	"time"

	"newsroom/internal/core/signal"
	"newsroom/internal/core/textclean"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	pstrings "newsroom/internal/platform/strings"
	dom "newsroom/internal/services/collectors/domain"
)

const defaultBatch = 100

// MetaInboundID carries the inbox row a signal was read from
const MetaInboundID = "inbound_id"

// Message is one stored inbound email
type Message struct {
	ID          string
	MessageID   string
	FromAddress string
	FromName    string
	Subject     string
	BodyText    string
	BodyHTML    string
	ReceivedAt  time.Time
}

// Inbox is the store the collector drains
type Inbox interface {
	Pending(ctx context.Context, limit int) ([]Message, error)
	MarkConsumed(ctx context.Context, id string) error
}

// Config is the method config for the email collector
type Config struct {
	Batch int `json:"batch"`
}

// Collector drains the inbox once per scan
type Collector struct {
	inbox Inbox
	cls   *Classifier
}

// New builds the email collector
func New(inbox Inbox, cls *Classifier) *Collector {
	return &Collector{inbox: inbox, cls: cls}
}

// ScannerType is EMAIL
func (*Collector) ScannerType() signal.Type { return signal.Email }

// ValidateConfiguration requires an inbox and at least one mapping
func (c *Collector) ValidateConfiguration(ctx context.Context, opts dom.Options) bool {
	var cfg Config
	var reason error
	switch {
	case c.inbox == nil:
		reason = perr.Configf("email: no inbox configured")
	case c.cls == nil || c.cls.Len() == 0:
		reason = perr.Configf("email: no sender mappings loaded")
	default:
		if err := opts.Decode(&cfg); err != nil {
			reason = err
		} else if cfg.Batch < 0 {
			reason = perr.WithField(perr.Configf("email: batch must not be negative"), "batch")
		}
	}
	if reason != nil {
		logger.C(ctx).Error().Err(reason).Str("method_id", opts.MethodID).Msg("email: invalid configuration")
		return false
	}
	return true
}

// Scan reads one batch of pending mail. Unmapped and unreadable messages are
// consumed here; a mapped message stays pending until Ack, so one the
// consumer failed to store comes back on the next scan
func (c *Collector) Scan(ctx context.Context, opts dom.Options) (iter.Seq2[signal.Signal, error], error) {
	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultBatch
	}
	msgs, err := c.inbox.Pending(ctx, cfg.Batch)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeSource, "email: read inbox")
	}

	log := logger.C(ctx)
	return func(yield func(signal.Signal, error) bool) {
		for _, m := range msgs {
			mapping, ok := c.cls.Classify(m.FromAddress, m.FromName)
			if !ok {
				log.Info().Str("from", m.FromAddress).Str("message_id", m.MessageID).Msg("email: sender not mapped, skipping")
				if err := c.consume(ctx, m); err != nil {
					yield(signal.Signal{}, err)
					return
				}
				continue
			}

			sig, err := toSignal(m, mapping)
			if err == nil {
				if !yield(sig, nil) {
					return
				}
				continue
			}
			if !yield(signal.Signal{}, perr.WithOp(perr.Wrapf(err, perr.ErrorCodeExtraction, "email %s", m.MessageID), "email.Scan")) {
				return
			}
			// a message that cannot be read now never will be
			if err := c.consume(ctx, m); err != nil {
				yield(signal.Signal{}, err)
				return
			}
		}
	}, nil
}

// Ack consumes the message s was built from once it has been stored
func (c *Collector) Ack(ctx context.Context, _ dom.Options, s signal.Signal) error {
	id, _ := s.Metadata[MetaInboundID].(string)
	if id == "" {
		return perr.WithField(perr.Sourcef("email: signal has no inbound id"), MetaInboundID)
	}
	if err := c.inbox.MarkConsumed(ctx, id); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeSource, "email: mark %s consumed", id)
	}
	return nil
}

func (c *Collector) consume(ctx context.Context, m Message) error {
	if err := c.inbox.MarkConsumed(ctx, m.ID); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeSource, "email: mark %s consumed", m.MessageID)
	}
	return nil
}

func toSignal(m Message, mapping Mapping) (signal.Signal, error) {
	title := textclean.Title(m.Subject)
	if title == "" {
		return signal.Signal{}, perr.WithField(perr.Extractionf("empty subject"), "subject")
	}

	body := textclean.Text(m.BodyText)
	if body == "" && m.BodyHTML != "" {
		body = textclean.HTML(m.BodyHTML)
	}

	meta := map[string]any{
		signal.MetaSourceID: mapping.ID,
		"from":              m.FromAddress,
		MetaInboundID:       m.ID,
	}
	if mapping.Tier != "" {
		meta[signal.MetaPriority] = string(mapping.TierOrDefault())
	}
	if mapping.Breaking {
		meta[signal.MetaBreaking] = true
	}

	return signal.Signal{
		Title:       title,
		Content:     pstrings.Ptr(body),
		AuthorName:  pstrings.FirstNonEmpty(textclean.Text(m.FromName), m.FromAddress),
		SourceName:  pstrings.Ptr(mapping.SourceName),
		PublishedAt: m.ReceivedAt.UTC(),
		Type:        signal.Email,
		Metadata:    meta,
		OriginalID:  pstrings.Ptr(m.MessageID),
		// mail has no url; the message id keeps two letters with one subject apart
		ContentHash: signal.ContentHash(signal.Email, "mid:"+m.MessageID, title),
	}, nil
}
