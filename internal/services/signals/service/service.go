// Package service implements the signal processor
package service

import (
	"context"
	"time"

	"newsroom/internal/core/signal"
	"newsroom/internal/modkit"
	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	"newsroom/internal/services/signals/domain"
	srepo "newsroom/internal/services/signals/repo"

	"github.com/google/uuid"
)

// Config controls the processor
type Config struct {
	InsertTimeout time.Duration
}

// Svc implements ProcessorPort and ReaderPort
type Svc struct {
	repo srepo.Repo
	cfg  Config
}

// New constructs the processor on the pool
func New(deps modkit.Deps, cfg Config) *Svc {
	return newSvc(repokit.MustBind(srepo.NewPG(), deps.PG), cfg)
}

func newSvc(r srepo.Repo, cfg Config) *Svc {
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = 5 * time.Second
	}
	return &Svc{repo: r, cfg: cfg}
}

// Process ingests s with no method defaults
func (s *Svc) Process(ctx context.Context, sig signal.Signal) (uuid.UUID, bool, error) {
	return s.Ingest(ctx, signal.Origin{}, sig)
}

// Ingest validates sig and inserts it as a pending record. A signal whose
// hash is already stored returns (uuid.Nil, false, nil)
func (s *Svc) Ingest(ctx context.Context, o signal.Origin, sig signal.Signal) (uuid.UUID, bool, error) {
	if err := sig.Validate(); err != nil {
		return uuid.Nil, false, err
	}
	rec := domain.FromSignal(o, sig)
	log := logger.C(ctx)

	ictx, cancel := context.WithTimeout(ctx, s.cfg.InsertTimeout)
	defer cancel()

	id, created, err := s.repo.Insert(ictx, rec)
	switch {
	case err != nil && perr.IsDuplicateKey(err):
		// a unique violation from any other path is still a duplicate
		created = false
	case err != nil:
		return uuid.Nil, false, perr.FromPostgres(err, "insert signal")
	}
	if !created {
		log.Info().
			Str("content_hash", rec.ContentHash).
			Str("type", string(rec.Type)).
			Str("title", rec.Title).
			Msg("duplicate signal skipped")
		return uuid.Nil, false, nil
	}

	log.Debug().
		Str("signal_id", id.String()).
		Str("content_hash", rec.ContentHash).
		Str("priority", string(rec.Priority)).
		Bool("breaking", rec.Breaking).
		Msg("signal ingested")
	return id, true, nil
}

// Get loads a record
func (s *Svc) Get(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return rec, perr.WrapIf(err, perr.ErrorCodeDB, "get signal")
	}
	return rec, nil
}

var (
	_ domain.ProcessorPort = (*Svc)(nil)
	_ domain.ReaderPort    = (*Svc)(nil)
)
