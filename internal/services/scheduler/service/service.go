// Package service runs both dispatchers on fixed cadences
package service

import (
	"context"
	"time"

	"newsroom/internal/platform/logger"
)

// Job is one dispatcher run; the int is what it emitted
type Job func(ctx context.Context) (int, error)

// Config sets the cadences
type Config struct {
	CollectionEvery time.Duration
	ProcessingEvery time.Duration
	// JobTimeout bounds one dispatcher run
	JobTimeout time.Duration
}

// Svc ticks the dispatchers
type Svc struct {
	collection Job
	processing Job
	cfg        Config
}

// New builds the scheduler
func New(collection, processing Job, cfg Config) *Svc {
	if cfg.CollectionEvery <= 0 {
		cfg.CollectionEvery = time.Minute
	}
	if cfg.ProcessingEvery <= 0 {
		cfg.ProcessingEvery = 30 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	return &Svc{collection: collection, processing: processing, cfg: cfg}
}

// Run fires each job immediately and then on its ticker until ctx ends.
// Job errors are logged; the loops keep going
func (s *Svc) Run(ctx context.Context) error {
	done := make(chan struct{}, 2)
	go func() { s.loop(ctx, "collection", s.cfg.CollectionEvery, s.collection); done <- struct{}{} }()
	go func() { s.loop(ctx, "processing", s.cfg.ProcessingEvery, s.processing); done <- struct{}{} }()
	<-done
	<-done
	return ctx.Err()
}

func (s *Svc) loop(ctx context.Context, name string, every time.Duration, job Job) {
	if job == nil {
		return
	}
	log := logger.Named("scheduler").With().Str("job", name).Logger()
	log.Info().Dur("every", every).Msg("scheduler loop started")

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		s.fire(ctx, &log, job)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Svc) fire(ctx context.Context, log *logger.Logger, job Job) {
	jctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()
	n, err := job(jctx)
	switch {
	case err != nil && ctx.Err() == nil:
		log.Error().Err(err).Msg("dispatch failed")
	case n > 0:
		log.Debug().Int("emitted", n).Msg("dispatch done")
	}
}
