package service

import (
	"context"
	"errors"
	"sync"
	"time"

	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	"newsroom/internal/services/tasks/domain"

	"github.com/panjf2000/ants/v2"
)

// Run starts one consumer per configured queue and a reaper, and blocks
// until ctx ends or a consumer fails to start
func (s *Svc) Run(ctx context.Context) error {
	if len(s.cfg.Queues) == 0 {
		return perr.Configf("tasks: no queues to consume")
	}
	errCh := make(chan error, len(s.cfg.Queues)+1)
	for _, q := range s.cfg.Queues {
		go func() { errCh <- s.consume(ctx, q) }()
	}
	go func() { errCh <- s.reap(ctx) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Svc) newPool(queue string) (*ants.Pool, error) {
	log := s.log.With().Str("queue", queue).Logger()
	return ants.NewPool(s.PoolSize(queue),
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			log.Error().Interface("panic", v).Msg("task pool worker panicked")
		}),
	)
}

// consume polls queue and runs leased tasks on a pool sized for it
func (s *Svc) consume(ctx context.Context, queue string) error {
	pool, err := s.newPool(queue)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeConfiguration, "tasks: pool for %s", queue)
	}
	defer func() { _ = pool.ReleaseTimeout(30 * time.Second) }()

	log := logger.Named("tasks").With().Str("queue", queue).Int("pool", pool.Cap()).Logger()
	log.Info().Msg("consumer started")

	t := time.NewTicker(s.cfg.Poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := s.dispatch(ctx, pool, queue, nil); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("lease failed")
			}
		}
	}
}

// dispatch leases as many tasks as the pool has room for and submits them.
// wg, when set, is released as each task settles
func (s *Svc) dispatch(ctx context.Context, pool *ants.Pool, queue string, wg *sync.WaitGroup) (int, error) {
	free := pool.Free()
	if free <= 0 {
		return 0, nil
	}
	tasks, err := s.repo.Lease(ctx, queue, min(free, s.cfg.Batch), s.cfg.WorkerID)
	if err != nil {
		return 0, err
	}
	for _, tk := range tasks {
		if wg != nil {
			wg.Add(1)
		}
		task := tk
		err := pool.Submit(func() {
			if wg != nil {
				defer wg.Done()
			}
			s.execute(ctx, task)
		})
		if err != nil {
			// the lease expires and the task comes back
			if wg != nil {
				wg.Done()
			}
			s.log.Warn().Err(err).Str("queue", queue).Str("task_id", task.ID.String()).Msg("pool rejected task")
		}
	}
	return len(tasks), nil
}

// Drain runs queue until a lease comes back empty, waiting for every task.
// Used by one-shot commands and tests
func (s *Svc) Drain(ctx context.Context, queue string) (int, error) {
	pool, err := s.newPool(queue)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	total := 0
	for {
		var wg sync.WaitGroup
		n, err := s.dispatch(ctx, pool, queue, &wg)
		wg.Wait()
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
}

func (s *Svc) reap(ctx context.Context) error {
	t := time.NewTicker(s.cfg.ReapEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := s.reapOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("reap failed")
			}
		}
	}
}

// reapOnce parks expired final leases and hands each to its dead handler
func (s *Svc) reapOnce(ctx context.Context) (int, error) {
	parked, err := s.repo.Reap(ctx)
	if err != nil {
		return 0, err
	}
	if len(parked) > 0 {
		s.log.Warn().Int("tasks", len(parked)).Msg("parked tasks whose final lease expired")
	}
	for _, t := range parked {
		s.buried(ctx, t, t.LastError)
	}
	return len(parked), nil
}

var _ interface {
	domain.EnqueuePort
	domain.TxEnqueuePort
	domain.WorkerPort
	domain.StatsPort
} = (*Svc)(nil)
