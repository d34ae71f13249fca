// Package service runs the task queue: enqueue, per-queue consumers on ants
// pools, retry with backoff
package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"newsroom/internal/modkit"
	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	"newsroom/internal/services/tasks/domain"
	trepo "newsroom/internal/services/tasks/repo"
)

// Config controls the consumers
type Config struct {
	Queues      []string
	PoolSizes   map[string]int
	DefaultPool int
	Batch       int
	Poll        time.Duration
	RetryBase   time.Duration
	ReapEvery   time.Duration
	WorkerID    string
}

// Svc implements EnqueuePort, WorkerPort and StatsPort
type Svc struct {
	repo trepo.Repo
	bind repokit.Binder[trepo.Repo]
	cfg  Config
	log  logger.Logger

	mu       sync.RWMutex
	handlers map[domain.Kind]domain.Handler
	onDead   map[domain.Kind]domain.DeadHandler

	// bounds ack/nack after the task context is gone
	settleTimeout time.Duration
}

// New constructs the service on the pool
func New(deps modkit.Deps, cfg Config) *Svc {
	s := newSvc(trepo.NewPG().Bind(deps.PG), cfg)
	s.bind = trepo.NewPG()
	return s
}

func newSvc(r trepo.Repo, cfg Config) *Svc {
	if cfg.DefaultPool <= 0 {
		cfg.DefaultPool = 4
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 16
	}
	if cfg.Poll <= 0 {
		cfg.Poll = time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 5 * time.Second
	}
	if cfg.ReapEvery <= 0 {
		cfg.ReapEvery = time.Minute
	}
	if cfg.WorkerID == "" {
		host, _ := os.Hostname()
		cfg.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return &Svc{
		repo:          r,
		bind:          repokit.BindFunc[trepo.Repo](func(repokit.Queryer) trepo.Repo { return r }),
		cfg:           cfg,
		log:           *logger.Named("tasks"),
		handlers:      map[domain.Kind]domain.Handler{},
		onDead:        map[domain.Kind]domain.DeadHandler{},
		settleTimeout: 5 * time.Second,
	}
}

// Handle registers h for kind, replacing any previous handler
func (s *Svc) Handle(kind domain.Kind, h domain.Handler) {
	s.mu.Lock()
	s.handlers[kind] = h
	s.mu.Unlock()
}

// OnDead registers h to run when a task of kind is parked dead
func (s *Svc) OnDead(kind domain.Kind, h domain.DeadHandler) {
	s.mu.Lock()
	s.onDead[kind] = h
	s.mu.Unlock()
}

// buried runs the dead handler for t, if any. Failures are logged only; the
// task stays parked either way
func (s *Svc) buried(ctx context.Context, t domain.Task, reason string) {
	s.mu.RLock()
	h, ok := s.onDead[t.Kind]
	s.mu.RUnlock()
	if !ok {
		return
	}
	if err := h(ctx, t, reason); err != nil {
		logger.C(ctx).Error().Err(err).Str("kind", string(t.Kind)).Str("key", t.Key).Msg("dead task handler failed")
	}
}

func (s *Svc) handler(kind domain.Kind) (domain.Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[kind]
	return h, ok
}

// Enqueue emits t; false means its idempotency key was already queued
func (s *Svc) Enqueue(ctx context.Context, t domain.NewTask) (bool, error) {
	return s.repo.Enqueue(ctx, t)
}

// Within returns an enqueuer on q, so tasks commit with the caller's
// transaction
func (s *Svc) Within(q repokit.Queryer) domain.EnqueuePort {
	return s.bind.Bind(q)
}

// Depth reports per-queue counts
func (s *Svc) Depth(ctx context.Context) ([]domain.QueueDepth, error) {
	return s.repo.Depth(ctx)
}

// PoolSize is the worker count for queue
func (s *Svc) PoolSize(queue string) int {
	if n := s.cfg.PoolSizes[queue]; n > 0 {
		return n
	}
	return s.cfg.DefaultPool
}

// backoffFor doubles RetryBase per attempt up to 10 minutes
func backoffFor(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base << uint(min(attempt-1, 16))
	return min(d, 10*time.Minute)
}

// execute runs one task under its own timeout and settles it
func (s *Svc) execute(ctx context.Context, t domain.Task) {
	tctx := logger.WithTask(ctx, t.Queue, t.ID.String())
	log := logger.C(tctx)

	err := s.run(tctx, t)

	settle, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settleTimeout)
	defer cancel()

	if err == nil {
		if aerr := s.repo.Ack(settle, t.ID.String()); aerr != nil {
			log.Error().Err(aerr).Msg("ack failed; task will be redelivered")
		}
		return
	}

	final := t.Final() || perr.Permanent(err)
	back := backoffFor(t.Attempts, s.cfg.RetryBase)
	dead, nerr := s.repo.Nack(settle, t.ID.String(), back, err.Error(), final)
	if nerr != nil {
		log.Error().Err(nerr).AnErr("task_err", err).Msg("nack failed; task will be redelivered after its lease")
		return
	}
	ev := log.Warn()
	if dead {
		ev = log.Error()
		defer s.buried(settle, t, err.Error())
	}
	ev.Err(err).
		Str("kind", string(t.Kind)).
		Str("key", t.Key).
		Int("attempt", t.Attempts).
		Int("max_attempts", t.MaxAttempts).
		Bool("dead", dead).
		Dur("retry_in", back).
		Msg("task failed")
}

func (s *Svc) run(ctx context.Context, t domain.Task) (err error) {
	h, ok := s.handler(t.Kind)
	if !ok {
		return perr.Configf("no handler for task kind %q", t.Kind)
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = perr.PanicErrf("task panicked: %v", r)
		}
	}()
	return h(ctx, t)
}
