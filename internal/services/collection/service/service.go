// Package service is the collection dispatcher and the collect task handler
package service

import (
	"context"
	"strconv"
	"time"

	"newsroom/internal/modkit"
	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	"newsroom/internal/services/collection/domain"
	crepo "newsroom/internal/services/collection/repo"
	cdom "newsroom/internal/services/collectors/domain"
	fdom "newsroom/internal/services/feeds/domain"
	rdom "newsroom/internal/services/runlog/domain"
	tdom "newsroom/internal/services/tasks/domain"

	"github.com/google/uuid"
)

// Config bounds one dispatch
type Config struct {
	// Limit caps methods claimed per dispatch
	Limit int
	// TaskTimeout is the collect task lease; it must outlive a scan
	TaskTimeout time.Duration
}

// Svc implements DispatcherPort and CollectorPort
type Svc struct {
	tx       repokit.TxRunner
	repos    repokit.Binder[crepo.Repo]
	tasks    tdom.TxEnqueuePort
	registry cdom.Registry
	feeds    fdom.ManagerPort
	ledger   rdom.LedgerPort
	cfg      Config
	now      func() time.Time
}

// Deps are the collaborators the dispatcher is built from
type Deps struct {
	Tasks    tdom.TxEnqueuePort
	Registry cdom.Registry
	Feeds    fdom.ManagerPort
	Ledger   rdom.LedgerPort
}

// New constructs the dispatcher on the pool
func New(deps modkit.Deps, d Deps, cfg Config) *Svc {
	return newSvc(deps.PG, crepo.NewPG(), d, cfg)
}

func newSvc(tx repokit.TxRunner, repos repokit.Binder[crepo.Repo], d Deps, cfg Config) *Svc {
	if cfg.Limit <= 0 {
		cfg.Limit = 500
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = tdom.DefaultTimeout + 30*time.Second
	}
	return &Svc{
		tx: tx, repos: repos, tasks: d.Tasks, registry: d.Registry,
		feeds: d.Feeds, ledger: d.Ledger, cfg: cfg, now: time.Now,
	}
}

// Dispatch claims every due method whose type has a collector and emits one
// collect task per method onto collect-<type>. Claiming, advancing
// next_run_at and enqueueing commit together. It never waits for the scans
func (s *Svc) Dispatch(ctx context.Context) (domain.Result, error) {
	res := domain.Result{ByType: map[string]int{}}
	types := s.registry.Types()
	if len(types) == 0 {
		return res, nil
	}

	err := repokit.WithTx(ctx, s.tx, func(q repokit.Queryer) error {
		res = domain.Result{ByType: map[string]int{}}
		due, err := s.repos.Bind(q).LeaseDue(ctx, types, s.cfg.Limit)
		if err != nil {
			return perr.FromPostgres(err, "lease due methods")
		}
		res.Leased = len(due)

		enq := s.tasks.Within(q)
		for _, d := range due {
			ok, err := enq.Enqueue(ctx, tdom.NewTask{
				Queue:   d.Type.Queue(),
				Kind:    tdom.KindCollect,
				Key:     d.Key(),
				Payload: domain.Payload{MethodID: d.MethodID, DueAt: d.DueAt},
				Timeout: s.cfg.TaskTimeout,
			})
			if err != nil {
				return err
			}
			if ok {
				res.Enqueued++
				res.ByType[string(d.Type)]++
			}
		}
		return nil
	})
	if err != nil {
		return domain.Result{ByType: map[string]int{}}, err
	}

	if res.Leased > 0 {
		logger.C(ctx).Info().
			Int("leased", res.Leased).
			Int("enqueued", res.Enqueued).
			Interface("by_type", res.ByType).
			Msg("collection dispatched")
	}
	return res, nil
}

// Handle is the collect task handler
func (s *Svc) Handle(ctx context.Context, t tdom.Task) error {
	var p domain.Payload
	if err := t.Decode(&p); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "decode collect payload")
	}
	_, err := s.Collect(ctx, p.MethodID)
	return err
}

// Collect scans one method now and records the run. An aborted scan returns
// its cause so the queue can retry; records stored before the abort stay
func (s *Svc) Collect(ctx context.Context, id uuid.UUID) (int, error) {
	repo := s.repos.Bind(s.tx)
	m, err := repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	log := logger.C(ctx)
	if !m.Enabled {
		log.Info().Str("method_id", id.String()).Msg("method disabled; collect skipped")
		return 0, nil
	}
	c, err := s.registry.Lookup(m.Type)
	if err != nil {
		return 0, err
	}

	runID := uuid.New()
	rctx := logger.WithRun(ctx, runID.String(), id.String())
	started := s.now()
	rep := s.feeds.RunScanReport(rctx, c, m.Options())

	run := domain.Run{MethodID: id, At: started, Status: domain.RunOK, Ingested: rep.Result()}
	entry := rdom.Entry{
		RunID: runID, MethodID: id.String(), MethodType: domain.StoredType(m.Type),
		StartedAt: started, ElapsedMs: rep.Elapsed.Milliseconds(),
		Seen: rep.Seen, Ingested: rep.Ingested, Duplicates: rep.Duplicates, Failed: rep.Failed,
		Aborted: rep.Aborted,
	}
	if rep.Aborted {
		run.Status = domain.RunAborted
		if rep.Err != nil {
			run.Error = rep.Err.Error()
			entry.Error = run.Error
		}
	}

	settle, cancel := context.WithTimeout(context.WithoutCancel(rctx), 5*time.Second)
	defer cancel()
	if err := repo.RecordRun(settle, run); err != nil {
		logger.C(rctx).Warn().Err(err).Msg("record run failed")
	}
	if s.ledger != nil {
		if err := s.ledger.Append(settle, entry); err != nil {
			logger.C(rctx).Warn().Err(err).Msg("append run ledger failed")
		}
	}

	if rep.Aborted {
		if rep.Err == nil {
			return 0, perr.Sourcef("scan aborted")
		}
		return 0, rep.Err
	}
	return rep.Ingested, nil
}

// Trigger queues an immediate collect task for a method outside its
// schedule. Triggers within the same second share a key
func (s *Svc) Trigger(ctx context.Context, id uuid.UUID) (bool, error) {
	m, err := s.repos.Bind(s.tx).Get(ctx, id)
	if err != nil {
		return false, err
	}
	at := s.now().UTC().Truncate(time.Second)
	return s.tasks.Within(s.tx).Enqueue(ctx, tdom.NewTask{
		Queue:   m.Type.Queue(),
		Kind:    tdom.KindCollect,
		Key:     "collect:" + id.String() + ":manual:" + strconv.FormatInt(at.Unix(), 10),
		Payload: domain.Payload{MethodID: id, DueAt: at},
		Timeout: s.cfg.TaskTimeout,
	})
}

// Create adds a method, defaulting its cadence and tier
func (s *Svc) Create(ctx context.Context, m domain.Method) (domain.Method, error) {
	c, err := s.registry.Lookup(m.Type)
	if err != nil {
		return m, perr.WithField(perr.InvalidArgf("no collector for method type %s", m.Type), "method_type")
	}
	if m.Frequency <= 0 {
		m.Frequency = 15 * time.Minute
	}
	if !c.ValidateConfiguration(ctx, m.Options()) {
		return m, perr.WithField(perr.Validationf("invalid %s configuration", m.Type), "config")
	}
	return s.repos.Bind(s.tx).Create(ctx, m)
}

// List returns configured methods
func (s *Svc) List(ctx context.Context, f crepo.Filter) ([]domain.Method, error) {
	return s.repos.Bind(s.tx).List(ctx, f)
}

var (
	_ domain.DispatcherPort = (*Svc)(nil)
	_ domain.CollectorPort  = (*Svc)(nil)
)
