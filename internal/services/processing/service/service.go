// Package service is the processing dispatcher and the process task handler
package service

import (
	"context"
	"time"

	"newsroom/internal/core/priority"
	"newsroom/internal/modkit"
	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	"newsroom/internal/services/processing/domain"
	prepo "newsroom/internal/services/processing/repo"
	sdom "newsroom/internal/services/signals/domain"
	tdom "newsroom/internal/services/tasks/domain"

	"github.com/google/uuid"
)

// Config controls one dispatch
type Config struct {
	BatchSize       int
	RedispatchAfter time.Duration
	TaskTimeout     time.Duration
}

// Deps are the collaborators the dispatcher is built from
type Deps struct {
	Tasks  tdom.TxEnqueuePort
	Reader sdom.ReaderPort
	// Processors maps a tier to its processor; tiers without one use Fallback
	Processors map[priority.Tier]domain.TierProcessor
	Fallback   domain.TierProcessor
}

// Svc implements DispatcherPort
type Svc struct {
	tx    repokit.TxRunner
	repos repokit.Binder[prepo.Repo]
	d     Deps
	cfg   Config
}

// New constructs the dispatcher on the pool
func New(deps modkit.Deps, d Deps, cfg Config) *Svc {
	return newSvc(deps.PG, prepo.NewPG(), d, cfg)
}

func newSvc(tx repokit.TxRunner, repos repokit.Binder[prepo.Repo], d Deps, cfg Config) *Svc {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = domain.DefaultBatchSize
	}
	if cfg.RedispatchAfter <= 0 {
		cfg.RedispatchAfter = 15 * time.Minute
	}
	if d.Fallback == nil {
		d.Fallback = PassThrough()
	}
	return &Svc{tx: tx, repos: repos, d: d, cfg: cfg}
}

// PassThrough accepts every record as processed
func PassThrough() domain.TierProcessor {
	return domain.TierProcessorFunc(func(ctx context.Context, rec sdom.Record) error {
		logger.C(ctx).Debug().
			Str("signal_id", rec.ID.String()).
			Str("priority", string(rec.Priority)).
			Msg("record passed through")
		return nil
	})
}

// Dispatch emits every eligible breaking record onto the breaking queue,
// then up to BatchSize other records by tier rank onto processing-<tier>,
// and stamps them dispatched. All in one transaction
func (s *Svc) Dispatch(ctx context.Context) (domain.Result, error) {
	var res domain.Result
	err := repokit.WithTx(ctx, s.tx, func(q repokit.Queryer) error {
		res = domain.Result{ByQueue: map[string]int{}}
		repo := s.repos.Bind(q)

		breaking, err := repo.PendingBreaking(ctx, s.cfg.RedispatchAfter)
		if err != nil {
			return perr.FromPostgres(err, "select breaking")
		}
		tiered, err := repo.PendingTiered(ctx, uint64(s.cfg.BatchSize), s.cfg.RedispatchAfter)
		if err != nil {
			return perr.FromPostgres(err, "select tiered")
		}

		enq := s.d.Tasks.Within(q)
		ids := make([]uuid.UUID, 0, len(breaking)+len(tiered))
		for _, c := range append(breaking, tiered...) {
			ok, err := enq.Enqueue(ctx, tdom.NewTask{
				Queue:   c.Queue(),
				Kind:    tdom.KindProcess,
				Key:     c.Key(),
				Payload: domain.Payload{SignalID: c.ID},
				Timeout: s.cfg.TaskTimeout,
			})
			if err != nil {
				return err
			}
			ids = append(ids, c.ID)
			switch {
			case !ok:
				res.Skipped++
				continue
			case c.Breaking:
				res.Breaking++
			default:
				res.Tiered++
			}
			res.ByQueue[c.Queue()]++
		}
		return repo.MarkDispatched(ctx, ids)
	})
	if err != nil {
		return domain.Result{ByQueue: map[string]int{}}, err
	}

	if res.Total() > 0 || res.Skipped > 0 {
		logger.C(ctx).Info().
			Int("breaking", res.Breaking).
			Int("tiered", res.Tiered).
			Int("skipped", res.Skipped).
			Interface("by_queue", res.ByQueue).
			Msg("processing dispatched")
	}
	return res, nil
}

// Handle is the process task handler. Terminal records are left alone; a
// failure on the last attempt, or one that cannot succeed, marks the record
// failed
func (s *Svc) Handle(ctx context.Context, t tdom.Task) error {
	var p domain.Payload
	if err := t.Decode(&p); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "decode process payload")
	}
	rec, err := s.d.Reader.Get(ctx, p.SignalID)
	if err != nil {
		return err
	}
	log := logger.C(ctx).With().Str("signal_id", rec.ID.String()).Logger()
	if rec.Status.Terminal() {
		log.Debug().Str("status", string(rec.Status)).Msg("record already settled")
		return nil
	}

	repo := s.repos.Bind(s.tx)
	if err := s.processor(rec.Priority).Process(ctx, rec); err != nil {
		return s.fail(ctx, repo, t, rec, err)
	}
	return repo.MarkProcessed(ctx, rec.ID)
}

func (s *Svc) fail(ctx context.Context, repo prepo.Repo, t tdom.Task, rec sdom.Record, cause error) error {
	if !t.Final() && !perr.Permanent(cause) {
		return cause
	}
	settle, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := repo.MarkFailed(settle, rec.ID, cause.Error()); err != nil {
		logger.C(ctx).Error().Err(err).AnErr("cause", cause).Msg("mark failed")
	}
	return cause
}

// Abandon is the dead handler for process tasks: a task the queue gave up on
// without the handler settling it leaves its record failed, so the record
// stops coming back to the pending pool
func (s *Svc) Abandon(ctx context.Context, t tdom.Task, reason string) error {
	var p domain.Payload
	if err := t.Decode(&p); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "decode process payload")
	}
	if reason == "" {
		reason = "process task abandoned"
	}
	if err := s.repos.Bind(s.tx).MarkFailed(ctx, p.SignalID, reason); err != nil {
		return err
	}
	logger.C(ctx).Warn().Str("signal_id", p.SignalID.String()).Str("reason", reason).Msg("signal abandoned by the queue")
	return nil
}

func (s *Svc) processor(t priority.Tier) domain.TierProcessor {
	if p, ok := s.d.Processors[t]; ok && p != nil {
		return p
	}
	return s.d.Fallback
}

var _ domain.DispatcherPort = (*Svc)(nil)
