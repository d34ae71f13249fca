package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"newsroom/internal/core/priority"
	"newsroom/internal/modkit/repokit"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/services/processing/domain"
	prepo "newsroom/internal/services/processing/repo"
	sdom "newsroom/internal/services/signals/domain"
	tdom "newsroom/internal/services/tasks/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct{ repokit.Queryer }

func (f fakeTx) Tx(_ context.Context, fn func(repokit.Queryer) error) error { return fn(f) }

// pool is an in-memory signals table
type pool struct {
	mu   sync.Mutex
	now  time.Time
	recs map[uuid.UUID]*sdom.Record
}

func newPool() *pool {
	return &pool{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), recs: map[uuid.UUID]*sdom.Record{}}
}

func (p *pool) add(tier priority.Tier, breaking bool, age time.Duration) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.New()
	p.recs[id] = &sdom.Record{
		ID: id, Priority: tier, Breaking: breaking, Status: sdom.StatusPending,
		CreatedAt: p.now.Add(-age), Title: id.String(),
	}
	return id
}

func (p *pool) eligible(breaking bool, after time.Duration) []domain.Candidate {
	var out []domain.Candidate
	for _, r := range p.recs {
		if r.Status != sdom.StatusPending || r.Breaking != breaking {
			continue
		}
		if r.DispatchedAt != nil && !r.DispatchedAt.Before(p.now.Add(-after)) {
			continue
		}
		out = append(out, domain.Candidate{ID: r.ID, Priority: r.Priority, Breaking: r.Breaking, CreatedAt: r.CreatedAt})
	}
	return out
}

func (p *pool) PendingBreaking(_ context.Context, after time.Duration) ([]domain.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.eligible(true, after)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (p *pool) PendingTiered(_ context.Context, limit uint64, after time.Duration) ([]domain.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.eligible(false, after)
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *pool) MarkDispatched(_ context.Context, ids []uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now
	for _, id := range ids {
		p.recs[id].DispatchedAt = &now
	}
	return nil
}

func (p *pool) settle(id uuid.UUID, st sdom.Status, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.recs[id]
	if r.Status != sdom.StatusPending {
		return
	}
	r.Status = st
	if reason != "" {
		r.LastError = &reason
	}
}

func (p *pool) MarkProcessed(_ context.Context, id uuid.UUID) error {
	p.settle(id, sdom.StatusProcessed, "")
	return nil
}

func (p *pool) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	p.settle(id, sdom.StatusFailed, reason)
	return nil
}

func (p *pool) Get(_ context.Context, id uuid.UUID) (sdom.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.recs[id]
	if !ok {
		return sdom.Record{}, perr.ErrNotFound
	}
	return *r, nil
}

type queue struct {
	keys  map[string]bool
	tasks []tdom.NewTask
}

func (q *queue) Within(repokit.Queryer) tdom.EnqueuePort { return q }

func (q *queue) Enqueue(_ context.Context, t tdom.NewTask) (bool, error) {
	if q.keys[t.Key] {
		return false, nil
	}
	q.keys[t.Key] = true
	q.tasks = append(q.tasks, t)
	return true, nil
}

func (q *queue) on(name string) []tdom.NewTask {
	var out []tdom.NewTask
	for _, t := range q.tasks {
		if t.Queue == name {
			out = append(out, t)
		}
	}
	return out
}

func setup(d Deps) (*Svc, *pool, *queue) {
	p := newPool()
	q := &queue{keys: map[string]bool{}}
	d.Tasks = q
	d.Reader = p
	repos := repokit.BindFunc[prepo.Repo](func(repokit.Queryer) prepo.Repo { return p })
	return newSvc(fakeTx{}, repos, d, Config{}), p, q
}

func signalOf(t tdom.NewTask) uuid.UUID { return t.Payload.(domain.Payload).SignalID }

func TestDispatchBreakingFirst(t *testing.T) {
	svc, p, q := setup(Deps{})
	for i := range 60 {
		p.add(priority.High, false, time.Duration(i)*time.Minute)
	}
	b1 := p.add(priority.Breaking, true, time.Second)
	b2 := p.add(priority.Low, true, time.Hour)

	res, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Breaking)
	assert.Equal(t, 50, res.Tiered)

	br := q.on(priority.BreakingQueue)
	require.Len(t, br, 2)
	assert.Equal(t, b2, signalOf(br[0]))
	assert.Equal(t, b1, signalOf(br[1]))
	assert.Equal(t, q.tasks[0].Queue, priority.BreakingQueue)
	assert.Equal(t, q.tasks[1].Queue, priority.BreakingQueue)
}

func TestDispatchBreakingUncapped(t *testing.T) {
	svc, p, q := setup(Deps{})
	for range 75 {
		p.add(priority.Normal, true, time.Minute)
	}
	res, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 75, res.Breaking)
	assert.Len(t, q.on("breaking"), 75)
}

func TestDispatchTierOrdering(t *testing.T) {
	svc, p, q := setup(Deps{})
	low := p.add(priority.Low, false, 3*time.Hour)
	custom := p.add(priority.Tier("local"), false, 4*time.Hour)
	normalOld := p.add(priority.Normal, false, 2*time.Hour)
	normalNew := p.add(priority.Normal, false, time.Minute)
	high := p.add(priority.High, false, time.Second)

	_, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	require.Len(t, q.tasks, 5)

	got := make([]uuid.UUID, len(q.tasks))
	for i, task := range q.tasks {
		got[i] = signalOf(task)
	}
	assert.Equal(t, []uuid.UUID{high, normalOld, normalNew}, got[:3])
	assert.ElementsMatch(t, []uuid.UUID{low, custom}, got[3:])
	assert.Equal(t, "processing-high", q.tasks[0].Queue)
	assert.Equal(t, "processing-normal", q.tasks[1].Queue)
	assert.Equal(t, "processing-local", q.on("processing-local")[0].Queue)
}

func TestDispatchBatchCap(t *testing.T) {
	svc, p, q := setup(Deps{})
	for i := range 120 {
		p.add(priority.Normal, false, time.Duration(120-i)*time.Second)
	}

	res, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, res.Tiered)
	assert.Len(t, q.tasks, 50)

	// the next dispatch takes the next 50, then the remaining 20
	res, err = svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, res.Tiered)
	res, err = svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, res.Tiered)
	assert.Len(t, q.tasks, 120)
}

func TestDispatchIdempotencyKeys(t *testing.T) {
	svc, p, q := setup(Deps{})
	id := p.add(priority.High, false, time.Minute)

	_, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)
	assert.Equal(t, "process:"+id.String(), q.tasks[0].Key)

	// redispatch window passed with the task still queued
	p.now = p.now.Add(time.Hour)
	res, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, q.tasks, 1)
}

func TestHandleMarksProcessed(t *testing.T) {
	var seen []priority.Tier
	svc, p, _ := setup(Deps{Processors: map[priority.Tier]domain.TierProcessor{
		priority.High: domain.TierProcessorFunc(func(_ context.Context, rec sdom.Record) error {
			seen = append(seen, rec.Priority)
			return nil
		}),
	}})
	high := p.add(priority.High, false, 0)
	low := p.add(priority.Low, false, 0)

	require.NoError(t, svc.Handle(context.Background(), task(high, 1)))
	require.NoError(t, svc.Handle(context.Background(), task(low, 1)))
	assert.Equal(t, []priority.Tier{priority.High}, seen)
	assert.Equal(t, sdom.StatusProcessed, p.recs[high].Status)
	assert.Equal(t, sdom.StatusProcessed, p.recs[low].Status)
}

func TestHandleTerminalIsNoop(t *testing.T) {
	calls := 0
	svc, p, _ := setup(Deps{Fallback: domain.TierProcessorFunc(func(context.Context, sdom.Record) error {
		calls++
		return nil
	})})
	id := p.add(priority.Normal, false, 0)
	p.recs[id].Status = sdom.StatusFailed

	require.NoError(t, svc.Handle(context.Background(), task(id, 1)))
	assert.Zero(t, calls)
	assert.Equal(t, sdom.StatusFailed, p.recs[id].Status)
}

func TestHandleFailureOnlyFinalMarksFailed(t *testing.T) {
	boom := errors.New("enrichment backend down")
	svc, p, _ := setup(Deps{Fallback: domain.TierProcessorFunc(func(context.Context, sdom.Record) error {
		return boom
	})})
	id := p.add(priority.Normal, false, 0)

	err := svc.Handle(context.Background(), task(id, 1))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, sdom.StatusPending, p.recs[id].Status)

	err = svc.Handle(context.Background(), task(id, tdom.DefaultMaxAttempts))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, sdom.StatusFailed, p.recs[id].Status)
	assert.Equal(t, boom.Error(), *p.recs[id].LastError)
}

func TestHandleMissingRecord(t *testing.T) {
	svc, _, _ := setup(Deps{})
	err := svc.Handle(context.Background(), task(uuid.New(), 1))
	assert.True(t, perr.Permanent(err), fmt.Sprint(err))
}

func task(id uuid.UUID, attempt int) tdom.Task {
	body, _ := json.Marshal(domain.Payload{SignalID: id})
	return tdom.Task{ID: uuid.New(), Kind: tdom.KindProcess, Payload: body, Attempts: attempt, MaxAttempts: tdom.DefaultMaxAttempts}
}

func TestAbandonSettlesStuckRecord(t *testing.T) {
	svc, p, q := setup(Deps{})
	id := p.add(priority.High, false, time.Minute)

	_, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)

	// the worker died on every delivery and the queue parked the task
	require.NoError(t, svc.Abandon(context.Background(), task(id, tdom.DefaultMaxAttempts), "lease expired on final attempt"))
	assert.Equal(t, sdom.StatusFailed, p.recs[id].Status)
	assert.Equal(t, "lease expired on final attempt", *p.recs[id].LastError)

	// the dead key still blocks an enqueue, but the record is no longer offered
	p.now = p.now.Add(time.Hour)
	res, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Total())
}

func TestAbandonLeavesSettledRecordAlone(t *testing.T) {
	svc, p, _ := setup(Deps{})
	id := p.add(priority.Normal, false, 0)
	require.NoError(t, svc.Handle(context.Background(), task(id, 1)))

	require.NoError(t, svc.Abandon(context.Background(), task(id, 3), ""))
	assert.Equal(t, sdom.StatusProcessed, p.recs[id].Status)
	assert.Nil(t, p.recs[id].LastError)
}
