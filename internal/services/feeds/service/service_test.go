package service

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"newsroom/internal/adapters/collect/fetch"
	"newsroom/internal/adapters/collect/rss"
	"newsroom/internal/core/priority"
	"newsroom/internal/core/signal"
	perr "newsroom/internal/platform/errors"
	cdom "newsroom/internal/services/collectors/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	sig signal.Signal
	err error
}

// stubCollector yields a fixed script
type stubCollector struct {
	valid    bool
	startErr error
	items    []item
	pulled   int
}

func (c *stubCollector) ScannerType() signal.Type { return signal.RSS }

func (c *stubCollector) ValidateConfiguration(context.Context, cdom.Options) bool { return c.valid }

func (c *stubCollector) Scan(context.Context, cdom.Options) (iter.Seq2[signal.Signal, error], error) {
	if c.startErr != nil {
		return nil, c.startErr
	}
	return func(yield func(signal.Signal, error) bool) {
		for _, it := range c.items {
			c.pulled++
			if !yield(it.sig, it.err) {
				return
			}
		}
	}, nil
}

// stubProcessor dedups by hash and fails titles listed in failOn
type stubProcessor struct {
	mu      sync.Mutex
	seen    map[string]bool
	failOn  map[string]error
	origins []signal.Origin
}

func newProc() *stubProcessor {
	return &stubProcessor{seen: map[string]bool{}, failOn: map[string]error{}}
}

func (p *stubProcessor) Process(ctx context.Context, s signal.Signal) (uuid.UUID, bool, error) {
	return p.Ingest(ctx, signal.Origin{}, s)
}

func (p *stubProcessor) Ingest(_ context.Context, o signal.Origin, s signal.Signal) (uuid.UUID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.origins = append(p.origins, o)
	if err := p.failOn[s.Title]; err != nil {
		return uuid.Nil, false, err
	}
	h := s.Hash()
	if p.seen[h] {
		return uuid.Nil, false, nil
	}
	p.seen[h] = true
	return uuid.New(), true, nil
}

func sig(title string) signal.Signal {
	u := "https://example.com/" + title
	return signal.Signal{Title: title, URL: &u, Type: signal.RSS}
}

func five() []item {
	return []item{{sig: sig("one")}, {sig: sig("two")}, {sig: sig("three")}, {sig: sig("four")}, {sig: sig("five")}}
}

func TestRunScanIsolatesItemFailures(t *testing.T) {
	proc := newProc()
	proc.failOn["three"] = errors.New("constraint violated")
	c := &stubCollector{valid: true, items: five()}

	n := New(proc, Config{}).RunScan(context.Background(), c, cdom.Options{MethodID: "m1"})
	assert.Equal(t, 4, n)
	assert.Len(t, proc.seen, 4)
	assert.False(t, proc.seen[sig("three").Hash()])
}

func TestRunScanSkipsExtractionErrors(t *testing.T) {
	items := five()
	items[1] = item{err: perr.Extractionf("item has no title")}
	c := &stubCollector{valid: true, items: items}

	rep := New(newProc(), Config{}).RunScanReport(context.Background(), c, cdom.Options{})
	assert.False(t, rep.Aborted)
	assert.Equal(t, 4, rep.Ingested)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 4, rep.Seen)
}

func TestRunScanCountsDuplicates(t *testing.T) {
	proc := newProc()
	svc := New(proc, Config{})
	c := &stubCollector{valid: true, items: five()}

	require.Equal(t, 5, svc.RunScan(context.Background(), c, cdom.Options{}))
	rep := svc.RunScanReport(context.Background(), c, cdom.Options{})
	assert.Equal(t, 0, rep.Ingested)
	assert.Equal(t, 5, rep.Duplicates)
	assert.Equal(t, 0, rep.Result())
}

func TestRunScanInvalidConfiguration(t *testing.T) {
	proc := newProc()
	c := &stubCollector{valid: false, items: five()}

	rep := New(proc, Config{}).RunScanReport(context.Background(), c, cdom.Options{})
	assert.True(t, rep.Aborted)
	assert.True(t, perr.IsCode(rep.Err, perr.ErrorCodeConfiguration))
	assert.Equal(t, 0, rep.Result())
	assert.Zero(t, c.pulled)
}

func TestRunScanStartError(t *testing.T) {
	c := &stubCollector{valid: true, startErr: perr.Sourcef("feed unreachable")}
	n := New(newProc(), Config{}).RunScan(context.Background(), c, cdom.Options{})
	assert.Equal(t, 0, n)
}

func TestRunScanAbortsOnSourceError(t *testing.T) {
	proc := newProc()
	items := five()
	items[2] = item{err: perr.Sourcef("connection reset")}
	c := &stubCollector{valid: true, items: items}

	rep := New(proc, Config{}).RunScanReport(context.Background(), c, cdom.Options{})
	assert.True(t, rep.Aborted)
	assert.Equal(t, 2, rep.Ingested)
	assert.Equal(t, 0, rep.Result())
	assert.Equal(t, 3, c.pulled)
	// already stored records stay
	assert.Len(t, proc.seen, 2)
}

func TestRunScanAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := newProc()
	proc.failOn["two"] = context.Canceled
	c := &stubCollector{valid: true, items: five()}
	defer cancel()

	rep := New(proc, Config{}).RunScanReport(ctx, c, cdom.Options{})
	assert.True(t, rep.Aborted)
	assert.Equal(t, 1, rep.Ingested)
}

func TestRunScanPassesOrigin(t *testing.T) {
	proc := newProc()
	c := &stubCollector{valid: true, items: five()[:1]}
	opts := cdom.Options{MethodID: "m9", Priority: priority.High, Breaking: true}

	New(proc, Config{ScanTimeout: time.Second}).RunScan(context.Background(), c, opts)
	require.Len(t, proc.origins, 1)
	assert.Equal(t, signal.Origin{SourceID: "m9", Priority: priority.High, Breaking: true}, proc.origins[0])
}

// settlingCollector records Settle and Ack calls
type settlingCollector struct {
	stubCollector
	settled []bool
	acked   []string
	ackErr  error
}

func (c *settlingCollector) Settle(_ context.Context, _ cdom.Options, clean bool) {
	c.settled = append(c.settled, clean)
}

func (c *settlingCollector) Ack(_ context.Context, _ cdom.Options, s signal.Signal) error {
	c.acked = append(c.acked, s.Title)
	return c.ackErr
}

func TestRunScanSettles(t *testing.T) {
	cases := []struct {
		name     string
		coll     stubCollector
		failOn   string
		failErr  error
		settled  []bool
		acked    int
		aborted  bool
		ingested int
	}{
		{name: "clean", coll: stubCollector{valid: true, items: five()}, settled: []bool{true}, acked: 5, ingested: 5},
		{name: "store failure", coll: stubCollector{valid: true, items: five()}, failOn: "three", failErr: errors.New("constraint violated"), settled: []bool{false}, acked: 4, ingested: 4},
		{name: "extraction failure", coll: stubCollector{valid: true, items: []item{{sig: sig("one")}, {err: perr.Extractionf("no title")}}}, settled: []bool{true}, acked: 1, ingested: 1},
		{name: "store timeout", coll: stubCollector{valid: true, items: five()}, failOn: "two", failErr: perr.Wrap(context.DeadlineExceeded, perr.ErrorCodeTimeout, "insert"), settled: []bool{false}, acked: 1, aborted: true, ingested: 1},
		{name: "start error", coll: stubCollector{valid: true, startErr: perr.Sourcef("down")}, settled: []bool{false}, aborted: true},
		{name: "invalid", coll: stubCollector{valid: false, items: five()}, aborted: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := newProc()
			if tc.failOn != "" {
				proc.failOn[tc.failOn] = tc.failErr
			}
			c := &settlingCollector{stubCollector: tc.coll}

			rep := New(proc, Config{}).RunScanReport(context.Background(), c, cdom.Options{})
			assert.Equal(t, tc.aborted, rep.Aborted)
			assert.Equal(t, tc.ingested, rep.Ingested)
			assert.Equal(t, tc.settled, c.settled)
			assert.Len(t, c.acked, tc.acked)
		})
	}
}

func TestRunScanAcksDuplicatesAndSurvivesAckErrors(t *testing.T) {
	proc := newProc()
	svc := New(proc, Config{})
	c := &settlingCollector{stubCollector: stubCollector{valid: true, items: five()[:2]}, ackErr: errors.New("inbox down")}

	require.Equal(t, 2, svc.RunScan(context.Background(), c, cdom.Options{}))
	rep := svc.RunScanReport(context.Background(), c, cdom.Options{})
	assert.Equal(t, 2, rep.Duplicates)
	assert.False(t, rep.Aborted)
	assert.Equal(t, []string{"one", "two", "one", "two"}, c.acked)
	assert.Equal(t, []bool{true, true}, c.settled)
}

const etagFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Desk</title><link>https://desk.example/</link>
<item><title>One</title><link>https://desk.example/1</link><guid>1</guid></item>
<item><title>Two</title><link>https://desk.example/2</link><guid>2</guid></item>
<item><title>Three</title><link>https://desk.example/3</link><guid>3</guid></item>
<item><title>Four</title><link>https://desk.example/4</link><guid>4</guid></item>
</channel></rss>`

func TestRunScanRereadsFeedAfterPartialRun(t *testing.T) {
	var full, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(etagFeed))
	}))
	defer srv.Close()

	coll := rss.New(fetch.New(fetch.Options{Conditional: true}))
	opts := cdom.Options{MethodID: "m1", Config: []byte(`{"url":"` + srv.URL + `/feed"}`)}
	proc := newProc()
	proc.failOn["Two"] = perr.Wrap(context.DeadlineExceeded, perr.ErrorCodeTimeout, "insert timed out")
	svc := New(proc, Config{})

	rep := svc.RunScanReport(context.Background(), coll, opts)
	require.True(t, rep.Aborted)
	assert.Equal(t, 1, rep.Ingested)

	delete(proc.failOn, "Two")
	rep = svc.RunScanReport(context.Background(), coll, opts)
	require.False(t, rep.Aborted)
	assert.Equal(t, 3, rep.Ingested)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Len(t, proc.seen, 4)
	assert.EqualValues(t, 2, full.Load())
	assert.Zero(t, notModified.Load())

	// the clean run committed the validators
	rep = svc.RunScanReport(context.Background(), coll, opts)
	assert.False(t, rep.Aborted)
	assert.Zero(t, rep.Seen)
	assert.EqualValues(t, 1, notModified.Load())
}
