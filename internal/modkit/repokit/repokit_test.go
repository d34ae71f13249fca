package repokit

import (
	"context"
	"errors"
	"testing"
	"time"

	kit "newsroom/internal/platform/testkit"
)

type recTx struct {
	stmts []string
	txs   int
}

type tag struct{}

func (tag) String() string      { return "SET" }
func (tag) RowsAffected() int64 { return 0 }

func (r *recTx) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	return tag{}, nil
}
func (r *recTx) Query(context.Context, string, ...any) (Rows, error) { return nil, nil }
func (r *recTx) QueryRow(context.Context, string, ...any) Row        { return nil }
func (r *recTx) Tx(ctx context.Context, fn func(Queryer) error) error {
	r.txs++
	return fn(r)
}

func TestWithBeginHooks(t *testing.T) {
	inner := &recTx{}
	tx := WithBeginHooks(inner, StatementTimeout(5*time.Second), LockTimeout(250*time.Millisecond))

	err := WithTx(context.Background(), tx, func(q Queryer) error {
		_, err := q.Exec(context.Background(), "INSERT")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	want := []string{"SET LOCAL statement_timeout = 5000", "SET LOCAL lock_timeout = 250", "INSERT"}
	if len(inner.stmts) != 3 {
		t.Fatalf("stmts = %v", inner.stmts)
	}
	for i := range want {
		if inner.stmts[i] != want[i] {
			t.Fatalf("stmt %d = %q, want %q", i, inner.stmts[i], want[i])
		}
	}
}

func TestHookErrorStopsFn(t *testing.T) {
	boom := errors.New("boom")
	called := false
	tx := WithBeginHooks(&recTx{}, func(context.Context, Queryer) error { return boom })
	err := tx.Tx(context.Background(), func(Queryer) error { called = true; return nil })
	if !errors.Is(err, boom) || called {
		t.Fatalf("err=%v called=%v", err, called)
	}
}

func TestMustBind(t *testing.T) {
	b := BindFunc[string](func(Queryer) string { return "bound" })
	if got := MustBind[string](b, &recTx{}); got != "bound" {
		t.Fatalf("MustBind = %q", got)
	}
	kit.MustPanic(t, func() { MustBind[string](b, nil) })
}

type guard struct{ err error }

func (g guard) Guard(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	return g.err
}

func TestMustGuard(t *testing.T) {
	MustGuard(context.Background(), guard{})
	kit.MustPanic(t, func() { MustGuard(context.Background(), guard{err: errors.New("down")}) })
}
