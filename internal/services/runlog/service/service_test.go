package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsroom/internal/platform/store"
	"newsroom/internal/services/runlog/domain"

	"github.com/google/uuid"
)

type fakeCH struct {
	table string
	rows  [][]any
	err   error
}

func (f *fakeCH) Insert(_ context.Context, table string, rows [][]any) error {
	f.table = table
	f.rows = append(f.rows, rows...)
	return f.err
}
func (f *fakeCH) Exec(context.Context, string, ...any) error { return nil }
func (f *fakeCH) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, errors.New("not used")
}
func (f *fakeCH) Close() error { return nil }

func entry() domain.Entry {
	return domain.Entry{
		RunID: uuid.New(), MethodID: "m1", MethodType: "rss",
		StartedAt: time.Unix(1_700_000_000, 0), ElapsedMs: 1200,
		Seen: 5, Ingested: 4, Failed: 1,
	}
}

func TestAppendWithoutClickhouse(t *testing.T) {
	s := New(nil)
	if err := s.Append(context.Background(), entry()); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := s.Recent(context.Background(), "m1", 10)
	if err != nil || got != nil {
		t.Fatalf("recent = %v, %v", got, err)
	}
}

func TestAppendWritesRow(t *testing.T) {
	ch := &fakeCH{}
	s := New(ch)
	e := entry()
	e.Aborted = true
	if err := s.Append(context.Background(), e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ch.table != "scan_runs" || len(ch.rows) != 1 {
		t.Fatalf("table=%q rows=%d", ch.table, len(ch.rows))
	}
	row := ch.rows[0]
	if len(row) != 11 {
		t.Fatalf("row width = %d", len(row))
	}
	if row[4] != uint32(1200) || row[6] != uint32(4) || row[9] != uint8(1) {
		t.Fatalf("row = %v", row)
	}
}

func TestAppendError(t *testing.T) {
	s := New(&fakeCH{err: errors.New("down")})
	if err := s.Append(context.Background(), entry()); err == nil {
		t.Fatal("expected error")
	}
}
