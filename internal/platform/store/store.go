// Package store is the facade over the optional Postgres and ClickHouse backends
package store

import (
	"context"
	"errors"
	"fmt"

	"newsroom/internal/platform/logger"
)

// Store holds the opened backends; disabled backends stay nil
type Store struct {
	Log logger.Logger
	PG  TxRunner
	CH  Clickhouse
}

// Row is the single-row scan contract
type Row interface {
	Scan(dest ...any) error
}

// Rows is the result set contract
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag reports the outcome of a write
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the SQL surface repos bind to
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner is a RowQuerier that can also run fn inside one transaction.
// fn's error rolls back; nil commits
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the columnar seam used by the run ledger
type Clickhouse interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Pinger reports readiness
type Pinger interface{ Ping(context.Context) error }

// Option mutates the Store during Open
type Option func(*Store) error

// WithLogger sets the logger handed to backends
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// Open connects every backend enabled in cfg
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	if cfg.PG.Enabled {
		pg, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.PG = pg
	}
	if cfg.CH.Enabled {
		ch, err := openCH(ctx, cfg)
		if err != nil {
			s.closePG()
			return nil, err
		}
		s.CH = ch
	}
	return s, nil
}

// Guard pings every opened backend and joins the failures
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if p, ok := s.PG.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("pg: %w", err))
		}
	}
	if p, ok := s.CH.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ch: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every opened backend
func (s *Store) Close(context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.CH != nil {
		if err := s.CH.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.closePG(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Store) closePG() error {
	if c, ok := s.PG.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
