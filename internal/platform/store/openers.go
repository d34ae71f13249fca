package store

import (
	"context"
	"fmt"
	"time"

	chx "newsroom/internal/platform/store/ch"
	"newsroom/internal/platform/store/pg"
)

// sleep is swapped in tests
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffFor doubles from 150ms up to a 2s ceiling
func backoffFor(attempt int) time.Duration {
	d := 150 * time.Millisecond
	for i := 0; i < attempt && d < 2*time.Second; i++ {
		d *= 2
	}
	return min(d, 2*time.Second)
}

// openPG opens the pool and pings it until healthy. The adapter is only
// returned once a ping succeeded, so callers never see a dead pool
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}
	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		AppName:  cfg.AppName,
		MaxConns: cfg.PG.MaxConns,
		MinConns: cfg.PG.MinConns,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}

	attempts := max(cfg.PG.ConnectRetries, 1)
	timeout := cfg.PG.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = p.Pool.Ping(pctx)
		cancel()
		if lastErr == nil {
			return newPGAdapter(p), nil
		}
		s.Log.Warn().Err(lastErr).Int("attempt", i+1).Msg("postgres not ready")
		if err := sleep(ctx, backoffFor(i)); err != nil {
			p.Close()
			return nil, err
		}
	}
	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", attempts, lastErr)
}

func openCH(ctx context.Context, cfg Config) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.Role, Version: cfg.Version})
	if err != nil {
		return nil, err
	}
	return &chAdapter{c: c}, nil
}
