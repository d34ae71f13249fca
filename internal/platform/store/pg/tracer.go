package pg

import (
	"context"
	"strings"

	"newsroom/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one executed statement
type QueryEvent struct {
	SQL       string
	Args      []any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives an event per statement
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs every statement at debug and slow ones at warn. The child
// logger is pinned to debug so SQL logging works under an info root
func Tracer(root logger.Logger) QueryTracer {
	return &zlTracer{log: root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	evt := z.log.Debug()
	if ev.Slow {
		evt = z.log.Warn()
	}
	if ev.Err != nil {
		evt = z.log.Warn().Err(ev.Err)
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Int("args", len(ev.Args)).
		Msg("pg query")
}

func compact(s string) string { return strings.Join(strings.Fields(s), " ") }
