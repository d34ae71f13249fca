// Package logger wraps zerolog with process defaults and context-scoped
// fields for pipeline runs, tasks and HTTP requests
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"newsroom/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the root logger
type Options struct {
	Level        string
	Format       string // console | json
	Service      string
	Writer       io.Writer
	WithCaller   bool
	SampleEvery  int
	StaticFields map[string]string
}

// FromEnv reads LOG_* through the raw view so config can log without a cycle
func FromEnv() Options {
	rc := raw.New().Prefix("LOG_")
	return Options{
		Level:       strings.ToLower(rc.Get("LEVEL", "info")),
		Format:      strings.ToLower(rc.Get("FORMAT", "console")),
		Service:     rc.Get("SERVICE", "newsroom"),
		WithCaller:  rc.GetBool("CALLER", false),
		SampleEvery: rc.GetInt("SAMPLE_EVERY", 0),
	}
}

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Logger is the logging type used across the module
type Logger = zerolog.Logger

// Get returns the root logger, initializing it from env on first use
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// Init builds the root logger. Only the first call has an effect
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var w io.Writer = os.Stdout
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format != "json" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		ctx := zerolog.New(w).Level(ParseLevel(opt.Level)).With().Timestamp()
		if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
			ctx = ctx.Str("go_version", bi.GoVersion)
		}
		if opt.Service != "" {
			ctx = ctx.Str("service", opt.Service)
		}
		for k, v := range opt.StaticFields {
			ctx = ctx.Str(k, v)
		}

		log := ctx.Logger()
		if opt.WithCaller {
			log = log.With().Caller().Logger()
		}
		if opt.SampleEvery > 1 {
			log = log.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
		}

		root.Store(&log)
		inited.Store(true)
	})
}

// ParseLevel maps a level name to zerolog, defaulting to info
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

type ctxKey struct{ name string }

// context fields carried into C(ctx), in emission order
var ctxFields = []struct {
	key   ctxKey
	field string
}{
	{ctxKey{"request_id"}, "request_id"},
	{ctxKey{"run_id"}, "run_id"},
	{ctxKey{"method_id"}, "method_id"},
	{ctxKey{"queue"}, "queue"},
	{ctxKey{"task_id"}, "task_id"},
}

func with(ctx context.Context, field, v string) context.Context {
	if v == "" {
		return ctx
	}
	for _, f := range ctxFields {
		if f.field == field {
			return context.WithValue(ctx, f.key, v)
		}
	}
	return ctx
}

// WithRequest tags ctx with an HTTP request id
func WithRequest(ctx context.Context, reqID string) context.Context {
	return with(ctx, "request_id", reqID)
}

// WithRun tags ctx with a scan run id and the collection method it serves
func WithRun(ctx context.Context, runID, methodID string) context.Context {
	return with(with(ctx, "run_id", runID), "method_id", methodID)
}

// WithTask tags ctx with a queue name and task id
func WithTask(ctx context.Context, queue, taskID string) context.Context {
	return with(with(ctx, "queue", queue), "task_id", taskID)
}

// C returns a child of the root logger carrying any fields found on ctx
func C(ctx context.Context) *Logger {
	b := Get().With()
	for _, f := range ctxFields {
		if s, ok := ctx.Value(f.key).(string); ok && s != "" {
			b = b.Str(f.field, s)
		}
	}
	ll := b.Logger()
	return &ll
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	ll := Get().With().Str("component", component).Logger()
	return &ll
}
