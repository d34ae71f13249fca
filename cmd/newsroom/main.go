// Command newsroom runs the ingestion pipeline: the operations API, task
// workers, the dispatch scheduler and one-shot maintenance commands
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"newsroom/internal/platform/config"
	"newsroom/internal/platform/logger"
	phttp "newsroom/internal/platform/net/http"
	"newsroom/internal/platform/net/middleware"
	"newsroom/internal/platform/store/schema"
	"newsroom/internal/services/api"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		logger.Get().Error().Err(err).Msg("newsroom exited")
		stop()
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "newsroom",
		Usage:     "Collect news signals and dispatch them for processing",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env",
				Usage: "Dotenv files to load before reading config (missing files are skipped)",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override LOG_LEVEL (trace, debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply the embedded Postgres and ClickHouse schema",
				Action: migrateCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve the operations API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "worker", Usage: "Also consume task queues in this process"},
					&cli.BoolFlag{Name: "scheduler", Usage: "Also run the dispatch scheduler in this process"},
				},
			},
			{
				Name:   "worker",
				Usage:  "Consume the task queues listed in WORKER_QUEUES",
				Action: workerCommand,
			},
			{
				Name:   "scheduler",
				Usage:  "Run both dispatchers on their cadences",
				Action: schedulerCommand,
			},
			{
				Name:  "dispatch",
				Usage: "Run one dispatcher pass and print the result",
				Subcommands: []*cli.Command{
					{Name: "collection", Usage: "Queue collection tasks for due methods", Action: dispatchCollectionCommand},
					{Name: "processing", Usage: "Queue processing tasks for pending signals", Action: dispatchProcessingCommand},
				},
			},
			{
				Name:   "scan",
				Usage:  "Scan one collection method now, bypassing the queue",
				Action: scanCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "Collection method id", Required: true},
				},
			},
		},
	}
}

// setup loads dotenv files then initializes the root logger, so LOG_* from
// the files take effect
func setup(c *cli.Context) error {
	loaded, err := config.LoadDotenv(c.StringSlice("env")...)
	if err != nil {
		return err
	}
	if lvl := strings.ToLower(c.String("log-level")); lvl != "" {
		if _, err := zerolog.ParseLevel(lvl); err != nil {
			return fmt.Errorf("invalid log level %q: %w", lvl, err)
		}
		if err := os.Setenv("LOG_LEVEL", lvl); err != nil {
			return err
		}
	}
	logger.Init(logger.FromEnv())
	if len(loaded) > 0 {
		logger.Get().Debug().Strs("files", loaded).Msg("dotenv loaded")
	}
	return nil
}

func migrateCommand(c *cli.Context) error {
	g, err := build(c.Context, "migrate")
	if err != nil {
		return err
	}
	defer g.close()

	log := logger.Named("migrate")
	applied, err := schema.ApplyPG(c.Context, g.st.PG)
	if err != nil {
		return err
	}
	log.Info().Strs("applied", applied).Msg("postgres schema up to date")
	if g.st.CH == nil {
		return nil
	}
	if err := schema.ApplyCH(c.Context, g.st.CH); err != nil {
		return err
	}
	log.Info().Msg("clickhouse schema up to date")
	return nil
}

func serveCommand(c *cli.Context) error {
	g, err := build(c.Context, "api")
	if err != nil {
		return err
	}
	defer g.close()

	cfg := config.New()
	apiCfg := cfg.Prefix("CORE_API_")
	srv := phttp.NewServer(cfg)
	api.Mount(srv.Router(), api.Options{
		Modules: g.modules(),
		Guard:   g.st,
		Timeout: apiCfg.MayDuration("TIMEOUT", 0),
		CORS: middleware.CORSOptions{
			AllowedOrigins: apiCfg.MayCSV("CORS_ORIGINS", nil),
			MaxAge:         apiCfg.MayInt("CORS_MAX_AGE", 300),
		},
		EnableSwagger: apiCfg.MayBool("SWAGGER", true),
	})

	eg, ctx := errgroup.WithContext(c.Context)
	eg.Go(func() error { return srv.Run(ctx) })
	if c.Bool("worker") {
		eg.Go(func() error { return quiet(g.tasks.Service().Run(ctx)) })
	}
	if c.Bool("scheduler") {
		eg.Go(func() error { return quiet(g.scheduler.Service().Run(ctx)) })
	}
	return eg.Wait()
}

func workerCommand(c *cli.Context) error {
	g, err := build(c.Context, "worker")
	if err != nil {
		return err
	}
	defer g.close()
	return quiet(g.tasks.Service().Run(c.Context))
}

func schedulerCommand(c *cli.Context) error {
	g, err := build(c.Context, "scheduler")
	if err != nil {
		return err
	}
	defer g.close()
	return quiet(g.scheduler.Service().Run(c.Context))
}

func dispatchCollectionCommand(c *cli.Context) error {
	g, err := build(c.Context, "dispatch")
	if err != nil {
		return err
	}
	defer g.close()
	res, err := g.collection.Service().Dispatch(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res)
}

func dispatchProcessingCommand(c *cli.Context) error {
	g, err := build(c.Context, "dispatch")
	if err != nil {
		return err
	}
	defer g.close()
	res, err := g.processing.Service().Dispatch(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res)
}

func scanCommand(c *cli.Context) error {
	id, err := uuid.Parse(c.String("method"))
	if err != nil {
		return fmt.Errorf("invalid --method %q: %w", c.String("method"), err)
	}
	g, err := build(c.Context, "scan")
	if err != nil {
		return err
	}
	defer g.close()
	n, err := g.collection.Service().Collect(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, map[string]any{"method_id": id, "ingested": n})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// quiet treats shutdown by signal as a clean exit
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
