package main

import (
	"context"
	"time"

	"newsroom/internal/adapters/collect/email"
	"newsroom/internal/adapters/collect/fetch"
	"newsroom/internal/adapters/collect/rss"
	"newsroom/internal/adapters/collect/scrape"
	"newsroom/internal/modkit"
	"newsroom/internal/modkit/module"
	"newsroom/internal/modkit/repokit"
	"newsroom/internal/platform/config"
	"newsroom/internal/platform/logger"
	"newsroom/internal/platform/store"

	collmod "newsroom/internal/services/collection/module"
	collsvc "newsroom/internal/services/collection/service"
	cdom "newsroom/internal/services/collectors/domain"
	feedsmod "newsroom/internal/services/feeds/module"
	inmod "newsroom/internal/services/inbound/module"
	procmod "newsroom/internal/services/processing/module"
	procsvc "newsroom/internal/services/processing/service"
	runlogmod "newsroom/internal/services/runlog/module"
	schedmod "newsroom/internal/services/scheduler/module"
	sigmod "newsroom/internal/services/signals/module"
	tdom "newsroom/internal/services/tasks/domain"
	tasksmod "newsroom/internal/services/tasks/module"
)

// graph is every module built once per process
type graph struct {
	st   *store.Store
	deps modkit.Deps

	tasks      *tasksmod.Module
	signals    *sigmod.Module
	feeds      *feedsmod.Module
	runlog     *runlogmod.Module
	inbound    *inmod.Module
	collection *collmod.Module
	processing *procmod.Module
	scheduler  *schedmod.Module

	registry cdom.Registry
}

// modules lists the modules mounted on the API, in mount order
func (g *graph) modules() module.Set {
	return module.Set{g.tasks, g.signals, g.feeds, g.runlog, g.inbound, g.collection, g.processing, g.scheduler}
}

func (g *graph) close() {
	if err := g.st.Close(context.Background()); err != nil {
		logger.Get().Error().Err(err).Msg("failed to close store")
	}
}

// build opens the store and wires the pipeline. role names the process in
// Postgres application_name
func build(ctx context.Context, role string) (*graph, error) {
	cfg := config.New()
	log := logger.Get()

	st, err := store.Open(ctx, store.ConfigFromEnv(cfg, role), store.WithLogger(*log))
	if err != nil {
		return nil, err
	}
	repokit.MustGuard(ctx, st)

	deps := modkit.FromStore(st, cfg, *log)
	pgc := cfg.Prefix("SERVICE_PGSQL_")
	deps.PG = repokit.WithBeginHooks(deps.PG,
		repokit.StatementTimeout(pgc.MayDuration("TX_STATEMENT_TIMEOUT", 30*time.Second)),
		repokit.LockTimeout(pgc.MayDuration("TX_LOCK_TIMEOUT", 5*time.Second)),
	)

	col := cfg.Prefix("COLLECT_")
	cls, err := email.LoadFile(col.MayString("EMAIL_MAPPINGS", ""))
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	fc := fetch.New(fetch.Options{
		UserAgent:   col.MayString("USER_AGENT", ""),
		Timeout:     col.MayDuration("HTTP_TIMEOUT", 20*time.Second),
		MaxBytes:    int64(col.MayInt("MAX_BYTES", 10<<20)),
		MaxRetries:  col.MayInt("MAX_RETRIES", 2),
		RetryBase:   col.MayDuration("RETRY_BASE", 500*time.Millisecond),
		Conditional: col.MayBool("CONDITIONAL", true),
	})

	g := &graph{st: st, deps: deps}
	g.tasks = tasksmod.New(deps, tasksmod.Options{})
	g.runlog = runlogmod.New(deps)
	g.signals = sigmod.New(deps)
	g.feeds = feedsmod.New(deps, module.MustPortsOf[sigmod.Ports](g.signals).Processor)
	g.inbound = inmod.New(deps, cls)

	inbox := module.MustPortsOf[inmod.Ports](g.inbound).Inbox
	g.registry = cdom.NewRegistry(rss.New(fc), scrape.New(fc), email.New(inbox, cls))

	queue := module.MustPortsOf[tasksmod.Ports](g.tasks)
	g.collection = collmod.New(deps, collsvc.Deps{
		Tasks:    queue.TxEnqueuer,
		Registry: g.registry,
		Feeds:    module.MustPortsOf[feedsmod.Ports](g.feeds).Manager,
		Ledger:   module.MustPortsOf[runlogmod.Ports](g.runlog).Ledger,
	})
	g.processing = procmod.New(deps, procsvc.Deps{
		Tasks:  queue.TxEnqueuer,
		Reader: module.MustPortsOf[sigmod.Ports](g.signals).Reader,
	})
	g.scheduler = schedmod.New(deps,
		module.MustPortsOf[collmod.Ports](g.collection).Dispatcher,
		module.MustPortsOf[procmod.Ports](g.processing).Dispatcher,
	)

	g.tasks.Service().Handle(tdom.KindCollect, g.collection.Service().Handle)
	g.tasks.Service().Handle(tdom.KindProcess, g.processing.Service().Handle)
	g.tasks.Service().OnDead(tdom.KindProcess, g.processing.Service().Abandon)

	log.Info().
		Strs("modules", g.modules().Names()).
		Int("sender_mappings", cls.Len()).
		Bool("clickhouse", st.CH != nil).
		Msg("pipeline wired")
	return g, nil
}
