// Package service is the feed manager: it runs a collector and hands every
// yielded signal to the signal processor with per-item fault isolation
package service

import (
	"context"
	stderrs "errors"
	"time"

	"newsroom/internal/core/signal"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	cdom "newsroom/internal/services/collectors/domain"
	"newsroom/internal/services/feeds/domain"
	sdom "newsroom/internal/services/signals/domain"
)

// Config bounds a scan
type Config struct {
	ScanTimeout time.Duration
}

// Svc implements domain.ManagerPort
type Svc struct {
	proc sdom.ProcessorPort
	cfg  Config
	now  func() time.Time
}

// New builds the manager over a signal processor
func New(proc sdom.ProcessorPort, cfg Config) *Svc {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 120 * time.Second
	}
	return &Svc{proc: proc, cfg: cfg, now: time.Now}
}

// RunScan returns the number of newly stored records, or 0 when the method
// is misconfigured or the source failed as a whole
func (s *Svc) RunScan(ctx context.Context, c cdom.Collector, opts cdom.Options) int {
	return s.RunScanReport(ctx, c, opts).Result()
}

// RunScanReport is RunScan with the full tally
func (s *Svc) RunScanReport(ctx context.Context, c cdom.Collector, opts cdom.Options) (rep domain.Report) {
	start := s.now()
	defer func() { rep.Elapsed = s.now().Sub(start) }()

	log := logger.C(ctx).With().
		Str("method_type", string(c.ScannerType())).
		Str("source", opts.SourceName).
		Logger()

	if !c.ValidateConfiguration(ctx, opts) {
		log.Error().Msg("collection method configuration invalid; scan skipped")
		rep.Aborted = true
		rep.Err = perr.Configf("invalid %s configuration", c.ScannerType())
		return rep
	}

	// items the processor failed to store; malformed items are not counted
	unstored := 0
	if cm, ok := c.(cdom.Committer); ok {
		defer func() {
			cm.Settle(context.WithoutCancel(ctx), opts, !rep.Aborted && unstored == 0)
		}()
	}
	acker, _ := c.(cdom.Acker)

	sctx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer cancel()

	seq, err := c.Scan(sctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("scan failed to start")
		rep.Aborted = true
		rep.Err = err
		return rep
	}

	origin := signal.Origin{SourceID: opts.MethodID, Priority: opts.Priority, Breaking: opts.Breaking}
	for sig, err := range seq {
		if err != nil {
			if fatal(sctx, err) {
				log.Error().Err(err).Int("ingested", rep.Ingested).Msg("scan aborted")
				rep.Aborted = true
				rep.Err = err
				return rep
			}
			rep.Failed++
			log.Warn().Err(err).Msg("item skipped")
			continue
		}
		rep.Seen++

		_, created, err := s.proc.Ingest(sctx, origin, sig)
		switch {
		case err != nil && fatal(sctx, err):
			log.Error().Err(err).Int("ingested", rep.Ingested).Msg("scan aborted while storing")
			rep.Aborted = true
			rep.Err = err
			return rep
		case err != nil:
			rep.Failed++
			unstored++
			log.Warn().Err(err).Str("title", sig.Title).Msg("signal not stored")
			continue
		case created:
			rep.Ingested++
		default:
			rep.Duplicates++
		}
		if acker != nil {
			if err := acker.Ack(sctx, opts, sig); err != nil {
				log.Warn().Err(err).Str("title", sig.Title).Msg("stored signal not acknowledged")
			}
		}
	}

	log.Info().
		Int("seen", rep.Seen).
		Int("ingested", rep.Ingested).
		Int("duplicates", rep.Duplicates).
		Int("failed", rep.Failed).
		Msg("scan complete")
	return rep
}

// fatal reports a whole-source failure: an explicit source error, or the
// scan deadline/cancellation
func fatal(ctx context.Context, err error) bool {
	if perr.IsCode(err, perr.ErrorCodeSource) || perr.IsCode(err, perr.ErrorCodeTimeout) {
		return true
	}
	if stderrs.Is(err, context.DeadlineExceeded) || stderrs.Is(err, context.Canceled) {
		return true
	}
	return ctx.Err() != nil
}

var _ domain.ManagerPort = (*Svc)(nil)
