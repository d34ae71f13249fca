package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"newsroom/internal/platform/config"
	"newsroom/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server pairs a chi mux with a stdlib server
type Server struct {
	mux *chi.Mux
	srv *stdhttp.Server
}

// NewServer reads CORE_API_PORT (default 4000) and applies opts to the mux
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	api := cfg.Prefix("CORE_API_")
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		mux: m,
		srv: &stdhttp.Server{
			Addr:              api.MayPort("PORT", 4000),
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       api.MayDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      api.MayDuration("WRITE_TIMEOUT", 60*time.Second),
		},
	}
}

// Router returns the Router facade over the mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr is the listen address
func (s *Server) Addr() string { return s.srv.Addr }

// Run serves until ctx is done, then drains for up to 10s
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("http listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("http shutting down")
		return s.srv.Shutdown(sctx)
	}
}
