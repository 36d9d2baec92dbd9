// Package api serves the read-only reporting API over the master store
// and the run log.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/skuhub/internal/config"
	"github.com/leapstack-labs/skuhub/internal/store"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Server is the reporting API server.
type Server struct {
	store       *store.Store
	runs        core.RunStore
	cfg         config.APIConfig
	environment string
	logger      *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Store       *store.Store
	Runs        core.RunStore
	API         config.APIConfig
	Environment string
	Logger      *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	api := cfg.API
	if api.Addr == "" {
		api.Addr = config.DefaultAPIAddr
	}
	if api.ShutdownTimeout <= 0 {
		api.ShutdownTimeout = config.DefaultShutdownTimeout
	}
	if api.DefaultLimit <= 0 {
		api.DefaultLimit = config.DefaultAPILimit
	}
	env := cfg.Environment
	if env == "" {
		env = "dev"
	}
	return &Server{
		store:       cfg.Store,
		runs:        cfg.Runs,
		cfg:         api,
		environment: env,
		logger:      logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5),
		s.requestLogger,
	)

	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/kpi", s.kpi)
		r.Get("/runs", s.listRuns)
		r.Get("/threeway", s.threeway)
		r.Get("/flow-mix", s.view(store.ViewFlowMix))
		r.Get("/flow-location", s.view(store.ViewFlowLocation))
		r.Get("/location-daily", s.view(store.ViewLocationDaily))
		r.Get("/location-monthly", s.view(store.ViewLocationMonthly))
		r.Get("/invoice-failures", s.view(store.ViewInvoiceFailures))
		r.Get("/exceptions", s.exceptions)
		r.Get("/exceptions/summary", s.view(store.ViewExceptionsSummary))
		r.Get("/occupancy", s.occupancy)
		r.Get("/heatmap", s.heatmap)
		r.Get("/caseflow", s.caseflow)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting API server", "addr", s.cfg.Addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
