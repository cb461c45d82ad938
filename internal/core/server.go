// Package core provides the HTTP chassis for the AquaPlan API. It builds a
// chi router, applies the cross-cutting middleware (recovery, logging,
// metrics, compression, API key auth) and renders errors in a single
// envelope before requests reach the engine handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aquaplan/internal/config"
)

// Server encapsulates the dependencies of the API so tests can build one
// with fakes and cmd/api can build one from configuration.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are executed by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount handler routes under /v1. Populated by main to
	// keep core free of handler imports.
	V1RouteRegistrars []RouteRegistrar

	// closers run on Shutdown in registration order.
	closers []func()

	router *chi.Mux
}

// NewServer validates the required dependencies and prepares an empty
// router. Call MountRoutes after registering handlers and probes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run when the server shuts down, e.g. closing
// the database pool.
func (s *Server) OnShutdown(fn func()) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases the resources registered with OnShutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for _, fn := range s.closers {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("shutdown interrupted: %w", err)
		}
		fn()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
