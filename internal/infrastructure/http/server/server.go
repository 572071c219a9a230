// Package server provides the JSON API HTTP server
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/cookcard/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/cookcard/internal/infrastructure/monitoring"
	"github.com/alchemorsel/cookcard/internal/ports/inbound"
	"github.com/alchemorsel/cookcard/pkg/healthcheck"
)

// Dependencies are the services and observers the router is built from.
// Metrics and Tracing are optional.
type Dependencies struct {
	Extraction inbound.ExtractionService
	Cards      inbound.CardQueryService
	Health     *healthcheck.HealthCheck
	Metrics    *monitoring.MetricsCollector
	Tracing    *monitoring.TracingProvider
}

// Server represents the HTTP server
type Server struct {
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	s := &Server{
		config: cfg,
		logger: logger.Named("http"),
		deps:   deps,
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Security())
	if s.config.Server.EnableCORS {
		r.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	}
	if s.deps.Tracing != nil {
		r.Use(s.deps.Tracing.HTTPMiddleware)
	}
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.HTTPMiddleware)
	}

	if s.deps.Health != nil {
		r.Get(s.config.Monitoring.HealthCheckPath, s.deps.Health.LivenessHandler())
		r.Get(s.config.Monitoring.ReadinessPath, s.deps.Health.ReadinessHandler())
	}
	if s.deps.Metrics != nil && s.config.Monitoring.EnableMetrics {
		r.Method(http.MethodGet, s.config.Monitoring.MetricsPath, s.deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.Server.WriteTimeout > 0 {
			r.Use(chimiddleware.Timeout(s.config.Server.WriteTimeout))
		}
		r.Use(middleware.JSONOnly())
		s.setupAPIV1Routes(r)
	})

	return r
}

func (s *Server) setupAPIV1Routes(r chi.Router) {
	eh := handlers.NewExtractionHandlers(s.deps.Extraction, s.config.Server.MaxBodyBytes, s.logger)
	r.Post("/extractions", eh.CreateExtraction)
	r.Get("/requesters/{id}/quota", eh.GetQuota)

	if s.deps.Cards != nil {
		ch := handlers.NewCardHandlers(s.deps.Cards, s.logger)
		r.Get("/cookcards/{id}", ch.GetCard)
		r.Get("/groups/{id}/cookcards", ch.ListGroupCards)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
