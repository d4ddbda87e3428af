// Package api serves read-only diagnostics about a running helper over loopback HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/silkedit/silkedit-helper/internal/events"
	"github.com/silkedit/silkedit-helper/internal/fiber"
	"github.com/silkedit/silkedit-helper/internal/gateway"
	"github.com/silkedit/silkedit-helper/internal/packages"
	"github.com/silkedit/silkedit-helper/internal/registry"
)

// FiberSource reports live fibers.
type FiberSource interface {
	Live() int
	Snapshot() []fiber.Info
}

// RegistrySource reports registered commands, conditions and filters.
type RegistrySource interface {
	Snapshot() registry.Snapshot
}

// PackageSource reports loaded packages.
type PackageSource interface {
	Packages() []packages.Package
}

// CallSource reports outbound call counters.
type CallSource interface {
	Stats() gateway.Stats
}

// ObjectSource reports the number of cached remote objects.
type ObjectSource interface {
	Len() int
}

// Config holds API server configuration.
type Config struct {
	Listen string
}

// Deps are the components the API reads from. Nil sources report zero values.
type Deps struct {
	Fibers   FiberSource
	Registry RegistrySource
	Packages PackageSource
	Calls    CallSource
	Objects  ObjectSource
	Events   *events.Hub
}

// Server is the diagnostics HTTP server.
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

func New(config Config, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("diagnostics server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("diagnostics server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/fibers", s.handleFibers)
	r.Get("/registrations", s.handleRegistrations)
	r.Get("/packages", s.handlePackages)
	r.Get("/events", s.handleEvents)
	r.Get("/events/stream", s.handleEventStream)

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
