package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/relaycmd/internal/auth"
	"github.com/mattjoyce/relaycmd/internal/events"
	"github.com/mattjoyce/relaycmd/internal/registry"
	"github.com/mattjoyce/relaycmd/internal/state"
)

// CommandRegistry is the set of registry operations the API exposes.
type CommandRegistry interface {
	Len() int
	List() []registry.View
	View(name string) (registry.View, error)
	Execute(name string) (*registry.Execution, error)
	Enable(name string) error
	Disable(name string) error
	Progress() []registry.ProgressView
	History(ctx context.Context, name string, limit int) ([]state.Record, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the single bearer token with full access.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
	// MaxWait bounds how long ?wait=true holds a request open.
	MaxWait time.Duration
	// Title names the service in the OpenAPI document.
	Title string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	registry  CommandRegistry
	events    *events.Hub
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance. hub may be nil, in which case
// /events only sends keep-alives.
func New(config Config, reg CommandRegistry, hub *events.Hub, logger *slog.Logger) *Server {
	if config.MaxWait <= 0 {
		config.MaxWait = 5 * time.Minute
	}
	if config.Title == "" {
		config.Title = "relaycmd"
	}
	if hub == nil {
		hub = events.NewHub(1)
	}
	return &Server{
		config:    config,
		registry:  reg,
		events:    hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.config.MaxWait + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requireScopes(auth.ScopeCommandsRead)).Get("/commands", s.handleListCommands)
		r.With(s.requireScopes(auth.ScopeCommandsRead)).Get("/commands/{name}", s.handleGetCommand)
		r.With(s.requireScopes(auth.ScopeCommandsRead)).Get("/commands/{name}/history", s.handleHistory)
		r.With(s.requireScopes(auth.ScopeCommandsWrite)).Post("/commands/{name}/execute", s.handleExecute)
		r.With(s.requireScopes(auth.ScopeCommandsWrite)).Post("/commands/{name}/enable", s.handleEnable)
		r.With(s.requireScopes(auth.ScopeCommandsWrite)).Post("/commands/{name}/disable", s.handleDisable)
		r.With(s.requireScopes(auth.ScopeCommandsRead)).Get("/progress", s.handleProgress)
		r.With(s.requireScopes(auth.ScopeEventsRead)).Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
