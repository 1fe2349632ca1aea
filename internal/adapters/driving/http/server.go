package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles what the handlers call
type Services struct {
	Events    driving.EventScheduler
	Indexing  driving.IndexingService
	Status    driving.StatusService
	Retrieval driving.RetrievalService
	Chat      driving.ChatService
	Settings  driving.SettingsService
	Verifier  driven.TokenVerifier

	// Checks are pinged by /ready, keyed by the name reported on failure
	Checks map[string]Pinger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger
	limiter    *TeamRateLimiter

	events    driving.EventScheduler
	indexing  driving.IndexingService
	status    driving.StatusService
	retrieval driving.RetrievalService
	chat      driving.ChatService
	settings  driving.SettingsService
	verifier  driven.TokenVerifier
	checks    map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// RateLimit is the sustained search and chat requests per second allowed
	// per team. Zero disables limiting.
	RateLimit float64
	RateBurst int

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:      "0.0.0.0",
		Port:      8080,
		Version:   "dev",
		RateLimit: 5,
		RateBurst: 10,
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svc Services) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:    http.NewServeMux(),
		version:   cfg.Version,
		logger:    logger,
		limiter:   NewTeamRateLimiter(cfg.RateLimit, cfg.RateBurst),
		events:    svc.Events,
		indexing:  svc.Indexing,
		status:    svc.Status,
		retrieval: svc.Retrieval,
		chat:      svc.Chat,
		settings:  svc.Settings,
		verifier:  svc.Verifier,
		checks:    svc.Checks,
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Chat streams clear their own write deadline
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in recovery and request logging
func (s *Server) Handler() http.Handler {
	return NewRecoveryMiddleware(s.logger).Handler(
		NewLoggingMiddleware(s.logger).Handler(s.router))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	auth := NewAuthMiddleware(s.verifier)
	host := auth.RequireRole(hostRoles...)
	admin := auth.RequireAdmin

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwagger)

	// Host integration: lifecycle events and direct index maintenance
	s.router.Handle("POST /api/v1/events",
		auth.Authenticate(host(http.HandlerFunc(s.handleSubmitEvent))))
	s.router.Handle("POST /api/v1/documents/index",
		auth.Authenticate(host(http.HandlerFunc(s.handleIndexDocument))))
	s.router.Handle("DELETE /api/v1/documents/{id}/index",
		auth.Authenticate(host(http.HandlerFunc(s.handleDeleteDocumentIndex))))
	s.router.Handle("GET /api/v1/documents/{id}/index",
		auth.Authenticate(http.HandlerFunc(s.handleGetDocumentIndex)))

	// Retrieval and chat (rate limited per team)
	s.router.Handle("POST /api/v1/search",
		auth.Authenticate(s.limiter.Handler(http.HandlerFunc(s.handleSearch))))
	s.router.Handle("POST /api/v1/chat",
		auth.Authenticate(s.limiter.Handler(http.HandlerFunc(s.handleChat))))

	// Status
	s.router.Handle("GET /api/v1/index/status",
		auth.Authenticate(http.HandlerFunc(s.handleIndexStatus)))

	// Settings endpoints (admin-only)
	s.router.Handle("GET /api/v1/settings",
		auth.Authenticate(admin(http.HandlerFunc(s.handleGetSettings))))
	s.router.Handle("PUT /api/v1/settings",
		auth.Authenticate(admin(http.HandlerFunc(s.handleUpdateSettings))))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
