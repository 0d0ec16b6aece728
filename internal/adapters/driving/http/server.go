package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/castn/sourceswitch/internal/core/ports/driven"
	"github.com/castn/sourceswitch/internal/core/ports/driving"
	"github.com/castn/sourceswitch/internal/metrics"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	registry      driving.SourceRegistry
	searchService driving.SearchService
	coordinator   driving.SwitchCoordinator
	books         driven.BookStore

	// Infrastructure
	metrics     *metrics.Metrics
	db          Pinger // Source/book store health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	registry driving.SourceRegistry,
	searchService driving.SearchService,
	coordinator driving.SwitchCoordinator,
	books driven.BookStore,
	m *metrics.Metrics,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:        http.NewServeMux(),
		version:       cfg.Version,
		logger:        logger,
		registry:      registry,
		searchService: searchService,
		coordinator:   coordinator,
		books:         books,
		metrics:       m,
		db:            db,
		redisClient:   redisClient,
	}

	s.setupRoutes()

	handler := NewRecoveryMiddleware(logger).Handler(
		NewLoggingMiddleware(logger).Handler(
			NewCORSMiddleware(cfg.AllowedOrigins).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second, // Synchronous switches wait for search and chapter fetch
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.Handle("GET /metrics", s.metrics.Handler())

	// Source registry
	s.router.HandleFunc("GET /api/v1/sources", s.handleListSources)
	s.router.HandleFunc("POST /api/v1/sources", s.handleRegisterSource)
	s.router.HandleFunc("GET /api/v1/sources/{id}", s.handleGetSource)
	s.router.HandleFunc("POST /api/v1/sources/{id}/enable", s.handleEnableSource)
	s.router.HandleFunc("POST /api/v1/sources/{id}/disable", s.handleDisableSource)
	s.router.HandleFunc("PUT /api/v1/sources/{id}/weight", s.handleSetSourceWeight)

	// Aggregated search
	s.router.HandleFunc("POST /api/v1/search", s.handleSearch)

	// Change source
	s.router.HandleFunc("POST /api/v1/books/{id}/switch/auto", s.handleAutoSwitch)
	s.router.HandleFunc("POST /api/v1/books/{id}/switch/manual", s.handleManualSwitch)
	s.router.HandleFunc("GET /api/v1/books/{id}/switch", s.handleGetActiveSwitch)
	s.router.HandleFunc("DELETE /api/v1/books/{id}/switch", s.handleCancelSwitch)
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM or ctx is
// done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
