// Package api exposes taxonomy history over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"taxhist/internal/historycache"
	"taxhist/internal/logging"
)

// HistoryService is the cache surface the handlers need.
// *historycache.Service satisfies it.
type HistoryService interface {
	History(ctx context.Context, force bool) (*historycache.Result, error)
	Reset(ctx context.Context) error
	Status() historycache.Status
}

// Server represents the HTTP API server
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	addr    string
	logger  *logging.Logger
	history HistoryService
	started time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(addr string, history HistoryService, logger *logging.Logger) *Server {
	s := &Server{
		addr:    addr,
		logger:  logger.WithFields(map[string]interface{}{"component": "api"}),
		history: history,
		router:  http.NewServeMux(),
		started: time.Now(),
	}

	s.registerRoutes()

	handler := s.applyMiddleware(s.router)
	s.server = &http.Server{
		Addr:    addr,
		Handler: handler,
		// Forced refreshes can walk the whole history
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.addr,
	})

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", nil)

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server shut down successfully", nil)
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Last one applied runs first
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}
