// Package server provides the HTTP API for vecbridge.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/vecbridge/internal/config"
	"github.com/hyperjump/vecbridge/internal/embeddings"
	"go.uber.org/zap"
)

// Server is the HTTP server for the vecbridge API.
type Server struct {
	embeddings *embeddings.Embeddings
	config     *config.Config
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server over the embeddings host.
func NewServer(e *embeddings.Embeddings, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		embeddings: e,
		config:     cfg,
		logger:     logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/index", s.handleIndex)
		r.Post("/documents", s.handleUpsert)
		r.Delete("/documents", s.handleDelete)
		r.Post("/search", s.handleSearch)
		r.Get("/count", s.handleCount)
		r.Get("/status", s.handleStatus)
		r.Post("/save", s.handleSave)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
