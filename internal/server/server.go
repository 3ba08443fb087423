// Package server provides the HTTP API for UniRAG.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unistudy/unirag/internal/config"
	"github.com/unistudy/unirag/internal/rag"
	"go.uber.org/zap"
)

// Server is the HTTP server for the UniRAG API.
type Server struct {
	engine *rag.Engine
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *rag.Engine, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		engine: engine,
		config: cfg,
		logger: logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(120 * time.Second))
		r.Post("/api/v1/documents", s.handleUploadDocument)
		r.Get("/api/v1/documents", s.handleListDocuments)
		r.Delete("/api/v1/documents/{filename}", s.handleDeleteDocument)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/api/v1/history", s.handleHistory)
		r.Get("/health", s.handleHealth)
	})
	// The ask stream outlives any reasonable request timeout; it is bounded
	// by client disconnect instead.
	r.Post("/api/v1/ask", s.handleAsk)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
