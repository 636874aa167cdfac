// Package web wires the HTTP API over the pipeline, the embedding store
// and the match engine.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/facefind/internal/database"
	"github.com/kozaktomas/facefind/internal/extract"
	"github.com/kozaktomas/facefind/internal/index"
	"github.com/kozaktomas/facefind/internal/match"
	"github.com/kozaktomas/facefind/internal/pipeline"
	"github.com/kozaktomas/facefind/internal/web/middleware"
)

// Server is the HTTP server exposing the face search API.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	pipeline  *pipeline.Manager
	engine    *match.Engine
	store     database.Store
	index     index.Index
	extractor extract.Extractor
}

// NewServer creates a web server listening on host:port.
func NewServer(host string, port int, pm *pipeline.Manager, engine *match.Engine, store database.Store, idx index.Index, extractor extract.Extractor) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:    r,
		pipeline:  pm,
		engine:    engine,
		store:     store,
		index:     idx,
		extractor: extractor,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long timeout for photo uploads
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
