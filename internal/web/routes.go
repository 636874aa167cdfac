package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefind/internal/web/handlers"
	"github.com/kozaktomas/facefind/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	eventsHandler := handlers.NewEventsHandler(s.pipeline, s.extractor)
	searchHandler := handlers.NewSearchHandler(s.engine, s.extractor)
	facesHandler := handlers.NewFacesHandler(s.store, s.index)

	// Health check (no identity required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireIdentity())

		// Events
		r.Post("/events", eventsHandler.Create)
		r.Get("/events", eventsHandler.List)
		r.Get("/events/stuck", eventsHandler.Stuck)
		r.Get("/events/recent", eventsHandler.Recent)
		r.Get("/events/{eventId}", eventsHandler.Get)
		r.Delete("/events/{eventId}", eventsHandler.Delete)
		r.Post("/events/{eventId}/photos", eventsHandler.UploadPhotos)
		r.Post("/events/{eventId}/process", eventsHandler.Process)

		// Search
		r.Post("/search", searchHandler.Search)
		r.Post("/search/selfie", searchHandler.SearchSelfie)

		// Faces
		r.Get("/faces", facesHandler.List)
		r.Delete("/faces/{recordId}", facesHandler.Delete)
		r.Get("/faces/stats", facesHandler.Stats)
	})
}
