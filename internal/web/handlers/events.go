package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefind/internal/extract"
	"github.com/kozaktomas/facefind/internal/pipeline"
	"github.com/kozaktomas/facefind/internal/web/middleware"
)

// EventsHandler handles event lifecycle endpoints.
type EventsHandler struct {
	pipeline  *pipeline.Manager
	extractor extract.Extractor
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(pm *pipeline.Manager, extractor extract.Extractor) *EventsHandler {
	return &EventsHandler{
		pipeline:  pm,
		extractor: extractor,
	}
}

// Create creates a new event.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	event, err := h.pipeline.CreateEvent(middleware.UserID(r.Context()), req.Name)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// List returns the caller's events.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.pipeline.ListEvents(middleware.UserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Get returns one event with its processing status.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.pipeline.Status(middleware.UserID(r.Context()), chi.URLParam(r, "eventId"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Delete removes an event, its photos and its embeddings.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.pipeline.DeleteEvent(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "eventId"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// UploadPhotos accepts multipart photo uploads for an event.
func (h *EventsHandler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no photos provided")
		return
	}

	userID := middleware.UserID(r.Context())
	eventID := chi.URLParam(r, "eventId")

	uploaded := []string{}
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to open uploaded file")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}

		name, err := h.pipeline.AddPhoto(r.Context(), userID, eventID, fileHeader.Filename, data)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		uploaded = append(uploaded, name)
	}

	respondJSON(w, http.StatusOK, map[string]any{"uploaded": uploaded})
}

// Process closes the event for uploads and starts extraction in the
// background. Progress is observable through the event status endpoint.
func (h *EventsHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	eventID := chi.URLParam(r, "eventId")

	if err := h.pipeline.BeginProcessing(userID, eventID); err != nil {
		respondDomainError(w, err)
		return
	}

	go func() {
		// Detached from the request; uploads keep processing after the
		// client disconnects.
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if err := h.pipeline.ProcessEvent(ctx, userID, eventID, h.extractor); err != nil {
			log.Printf("processing event %s failed: %v", sanitizeForLog(eventID), err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

// Stuck reports events whose processing appears stalled.
func (h *EventsHandler) Stuck(w http.ResponseWriter, r *http.Request) {
	events, err := h.pipeline.StuckEvents(time.Now().UTC())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Recent reports events with recent upload activity and no completion yet.
func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	events, err := h.pipeline.RecentlyActive(time.Now().UTC())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}
