package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefind/internal/database"
	"github.com/kozaktomas/facefind/internal/index"
	"github.com/kozaktomas/facefind/internal/web/middleware"
)

// FacesHandler handles embedding record endpoints.
type FacesHandler struct {
	store database.Store
	index index.Index
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(store database.Store, idx index.Index) *FacesHandler {
	return &FacesHandler{store: store, index: idx}
}

// faceRecord is the wire form of an embedding record. Vectors are large
// and meaningless to clients, so they stay out of list responses.
type faceRecord struct {
	ID        int64  `json:"id"`
	PhotoRef  string `json:"photo_reference"`
	CreatedAt string `json:"created_at"`
}

// List returns the caller's embedding records.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	out := make([]faceRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, faceRecord{
			ID:        rec.ID,
			PhotoRef:  rec.PhotoRef,
			CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"faces": out})
}

// Delete removes one of the caller's embedding records. Absent records
// and records owned by someone else both yield 404.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "recordId"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid record ID")
		return
	}

	deleted, err := h.store.Delete(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "record not found")
		return
	}
	h.index.Remove(id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Stats returns store-wide record counts.
func (h *FacesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
