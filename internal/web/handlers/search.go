package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/kozaktomas/facefind/internal/extract"
	"github.com/kozaktomas/facefind/internal/match"
	"github.com/kozaktomas/facefind/internal/web/middleware"
)

// SearchHandler handles similarity search endpoints.
type SearchHandler struct {
	engine    *match.Engine
	extractor extract.Extractor
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(engine *match.Engine, extractor extract.Extractor) *SearchHandler {
	return &SearchHandler{
		engine:    engine,
		extractor: extractor,
	}
}

// Search matches a raw query vector against the caller's photos.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vector    []float32 `json:"vector"`
		EventID   string    `json:"event_id"`
		Threshold float32   `json:"threshold"`
		Limit     int       `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	scope := match.Scope{UserID: middleware.UserID(r.Context()), EventID: req.EventID}
	matches, err := h.engine.FindMatches(r.Context(), req.Vector, scope, req.Threshold, req.Limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// SearchSelfie extracts a face from an uploaded selfie and matches it
// against the caller's photos. When the selfie contains several faces the
// most confident one is used.
func (h *SearchHandler) SearchSelfie(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, _, err := r.FormFile("selfie")
	if err != nil {
		respondError(w, http.StatusBadRequest, "selfie file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read selfie")
		return
	}

	faces, err := h.extractor.Extract(r.Context(), data)
	if err != nil {
		respondError(w, http.StatusBadGateway, "face extraction failed: "+err.Error())
		return
	}
	if len(faces) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "no face found in selfie")
		return
	}

	best := faces[0]
	for _, face := range faces[1:] {
		if face.Confidence > best.Confidence {
			best = face
		}
	}

	var threshold float32
	if v := r.FormValue("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 32)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = float32(t)
	}
	limit := 0
	if v := r.FormValue("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = l
	}

	scope := match.Scope{
		UserID:  middleware.UserID(r.Context()),
		EventID: r.FormValue("event_id"),
	}
	matches, err := h.engine.FindMatches(r.Context(), best.Vector, scope, threshold, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
