// Package pipeline tracks photo uploads through asynchronous face
// extraction to a durable completion marker, and reports stuck or partial
// ingestions. It owns event and photo state; embeddings themselves live in
// the embedding store.
package pipeline

import (
	"errors"
	"time"
)

// ErrInsufficientStorage is returned when the storage guard refuses a
// photo write because free disk space is below the configured floor.
var ErrInsufficientStorage = errors.New("insufficient storage")

// ErrEventClosed is returned when an operation needs an event state the
// event has already left, like uploading to a completed event.
var ErrEventClosed = errors.New("event closed for this operation")

// EventState is the lifecycle state of an event.
type EventState string

// Event lifecycle. Failed is a parallel terminal state reachable from
// Uploading or Processing on unrecoverable errors.
const (
	EventCreated    EventState = "created"
	EventUploading  EventState = "uploading"
	EventProcessing EventState = "processing"
	EventCompleted  EventState = "completed"
	EventFailed     EventState = "failed"
)

// PhotoStatus is the per-photo processing outcome.
type PhotoStatus string

// Per-photo outcomes. Everything except PhotoPending is terminal; an
// event completes once every photo reaches a terminal status.
const (
	PhotoPending  PhotoStatus = "pending"
	PhotoEmbedded PhotoStatus = "embedded"
	PhotoFailed   PhotoStatus = "failed"
	PhotoNoFace   PhotoStatus = "no_face"
)

// PhotoEntry is one uploaded photo within an event.
type PhotoEntry struct {
	Filename     string      `json:"filename"`
	UploadedAt   time.Time   `json:"uploaded_at"`
	Status       PhotoStatus `json:"status"`
	EmbeddingIDs []int64     `json:"embedding_ids,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// Terminal reports whether the photo has reached a terminal outcome.
func (p *PhotoEntry) Terminal() bool {
	return p.Status != PhotoPending
}

// Event is a named, user-owned photo collection processed as one batch.
type Event struct {
	ID        string       `json:"event_id"`
	UserID    string       `json:"user_id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	State     EventState   `json:"state"`
	Photos    []PhotoEntry `json:"photos"`
}

// photo returns the entry with the given filename, or nil.
func (e *Event) photo(filename string) *PhotoEntry {
	for i := range e.Photos {
		if e.Photos[i].Filename == filename {
			return &e.Photos[i]
		}
	}
	return nil
}

// LastPhotoWrite returns the newest photo upload time. The second return
// is false when the event has no photos yet.
func (e *Event) LastPhotoWrite() (time.Time, bool) {
	var last time.Time
	for i := range e.Photos {
		if e.Photos[i].UploadedAt.After(last) {
			last = e.Photos[i].UploadedAt
		}
	}
	return last, !last.IsZero()
}

// allTerminal reports whether every photo has a terminal outcome.
func (e *Event) allTerminal() bool {
	for i := range e.Photos {
		if !e.Photos[i].Terminal() {
			return false
		}
	}
	return true
}

// stats aggregates per-photo outcomes for the completion marker.
func (e *Event) stats() ProcessingStats {
	s := ProcessingStats{TotalPhotos: len(e.Photos)}
	for i := range e.Photos {
		switch e.Photos[i].Status {
		case PhotoEmbedded:
			s.Processed++
			s.FacesFound += len(e.Photos[i].EmbeddingIDs)
		case PhotoNoFace:
			s.Processed++
			s.NoFace++
		case PhotoFailed:
			s.Errors++
		}
	}
	return s
}

// ProcessingStats summarizes an event's processing run.
type ProcessingStats struct {
	TotalPhotos int `json:"total_photos"`
	Processed   int `json:"processed"`
	FacesFound  int `json:"faces_found"`
	NoFace      int `json:"no_face"`
	Errors      int `json:"errors"`
}

// CompletionMarker is the durable fact that every photo of an event has
// reached a terminal outcome. Written exactly once; re-evaluation after
// partial-failure retries leaves it untouched.
type CompletionMarker struct {
	EventID     string          `json:"event_id"`
	CompletedAt time.Time       `json:"completed_at"`
	Stats       ProcessingStats `json:"stats"`
}
