package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/kozaktomas/facefind/internal/database"
	"github.com/kozaktomas/facefind/internal/extract"
	"github.com/kozaktomas/facefind/internal/index"
)

// Options configures pipeline behavior. Zero values fall back to the
// defaults below.
type Options struct {
	StuckAfter    time.Duration // no marker and no write for longer than this means stuck
	RecentWithin  time.Duration // activity newer than this counts as recently active
	MinFreeBytes  uint64        // storage guard floor, 0 disables the guard
	DataDir       string        // root directory for photo and thumbnail files
	ThumbnailSize int           // longest thumbnail side in pixels
}

const (
	defaultStuckAfter    = 600 * time.Second
	defaultRecentWithin  = 1800 * time.Second
	defaultThumbnailSize = 320
)

// Manager drives events from upload through extraction to completion. It
// coordinates the event store, the embedding store and the similarity
// index but owns only event state; embeddings belong to the store.
type Manager struct {
	events *EventStore
	store  database.Store
	index  index.Index
	disk   DiskFree
	opts   Options
}

// NewManager creates a pipeline manager. disk may be nil, which disables
// the storage guard.
func NewManager(events *EventStore, store database.Store, idx index.Index, disk DiskFree, opts Options) *Manager {
	if opts.StuckAfter <= 0 {
		opts.StuckAfter = defaultStuckAfter
	}
	if opts.RecentWithin <= 0 {
		opts.RecentWithin = defaultRecentWithin
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = defaultThumbnailSize
	}
	return &Manager{
		events: events,
		store:  store,
		index:  idx,
		disk:   disk,
		opts:   opts,
	}
}

func (m *Manager) eventDir(eventID string) string {
	return filepath.Join(m.opts.DataDir, "events", eventID)
}

func (m *Manager) photoPath(eventID, filename string) string {
	return filepath.Join(m.eventDir(eventID), "photos", filename)
}

func (m *Manager) thumbPath(eventID, filename string) string {
	return filepath.Join(m.eventDir(eventID), "thumbnails", filename)
}

// CreateEvent creates a new empty event owned by userID.
func (m *Manager) CreateEvent(userID, name string) (*Event, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if name == "" {
		return nil, fmt.Errorf("event name is required")
	}

	event := &Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		State:     EventCreated,
		Photos:    []PhotoEntry{},
	}
	if err := m.events.Put(event); err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}
	return event, nil
}

// GetEvent returns an event owned by userID. Absent and not-owned are
// both reported as not found so callers cannot probe for other users'
// events.
func (m *Manager) GetEvent(userID, eventID string) (*Event, error) {
	event, err := m.events.Get(eventID)
	if err != nil {
		return nil, err
	}
	if event == nil || event.UserID != userID {
		return nil, fmt.Errorf("event %s: %w", eventID, database.ErrNotFound)
	}
	return event, nil
}

// ListEvents returns all events owned by userID in creation order.
func (m *Manager) ListEvents(userID string) ([]Event, error) {
	return m.events.ListByUser(userID)
}

// EventStatus is an event with its derived processing summary.
type EventStatus struct {
	Event  *Event            `json:"event"`
	Stats  ProcessingStats   `json:"stats"`
	Marker *CompletionMarker `json:"marker,omitempty"`
}

// Status returns the event together with its processing stats and, once
// complete, its completion marker.
func (m *Manager) Status(userID, eventID string) (*EventStatus, error) {
	event, err := m.GetEvent(userID, eventID)
	if err != nil {
		return nil, err
	}
	marker, err := m.events.Marker(eventID)
	if err != nil {
		return nil, err
	}
	return &EventStatus{Event: event, Stats: event.stats(), Marker: marker}, nil
}

// AddPhoto stores photo bytes under an event and records a pending photo
// entry. The storage guard runs first: when free space is below the
// floor the write is refused and no entry is created. Returns the
// normalized filename the photo is tracked under.
func (m *Manager) AddPhoto(ctx context.Context, userID, eventID, filename string, data []byte) (string, error) {
	if err := m.checkStorage(); err != nil {
		return "", err
	}

	name := NormalizeFilename(filename)
	if name == "" || name == "." {
		return "", fmt.Errorf("invalid photo filename %q", filename)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("photo %s is empty", name)
	}

	err := m.events.Update(eventID, func(tx *bbolt.Tx, event *Event) error {
		if event == nil || event.UserID != userID {
			return fmt.Errorf("event %s: %w", eventID, database.ErrNotFound)
		}
		switch event.State {
		case EventCreated, EventUploading:
		default:
			return fmt.Errorf("event %s is %s: %w", eventID, event.State, ErrEventClosed)
		}

		now := time.Now().UTC()
		if entry := event.photo(name); entry != nil {
			if entry.Terminal() {
				return fmt.Errorf("photo %s was already processed", name)
			}
			entry.UploadedAt = now
		} else {
			event.Photos = append(event.Photos, PhotoEntry{
				Filename:   name,
				UploadedAt: now,
				Status:     PhotoPending,
			})
		}
		event.State = EventUploading

		if err := m.writePhoto(eventID, name, data); err != nil {
			return err
		}
		return putEvent(tx, event)
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// checkStorage refuses new photo writes when the disk signal reports
// free space below the configured floor.
func (m *Manager) checkStorage() error {
	if m.disk == nil || m.opts.MinFreeBytes == 0 {
		return nil
	}
	free, err := m.disk.FreeBytes(m.opts.DataDir)
	if err != nil {
		return fmt.Errorf("reading free space: %w", err)
	}
	if free < m.opts.MinFreeBytes {
		return fmt.Errorf("%d bytes free, %d required: %w", free, m.opts.MinFreeBytes, ErrInsufficientStorage)
	}
	return nil
}

func (m *Manager) writePhoto(eventID, name string, data []byte) error {
	dir := filepath.Dir(m.photoPath(eventID, name))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating photo directory: %w", err)
	}
	if err := os.WriteFile(m.photoPath(eventID, name), data, 0644); err != nil {
		return fmt.Errorf("writing photo %s: %w", name, err)
	}

	// Thumbnails are a convenience for gallery views, never required.
	thumb, err := Thumbnail(data, m.opts.ThumbnailSize)
	if err != nil {
		log.Printf("could not create thumbnail for %s: %v", name, err)
		return nil
	}
	thumbDir := filepath.Dir(m.thumbPath(eventID, name))
	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		log.Printf("could not create thumbnail directory: %v", err)
		return nil
	}
	if err := os.WriteFile(m.thumbPath(eventID, name), thumb, 0644); err != nil {
		log.Printf("could not write thumbnail for %s: %v", name, err)
	}
	return nil
}

// BeginProcessing closes the event for uploads and moves it to the
// processing state. The event must own at least one photo.
func (m *Manager) BeginProcessing(userID, eventID string) error {
	return m.events.Update(eventID, func(tx *bbolt.Tx, event *Event) error {
		if event == nil || event.UserID != userID {
			return fmt.Errorf("event %s: %w", eventID, database.ErrNotFound)
		}
		switch event.State {
		case EventUploading:
		case EventProcessing:
			return nil
		default:
			return fmt.Errorf("event %s is %s: %w", eventID, event.State, ErrEventClosed)
		}
		if len(event.Photos) == 0 {
			return fmt.Errorf("event %s has no photos", eventID)
		}
		event.State = EventProcessing
		return putEvent(tx, event)
	})
}

// RecordExtracted records the outcome of a successful extraction run for
// one photo: zero faces marks it no-face, otherwise each face is saved
// to the embedding store and added to the index before the photo is
// marked embedded, so a recorded photo always has durable embeddings.
// Recording is exactly-once: a photo that already reached a terminal
// state is left untouched and redundantly saved embeddings are removed.
func (m *Manager) RecordExtracted(ctx context.Context, eventID, filename string, faces []extract.Face) error {
	event, err := m.events.Get(eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("event %s: %w", eventID, database.ErrNotFound)
	}
	entry := event.photo(filename)
	if entry == nil {
		return fmt.Errorf("photo %s in event %s: %w", filename, eventID, database.ErrNotFound)
	}
	if entry.Terminal() {
		return nil
	}

	var ids []int64
	photoRef := eventID + "/" + filename
	for _, face := range faces {
		id, err := m.store.Save(ctx, event.UserID, photoRef, face.Vector)
		if err != nil {
			m.discardEmbeddings(ctx, event.UserID, ids)
			return fmt.Errorf("saving embedding for %s: %w", filename, err)
		}
		if err := m.index.Add(id, face.Vector); err != nil {
			log.Printf("could not index embedding %d: %v", id, err)
		}
		ids = append(ids, id)
	}

	stale := false
	err = m.events.Update(eventID, func(tx *bbolt.Tx, event *Event) error {
		if event == nil {
			return fmt.Errorf("event %s: %w", eventID, database.ErrNotFound)
		}
		entry := event.photo(filename)
		if entry == nil {
			return fmt.Errorf("photo %s in event %s: %w", filename, eventID, database.ErrNotFound)
		}
		if entry.Terminal() {
			stale = true
			return nil
		}
		if len(ids) == 0 {
			entry.Status = PhotoNoFace
		} else {
			entry.Status = PhotoEmbedded
			entry.EmbeddingIDs = ids
		}
		if err := putEvent(tx, event); err != nil {
			return err
		}
		return evaluateCompletion(tx, event)
	})
	if err != nil || stale {
		m.discardEmbeddings(ctx, event.UserID, ids)
	}
	return err
}

// RecordFailure records a terminal extraction failure for one photo. The
// cause is stored on the entry, never propagated: one bad photo must not
// block the event from completing.
func (m *Manager) RecordFailure(eventID, filename string, cause error) error {
	return m.events.Update(eventID, func(tx *bbolt.Tx, event *Event) error {
		if event == nil {
			return fmt.Errorf("event %s: %w", eventID, database.ErrNotFound)
		}
		entry := event.photo(filename)
		if entry == nil {
			return fmt.Errorf("photo %s in event %s: %w", filename, eventID, database.ErrNotFound)
		}
		if entry.Terminal() {
			return nil
		}
		entry.Status = PhotoFailed
		entry.Error = cause.Error()
		if err := putEvent(tx, event); err != nil {
			return err
		}
		return evaluateCompletion(tx, event)
	})
}

// evaluateCompletion writes the completion marker once every photo of
// the event has a terminal outcome. It runs inside the caller's write
// transaction and is safe to invoke redundantly: the marker write is
// idempotent and re-evaluation after completion changes nothing.
func evaluateCompletion(tx *bbolt.Tx, event *Event) error {
	if event.State == EventFailed {
		return nil
	}
	if len(event.Photos) == 0 || !event.allTerminal() {
		return nil
	}
	marker := &CompletionMarker{
		EventID:     event.ID,
		CompletedAt: time.Now().UTC(),
		Stats:       event.stats(),
	}
	if err := putMarkerIfAbsent(tx, marker); err != nil {
		return err
	}
	if event.State != EventCompleted {
		event.State = EventCompleted
		return putEvent(tx, event)
	}
	return nil
}

// FailEvent marks the whole event failed. Its photos and any embeddings
// already stored are kept for diagnosis.
func (m *Manager) FailEvent(userID, eventID string) error {
	return m.events.Update(eventID, func(tx *bbolt.Tx, event *Event) error {
		if event == nil || event.UserID != userID {
			return fmt.Errorf("event %s: %w", eventID, database.ErrNotFound)
		}
		event.State = EventFailed
		return putEvent(tx, event)
	})
}

// ProcessEvent runs extraction over every pending photo of an event.
// Per-photo failures are recorded on the entry and do not stop the run;
// the returned error covers only event-level problems or cancellation.
func (m *Manager) ProcessEvent(ctx context.Context, userID, eventID string, extractor extract.Extractor) error {
	if err := m.BeginProcessing(userID, eventID); err != nil {
		return err
	}

	event, err := m.GetEvent(userID, eventID)
	if err != nil {
		return err
	}

	for i := range event.Photos {
		entry := &event.Photos[i]
		if entry.Terminal() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := os.ReadFile(m.photoPath(eventID, entry.Filename))
		if err != nil {
			m.recordOrLog(eventID, entry.Filename, fmt.Errorf("reading photo: %w", err))
			continue
		}

		faces, err := extractor.Extract(ctx, data)
		if err != nil {
			m.recordOrLog(eventID, entry.Filename, fmt.Errorf("extraction failed: %w", err))
			continue
		}
		if err := m.RecordExtracted(ctx, eventID, entry.Filename, faces); err != nil {
			m.recordOrLog(eventID, entry.Filename, err)
		}
	}

	return nil
}

func (m *Manager) recordOrLog(eventID, filename string, cause error) {
	if err := m.RecordFailure(eventID, filename, cause); err != nil {
		log.Printf("could not record failure for %s/%s: %v", eventID, filename, err)
	}
}

// DeleteEvent removes an event, its completion marker, its photo files
// and every embedding its photos produced.
func (m *Manager) DeleteEvent(ctx context.Context, userID, eventID string) error {
	event, err := m.GetEvent(userID, eventID)
	if err != nil {
		return err
	}

	for i := range event.Photos {
		m.discardEmbeddings(ctx, userID, event.Photos[i].EmbeddingIDs)
	}

	if err := m.events.Delete(userID, eventID); err != nil {
		return fmt.Errorf("deleting event %s: %w", eventID, err)
	}
	if err := os.RemoveAll(m.eventDir(eventID)); err != nil {
		log.Printf("could not remove event directory %s: %v", eventID, err)
	}
	return nil
}

// discardEmbeddings best-effort deletes embeddings from the store and the
// index, used for event deletion and for rolling back redundant saves.
func (m *Manager) discardEmbeddings(ctx context.Context, userID string, ids []int64) {
	for _, id := range ids {
		if _, err := m.store.Delete(ctx, userID, id); err != nil {
			log.Printf("could not delete embedding %d: %v", id, err)
			continue
		}
		m.index.Remove(id)
	}
}
