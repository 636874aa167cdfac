// Package database provides durable storage for per-user face embeddings.
package database

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by store implementations.
var (
	// ErrInvalidVector is returned when a vector's dimension does not match
	// the store's configured dimension. Mismatches are never truncated or
	// padded.
	ErrInvalidVector = errors.New("invalid vector dimension")

	// ErrNotFound is returned when a record or event does not exist.
	// Store-level deletes deliberately do not use it: absence and ownership
	// mismatch are indistinguishable there to prevent existence probing.
	ErrNotFound = errors.New("not found")
)

// EmbeddingRecord is one face embedding owned by a user.
// Records are immutable once created; a changed embedding is a delete
// followed by a new save.
type EmbeddingRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	PhotoRef  string    `json:"photo_reference"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreStats summarizes the contents of an embedding store.
type StoreStats struct {
	TotalCount int            `json:"total_count"`
	PerUser    map[string]int `json:"per_user_counts"`
}

// Store is the durable ledger of face embeddings. Every mutating call
// commits before returning so an index can always be rebuilt from the
// store after a crash.
type Store interface {
	// Save appends a new record and returns its ID. IDs are unique and
	// monotonically assigned. Multiple records may share a photo
	// reference (multiple faces per photo).
	Save(ctx context.Context, userID, photoRef string, vector []float32) (int64, error)

	// List returns all records for a user in creation order. A user with
	// no records yields an empty slice, not an error.
	List(ctx context.Context, userID string) ([]EmbeddingRecord, error)

	// Delete removes a record only if it belongs to userID. It returns
	// false when the record is absent or owned by someone else.
	Delete(ctx context.Context, userID string, id int64) (bool, error)

	// ClearAll wipes the store and returns the number of records removed.
	ClearAll(ctx context.Context) (int, error)

	// Stats returns total and per-user record counts.
	Stats(ctx context.Context) (StoreStats, error)

	// Dimension returns the fixed vector dimension of the store.
	Dimension() int
}

// RecordSource yields the full record sequence in ID order. Similarity
// indexes replay it to rebuild from scratch after a crash or bulk delete.
type RecordSource interface {
	All(ctx context.Context) ([]EmbeddingRecord, error)
}
