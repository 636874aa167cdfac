package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facefind/internal/database"
)

// FaceStore implements database.Store on top of PostgreSQL with pgvector.
type FaceStore struct {
	pool *Pool
	dim  int
}

// Compile-time check that FaceStore satisfies the store contract.
var _ database.Store = (*FaceStore)(nil)

// NewFaceStore creates a store over an existing pool. The dimension must
// match the one the faces table was migrated with.
func NewFaceStore(pool *Pool, dim int) *FaceStore {
	return &FaceStore{pool: pool, dim: dim}
}

// Dimension returns the fixed vector dimension of the store.
func (s *FaceStore) Dimension() int {
	return s.dim
}

// Save appends a new record and returns its database-assigned ID.
func (s *FaceStore) Save(ctx context.Context, userID, photoRef string, vector []float32) (int64, error) {
	if len(vector) != s.dim {
		return 0, fmt.Errorf("%w: got %d, store uses %d", database.ErrInvalidVector, len(vector), s.dim)
	}

	var id int64
	err := s.pool.db.QueryRowContext(ctx, `
		INSERT INTO faces (user_id, photo_reference, embedding, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id
	`, userID, photoRef, pgvector.NewVector(vector)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert face: %w", err)
	}
	return id, nil
}

// List returns all records for a user in creation order.
func (s *FaceStore) List(ctx context.Context, userID string) ([]database.EmbeddingRecord, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, user_id, photo_reference, embedding, created_at
		FROM faces
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Delete removes a record only if it belongs to userID; the WHERE clause
// makes absence and ownership mismatch indistinguishable.
func (s *FaceStore) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := s.pool.db.ExecContext(ctx,
		"DELETE FROM faces WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, fmt.Errorf("delete face: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete face: %w", err)
	}
	return n > 0, nil
}

// ClearAll wipes every record and returns how many were removed.
func (s *FaceStore) ClearAll(ctx context.Context) (int, error) {
	res, err := s.pool.db.ExecContext(ctx, "DELETE FROM faces")
	if err != nil {
		return 0, fmt.Errorf("clear faces: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear faces: %w", err)
	}
	return int(n), nil
}

// Stats returns total and per-user record counts.
func (s *FaceStore) Stats(ctx context.Context) (database.StoreStats, error) {
	stats := database.StoreStats{PerUser: make(map[string]int)}

	rows, err := s.pool.db.QueryContext(ctx,
		"SELECT user_id, COUNT(*) FROM faces GROUP BY user_id")
	if err != nil {
		return database.StoreStats{}, fmt.Errorf("face stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user string
		var count int
		if err := rows.Scan(&user, &count); err != nil {
			return database.StoreStats{}, fmt.Errorf("face stats: %w", err)
		}
		stats.PerUser[user] = count
		stats.TotalCount += count
	}
	return stats, rows.Err()
}

// All returns every record in ID order for index rebuilds.
func (s *FaceStore) All(ctx context.Context) ([]database.EmbeddingRecord, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, user_id, photo_reference, embedding, created_at
		FROM faces
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load all faces: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) ([]database.EmbeddingRecord, error) {
	records := []database.EmbeddingRecord{}
	for rows.Next() {
		var rec database.EmbeddingRecord
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.PhotoRef, &vec, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		rec.Vector = vec.Slice()
		records = append(records, rec)
	}
	return records, rows.Err()
}
