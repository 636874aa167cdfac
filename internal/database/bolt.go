package database

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketFaces     = []byte("faces")
	bucketUserFaces = []byte("user_faces")
)

// BoltStore is a bbolt-backed embedding store. Records live in the faces
// bucket keyed by big-endian record ID; the user_faces bucket holds
// composite user+ID keys so per-user listing is a prefix scan in creation
// order. Record IDs come from the bucket sequence, which bbolt increments
// atomically inside the write transaction.
type BoltStore struct {
	db  *bbolt.DB
	dim int
}

// OpenBolt opens (or creates) a bolt-backed store at path with a fixed
// vector dimension.
func OpenBolt(path string, dim int) (*BoltStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening embedding store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketFaces, bucketUserFaces} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, dim: dim}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Dimension returns the fixed vector dimension of the store.
func (s *BoltStore) Dimension() int {
	return s.dim
}

func faceKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

// userFaceKey builds the composite user_faces key. The NUL separator keeps
// prefixes unambiguous; user IDs never contain NUL.
func userFaceKey(userID string, id int64) []byte {
	k := make([]byte, 0, len(userID)+9)
	k = append(k, userID...)
	k = append(k, 0)
	return append(k, faceKey(id)...)
}

// Save appends a new record and returns its ID.
func (s *BoltStore) Save(ctx context.Context, userID, photoRef string, vector []float32) (int64, error) {
	if len(vector) != s.dim {
		return 0, fmt.Errorf("%w: got %d, store uses %d", ErrInvalidVector, len(vector), s.dim)
	}

	var id int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		faces := tx.Bucket(bucketFaces)

		seq, err := faces.NextSequence()
		if err != nil {
			return fmt.Errorf("assigning record id: %w", err)
		}
		id = int64(seq)

		rec := EmbeddingRecord{
			ID:        id,
			UserID:    userID,
			PhotoRef:  photoRef,
			Vector:    vector,
			CreatedAt: time.Now().UTC(),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}

		if err := faces.Put(faceKey(id), data); err != nil {
			return err
		}
		return tx.Bucket(bucketUserFaces).Put(userFaceKey(userID, id), nil)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// List returns all records for a user in creation order.
func (s *BoltStore) List(ctx context.Context, userID string) ([]EmbeddingRecord, error) {
	records := []EmbeddingRecord{}
	prefix := append([]byte(userID), 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		faces := tx.Bucket(bucketFaces)
		c := tx.Bucket(bucketUserFaces).Cursor()

		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			data := faces.Get(k[len(prefix):])
			if data == nil {
				continue
			}
			var rec EmbeddingRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decoding record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes a record if it belongs to userID. Absence and ownership
// mismatch both report false.
func (s *BoltStore) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		faces := tx.Bucket(bucketFaces)

		data := faces.Get(faceKey(id))
		if data == nil {
			return nil
		}
		var rec EmbeddingRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decoding record: %w", err)
		}
		if rec.UserID != userID {
			return nil
		}

		if err := faces.Delete(faceKey(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketUserFaces).Delete(userFaceKey(userID, id)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ClearAll wipes every record and returns how many were removed. The
// sequence is preserved so record IDs stay monotonic across wipes.
func (s *BoltStore) ClearAll(ctx context.Context) (int, error) {
	count := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		faces := tx.Bucket(bucketFaces)
		count = faces.Stats().KeyN

		seq := faces.Sequence()
		if err := tx.DeleteBucket(bucketFaces); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketUserFaces); err != nil {
			return err
		}
		fresh, err := tx.CreateBucket(bucketFaces)
		if err != nil {
			return err
		}
		if err := fresh.SetSequence(seq); err != nil {
			return err
		}
		_, err = tx.CreateBucket(bucketUserFaces)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Stats returns total and per-user record counts.
func (s *BoltStore) Stats(ctx context.Context) (StoreStats, error) {
	stats := StoreStats{PerUser: make(map[string]int)}

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUserFaces).ForEach(func(k, _ []byte) error {
			// Composite key: userID, NUL, 8-byte record ID.
			if len(k) < 9 {
				return nil
			}
			user := string(k[:len(k)-9])
			stats.PerUser[user]++
			stats.TotalCount++
			return nil
		})
	})
	if err != nil {
		return StoreStats{}, err
	}
	return stats, nil
}

// All streams every record in ID order, used for index rebuilds.
func (s *BoltStore) All(ctx context.Context) ([]EmbeddingRecord, error) {
	records := []EmbeddingRecord{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFaces).ForEach(func(_, v []byte) error {
			var rec EmbeddingRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
