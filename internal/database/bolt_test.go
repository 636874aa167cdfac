package database

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, dim int) *BoltStore {
	t.Helper()
	store, err := OpenBolt(filepath.Join(t.TempDir(), "faces.db"), dim)
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreRoundTrip(t *testing.T) {
	store := openTestStore(t, 3)
	ctx := context.Background()

	vectors := [][]float32{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}

	ids := make(map[int64]bool)
	for i, v := range vectors {
		id, err := store.Save(ctx, "alice", "event-1/photo.jpg", v)
		if err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		if ids[id] {
			t.Errorf("Save returned duplicate ID %d", id)
		}
		ids[id] = true
	}

	records, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != len(vectors) {
		t.Fatalf("List returned %d records, want %d", len(records), len(vectors))
	}

	for i, rec := range records {
		if rec.UserID != "alice" {
			t.Errorf("record %d has user %q, want alice", i, rec.UserID)
		}
		if rec.PhotoRef != "event-1/photo.jpg" {
			t.Errorf("record %d has photo ref %q", i, rec.PhotoRef)
		}
		for j := range vectors[i] {
			if math.Abs(float64(rec.Vector[j]-vectors[i][j])) > 1e-6 {
				t.Errorf("record %d vector component %d = %f, want %f", i, j, rec.Vector[j], vectors[i][j])
			}
		}
	}
}

func TestBoltStoreListOrderedByCreation(t *testing.T) {
	store := openTestStore(t, 2)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := store.Save(ctx, "bob", "p.jpg", []float32{float32(i), 1})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, id)
	}

	records, err := store.List(ctx, "bob")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for i, rec := range records {
		if rec.ID != ids[i] {
			t.Errorf("record %d has ID %d, want %d", i, rec.ID, ids[i])
		}
	}
}

func TestBoltStoreDimensionMismatch(t *testing.T) {
	store := openTestStore(t, 3)
	ctx := context.Background()

	tests := []struct {
		name   string
		vector []float32
	}{
		{"too short", []float32{1, 2}},
		{"too long", []float32{1, 2, 3, 4}},
		{"empty", []float32{}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Save(ctx, "alice", "p.jpg", tt.vector)
			if !errors.Is(err, ErrInvalidVector) {
				t.Errorf("Save with %d dims returned %v, want ErrInvalidVector", len(tt.vector), err)
			}
		})
	}

	records, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("rejected saves left %d records behind", len(records))
	}
}

func TestBoltStoreDeleteOwnership(t *testing.T) {
	store := openTestStore(t, 2)
	ctx := context.Background()

	id, err := store.Save(ctx, "bob", "p.jpg", []float32{1, 0})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Another user's delete must fail and leave the record intact.
	deleted, err := store.Delete(ctx, "alice", id)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted {
		t.Error("Delete by non-owner reported success")
	}

	records, err := store.List(ctx, "bob")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record missing after non-owner delete")
	}

	// Absent records look the same as unowned ones.
	deleted, err = store.Delete(ctx, "bob", id+100)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted {
		t.Error("Delete of absent record reported success")
	}

	// The owner's delete succeeds.
	deleted, err = store.Delete(ctx, "bob", id)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Delete by owner reported failure")
	}

	records, err = store.List(ctx, "bob")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("record still present after owner delete")
	}
}

func TestBoltStoreClearAllKeepsIDsMonotonic(t *testing.T) {
	store := openTestStore(t, 2)
	ctx := context.Background()

	var maxID int64
	for i := 0; i < 3; i++ {
		id, err := store.Save(ctx, "alice", "p.jpg", []float32{1, 0})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		maxID = id
	}

	removed, err := store.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("ClearAll removed %d records, want 3", removed)
	}

	// IDs must never be reused, even across a full wipe.
	id, err := store.Save(ctx, "alice", "p.jpg", []float32{0, 1})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id <= maxID {
		t.Errorf("ID %d issued after ClearAll, want > %d", id, maxID)
	}
}

func TestBoltStoreStats(t *testing.T) {
	store := openTestStore(t, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.Save(ctx, "alice", "p.jpg", []float32{1, 0}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if _, err := store.Save(ctx, "bob", "q.jpg", []float32{0, 1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalCount != 4 {
		t.Errorf("TotalCount = %d, want 4", stats.TotalCount)
	}
	if stats.PerUser["alice"] != 3 {
		t.Errorf("PerUser[alice] = %d, want 3", stats.PerUser["alice"])
	}
	if stats.PerUser["bob"] != 1 {
		t.Errorf("PerUser[bob] = %d, want 1", stats.PerUser["bob"])
	}
}

func TestBoltStoreListEmptyUser(t *testing.T) {
	store := openTestStore(t, 2)

	records, err := store.List(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if records == nil {
		t.Error("List returned nil, want empty slice")
	}
	if len(records) != 0 {
		t.Errorf("List returned %d records for unknown user", len(records))
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.db")
	ctx := context.Background()

	store, err := OpenBolt(path, 2)
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	id, err := store.Save(ctx, "alice", "p.jpg", []float32{1, 0})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = OpenBolt(path, 2)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	records, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Errorf("record not durable across reopen: %+v", records)
	}
}
