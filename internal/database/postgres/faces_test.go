//go:build integration

package postgres

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testDim = 8

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(dbURL, 5, 2)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx, testDim); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testVector(seed float32) []float32 {
	v := make([]float32, testDim)
	for i := range v {
		v[i] = seed + float32(i)/10
	}
	return v
}

func TestFaceStore(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewFaceStore(pool, testDim)

	t.Run("SaveAndList", func(t *testing.T) {
		v := testVector(1)
		id, err := store.Save(ctx, "alice", "event-1/a.jpg", v)
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if id <= 0 {
			t.Errorf("Save returned ID %d", id)
		}

		records, err := store.List(ctx, "alice")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("List returned %d records", len(records))
		}
		for i := range v {
			if math.Abs(float64(records[0].Vector[i]-v[i])) > 1e-5 {
				t.Errorf("vector component %d = %f, want %f", i, records[0].Vector[i], v[i])
			}
		}
	})

	t.Run("MonotonicIDs", func(t *testing.T) {
		first, err := store.Save(ctx, "bob", "p.jpg", testVector(2))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		second, err := store.Save(ctx, "bob", "p.jpg", testVector(3))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if second <= first {
			t.Errorf("IDs not monotonic: %d then %d", first, second)
		}
	})

	t.Run("DeleteOwnership", func(t *testing.T) {
		id, err := store.Save(ctx, "carol", "p.jpg", testVector(4))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		deleted, err := store.Delete(ctx, "alice", id)
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if deleted {
			t.Error("Delete by non-owner reported success")
		}

		deleted, err = store.Delete(ctx, "carol", id)
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if !deleted {
			t.Error("Delete by owner reported failure")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.TotalCount == 0 {
			t.Error("Stats reports empty store after saves")
		}
		if stats.PerUser["bob"] != 2 {
			t.Errorf("PerUser[bob] = %d, want 2", stats.PerUser["bob"])
		}
	})

	t.Run("ClearAll", func(t *testing.T) {
		removed, err := store.ClearAll(ctx)
		if err != nil {
			t.Fatalf("ClearAll failed: %v", err)
		}
		if removed == 0 {
			t.Error("ClearAll removed nothing")
		}

		// BIGSERIAL keeps counting after a wipe.
		id, err := store.Save(ctx, "alice", "p.jpg", testVector(5))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if id <= int64(removed) {
			t.Errorf("ID %d issued after ClearAll of %d records", id, removed)
		}
	})
}
