package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/database"
	"github.com/kozaktomas/facefind/internal/database/postgres"
	"github.com/kozaktomas/facefind/internal/index"
)

// embeddingStore is the full capability of a store backend: the Store
// interface plus the record replay used for index rebuilds.
type embeddingStore interface {
	database.Store
	database.RecordSource
	Close() error
}

// openStore opens the configured embedding store backend. PostgreSQL
// with pgvector when DATABASE_URL is set, the local bolt file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (embeddingStore, error) {
	if cfg.Database.URL != "" {
		pool, err := postgres.NewPool(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx, cfg.Store.Dim); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrating PostgreSQL schema: %w", err)
		}
		fmt.Println("Using PostgreSQL embedding store")
		return pgStore{FaceStore: postgres.NewFaceStore(pool, cfg.Store.Dim), pool: pool}, nil
	}

	store, err := database.OpenBolt(cfg.Store.Path, cfg.Store.Dim)
	if err != nil {
		return nil, fmt.Errorf("opening embedding store: %w", err)
	}
	fmt.Printf("Using bolt embedding store at %s\n", cfg.Store.Path)
	return store, nil
}

// pgStore bundles the face store with its pool so Close tears down the
// connection pool.
type pgStore struct {
	*postgres.FaceStore
	pool *postgres.Pool
}

func (s pgStore) Close() error {
	return s.pool.Close()
}

// newIndex creates the configured similarity index. Deferred variants
// return an unavailable error from Search until the first rebuild, which
// the serve command runs in the background at startup.
func newIndex(cfg *config.Config, deferred bool) index.Index {
	switch cfg.Index.Backend {
	case "hnsw":
		if deferred {
			return index.NewDeferredHNSW(cfg.Store.Dim)
		}
		return index.NewHNSW(cfg.Store.Dim)
	default:
		if deferred {
			return index.NewDeferredFlat(cfg.Store.Dim)
		}
		return index.NewFlat(cfg.Store.Dim)
	}
}
