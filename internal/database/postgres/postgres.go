// Package postgres provides a PostgreSQL/pgvector-backed embedding store
// for deployments that already run Postgres. The bolt-backed store in the
// parent package remains the default.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new PostgreSQL connection pool and verifies the
// connection.
func NewPool(url string, maxOpen, maxIdle int) (*Pool, error) {
	if url == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the pgvector extension and the faces table for the given
// embedding dimension.
func (p *Pool) Migrate(ctx context.Context, dim int) error {
	if _, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS faces (
			id              BIGSERIAL PRIMARY KEY,
			user_id         VARCHAR(255) NOT NULL,
			photo_reference TEXT NOT NULL,
			embedding       vector(%d) NOT NULL,
			created_at      TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, dim)
	if _, err := p.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create faces table: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS faces_user_id_idx ON faces(user_id)
	`); err != nil {
		return fmt.Errorf("failed to create user_id index: %w", err)
	}

	return nil
}

// CreateVectorIndex creates the IVFFlat index for similarity search.
// Call after the table has data for sensible cluster centers.
func (p *Pool) CreateVectorIndex(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS faces_vector_idx
		ON faces USING ivfflat (embedding vector_ip_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}
