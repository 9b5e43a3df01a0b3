package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores each collection as one JSONB row in the collections
// table (see migrations/).
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend connects to databaseURL and verifies the connection.
func NewPostgresBackend(ctx context.Context, databaseURL string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

// Pool exposes the underlying pool, e.g. for pool stat metrics.
func (b *PostgresBackend) Pool() *pgxpool.Pool {
	return b.pool
}

func (b *PostgresBackend) Load(ctx context.Context, collection string) ([]byte, error) {
	var data []byte
	err := b.pool.QueryRow(ctx,
		`SELECT data FROM collections WHERE name = $1`, collection,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading collection %s: %w", collection, err)
	}
	return data, nil
}

func (b *PostgresBackend) Save(ctx context.Context, collection string, data []byte) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO collections (name, data, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		collection, data,
	)
	if err != nil {
		return fmt.Errorf("saving collection %s: %w", collection, err)
	}
	return nil
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
