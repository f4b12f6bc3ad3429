// Package database manages the Postgres pool and schema migrations backing
// the tipbot ledger.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the connection pool holding the ledger: user balances, the message
// audit log, tips, deposits and withdrawals. Repositories run either
// directly on it or on a transaction begun from it.
type DB struct {
	*pgxpool.Pool
}

// NewConnection opens the ledger pool and verifies the database is
// reachable before handing it out.
func NewConnection(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the pool and all of its connections.
func (db *DB) Close() {
	db.Pool.Close()
}
