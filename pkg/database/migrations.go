package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These indexes enable efficient full-text search on covenant intent and
// result content, used by diagnostics tooling outside the hot path.
func CreateGINIndexes(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_covenants_intent_gin
		ON covenants USING gin(to_tsvector('english', intent))`)
	if err != nil {
		return fmt.Errorf("failed to create intent GIN index: %w", err)
	}

	_, err = pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_covenants_results_gin
		ON covenants USING gin(to_tsvector('english', COALESCE(results_json->>'content', '')))`)
	if err != nil {
		return fmt.Errorf("failed to create results GIN index: %w", err)
	}

	return nil
}
