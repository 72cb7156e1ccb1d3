package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// EnsureCollection creates the per-collection vector table and its HNSW
// cosine index if they do not exist. Re-running against an up-to-date
// collection is a no-op.
//
// If the collection exists with a different vector dimension, the table
// is truncated and the embedding column recreated at the new width: old
// vectors are unusable at a new dimension and every record must be
// re-embedded anyway. An existing non-HNSW index on the embedding
// column is replaced the same way, without touching the data.
func (s *Store) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if dimension != s.dimension {
		return fmt.Errorf("%w: requested %d, store configured for %d",
			ErrDimensionMismatch, dimension, s.dimension)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			text       TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, collection, dimension)); err != nil {
		return fmt.Errorf("creating collection %q: %w", collection, err)
	}

	current, err := s.columnDimension(ctx, tx, collection)
	if err != nil {
		return err
	}
	if current != dimension {
		s.logger.Warn("collection dimension changed, rebuilding embedding column",
			"collection", collection, "from", current, "to", dimension)
		if _, err := tx.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, collection)); err != nil {
			return fmt.Errorf("truncating %q for dimension change: %w", collection, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`ALTER TABLE %s ALTER COLUMN embedding TYPE vector(%d)`,
			collection, dimension)); err != nil {
			return fmt.Errorf("resizing embedding column of %q: %w", collection, err)
		}
	}

	if err := s.ensureVectorIndex(ctx, tx, collection); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing schema changes: %w", err)
	}
	return nil
}

// columnDimension reads the physical vector width of the embedding
// column. For pgvector columns atttypmod carries the dimension directly.
func (s *Store) columnDimension(ctx context.Context, q querier, collection string) (int, error) {
	var dim int
	err := q.QueryRow(ctx,
		`SELECT atttypmod
		 FROM pg_attribute
		 WHERE attrelid = $1::regclass AND attname = 'embedding' AND NOT attisdropped`,
		collection,
	).Scan(&dim)
	if err != nil {
		return 0, fmt.Errorf("reading embedding dimension of %q: %w", collection, err)
	}
	return dim, nil
}

// ensureVectorIndex creates the HNSW cosine index, replacing any prior
// index of the same name built with a different access method.
func (s *Store) ensureVectorIndex(ctx context.Context, q querier, collection string) error {
	indexName := collection + "_embedding_idx"

	var indexDef string
	err := q.QueryRow(ctx,
		`SELECT indexdef FROM pg_indexes WHERE schemaname = current_schema() AND indexname = $1`,
		indexName,
	).Scan(&indexDef)
	switch {
	case err == nil:
		if strings.Contains(indexDef, " USING hnsw ") {
			return nil
		}
		s.logger.Warn("replacing embedding index with hnsw",
			"collection", collection, "previous", indexDef)
		if _, err := q.Exec(ctx, fmt.Sprintf(`DROP INDEX %s`, indexName)); err != nil {
			return fmt.Errorf("dropping index %q: %w", indexName, err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		// Fall through and create it.
	default:
		return fmt.Errorf("inspecting index %q: %w", indexName, err)
	}

	if _, err := q.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops)`,
		indexName, collection)); err != nil {
		return fmt.Errorf("creating index %q: %w", indexName, err)
	}
	return nil
}
