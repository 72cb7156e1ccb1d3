// Package knowledge implements the PostgreSQL + pgvector knowledge
// store: per-collection vector tables for similarity search and shared
// entity/edge tables for graph traversal.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var (
	// ErrInvalidCollection indicates a collection name that is not a
	// safe SQL identifier. Collection names are interpolated into DDL
	// and queries, so anything else is refused outright.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a record embedding whose length
	// differs from the collection's vector dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMissingEndpoint indicates an edge whose endpoint entity does
	// not exist.
	ErrMissingEndpoint = errors.New("edge endpoint does not exist")
)

// collectionPattern mirrors the config-level check. Enforced again
// here because the store is also constructed directly in tests.
var collectionPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages vector and graph knowledge backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *slog.Logger
}

// NewStore creates a knowledge Store. dimension is the vector width
// every collection managed by this store uses.
func NewStore(pool *pgxpool.Pool, dimension int, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if dimension < 1 {
		return nil, fmt.Errorf("%w: %d", ErrDimensionMismatch, dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, dimension: dimension, logger: logger}, nil
}

// Dimension returns the vector width this store enforces.
func (s *Store) Dimension() int { return s.dimension }

func validateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// validateBatch checks every record before anything is written, so a
// bad record never leaves a batch half-applied.
func (s *Store) validateBatch(collection string, records []Record) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	for _, r := range records {
		if r.Key == "" {
			return fmt.Errorf("record with empty key in collection %q", collection)
		}
		if len(r.Embedding) != s.dimension {
			return fmt.Errorf("%w: record %q has %d dimensions, collection %q expects %d",
				ErrDimensionMismatch, r.Key, len(r.Embedding), collection, s.dimension)
		}
	}
	return nil
}

// UpsertBatch writes records in one multi-row statement. On key
// conflict only text, embedding and updated_at are replaced; metadata
// and created_at keep their original values. Last write wins.
func (s *Store) UpsertBatch(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.validateBatch(collection, records); err != nil {
		return err
	}

	var (
		sb   strings.Builder
		args = make([]any, 0, len(records)*4)
	)
	fmt.Fprintf(&sb, `INSERT INTO %s (key, text, embedding, metadata) VALUES `, collection)
	for i, r := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", len(args)+1, len(args)+2, len(args)+3, len(args)+4)
		meta := r.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		args = append(args, r.Key, r.Text, pgvector.NewVector(r.Embedding), meta)
	}
	sb.WriteString(` ON CONFLICT (key) DO UPDATE SET
		text = EXCLUDED.text,
		embedding = EXCLUDED.embedding,
		updated_at = now()`)

	if _, err := s.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("upserting %d records into %q: %w", len(records), collection, err)
	}
	return nil
}

// Search returns the k nearest records by cosine distance, ordered by
// descending similarity. Ties keep the order the index returned them in.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q expects %d",
			ErrDimensionMismatch, len(vector), collection, s.dimension)
	}
	if k < 1 {
		k = 1
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT key, text, 1 - (embedding <=> $1) AS similarity
		 FROM %s
		 ORDER BY embedding <=> $1
		 LIMIT $2`, collection),
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", collection, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Key, &r.Text, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return results, nil
}

// HybridSearch runs the same k-NN query as Search and enriches each
// hit with its outbound edges of edgeKind: the terminal entity key plus
// the edge's outcome attribute. The pairing comes from the edge row
// itself, never from positional alignment of parallel lists. Rows keep
// the inner query's index order, so equal-similarity ties stay stable
// through the aggregation.
func (s *Store) HybridSearch(ctx context.Context, collection string, vector []float32, k int, edgeKind string) ([]HybridResult, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q expects %d",
			ErrDimensionMismatch, len(vector), collection, s.dimension)
	}
	if k < 1 {
		k = 1
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`WITH nearest AS (
			SELECT key, text, 1 - (embedding <=> $1) AS similarity,
				ROW_NUMBER() OVER (ORDER BY embedding <=> $1) AS rank
			FROM %s
			ORDER BY embedding <=> $1
			LIMIT $2
		)
		SELECT n.key, n.text, n.similarity,
			jsonb_agg(jsonb_build_object(
				'target', e.to_key,
				'kind', e.kind,
				'outcome', COALESCE(e.attributes->>'outcome', '')
			) ORDER BY e.to_key) FILTER (WHERE e.id IS NOT NULL) AS annotations
		FROM nearest n
		LEFT JOIN edges e
			ON e.from_collection = $3 AND e.from_key = n.key AND e.kind = $4
		GROUP BY n.key, n.text, n.similarity, n.rank
		ORDER BY n.rank`, collection),
		pgvector.NewVector(vector), k, collection, edgeKind,
	)
	if err != nil {
		return nil, fmt.Errorf("hybrid searching %q: %w", collection, err)
	}
	defer rows.Close()

	var results []HybridResult
	for rows.Next() {
		var (
			r   HybridResult
			raw []byte
		)
		if err := rows.Scan(&r.Key, &r.Text, &r.Similarity, &raw); err != nil {
			return nil, fmt.Errorf("scanning hybrid result: %w", err)
		}
		anns, err := normalizeAnnotations(raw)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", r.Key, err)
		}
		r.Annotations = anns
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading hybrid results: %w", err)
	}
	return results, nil
}

// CollectionStats reports row count and physical vector dimension for
// a collection.
func (s *Store) CollectionStats(ctx context.Context, collection string) (CollectionInfo, error) {
	if err := validateCollection(collection); err != nil {
		return CollectionInfo{}, err
	}

	info := CollectionInfo{Name: collection}
	if err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, collection),
	).Scan(&info.Records); err != nil {
		return CollectionInfo{}, fmt.Errorf("counting %q: %w", collection, err)
	}

	dim, err := s.columnDimension(ctx, s.pool, collection)
	if err != nil {
		return CollectionInfo{}, err
	}
	info.Dimension = dim
	return info, nil
}
