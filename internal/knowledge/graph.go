package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// foreign_key_violation
const pgFKViolation = "23503"

// CreateEntity inserts a graph node, updating kind and attributes if
// the (collection, key) pair already exists.
func (s *Store) CreateEntity(ctx context.Context, e Entity) error {
	if err := validateCollection(e.Collection); err != nil {
		return err
	}
	if e.Key == "" || e.Kind == "" {
		return fmt.Errorf("entity requires key and kind, got %q/%q", e.Key, e.Kind)
	}
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO entities (collection, key, kind, attributes)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, key) DO UPDATE SET
			kind = EXCLUDED.kind,
			attributes = EXCLUDED.attributes,
			updated_at = now()`,
		e.Collection, e.Key, e.Kind, attrs,
	)
	if err != nil {
		return fmt.Errorf("creating entity %s:%s: %w", e.Collection, e.Key, err)
	}
	return nil
}

// Relate creates a directed edge of the given kind between two
// entities. Both endpoints must already exist; the violation surfaces
// as ErrMissingEndpoint. Relating the same triple twice replaces the
// edge attributes.
func (s *Store) Relate(ctx context.Context, from RecordID, kind string, to RecordID, attrs map[string]any) error {
	if kind == "" {
		return fmt.Errorf("edge kind cannot be empty")
	}
	if attrs == nil {
		attrs = map[string]any{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO edges (kind, from_collection, from_key, to_collection, to_key, attributes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (kind, from_collection, from_key, to_collection, to_key)
		 DO UPDATE SET attributes = EXCLUDED.attributes`,
		kind, from.Collection, from.Key, to.Collection, to.Key, attrs,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgFKViolation {
			return fmt.Errorf("%w: %s -[%s]-> %s", ErrMissingEndpoint, from, kind, to)
		}
		return fmt.Errorf("relating %s -[%s]-> %s: %w", from, kind, to, err)
	}
	return nil
}
