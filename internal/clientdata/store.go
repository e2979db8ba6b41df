package clientdata

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a typed view over one cache table. It satisfies
// reconcile.Store[T].
type Store[T any] struct {
	repo  *Repository
	table string
}

// NewStore creates a typed store over table.
func NewStore[T any](repo *Repository, table string) (*Store[T], error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	return &Store[T]{repo: repo, table: table}, nil
}

// Table returns the backing table name.
func (s *Store[T]) Table() string {
	return s.table
}

// Get returns the entity stored under id.
func (s *Store[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var v T
	raw, err := s.repo.Get(ctx, s.table, id)
	if err != nil || raw == nil {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("failed to decode %s from %s: %w", id, s.table, err)
	}
	return v, true, nil
}

// GetMany returns the stored entities for ids.
func (s *Store[T]) GetMany(ctx context.Context, ids []string) (map[string]T, error) {
	blobs, err := s.repo.GetMany(ctx, s.table, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]T, len(blobs))
	for id, raw := range blobs {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s from %s: %w", id, s.table, err)
		}
		out[id] = v
	}
	return out, nil
}

// PutMany overwrites the entities in items in one transaction.
func (s *Store[T]) PutMany(ctx context.Context, items map[string]T) error {
	generic := make(map[string]any, len(items))
	for id, v := range items {
		generic[id] = v
	}
	return s.repo.PutMany(ctx, s.table, generic)
}

// Missing returns the ids in input order that have no stored entity.
func (s *Store[T]) Missing(ctx context.Context, ids []string) ([]string, error) {
	blobs, err := s.repo.GetMany(ctx, s.table, ids)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if _, ok := blobs[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// List returns up to limit entities ordered by id, starting at offset.
func (s *Store[T]) List(ctx context.Context, offset, limit int) ([]T, error) {
	ids, blobs, err := s.repo.List(ctx, s.table, offset, limit)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(blobs))
	for i, raw := range blobs {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, fmt.Errorf("failed to decode %s from %s: %w", ids[i], s.table, err)
		}
	}
	return out, nil
}

// Count returns the number of stored entities.
func (s *Store[T]) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx, s.table)
}

// Clear removes every stored entity.
func (s *Store[T]) Clear(ctx context.Context) (int64, error) {
	return s.repo.Clear(ctx, s.table)
}
