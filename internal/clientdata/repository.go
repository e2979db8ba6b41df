// Package clientdata persists fetched entities as JSON blobs keyed by id.
// Entries never expire; a refresh overwrites them wholesale.
package clientdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/valuescope/internal/database"
)

// Cache tables.
const (
	TableStockBaseInfo     = "stock_base_info"
	TableLeadingIndicators = "leading_indicators"
	TableFinancialReports  = "financial_reports"
)

// AllTables lists all tables in the cache database for cleanup operations.
var AllTables = []string{
	TableStockBaseInfo,
	TableLeadingIndicators,
	TableFinancialReports,
}

// validTables is a set for O(1) table name validation.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// maxVariables keeps IN (...) lists below sqlite's bound parameter limit.
const maxVariables = 500

// Repository provides id-keyed blob operations on the cache tables.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// validateTable ensures the table name is in our allowed list.
// This prevents SQL injection through table names.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Get returns the blob stored under id, or nil, nil if there is none.
func (r *Repository) Get(ctx context.Context, table, id string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	var data string
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT data FROM %s WHERE id = ?", table), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return json.RawMessage(data), nil
}

// GetMany returns the stored blobs for ids. Ids without an entry are absent
// from the map.
func (r *Repository) GetMany(ctx context.Context, table string, ids []string) (map[string]json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(ids))
	for start := 0; start < len(ids); start += maxVariables {
		end := min(start+maxVariables, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := fmt.Sprintf(
			"SELECT id, data FROM %s WHERE id IN (%s)",
			table, placeholders(len(chunk)),
		)

		if err := r.scanBlobs(ctx, table, out, query, args...); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// PutMany overwrites the entries for every id in items in one transaction.
func (r *Repository) PutMany(ctx context.Context, table string, items map[string]any) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	updatedAt := r.now().Unix()
	return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			"INSERT OR REPLACE INTO %s (id, data, updated_at) VALUES (?, ?, ?)", table,
		))
		if err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
		}
		defer stmt.Close()

		for id, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("failed to marshal %s: %w", id, err)
			}
			if _, err := stmt.ExecContext(ctx, id, string(data), updatedAt); err != nil {
				return fmt.Errorf("failed to store %s in %s: %w", id, table, err)
			}
		}
		return nil
	})
}

// List returns up to limit blobs ordered by id, starting at offset. A
// non-positive limit returns every entry from offset on.
func (r *Repository) List(ctx context.Context, table string, offset, limit int) ([]string, []json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, data FROM %s ORDER BY id LIMIT ? OFFSET ?", table),
		limit, offset,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	var blobs []json.RawMessage
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		ids = append(ids, id)
		blobs = append(blobs, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}

	return ids, blobs, nil
}

// Count returns the number of entries in table.
func (r *Repository) Count(ctx context.Context, table string) (int, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	var n int
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, table, id string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// DeleteOrphans removes the entries of table whose id is not present in
// parent and returns the number of rows deleted.
func (r *Repository) DeleteOrphans(ctx context.Context, table, parent string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}
	if err := validateTable(parent); err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id NOT IN (SELECT id FROM %s)", table, parent),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphans from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	return deleted, nil
}

// Clear removes every entry of table and returns the number of rows deleted.
func (r *Repository) Clear(ctx context.Context, table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table))
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	return deleted, nil
}

// ClearAll empties every cache table.
// Returns a map of table name to number of rows deleted.
func (r *Repository) ClearAll(ctx context.Context) (map[string]int64, error) {
	results := make(map[string]int64, len(AllTables))

	for _, table := range AllTables {
		deleted, err := r.Clear(ctx, table)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}

	return results, nil
}

func (r *Repository) scanBlobs(ctx context.Context, table string, out map[string]json.RawMessage, query string, args ...any) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to get data from %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out[id] = json.RawMessage(data)
	}
	return rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
