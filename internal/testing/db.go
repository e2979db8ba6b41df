// Package testing provides testing utilities and helpers for the valuescope project.
package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aristath/valuescope/internal/database"
)

// NewTestDB creates a file-backed database under t.TempDir() with the
// embedded schema for name ("cache" or "config") applied. The database is
// closed when the test ends.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	profile := database.ProfileStandard
	if name == database.NameCache {
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	return db
}

// NewMemoryDB opens an in-memory sqlite3 database with the embedded schema
// for name applied. A single connection is kept so every query sees the
// same in-memory database.
func NewMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := database.ApplySchema(db, name); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to apply schema %s: %v", name, err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}
