package db

import (
	"context"
	"path/filepath"
	"testing"
)

// NewTestDB creates a fresh SQLite database in a temporary directory with all
// migrations applied. A file is used instead of :memory: so that pooled
// connections share one database.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	d, err := Open(filepath.Join(t.TempDir(), "catalog.sqlite3"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := Migrate(context.Background(), d); err != nil {
		d.Close()
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() { d.Close() })

	return d
}
