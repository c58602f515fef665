// Package testing provides testing utilities and helpers for the posenv project.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/posenv/internal/database"
)

// NewTestDB creates a temporary-file SQLite database with its schema applied.
// The database is closed and removed when the test finishes.
//
// Supported schema names:
//   - "requests" - applies requests_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	// Each test gets its own file so WAL mode behaves as in production
	path := filepath.Join(t.TempDir(), name+".db")

	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
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
		_ = os.Remove(path)
	})

	return db
}
