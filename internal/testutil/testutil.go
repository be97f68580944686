// Package testutil provides shared fixtures for integration tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/jamcalli/Pulsarr-sub011/internal/database"
)

// TestDB is a migrated throwaway database backed by a temp directory.
// The directory is removed by the testing framework; Close only needs
// to release the connection.
type TestDB struct {
	DB   *database.DB
	Conn *sql.DB
}

// NewTestDB opens a fresh database under t.TempDir and applies all
// migrations. Callers should defer Close.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("migrate test database: %v", err)
	}

	return &TestDB{DB: db, Conn: db.Conn()}
}

// Close releases the database connection.
func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
}
