// Package databasetest opens throwaway stores for tests.
package databasetest

import (
	"path/filepath"
	"testing"

	"github.com/edgard/matchbot/internal/database"
)

// NewStore opens a migrated SQLite store under t.TempDir and closes it on cleanup.
func NewStore(t testing.TB) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "matchbot.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}
