package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/storage/sqlite"
)

// TestOpenSQLite verifies the sqlite driver yields a migrated, usable store.
func TestOpenSQLite(t *testing.T) {
	db := config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "data", "freecoach.db")}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	s, err := Open(context.Background(), db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, ok := s.(*sqlite.Store); !ok {
		t.Fatalf("store is %T, want *sqlite.Store", s)
	}
	id, err := s.GetOrCreateUser(context.Background(), "local", "Local Dev User")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if id != 1 {
		t.Errorf("first user id = %d, want 1", id)
	}
}
