// Package backend opens the record store named by the database config.
package backend

import (
	"context"
	"fmt"

	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/storage/sqlite"
)

// Migrate applies pending migrations without keeping a connection open.
func Migrate(db config.DatabaseConfig) error {
	switch db.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(db.Path)
		if err != nil {
			return err
		}
		return s.Close()
	default:
		return storage.RunMigrations(db.DSN())
	}
}

// Open migrates and connects to the configured store.
func Open(ctx context.Context, db config.DatabaseConfig) (storage.Store, error) {
	switch db.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(db.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	default:
		if err := storage.RunMigrations(db.DSN()); err != nil {
			return nil, err
		}
		s, err := storage.New(ctx, db.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting postgres: %w", err)
		}
		return s, nil
	}
}
