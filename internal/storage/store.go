package storage

import (
	"context"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
)

// Store is the record store behind the HTTP, MCP and CLI surfaces. *DB and
// the SQLite store both implement it.
type Store interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)

	GetPreferences(ctx context.Context, userID int) (models.Preferences, error)
	UpsertPreferences(ctx context.Context, p models.Preferences) error

	ListExercises(ctx context.Context) ([]models.CatalogEntry, error)
	InsertExercises(ctx context.Context, entries []models.CatalogEntry) (int64, error)

	PersistProgram(ctx context.Context, p models.NewProgram) (uuid.UUID, error)
	GetProgram(ctx context.Context, userID int, id uuid.UUID) (*models.ProgramDetail, error)
	ListPrograms(ctx context.Context, userID, limit int) ([]models.ProgramRow, error)

	InsertGenerationLog(ctx context.Context, log models.GenerationLog) (int64, error)
	QueryGenerationLogs(ctx context.Context, userID, limit int) ([]models.GenerationLog, error)

	InsertSessionLog(ctx context.Context, userID int, sessionID uuid.UUID) (models.SessionLog, error)
	CountSessionLogs(ctx context.Context, userID int, sessionID uuid.UUID) (int, error)

	Close() error
}

var _ Store = (*DB)(nil)
