package mcp

import (
	"context"

	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Both Local (in-process)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	GetPreferences(ctx context.Context, userID int) (models.Preferences, error)
	ListExercises(ctx context.Context) ([]models.CatalogEntry, error)
	GetProgram(ctx context.Context, userID int, id uuid.UUID) (*models.ProgramDetail, error)
	ListPrograms(ctx context.Context, userID, limit int) ([]models.ProgramRow, error)
	GenerateProgram(ctx context.Context, userID int) (*generation.Outcome, error)
}

// Generator runs the program pipeline. *generation.Orchestrator implements it.
type Generator interface {
	Generate(ctx context.Context, userID int) (*generation.Outcome, error)
}

// Local serves tools straight from a store and an in-process generator.
type Local struct {
	storage.Store
	gen Generator
}

// Compile-time check: *Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

// NewLocal creates a Local data source.
func NewLocal(store storage.Store, gen Generator) *Local {
	return &Local{Store: store, gen: gen}
}

// GenerateProgram runs the pipeline for userID.
func (l *Local) GenerateProgram(ctx context.Context, userID int) (*generation.Outcome, error) {
	return l.gen.Generate(ctx, userID)
}
