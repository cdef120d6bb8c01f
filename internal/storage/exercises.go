package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/freecoach/internal/models"
)

// ListExercises returns the whole catalog ordered by muscle group and name.
func (db *DB) ListExercises(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, muscle_group, equipment, difficulty
		 FROM exercises
		 ORDER BY muscle_group, name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []models.CatalogEntry
	for rows.Next() {
		var e models.CatalogEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.MuscleGroup, &e.Equipment, &e.Difficulty); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// InsertExercises batch-upserts catalog entries by id. Returns rows affected.
func (db *DB) InsertExercises(ctx context.Context, entries []models.CatalogEntry) (int64, error) {
	entries = DedupeCatalog(entries)
	if len(entries) == 0 {
		return 0, nil
	}

	query := `INSERT INTO exercises (id, name, muscle_group, equipment, difficulty) VALUES `
	args := make([]any, 0, len(entries)*5)
	valueStrings := make([]string, 0, len(entries))

	for i, e := range entries {
		base := i * 5
		valueStrings = append(valueStrings, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, e.ID, e.Name, e.MuscleGroup, e.Equipment, e.Difficulty)
	}

	query += strings.Join(valueStrings, ",") + ` ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, muscle_group = EXCLUDED.muscle_group,
		equipment = EXCLUDED.equipment, difficulty = EXCLUDED.difficulty`

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting exercises: %w", err)
	}
	return tag.RowsAffected(), nil
}
