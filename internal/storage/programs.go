package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PersistProgram writes the program, its sessions and their exercises in one
// transaction and returns the program id. Nothing is left behind on error.
func (db *DB) PersistProgram(ctx context.Context, p models.NewProgram) (uuid.UUID, error) {
	plan := PlanProgram(p, time.Now().UTC())

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return uuid.Nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	prog := plan.Program
	if _, err := tx.Exec(ctx,
		`INSERT INTO programs (id, user_id, name, goal, duration_weeks, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		prog.ID, prog.UserID, prog.Name, string(prog.Goal), prog.DurationWeeks, prog.CreatedAt); err != nil {
		return uuid.Nil, fmt.Errorf("inserting program: %w", err)
	}

	if err := insertSessions(ctx, tx, plan.Sessions); err != nil {
		return uuid.Nil, err
	}
	for i, rows := range plan.Exercises {
		if err := insertSessionExercises(ctx, tx, rows); err != nil {
			return uuid.Nil, fmt.Errorf("session %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("committing program: %w", err)
	}
	return prog.ID, nil
}

func insertSessions(ctx context.Context, tx pgx.Tx, sessions []models.SessionRow) error {
	if len(sessions) == 0 {
		return nil
	}

	query := `INSERT INTO program_sessions (id, program_id, name, day_number) VALUES `
	args := make([]any, 0, len(sessions)*4)
	valueStrings := make([]string, 0, len(sessions))

	for i, s := range sessions {
		base := i * 4
		valueStrings = append(valueStrings, fmt.Sprintf("($%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4))
		args = append(args, s.ID, s.ProgramID, s.Name, s.DayNumber)
	}

	if _, err := tx.Exec(ctx, query+strings.Join(valueStrings, ","), args...); err != nil {
		return fmt.Errorf("inserting sessions: %w", err)
	}
	return nil
}

func insertSessionExercises(ctx context.Context, tx pgx.Tx, rows []models.SessionExerciseRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO session_exercises (id, session_id, exercise_id, sets, reps, rest_time, position) VALUES `
	args := make([]any, 0, len(rows)*7)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * 7
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args, r.ID, r.SessionID, r.ExerciseID, r.Sets, r.Reps, r.RestSeconds, r.Position)
	}

	if _, err := tx.Exec(ctx, query+strings.Join(valueStrings, ","), args...); err != nil {
		return fmt.Errorf("inserting session exercises: %w", err)
	}
	return nil
}

// GetProgram returns the full program tree if it belongs to userID, or
// ErrNotFound.
func (db *DB) GetProgram(ctx context.Context, userID int, id uuid.UUID) (*models.ProgramDetail, error) {
	var prog models.ProgramRow
	err := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, goal, duration_weeks, start_date, created_at
		 FROM programs WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&prog.ID, &prog.UserID, &prog.Name, &prog.Goal, &prog.DurationWeeks, &prog.StartDate, &prog.CreatedAt)
	if err != nil {
		return nil, notFound(err, "program "+id.String())
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, program_id, name, day_number
		 FROM program_sessions WHERE program_id = $1
		 ORDER BY day_number`, id)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SessionRow, error) {
		var s models.SessionRow
		err := row.Scan(&s.ID, &s.ProgramID, &s.Name, &s.DayNumber)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning sessions: %w", err)
	}

	rows, err = db.Pool.Query(ctx,
		`SELECT se.id, se.session_id, se.exercise_id, se.sets, se.reps, se.rest_time, se.position,
		        e.name, e.muscle_group
		 FROM session_exercises se
		 JOIN program_sessions ps ON ps.id = se.session_id
		 JOIN exercises e ON e.id = se.exercise_id
		 WHERE ps.program_id = $1
		 ORDER BY ps.day_number, se.position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying session exercises: %w", err)
	}
	exercises, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SessionExerciseRow, error) {
		var r models.SessionExerciseRow
		err := row.Scan(&r.ID, &r.SessionID, &r.ExerciseID, &r.Sets, &r.Reps, &r.RestSeconds, &r.Position,
			&r.Name, &r.MuscleGroup)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning session exercises: %w", err)
	}

	return AssembleProgram(prog, sessions, exercises), nil
}

// ListPrograms returns the most recent programs of a user, newest first.
func (db *DB) ListPrograms(ctx context.Context, userID, limit int) ([]models.ProgramRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, name, goal, duration_weeks, start_date, created_at
		 FROM programs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying programs: %w", err)
	}
	defer rows.Close()

	var result []models.ProgramRow
	for rows.Next() {
		var p models.ProgramRow
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Goal, &p.DurationWeeks, &p.StartDate, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
