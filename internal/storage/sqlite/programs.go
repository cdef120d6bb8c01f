package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/google/uuid"
)

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing id %q: %w", s, err)
	}
	return id, nil
}

// PersistProgram writes the program, its sessions and their exercises in one
// transaction and returns the program id. Nothing is left behind on error.
func (s *Store) PersistProgram(ctx context.Context, p models.NewProgram) (uuid.UUID, error) {
	plan := storage.PlanProgram(p, time.Now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prog := plan.Program
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO programs (id, user_id, name, goal, duration_weeks, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		prog.ID.String(), prog.UserID, prog.Name, string(prog.Goal), prog.DurationWeeks, formatTime(prog.CreatedAt)); err != nil {
		return uuid.Nil, fmt.Errorf("inserting program: %w", err)
	}

	if len(plan.Sessions) > 0 {
		args := make([]any, 0, len(plan.Sessions)*4)
		for _, ss := range plan.Sessions {
			args = append(args, ss.ID.String(), ss.ProgramID.String(), ss.Name, ss.DayNumber)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO program_sessions (id, program_id, name, day_number) VALUES `+placeholders(len(plan.Sessions), 4),
			args...); err != nil {
			return uuid.Nil, fmt.Errorf("inserting sessions: %w", err)
		}
	}

	for i, rows := range plan.Exercises {
		if err := insertSessionExercises(ctx, tx, rows); err != nil {
			return uuid.Nil, fmt.Errorf("session %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("committing program: %w", err)
	}
	return prog.ID, nil
}

func insertSessionExercises(ctx context.Context, tx *sql.Tx, rows []models.SessionExerciseRow) error {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*7)
	for _, r := range rows {
		args = append(args, r.ID.String(), r.SessionID.String(), r.ExerciseID.String(), r.Sets, r.Reps, r.RestSeconds, r.Position)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_exercises (id, session_id, exercise_id, sets, reps, rest_time, position) VALUES `+
			placeholders(len(rows), 7),
		args...); err != nil {
		return fmt.Errorf("inserting session exercises: %w", err)
	}
	return nil
}

type programScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row programScanner) (models.ProgramRow, error) {
	var (
		p       models.ProgramRow
		start   sql.NullString
		created string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Goal, &p.DurationWeeks, &start, &created); err != nil {
		return p, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return p, fmt.Errorf("parsing created_at: %w", err)
	}
	if start.Valid {
		d, err := time.Parse(time.DateOnly, start.String)
		if err != nil {
			return p, fmt.Errorf("parsing start_date: %w", err)
		}
		p.StartDate = &d
	}
	return p, nil
}

// GetProgram returns the full program tree if it belongs to userID, or
// storage.ErrNotFound.
func (s *Store) GetProgram(ctx context.Context, userID int, id uuid.UUID) (*models.ProgramDetail, error) {
	prog, err := scanProgram(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, goal, duration_weeks, start_date, created_at
		 FROM programs WHERE id = ? AND user_id = ?`, id.String(), userID))
	if err != nil {
		return nil, notFound(err, "program "+id.String())
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, program_id, name, day_number
		 FROM program_sessions WHERE program_id = ?
		 ORDER BY day_number`, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	var sessions []models.SessionRow
	for rows.Next() {
		var ss models.SessionRow
		if err := rows.Scan(&ss.ID, &ss.ProgramID, &ss.Name, &ss.DayNumber); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, ss)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT se.id, se.session_id, se.exercise_id, se.sets, se.reps, se.rest_time, se.position,
		        e.name, e.muscle_group
		 FROM session_exercises se
		 JOIN program_sessions ps ON ps.id = se.session_id
		 JOIN exercises e ON e.id = se.exercise_id
		 WHERE ps.program_id = ?
		 ORDER BY ps.day_number, se.position`, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying session exercises: %w", err)
	}
	defer rows.Close()

	var exercises []models.SessionExerciseRow
	for rows.Next() {
		var r models.SessionExerciseRow
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ExerciseID, &r.Sets, &r.Reps, &r.RestSeconds, &r.Position,
			&r.Name, &r.MuscleGroup); err != nil {
			return nil, fmt.Errorf("scanning session exercise: %w", err)
		}
		exercises = append(exercises, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session exercises: %w", err)
	}

	return storage.AssembleProgram(prog, sessions, exercises), nil
}

// ListPrograms returns the most recent programs of a user, newest first.
func (s *Store) ListPrograms(ctx context.Context, userID, limit int) ([]models.ProgramRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, goal, duration_weeks, start_date, created_at
		 FROM programs
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying programs: %w", err)
	}
	defer rows.Close()

	var result []models.ProgramRow
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
