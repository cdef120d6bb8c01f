// Package sqlite is a single-file implementation of storage.Store on
// modernc.org/sqlite, used for local runs, the CLI tools and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/migrations"
	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a storage.Store backed by one SQLite file.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir %s: %w", dir, err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY inside transactions.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return &Store{db: db}, nil
}

// runMigrations uses its own handle because the migrate driver closes the
// database it was given.
func runMigrations(dsn string) error {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening sqlite db for migrations: %w", err)
	}
	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migration driver: %w", err)
	}
	src, err := iofs.New(migrations.FS, "sqlite")
	if err != nil {
		db.Close()
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("querying %s: %w", what, err)
}

// placeholders returns "(?,?,...),(?,?,...)" for rows of n columns.
func placeholders(rows, n int) string {
	one := "(" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
	return strings.TrimSuffix(strings.Repeat(one+",", rows), ",")
}

// GetOrCreateUser finds or creates a user by login name and returns its ID.
func (s *Store) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (login, display_name)
		VALUES (?, ?)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = ?, display_name = COALESCE(NULLIF(excluded.display_name, ''), users.display_name)
		RETURNING id
	`, login, displayName, formatTime(time.Now())).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user %q: %w", login, err)
	}
	return id, nil
}

// GetPreferences returns the preference record of a user, or storage.ErrNotFound.
func (s *Store) GetPreferences(ctx context.Context, userID int) (models.Preferences, error) {
	var (
		p       models.Preferences
		days    string
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, goal, session_duration, training_days, training_place, duration_weeks, updated_at
		 FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Goal, &p.SessionDuration, &days, &p.TrainingPlace, &p.DurationWeeks, &updated)
	if err != nil {
		return models.Preferences{}, notFound(err, fmt.Sprintf("preferences for user %d", userID))
	}
	if err := json.Unmarshal([]byte(days), &p.TrainingDays); err != nil {
		return models.Preferences{}, fmt.Errorf("decoding training_days for user %d: %w", userID, err)
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return models.Preferences{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}

// UpsertPreferences inserts or replaces the preference record of p.UserID.
func (s *Store) UpsertPreferences(ctx context.Context, p models.Preferences) error {
	days, err := json.Marshal(p.TrainingDays)
	if err != nil {
		return fmt.Errorf("encoding training_days: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, goal, session_duration, training_days, training_place, duration_weeks, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		 goal = excluded.goal, session_duration = excluded.session_duration,
		 training_days = excluded.training_days, training_place = excluded.training_place,
		 duration_weeks = excluded.duration_weeks, updated_at = excluded.updated_at`,
		p.UserID, string(p.Goal), p.SessionDuration, string(days), string(p.TrainingPlace), p.DurationWeeks,
		formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("upserting preferences for user %d: %w", p.UserID, err)
	}
	return nil
}

// ListExercises returns the whole catalog ordered by muscle group and name.
func (s *Store) ListExercises(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
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
func (s *Store) InsertExercises(ctx context.Context, entries []models.CatalogEntry) (int64, error) {
	entries = storage.DedupeCatalog(entries)
	if len(entries) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(entries)*5)
	for _, e := range entries {
		args = append(args, e.ID.String(), e.Name, e.MuscleGroup, e.Equipment, e.Difficulty)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exercises (id, name, muscle_group, equipment, difficulty) VALUES `+
			placeholders(len(entries), 5)+
			` ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, muscle_group = excluded.muscle_group,
			equipment = excluded.equipment, difficulty = excluded.difficulty`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("inserting exercises: %w", err)
	}
	return res.RowsAffected()
}

// InsertGenerationLog records one pipeline run and returns its ID.
func (s *Store) InsertGenerationLog(ctx context.Context, log models.GenerationLog) (int64, error) {
	created := log.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var programID, metadata any
	if log.ProgramID != nil {
		programID = log.ProgramID.String()
	}
	if log.Metadata != nil {
		metadata = string(*log.Metadata)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_logs (user_id, created_at, status, stage, error_kind, attempts,
		 program_id, duration_ms, error_message, metadata)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		log.UserID, formatTime(created), log.Status, log.Stage, log.ErrorKind, log.Attempts,
		programID, log.DurationMs, log.ErrorMessage, metadata)
	if err != nil {
		return 0, fmt.Errorf("inserting generation log: %w", err)
	}
	return res.LastInsertId()
}

// QueryGenerationLogs returns the most recent generation logs for a user.
func (s *Store) QueryGenerationLogs(ctx context.Context, userID, limit int) ([]models.GenerationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, created_at, status, stage, error_kind, attempts,
		 program_id, duration_ms, error_message, metadata
		 FROM generation_logs
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying generation logs: %w", err)
	}
	defer rows.Close()

	var result []models.GenerationLog
	for rows.Next() {
		var (
			l         models.GenerationLog
			created   string
			programID *string
			metadata  sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.UserID, &created, &l.Status, &l.Stage, &l.ErrorKind, &l.Attempts,
			&programID, &l.DurationMs, &l.ErrorMessage, &metadata); err != nil {
			return nil, fmt.Errorf("scanning generation log: %w", err)
		}
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if programID != nil {
			pid, err := parseUUID(*programID)
			if err != nil {
				return nil, err
			}
			l.ProgramID = &pid
		}
		if metadata.Valid {
			raw := json.RawMessage(metadata.String)
			l.Metadata = &raw
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
