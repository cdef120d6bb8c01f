package storage

import (
	"context"
	"fmt"

	"github.com/claude/freecoach/internal/models"
)

// InsertGenerationLog records one pipeline run and returns its ID.
func (db *DB) InsertGenerationLog(ctx context.Context, log models.GenerationLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO generation_logs (user_id, status, stage, error_kind, attempts,
		 program_id, duration_ms, error_message, metadata)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING id`,
		log.UserID, log.Status, log.Stage, log.ErrorKind, log.Attempts,
		log.ProgramID, log.DurationMs, log.ErrorMessage, log.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting generation log: %w", err)
	}
	return id, nil
}

// QueryGenerationLogs returns the most recent generation logs for a user.
func (db *DB) QueryGenerationLogs(ctx context.Context, userID, limit int) ([]models.GenerationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, created_at, status, stage, error_kind, attempts,
		 program_id, duration_ms, error_message, metadata
		 FROM generation_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying generation logs: %w", err)
	}
	defer rows.Close()

	var result []models.GenerationLog
	for rows.Next() {
		var l models.GenerationLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.CreatedAt, &l.Status, &l.Stage, &l.ErrorKind, &l.Attempts,
			&l.ProgramID, &l.DurationMs, &l.ErrorMessage, &l.Metadata); err != nil {
			return nil, fmt.Errorf("scanning generation log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
