package storage

import (
	"context"
	"fmt"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
)

// InsertSessionLog records that userID completed sessionID. The session must
// belong to one of the user's programs, otherwise ErrNotFound is returned.
func (db *DB) InsertSessionLog(ctx context.Context, userID int, sessionID uuid.UUID) (models.SessionLog, error) {
	l := models.SessionLog{UserID: userID, SessionID: sessionID}
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO session_logs (user_id, session_id)
		 SELECT p.user_id, s.id
		 FROM program_sessions s
		 JOIN programs p ON p.id = s.program_id
		 WHERE s.id = $1 AND p.user_id = $2
		 RETURNING id, completed_at`,
		sessionID, userID,
	).Scan(&l.ID, &l.CompletedAt)
	if err != nil {
		return models.SessionLog{}, notFound(err, fmt.Sprintf("session %s", sessionID))
	}
	return l, nil
}

// CountSessionLogs returns how many times userID completed sessionID, or
// ErrNotFound when the session is not in one of the user's programs.
func (db *DB) CountSessionLogs(ctx context.Context, userID int, sessionID uuid.UUID) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(l.id)
		 FROM program_sessions s
		 JOIN programs p ON p.id = s.program_id
		 LEFT JOIN session_logs l ON l.session_id = s.id AND l.user_id = p.user_id
		 WHERE s.id = $1 AND p.user_id = $2
		 GROUP BY s.id`,
		sessionID, userID,
	).Scan(&n)
	if err != nil {
		return 0, notFound(err, fmt.Sprintf("session %s", sessionID))
	}
	return n, nil
}
