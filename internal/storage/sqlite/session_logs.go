package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
)

// InsertSessionLog records that userID completed sessionID. The session must
// belong to one of the user's programs, otherwise storage.ErrNotFound is
// returned.
func (s *Store) InsertSessionLog(ctx context.Context, userID int, sessionID uuid.UUID) (models.SessionLog, error) {
	now := time.Now().UTC()
	l := models.SessionLog{UserID: userID, SessionID: sessionID, CompletedAt: now}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO session_logs (user_id, session_id, completed_at)
		 SELECT p.user_id, ps.id, ?
		 FROM program_sessions ps
		 JOIN programs p ON p.id = ps.program_id
		 WHERE ps.id = ? AND p.user_id = ?
		 RETURNING id`,
		formatTime(now), sessionID.String(), userID,
	).Scan(&l.ID)
	if err != nil {
		return models.SessionLog{}, notFound(err, fmt.Sprintf("session %s", sessionID))
	}
	return l, nil
}

// CountSessionLogs returns how many times userID completed sessionID, or
// storage.ErrNotFound when the session is not in one of the user's programs.
func (s *Store) CountSessionLogs(ctx context.Context, userID int, sessionID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(l.id)
		 FROM program_sessions ps
		 JOIN programs p ON p.id = ps.program_id
		 LEFT JOIN session_logs l ON l.session_id = ps.id AND l.user_id = p.user_id
		 WHERE ps.id = ? AND p.user_id = ?
		 GROUP BY ps.id`,
		sessionID.String(), userID,
	).Scan(&n)
	if err != nil {
		return 0, notFound(err, fmt.Sprintf("session %s", sessionID))
	}
	return n, nil
}
