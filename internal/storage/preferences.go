package storage

import (
	"context"
	"fmt"

	"github.com/claude/freecoach/internal/models"
)

// GetPreferences returns the preference record of a user, or ErrNotFound.
func (db *DB) GetPreferences(ctx context.Context, userID int) (models.Preferences, error) {
	var p models.Preferences
	var days []int32
	err := db.Pool.QueryRow(ctx,
		`SELECT user_id, goal, session_duration, training_days, training_place, duration_weeks, updated_at
		 FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Goal, &p.SessionDuration, &days, &p.TrainingPlace, &p.DurationWeeks, &p.UpdatedAt)
	if err != nil {
		return models.Preferences{}, notFound(err, fmt.Sprintf("preferences for user %d", userID))
	}
	p.TrainingDays = make([]int, len(days))
	for i, d := range days {
		p.TrainingDays[i] = int(d)
	}
	return p, nil
}

// UpsertPreferences inserts or replaces the preference record of p.UserID.
func (db *DB) UpsertPreferences(ctx context.Context, p models.Preferences) error {
	days := make([]int32, len(p.TrainingDays))
	for i, d := range p.TrainingDays {
		days[i] = int32(d)
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO user_preferences (user_id, goal, session_duration, training_days, training_place, duration_weeks, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		 goal = EXCLUDED.goal, session_duration = EXCLUDED.session_duration,
		 training_days = EXCLUDED.training_days, training_place = EXCLUDED.training_place,
		 duration_weeks = EXCLUDED.duration_weeks, updated_at = NOW()`,
		p.UserID, string(p.Goal), p.SessionDuration, days, string(p.TrainingPlace), p.DurationWeeks)
	if err != nil {
		return fmt.Errorf("upserting preferences for user %d: %w", p.UserID, err)
	}
	return nil
}
