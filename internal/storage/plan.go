package storage

import (
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
)

// ProgramPlan is a program tree with every id assigned, ready to insert.
// Exercises[i] belongs to Sessions[i].
type ProgramPlan struct {
	Program   models.ProgramRow
	Sessions  []models.SessionRow
	Exercises [][]models.SessionExerciseRow
}

// PlanProgram assigns ids and positions to p. Positions follow the order the
// assignments were generated in, starting at 1.
func PlanProgram(p models.NewProgram, now time.Time) ProgramPlan {
	name := p.Name
	if name == "" {
		name = models.DefaultProgramName(p.Goal)
	}
	weeks := p.DurationWeeks
	if weeks <= 0 {
		weeks = models.DefaultDurationWks
	}

	plan := ProgramPlan{
		Program: models.ProgramRow{
			ID:            uuid.New(),
			UserID:        p.UserID,
			Name:          name,
			Goal:          p.Goal,
			DurationWeeks: weeks,
			CreatedAt:     now,
		},
		Sessions:  make([]models.SessionRow, len(p.Sessions)),
		Exercises: make([][]models.SessionExerciseRow, len(p.Sessions)),
	}

	for i, s := range p.Sessions {
		sid := uuid.New()
		plan.Sessions[i] = models.SessionRow{ID: sid, ProgramID: plan.Program.ID, Name: s.Name, DayNumber: s.DayNumber}
		rows := make([]models.SessionExerciseRow, len(s.Exercises))
		for j, a := range s.Exercises {
			rows[j] = models.SessionExerciseRow{
				ID:          uuid.New(),
				SessionID:   sid,
				ExerciseID:  a.ExerciseID,
				Sets:        a.Sets,
				Reps:        a.Reps,
				RestSeconds: a.RestSeconds,
				Position:    j + 1,
			}
		}
		plan.Exercises[i] = rows
	}
	return plan
}

// AssembleProgram nests sessions and exercises under prog. Sessions keep the
// given order; exercises are attached to their session by SessionID and keep
// their relative order.
func AssembleProgram(prog models.ProgramRow, sessions []models.SessionRow, exercises []models.SessionExerciseRow) *models.ProgramDetail {
	detail := &models.ProgramDetail{ProgramRow: prog, Sessions: make([]models.SessionDetail, len(sessions))}
	index := make(map[uuid.UUID]int, len(sessions))
	for i, s := range sessions {
		detail.Sessions[i] = models.SessionDetail{SessionRow: s, Exercises: []models.SessionExerciseRow{}}
		index[s.ID] = i
	}
	for _, e := range exercises {
		i, ok := index[e.SessionID]
		if !ok {
			continue
		}
		detail.Sessions[i].Exercises = append(detail.Sessions[i].Exercises, e)
	}
	return detail
}

// DedupeCatalog drops repeated ids, keeping the last occurrence in the
// position of the first. A single upsert statement cannot touch a row twice.
func DedupeCatalog(entries []models.CatalogEntry) []models.CatalogEntry {
	index := make(map[uuid.UUID]int, len(entries))
	out := make([]models.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}
