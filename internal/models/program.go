package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Goal is the user's training objective.
type Goal string

const (
	GoalLoseWeight    Goal = "lose_weight"
	GoalGainMuscle    Goal = "gain_muscle"
	GoalImproveHealth Goal = "improve_health"
)

// DefaultDurationWks is used when the preference record has no program length.
const DefaultDurationWks = 6

// DefaultProgramName names a generated program when no name is given.
func DefaultProgramName(g Goal) string {
	return "AI Program (" + string(g) + ")"
}

// TrainingPlace is where the user trains.
type TrainingPlace string

const (
	PlaceGym             TrainingPlace = "gym"
	PlaceHomeNoEquipment TrainingPlace = "home_no_equipment"
)

// Preferences is the stored preference record used to generate a program.
type Preferences struct {
	UserID          int           `json:"user_id"`
	Goal            Goal          `json:"goal" validate:"required,oneof=lose_weight gain_muscle improve_health"`
	SessionDuration int           `json:"session_duration" validate:"required,min=10,max=240"`
	TrainingDays    []int         `json:"training_days" validate:"required,min=1,max=7,unique,dive,min=1,max=7"`
	TrainingPlace   TrainingPlace `json:"training_place" validate:"required,oneof=gym home_no_equipment"`
	DurationWeeks   *int          `json:"duration_weeks,omitempty" validate:"omitempty,min=1,max=52"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Weeks returns the program length, falling back to DefaultDurationWks.
func (p Preferences) Weeks() int {
	if p.DurationWeeks != nil && *p.DurationWeeks > 0 {
		return *p.DurationWeeks
	}
	return DefaultDurationWks
}

// CatalogEntry is one exercise the generator may reference.
type CatalogEntry struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	MuscleGroup string    `json:"muscle_group"`
	Equipment   *string   `json:"equipment"`
	Difficulty  string    `json:"difficulty"`
}

// GeneratedSession is a validated session proposed by the model.
type GeneratedSession struct {
	Name      string                `json:"session_name"`
	DayNumber int                   `json:"day_number"`
	Exercises []GeneratedAssignment `json:"exercises"`
}

// GeneratedAssignment is a validated exercise slot within a session.
type GeneratedAssignment struct {
	ExerciseID  uuid.UUID `json:"exercise_id"`
	Sets        int       `json:"sets"`
	Reps        int       `json:"reps"`
	RestSeconds int       `json:"rest_time"`
}

// NewProgram is everything the persister needs to write one program tree.
type NewProgram struct {
	UserID        int
	Name          string
	Goal          Goal
	DurationWeeks int
	Sessions      []GeneratedSession
}

// ProgramRow mirrors the programs table.
type ProgramRow struct {
	ID            uuid.UUID  `json:"id"`
	UserID        int        `json:"user_id"`
	Name          string     `json:"name"`
	Goal          Goal       `json:"goal"`
	DurationWeeks int        `json:"duration_weeks"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SessionRow mirrors the program_sessions table.
type SessionRow struct {
	ID        uuid.UUID `json:"id"`
	ProgramID uuid.UUID `json:"program_id"`
	Name      string    `json:"name"`
	DayNumber int       `json:"day_number"`
}

// SessionExerciseRow mirrors session_exercises, joined with the catalog name
// and muscle group on read.
type SessionExerciseRow struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	ExerciseID  uuid.UUID `json:"exercise_id"`
	Sets        int       `json:"sets"`
	Reps        int       `json:"reps"`
	RestSeconds int       `json:"rest_time"`
	Position    int       `json:"position"`
	Name        string    `json:"name,omitempty"`
	MuscleGroup string    `json:"muscle_group,omitempty"`
}

// SessionDetail is a session with its exercises.
type SessionDetail struct {
	SessionRow
	Exercises []SessionExerciseRow `json:"exercises"`
}

// ProgramDetail is a program with its full session tree.
type ProgramDetail struct {
	ProgramRow
	Sessions []SessionDetail `json:"sessions"`
}

// GenerationLog records the outcome of one pipeline invocation.
type GenerationLog struct {
	ID           int64            `json:"id"`
	UserID       int              `json:"user_id"`
	CreatedAt    time.Time        `json:"created_at"`
	Status       string           `json:"status"`
	Stage        string           `json:"stage"`
	ErrorKind    *string          `json:"error_kind"`
	Attempts     int              `json:"attempts"`
	ProgramID    *uuid.UUID       `json:"program_id"`
	DurationMs   *int             `json:"duration_ms"`
	ErrorMessage *string          `json:"error_message"`
	Metadata     *json.RawMessage `json:"metadata"`
}

// SessionLog records one completion of a program session.
type SessionLog struct {
	ID          int64     `json:"id"`
	UserID      int       `json:"user_id"`
	SessionID   uuid.UUID `json:"session_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// SessionLogCount is how many times a user completed a session.
type SessionLogCount struct {
	SessionID uuid.UUID `json:"session_id"`
	Count     int       `json:"count"`
}

// noEquipmentValues are the equipment labels that mean "bodyweight only".
var noEquipmentValues = map[string]bool{
	"":               true,
	"none":           true,
	"no equipment":   true,
	"bodyweight":     true,
	"body weight":    true,
	"aucun":          true,
	"poids du corps": true,
}

// NoEquipment reports whether the exercise can be done without any equipment.
func (e CatalogEntry) NoEquipment() bool {
	if e.Equipment == nil {
		return true
	}
	return noEquipmentValues[strings.ToLower(strings.TrimSpace(*e.Equipment))]
}

// EquipmentLabel returns the equipment name, or "none".
func (e CatalogEntry) EquipmentLabel() string {
	if e.Equipment == nil || strings.TrimSpace(*e.Equipment) == "" {
		return "none"
	}
	return *e.Equipment
}
