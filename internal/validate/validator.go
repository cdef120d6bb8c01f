package validate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
)

// Rule names reported in violations.
const (
	RuleEmpty               = "empty"
	RuleMissingField        = "missing_field"
	RuleType                = "type"
	RuleUnknownExercise     = "unknown_exercise"
	RuleRange               = "range"
	RuleDayNotScheduled     = "day_not_scheduled"
	RuleDuplicateDay        = "duplicate_day"
	RuleSessionCount        = "session_count"
	RuleEquipmentNotAllowed = "equipment_not_allowed"
	RuleExerciseCount       = "exercise_count"
)

// Violation is one broken rule. Session and Exercise are zero-based indexes;
// -1 means the violation is not tied to a session or an exercise.
type Violation struct {
	Session  int    `json:"session"`
	Exercise int    `json:"exercise"`
	Field    string `json:"field"`
	Rule     string `json:"rule"`
	Detail   string `json:"detail"`
}

func (v Violation) String() string {
	var path string
	switch {
	case v.Session < 0:
		path = v.Field
	case v.Exercise < 0:
		path = fmt.Sprintf("sessions[%d].%s", v.Session, v.Field)
	default:
		path = fmt.Sprintf("sessions[%d].exercises[%d].%s", v.Session, v.Exercise, v.Field)
	}
	return fmt.Sprintf("%s: %s: %s", path, v.Rule, v.Detail)
}

// Violations is the complete diagnosis of a rejected candidate.
type Violations []Violation

func (vs Violations) Error() string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%d violation(s): %s", len(vs), strings.Join(parts, "; "))
}

// Strings renders each violation on its own line.
func (vs Violations) Strings() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// Validator checks candidate documents against a Policy.
type Validator struct {
	Policy Policy
}

// New returns a Validator enforcing p.
func New(p Policy) *Validator {
	return &Validator{Policy: p}
}

// Validate checks a decoded candidate (objects decoded with json.Decoder.UseNumber)
// against the catalog and the user's preferences. It returns the typed sessions
// when there are no violations. Structural problems are reported on their own;
// business rules are only checked once the document has the expected shape.
func (v *Validator) Validate(doc []map[string]any, catalog []models.CatalogEntry, prefs models.Preferences) ([]models.GeneratedSession, Violations) {
	if vs := structural(doc); len(vs) > 0 {
		return nil, vs
	}

	byID := make(map[uuid.UUID]models.CatalogEntry, len(catalog))
	for _, e := range catalog {
		byID[e.ID] = e
	}
	scheduled := make(map[int]bool, len(prefs.TrainingDays))
	for _, d := range prefs.TrainingDays {
		scheduled[d] = true
	}

	var vs Violations
	add := func(s, e int, field, rule, format string, args ...any) {
		vs = append(vs, Violation{Session: s, Exercise: e, Field: field, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	if len(doc) != len(prefs.TrainingDays) {
		add(-1, -1, "sessions", RuleSessionCount, "got %d sessions, want %d", len(doc), len(prefs.TrainingDays))
	}

	sessions := make([]models.GeneratedSession, 0, len(doc))
	seenDays := make(map[int]int)

	for si, raw := range doc {
		sess := models.GeneratedSession{Name: strings.TrimSpace(raw["session_name"].(string))}

		day, ok := asInt(raw["day_number"])
		if !ok {
			add(si, -1, "day_number", RuleType, "expected integer, got %s", describe(raw["day_number"]))
		} else {
			sess.DayNumber = day
			if !scheduled[day] {
				add(si, -1, "day_number", RuleDayNotScheduled, "day %d is not one of the training days %v", day, prefs.TrainingDays)
			}
			if first, dup := seenDays[day]; dup {
				add(si, -1, "day_number", RuleDuplicateDay, "day %d already used by session %d", day, first)
			} else {
				seenDays[day] = si
			}
		}

		exercises := raw["exercises"].([]any)
		if !v.Policy.ExercisesPerSession.Contains(len(exercises)) {
			add(si, -1, "exercises", RuleExerciseCount, "got %d exercises, want %s", len(exercises), v.Policy.ExercisesPerSession)
		}

		for ei, item := range exercises {
			obj, ok := item.(map[string]any)
			if !ok {
				add(si, ei, "exercise", RuleType, "expected object, got %s", describe(item))
				continue
			}
			a, exVs := v.assignment(si, ei, obj, byID, prefs.TrainingPlace)
			vs = append(vs, exVs...)
			sess.Exercises = append(sess.Exercises, a)
		}
		sessions = append(sessions, sess)
	}

	if len(vs) > 0 {
		return nil, vs
	}
	return sessions, nil
}

func (v *Validator) assignment(si, ei int, obj map[string]any, byID map[uuid.UUID]models.CatalogEntry, place models.TrainingPlace) (models.GeneratedAssignment, Violations) {
	var (
		a  models.GeneratedAssignment
		vs Violations
	)
	add := func(field, rule, format string, args ...any) {
		vs = append(vs, Violation{Session: si, Exercise: ei, Field: field, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	switch raw := obj["exercise_id"].(type) {
	case nil:
		add("exercise_id", RuleMissingField, "exercise_id is required")
	case string:
		// Only the canonical form names a catalog entry; uuid.Parse also
		// takes braced, urn and upper-case spellings.
		id, err := uuid.Parse(raw)
		entry, known := byID[id]
		switch {
		case err != nil || id.String() != raw || !known:
			add("exercise_id", RuleUnknownExercise, "exercise %q is not in the catalog", raw)
		case place == models.PlaceHomeNoEquipment && !entry.NoEquipment():
			add("exercise_id", RuleEquipmentNotAllowed, "exercise %q (%s) requires %s", raw, entry.Name, entry.EquipmentLabel())
		default:
			a.ExerciseID = id
		}
	default:
		add("exercise_id", RuleType, "expected string, got %s", describe(raw))
	}

	numeric := []struct {
		field string
		r     Range
		dst   *int
	}{
		{"sets", v.Policy.Sets, &a.Sets},
		{"reps", v.Policy.Reps, &a.Reps},
		{"rest_time", v.Policy.RestSeconds, &a.RestSeconds},
	}
	for _, n := range numeric {
		raw, present := obj[n.field]
		if !present || raw == nil {
			add(n.field, RuleMissingField, "%s is required", n.field)
			continue
		}
		val, ok := asInt(raw)
		if !ok {
			add(n.field, RuleType, "expected integer, got %s", describe(raw))
			continue
		}
		if !n.r.Contains(val) {
			add(n.field, RuleRange, "%d not in %s", val, n.r)
			continue
		}
		*n.dst = val
	}
	return a, vs
}

// structural checks the document shape: at least one session, and each
// session carrying a non-empty name, a day number and a non-empty exercises array.
func structural(doc []map[string]any) Violations {
	if len(doc) == 0 {
		return Violations{{Session: -1, Exercise: -1, Field: "sessions", Rule: RuleEmpty, Detail: "candidate has no sessions"}}
	}
	var vs Violations
	for si, s := range doc {
		if name, ok := s["session_name"].(string); !ok || strings.TrimSpace(name) == "" {
			vs = append(vs, Violation{Session: si, Exercise: -1, Field: "session_name", Rule: RuleMissingField, Detail: "session_name must be a non-empty string"})
		}
		if d, ok := s["day_number"]; !ok || d == nil {
			vs = append(vs, Violation{Session: si, Exercise: -1, Field: "day_number", Rule: RuleMissingField, Detail: "day_number is required"})
		}
		if ex, ok := s["exercises"].([]any); !ok || len(ex) == 0 {
			vs = append(vs, Violation{Session: si, Exercise: -1, Field: "exercises", Rule: RuleMissingField, Detail: "exercises must be a non-empty array"})
		}
	}
	return vs
}

// asInt accepts json.Number and float64 values that hold an exact integer.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", t)
	case json.Number:
		return "number " + t.String()
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
