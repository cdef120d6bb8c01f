package prompt

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/validate"
	"github.com/go-playground/validator/v10"
)

var prefsValidate = validator.New()

func init() {
	// Report json names ("training_days") rather than Go field names.
	prefsValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// MissingFieldError reports a preference field that is absent or unusable.
type MissingFieldError struct {
	Field  string
	Reason string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("preference %s: %s", e.Field, e.Reason)
}

// CheckPreferences validates the fields the prompt depends on.
func CheckPreferences(p models.Preferences) error {
	err := prefsValidate.Struct(p)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return fmt.Errorf("validating preferences: %w", err)
	}
	fe := ves[0]
	reason := "failed " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	if fe.Tag() == "required" {
		reason = "is required"
	}
	field, _, _ := strings.Cut(fe.Field(), "[")
	return &MissingFieldError{Field: field, Reason: reason}
}

var dayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ExerciseRange is the number of exercises to ask for per session. Longer
// sessions get more exercises, capped by the policy.
func ExerciseRange(durationMinutes int, pol validate.Policy) validate.Range {
	var r validate.Range
	switch {
	case durationMinutes <= 45:
		r = validate.Range{Min: 3, Max: 4}
	case durationMinutes <= 90:
		r = validate.Range{Min: 4, Max: 5}
	default:
		r = validate.Range{Min: 5, Max: 6}
	}
	if r.Max > pol.ExercisesPerSession.Max {
		r.Max = pol.ExercisesPerSession.Max
	}
	if r.Min > r.Max {
		r.Min = r.Max
	}
	return r
}

// SetVolume is the approximate total number of working sets per session.
func SetVolume(durationMinutes int) validate.Range {
	return validate.Range{Min: durationMinutes * 7 / 30, Max: durationMinutes * 4 / 15}
}

var goalGuidance = map[models.Goal]string{
	models.GoalLoseWeight:    "favour cardio-oriented and bodyweight circuits with short rests",
	models.GoalGainMuscle:    "structured strength training that covers the main muscle groups across the week",
	models.GoalImproveHealth: "mobility, stability and general strengthening",
}

// Build renders the generation request for p over catalog. The output depends
// only on its inputs.
func Build(p models.Preferences, catalog []models.CatalogEntry, pol validate.Policy) (string, error) {
	return BuildWithFeedback(p, catalog, pol, nil)
}

// BuildWithFeedback is Build plus a section listing why the previous attempt
// was rejected.
func BuildWithFeedback(p models.Preferences, catalog []models.CatalogEntry, pol validate.Policy, feedback []string) (string, error) {
	if err := CheckPreferences(p); err != nil {
		return "", err
	}

	sessions := len(p.TrainingDays)
	exRange := ExerciseRange(p.SessionDuration, pol)
	volume := SetVolume(p.SessionDuration)

	days := make([]string, len(p.TrainingDays))
	named := make([]string, len(p.TrainingDays))
	for i, d := range p.TrainingDays {
		days[i] = fmt.Sprint(d)
		named[i] = fmt.Sprintf("%d (%s)", d, dayNames[d])
	}

	var sb strings.Builder
	sb.WriteString("You are an expert strength and conditioning coach building a personalised training program.\n\n")

	sb.WriteString("User preferences:\n")
	fmt.Fprintf(&sb, "- Goal: %s (%s)\n", p.Goal, goalGuidance[p.Goal])
	fmt.Fprintf(&sb, "- Session duration: %d minutes\n", p.SessionDuration)
	fmt.Fprintf(&sb, "- Training days (1 = Monday, 7 = Sunday): %s\n", strings.Join(named, ", "))
	if p.TrainingPlace == models.PlaceHomeNoEquipment {
		sb.WriteString("- Training place: home_no_equipment (no equipment at all: bodyweight or free cardio only)\n")
	} else {
		sb.WriteString("- Training place: gym (gym equipment allowed)\n")
	}

	sb.WriteString("\nAvailable exercises. Use only these ids:\n")
	seen := make(map[string]bool, len(catalog))
	for _, e := range catalog {
		id := e.ID.String()
		if seen[id] {
			continue
		}
		seen[id] = true
		fmt.Fprintf(&sb, "- id: %s | name: %s | muscle group: %s | equipment: %s | difficulty: %s\n",
			id, e.Name, e.MuscleGroup, e.EquipmentLabel(), e.Difficulty)
	}

	sb.WriteString("\nTask:\n")
	fmt.Fprintf(&sb, "Generate exactly %d sessions, one for each training day listed above.\n", sessions)
	fmt.Fprintf(&sb, "Each session has between %d and %d exercises, about %d to %d working sets in total.\n",
		exRange.Min, exRange.Max, volume.Min, volume.Max)

	sb.WriteString("\nConstraints:\n")
	fmt.Fprintf(&sb, "- \"day_number\" is one of %s and each day is used by exactly one session\n", strings.Join(days, ", "))
	fmt.Fprintf(&sb, "- \"sets\" is an integer between %d and %d\n", pol.Sets.Min, pol.Sets.Max)
	fmt.Fprintf(&sb, "- \"reps\" is an integer between %d and %d\n", pol.Reps.Min, pol.Reps.Max)
	fmt.Fprintf(&sb, "- \"rest_time\" is the rest in seconds, an integer between %d and %d\n", pol.RestSeconds.Min, pol.RestSeconds.Max)
	sb.WriteString("- \"exercise_id\" is copied exactly from the list above\n")
	if p.TrainingPlace == models.PlaceHomeNoEquipment {
		sb.WriteString("- only use exercises whose equipment is none or bodyweight\n")
	}
	sb.WriteString("- give every session an explicit name, e.g. \"Session 1 - Upper body\"\n")
	sb.WriteString("- balance muscle groups across the week\n")

	if len(feedback) > 0 {
		sb.WriteString("\nYour previous answer was rejected for these reasons. Fix all of them:\n")
		for _, f := range feedback {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}

	sb.WriteString("\nExpected format:\n")
	sb.WriteString(`[
  {
    "session_name": "Session name",
    "day_number": 1,
    "exercises": [
      { "exercise_id": "<id from the list>", "sets": 4, "reps": 10, "rest_time": 60 }
    ]
  }
]
`)
	sb.WriteString("\nIMPORTANT: answer with the JSON array only, no text before or after it. ")
	sb.WriteString("The JSON must be valid: no missing or trailing commas, every session has all three fields.\n")

	return sb.String(), nil
}
