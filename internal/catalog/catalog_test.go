package catalog

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

// TestParseShapes verifies both the bare array and the wrapped object form.
func TestParseShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"array", `[{"name": "Push-up", "muscle_group": "chest"}, {"name": "Back Squat", "muscle_group": "legs", "equipment": "barbell"}]`},
		{"wrapped", `{"exercises": [{"name": "Push-up", "muscle_group": "chest"}, {"name": "Back Squat", "muscle_group": "legs", "equipment": "barbell"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("got %d entries, want 2", len(entries))
			}
			if entries[0].Equipment != nil {
				t.Errorf("push-up equipment = %q, want nil", *entries[0].Equipment)
			}
			if entries[1].Equipment == nil || *entries[1].Equipment != "barbell" {
				t.Errorf("squat equipment = %v, want barbell", entries[1].Equipment)
			}
		})
	}
}

// TestParseDerivedIDs verifies missing ids are stable per name and explicit
// ids are kept.
func TestParseDerivedIDs(t *testing.T) {
	explicit := uuid.New()
	input := `[
		{"name": "Push-up", "muscle_group": "chest"},
		{"id": "` + explicit.String() + `", "name": "Plank", "muscle_group": "core", "equipment": ""}
	]`
	first, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if first[0].ID != second[0].ID || first[0].ID != IDFor(" push-up ") {
		t.Errorf("derived id not stable: %s vs %s", first[0].ID, second[0].ID)
	}
	if first[1].ID != explicit {
		t.Errorf("explicit id = %s, want %s", first[1].ID, explicit)
	}
	if first[1].Equipment != nil {
		t.Errorf("blank equipment should be nil, got %q", *first[1].Equipment)
	}
}

// TestParseRejects verifies invalid files fail with an error naming the problem.
func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty input", "  ", "empty"},
		{"no exercises", `{"exercises": []}`, "no exercises"},
		{"bad json", `[{"name": }]`, "decoding"},
		{"missing name", `[{"muscle_group": "chest"}]`, "Name"},
		{"missing muscle group", `[{"name": "Push-up"}]`, "MuscleGroup"},
		{"bad difficulty", `[{"name": "Push-up", "muscle_group": "chest", "difficulty": "heroic"}]`, "Difficulty"},
		{"bad id", `[{"id": "nope", "name": "Push-up", "muscle_group": "chest"}]`, "parsing id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
