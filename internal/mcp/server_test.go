package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/validate"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeSource struct {
	prefs    *models.Preferences
	catalog  []models.CatalogEntry
	programs map[uuid.UUID]*models.ProgramDetail
	genOut   *generation.Outcome
	genErr   error
	users    []int
}

func (f *fakeSource) GetPreferences(_ context.Context, userID int) (models.Preferences, error) {
	f.users = append(f.users, userID)
	if f.prefs == nil {
		return models.Preferences{}, storage.ErrNotFound
	}
	return *f.prefs, nil
}

func (f *fakeSource) ListExercises(context.Context) ([]models.CatalogEntry, error) {
	return f.catalog, nil
}

func (f *fakeSource) GetProgram(_ context.Context, _ int, id uuid.UUID) (*models.ProgramDetail, error) {
	if p, ok := f.programs[id]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeSource) ListPrograms(_ context.Context, _ int, limit int) ([]models.ProgramRow, error) {
	var rows []models.ProgramRow
	for _, p := range f.programs {
		rows = append(rows, p.ProgramRow)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeSource) GenerateProgram(_ context.Context, userID int) (*generation.Outcome, error) {
	f.users = append(f.users, userID)
	return f.genOut, f.genErr
}

func newHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

// TestUserIDFromContextDefault verifies the default user ID (1) when no value
// is set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	ctx := context.Background()
	if id := UserIDFromContext(ctx); id != 1 {
		t.Errorf("UserIDFromContext(empty) = %d, want 1", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

// TestGenerateProgramTool verifies a successful run returns the stored
// program tree and runs as the context user.
func TestGenerateProgramTool(t *testing.T) {
	id := uuid.New()
	ds := &fakeSource{
		genOut: &generation.Outcome{ProgramID: id, Sessions: 1, Attempts: 1},
		programs: map[uuid.UUID]*models.ProgramDetail{
			id: {ProgramRow: models.ProgramRow{ID: id, Name: "AI Program (gain_muscle)"}, Sessions: []models.SessionDetail{}},
		},
	}
	res, err := newHandlers(ds).generateProgram(WithUserID(context.Background(), 9), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var payload struct {
		Outcome generation.Outcome   `json:"outcome"`
		Program models.ProgramDetail `json:"program"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Outcome.ProgramID != id || payload.Program.Name != "AI Program (gain_muscle)" {
		t.Errorf("payload = %+v", payload)
	}
	if len(ds.users) != 1 || ds.users[0] != 9 {
		t.Errorf("users = %v, want [9]", ds.users)
	}
}

// TestGenerateProgramToolFailure verifies failures are reported as tool
// errors naming the kind and each violation.
func TestGenerateProgramToolFailure(t *testing.T) {
	ds := &fakeSource{genErr: &generation.Error{
		Kind:   generation.KindValidationFailed,
		Stage:  generation.StageValidating,
		Detail: "1 violation(s)",
		Violations: validate.Violations{
			{Session: 1, Exercise: -1, Field: "day_number", Rule: validate.RuleDayNotScheduled, Detail: "day 2 is not a training day"},
		},
	}}
	res, err := newHandlers(ds).generateProgram(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	text := resultText(t, res)
	for _, want := range []string{"ValidationFailed", "day_not_scheduled"} {
		if !strings.Contains(text, want) {
			t.Errorf("message %q does not contain %q", text, want)
		}
	}
}

// TestGetProgramTool verifies id parsing and the not-found path.
func TestGetProgramTool(t *testing.T) {
	id := uuid.New()
	ds := &fakeSource{programs: map[uuid.UUID]*models.ProgramDetail{
		id: {ProgramRow: models.ProgramRow{ID: id}, Sessions: []models.SessionDetail{}},
	}}
	h := newHandlers(ds)

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"found", map[string]any{"id": id.String()}, false},
		{"missing id", map[string]any{}, true},
		{"bad id", map[string]any{"id": "nope"}, true},
		{"unknown", map[string]any{"id": uuid.NewString()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.getProgram(context.Background(), call(tt.args))
			if err != nil {
				t.Fatal(err)
			}
			if res.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v: %s", res.IsError, tt.wantErr, resultText(t, res))
			}
		})
	}
}

// TestListExercisesTool verifies the muscle group and bodyweight filters.
func TestListExercisesTool(t *testing.T) {
	bar := "barbell"
	ds := &fakeSource{catalog: []models.CatalogEntry{
		{ID: uuid.New(), Name: "Back Squat", MuscleGroup: "legs", Equipment: &bar},
		{ID: uuid.New(), Name: "Lunge", MuscleGroup: "legs"},
		{ID: uuid.New(), Name: "Push-up", MuscleGroup: "chest"},
	}}
	h := newHandlers(ds)

	tests := []struct {
		name string
		args map[string]any
		want int
	}{
		{"all", nil, 3},
		{"legs", map[string]any{"muscle_group": "Legs"}, 2},
		{"bodyweight legs", map[string]any{"muscle_group": "legs", "bodyweight_only": true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.listExercises(context.Background(), call(tt.args))
			if err != nil {
				t.Fatal(err)
			}
			var got []models.CatalogEntry
			if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d exercises, want %d", len(got), tt.want)
			}
		})
	}
}

// TestGetPreferencesTool verifies a missing record is a tool error, not a
// protocol error.
func TestGetPreferencesTool(t *testing.T) {
	h := newHandlers(&fakeSource{})
	res, err := h.getPreferences(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected tool error for missing preferences")
	}
}

// TestLatestProgramResource verifies the resource fails cleanly when no
// program exists and returns the tree otherwise.
func TestLatestProgramResource(t *testing.T) {
	ds := &fakeSource{programs: map[uuid.UUID]*models.ProgramDetail{}}
	h := newHandlers(ds)
	var req mcp.ReadResourceRequest
	req.Params.URI = "freecoach://latest_program"

	if _, err := h.latestProgram(context.Background(), req); err == nil {
		t.Error("expected error with no programs")
	}

	id := uuid.New()
	ds.programs[id] = &models.ProgramDetail{ProgramRow: models.ProgramRow{ID: id}, Sessions: []models.SessionDetail{}}
	contents, err := h.latestProgram(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(text.Text, id.String()) {
		t.Errorf("contents = %+v", contents)
	}
}
