package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage/sqlite"
	"github.com/claude/freecoach/internal/validate"
	"github.com/google/uuid"
)

type fakeGenerator struct {
	out   *generation.Outcome
	err   error
	calls []int
}

func (g *fakeGenerator) Generate(_ context.Context, userID int) (*generation.Outcome, error) {
	g.calls = append(g.calls, userID)
	return g.out, g.err
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newTestServer returns a server over a fresh SQLite store whose first user
// is the dev user.
func newTestServer(t *testing.T, gen Generator) (*Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "freecoach.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if _, err := store.GetOrCreateUser(context.Background(), "local", "Local Dev User"); err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	return New(store, gen, "admin-key", quietLog()), store
}

func do(t *testing.T, s http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, store *sqlite.Store) []models.CatalogEntry {
	t.Helper()
	bar := "barbell"
	catalog := []models.CatalogEntry{
		{ID: uuid.New(), Name: "Back Squat", MuscleGroup: "legs", Equipment: &bar, Difficulty: "intermediate"},
		{ID: uuid.New(), Name: "Push-up", MuscleGroup: "chest", Difficulty: "beginner"},
	}
	if _, err := store.InsertExercises(context.Background(), catalog); err != nil {
		t.Fatalf("InsertExercises: %v", err)
	}
	return catalog
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "local", DisplayName: "Local Dev User"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
}

// TestHandleMeTailscaleUser verifies the /api/v1/me endpoint returns the
// Tailscale user identity when set in context.
func TestHandleMeTailscaleUser(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "alice@example.com", DisplayName: "Alice"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "alice@example.com" {
		t.Errorf("login = %q, want %q", info.Login, "alice@example.com")
	}
}

// TestPreferencesEndpoints verifies the preference record can be read only
// after a valid PUT, and that invalid bodies are rejected.
func TestPreferencesEndpoints(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})

	if rec := do(t, s, http.MethodGet, "/api/v1/preferences", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("GET before PUT status = %d, want 404", rec.Code)
	}

	bad := []struct {
		name string
		body string
		want int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"missing goal", `{"session_duration": 60, "training_days": [1], "training_place": "gym"}`, http.StatusUnprocessableEntity},
		{"day out of range", `{"goal": "gain_muscle", "session_duration": 60, "training_days": [8], "training_place": "gym"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodPut, "/api/v1/preferences", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	body := `{"goal": "gain_muscle", "session_duration": 60, "training_days": [1, 3, 5], "training_place": "gym"}`
	rec := do(t, s, http.MethodPut, "/api/v1/preferences", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/preferences", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var prefs models.Preferences
	if err := json.NewDecoder(rec.Body).Decode(&prefs); err != nil {
		t.Fatal(err)
	}
	if prefs.UserID != 1 || prefs.Goal != models.GoalGainMuscle || len(prefs.TrainingDays) != 3 {
		t.Errorf("prefs = %+v", prefs)
	}
}

// TestGenerateStatusMapping verifies each failure kind maps to its HTTP
// status and that the body names the kind.
func TestGenerateStatusMapping(t *testing.T) {
	tests := []struct {
		kind generation.Kind
		want int
	}{
		{generation.KindPreferencesNotFound, http.StatusNotFound},
		{generation.KindMissingPreferenceField, http.StatusUnprocessableEntity},
		{generation.KindCatalogEmpty, http.StatusConflict},
		{generation.KindValidationFailed, http.StatusUnprocessableEntity},
		{generation.KindGenerationResponseMalformed, http.StatusBadGateway},
		{generation.KindGenerationRequestFailed, http.StatusBadGateway},
		{generation.KindPersistenceFailed, http.StatusInternalServerError},
		{generation.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			gen := &fakeGenerator{err: &generation.Error{
				Kind:   tt.kind,
				Stage:  generation.StageValidating,
				Detail: "boom",
				Violations: validate.Violations{
					{Session: 0, Exercise: -1, Field: "day_number", Rule: validate.RuleDayNotScheduled, Detail: "day 2 is not a training day"},
				},
			}}
			s, _ := newTestServer(t, gen)
			rec := do(t, s, http.MethodPost, "/api/v1/programs/generate", "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body generationErrorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error != string(tt.kind) || body.Detail != "boom" || len(body.Violations) != 1 {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

// TestGenerateCreated verifies a successful run answers 201 with the outcome
// and runs as the identity user.
func TestGenerateCreated(t *testing.T) {
	id := uuid.New()
	gen := &fakeGenerator{out: &generation.Outcome{ProgramID: id, Sessions: 3, Attempts: 1}}
	s, _ := newTestServer(t, gen)

	rec := do(t, s, http.MethodPost, "/api/v1/programs/generate", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var out generation.Outcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ProgramID != id || out.Sessions != 3 {
		t.Errorf("outcome = %+v", out)
	}
	if len(gen.calls) != 1 || gen.calls[0] != 1 {
		t.Errorf("generator calls = %v, want [1]", gen.calls)
	}
}

// TestProgramEndpoints verifies listing and fetching persisted programs,
// including the not-found and bad-id paths.
func TestProgramEndpoints(t *testing.T) {
	s, store := newTestServer(t, &fakeGenerator{})
	catalog := seed(t, store)
	ctx := context.Background()

	id, err := store.PersistProgram(ctx, models.NewProgram{
		UserID: 1,
		Goal:   models.GoalGainMuscle,
		Sessions: []models.GeneratedSession{
			{Name: "Lower", DayNumber: 1, Exercises: []models.GeneratedAssignment{
				{ExerciseID: catalog[0].ID, Sets: 4, Reps: 8, RestSeconds: 90},
				{ExerciseID: catalog[1].ID, Sets: 3, Reps: 12, RestSeconds: 60},
			}},
		},
	})
	if err != nil {
		t.Fatalf("PersistProgram: %v", err)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/programs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []models.ProgramRow
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("list = %+v", list)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/programs/"+id.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var detail models.ProgramDetail
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatal(err)
	}
	if len(detail.Sessions) != 1 || len(detail.Sessions[0].Exercises) != 2 {
		t.Fatalf("detail = %+v", detail)
	}
	if got := detail.Sessions[0].Exercises[0].Name; got != "Back Squat" {
		t.Errorf("first exercise = %q, want Back Squat", got)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"bad id", "/api/v1/programs/not-a-uuid", http.StatusBadRequest},
		{"unknown id", "/api/v1/programs/" + uuid.NewString(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodGet, tt.path, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

// TestAdminImportExercises verifies the catalog import requires the API key
// and that imported entries are listed afterwards.
func TestAdminImportExercises(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})
	body := `[{"name": "Push-up", "muscle_group": "chest"}, {"name": "Plank", "muscle_group": "core"}]`

	if rec := do(t, s, http.MethodPost, "/api/v1/admin/exercises", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/admin/exercises", body, "X-API-Key", "wrong"); rec.Code != http.StatusForbidden {
		t.Errorf("wrong key status = %d, want 403", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/admin/exercises", `[{"name": ""}]`, "X-API-Key", "admin-key"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid catalog status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/admin/exercises", body, "X-API-Key", "admin-key"); rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/exercises?muscle_group=core", "")
	var entries []models.CatalogEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "Plank" {
		t.Errorf("core exercises = %+v", entries)
	}
}

// TestGenerationLogsEndpoint verifies the generation log is listed newest
// first for the identity user.
func TestGenerationLogsEndpoint(t *testing.T) {
	s, store := newTestServer(t, &fakeGenerator{})
	ctx := context.Background()
	for _, status := range []string{"error", "success"} {
		if _, err := store.InsertGenerationLog(ctx, models.GenerationLog{UserID: 1, Status: status, Stage: "Done", Attempts: 1}); err != nil {
			t.Fatalf("InsertGenerationLog: %v", err)
		}
	}

	rec := do(t, s, http.MethodGet, "/api/v1/generations?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var logs []models.GenerationLog
	if err := json.NewDecoder(rec.Body).Decode(&logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Status != "success" {
		t.Errorf("logs = %+v", logs)
	}
}

// TestMetricsEndpoint verifies the Prometheus handler is mounted.
func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})
	if rec := do(t, s, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// TestSessionLogEndpoints verifies completions of an owned session are
// recorded and counted, and that bad or unknown session ids are rejected.
func TestSessionLogEndpoints(t *testing.T) {
	s, store := newTestServer(t, &fakeGenerator{})
	catalog := seed(t, store)
	ctx := context.Background()

	id, err := store.PersistProgram(ctx, models.NewProgram{
		UserID: 1,
		Goal:   models.GoalLoseWeight,
		Sessions: []models.GeneratedSession{
			{Name: "Circuit", DayNumber: 3, Exercises: []models.GeneratedAssignment{
				{ExerciseID: catalog[1].ID, Sets: 3, Reps: 15, RestSeconds: 30},
			}},
		},
	})
	if err != nil {
		t.Fatalf("PersistProgram: %v", err)
	}
	detail, err := store.GetProgram(ctx, 1, id)
	if err != nil {
		t.Fatalf("GetProgram: %v", err)
	}
	sid := detail.Sessions[0].ID
	base := "/api/v1/sessions/" + sid.String() + "/logs"

	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodPost, base, "")
		if rec.Code != http.StatusCreated {
			t.Fatalf("log status = %d: %s", rec.Code, rec.Body)
		}
		var entry models.SessionLog
		if err := json.NewDecoder(rec.Body).Decode(&entry); err != nil {
			t.Fatal(err)
		}
		if entry.SessionID != sid || entry.UserID != 1 || entry.ID == 0 {
			t.Errorf("entry = %+v", entry)
		}
	}

	rec := do(t, s, http.MethodGet, base+"/count", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("count status = %d", rec.Code)
	}
	var count models.SessionLogCount
	if err := json.NewDecoder(rec.Body).Decode(&count); err != nil {
		t.Fatal(err)
	}
	if count.SessionID != sid || count.Count != 2 {
		t.Errorf("count = %+v, want 2 for %s", count, sid)
	}

	unknown := "/api/v1/sessions/" + uuid.NewString() + "/logs"
	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"log bad id", http.MethodPost, "/api/v1/sessions/nope/logs", http.StatusBadRequest},
		{"count bad id", http.MethodGet, "/api/v1/sessions/nope/logs/count", http.StatusBadRequest},
		{"log unknown session", http.MethodPost, unknown, http.StatusNotFound},
		{"count unknown session", http.MethodGet, unknown + "/count", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, tt.method, tt.path, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

// TestSetDevUser verifies requests run as the configured dev user when it is
// not the first user in the store.
func TestSetDevUser(t *testing.T) {
	gen := &fakeGenerator{out: &generation.Outcome{ProgramID: uuid.New(), Sessions: 1, Attempts: 1}}
	s, store := newTestServer(t, gen)
	id, err := store.GetOrCreateUser(context.Background(), "second", "Second User")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if id == 1 {
		t.Fatalf("second user id = 1")
	}
	s.SetDevUser(id)

	body := `{"goal": "improve_health", "session_duration": 30, "training_days": [2], "training_place": "home_no_equipment"}`
	if rec := do(t, s, http.MethodPut, "/api/v1/preferences", body); rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body)
	}
	prefs, err := store.GetPreferences(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPreferences(%d): %v", id, err)
	}
	if prefs.UserID != id {
		t.Errorf("prefs user = %d, want %d", prefs.UserID, id)
	}

	if rec := do(t, s, http.MethodPost, "/api/v1/programs/generate", ""); rec.Code != http.StatusCreated {
		t.Fatalf("generate status = %d", rec.Code)
	}
	if len(gen.calls) != 1 || gen.calls[0] != id {
		t.Errorf("generator calls = %v, want [%d]", gen.calls, id)
	}
}
