package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/google/uuid"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestGetPreferences verifies the client decodes the preference record and
// maps 404 to storage.ErrNotFound.
func TestGetPreferences(t *testing.T) {
	found := true
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/preferences": func(w http.ResponseWriter, r *http.Request) {
			if !found {
				writeTestJSON(t, w, http.StatusNotFound, map[string]string{"error": "no preferences set"})
				return
			}
			writeTestJSON(t, w, http.StatusOK, models.Preferences{UserID: 3, Goal: models.GoalLoseWeight, TrainingDays: []int{2, 4}})
		},
	})
	defer ts.Close()
	client := NewHTTPClient(ts.URL + "/")

	prefs, err := client.GetPreferences(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Goal != models.GoalLoseWeight || len(prefs.TrainingDays) != 2 {
		t.Errorf("prefs = %+v", prefs)
	}

	found = false
	if _, err := client.GetPreferences(context.Background(), 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestListPrograms verifies the limit is sent as a query parameter.
func TestListPrograms(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/programs": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "5" {
				t.Errorf("limit=%q, want 5", got)
			}
			writeTestJSON(t, w, http.StatusOK, []models.ProgramRow{{ID: id, Name: "AI Program (gain_muscle)"}})
		},
	})
	defer ts.Close()

	programs, err := NewHTTPClient(ts.URL).ListPrograms(context.Background(), 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(programs) != 1 || programs[0].ID != id {
		t.Errorf("programs = %+v", programs)
	}
}

// TestGenerateProgramRemote verifies a 201 decodes to an outcome and an error
// body is rebuilt into a *generation.Error.
func TestGenerateProgramRemote(t *testing.T) {
	id := uuid.New()
	fail := false
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/programs/generate": func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			if fail {
				writeTestJSON(t, w, http.StatusUnprocessableEntity, map[string]any{
					"error":  "ValidationFailed",
					"stage":  "Validating",
					"detail": "1 violation(s)",
					"violations": []map[string]any{
						{"session": 0, "exercise": 1, "field": "reps", "rule": "range", "detail": "reps 40 out of range"},
					},
				})
				return
			}
			writeTestJSON(t, w, http.StatusCreated, generation.Outcome{ProgramID: id, Sessions: 3, Attempts: 1})
		},
	})
	defer ts.Close()
	client := NewHTTPClient(ts.URL)

	out, err := client.GenerateProgram(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if out.ProgramID != id || out.Sessions != 3 {
		t.Errorf("outcome = %+v", out)
	}

	fail = true
	_, err = client.GenerateProgram(context.Background(), 0)
	var gerr *generation.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want *generation.Error", err)
	}
	if gerr.Kind != generation.KindValidationFailed || len(gerr.Violations) != 1 || gerr.Violations[0].Field != "reps" {
		t.Errorf("error = %+v", gerr)
	}
}

// TestGenerateProgramRemoteOpaqueError verifies a non-JSON failure keeps the
// status and body in the error.
func TestGenerateProgramRemoteOpaqueError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/programs/generate": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).GenerateProgram(context.Background(), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := generation.KindOf(err); ok {
		t.Errorf("opaque failure should not carry a kind: %v", err)
	}
}
