package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/prompt"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/validate"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListExercises(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if group := r.URL.Query().Get("muscle_group"); group != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.MuscleGroup == group {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleImportExercises(w http.ResponseWriter, r *http.Request) {
	entries, err := catalog.Parse(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	n, err := s.store.InsertExercises(r.Context(), entries)
	if err != nil {
		s.log.Error("catalog import error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.log.Info("catalog imported", "received", len(entries), "written", n)
	writeJSON(w, http.StatusOK, map[string]int64{"received": int64(len(entries)), "written": n})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	prefs, err := s.store.GetPreferences(r.Context(), uid)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no preferences set"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var prefs models.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	prefs.UserID = uid
	if err := prompt.CheckPreferences(prefs); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	if err := s.store.UpsertPreferences(r.Context(), prefs); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	saved, err := s.store.GetPreferences(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	out, err := s.gen.Generate(r.Context(), uid)
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// generationErrorBody is the JSON shape of a failed generation.
type generationErrorBody struct {
	Error      string              `json:"error"`
	Stage      string              `json:"stage,omitempty"`
	Detail     string              `json:"detail,omitempty"`
	Violations validate.Violations `json:"violations,omitempty"`
}

func writeGenerationError(w http.ResponseWriter, err error) {
	var gerr *generation.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, http.StatusInternalServerError, generationErrorBody{Error: string(generation.KindInternal), Detail: err.Error()})
		return
	}
	writeJSON(w, statusForKind(gerr.Kind), generationErrorBody{
		Error:      string(gerr.Kind),
		Stage:      string(gerr.Stage),
		Detail:     gerr.Detail,
		Violations: gerr.Violations,
	})
}

func statusForKind(k generation.Kind) int {
	switch k {
	case generation.KindPreferencesNotFound:
		return http.StatusNotFound
	case generation.KindMissingPreferenceField, generation.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case generation.KindCatalogEmpty:
		return http.StatusConflict
	case generation.KindGenerationRequestFailed, generation.KindGenerationResponseMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	programs, err := s.store.ListPrograms(r.Context(), uid, parseLimit(r, 20))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, programs)
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid program ID"})
		return
	}

	program, err := s.store.GetProgram(r.Context(), uid, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "program not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (s *Server) handleLogSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	entry, err := s.store.InsertSessionLog(r.Context(), uid, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		s.log.Error("session log error", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleCountSessionLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	n, err := s.store.CountSessionLogs(r.Context(), uid, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models.SessionLogCount{SessionID: id, Count: n})
}

func (s *Server) handleGenerationLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	logs, err := s.store.QueryGenerationLogs(r.Context(), uid, parseLimit(r, 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// parseLimit reads a positive ?limit= value, or returns def.
func parseLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
