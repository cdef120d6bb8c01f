// Package catalog reads exercise catalog files. A file is either a JSON
// array of entries or an object with an "exercises" array:
//
//	[{"name": "Push-up", "muscle_group": "chest", "equipment": null, "difficulty": "beginner"}]
//
// Entries without an id get one derived from their name, so importing the
// same file twice updates rows instead of duplicating them.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/claude/freecoach/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// namespace seeds name-derived exercise ids.
var namespace = uuid.MustParse("5b0f3c1e-4a8e-4d0b-9a57-2f9d8c6e1a40")

var validate = validator.New()

type entry struct {
	ID          string  `json:"id"`
	Name        string  `json:"name" validate:"required"`
	MuscleGroup string  `json:"muscle_group" validate:"required"`
	Equipment   *string `json:"equipment"`
	Difficulty  string  `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
}

type wrapped struct {
	Exercises []entry `json:"exercises"`
}

// IDFor returns the id an entry named name receives when the file omits one.
func IDFor(name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(strings.ToLower(strings.TrimSpace(name))))
}

// Parse decodes and validates a catalog file.
func Parse(r io.Reader) ([]models.CatalogEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("catalog is empty")
	}

	var raw []entry
	if data[0] == '{' {
		var w wrapped
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decoding catalog: %w", err)
		}
		raw = w.Exercises
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("catalog has no exercises")
	}

	entries := make([]models.CatalogEntry, 0, len(raw))
	for i, e := range raw {
		e.Name = strings.TrimSpace(e.Name)
		e.MuscleGroup = strings.TrimSpace(e.MuscleGroup)
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("exercise %d (%q): %w", i, e.Name, err)
		}
		id := IDFor(e.Name)
		if e.ID != "" {
			if id, err = uuid.Parse(e.ID); err != nil {
				return nil, fmt.Errorf("exercise %d (%q): parsing id: %w", i, e.Name, err)
			}
		}
		eq := e.Equipment
		if eq != nil && strings.TrimSpace(*eq) == "" {
			eq = nil
		}
		entries = append(entries, models.CatalogEntry{
			ID:          id,
			Name:        e.Name,
			MuscleGroup: e.MuscleGroup,
			Equipment:   eq,
			Difficulty:  e.Difficulty,
		})
	}
	return entries, nil
}
