package generation

import (
	"errors"
	"fmt"

	"github.com/claude/freecoach/internal/validate"
)

// Kind classifies why a run failed.
type Kind string

const (
	KindPreferencesNotFound         Kind = "PreferencesNotFound"
	KindCatalogEmpty                Kind = "CatalogEmpty"
	KindMissingPreferenceField      Kind = "MissingPreferenceField"
	KindGenerationRequestFailed     Kind = "GenerationRequestFailed"
	KindGenerationResponseMalformed Kind = "GenerationResponseMalformed"
	KindValidationFailed            Kind = "ValidationFailed"
	KindPersistenceFailed           Kind = "PersistenceFailed"
	// KindInternal covers store read failures other than a missing record.
	KindInternal Kind = "Internal"
)

// retryable kinds are the ones a fresh model answer can fix.
func (k Kind) retryable() bool {
	switch k {
	case KindGenerationRequestFailed, KindGenerationResponseMalformed, KindValidationFailed:
		return true
	}
	return false
}

// Stage is a step of the pipeline.
type Stage string

const (
	StageLoadingContext Stage = "LoadingContext"
	StagePrompting      Stage = "Prompting"
	StageGenerating     Stage = "Generating"
	StageRepairing      Stage = "Repairing"
	StageValidating     Stage = "Validating"
	StagePersisting     Stage = "Persisting"
	StageDone           Stage = "Done"
)

// Error is the single failure type returned by Orchestrator.Generate.
type Error struct {
	Kind  Kind
	Stage Stage
	// Detail is a human-readable summary (the missing field, the upstream
	// status, the parse error).
	Detail string
	// Violations is set for KindValidationFailed.
	Violations validate.Violations
	// Raw and Repaired hold the model text for malformed or invalid answers.
	Raw      string
	Repaired string
	Err      error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s at %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind, true
	}
	return "", false
}
