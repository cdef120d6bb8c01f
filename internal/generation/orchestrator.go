// Package generation runs the program generation pipeline: load the user's
// preferences and the catalog, prompt the model, repair and validate its
// answer, then persist the program.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/freecoach/internal/llm"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/prompt"
	"github.com/claude/freecoach/internal/repair"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/validate"
	"github.com/google/uuid"
)

// MaxAttemptsLimit caps Config.MaxAttempts.
const MaxAttemptsLimit = 3

// Store is the persistence the pipeline needs.
type Store interface {
	GetPreferences(ctx context.Context, userID int) (models.Preferences, error)
	ListExercises(ctx context.Context) ([]models.CatalogEntry, error)
	PersistProgram(ctx context.Context, p models.NewProgram) (uuid.UUID, error)
	InsertGenerationLog(ctx context.Context, log models.GenerationLog) (int64, error)
}

// Config tunes the orchestrator.
type Config struct {
	Policy validate.Policy
	// MaxAttempts bounds model round trips per run. 0 or 1 disables retry.
	MaxAttempts int
}

// Outcome describes a successful run.
type Outcome struct {
	ProgramID      uuid.UUID `json:"program_id"`
	Sessions       int       `json:"sessions"`
	Attempts       int       `json:"attempts"`
	RepairsApplied []string  `json:"repairs_applied,omitempty"`
}

// Orchestrator sequences the pipeline stages. It holds no per-run state and
// is safe for concurrent use.
type Orchestrator struct {
	store       Store
	client      llm.Client
	policy      validate.Policy
	validator   *validate.Validator
	maxAttempts int
	log         *slog.Logger
}

// New creates an Orchestrator.
func New(store Store, client llm.Client, cfg Config, log *slog.Logger) *Orchestrator {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	if attempts > MaxAttemptsLimit {
		attempts = MaxAttemptsLimit
	}
	return &Orchestrator{
		store:       store,
		client:      client,
		policy:      cfg.Policy,
		validator:   validate.New(cfg.Policy),
		maxAttempts: attempts,
		log:         log,
	}
}

// run carries the diagnostics of one Generate call.
type run struct {
	userID   int
	attempts int
	repairs  []string
}

// Generate produces and persists a program for userID. Any failure is an
// *Error naming the stage and kind.
func (o *Orchestrator) Generate(ctx context.Context, userID int) (*Outcome, error) {
	start := time.Now()
	r := &run{userID: userID}

	out, err := o.generate(ctx, r)
	o.finish(ctx, r, start, out, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) generate(ctx context.Context, r *run) (*Outcome, error) {
	prefs, catalog, err := o.loadContext(ctx, r)
	if err != nil {
		return nil, err
	}

	var (
		sessions []models.GeneratedSession
		feedback []string
	)
	for {
		r.attempts++
		attemptsTotal.Inc()

		sessions, err = o.attempt(ctx, r, prefs, catalog, feedback)
		if err == nil {
			break
		}
		var gerr *Error
		if !errors.As(err, &gerr) || !gerr.Kind.retryable() || r.attempts >= o.maxAttempts {
			return nil, err
		}
		feedback = feedbackFor(gerr)
		o.log.Warn("generation attempt rejected, retrying",
			"user_id", r.userID, "attempt", r.attempts, "kind", gerr.Kind, "detail", gerr.Detail)
	}

	o.enter(r, StagePersisting)
	began := time.Now()
	id, err := o.store.PersistProgram(ctx, models.NewProgram{
		UserID:        r.userID,
		Name:          models.DefaultProgramName(prefs.Goal),
		Goal:          prefs.Goal,
		DurationWeeks: prefs.Weeks(),
		Sessions:      sessions,
	})
	observe(StagePersisting, began)
	if err != nil {
		return nil, &Error{Kind: KindPersistenceFailed, Stage: StagePersisting, Detail: err.Error(), Err: err}
	}

	return &Outcome{ProgramID: id, Sessions: len(sessions), Attempts: r.attempts, RepairsApplied: r.repairs}, nil
}

func (o *Orchestrator) loadContext(ctx context.Context, r *run) (models.Preferences, []models.CatalogEntry, error) {
	o.enter(r, StageLoadingContext)
	defer observe(StageLoadingContext, time.Now())

	prefs, err := o.store.GetPreferences(ctx, r.userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return prefs, nil, &Error{Kind: KindPreferencesNotFound, Stage: StageLoadingContext,
				Detail: fmt.Sprintf("no preferences for user %d", r.userID), Err: err}
		}
		return prefs, nil, &Error{Kind: KindInternal, Stage: StageLoadingContext, Detail: err.Error(), Err: err}
	}

	catalog, err := o.store.ListExercises(ctx)
	if err != nil {
		return prefs, nil, &Error{Kind: KindInternal, Stage: StageLoadingContext, Detail: err.Error(), Err: err}
	}
	if len(catalog) == 0 {
		return prefs, nil, &Error{Kind: KindCatalogEmpty, Stage: StageLoadingContext, Detail: "exercise catalog is empty"}
	}
	return prefs, catalog, nil
}

// attempt runs Prompting through Validating once.
func (o *Orchestrator) attempt(ctx context.Context, r *run, prefs models.Preferences, catalog []models.CatalogEntry, feedback []string) ([]models.GeneratedSession, error) {
	o.enter(r, StagePrompting)
	began := time.Now()
	text, err := prompt.BuildWithFeedback(prefs, catalog, o.policy, feedback)
	observe(StagePrompting, began)
	if err != nil {
		var mf *prompt.MissingFieldError
		if errors.As(err, &mf) {
			return nil, &Error{Kind: KindMissingPreferenceField, Stage: StagePrompting, Detail: mf.Error(), Err: err}
		}
		return nil, &Error{Kind: KindInternal, Stage: StagePrompting, Detail: err.Error(), Err: err}
	}

	o.enter(r, StageGenerating)
	began = time.Now()
	raw, err := o.client.Generate(ctx, text)
	observe(StageGenerating, began)
	if err != nil {
		return nil, &Error{Kind: KindGenerationRequestFailed, Stage: StageGenerating, Detail: err.Error(), Err: err}
	}

	o.enter(r, StageRepairing)
	began = time.Now()
	res, err := repair.Repair(raw)
	observe(StageRepairing, began)
	if err != nil {
		gerr := &Error{Kind: KindGenerationResponseMalformed, Stage: StageRepairing, Detail: err.Error(), Raw: raw, Err: err}
		var me *repair.MalformedError
		if errors.As(err, &me) {
			gerr.Repaired = me.Repaired
		}
		return nil, gerr
	}
	for _, name := range res.Applied {
		repairRulesApplied.WithLabelValues(name).Inc()
	}
	if len(res.Applied) > 0 {
		o.log.Info("repaired model output", "user_id", r.userID, "rules", res.Applied)
	}
	r.repairs = res.Applied

	o.enter(r, StageValidating)
	began = time.Now()
	sessions, violations := o.validator.Validate(res.Objects, catalog, prefs)
	observe(StageValidating, began)
	if len(violations) > 0 {
		return nil, &Error{
			Kind:       KindValidationFailed,
			Stage:      StageValidating,
			Detail:     fmt.Sprintf("%d violation(s)", len(violations)),
			Violations: violations,
			Raw:        raw,
			Repaired:   res.Repaired,
			Err:        violations,
		}
	}
	return sessions, nil
}

// feedbackFor turns a rejected attempt into instructions for the next prompt.
func feedbackFor(e *Error) []string {
	switch e.Kind {
	case KindValidationFailed:
		return e.Violations.Strings()
	case KindGenerationResponseMalformed:
		return []string{"the answer was not a valid JSON array of session objects (" + e.Detail + ")"}
	}
	return nil
}

func (o *Orchestrator) enter(r *run, stage Stage) {
	o.log.Debug("generation stage", "user_id", r.userID, "stage", stage, "attempt", r.attempts)
}

func observe(stage Stage, began time.Time) {
	stageDuration.WithLabelValues(string(stage)).Observe(time.Since(began).Seconds())
}

// finish logs the run, counts it and writes its generation log row. The log
// row is best effort and never changes the result.
func (o *Orchestrator) finish(ctx context.Context, r *run, start time.Time, out *Outcome, err error) {
	ms := int(time.Since(start).Milliseconds())
	entry := models.GenerationLog{
		UserID:     r.userID,
		CreatedAt:  start.UTC(),
		Attempts:   r.attempts,
		DurationMs: &ms,
	}
	meta := map[string]any{}
	if len(r.repairs) > 0 {
		meta["repairs_applied"] = r.repairs
	}

	if err == nil {
		entry.Status = "success"
		entry.Stage = string(StageDone)
		entry.ProgramID = &out.ProgramID
		meta["sessions"] = out.Sessions
		runsTotal.WithLabelValues("success").Inc()
		o.log.Info("program generated",
			"user_id", r.userID, "program_id", out.ProgramID, "sessions", out.Sessions,
			"attempts", r.attempts, "duration_ms", ms)
	} else {
		gerr := &Error{Kind: KindInternal, Stage: StageLoadingContext, Detail: err.Error()}
		errors.As(err, &gerr)
		kind, msg := string(gerr.Kind), gerr.Error()
		entry.Status = "error"
		entry.Stage = string(gerr.Stage)
		entry.ErrorKind = &kind
		entry.ErrorMessage = &msg
		if len(gerr.Violations) > 0 {
			meta["violations"] = gerr.Violations
		}
		if gerr.Repaired != "" {
			meta["repaired"] = truncate(gerr.Repaired, 4096)
		}
		runsTotal.WithLabelValues(kind).Inc()
		o.log.Warn("program generation failed",
			"user_id", r.userID, "kind", gerr.Kind, "stage", gerr.Stage, "attempts", r.attempts,
			"detail", gerr.Detail, "duration_ms", ms)
	}

	if len(meta) > 0 {
		if b, merr := json.Marshal(meta); merr == nil {
			raw := json.RawMessage(b)
			entry.Metadata = &raw
		}
	}
	if _, lerr := o.store.InsertGenerationLog(context.WithoutCancel(ctx), entry); lerr != nil {
		o.log.Warn("writing generation log", "user_id", r.userID, "error", lerr)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
