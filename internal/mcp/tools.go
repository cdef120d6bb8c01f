package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolGenerateProgram = mcp.NewTool("generate_program",
	mcp.WithDescription("Generate and store a new training program from the user's saved preferences and the exercise catalog. Returns the program with its sessions and exercises. Fails with a reason (for example PreferencesNotFound or ValidationFailed) when no program could be produced."),
)

var toolGetProgram = mcp.NewTool("get_program",
	mcp.WithDescription("Get a stored program with all sessions ordered by day and exercises in order."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Program ID (UUID)")),
)

var toolListPrograms = mcp.NewTool("list_programs",
	mcp.WithDescription("List the user's programs, newest first."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of programs. Defaults to 10.")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the exercise catalog programs are built from."),
	mcp.WithString("muscle_group", mcp.Description("Only exercises for this muscle group (e.g. chest, legs, back)")),
	mcp.WithBoolean("bodyweight_only", mcp.Description("Only exercises that need no equipment")),
)

var toolGetPreferences = mcp.NewTool("get_preferences",
	mcp.WithDescription("Get the user's training preferences: goal, session duration, training days (1=Monday..7=Sunday), training place and program length."),
)

// --- Tool handlers ---

func (h *handlers) generateProgram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)

	out, err := h.ds.GenerateProgram(ctx, uid)
	if err != nil {
		h.log.Warn("mcp generate_program", "user_id", uid, "error", err)
		return mcp.NewToolResultError(describeGenerationError(err)), nil
	}

	payload := map[string]any{"outcome": out}
	program, err := h.ds.GetProgram(ctx, uid, out.ProgramID)
	if err != nil {
		h.log.Warn("mcp generate_program: reading back program", "program_id", out.ProgramID, "error", err)
	} else {
		payload["program"] = program
	}

	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// describeGenerationError renders a failed run for the model: the kind, the
// detail and one line per violation.
func describeGenerationError(err error) string {
	var gerr *generation.Error
	if !errors.As(err, &gerr) {
		return "generation failed: " + err.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "generation failed (%s)", gerr.Kind)
	if gerr.Detail != "" {
		b.WriteString(": " + gerr.Detail)
	}
	for _, v := range gerr.Violations {
		b.WriteString("\n- " + v.String())
	}
	return b.String()
}

func (h *handlers) getProgram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError("invalid program id: " + err.Error()), nil
	}

	program, err := h.ds.GetProgram(ctx, UserIDFromContext(ctx), id)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("program not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_program", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(program)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listPrograms(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	programs, err := h.ds.ListPrograms(ctx, UserIDFromContext(ctx), limit)
	if err != nil {
		h.log.Error("mcp list_programs", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(programs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.ds.ListExercises(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	group := req.GetString("muscle_group", "")
	bodyweight := req.GetBool("bodyweight_only", false)
	filtered := make([]models.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if group != "" && !strings.EqualFold(e.MuscleGroup, group) {
			continue
		}
		if bodyweight && !e.NoEquipment() {
			continue
		}
		filtered = append(filtered, e)
	}

	result, err := mcp.NewToolResultJSON(filtered)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPreferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefs, err := h.ds.GetPreferences(ctx, UserIDFromContext(ctx))
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("no preferences set; the user must save preferences before a program can be generated"), nil
	}
	if err != nil {
		h.log.Error("mcp get_preferences", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(prefs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
