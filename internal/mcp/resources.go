package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	entries, err := h.ds.ListExercises(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, entries)
}

func (h *handlers) latestProgram(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)

	programs, err := h.ds.ListPrograms(ctx, uid, 1)
	if err != nil {
		return nil, err
	}
	if len(programs) == 0 {
		return nil, errors.New("no programs generated yet")
	}

	program, err := h.ds.GetProgram(ctx, uid, programs[0].ID)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, program)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
