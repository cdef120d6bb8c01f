package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/validate"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the FreeCoach REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The server
// resolves the user from the connection, so userID arguments are ignored.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
// Generation waits on the model, so the timeout is generous.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// do sends a request and returns the status and body.
func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body []byte) (int, []byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("httpclient: read body: %w", err)
	}
	return resp.StatusCode, data, nil
}

// get returns the body of a 200 response. A 404 maps to storage.ErrNotFound.
func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	status, body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	}
	return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, status, body)
}

func (c *HTTPClient) GetPreferences(ctx context.Context, _ int) (models.Preferences, error) {
	var prefs models.Preferences
	body, err := c.get(ctx, "/api/v1/preferences", nil)
	if err != nil {
		return prefs, err
	}
	if err := json.Unmarshal(body, &prefs); err != nil {
		return prefs, fmt.Errorf("httpclient: decode preferences: %w", err)
	}
	return prefs, nil
}

func (c *HTTPClient) ListExercises(ctx context.Context) ([]models.CatalogEntry, error) {
	body, err := c.get(ctx, "/api/v1/exercises", nil)
	if err != nil {
		return nil, err
	}
	var entries []models.CatalogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("httpclient: decode exercises: %w", err)
	}
	return entries, nil
}

func (c *HTTPClient) GetProgram(ctx context.Context, _ int, id uuid.UUID) (*models.ProgramDetail, error) {
	body, err := c.get(ctx, "/api/v1/programs/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	var program models.ProgramDetail
	if err := json.Unmarshal(body, &program); err != nil {
		return nil, fmt.Errorf("httpclient: decode program: %w", err)
	}
	return &program, nil
}

func (c *HTTPClient) ListPrograms(ctx context.Context, _ int, limit int) ([]models.ProgramRow, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v1/programs", params)
	if err != nil {
		return nil, err
	}
	var programs []models.ProgramRow
	if err := json.Unmarshal(body, &programs); err != nil {
		return nil, fmt.Errorf("httpclient: decode programs: %w", err)
	}
	return programs, nil
}

// GenerateProgram asks the server to run the pipeline. A failed run comes
// back as a *generation.Error rebuilt from the error body.
func (c *HTTPClient) GenerateProgram(ctx context.Context, _ int) (*generation.Outcome, error) {
	const path = "/api/v1/programs/generate"
	status, body, err := c.do(ctx, http.MethodPost, path, nil, []byte("{}"))
	if err != nil {
		return nil, err
	}

	if status != http.StatusCreated {
		var e struct {
			Error      string              `json:"error"`
			Stage      string              `json:"stage"`
			Detail     string              `json:"detail"`
			Violations validate.Violations `json:"violations"`
		}
		if json.Unmarshal(body, &e) != nil || e.Error == "" {
			return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, status, body)
		}
		return nil, &generation.Error{
			Kind:       generation.Kind(e.Error),
			Stage:      generation.Stage(e.Stage),
			Detail:     e.Detail,
			Violations: e.Violations,
		}
	}

	var out generation.Outcome
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("httpclient: decode outcome: %w", err)
	}
	return &out, nil
}
