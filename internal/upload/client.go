// Package upload pushes a local exercise catalog to a remote FreeCoach server.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/freecoach/internal/models"
)

// Result is the server's import summary.
type Result struct {
	Received int64 `json:"received"`
	Written  int64 `json:"written"`
}

// Client sends catalogs to the FreeCoach admin API.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the FreeCoach server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// SendCatalog POSTs the entries to the admin exercises endpoint.
// Retries up to 3 times with exponential backoff on network errors and 5xx
// responses; 4xx responses fail at once.
func (c *Client) SendCatalog(ctx context.Context, entries []models.CatalogEntry) (*Result, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshaling catalog: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/admin/exercises", bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			var res Result
			if err := json.Unmarshal(body, &res); err != nil {
				return nil, fmt.Errorf("decoding import result: %w", err)
			}
			return &res, nil
		case resp.StatusCode < 500:
			return nil, fmt.Errorf("catalog upload rejected (status %d): %s", resp.StatusCode, body)
		}
		lastErr = fmt.Errorf("catalog upload failed (status %d): %s", resp.StatusCode, body)
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}
