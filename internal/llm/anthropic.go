package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// AnthropicClient calls the Messages API over plain HTTP.
type AnthropicClient struct {
	cfg        Config
	url        string
	httpClient *http.Client
}

// NewAnthropicClient creates a client from cfg. BaseURL overrides the
// default messages endpoint.
func NewAnthropicClient(cfg Config) *AnthropicClient {
	cfg = cfg.withDefaults()
	url := anthropicBaseURL
	if cfg.BaseURL != "" {
		url = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &AnthropicClient{
		cfg:        cfg,
		url:        url,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Generate sends prompt as a single user message and returns the first
// content block's text.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(anthropicRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &RequestError{Provider: ProviderAnthropic, Err: err}
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Provider: ProviderAnthropic, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Provider: ProviderAnthropic, Err: fmt.Errorf("reading body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &RequestError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
	}

	var out anthropicResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &RequestError{Provider: ProviderAnthropic, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if out.Error != nil {
		return "", &RequestError{Provider: ProviderAnthropic, Err: fmt.Errorf("%s: %s", out.Error.Type, out.Error.Message)}
	}
	if len(out.Content) == 0 || strings.TrimSpace(out.Content[0].Text) == "" {
		return "", &RequestError{Provider: ProviderAnthropic, Err: ErrEmptyResponse}
	}
	return out.Content[0].Text, nil
}
