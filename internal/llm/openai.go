package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint
// (OpenAI itself, or a self-hosted server when BaseURL is set).
type OpenAIClient struct {
	cfg    Config
	client *openai.Client
}

// NewOpenAIClient creates a client from cfg.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	cfg = cfg.withDefaults()
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAIClient{cfg: cfg, client: openai.NewClientWithConfig(oc)}
}

// Generate sends prompt as a single user message and returns the first choice.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float32(c.cfg.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		apiErr := &openai.APIError{}
		if errors.As(err, &apiErr) {
			return "", &RequestError{Provider: ProviderOpenAI, StatusCode: apiErr.HTTPStatusCode, Body: truncate(apiErr.Message, 512), Err: err}
		}
		reqErr := &openai.RequestError{}
		if errors.As(err, &reqErr) {
			return "", &RequestError{Provider: ProviderOpenAI, StatusCode: reqErr.HTTPStatusCode, Body: truncate(string(reqErr.Body), 512), Err: err}
		}
		return "", &RequestError{Provider: ProviderOpenAI, Err: err}
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &RequestError{Provider: ProviderOpenAI, Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}
