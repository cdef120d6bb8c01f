package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Client sends one prompt to a text-generation service and returns its text.
// Implementations make exactly one upstream call per Generate and never retry.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider names accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config is the explicit connection and sampling configuration for a Client.
type Config struct {
	Provider          string
	BaseURL           string
	APIKey            string
	Model             string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	RequestsPerMinute int
}

const (
	defaultMaxTokens = 3000
	defaultTimeout   = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// ErrEmptyResponse is returned when the upstream answered without any text.
var ErrEmptyResponse = errors.New("empty response text")

// RequestError describes a failed upstream call.
type RequestError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: upstream returned %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return e.Provider + ": request failed"
}

func (e *RequestError) Unwrap() error { return e.Err }

// New builds the configured Client, wrapped in a rate limiter when
// RequestsPerMinute is set.
func New(cfg Config, log *slog.Logger) (Client, error) {
	cfg = cfg.withDefaults()

	var c Client
	switch cfg.Provider {
	case ProviderAnthropic, "":
		if cfg.APIKey == "" {
			return nil, errors.New("anthropic: api key is required")
		}
		c = NewAnthropicClient(cfg)
	case ProviderOpenAI:
		c = NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	log.Info("generator configured", "provider", cfg.Provider, "model", cfg.Model, "timeout", cfg.Timeout.String())

	if cfg.RequestsPerMinute > 0 {
		c = NewRateLimited(c, cfg.RequestsPerMinute)
	}
	return c, nil
}

// truncate keeps error bodies readable in logs.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
