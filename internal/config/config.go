package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/claude/freecoach/internal/llm"
	"github.com/claude/freecoach/internal/validate"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Generator GeneratorConfig `yaml:"generator"`
	Policy    validate.Policy `yaml:"policy"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type GeneratorConfig struct {
	Provider          string        `yaml:"provider"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       float64       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// LLM returns the client configuration for the generator section.
func (g GeneratorConfig) LLM() llm.Config {
	return llm.Config{
		Provider:          g.Provider,
		BaseURL:           g.BaseURL,
		APIKey:            g.APIKey,
		Model:             g.Model,
		MaxTokens:         g.MaxTokens,
		Temperature:       g.Temperature,
		Timeout:           g.Timeout,
		RequestsPerMinute: g.RequestsPerMinute,
	}
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: DriverPostgres},
		Tailscale: TailscaleConfig{
			Hostname: "freecoach",
			StateDir: "tsnet-state",
		},
		Generator: GeneratorConfig{
			Provider:    llm.ProviderAnthropic,
			Model:       "claude-sonnet-4-5",
			MaxTokens:   3000,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
			MaxAttempts: 1,
		},
		Policy: validate.DefaultPolicy(),
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix FREECOACH_ and underscore-separated paths:
//
//	FREECOACH_SERVER_HOST, FREECOACH_SERVER_PORT,
//	FREECOACH_DB_DRIVER, FREECOACH_DB_PATH,
//	FREECOACH_DB_HOST, FREECOACH_DB_PORT, FREECOACH_DB_NAME,
//	FREECOACH_DB_USER, FREECOACH_DB_PASSWORD, FREECOACH_DB_SSLMODE,
//	FREECOACH_AUTH_API_KEY,
//	FREECOACH_LLM_PROVIDER, FREECOACH_LLM_BASE_URL, FREECOACH_LLM_API_KEY,
//	FREECOACH_LLM_MODEL, FREECOACH_LLM_MAX_ATTEMPTS
//
// ANTHROPIC_API_KEY is used when no generator key is configured.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "FREECOACH_SERVER_HOST")
	setInt(&cfg.Server.Port, "FREECOACH_SERVER_PORT")

	setString(&cfg.Database.Driver, "FREECOACH_DB_DRIVER")
	setString(&cfg.Database.Path, "FREECOACH_DB_PATH")
	setString(&cfg.Database.Host, "FREECOACH_DB_HOST")
	setInt(&cfg.Database.Port, "FREECOACH_DB_PORT")
	setString(&cfg.Database.Name, "FREECOACH_DB_NAME")
	setString(&cfg.Database.User, "FREECOACH_DB_USER")
	setString(&cfg.Database.Password, "FREECOACH_DB_PASSWORD")
	setString(&cfg.Database.SSLMode, "FREECOACH_DB_SSLMODE")

	setString(&cfg.Auth.APIKey, "FREECOACH_AUTH_API_KEY")

	setString(&cfg.Generator.Provider, "FREECOACH_LLM_PROVIDER")
	setString(&cfg.Generator.BaseURL, "FREECOACH_LLM_BASE_URL")
	setString(&cfg.Generator.APIKey, "FREECOACH_LLM_API_KEY")
	setString(&cfg.Generator.Model, "FREECOACH_LLM_MODEL")
	setInt(&cfg.Generator.MaxAttempts, "FREECOACH_LLM_MAX_ATTEMPTS")

	if cfg.Generator.APIKey == "" && cfg.Generator.Provider == llm.ProviderAnthropic {
		setString(&cfg.Generator.APIKey, "ANTHROPIC_API_KEY")
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not one of postgres, sqlite", c.Database.Driver)
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}

	switch c.Generator.Provider {
	case llm.ProviderAnthropic:
		if c.Generator.APIKey == "" {
			return fmt.Errorf("generator.api_key is required for the anthropic provider")
		}
	case llm.ProviderOpenAI:
		if c.Generator.BaseURL == "" && c.Generator.APIKey == "" {
			return fmt.Errorf("generator.base_url or generator.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("generator.provider %q is not one of anthropic, openai", c.Generator.Provider)
	}
	if c.Generator.Model == "" {
		return fmt.Errorf("generator.model is required")
	}
	if c.Generator.MaxAttempts < 1 || c.Generator.MaxAttempts > 3 {
		return fmt.Errorf("generator.max_attempts must be between 1 and 3")
	}
	if c.Generator.Timeout <= 0 {
		return fmt.Errorf("generator.timeout must be positive")
	}
	if c.Generator.RequestsPerMinute < 0 {
		return fmt.Errorf("generator.requests_per_minute must not be negative")
	}

	if err := c.Policy.Check(); err != nil {
		return err
	}
	return nil
}
