package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Screener    ScreenerConfig  `toml:"screener"`
	Entities    EntitiesConfig  `toml:"entities"`
	Narrative   NarrativeConfig `toml:"narrative"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host"`

	// QueryTimeout bounds one /api/query turn. The HTTP write timeout is
	// derived from it so the response is always written.
	QueryTimeout time.Duration `toml:"query_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`                                       // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                  // default "15:04:05"
}

// ScreenerConfig controls the page fetch client
type ScreenerConfig struct {
	BaseURL     string        `toml:"base_url" validate:"required,url"`
	UserAgent   string        `toml:"user_agent" validate:"required"`
	Timeout     time.Duration `toml:"timeout" validate:"gt=0"`     // per-request timeout (default 15s)
	RateLimit   time.Duration `toml:"rate_limit" validate:"gte=0"` // minimum spacing between page fetches, 0 disables
	MaxBodySize int64         `toml:"max_body_size" validate:"gt=0"`
	Currency    string        `toml:"currency" validate:"required"` // prefix applied to the current price
}

// EntitiesConfig points at the static entity table. An empty path uses the
// embedded Nifty 50 table.
type EntitiesConfig struct {
	TablePath string `toml:"table_path"` // .xlsx, .csv, .yaml or .yml
	SheetName string `toml:"sheet_name"` // xlsx only; first sheet when empty
}

// NarrativeConfig controls the narrative generator and its retry policy
type NarrativeConfig struct {
	Provider        string        `toml:"provider" validate:"oneof=gemini claude"`
	MaxAttempts     int           `toml:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff  time.Duration `toml:"initial_backoff" validate:"gt=0"`
	RateLimit       time.Duration `toml:"rate_limit" validate:"gte=0"` // minimum spacing between generation calls, 0 disables
	Temperature     float32       `toml:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int           `toml:"max_output_tokens" validate:"gt=0"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey  string        `toml:"api_key"`
	Model   string        `toml:"model" validate:"required"`
	Timeout time.Duration `toml:"timeout" validate:"gt=0"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey  string        `toml:"api_key"`
	Model   string        `toml:"model" validate:"required"`
	Timeout time.Duration `toml:"timeout" validate:"gt=0"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:         8085,
			Host:         "localhost",
			QueryTimeout: 90 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Screener: ScreenerConfig{
			BaseURL:     "https://www.screener.in",
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:     15 * time.Second,
			RateLimit:   500 * time.Millisecond,
			MaxBodySize: 5 * 1024 * 1024, // 5MB
			Currency:    "₹",
		},
		Narrative: NarrativeConfig{
			Provider:        "gemini",
			MaxAttempts:     3,
			InitialBackoff:  2 * time.Second,
			RateLimit:       4 * time.Second, // 15 RPM free tier
			Temperature:     0.7,
			MaxOutputTokens: 800,
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.0-flash-lite",
			Timeout: 60 * time.Second,
		},
		Claude: ClaudeConfig{
			Model:   "claude-3-5-haiku-latest",
			Timeout: 60 * time.Second,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files. CLI flags are applied by the caller.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env never overrides variables already present in the process environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINSIGHT_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("FINSIGHT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FINSIGHT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("FINSIGHT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FINSIGHT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Screener configuration
	if baseURL := os.Getenv("FINSIGHT_SCREENER_BASE_URL"); baseURL != "" {
		config.Screener.BaseURL = baseURL
	}
	if timeout := os.Getenv("FINSIGHT_SCREENER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Screener.Timeout = d
		}
	}

	// Entity table
	if tablePath := os.Getenv("FINSIGHT_ENTITIES_TABLE"); tablePath != "" {
		config.Entities.TablePath = tablePath
	}

	// Narrative configuration
	if provider := os.Getenv("FINSIGHT_NARRATIVE_PROVIDER"); provider != "" {
		config.Narrative.Provider = strings.ToLower(provider)
	}

	// API keys: FINSIGHT_* first, then the provider's conventional variable
	if key := firstEnv("FINSIGHT_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if model := os.Getenv("FINSIGHT_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if key := firstEnv("FINSIGHT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if model := os.Getenv("FINSIGHT_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the configuration using struct tags
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ProviderAPIKey returns the API key for the configured narrative provider
func (c *Config) ProviderAPIKey() (string, error) {
	switch c.Narrative.Provider {
	case "claude":
		if c.Claude.APIKey == "" {
			return "", fmt.Errorf("Claude API key is required (set FINSIGHT_CLAUDE_API_KEY, ANTHROPIC_API_KEY, or claude.api_key in config)")
		}
		return c.Claude.APIKey, nil
	default:
		if c.Gemini.APIKey == "" {
			return "", fmt.Errorf("Gemini API key is required (set FINSIGHT_GEMINI_API_KEY, GEMINI_API_KEY, or gemini.api_key in config)")
		}
		return c.Gemini.APIKey, nil
	}
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
