// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Transcript store backends.
const (
	BackendNone     = "none"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"3001"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	ParamPrefix   string        `env:"PARAM_PREFIX"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	OpenAITimeout time.Duration `env:"OPENAI_TIMEOUT" envDefault:"10s"`

	SystemPrompt     string `env:"SYSTEM_PROMPT"`
	MaxMessageLength int    `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	MaxContextItems  int    `env:"MAX_CONTEXT_ITEMS" envDefault:"20"`

	StateBackend string `env:"STATE_BACKEND" envDefault:"none"`
	StateTable   string `env:"STATE_TABLE"`
	RedisURL     string `env:"REDIS_URL"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.StateBackend = strings.ToLower(strings.TrimSpace(cfg.StateBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	if strings.TrimSpace(c.OpenAIAPIKey) == "" && strings.TrimSpace(c.ParamPrefix) == "" {
		return errors.New("config: one of OPENAI_API_KEY or PARAM_PREFIX is required")
	}
	switch c.StateBackend {
	case "", BackendNone:
	case BackendDynamoDB:
		if strings.TrimSpace(c.StateTable) == "" {
			return errors.New("config: STATE_TABLE is required for the dynamodb backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return errors.New("config: REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown STATE_BACKEND %q", c.StateBackend)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
