/*
Package configs loads the server's configuration from environment variables.

An optional .env file in the working directory is loaded first; variables already present
in the environment take precedence over it.
*/
package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig contains all configuration parameters required for the server to run.
type AppConfig struct {
	// General Server Settings
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`

	// Security Settings
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// WebSocket Transport Settings. PongWait must exceed the timer throttling browsers
	// apply to background tabs.
	PongWait        time.Duration `env:"WS_PONG_WAIT" envDefault:"90s"`
	WriteWait       time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	MaxMessageBytes int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"16384"`

	// Estimate Set Settings
	DefaultCardPreset string `env:"DEFAULT_CARD_PRESET" envDefault:"tshirt"`
	CardPresetsFile   string `env:"CARD_PRESETS_FILE"`

	// Game Lifetime Settings. A zero GameIdleTTL keeps games for the process lifetime.
	GameIdleTTL       time.Duration `env:"GAME_IDLE_TTL" envDefault:"0s"`
	GameSweepInterval time.Duration `env:"GAME_SWEEP_INTERVAL" envDefault:"1m"`

	// Event Mirror Settings
	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"planpoker.games"`

	// Tracing Settings
	OTELEndpoint string `env:"OTEL_ENDPOINT"`
	OTELEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads .env (if present) and the process environment, applies defaults and
// validates the result.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.AllowedOrigins = trimList(cfg.AllowedOrigins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", c.Port, 1024, 65535)
	}

	if c.PongWait < 10*time.Second {
		return fmt.Errorf("WS_PONG_WAIT must be at least 10s, got %s", c.PongWait)
	}

	if c.WriteWait <= 0 {
		return fmt.Errorf("WS_WRITE_WAIT must be positive, got %s", c.WriteWait)
	}

	if c.MaxMessageBytes < 1024 {
		return fmt.Errorf("WS_MAX_MESSAGE_BYTES must be at least 1024, got %d", c.MaxMessageBytes)
	}

	if strings.TrimSpace(c.DefaultCardPreset) == "" {
		return fmt.Errorf("DEFAULT_CARD_PRESET must not be empty")
	}

	if c.GameIdleTTL < 0 {
		return fmt.Errorf("GAME_IDLE_TTL must not be negative, got %s", c.GameIdleTTL)
	}

	if c.GameIdleTTL > 0 && c.GameSweepInterval <= 0 {
		return fmt.Errorf("GAME_SWEEP_INTERVAL must be positive when GAME_IDLE_TTL is set, got %s", c.GameSweepInterval)
	}

	if !c.IsDevelopment() && len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS is required in %s environment", c.Environment)
	}

	return nil
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
