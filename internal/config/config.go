// Package config loads orchestrator configuration from defaults, an optional
// YAML file, an optional .env file and MODE_* environment variables, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/mode_orchestrator/internal/modestate"
	"github.com/R3E-Network/mode_orchestrator/internal/storage"
	"github.com/R3E-Network/mode_orchestrator/internal/transition"
	"github.com/R3E-Network/mode_orchestrator/orchestrator"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

// Config is the top-level configuration.
type Config struct {
	Logging    logger.LoggingConfig `yaml:"logging"`
	Storage    storage.Config       `yaml:"storage"`
	Transition TransitionConfig     `yaml:"transition"`
	HTTP       HTTPConfig           `yaml:"http"`
}

// TransitionConfig tunes the transition engine.
type TransitionConfig struct {
	GraceDelay         time.Duration `yaml:"grace_delay" env:"MODE_GRACE_DELAY"`
	DefaultAnimation   time.Duration `yaml:"default_animation" env:"MODE_DEFAULT_ANIMATION"`
	CleanupConcurrency int           `yaml:"cleanup_concurrency" env:"MODE_CLEANUP_CONCURRENCY"`
	JournalSize        int           `yaml:"journal_size" env:"MODE_JOURNAL_SIZE"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr           string  `yaml:"addr" env:"MODE_HTTP_ADDR"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"MODE_RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"MODE_RATE_LIMIT_BURST"`
	JWTSecret      string  `yaml:"jwt_secret" env:"MODE_JWT_SECRET"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Storage: storage.Config{
			Driver: storage.DriverMemory,
			Key:    modestate.DefaultKey,
			Redis:  storage.RedisConfig{Prefix: "mode:"},
		},
		Transition: TransitionConfig{
			GraceDelay:       transition.DefaultGraceDelay,
			DefaultAnimation: transition.DefaultAnimation,
			JournalSize:      256,
		},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
	}
}

// Load builds the configuration. yamlPath and envFile are optional; a path
// that is set must exist.
func Load(yamlPath, envFile string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env (%s): %w", envFile, err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "", storage.DriverMemory:
	case storage.DriverFile:
		if c.Storage.FilePath == "" {
			return errors.New("storage.file_path is required for the file driver")
		}
	case storage.DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required for the redis driver")
		}
	case storage.DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Transition.GraceDelay < 0 {
		return errors.New("transition.grace_delay must not be negative")
	}
	if c.Transition.CleanupConcurrency < 0 {
		return errors.New("transition.cleanup_concurrency must not be negative")
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return errors.New("http rate limits must not be negative")
	}
	return nil
}

// Orchestrator converts the configuration for orchestrator.New.
func (c *Config) Orchestrator() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	if c.Storage.Key != "" {
		cfg.StorageKey = c.Storage.Key
	}
	cfg.Transition = transition.Config{
		GraceDelay:       c.Transition.GraceDelay,
		DefaultAnimation: c.Transition.DefaultAnimation,
	}
	// A configured zero animation means no wait.
	if c.Transition.DefaultAnimation == 0 {
		cfg.Transition.DefaultAnimation = -1
	}
	cfg.CleanupConcurrency = c.Transition.CleanupConcurrency
	if c.Transition.JournalSize > 0 {
		cfg.JournalSize = c.Transition.JournalSize
	}
	return cfg
}
