// Package storage defines the key-value persistence capability used to keep
// the selected application mode across restarts, plus its backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Storage is a minimal durable key-value store.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Closer is implemented by backends holding connections or file handles.
type Closer interface {
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Driver   string         `yaml:"driver" env:"MODE_STORAGE_DRIVER"`
	Key      string         `yaml:"key" env:"MODE_STORAGE_KEY"`
	FilePath string         `yaml:"file_path" env:"MODE_STORAGE_FILE"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"MODE_REDIS_ADDR"`
	Password string `yaml:"password" env:"MODE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"MODE_REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"MODE_REDIS_PREFIX"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"MODE_POSTGRES_DSN"`
}

// Opener builds a backend for a driver. Postgres lives in a subpackage, so
// callers register it through Open's openers argument to keep this package
// free of database drivers.
type Opener func(ctx context.Context, cfg Config) (Storage, error)

// Open returns the backend named by cfg.Driver. An empty driver selects the
// in-memory store.
func Open(ctx context.Context, cfg Config, openers map[string]Opener) (Storage, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if opener, ok := openers[driver]; ok {
		return opener(ctx, cfg)
	}

	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverFile:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("storage: file driver requires file_path")
		}
		return NewFile(cfg.FilePath)
	case DriverRedis:
		return NewRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}
