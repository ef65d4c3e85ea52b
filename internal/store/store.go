package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/factstrip/internal/model"
)

// ErrNotFound is returned by Get when the key holds no record
var ErrNotFound = errors.New("store: record not found")

// Store holds opaque records under string keys
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open creates the store selected by cfg.Driver
func Open(cfg model.StorageConfig) (Store, error) {
	driver := strings.ToLower(cfg.Driver)

	switch driver {
	case "", "file":
		dir := cfg.Path
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		return NewDisk(dir), nil

	case "sqlite":
		path := cfg.Path
		if path == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(d, "factstrip.db")
		}
		return OpenSQLite(path)

	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("storage.redis_url is required for the redis driver")
		}
		return OpenRedis(cfg.RedisURL)

	case "memory":
		return NewMemory(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: file, sqlite, redis, memory)", cfg.Driver)
	}
}

// DefaultDir is ~/.factstrip
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".factstrip"), nil
}
