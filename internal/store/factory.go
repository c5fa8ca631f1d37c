package store

import (
	"context"
	"fmt"

	"github.com/darmiel/linkgate/internal/core"
)

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Config selects and configures the token store backend.
type Config struct {
	Type     string      `yaml:"type"`
	Capacity int         `yaml:"capacity"`
	Redis    RedisConfig `yaml:"redis"`
}

// Store is a TokenStore that holds resources.
type Store interface {
	core.TokenStore
	Close() error
}

// New builds the store backend selected by cfg.Type (memory by default).
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return NewInMemoryTokenStore(cfg.Capacity), nil
	case TypeRedis:
		s, err := NewRedisTokenStore(ctx, cfg.Redis, cfg.Capacity)
		if err != nil {
			return nil, fmt.Errorf("creating redis token store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
