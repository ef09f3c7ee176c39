package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned when the id is unknown or expired
var ErrSessionNotFound = errors.New("session not found")

// Store persists session state by id
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, id string, state *State, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// StoreConfig selects and configures a Store implementation
type StoreConfig struct {
	Type      string
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// NewStore creates the configured store
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Type)
	}
}
