package cache

import (
	"context"
	"fmt"
)

// Cache stores serialized values. Entries are written once per key and
// never invalidated, since everything cached is immutable.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Memory is a process-local Cache.
type Memory struct {
	lru *LRU[[]byte]
}

// NewMemory creates a process-local Cache holding up to size entries.
func NewMemory(size int) *Memory {
	return &Memory{lru: NewLRU[[]byte](size)}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Put(key, append([]byte(nil), value...))
	return nil
}

// Options selects and configures a Cache backend.
type Options struct {
	Backend  string // "memory" or "redis"
	Size     int
	RedisURL string
	Prefix   string
}

// New builds the Cache named by opts.Backend.
func New(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemory(opts.Size), nil
	case "redis":
		return NewRedis(ctx, opts.RedisURL, opts.Prefix)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
