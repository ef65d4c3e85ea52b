package store

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// Memory keeps records in process memory. Nothing survives a restart.
type Memory struct {
	cache *gocache.Cache
}

// NewMemory creates an empty memory store
func NewMemory() *Memory {
	return &Memory{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get retrieves a record
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if val, found := m.cache.Get(key); found {
		b := val.([]byte)
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	}
	return nil, ErrNotFound
}

// Set stores a copy of value
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	b := make([]byte, len(value))
	copy(b, value)
	m.cache.Set(key, b, gocache.NoExpiration)
	return nil
}

// Delete removes a record
func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Close drops every record
func (m *Memory) Close() error {
	m.cache.Flush()
	return nil
}
