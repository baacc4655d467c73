// Package prefs persists the per-client playground preferences: the selected
// mode and the page theme.
package prefs

import (
	"context"
	"errors"
	"sync"
)

// Preference keys
const (
	KeyMode  = "mode"
	KeyTheme = "theme"
)

// ErrNotFound is returned by a Store when nothing is saved under a key.
var ErrNotFound = errors.New("preference not found")

// Store is a per-client key/value store.
type Store interface {
	Get(ctx context.Context, client, key string) (string, error)
	Set(ctx context.Context, client, key, value string) error
}

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clients: make(map[string]map[string]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, client, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.clients[client][key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, client, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.clients[client]
	if !ok {
		values = make(map[string]string)
		s.clients[client] = values
	}
	values[key] = value
	return nil
}
