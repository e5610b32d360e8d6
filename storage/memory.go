// Package storage provides implementations of the key/value persistence
// collaborator used to store the session keypair and granter address.
package storage

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory StorageStrategy. It is safe for concurrent
// use and intended for tests, CLIs, and short-lived processes.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

// GetItem returns the stored value, or "" when the key is absent.
func (s *MemoryStorage) GetItem(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[key], nil
}

// SetItem stores the value under key.
func (s *MemoryStorage) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

// RemoveItem deletes the key. Removing an absent key is not an error.
func (s *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
