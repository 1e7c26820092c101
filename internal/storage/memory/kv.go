// Package memory provides an in-process key/value backend for the local store.
package memory

import (
	"context"
	"maps"
	"sync"
)

// KV is a mutex-guarded map.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

// New returns an empty KV.
func New() *KV {
	return &KV{data: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *KV) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *KV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *KV) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Clear deletes every entry.
func (s *KV) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
	return nil
}

// Update runs fn on the value of key under the write lock.
func (s *KV) Update(_ context.Context, key string, fn func(value string, ok bool) (string, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	next, write, err := fn(v, ok)
	if err != nil || !write {
		return err
	}
	s.data[key] = next
	return nil
}

// Snapshot returns a copy of the stored entries.
func (s *KV) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}
