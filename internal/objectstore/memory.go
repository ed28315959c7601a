package objectstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store.
// This is intended for testing. Production should use GCS.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// FailDeletes makes DeletePrefix return an error. Tests use it to
	// exercise the executor's partial-failure policy.
	FailDeletes bool
}

// NewInMemoryStore creates a new in-memory object store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string][]byte)}
}

// Put seeds an object. Test helper.
func (s *InMemoryStore) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

// Get returns a stored object. Test helper.
func (s *InMemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// DeletePrefix deletes every object under the prefix.
func (s *InMemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDeletes {
		return 0, fmt.Errorf("object storage unavailable")
	}

	deleted := 0
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
			deleted++
		}
	}
	return deleted, nil
}

// CountPrefix counts the objects remaining under the prefix.
func (s *InMemoryStore) CountPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			count++
		}
	}
	return count, nil
}

// Write stores data at the given key.
func (s *InMemoryStore) Write(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cpy := make([]byte, len(data))
	copy(cpy, data)
	s.objects[key] = cpy
	return nil
}

// SignedURL returns a deterministic fake URL.
func (s *InMemoryStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.local/" + key + "?signed=1", nil
}

// Ensure InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)
