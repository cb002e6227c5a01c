package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when no blob exists for the key.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a key-value store of opaque blobs.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type MemoryStore struct {
	blobs map[string][]byte
	mu    sync.RWMutex
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, exists := s.blobs[key]
	if !exists {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		result = append(result, k)
	}
	return result
}
