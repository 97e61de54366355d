// Package memory is an in-process BlobStore for tests and single-process runs.
package memory

import (
	"context"
	"sync"

	"spendings/internal/storage"
)

type Store struct {
	mu    sync.Mutex
	items map[string][]byte
	quota int64
}

// New returns an empty store. A positive quota bounds the total size of all
// stored values.
func New(quota int64) *Store {
	return &Store{items: make(map[string][]byte), quota: quota}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota > 0 {
		var used int64
		for k, v := range s.items {
			if k != key {
				used += int64(len(v))
			}
		}
		if used+int64(len(value)) > s.quota {
			return storage.ErrQuotaExceeded
		}
	}
	s.items[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.items, key)
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
