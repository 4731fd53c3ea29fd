package storage

import (
	"context"
	"sync"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/odds-watch/internal/models"
)

// MemoryStore keeps lists in process memory. It backs debug mode, where
// nothing is shared with other workers.
type MemoryStore struct {
	cache *cache.Cache
	mu    sync.Mutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, 0)}
}

// Append pushes value and drops the oldest items beyond maxLen
func (s *MemoryStore) Append(ctx context.Context, key string, value []byte, maxLen int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list [][]byte
	if existing, found := s.cache.Get(key); found {
		list = existing.([][]byte)
	}

	item := make([]byte, len(value))
	copy(item, value)
	list = append(list, item)

	if maxLen > 0 && int64(len(list)) > maxLen {
		list = append([][]byte(nil), list[int64(len(list))-maxLen:]...)
	}
	s.cache.Set(key, list, cache.NoExpiration)
	return nil
}

// Last returns the most recent item under key
func (s *MemoryStore) Last(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.cache.Get(key)
	if !found {
		return nil, models.ErrNotFound
	}
	list := existing.([][]byte)
	if len(list) == 0 {
		return nil, models.ErrNotFound
	}
	return list[len(list)-1], nil
}

// Len returns the number of items under key
func (s *MemoryStore) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, found := s.cache.Get(key); found {
		return len(existing.([][]byte))
	}
	return 0
}

// Delete removes keys
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		s.cache.Delete(key)
	}
	return nil
}

// Flush removes every key
func (s *MemoryStore) Flush(ctx context.Context) error {
	s.cache.Flush()
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
