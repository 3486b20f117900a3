package kvstore

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// memoryStore keeps keys in process. It is meant for local development and
// single-instance deployments; codes do not survive a restart.
type memoryStore struct {
	mu sync.Mutex
	c  *cache.Cache
}

func NewMemoryStore(cleanupInterval time.Duration) Store {
	return &memoryStore{c: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *memoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s.c.Set(key, value, ttl)
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *memoryStore) DeleteIfEqual(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.c.Get(key)
	if !ok {
		return false, ErrNotFound
	}
	if subtle.ConstantTimeCompare([]byte(v.(string)), []byte(value)) != 1 {
		return false, nil
	}
	s.c.Delete(key)
	return true, nil
}

func (s *memoryStore) Ping(context.Context) error {
	return nil
}
