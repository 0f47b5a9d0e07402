package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const noncePrefix = "nonce:v1:"

// NonceStore remembers claimed nonces until they expire.
type NonceStore interface {
	// Claim records key and reports whether it was unclaimed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisNonceStore shares claimed nonces between instances.
type RedisNonceStore struct {
	cache *redis.Client
}

func NewRedisNonceStore(cache *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{cache: cache}
}

func (s *RedisNonceStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.cache.SetNX(ctx, noncePrefix+key, 1, ttl).Result()
}

// MemoryNonceStore is a single-process NonceStore for development and tests.
type MemoryNonceStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{expires: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryNonceStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	// drop expired keys so the map does not grow without bound
	for k, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, k)
		}
	}
	s.expires[key] = now.Add(ttl)
	return true, nil
}
