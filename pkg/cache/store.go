package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates the requested key was not found in the store.
var ErrCacheMiss = errors.New("cache miss")

// Store is the write surface of the shared key-value store. Set must
// be atomic, last-write-wins, with auto-expiry after ttl — the
// semantics the reverse proxy relies on for its own lookups.
type Store interface {
	Set(ctx context.Context, key string, body []byte, ttl time.Duration) error
}

// RedisStore is the Redis-backed shared store shared with the
// reverse proxy.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Set writes body at key with the given expiry, overwriting any
// existing value. A single atomic SET with TTL; concurrent writers
// resolve by last-write-wins.
func (s *RedisStore) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, key, body, ttl).Err(); err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	storeBytesWritten.Add(float64(len(body)))
	return nil
}

// Get retrieves the entry stored at key. This is the proxy's side of
// the contract; the write path never calls it, but it backs tests and
// administrative tooling. Returns ErrCacheMiss when the key is absent
// or expired.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	body, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return &Entry{Body: body, StatusCode: http.StatusOK}, nil
}

// Delete removes the entry at key, if any.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		storeErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
