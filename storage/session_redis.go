package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStorage is a fiber.Storage backed by Redis. Expiry is left to
// Redis key TTLs.
type RedisSessionStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStorage creates a session storage using client; keys are
// stored as prefix+sid
func NewRedisSessionStorage(client *redis.Client, prefix string) *RedisSessionStorage {
	return &RedisSessionStorage{client: client, prefix: prefix}
}

// Get returns the session data, or nil when missing
func (s *RedisSessionStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := sessionContext()
	defer cancel()

	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set stores session data with exp as TTL; exp 0 keeps it forever
func (s *RedisSessionStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := sessionContext()
	defer cancel()
	return s.client.Set(ctx, s.prefix+key, val, exp).Err()
}

// Delete removes a session
func (s *RedisSessionStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := sessionContext()
	defer cancel()
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Reset removes every key under the prefix
func (s *RedisSessionStorage) Reset() error {
	ctx, cancel := sessionContext()
	defer cancel()

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Close closes the Redis client
func (s *RedisSessionStorage) Close() error {
	return s.client.Close()
}

// GC is a no-op; Redis expires keys itself
func (s *RedisSessionStorage) GC(ctx context.Context) (int64, error) {
	return 0, nil
}
