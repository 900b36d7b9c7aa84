package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache stores snapshot blobs in Redis, for deployments that run more
// than one scanner process against the same symbol set and want cache
// reuse across processes rather than per-process files.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache returns a RedisCache using client, namespacing all keys
// under prefix (e.g. "breakoutscan:") and expiring entries after ttl. A
// zero ttl means entries never expire.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: prefix}
}

func (r *RedisCache) fullKey(key string) string {
	return r.prefix + key
}

// Save stores blob under key with the cache's configured TTL.
func (r *RedisCache) Save(ctx context.Context, key string, blob []byte) error {
	if err := r.client.Set(ctx, r.fullKey(key), blob, r.ttl).Err(); err != nil {
		return fmt.Errorf("persistence: redis save %q: %w", key, err)
	}
	return nil
}

// Load retrieves key's blob, returning (nil, false, nil) if it has expired
// or was never written.
func (r *RedisCache) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("persistence: redis load %q: %w", key, err)
	}
	return data, true, nil
}

// Clear deletes key's entry. Deleting an absent key is not an error.
func (r *RedisCache) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("persistence: redis clear %q: %w", key, err)
	}
	return nil
}
