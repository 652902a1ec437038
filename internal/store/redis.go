package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store directly on Redis. Blobs never expire.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, blobKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := s.rdb.Set(ctx, blobKey(key), blob, 0).Err(); err != nil {
		return fmt.Errorf("save blob %s: %w", key, err)
	}
	return nil
}

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and then refresh the cache; reads
// check Redis first then fall back to the primary. Cache failures are
// logged and never fail the operation.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("blob cache read failed", "key", key, "error", err)
	}

	// Cache miss: read from primary.
	data, err = s.primary.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, key, data)
	return data, nil
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := s.primary.Save(ctx, key, blob); err != nil {
		// A cached blob must never be newer than the primary's.
		s.rdb.Del(ctx, cacheKey(key))
		return err
	}
	s.cache(ctx, key, blob)
	return nil
}

func (s *CachedStore) cache(ctx context.Context, key string, blob []byte) {
	if err := s.rdb.Set(ctx, cacheKey(key), blob, s.ttl).Err(); err != nil {
		slog.Warn("blob cache write failed", "key", key, "error", err)
	}
}

func blobKey(key string) string  { return fmt.Sprintf("amm:blob:%s", key) }
func cacheKey(key string) string { return fmt.Sprintf("amm:cache:%s", key) }
