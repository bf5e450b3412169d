package blob

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/config"
)

var errCacheMiss = errors.New("blob cache miss")

// cache is the key/value layer a CachedStore reads through.
type cache interface {
	// Get returns errCacheMiss when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type redisCache struct {
	rdb *redis.Client
}

func (c redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	return data, err
}

func (c redisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// CachedStore fronts another Store with a Redis read-through cache.
// Blobs are immutable so cached entries never need invalidation.
type CachedStore struct {
	next  Store
	cache cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedStore wraps next with a Redis cache whose entries live for ttl.
func NewCachedStore(next Store, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedStore {
	return newCachedStore(next, redisCache{rdb: rdb}, ttl, log)
}

func newCachedStore(next Store, c cache, ttl time.Duration, log zerolog.Logger) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: c,
		ttl:   ttl,
		log:   log.With().Str("component", "blob_cache").Logger(),
	}
}

// Put writes through to the backing store and primes the cache.
func (s *CachedStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.next.Put(ctx, key, data); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, config.CacheKey.BlobKey(key), data, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to prime blob cache")
	}
	return nil
}

// Get serves from the cache when possible. Cache failures degrade to the backing store.
func (s *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	cacheKey := config.CacheKey.BlobKey(key)

	data, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, errCacheMiss) {
		s.log.Warn().Err(err).Str("key", key).Msg("Blob cache read failed")
	}

	data, err = s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cacheKey, data, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to fill blob cache")
	}
	return data, nil
}
