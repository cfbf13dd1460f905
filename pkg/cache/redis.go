package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

// RedisStore is a Store backed by Redis. Redis expires keys natively; the
// entry's own CreatedAt/TTL is still checked on read so a key that outlives
// its TTL (clock skew, manual writes) is never served.
type RedisStore struct {
	redis *redis.Client
}

// redisEntry is the Redis wire form of an Entry. Value is a []byte so it is
// stored base64-encoded and read back byte-for-byte; a json.RawMessage field
// would be re-encoded (compacted, HTML-escaped) on marshal.
type redisEntry struct {
	Key       string        `json:"key"`
	Value     []byte        `json:"value"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

func encodeEntry(e Entry) ([]byte, error) {
	return json.Marshal(redisEntry{
		Key:       e.Key,
		Value:     e.Value,
		CreatedAt: e.CreatedAt,
		TTL:       e.TTL,
	})
}

func decodeEntry(data []byte) (*Entry, error) {
	var re redisEntry
	if err := json.Unmarshal(data, &re); err != nil {
		return nil, err
	}
	if !json.Valid(re.Value) {
		return nil, errors.New("value is not valid JSON")
	}
	return &Entry{
		Key:       re.Key,
		Value:     json.RawMessage(re.Value),
		CreatedAt: re.CreatedAt,
		TTL:       re.TTL,
	}, nil
}

// NewRedisStore creates a new cache store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	cacheKey := key.String()

	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(backendRedis).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = s.Delete(ctx, key)
		CacheExpired.WithLabelValues(backendRedis).Inc()
		CacheMisses.WithLabelValues(backendRedis).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(backendRedis).Inc()
	return entry, nil
}

// Set stores value under key with the given TTL as the Redis expiry.
func (s *RedisStore) Set(ctx context.Context, key Key, value json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	cacheKey := key.String()
	entry := Entry{
		Key:       cacheKey,
		Value:     value,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}

	data, err := encodeEntry(entry)
	if err != nil {
		CacheErrors.WithLabelValues(backendRedis, "set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cache entry.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
