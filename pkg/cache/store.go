package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache or has expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a TTL-bounded key/value table for prediction payloads.
//
// Get returns ErrCacheMiss both for keys that were never written and for
// keys whose entry has expired. Set replaces any existing entry for the key.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Set(ctx context.Context, key Key, value json.RawMessage, ttl time.Duration) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks store health. Stores that do not implement Pinger are always
// considered healthy.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
