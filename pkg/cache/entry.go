package cache

import (
	"encoding/json"
	"time"
)

// Entry represents a cached prediction payload.
type Entry struct {
	// Key is the rendered cache key this entry was stored under
	Key string `json:"key"`

	// Value is the upstream payload, opaque to the cache
	Value json.RawMessage `json:"value"`

	// CreatedAt is when the entry was written
	CreatedAt time.Time `json:"created_at"`

	// TTL is how long the entry stays readable after CreatedAt
	TTL time.Duration `json:"ttl"`
}

// ExpiresAt returns the instant after which the entry is no longer readable.
func (e *Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// IsExpiredAt reports whether the entry has outlived its TTL at now.
// An entry is still readable when its age equals the TTL exactly.
func (e *Entry) IsExpiredAt(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

// Remaining returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) Remaining(now time.Time) time.Duration {
	left := e.ExpiresAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
