package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const backendMemory = "memory"

// MemoryStore is an in-process Store. Expired entries are purged lazily on
// lookup; there is no background sweep and no capacity bound, so it is only
// suitable for a bounded keyspace such as a fixed match set.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the wall clock used for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired;
// an expired entry is removed before returning.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	k := key.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[k]
	if !ok {
		CacheMisses.WithLabelValues(backendMemory).Inc()
		return nil, ErrCacheMiss
	}

	if entry.IsExpiredAt(s.now()) {
		delete(s.entries, k)
		CacheExpired.WithLabelValues(backendMemory).Inc()
		CacheMisses.WithLabelValues(backendMemory).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(backendMemory).Inc()

	// Hand out a copy so callers can't mutate the stored record.
	out := *entry
	out.Value = append(json.RawMessage(nil), entry.Value...)
	return &out, nil
}

// Set stores value under key, replacing any previous entry.
// A non-positive TTL stores nothing.
func (s *MemoryStore) Set(_ context.Context, key Key, value json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	k := key.String()
	entry := &Entry{
		Key:       k,
		Value:     append(json.RawMessage(nil), value...),
		CreatedAt: s.now(),
		TTL:       ttl,
	}

	s.mu.Lock()
	s.entries[k] = entry
	s.mu.Unlock()

	return nil
}

// Delete removes a cache entry.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.entries, key.String())
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
