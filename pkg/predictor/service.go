package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Siyabonga8/winmastersai/pkg/cache"
	"github.com/Siyabonga8/winmastersai/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL keeps odds close to live while absorbing request bursts.
const DefaultCacheTTL = 20 * time.Second

// MatchQuery identifies one prediction request.
type MatchQuery struct {
	MatchID string
	Detail  bool
}

// Key returns the cache key for the query.
func (q MatchQuery) Key() cache.Key {
	return cache.Key{MatchID: q.MatchID, Detail: q.Detail}
}

// Fetcher fetches one prediction from the upstream service.
// *upstream.Client implements it.
type Fetcher interface {
	FetchMatch(ctx context.Context, matchID string, detail, attachPrivileged bool) (json.RawMessage, error)
}

// Config holds the service configuration.
type Config struct {
	// CacheTTL is how long a successful payload is served from cache
	CacheTTL time.Duration

	// MaxConcurrency caps the aggregate worker pool; <= 0 runs one worker per match
	MaxConcurrency int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:       DefaultCacheTTL,
		MaxConcurrency: 0,
	}
}

// Service serves predictions from cache, falling back to the upstream on a
// miss and caching what it gets back.
type Service struct {
	store    cache.Store
	upstream Fetcher
	config   Config
	flights  singleflight.Group
	logger   zerolog.Logger
}

// NewService creates a prediction service.
func NewService(store cache.Store, upstream Fetcher, cfg Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if upstream == nil {
		return nil, fmt.Errorf("upstream fetcher is required")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be > 0 (got %s)", cfg.CacheTTL)
	}

	return &Service{
		store:    store,
		upstream: upstream,
		config:   cfg,
		logger:   logging.NewLogger("predictor"),
	}, nil
}

// Fetch returns the payload for q. Cache errors are logged and treated as a
// miss; upstream errors are returned as-is and match
// upstream.ErrUpstreamFailure.
//
// Detail payloads are only cached when fetched with the privileged header,
// so an unprivileged detail fetch can never be served to a subscriber.
func (s *Service) Fetch(ctx context.Context, q MatchQuery, attachPrivileged bool) (json.RawMessage, error) {
	key := q.Key()
	cacheable := !q.Detail || attachPrivileged

	if cacheable {
		entry, err := s.store.Get(ctx, key)
		if err == nil {
			s.logger.Debug().Str("cache_key", key.String()).Msg("Cache hit")
			return entry.Value, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Cache get error")
		}
	}

	flightKey := fmt.Sprintf("%s:privileged=%t", key, attachPrivileged)
	v, err, shared := s.flights.Do(flightKey, func() (any, error) {
		// Shared by every caller waiting on this key, so one caller going
		// away must not cancel it. The upstream client bounds it instead.
		fctx := context.WithoutCancel(ctx)

		payload, err := s.upstream.FetchMatch(fctx, q.MatchID, q.Detail, attachPrivileged)
		if err != nil {
			return nil, err
		}

		if cacheable {
			if err := s.store.Set(fctx, key, payload, s.config.CacheTTL); err != nil {
				s.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Failed to cache prediction")
			} else {
				s.logger.Debug().
					Str("cache_key", key.String()).
					Dur("ttl", s.config.CacheTTL).
					Msg("Cached prediction")
			}
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		s.logger.Debug().Str("cache_key", key.String()).Msg("Joined in-flight fetch")
	}
	return v.(json.RawMessage), nil
}

// Ready reports whether the cache backend is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return cache.Ping(ctx, s.store)
}
