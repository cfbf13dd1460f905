// Package cache provides the short-lived prediction cache.
//
// Entries are keyed by (match id, detail flag) and carry their own TTL. An
// entry is readable while its age is at most its TTL; after that it is
// treated as absent and removed on the next lookup. Callers cannot tell an
// expired key from one that was never written, which keeps the
// fetch-or-populate policy in pkg/predictor simple.
//
// # Backends
//
// MemoryStore is the default. It is a mutex-guarded map owned by whoever
// constructs it and is safe to share between request goroutines.
//
// RedisStore shares the cache between proxy instances. Keys get a native
// Redis expiry equal to the entry TTL.
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewRedisStore(redisClient)
//
//	key := cache.Key{MatchID: "m1", Detail: false}
//	if err := store.Set(ctx, key, payload, 20*time.Second); err != nil {
//		return err
//	}
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the prediction service
//	}
//
// # Metrics
//
//   - predictor_cache_hits_total{backend} - Cache hits
//   - predictor_cache_misses_total{backend} - Cache misses
//   - predictor_cache_expired_total{backend} - Entries purged after TTL
//   - predictor_cache_errors_total{backend,operation} - Backend errors
package cache
