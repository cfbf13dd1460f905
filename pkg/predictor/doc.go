// Package predictor serves match predictions from a TTL cache in front of the
// upstream prediction service.
//
// Example usage:
//
//	svc, err := predictor.NewService(store, upstreamClient, predictor.DefaultConfig())
//	payload, err := svc.Fetch(ctx, predictor.MatchQuery{MatchID: "12345"}, false)
//	all := svc.Aggregate(ctx, []string{"12345", "67890"})
//
// Fetch:
//   - Serves a fresh cache entry without touching the upstream
//   - Collapses concurrent misses for the same key into one upstream call
//   - Caches successful payloads for CacheTTL; failures are never cached
//   - Caches detail payloads only when fetched with the privileged header
//
// Aggregate:
//   - Fans out one public fetch per match over a worker pool
//   - Drops failed matches and keeps input order for the rest
//   - Returns the fallback set when every match fails
//
// Metrics:
//   - predictor_aggregate_dropped_total
//   - predictor_fallback_served_total
package predictor
