package predictor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aggregateDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictor_aggregate_dropped_total",
		Help: "Total number of matches dropped from aggregate responses after upstream failure",
	})

	fallbackServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictor_fallback_served_total",
		Help: "Total number of aggregate responses answered with the fallback set",
	})
)

// matchResult is the outcome of fetching one match of an aggregate.
type matchResult struct {
	index   int
	payload json.RawMessage
	err     error
}

// Aggregate fetches the public view of every match concurrently and returns
// the successful payloads in input order. Failed matches are dropped; when
// nothing succeeds the fallback set is returned instead, so the result is
// never empty and Aggregate never fails.
func (s *Service) Aggregate(ctx context.Context, matchIDs []string) []json.RawMessage {
	start := time.Now()

	if len(matchIDs) == 0 {
		s.logger.Warn().Msg("No match ids configured - serving fallback predictions")
		fallbackServedTotal.Inc()
		return FallbackPredictions()
	}

	workers := s.config.MaxConcurrency
	if workers <= 0 || workers > len(matchIDs) {
		workers = len(matchIDs)
	}

	queue := make(chan int, len(matchIDs))
	for i := range matchIDs {
		queue <- i
	}
	close(queue)

	results := make(chan matchResult, len(matchIDs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go s.worker(ctx, matchIDs, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Indexed by input position so completion order doesn't leak into the response.
	byIndex := make([]json.RawMessage, len(matchIDs))
	failed := 0
	for r := range results {
		if r.err != nil {
			failed++
			s.logger.Warn().
				Err(r.err).
				Str("match_id", matchIDs[r.index]).
				Msg("Dropping match from aggregate")
			continue
		}
		byIndex[r.index] = r.payload
	}

	out := make([]json.RawMessage, 0, len(matchIDs)-failed)
	for _, p := range byIndex {
		if p != nil {
			out = append(out, p)
		}
	}
	aggregateDroppedTotal.Add(float64(failed))

	if len(out) == 0 {
		s.logger.Warn().
			Int("matches", len(matchIDs)).
			Dur("duration", time.Since(start)).
			Msg("All matches failed - serving fallback predictions")
		fallbackServedTotal.Inc()
		return FallbackPredictions()
	}

	s.logger.Debug().
		Int("matches", len(matchIDs)).
		Int("failed", failed).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("Aggregate complete")

	return out
}

// worker fetches matches from the queue until it is drained.
func (s *Service) worker(ctx context.Context, matchIDs []string, queue <-chan int, results chan<- matchResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for i := range queue {
		payload, err := s.Fetch(ctx, MatchQuery{MatchID: matchIDs[i]}, false)
		results <- matchResult{index: i, payload: payload, err: err}
	}
}
