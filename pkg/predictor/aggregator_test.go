package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Siyabonga8/winmastersai/internal/testutil"
	"github.com/Siyabonga8/winmastersai/pkg/cache"
	"github.com/Siyabonga8/winmastersai/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchIDs(rawItems []json.RawMessage) []string {
	ids := make([]string, 0, len(rawItems))
	for _, raw := range rawItems {
		var item struct {
			MatchID string `json:"matchId"`
		}
		if err := json.Unmarshal(raw, &item); err == nil {
			ids = append(ids, item.MatchID)
		}
	}
	return ids
}

func isFallback(rawItems []json.RawMessage) bool {
	for _, raw := range rawItems {
		var item struct {
			Fallback bool `json:"fallback"`
		}
		if err := json.Unmarshal(raw, &item); err != nil || !item.Fallback {
			return false
		}
	}
	return len(rawItems) > 0
}

func TestAggregate_AllSucceed(t *testing.T) {
	f := newStubFetcher()
	ids := []string{"1", "2", "3", "4", "5"}
	for _, id := range ids {
		f.payloads[id] = fmt.Sprintf(`{"matchId":%q}`, id)
	}
	svc := newTestService(t, cache.NewMemoryStore(), f)

	got := svc.Aggregate(context.Background(), ids)
	assert.Equal(t, ids, matchIDs(got))
}

func TestAggregate_KeepsInputOrder(t *testing.T) {
	f := newStubFetcher()
	ids := []string{"slow", "medium", "fast"}
	f.delays["slow"] = 60 * time.Millisecond
	f.delays["medium"] = 30 * time.Millisecond
	for _, id := range ids {
		f.payloads[id] = fmt.Sprintf(`{"matchId":%q}`, id)
	}
	svc := newTestService(t, cache.NewMemoryStore(), f)

	got := svc.Aggregate(context.Background(), ids)
	assert.Equal(t, ids, matchIDs(got))
}

func TestAggregate_DropsFailures(t *testing.T) {
	tests := []struct {
		name   string
		ids    []string
		failed []string
		want   []string
	}{
		{"first fails", []string{"1", "2", "3"}, []string{"1"}, []string{"2", "3"}},
		{"middle fails", []string{"1", "2", "3"}, []string{"2"}, []string{"1", "3"}},
		{"all but one fail", []string{"1", "2", "3"}, []string{"1", "3"}, []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStubFetcher()
			for _, id := range tt.ids {
				f.payloads[id] = fmt.Sprintf(`{"matchId":%q}`, id)
			}
			for _, id := range tt.failed {
				f.failures[id] = true
			}
			svc := newTestService(t, cache.NewMemoryStore(), f)

			got := svc.Aggregate(context.Background(), tt.ids)
			assert.Equal(t, tt.want, matchIDs(got))
			assert.False(t, isFallback(got))
		})
	}
}

func TestAggregate_AllFailServesFallback(t *testing.T) {
	f := newStubFetcher()
	ids := []string{"1", "2"}
	for _, id := range ids {
		f.failures[id] = true
	}
	svc := newTestService(t, cache.NewMemoryStore(), f)

	got := svc.Aggregate(context.Background(), ids)
	assert.Equal(t, FallbackPredictions(), got)
	assert.True(t, isFallback(got))
}

func TestAggregate_NoMatchesServesFallback(t *testing.T) {
	f := newStubFetcher()
	svc := newTestService(t, cache.NewMemoryStore(), f)

	got := svc.Aggregate(context.Background(), nil)
	assert.True(t, isFallback(got))
	assert.Equal(t, 0, f.Calls(""))
}

func TestAggregate_UsesPublicView(t *testing.T) {
	f := newStubFetcher()
	f.payloads["1"] = `{"matchId":"1"}`
	svc := newTestService(t, cache.NewMemoryStore(), f)

	svc.Aggregate(context.Background(), []string{"1"})
	assert.Equal(t, 0, f.Privileged())
}

func TestAggregate_BoundedConcurrency(t *testing.T) {
	f := newStubFetcher()
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
		f.payloads[ids[i]] = fmt.Sprintf(`{"matchId":%q}`, ids[i])
	}

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 3
	svc, err := NewService(cache.NewMemoryStore(), f, cfg)
	require.NoError(t, err)

	got := svc.Aggregate(context.Background(), ids)
	assert.Equal(t, ids, matchIDs(got))
}

func TestAggregate_ServedFromCache(t *testing.T) {
	f := newStubFetcher()
	ids := []string{"1", "2"}
	for _, id := range ids {
		f.payloads[id] = fmt.Sprintf(`{"matchId":%q}`, id)
	}
	svc := newTestService(t, cache.NewMemoryStore(), f)

	svc.Aggregate(context.Background(), ids)
	svc.Aggregate(context.Background(), ids)

	for _, id := range ids {
		assert.Equal(t, 1, f.Calls(id))
	}
}

func TestFallbackPredictions_FreshCopy(t *testing.T) {
	a := FallbackPredictions()
	b := FallbackPredictions()
	require.NotEmpty(t, a)

	a[0] = json.RawMessage(`{"tampered":true}`)
	a = append(a, json.RawMessage(`{}`))

	assert.NotEqual(t, string(a[0]), string(b[0]))
	assert.Len(t, FallbackPredictions(), len(b))
	for _, raw := range b {
		assert.True(t, json.Valid(raw))
	}
}

func TestAggregate_UpstreamEndToEnd(t *testing.T) {
	mock := testutil.NewMockPredictor()
	defer mock.Close()

	mock.SetResponse("1", testutil.NewPredictionResponse(`{"matchId":"1"}`))
	mock.SetResponse("2", testutil.NewHangingResponse())
	mock.SetResponse("3", testutil.NewServerErrorResponse())
	mock.SetResponse("4", testutil.NewPredictionResponse(`{"matchId":"4"}`))

	cfg := upstream.DefaultConfig(mock.URL())
	cfg.Timeout = 200 * time.Millisecond
	cfg.Retry.MaxAttempts = 1
	client, err := upstream.New(cfg)
	require.NoError(t, err)

	svc := newTestService(t, cache.NewMemoryStore(), client)

	start := time.Now()
	got := svc.Aggregate(context.Background(), []string{"1", "2", "3", "4"})
	elapsed := time.Since(start)

	assert.Equal(t, []string{"1", "4"}, matchIDs(got))
	// Matches are fetched concurrently, so one hang costs one timeout.
	assert.Less(t, elapsed, 600*time.Millisecond)
	assert.Equal(t, 0, mock.GetPrivilegedCount())
}
