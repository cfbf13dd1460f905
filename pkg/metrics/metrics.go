// Package metrics exposes the Prometheus registry of the predictor proxy.
// Component metrics are defined in their own packages (cache, upstream,
// predictor) to keep them next to the code that records them; this package
// holds the HTTP server metrics and the /metrics handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is where the proxy registers its metrics. Component packages
	// register on the default registerer via promauto, so both point there.
	Registry prometheus.Registerer = prometheus.DefaultRegisterer

	// Gatherer is what Handler serves.
	Gatherer prometheus.Gatherer = prometheus.DefaultGatherer
)

var (
	httpRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictor_http_requests_total",
			Help: "Total HTTP requests served by route and status",
		},
		[]string{"route", "status"},
	)

	httpRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "predictor_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// ObserveRequest records one served HTTP request. route should be the
// matched route pattern, not the raw path, to keep label cardinality bounded.
func ObserveRequest(route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler serves every metric in Gatherer in the Prometheus text format,
// instrumented on Registry.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}),
	)
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - predictor_cache_hits_total{backend} (Counter): Fresh entries served
//   - predictor_cache_misses_total{backend} (Counter): Lookups with no entry
//   - predictor_cache_expired_total{backend} (Counter): Entries found past their TTL and purged
//   - predictor_cache_errors_total{backend, operation} (Counter): Backend failures
//
// Upstream Metrics (pkg/upstream):
//   - predictor_upstream_requests_total{status} (Counter): Upstream calls by HTTP status
//   - predictor_upstream_request_duration_seconds (Histogram): Upstream call latency
//   - predictor_upstream_errors_total{class} (Counter): Failures by class (client, server, network, timeout, decode)
//   - predictor_upstream_retries_total{class} (Counter): Retry attempts by class
//
// Aggregate Metrics (pkg/predictor):
//   - predictor_aggregate_dropped_total (Counter): Matches dropped from aggregate responses
//   - predictor_fallback_served_total (Counter): Aggregate responses answered with the fallback set
//
// HTTP Metrics (pkg/metrics):
//   - predictor_http_requests_total{route, status} (Counter)
//   - predictor_http_request_duration_seconds{route} (Histogram)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(predictor_cache_hits_total[5m])) /
//   (sum(rate(predictor_cache_hits_total[5m])) + sum(rate(predictor_cache_misses_total[5m])))
//
//   # Upstream Timeout Rate
//   rate(predictor_upstream_errors_total{class="timeout"}[5m])
//
//   # Fallback Responses
//   increase(predictor_fallback_served_total[1h]) > 0
//
//   # P95 Detail Endpoint Latency
//   histogram_quantile(0.95, rate(predictor_http_request_duration_seconds_bucket{route="/api/prediction/{matchId}"}[5m]))
