package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictor_cache_hits_total",
			Help: "Total number of prediction cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses, expired entries included
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictor_cache_misses_total",
			Help: "Total number of prediction cache misses",
		},
		[]string{"backend"},
	)

	// CacheExpired tracks entries purged on lookup after their TTL elapsed
	CacheExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictor_cache_expired_total",
			Help: "Total number of expired prediction cache entries purged on lookup",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictor_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "delete"
	)
)
