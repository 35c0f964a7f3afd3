package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm360_cache_hits_total",
		Help: "Total cache hits for listing responses",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm360_cache_misses_total",
		Help: "Total cache misses for listing responses",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm360_cache_errors_total",
		Help: "Total cache backend errors by operation",
	}, []string{"operation"})
)
