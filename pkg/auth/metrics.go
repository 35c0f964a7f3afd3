package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for credential caching.
var (
	tokenRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm360_token_refreshes_total",
		Help: "Total credential refreshes against the token endpoint",
	})

	tokenRefreshFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm360_token_refresh_failures_total",
		Help: "Total failed credential refreshes",
	})
)
