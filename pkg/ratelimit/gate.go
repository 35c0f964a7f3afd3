// Package ratelimit implements a client-side request gate for CM360 API
// quotas. CM360 publishes no error-budget headers, so the gate is a local
// token bucket sized to the project's per-second quota.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request gating.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm360_rate_limit_waits_total",
		Help: "Total requests that had to wait at the rate-limit gate",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cm360_rate_limit_wait_seconds",
		Help:    "Time spent waiting at the rate-limit gate",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// Gate limits the outgoing request rate. A nil *Gate passes everything
// through, so callers can hold one unconditionally.
type Gate struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewGate creates a gate allowing rps requests per second with the given
// burst. rps <= 0 disables limiting entirely.
func NewGate(rps float64, burst int, logger zerolog.Logger) *Gate {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Gate{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Wait blocks until the gate grants a slot or the context is done.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}

	if g.limiter.Allow() {
		return nil
	}

	rateLimitWaitsTotal.Inc()
	start := time.Now()

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	waited := time.Since(start)
	rateLimitWaitSeconds.Observe(waited.Seconds())
	g.logger.Debug().
		Dur("waited", waited).
		Msg("Request delayed by rate-limit gate")

	return nil
}

// Allow reports whether a request may proceed right now without waiting.
func (g *Gate) Allow() bool {
	if g == nil {
		return true
	}
	return g.limiter.Allow()
}
