// Package client provides the core CM360 HTTP client with bearer
// authorization, optional response caching, rate limiting, and error
// classification.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/raydius/cm360-mcp/pkg/auth"
	"github.com/raydius/cm360-mcp/pkg/cache"
	"github.com/raydius/cm360-mcp/pkg/logging"
	"github.com/raydius/cm360-mcp/pkg/ratelimit"
)

// Prometheus metrics for CM360 client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm360_requests_total",
		Help: "Total CM360 requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cm360_request_duration_seconds",
		Help:    "CM360 request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm360_errors_total",
		Help: "Total CM360 errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the CM360 Reporting and Trafficking API root.
const DefaultBaseURL = "https://dfareporting.googleapis.com/dfareporting/v4"

// DefaultTimeout bounds each individual upstream call. It is distinct
// from any page-loop deadline; the aggregation loop carries none.
const DefaultTimeout = 5 * time.Second

// maxErrorBody caps how much upstream body an UpstreamError carries.
const maxErrorBody = 4096

// Client is the CM360 HTTP client.
type Client struct {
	httpClient *http.Client
	tokens     auth.TokenSource
	gate       *ratelimit.Gate
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root all endpoints are resolved against.
	BaseURL string

	// TokenSource provides bearer credentials (REQUIRED). Wrap it in
	// auth.CachedSource unless every call should hit the token endpoint.
	TokenSource auth.TokenSource

	// UserAgent identifies this client to the upstream.
	UserAgent string

	// Timeout bounds each individual request (default 5s).
	Timeout time.Duration

	// RateLimit is the client-side request rate in req/s (0 = unlimited).
	RateLimit float64

	// RateBurst is the rate limiter burst size.
	RateBurst int

	// Cache enables read-through caching of GET responses (optional).
	Cache *cache.Manager
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(tokens auth.TokenSource) Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		TokenSource: tokens,
		UserAgent:   "cm360-mcp/0.1.0",
		Timeout:     DefaultTimeout,
		RateLimit:   10,
		RateBurst:   5,
	}
}

// New creates a new CM360 client.
func New(cfg Config) (*Client, error) {
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := logging.NewLogger("cm360-client")

	return &Client{
		httpClient: &http.Client{},
		tokens:     cfg.TokenSource,
		gate:       ratelimit.NewGate(cfg.RateLimit, cfg.RateBurst, logger),
		cache:      cfg.Cache,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Do performs an upstream request and returns the raw response body.
// The request flow: rate-limit gate, cache lookup (GET only), bearer
// authorization, one HTTP call under the per-call timeout. Non-2xx
// responses and transport failures come back as *UpstreamError; no
// retries happen here. Callers needing resilience wrap this method in
// their own retry decorator.
func (c *Client) Do(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: rate-limit gate
	if err := c.gate.Wait(ctx); err != nil {
		return nil, &UpstreamError{Class: ErrorClassNetwork, Err: err}
	}

	// Step 2: cache lookup for GETs
	cacheKey := cache.Key{
		Endpoint:  endpoint,
		Query:     query,
		ProfileID: profileFromEndpoint(endpoint),
	}
	if c.cache != nil && method == http.MethodGet {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("age", entry.Age()).
				Msg("Cache hit")
			requestsTotal.WithLabelValues(endpoint, "cached").Inc()
			return entry.Body, nil
		}
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 3: bearer credential
	cred, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	// Step 4: build and execute the request under the per-call timeout
	reqURL := c.config.BaseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, reqURL, body)
	if err != nil {
		return nil, &UpstreamError{Class: ErrorClassNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing CM360 request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &UpstreamError{Class: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &UpstreamError{Class: ErrorClassNetwork, Err: fmt.Errorf("read response: %w", err)}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	// Step 5: classify non-2xx responses
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("CM360 request error")

		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       string(truncateBody(respBody)),
			Class:      class,
		}
	}

	// Step 6: cache successful GET responses
	if c.cache != nil && method == http.MethodGet && resp.StatusCode == http.StatusOK {
		entry := &cache.Entry{Body: respBody, StatusCode: resp.StatusCode}
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return respBody, nil
}

// Get performs a GET request against a CM360 endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, endpoint, query, nil)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

func truncateBody(b []byte) []byte {
	if len(b) > maxErrorBody {
		return b[:maxErrorBody]
	}
	return b
}

// profileFromEndpoint extracts the user profile ID from endpoint paths
// of the form /userprofiles/{id}/..., returning 0 when absent.
func profileFromEndpoint(endpoint string) int64 {
	const prefix = "/userprofiles/"
	if !strings.HasPrefix(endpoint, prefix) {
		return 0
	}
	rest := endpoint[len(prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
