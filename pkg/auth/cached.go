package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/raydius/cm360-mcp/pkg/logging"
)

// DefaultRefreshMargin is how far before expiry a cached credential is
// considered stale. A credential handed out is always at least this far
// from its expiry.
const DefaultRefreshMargin = 60 * time.Second

// CachedSource wraps a TokenSource and hands out the last issued
// credential until it nears expiry. Safe for concurrent use; at most
// one refresh is in flight at a time.
type CachedSource struct {
	source TokenSource
	margin time.Duration
	logger zerolog.Logger

	mu   sync.RWMutex
	cred *Credential

	sf singleflight.Group
}

var _ TokenSource = (*CachedSource)(nil)

// CachedOption configures a CachedSource.
type CachedOption func(*CachedSource)

// WithRefreshMargin sets how long before expiry a refresh is forced.
func WithRefreshMargin(d time.Duration) CachedOption {
	return func(c *CachedSource) { c.margin = d }
}

// NewCachedSource creates a caching wrapper around the given source.
func NewCachedSource(source TokenSource, opts ...CachedOption) *CachedSource {
	c := &CachedSource{
		source: source,
		margin: DefaultRefreshMargin,
		logger: logging.NewLogger("auth"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Token returns a live credential, refreshing through the wrapped
// source only when the cached one is absent or inside the refresh
// margin. The cached credential is replaced wholesale, never mutated.
func (c *CachedSource) Token(ctx context.Context) (*Credential, error) {
	c.mu.RLock()
	cred := c.cred
	c.mu.RUnlock()

	if cred != nil && !cred.ExpiresWithin(c.margin) {
		return cred, nil
	}

	// singleflight collapses concurrent refreshes into one provider call.
	result, err, shared := c.sf.Do("token", func() (interface{}, error) {
		// A concurrent caller may have refreshed while we waited.
		c.mu.RLock()
		current := c.cred
		c.mu.RUnlock()
		if current != nil && !current.ExpiresWithin(c.margin) {
			return current, nil
		}

		fresh, err := c.source.Token(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cred = fresh
		c.mu.Unlock()

		tokenRefreshesTotal.Inc()
		c.logger.Debug().
			Time("expires_at", fresh.ExpiresAt).
			Msg("Credential refreshed")

		return fresh, nil
	})
	if err != nil {
		tokenRefreshFailuresTotal.Inc()
		c.logger.Error().Err(err).Msg("Credential refresh failed")
		return nil, err
	}
	if shared {
		c.logger.Debug().Msg("Credential refresh shared with concurrent caller")
	}

	return result.(*Credential), nil
}

// Invalidate drops the cached credential so the next Token call hits
// the provider. Used when the upstream rejects a token early.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.cred = nil
	c.mu.Unlock()
}
