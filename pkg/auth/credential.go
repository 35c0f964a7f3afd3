// Package auth provides bearer credentials for CM360 API calls: a
// service-account token source and a caching wrapper that minimizes
// round trips to the token endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoToken is returned when the provider response carries no access token.
var ErrNoToken = errors.New("empty access token in provider response")

// DefaultLifetime is assumed when the provider omits expires_in.
const DefaultLifetime = 3600 * time.Second

// Credential is an opaque bearer token with an absolute expiry.
// It is immutable once issued; a refresh produces a replacement.
type Credential struct {
	// AccessToken is the bearer token to send in the Authorization header.
	AccessToken string

	// ExpiresAt is the instant the token stops being valid upstream.
	ExpiresAt time.Time
}

// ExpiresWithin reports whether the credential expires within the
// given margin from now.
func (c *Credential) ExpiresWithin(margin time.Duration) bool {
	return !time.Now().Add(margin).Before(c.ExpiresAt)
}

// TokenSource issues bearer credentials. Implementations must be safe
// for concurrent use.
type TokenSource interface {
	// Token returns a credential valid at the time of the call.
	// Failures are reported as *AuthError.
	Token(ctx context.Context) (*Credential, error)
}

// StaticSource returns a fixed credential. Intended for tests and
// local development against recorded responses.
type StaticSource struct {
	AccessToken string
	Lifetime    time.Duration
}

// Token implements TokenSource.
func (s *StaticSource) Token(ctx context.Context) (*Credential, error) {
	if s.AccessToken == "" {
		return nil, &AuthError{Op: "static", Err: ErrNoToken}
	}
	lifetime := s.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Credential{
		AccessToken: s.AccessToken,
		ExpiresAt:   time.Now().Add(lifetime),
	}, nil
}

// AuthError indicates that a credential could not be obtained. It is
// fatal for the calling request and never retried automatically.
type AuthError struct {
	// Op names the failing step (sign, request, decode, ...).
	Op string

	// StatusCode is the token endpoint's HTTP status, when one was received.
	StatusCode int

	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("auth %s failed: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Err
}
