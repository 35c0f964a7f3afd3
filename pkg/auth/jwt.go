package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GoogleTokenURL is the default OAuth2 token endpoint for service accounts.
const GoogleTokenURL = "https://oauth2.googleapis.com/token"

// jwtBearerGrant is the grant type for signed-assertion token exchange.
const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// ServiceAccountKey is the key material for a service-account token
// source. It is passed in by the caller (typically loaded by pkg/config),
// never read from process-global state.
type ServiceAccountKey struct {
	// ClientEmail is the service account identity (iss claim).
	ClientEmail string `json:"client_email"`

	// PrivateKey is the PEM-encoded RSA private key used to sign assertions.
	PrivateKey string `json:"private_key"`

	// TokenURL overrides the token endpoint. Empty means GoogleTokenURL.
	TokenURL string `json:"token_uri"`
}

// ParseServiceAccountKey decodes a service-account JSON key file.
func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("service account key missing client_email or private_key")
	}
	return &key, nil
}

// JWTSource exchanges a signed service-account assertion for a bearer
// token. Each Token call performs one exchange; wrap it in CachedSource
// to avoid hitting the token endpoint on every upstream request.
type JWTSource struct {
	email      string
	privateKey *rsa.PrivateKey
	tokenURL   string
	scopes     []string
	httpClient *http.Client
	now        func() time.Time
}

// JWTOption configures a JWTSource.
type JWTOption func(*JWTSource)

// WithHTTPClient sets a custom HTTP client for token requests.
func WithHTTPClient(c *http.Client) JWTOption {
	return func(s *JWTSource) { s.httpClient = c }
}

// withClock overrides the clock for deterministic tests.
func withClock(now func() time.Time) JWTOption {
	return func(s *JWTSource) { s.now = now }
}

// NewJWTSource creates a service-account token source from injected key
// material and the scopes to request.
func NewJWTSource(key *ServiceAccountKey, scopes []string, opts ...JWTOption) (*JWTSource, error) {
	if key == nil {
		return nil, fmt.Errorf("service account key is required")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	tokenURL := key.TokenURL
	if tokenURL == "" {
		tokenURL = GoogleTokenURL
	}

	s := &JWTSource{
		email:      key.ClientEmail,
		privateKey: privateKey,
		tokenURL:   tokenURL,
		scopes:     scopes,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// tokenResponse is the raw JSON response from the token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token implements TokenSource. It signs a fresh assertion and posts it
// to the token endpoint.
func (s *JWTSource) Token(ctx context.Context) (*Credential, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.email,
		"scope": strings.Join(s.scopes, " "),
		"aud":   s.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return nil, &AuthError{Op: "sign", Err: err}
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Op: "request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Op: "read", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{
			Op:         "exchange",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncate(body, 512)),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &AuthError{Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}
	if tr.AccessToken == "" {
		return nil, &AuthError{Op: "decode", StatusCode: resp.StatusCode, Err: ErrNoToken}
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}

	return &Credential{
		AccessToken: tr.AccessToken,
		ExpiresAt:   s.now().Add(lifetime),
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
