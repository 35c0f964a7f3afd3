package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/raydius/cm360-mcp/pkg/auth"
)

// newTestClient points a client with a static credential at the given
// test server.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	c, err := New(Config{
		BaseURL:     serverURL,
		TokenSource: &auth.StaticSource{AccessToken: "test-token"},
		UserAgent:   "cm360-mcp-test/0.0.0",
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name: "valid config",
			config: Config{
				TokenSource: &auth.StaticSource{AccessToken: "t"},
			},
			expectError: false,
		},
		{
			name:        "missing token source",
			config:      Config{BaseURL: "https://example.com"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.config.BaseURL != DefaultBaseURL {
				t.Errorf("BaseURL = %q, want default %q", c.config.BaseURL, DefaultBaseURL)
			}
			if c.config.Timeout != DefaultTimeout {
				t.Errorf("Timeout = %v, want default %v", c.config.Timeout, DefaultTimeout)
			}
		})
	}
}

func TestDo_SetsBearerAndQuery(t *testing.T) {
	var gotAuth, gotQuery, gotAccept string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"campaigns":[]}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)

	body, err := c.Get(context.Background(), "/userprofiles/123/campaigns", url.Values{"searchString": {"x"}})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-token")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
	if gotQuery != "searchString=x" {
		t.Errorf("Query = %q, want searchString=x", gotQuery)
	}
	if !strings.Contains(string(body), "campaigns") {
		t.Errorf("Body = %s, want campaigns envelope", body)
	}
}

func TestDo_NonOKStatusYieldsUpstreamError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantClass ErrorClass
	}{
		{"bad request", 400, ErrorClassClient},
		{"not found", 404, ErrorClassClient},
		{"quota exceeded", 429, ErrorClassRateLimit},
		{"server error", 500, ErrorClassServer},
		{"bad gateway", 502, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"upstream says no"}}`))
			}))
			defer ts.Close()

			c := newTestClient(t, ts.URL)

			_, err := c.Get(context.Background(), "/userprofiles/1/campaigns", nil)
			if err == nil {
				t.Fatal("Expected error for non-2xx status")
			}

			var ue *UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("Expected *UpstreamError, got %T", err)
			}
			if ue.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", ue.StatusCode, tt.status)
			}
			if ue.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q", ue.Class, tt.wantClass)
			}
			if !strings.Contains(ue.Body, "upstream says no") {
				t.Errorf("Body = %q, want upstream body carried", ue.Body)
			}
		})
	}
}

func TestDo_TransportFailureIsNetworkClass(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // Connection refused from here on.

	c := newTestClient(t, ts.URL)

	_, err := c.Get(context.Background(), "/userprofiles/1/campaigns", nil)
	if err == nil {
		t.Fatal("Expected error for closed server")
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected *UpstreamError, got %T", err)
	}
	if ue.Class != ErrorClassNetwork {
		t.Errorf("Class = %q, want network", ue.Class)
	}
	if ue.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", ue.StatusCode)
	}
}

func TestDo_PerCallTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c, err := New(Config{
		BaseURL:     ts.URL,
		TokenSource: &auth.StaticSource{AccessToken: "t"},
		Timeout:     50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	start := time.Now()
	_, err = c.Get(context.Background(), "/userprofiles/1/accounts", nil)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("Call returned after %v, want the 50ms per-call timeout to fire", elapsed)
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected *UpstreamError, got %T", err)
	}
	if ue.Class != ErrorClassNetwork {
		t.Errorf("Class = %q, want network for timeout", ue.Class)
	}
}

func TestDo_AuthErrorPropagates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Upstream must not be called when no credential is available")
	}))
	defer ts.Close()

	c, err := New(Config{
		BaseURL:     ts.URL,
		TokenSource: &auth.StaticSource{}, // issues ErrNoToken
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Get(context.Background(), "/userprofiles/1/campaigns", nil)

	var ae *auth.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("Expected *auth.AuthError, got %T (%v)", err, err)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{403, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{200, ""},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestProfileFromEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     int64
	}{
		{"/userprofiles/123/campaigns", 123},
		{"/userprofiles/7", 7},
		{"/userprofiles/abc/campaigns", 0},
		{"/accounts/5", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := profileFromEndpoint(tt.endpoint); got != tt.want {
			t.Errorf("profileFromEndpoint(%q) = %d, want %d", tt.endpoint, got, tt.want)
		}
	}
}
