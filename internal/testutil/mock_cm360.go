// Package testutil provides testing utilities for the CM360 client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockCM360 is a configurable mock CM360 API server for testing.
type MockCM360 struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount int
	TokenCount   int
	LastHeader   http.Header
}

// NewMockCM360 creates a new mock CM360 server.
func NewMockCM360() *MockCM360 {
	mock := &MockCM360{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCM360) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCM360) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and handlers.
func (m *MockCM360) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.TokenCount = 0
	m.LastHeader = nil
	m.handlers = make(map[string]http.HandlerFunc)
}

// Requests returns the number of requests served so far.
func (m *MockCM360) Requests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCM360) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetJSON configures a fixed JSON response for a path.
func (m *MockCM360) SetJSON(path string, status int, body string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	})
}

// PageScript is one page of a scripted listing sequence.
type PageScript struct {
	// Items are the objects served in the envelope's array field.
	Items []map[string]any

	// NextToken is the continuation token, empty for the last page.
	NextToken string

	// Status overrides the HTTP status (default 200).
	Status int
}

// ScriptPages serves a cursor-paginated listing at the given path. The
// first page answers requests without a pageToken; each later page is
// keyed by the previous page's NextToken.
func (m *MockCM360) ScriptPages(path, arrayField string, pages []PageScript) {
	byToken := make(map[string]PageScript, len(pages))
	token := ""
	for _, page := range pages {
		byToken[token] = page
		token = page.NextToken
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page, ok := byToken[r.URL.Query().Get("pageToken")]
		if !ok {
			http.Error(w, `{"error":"unknown page token"}`, http.StatusBadRequest)
			return
		}

		if page.Status != 0 && page.Status != http.StatusOK {
			w.WriteHeader(page.Status)
			fmt.Fprint(w, `{"error":"scripted failure"}`)
			return
		}

		items := page.Items
		if items == nil {
			items = []map[string]any{}
		}
		envelope := map[string]any{arrayField: items}
		if page.NextToken != "" {
			envelope["nextPageToken"] = page.NextToken
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(envelope)
	})
}

// ServeToken installs a mock OAuth token endpoint at /token issuing the
// given bearer token, and returns its URL. Issuance calls are counted
// in TokenCount.
func (m *MockCM360) ServeToken(accessToken string, expiresIn int) string {
	m.SetHandler("/token", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.TokenCount++
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	})
	return m.server.URL + "/token"
}
