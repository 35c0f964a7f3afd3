package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached listing response.
type Key struct {
	// Endpoint is the CM360 endpoint path relative to the API base URL.
	Endpoint string

	// Query holds the request's query parameters, including any
	// continuation cursor.
	Query url.Values

	// ProfileID scopes the entry to a CM360 user profile (0 for
	// profile-independent endpoints).
	ProfileID int64
}

// String generates a deterministic cache key string.
// Format: cm360:endpoint:query1=val1:query2=val2:profile=123
func (k Key) String() string {
	parts := []string{"cm360"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := append([]string(nil), k.Query[name]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(values, ",")))
		}
	}

	if k.ProfileID > 0 {
		parts = append(parts, fmt.Sprintf("profile=%d", k.ProfileID))
	}

	return strings.Join(parts, ":")
}
