package cache

import (
	"time"
)

// Entry is a cached upstream listing response.
type Entry struct {
	// Body is the raw response body as served by CM360.
	Body []byte `json:"body"`

	// StatusCode is the HTTP status of the cached response.
	StatusCode int `json:"status_code"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"stored_at"`
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.StoredAt)
}
