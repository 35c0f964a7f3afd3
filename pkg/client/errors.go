package client

import (
	"fmt"
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 quota errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// UpstreamError represents a failed CM360 request: a non-2xx response,
// a malformed envelope, or a transport failure. It is fatal for the
// enclosing call; the client never retries.
type UpstreamError struct {
	// StatusCode is the upstream HTTP status (0 for transport failures).
	StatusCode int

	// Body carries the upstream response body, truncated for transport.
	Body string

	// Class is the error classification used for metric labels.
	Class ErrorClass

	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("cm360 %s error (status %d): %v", e.Class, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("cm360 %s error: %v", e.Class, e.Err)
	case e.Body != "":
		return fmt.Sprintf("cm360 %s error (status %d): %s", e.Class, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("cm360 %s error (status %d)", e.Class, e.StatusCode)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
