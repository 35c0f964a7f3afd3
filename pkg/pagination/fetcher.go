package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/raydius/cm360-mcp/pkg/client"
	"github.com/raydius/cm360-mcp/pkg/logging"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm360_pages_fetched_total",
		Help: "Total pages fetched by endpoint",
	}, []string{"endpoint"})

	aggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm360_aggregations_total",
		Help: "Total fetch-all runs by termination reason",
	}, []string{"reason"})
)

const (
	// CursorParam is the continuation query parameter CM360 expects.
	CursorParam = "pageToken"

	// CursorField is the continuation field in the response envelope.
	CursorField = "nextPageToken"

	// DefaultMaxPages bounds a fetch-all run against upstreams that
	// never terminate a cursor chain.
	DefaultMaxPages = 10
)

// Doer executes a single upstream request. Implemented by
// client.Client; tests supply stubs.
type Doer interface {
	Do(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) ([]byte, error)
}

// PageRequest describes one listing call. Values are immutable per
// iteration; the fetch-all loop derives each iteration's request from
// the previous page's cursor.
type PageRequest struct {
	// Endpoint is the listing path relative to the API base URL.
	Endpoint string

	// Method is the HTTP method (default GET).
	Method string

	// Params maps filter-parameter names to strings, numbers, bools,
	// or slices thereof.
	Params map[string]any

	// Cursor is the continuation token from a previous page, empty for
	// the first page.
	Cursor string

	// ArrayField names the envelope field holding the item array.
	ArrayField string
}

// Page is a single listing page: the extracted items and the cursor
// for the next page, empty when no further pages exist.
type Page struct {
	Items      []json.RawMessage
	NextCursor string
}

// Fetcher drives paginated listing calls through a Doer.
// It holds no mutable state; independent calls may run fully in parallel.
type Fetcher struct {
	doer   Doer
	logger zerolog.Logger
}

// NewFetcher creates a fetcher over the given Doer.
func NewFetcher(doer Doer) *Fetcher {
	return &Fetcher{
		doer:   doer,
		logger: logging.NewLogger("pagination"),
	}
}

// FetchPage issues exactly one upstream call and returns the page's
// items plus the continuation cursor. A missing, null, or non-array
// envelope field is normalized to an empty item list. Upstream failures
// surface as *client.UpstreamError; nothing is retried here.
func (f *Fetcher) FetchPage(ctx context.Context, req PageRequest) (Page, error) {
	if req.Endpoint == "" {
		return Page{}, fmt.Errorf("endpoint is required")
	}
	if req.ArrayField == "" {
		return Page{}, fmt.Errorf("array field name is required")
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	query, err := EncodeParams(req.Params)
	if err != nil {
		return Page{}, err
	}
	if req.Cursor != "" {
		query.Set(CursorParam, req.Cursor)
	}

	body, err := f.doer.Do(ctx, method, req.Endpoint, query, nil)
	if err != nil {
		return Page{}, err
	}

	pagesFetchedTotal.WithLabelValues(req.Endpoint).Inc()

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Page{}, &client.UpstreamError{
			Class: client.ErrorClassServer,
			Err:   fmt.Errorf("malformed envelope: %w", err),
		}
	}

	page := Page{Items: extractItems(envelope, req.ArrayField, f.logger)}

	if raw, ok := envelope[CursorField]; ok {
		if err := json.Unmarshal(raw, &page.NextCursor); err != nil {
			f.logger.Debug().
				Str("endpoint", req.Endpoint).
				Msg("Non-string continuation field ignored")
			page.NextCursor = ""
		}
	}

	f.logger.Debug().
		Str("endpoint", req.Endpoint).
		Int("items", len(page.Items)).
		Bool("has_next", page.NextCursor != "").
		Msg("Page fetched")

	return page, nil
}

// FetchAll repeats FetchPage, feeding each returned cursor into the
// next call, and concatenates items in upstream order. It stops after
// the first of: an empty page, a missing cursor, or maxPages pages
// (DefaultMaxPages when maxPages <= 0). Reaching a bound is success;
// any page error aborts the whole run and discards partial results.
func (f *Fetcher) FetchAll(ctx context.Context, req PageRequest, maxPages int) ([]json.RawMessage, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	start := time.Now()
	items := make([]json.RawMessage, 0)
	pages := 0
	reason := "cursor_exhausted"

	for {
		if err := ctx.Err(); err != nil {
			aggregationsTotal.WithLabelValues("cancelled").Inc()
			return nil, err
		}

		page, err := f.FetchPage(ctx, req)
		if err != nil {
			aggregationsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("page %d: %w", pages+1, err)
		}

		pages++
		items = append(items, page.Items...)

		if len(page.Items) == 0 {
			reason = "empty_page"
			break
		}
		if page.NextCursor == "" {
			break
		}
		if pages >= maxPages {
			reason = "max_pages"
			break
		}

		req.Cursor = page.NextCursor
	}

	aggregationsTotal.WithLabelValues(reason).Inc()
	f.logger.Info().
		Str("endpoint", req.Endpoint).
		Int("pages", pages).
		Int("items", len(items)).
		Str("reason", reason).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

// extractItems pulls the named array out of the envelope, normalizing
// absent, null, and non-array values to an empty list.
func extractItems(envelope map[string]json.RawMessage, field string, logger zerolog.Logger) []json.RawMessage {
	raw, ok := envelope[field]
	if !ok {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Debug().
			Str("field", field).
			Msg("Non-array envelope field normalized to empty list")
		return nil
	}
	return items
}

// EncodeParams renders a filter-parameter map into query values.
// Supported value types: string, bool, integers, floats, and slices
// thereof (including []any of those).
func EncodeParams(params map[string]any) (url.Values, error) {
	query := url.Values{}
	for name, value := range params {
		if err := encodeParam(query, name, value); err != nil {
			return nil, err
		}
	}
	return query, nil
}

func encodeParam(query url.Values, name string, value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		query.Add(name, v)
	case bool:
		query.Add(name, strconv.FormatBool(v))
	case int:
		query.Add(name, strconv.Itoa(v))
	case int32:
		query.Add(name, strconv.FormatInt(int64(v), 10))
	case int64:
		query.Add(name, strconv.FormatInt(v, 10))
	case float32:
		query.Add(name, strconv.FormatFloat(float64(v), 'f', -1, 32))
	case float64:
		// JSON numbers decode as float64; render integral values
		// without a fraction so IDs survive the round trip.
		if v == float64(int64(v)) {
			query.Add(name, strconv.FormatInt(int64(v), 10))
		} else {
			query.Add(name, strconv.FormatFloat(v, 'f', -1, 64))
		}
	case []string:
		for _, item := range v {
			query.Add(name, item)
		}
	case []int64:
		for _, item := range v {
			query.Add(name, strconv.FormatInt(item, 10))
		}
	case []any:
		for _, item := range v {
			if err := encodeParam(query, name, item); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported parameter type %T for %q", value, name)
	}
	return nil
}
