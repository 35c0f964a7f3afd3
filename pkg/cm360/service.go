package cm360

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/raydius/cm360-mcp/pkg/logging"
	"github.com/raydius/cm360-mcp/pkg/pagination"
)

// Service runs profile-scoped operations against the resource catalog.
// It holds no per-request state; concurrent calls are independent.
type Service struct {
	doer     pagination.Doer
	fetcher  *pagination.Fetcher
	maxPages int
	logger   zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxPages bounds ListAll aggregation runs.
func WithMaxPages(n int) ServiceOption {
	return func(s *Service) { s.maxPages = n }
}

// NewService creates a service over the given Doer (typically a
// *client.Client).
func NewService(doer pagination.Doer, opts ...ServiceOption) *Service {
	s := &Service{
		doer:     doer,
		fetcher:  pagination.NewFetcher(doer),
		maxPages: pagination.DefaultMaxPages,
		logger:   logging.NewLogger("cm360"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListPage returns one page of the named resource plus the continuation
// cursor. Parameters are validated before any network call.
func (s *Service) ListPage(ctx context.Context, scope Scope, resourceName string, params ListParams, cursor string) (pagination.Page, error) {
	resource, err := Lookup(resourceName)
	if err != nil {
		return pagination.Page{}, err
	}
	if err := checkValid(scope); err != nil {
		return pagination.Page{}, err
	}
	if err := checkValid(params); err != nil {
		return pagination.Page{}, err
	}

	return s.fetcher.FetchPage(ctx, pagination.PageRequest{
		Endpoint:   resource.ListPath(scope.ProfileID),
		Params:     params.queryParams(resource, scope),
		Cursor:     cursor,
		ArrayField: resource.ArrayField,
	})
}

// ListAll aggregates every page of the named resource up to the
// service's page bound. Any page error aborts the whole run.
func (s *Service) ListAll(ctx context.Context, scope Scope, resourceName string, params ListParams) ([]json.RawMessage, error) {
	resource, err := Lookup(resourceName)
	if err != nil {
		return nil, err
	}
	if err := checkValid(scope); err != nil {
		return nil, err
	}
	if err := checkValid(params); err != nil {
		return nil, err
	}

	return s.fetcher.FetchAll(ctx, pagination.PageRequest{
		Endpoint:   resource.ListPath(scope.ProfileID),
		Params:     params.queryParams(resource, scope),
		ArrayField: resource.ArrayField,
	}, s.maxPages)
}

// ReportFiles lists the files generated for a report, one page at a
// time. File listings accept no search or sort filters upstream, so
// only the page size is tunable.
func (s *Service) ReportFiles(ctx context.Context, scope Scope, reportID int64, maxResults int, cursor string) (pagination.Page, error) {
	if err := checkValid(scope); err != nil {
		return pagination.Page{}, err
	}
	if reportID <= 0 {
		return pagination.Page{}, &ValidationError{Field: "reportID", Reason: "must be a positive integer"}
	}
	if maxResults < 0 || maxResults > 1000 {
		return pagination.Page{}, &ValidationError{Field: "maxResults", Reason: "must be between 0 and 1000"}
	}

	params := map[string]any{}
	if maxResults > 0 {
		params["maxResults"] = maxResults
	}

	return s.fetcher.FetchPage(ctx, pagination.PageRequest{
		Endpoint:   ReportFilesPath(scope.ProfileID, reportID),
		Params:     params,
		Cursor:     cursor,
		ArrayField: "items",
	})
}

// Get fetches a single object of the named resource by ID.
func (s *Service) Get(ctx context.Context, scope Scope, resourceName string, id int64) (json.RawMessage, error) {
	resource, err := Lookup(resourceName)
	if err != nil {
		return nil, err
	}
	if err := checkValid(scope); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}

	body, err := s.doer.Do(ctx, http.MethodGet, resource.GetPath(scope.ProfileID, id), nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// MaxPages returns the aggregation bound ListAll runs under.
func (s *Service) MaxPages() int {
	return s.maxPages
}
