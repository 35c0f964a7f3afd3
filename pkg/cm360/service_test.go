package cm360

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"

	"github.com/raydius/cm360-mcp/pkg/pagination"
)

// recordingDoer replays one canned body and records the calls it saw.
type recordingDoer struct {
	body      string
	calls     int
	endpoints []string
	queries   []url.Values
}

func (d *recordingDoer) Do(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) ([]byte, error) {
	d.calls++
	d.endpoints = append(d.endpoints, endpoint)
	d.queries = append(d.queries, query)
	return []byte(d.body), nil
}

func TestService_ListPage(t *testing.T) {
	doer := &recordingDoer{body: `{"campaigns":[{"id":"1"}],"nextPageToken":"abc"}`}
	service := NewService(doer)

	page, err := service.ListPage(context.Background(), Scope{ProfileID: 123, AdvertiserID: 42}, "campaigns", ListParams{SearchString: "spring"}, "")
	if err != nil {
		t.Fatalf("ListPage() error = %v", err)
	}

	if len(page.Items) != 1 {
		t.Errorf("Items = %d, want 1", len(page.Items))
	}
	if page.NextCursor != "abc" {
		t.Errorf("NextCursor = %q, want abc", page.NextCursor)
	}
	if got := doer.endpoints[0]; got != "/userprofiles/123/campaigns" {
		t.Errorf("Endpoint = %q, want /userprofiles/123/campaigns", got)
	}
	if got := doer.queries[0].Get("searchString"); got != "spring" {
		t.Errorf("searchString = %q, want spring", got)
	}
	if got := doer.queries[0].Get("advertiserIds"); got != "42" {
		t.Errorf("advertiserIds = %q, want 42", got)
	}
}

func TestService_ListPage_CursorForwarded(t *testing.T) {
	doer := &recordingDoer{body: `{"creatives":[]}`}
	service := NewService(doer)

	_, err := service.ListPage(context.Background(), Scope{ProfileID: 1}, "creatives", ListParams{}, "tok-9")
	if err != nil {
		t.Fatalf("ListPage() error = %v", err)
	}

	if got := doer.queries[0].Get(pagination.CursorParam); got != "tok-9" {
		t.Errorf("Cursor param = %q, want tok-9", got)
	}
}

func TestService_ValidationBeforeNetwork(t *testing.T) {
	doer := &recordingDoer{body: `{}`}
	service := NewService(doer)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "bad scope",
			call: func() error {
				_, err := service.ListPage(ctx, Scope{}, "campaigns", ListParams{}, "")
				return err
			},
		},
		{
			name: "bad params",
			call: func() error {
				_, err := service.ListPage(ctx, Scope{ProfileID: 1}, "campaigns", ListParams{SortOrder: "SIDEWAYS"}, "")
				return err
			},
		},
		{
			name: "bad id",
			call: func() error {
				_, err := service.Get(ctx, Scope{ProfileID: 1}, "campaigns", 0)
				return err
			},
		},
		{
			name: "bad params for list all",
			call: func() error {
				_, err := service.ListAll(ctx, Scope{ProfileID: 1}, "campaigns", ListParams{MaxResults: 5000})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected *ValidationError, got %T (%v)", err, err)
			}
		})
	}

	if doer.calls != 0 {
		t.Errorf("Upstream calls = %d, want 0 for validation failures", doer.calls)
	}
}

func TestService_UnknownResource(t *testing.T) {
	doer := &recordingDoer{body: `{}`}
	service := NewService(doer)
	ctx := context.Background()

	if _, err := service.ListPage(ctx, Scope{ProfileID: 1}, "floodlights", ListParams{}, ""); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("ListPage: expected ErrUnknownResource, got %v", err)
	}
	if _, err := service.ListAll(ctx, Scope{ProfileID: 1}, "floodlights", ListParams{}); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("ListAll: expected ErrUnknownResource, got %v", err)
	}
	if doer.calls != 0 {
		t.Errorf("Upstream calls = %d, want 0", doer.calls)
	}
}

func TestService_ListAll_UsesReportsItemsField(t *testing.T) {
	doer := &recordingDoer{body: `{"items":[{"id":"1"},{"id":"2"}]}`}
	service := NewService(doer)

	items, err := service.ListAll(context.Background(), Scope{ProfileID: 9}, "reports", ListParams{})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}

	if len(items) != 2 {
		t.Errorf("Items = %d, want 2", len(items))
	}
	if got := doer.endpoints[0]; got != "/userprofiles/9/reports" {
		t.Errorf("Endpoint = %q, want /userprofiles/9/reports", got)
	}
}

func TestService_Get(t *testing.T) {
	doer := &recordingDoer{body: `{"id":"456","name":"Spring Campaign"}`}
	service := NewService(doer)

	obj, err := service.Get(context.Background(), Scope{ProfileID: 123}, "campaigns", 456)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if string(obj) != doer.body {
		t.Errorf("Get() = %s, want the raw upstream body", obj)
	}
	if got := doer.endpoints[0]; got != "/userprofiles/123/campaigns/456" {
		t.Errorf("Endpoint = %q, want /userprofiles/123/campaigns/456", got)
	}
}

func TestService_WithMaxPages(t *testing.T) {
	service := NewService(&recordingDoer{body: `{}`}, WithMaxPages(3))
	if service.MaxPages() != 3 {
		t.Errorf("MaxPages() = %d, want 3", service.MaxPages())
	}
}

func TestService_ReportFiles(t *testing.T) {
	doer := &recordingDoer{body: `{"items":[{"id":"f1"},{"id":"f2"}],"nextPageToken":"tok-2"}`}
	service := NewService(doer)

	page, err := service.ReportFiles(context.Background(), Scope{ProfileID: 123}, 777, 50, "")
	if err != nil {
		t.Fatalf("ReportFiles() error = %v", err)
	}

	if len(page.Items) != 2 {
		t.Errorf("Items = %d, want 2", len(page.Items))
	}
	if page.NextCursor != "tok-2" {
		t.Errorf("NextCursor = %q, want tok-2", page.NextCursor)
	}
	if got := doer.endpoints[0]; got != "/userprofiles/123/reports/777/files" {
		t.Errorf("Endpoint = %q, want /userprofiles/123/reports/777/files", got)
	}
	if got := doer.queries[0].Get("maxResults"); got != "50" {
		t.Errorf("maxResults = %q, want 50", got)
	}

	if _, err := service.ReportFiles(context.Background(), Scope{ProfileID: 123}, 777, 0, "tok-2"); err != nil {
		t.Fatalf("ReportFiles() with cursor error = %v", err)
	}
	if got := doer.queries[1].Get("pageToken"); got != "tok-2" {
		t.Errorf("pageToken = %q, want tok-2", got)
	}
}

func TestService_ReportFiles_Validation(t *testing.T) {
	doer := &recordingDoer{body: `{"items":[]}`}
	service := NewService(doer)

	tests := []struct {
		name       string
		scope      Scope
		reportID   int64
		maxResults int
	}{
		{"missing profile", Scope{}, 777, 0},
		{"zero report ID", Scope{ProfileID: 123}, 0, 0},
		{"negative report ID", Scope{ProfileID: 123}, -1, 0},
		{"oversized page", Scope{ProfileID: 123}, 777, 1001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ReportFiles(context.Background(), tt.scope, tt.reportID, tt.maxResults, "")
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
		})
	}
	if doer.calls != 0 {
		t.Errorf("upstream calls = %d, want 0", doer.calls)
	}
}
