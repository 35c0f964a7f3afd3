// Package pagination turns cursor-paginated CM360 listing endpoints
// into single logical responses.
//
// CM360 listings return a JSON envelope holding a named array field and
// an optional nextPageToken. Cursors are inherently sequential (each
// page's request depends on the prior page's token), so pages are never
// fetched in parallel.
//
// Two operations with distinct contracts are exposed:
//
//   - FetchPage issues exactly one upstream call and surfaces the
//     continuation cursor to the caller. Tool-call consumers use this to
//     keep payloads bounded.
//   - FetchAll loops FetchPage until the upstream is exhausted or a page
//     cap is reached, concatenating items in upstream order. Export and
//     reporting consumers use this.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(cm360Client)
//	page, err := fetcher.FetchPage(ctx, pagination.PageRequest{
//	    Endpoint:   "/userprofiles/123/campaigns",
//	    Params:     map[string]any{"searchString": "spring"},
//	    ArrayField: "campaigns",
//	})
//
// Any page error aborts a FetchAll run entirely; partial results are
// discarded rather than returned. Neither operation retries; resilience
// belongs to a decorator around the Doer.
package pagination
