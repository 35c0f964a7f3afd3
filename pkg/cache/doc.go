// Package cache provides a Redis-backed read-through cache for CM360
// listing responses.
//
// CM360 sends no freshness headers, so entries carry a fixed TTL chosen
// by the operator rather than an upstream expiry. The cache is strictly
// an optimization: every failure degrades to a direct upstream call and
// is surfaced only as a warning log and a metric.
//
// Keys are deterministic over endpoint, query parameters, and the user
// profile the request is scoped to, so two profiles never share entries.
// Continuation cursors take part in the query and therefore in the key,
// which means each page of a paginated listing is cached independently.
package cache
