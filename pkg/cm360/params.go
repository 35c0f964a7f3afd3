package cm360

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is shared across calls; validator instances cache struct
// metadata and are safe for concurrent use.
var validate = validator.New()

// Scope carries the request-scoped identity every operation needs.
// It is passed explicitly by the caller on each call; there is no
// process-wide selected advertiser or profile.
type Scope struct {
	// ProfileID is the CM360 user profile the call acts as (required).
	ProfileID int64 `validate:"required,gt=0"`

	// AdvertiserID restricts listings to one advertiser (optional,
	// honored only by resources that filter by advertiser).
	AdvertiserID int64 `validate:"gte=0"`
}

// ListParams are the caller-supplied filter parameters for a listing.
type ListParams struct {
	// SearchString restricts results to objects matching the pattern.
	SearchString string `validate:"max=1024"`

	// IDs restricts results to the given object IDs.
	IDs []int64 `validate:"dive,gt=0"`

	// SortField orders results by ID or NAME.
	SortField string `validate:"omitempty,oneof=ID NAME"`

	// SortOrder is ASCENDING or DESCENDING.
	SortOrder string `validate:"omitempty,oneof=ASCENDING DESCENDING"`

	// MaxResults caps the page size (upstream maximum 1000).
	MaxResults int `validate:"gte=0,lte=1000"`
}

// ValidationError reports caller-supplied parameters that failed schema
// checks. It is surfaced before any network call is made.
type ValidationError struct {
	// Field is the offending parameter.
	Field string

	// Reason is the violated constraint.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// checkValid runs struct validation and converts the first violation
// into a *ValidationError.
func checkValid(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		first := verrs[0]
		return &ValidationError{
			Field:  first.Field(),
			Reason: fmt.Sprintf("failed %q constraint", first.Tag()),
		}
	}
	return &ValidationError{Field: "params", Reason: err.Error()}
}

// queryParams renders the validated parameters into the filter map the
// pagination engine encodes.
func (p ListParams) queryParams(resource Resource, scope Scope) map[string]any {
	params := map[string]any{}

	if p.SearchString != "" {
		params["searchString"] = p.SearchString
	}
	if len(p.IDs) > 0 {
		params["ids"] = p.IDs
	}
	if p.SortField != "" {
		params["sortField"] = p.SortField
	}
	if p.SortOrder != "" {
		params["sortOrder"] = p.SortOrder
	}
	if p.MaxResults > 0 {
		params["maxResults"] = p.MaxResults
	}
	if scope.AdvertiserID > 0 && resource.FiltersByAdvertiser {
		params["advertiserIds"] = []int64{scope.AdvertiserID}
	}

	return params
}
