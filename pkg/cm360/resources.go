// Package cm360 maps the Campaign Manager 360 listing surface onto the
// pagination engine: a catalog of listable resources and a service that
// runs profile-scoped listing and get operations against them.
package cm360

import (
	"errors"
	"fmt"
)

// ErrUnknownResource is returned for resource names outside the catalog.
var ErrUnknownResource = errors.New("unknown resource")

// Resource describes one listable CM360 resource type. Items stay
// opaque; the catalog only knows where a listing lives and which
// envelope field carries its array.
type Resource struct {
	// Name is the logical resource name used by both façades.
	Name string

	// pathSuffix is the path segment under /userprofiles/{id}/.
	pathSuffix string

	// ArrayField names the envelope field holding the item array.
	// Most listings use the resource name; reports use "items".
	ArrayField string

	// FiltersByAdvertiser reports whether the listing accepts an
	// advertiserIds filter parameter.
	FiltersByAdvertiser bool
}

// ListPath returns the listing endpoint for the given user profile.
func (r Resource) ListPath(profileID int64) string {
	return fmt.Sprintf("/userprofiles/%d/%s", profileID, r.pathSuffix)
}

// GetPath returns the single-object endpoint for the given user profile.
func (r Resource) GetPath(profileID, id int64) string {
	return fmt.Sprintf("/userprofiles/%d/%s/%d", profileID, r.pathSuffix, id)
}

// ReportFilesPath returns the sub-listing endpoint for a report's
// generated files. The envelope's array field is "items", as for reports.
func ReportFilesPath(profileID, reportID int64) string {
	return fmt.Sprintf("/userprofiles/%d/reports/%d/files", profileID, reportID)
}

// catalog is the fixed set of listable resources. The set is
// interchangeable by design: adding a resource is one entry here.
var catalog = map[string]Resource{
	"accounts": {
		Name:       "accounts",
		pathSuffix: "accounts",
		ArrayField: "accounts",
	},
	"advertisers": {
		Name:       "advertisers",
		pathSuffix: "advertisers",
		ArrayField: "advertisers",
	},
	"campaigns": {
		Name:                "campaigns",
		pathSuffix:          "campaigns",
		ArrayField:          "campaigns",
		FiltersByAdvertiser: true,
	},
	"creatives": {
		Name:                "creatives",
		pathSuffix:          "creatives",
		ArrayField:          "creatives",
		FiltersByAdvertiser: true,
	},
	"placements": {
		Name:                "placements",
		pathSuffix:          "placements",
		ArrayField:          "placements",
		FiltersByAdvertiser: true,
	},
	"sites": {
		Name:       "sites",
		pathSuffix: "sites",
		ArrayField: "sites",
	},
	"eventTags": {
		Name:                "eventTags",
		pathSuffix:          "eventTags",
		ArrayField:          "eventTags",
		FiltersByAdvertiser: true,
	},
	"reports": {
		Name:       "reports",
		pathSuffix: "reports",
		ArrayField: "items",
	},
}

// Lookup resolves a resource name against the catalog.
func Lookup(name string) (Resource, error) {
	r, ok := catalog[name]
	if !ok {
		return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return r, nil
}

// ResourceNames returns the catalog's resource names in stable order.
func ResourceNames() []string {
	return []string{
		"accounts",
		"advertisers",
		"campaigns",
		"creatives",
		"placements",
		"sites",
		"eventTags",
		"reports",
	}
}
