package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name     string
		key      Key
		expected string
	}{
		{
			name:     "endpoint only",
			key:      Key{Endpoint: "/userprofiles"},
			expected: "cm360:userprofiles",
		},
		{
			name: "endpoint with query",
			key: Key{
				Endpoint: "/userprofiles/123/campaigns",
				Query:    url.Values{"searchString": {"spring"}},
			},
			expected: "cm360:userprofiles/123/campaigns:searchString=spring",
		},
		{
			name: "query params sorted",
			key: Key{
				Endpoint: "/userprofiles/123/campaigns",
				Query: url.Values{
					"sortField":    {"NAME"},
					"advertiserId": {"42"},
				},
			},
			expected: "cm360:userprofiles/123/campaigns:advertiserId=42:sortField=NAME",
		},
		{
			name: "profile scoping",
			key: Key{
				Endpoint:  "/accounts",
				ProfileID: 7,
			},
			expected: "cm360:accounts:profile=7",
		},
		{
			name: "cursor is part of the key",
			key: Key{
				Endpoint: "/userprofiles/123/creatives",
				Query:    url.Values{"pageToken": {"abc"}},
			},
			expected: "cm360:userprofiles/123/creatives:pageToken=abc",
		},
		{
			name: "multi-valued param",
			key: Key{
				Endpoint: "/userprofiles/123/campaigns",
				Query:    url.Values{"ids": {"2", "1"}},
			},
			expected: "cm360:userprofiles/123/campaigns:ids=1,2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.expected {
				t.Errorf("Key.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKey_String_Deterministic(t *testing.T) {
	key := Key{
		Endpoint: "/userprofiles/123/placements",
		Query: url.Values{
			"c": {"3"},
			"a": {"1"},
			"b": {"2"},
		},
		ProfileID: 123,
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("Key.String() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestKey_String_DifferentProfilesDiffer(t *testing.T) {
	a := Key{Endpoint: "/accounts", ProfileID: 1}
	b := Key{Endpoint: "/accounts", ProfileID: 2}

	if a.String() == b.String() {
		t.Error("Keys for different profiles must not collide")
	}
}
