package mcpserver

import (
	"fmt"
	"strconv"
	"strings"
)

// argInt64 reads a numeric argument. MCP clients send JSON numbers as
// float64, but some serialize IDs as strings; both are accepted.
func argInt64(args map[string]any, name string) (int64, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing argument %q", name)
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q: expected a number, got %q", name, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q: expected a number, got %T", name, raw)
	}
}

func argString(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

// parseResourceURI splits cm360://profiles/{profileID}/{resource}.
func parseResourceURI(uri string) (int64, string, error) {
	const prefix = "cm360://profiles/"
	rest, ok := strings.CutPrefix(uri, prefix)
	if !ok {
		return 0, "", fmt.Errorf("unsupported resource URI %q", uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, "", fmt.Errorf("resource URI %q: want cm360://profiles/{profileID}/{resource}", uri)
	}
	profileID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("resource URI %q: profile ID %q is not numeric", uri, parts[0])
	}
	return profileID, parts[1], nil
}
