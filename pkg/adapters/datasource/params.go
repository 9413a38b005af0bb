package datasource

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StringParam reads a string field from a connection config map.
func StringParam(config map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := config[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// IntParam reads an integer field that may arrive as a JSON number, a Go int or a string.
// The second result is false when the field is absent or unparseable.
func IntParam(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case float64: // JSON numbers are float64
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// BoolParam reads a boolean field that may arrive as a bool or a string.
func BoolParam(config map[string]any, key string, fallback bool) bool {
	switch v := config[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
