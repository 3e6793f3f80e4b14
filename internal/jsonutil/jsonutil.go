// Package jsonutil provides JSON serialization helpers for hashing and search.
//
// The audit log hashes a canonical (sorted-key) JSON form of each entry.
// encoding/json already writes map keys in sorted order, so canonical
// serialization reduces to marshalling a map view of the data.
package jsonutil

import (
	"encoding/json"
	"fmt"
)

// Canonical serializes v as canonical JSON: map keys sorted, no
// insignificant whitespace. Nested maps are sorted as well because
// encoding/json sorts every map it encounters.
func Canonical(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical serialization failed: %w", err)
	}
	return b, nil
}

// Stringify returns a best-effort JSON rendering of v for full-text search
// and diagnostics. Values that cannot be serialized fall back to fmt.Sprint,
// so Stringify never fails.
func Stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Normalize rewrites v into JSON-native types (map[string]any, []any,
// float64, string, bool, nil) by round-tripping it through encoding/json.
// Hash inputs must be normalized: a struct marshals its fields in
// declaration order, but the same data reloaded from disk becomes a map
// and marshals sorted, which would break hash verification across runs.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return string(b)
	}
	return out
}

// NormalizeMap applies Normalize to every value of m, preserving keys.
func NormalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

// Serializable reports whether v survives a round trip through
// encoding/json. Used by state sanitization to decide between keeping a
// value and stringifying it.
func Serializable(v any) bool {
	_, err := json.Marshal(v)
	return err == nil
}
