// Package redact masks values stored under sensitive-sounding keys before
// a payload leaves the process. Applied uniformly to every outbound
// property or metadata map, regardless of destination.
package redact

import "strings"

// Marker replaces any value held under a sensitive key.
const Marker = "***REDACTED***"

// sensitiveKeys are matched as case-insensitive substrings of map keys.
var sensitiveKeys = []string{"password", "apikey", "token", "secret", "key"}

// Sensitive returns true when the key looks like it holds a credential.
func Sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, sk := range sensitiveKeys {
		if strings.Contains(lower, sk) {
			return true
		}
	}

	return false
}

// Map returns a copy of props with every sensitive value replaced by
// Marker. The input map is never mutated. A nil input yields nil.
func Map(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}

	redacted := make(map[string]any, len(props))
	for k, v := range props {
		if Sensitive(k) {
			redacted[k] = Marker
			continue
		}
		redacted[k] = v
	}

	return redacted
}
