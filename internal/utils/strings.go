// Package utils provides common utility functions.
package utils

// MaskKey masks a credential for safe logging (first 8 and last 4 chars).
// Anthropic keys carry their class in the prefix, so the masked form still
// shows whether a key is an OAuth token or a plain API key.
func MaskKey(key string) string {
	if key == "" {
		return "(empty)"
	}
	if len(key) < 16 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
