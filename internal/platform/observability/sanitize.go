package observability

import (
	"strings"
	"unicode"
)

// Log field values pass through here before being emitted so crafted input
// cannot inject control sequences or balloon log entries.

func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, value)
	if runes := []rune(cleaned); len(runes) > limit {
		return string(runes[:limit])
	}
	return cleaned
}

// SanitizeRoute normalises a route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod normalises an HTTP method for logging.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeCustomerID bounds customer identifiers to reduce PII leakage in logs.
func SanitizeCustomerID(id string) string {
	if id == "" {
		return ""
	}
	return sanitizeString(id, 64)
}
