// Package validation provides shared validation and masking helpers for
// channel senders.
package validation

import "strings"

// IsValidURL checks if a string is an HTTP/HTTPS URL.
func IsValidURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// MaskURL hides the secret tail of webhook URLs in log output.
func MaskURL(url string) string {
	if len(url) > 50 {
		return url[:30] + "..." + url[len(url)-10:]
	}
	return url
}
