package observability

import "strings"

// MaskSecrets masks a sensitive value for logs and replay payloads. Empty
// input masks to ""; values of six characters or fewer mask fully; longer
// values keep the first three characters and mask the rest.
func MaskSecrets(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 6 {
		return "***"
	}
	stars := len(value) - 3
	if stars < 2 {
		stars = 2
	}
	return value[:3] + strings.Repeat("*", stars)
}
