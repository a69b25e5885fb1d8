package logger

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameters that must never reach the logs.
// Capability tokens, personal codes, and PINs all travel as query or path
// values at some point.
var sensitiveParams = []string{
	"token",
	"verify_token",
	"pin_token",
	"pin",
	"session",
	"merchant_code",
	"personal_code",
	"contact",
}

// SanitizeQueryString reports whether the raw query contains a sensitive
// parameter and therefore must be redacted from logs.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// Unparseable queries are redacted rather than logged raw
		return true
	}

	for key := range values {
		lower := strings.ToLower(key)
		for _, sensitive := range sensitiveParams {
			if lower == sensitive || strings.Contains(lower, sensitive) {
				return true
			}
		}
	}

	return false
}
