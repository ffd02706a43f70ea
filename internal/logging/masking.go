// Package logging provides helpers for logging request data without
// leaking credentials, tokens or visitor PII.
package logging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// redacted replaces values that must never appear in logs, even partially.
const redacted = "[REDACTED]"

// MaskHeader returns a log-safe rendering of one header value.
//
// Credential-bearing headers keep their last four characters so entries
// can be correlated with a known key; password, secret and cookie
// headers are fully redacted because session cookies and secrets are
// recoverable credentials.
func MaskHeader(name, value string) string {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "password"),
		strings.Contains(lower, "secret"),
		lower == "cookie",
		lower == "set-cookie":
		return redacted
	case lower == "authorization", lower == "x-api-key":
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}

	return value
}

// MaskJSONBody redacts a JSON body down to an allowlist of field names.
//
// A nil allowlist leaves the body untouched. Otherwise every primitive
// value whose key is not allowlisted is replaced with "[REDACTED]";
// objects and arrays are descended into so nested allowlisted fields
// survive. Non-JSON input is returned unchanged.
func MaskJSONBody(body []byte, allowlist []string) []byte {
	if allowlist == nil || len(body) == 0 {
		return body
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, field := range allowlist {
		allowed[field] = true
	}

	masked, err := json.Marshal(maskValue(data, allowed))
	if err != nil {
		return body
	}
	return masked
}

func maskValue(value any, allowed map[string]bool) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			switch inner.(type) {
			case map[string]any, []any:
				out[key] = maskValue(inner, allowed)
			default:
				if allowed[key] {
					out[key] = inner
				} else {
					out[key] = redacted
				}
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = maskValue(item, allowed)
		}
		return out
	default:
		return value
	}
}

// FormatBinaryData summarizes a non-text body for logging.
func FormatBinaryData(data []byte) string {
	return fmt.Sprintf("[BINARY: %d bytes]", len(data))
}
