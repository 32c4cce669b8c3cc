package roapi

import (
	"strings"
	"time"
)

// dateLayouts are the formats the upstreams are known to emit.
// RCA reports dates like "23.10.2026", vignette stop dates like
// "2026-07-31 23:59:59".
var dateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// ParseDate parses a date-only value from an upstream payload.
// It returns the zero time and false when the value cannot be interpreted.
func ParseDate(value string) (time.Time, bool) {
	text := strings.TrimSpace(value)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Truncate(24 * time.Hour), true
		}
	}

	// Fall back to ISO parsing, accepting a space separator too.
	if t, err := time.Parse(time.RFC3339, strings.Replace(text, " ", "T", 1)); err == nil {
		return t.Truncate(24 * time.Hour), true
	}

	return time.Time{}, false
}
