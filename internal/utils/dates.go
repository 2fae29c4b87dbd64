package utils

import (
	"strings"
	"time"
)

// ParseDateBound parses one end of a date range given as an RFC3339
// timestamp or a YYYY-MM-DD date. Empty input yields the zero time, which
// callers treat as an open bound. With endOfDay a date-only value covers
// the whole day.
func ParseDateBound(value string, endOfDay bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
