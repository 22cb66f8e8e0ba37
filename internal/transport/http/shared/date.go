package shared

import "time"

// ParseDate accepts RFC3339 or YYYY-MM-DD. Plain dates come back as UTC
// midnight so validity-window comparisons are timezone-stable.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

// Today is the default asOf for compensation queries.
func Today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
