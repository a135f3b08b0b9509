// Package duration parses the human lookback strings accepted by the --since
// flag, like "30m", "2d" or "1w".
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var units = map[string]time.Duration{
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
	"mo": 30 * 24 * time.Hour,
	"y":  365 * 24 * time.Hour,
}

// Parse turns a lookback string into the point in time that far in the past.
// An empty string yields the zero time, meaning no lower bound.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	split := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if split <= 0 {
		return time.Time{}, fmt.Errorf("invalid lookback %q (use e.g. 30m, 2d, 1w)", s)
	}

	n, err := strconv.Atoi(s[:split])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid lookback %q: %w", s, err)
	}
	unit, ok := units[s[split:]]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown lookback unit %q in %q", s[split:], s)
	}

	return time.Now().Add(-time.Duration(n) * unit), nil
}
