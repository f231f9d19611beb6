package helpers

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseHumanDuration parses duration strings as they appear in environment
// configuration, e.g. "7d", "12h", "30m", "45s" or "2w". Units above hours are
// not supported by time.ParseDuration, which this falls back to for anything
// else ("1h30m" still works).
func ParseHumanDuration(s string) (time.Duration, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}

	i := len(v)
	for i > 0 && !unicode.IsDigit(rune(v[i-1])) {
		i--
	}
	num, unit := v[:i], strings.ToLower(strings.TrimSpace(v[i:]))

	switch unit {
	case "d", "w":
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		if unit == "w" {
			n *= 7
		}
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return d, nil
	}
}
