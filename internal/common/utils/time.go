package utils

import (
	"fmt"
	"time"
)

// ParseDuration parses a duration string with support for additional time units.
//
// Extends time.ParseDuration with days ("d") and weeks ("w"), which are
// common for long shared and edge TTLs.
//
// Examples:
//
//	ParseDuration("1d")    // 24 hours
//	ParseDuration("2w")    // 336 hours (14 days)
//	ParseDuration("1h30m") // 1.5 hours (standard Go format)
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var n int
	var unit string
	if c, err := fmt.Sscanf(s, "%d%s", &n, &unit); err == nil && c == 2 {
		switch unit {
		case "d":
			return time.Duration(n) * 24 * time.Hour, nil
		case "w":
			return time.Duration(n) * 7 * 24 * time.Hour, nil
		}
	}

	return 0, fmt.Errorf("invalid duration: %s", s)
}

// FormatDuration formats a duration in a human-readable way.
//
//	FormatDuration(30 * time.Second)   // "30s"
//	FormatDuration(45 * time.Minute)   // "45m"
//	FormatDuration(2.5 * time.Hour)    // "2.5h"
//	FormatDuration(36 * time.Hour)     // "1.5d"
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	return fmt.Sprintf("%.1fd", d.Hours()/24)
}
