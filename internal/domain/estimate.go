package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// estimateRegex matches "<number> <unit>" phrases like "2 weeks" or "90m".
var estimateRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(weeks?|days?|hours?|hrs?|h|minutes?|mins?|m)?$`)

// ParseEstimatedHours converts a human time phrase to hours:
// "N week[s]" = 40N, "N day[s]" = 8N, "N hour[s]" = N, "N minute[s]" or
// "Nm" = N/60, a bare integer = hours. Anything else parses to 0.
func ParseEstimatedHours(phrase string) float64 {
	m := estimateRegex.FindStringSubmatch(strings.ToLower(strings.TrimSpace(phrase)))
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch {
	case strings.HasPrefix(m[2], "w"):
		return n * 40
	case strings.HasPrefix(m[2], "d"):
		return n * 8
	case strings.HasPrefix(m[2], "m"):
		return n / 60
	default:
		// hours, or a bare number
		return n
	}
}

// ActualHours computes the decimal hours between activation and completion.
func ActualHours(activatedAt, completedAt time.Time) float64 {
	return completedAt.Sub(activatedAt).Seconds() / 3600
}
