package models

import (
	"fmt"
	"strconv"
	"strings"
)

// observations per year for each sampling frequency
const (
	Daily     = 252
	Weekly    = 52
	Monthly   = 12
	Quarterly = 4
	Yearly    = 1
)

func ConvertFrequencyToString(inp int) string {
	switch inp {
	case Daily:
		return "days"
	case Weekly:
		return "weeks"
	case Monthly:
		return "months"
	case Quarterly:
		return "quarters"
	case Yearly:
		return "years"
	default:
		return ""
	}
}

// ParsePeriodsPerYear accepts a frequency name ("daily", "weekly", ...) or a positive integer.
// An empty string is Daily.
func ParsePeriodsPerYear(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "daily", "days":
		return Daily, nil
	case "weekly", "weeks":
		return Weekly, nil
	case "monthly", "months":
		return Monthly, nil
	case "quarterly", "quarters":
		return Quarterly, nil
	case "yearly", "years", "annual":
		return Yearly, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("periods must be a frequency name or a positive integer, got %q", s)
	}
	return n, nil
}
