package config

import (
	"strconv"
	"strings"
	"time"
)

// ParseTimestamp parses a timestamp value: unix seconds, RFC3339, or a
// YYYY-MM-DD date at UTC midnight.
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	if tm, err := time.Parse("2006-01-02", input); err == nil {
		return uint64(tm.Unix()), nil
	}
	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
