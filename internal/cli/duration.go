package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseHumanDuration accepts day counts ("30d") and anything
// time.ParseDuration understands that ends in h, m or s.
func parseHumanDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return 0, errors.New("duration cannot be empty")
	}
	if strings.HasSuffix(value, "d") {
		v, err := parseDays(strings.TrimSuffix(value, "d"))
		if err != nil {
			return 0, err
		}
		return v, nil
	}
	if strings.HasSuffix(value, "h") || strings.HasSuffix(value, "m") || strings.HasSuffix(value, "s") {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return 0, err
		}
		if dur <= 0 {
			return 0, fmt.Errorf("duration must be positive: %s", value)
		}
		return dur, nil
	}
	return 0, fmt.Errorf("unsupported duration format: %s", value)
}

func parseDays(value string) (time.Duration, error) {
	d, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid day duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid day duration: %d", d)
	}
	return time.Duration(d) * 24 * time.Hour, nil
}
