package spectrum

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFrequency reads a frequency with an optional unit suffix and returns
// Hz: "102.1MHz", "2.4G", "500k", "16e6". A bare number is taken as Hz.
func ParseFrequency(value string) (float64, error) {
	v := strings.TrimSpace(strings.ToUpper(value))
	v = strings.TrimSuffix(v, "HZ")
	multiplier := 1.0

	switch {
	case strings.HasSuffix(v, "G"):
		multiplier = 1e9
		v = strings.TrimSuffix(v, "G")
	case strings.HasSuffix(v, "M"):
		multiplier = 1e6
		v = strings.TrimSuffix(v, "M")
	case strings.HasSuffix(v, "K"):
		multiplier = 1e3
		v = strings.TrimSuffix(v, "K")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency: %s", value)
	}
	return f * multiplier, nil
}

// FormatMHz renders Hz as "%.2f MHz".
func FormatMHz(hz float64) string {
	return fmt.Sprintf("%.2f MHz", hz/1e6)
}
