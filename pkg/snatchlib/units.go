package snatchlib

import (
	"fmt"
	"strconv"
	"strings"
)

// Size units, in bytes.
const (
	// B represents one byte.
	B int64 = 1
	// KB represents one kilobyte (1024 bytes).
	KB = 1024 * B
	// MB represents one megabyte (1024 kilobytes).
	MB = 1024 * KB
	// GB represents one gigabyte (1024 megabytes).
	GB = 1024 * MB
	// TB represents one terabyte (1024 gigabytes).
	TB = 1024 * GB
)

// ParseRate parses a human-readable transfer rate and returns bytes per
// second. 0 means unlimited.
//
// Supported formats: plain bytes ("100"), with unit suffix ("100B",
// "512KB", "1.5MB", "2gb"). The optional "/s" suffix is accepted and
// ignored.
func ParseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty rate")
	}
	s = strings.ToUpper(s)
	s = strings.TrimSuffix(s, "/S")
	if s == "0" {
		return 0, nil
	}

	var numStr, unit string
	for i, c := range s {
		if (c < '0' || c > '9') && c != '.' && c != '-' {
			numStr = s[:i]
			unit = s[i:]
			break
		}
	}
	if numStr == "" {
		numStr = s
	}
	if strings.HasPrefix(numStr, "-") {
		return 0, fmt.Errorf("invalid rate: negative value in %q", s)
	}
	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate: %q is not a number", numStr)
	}

	var multiplier int64
	switch unit {
	case "", "B":
		multiplier = B
	case "KB", "K":
		multiplier = KB
	case "MB", "M":
		multiplier = MB
	case "GB", "G":
		multiplier = GB
	case "TB", "T":
		multiplier = TB
	default:
		return 0, fmt.Errorf("invalid rate unit: %q (use B, KB, MB, GB or TB)", unit)
	}
	result := int64(num * float64(multiplier))
	if result < 0 {
		return 0, fmt.Errorf("invalid rate: overflow in %q", s)
	}
	return result, nil
}
