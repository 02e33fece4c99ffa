// Package quality parses pngquant-style "min-max" quality strings.
package quality

import (
	"strconv"
	"strings"
)

const (
	DefaultMin uint8 = 50
	DefaultMax uint8 = 80

	// DefaultText is the textual form of the default range.
	DefaultText = "50-80"
)

// Range is a lower and upper quality bound. Min <= Max is not enforced.
type Range struct {
	Min uint8
	Max uint8
}

// Parse splits s on '-' and reads each bound as an unsigned 8-bit integer.
// A missing or malformed bound falls back to its default independently of
// the other one, so Parse never fails.
func Parse(s string) Range {
	r := Range{Min: DefaultMin, Max: DefaultMax}

	parts := strings.Split(s, "-")
	if v, ok := parseBound(parts, 0); ok {
		r.Min = v
	}
	if v, ok := parseBound(parts, 1); ok {
		r.Max = v
	}
	return r
}

func parseBound(parts []string, i int) (uint8, bool) {
	if i >= len(parts) {
		return 0, false
	}
	v, err := strconv.ParseUint(parts[i], 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}

// Midpoint returns the arithmetic mean of both bounds, truncated.
// It tolerates Min > Max.
func (r Range) Midpoint() int {
	return (int(r.Min) + int(r.Max)) / 2
}

// String formats the range as "min-max".
func (r Range) String() string {
	return strconv.Itoa(int(r.Min)) + "-" + strconv.Itoa(int(r.Max))
}
