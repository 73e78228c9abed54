package youtube

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var isoDuration = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseDuration converts an ISO-8601 duration such as "PT4M13S" to whole
// minutes, rounding half away from zero. Empty or malformed values yield 0.
func ParseDuration(value string) int {
	seconds, ok := DurationSeconds(value)
	if !ok {
		return 0
	}
	return int(math.Round(seconds / 60))
}

// DurationSeconds returns the total seconds of an ISO-8601 duration.
func DurationSeconds(value string) (float64, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" || value == "P" || strings.HasSuffix(value, "T") {
		return 0, false
	}
	m := isoDuration.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	units := []float64{7 * 24 * 3600, 24 * 3600, 3600, 60, 1}
	var total float64
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, false
		}
		total += n * unit
	}
	return total, true
}
