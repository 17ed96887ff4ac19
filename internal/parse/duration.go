package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	durationRe = regexp.MustCompile(`(?i)^([-+]?\d+(?:[.,]\d+)?)\s*(min|mins|minutes|m|h|hr|hrs|hours)?\.?$`)
	clockRe    = regexp.MustCompile(`^(\d+):([0-5]\d)$`)
)

// ParseMinutes reads a duration as minutes. Accepted forms: "90", "90.5", "90,5", "90 min",
// "1.5h" and "1:30". The second result is false when the text is not a duration.
func ParseMinutes(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	if m := clockRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return float64(h*60 + mins), true
	}

	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "h", "hr", "hrs", "hours":
		v *= 60
	}
	return v, true
}

// WholeMinutes rounds a positive duration to the nearest minute, never below 1.
func WholeMinutes(minutes float64) int {
	n := int(math.Round(minutes))
	if n < 1 {
		return 1
	}
	return n
}
