package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the canonical date format used throughout the pipeline.
const DateLayout = "2006-01-02"

var (
	isoDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slashDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
)

// DateNormalizer coerces report date text into DateLayout.
type DateNormalizer struct {
	// Now supplies the fallback date. Defaults to time.Now.
	Now func() time.Time
}

// NormalizeDate is DateNormalizer{}.Normalize.
func NormalizeDate(raw string) string {
	return DateNormalizer{}.Normalize(raw)
}

// Normalize never fails: text that cannot be read as a date yields the current date.
//
// Slash dates are month-first (05/09/2025 is May 9th). Only when the first group cannot be a
// month (13/05/2025) is it read day-first.
func (n DateNormalizer) Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return n.today()
	}

	if isoDateRe.MatchString(s) {
		if _, err := time.Parse(DateLayout, s); err == nil {
			return s
		}
	}

	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		if out, ok := slashDate(m[1], m[2], m[3]); ok {
			return out
		}
	}

	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t.Format(DateLayout)
	}

	return n.today()
}

func (n DateNormalizer) today() string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return now().Format(DateLayout)
}

func slashDate(first, second, year string) (string, bool) {
	a, _ := strconv.Atoi(first)
	b, _ := strconv.Atoi(second)
	y, _ := strconv.Atoi(year)

	month, day := a, b
	if a > 12 && b <= 12 {
		month, day = b, a
	}
	if month < 1 || month > 12 || day < 1 {
		return "", false
	}

	t := time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject overflow such as 02/30, which time.Date silently rolls forward.
	if t.Day() != day {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, month, day), true
}

// ParseDate converts a canonical date string to midnight UTC.
func ParseDate(canonical string) (time.Time, error) {
	return time.Parse(DateLayout, canonical)
}
