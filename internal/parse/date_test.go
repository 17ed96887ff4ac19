package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateNormalizer_Normalize(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 15, 4, 5, 0, time.UTC)
	n := DateNormalizer{Now: func() time.Time { return fixed }}

	testCases := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "ISO passes through", raw: "2025-05-09", expected: "2025-05-09"},
		{name: "ISO with whitespace", raw: "  2025-05-09 ", expected: "2025-05-09"},
		{name: "Slash date is month first", raw: "05/09/2025", expected: "2025-05-09"},
		{name: "Slash date zero pads", raw: "5/9/2025", expected: "2025-05-09"},
		{name: "Slash date day first when month impossible", raw: "13/05/2025", expected: "2025-05-13"},
		{name: "Free text", raw: "March 3, 2025", expected: "2025-03-03"},
		{name: "Timestamp", raw: "2025-01-02T10:30:00", expected: "2025-01-02"},
		{name: "Empty falls back to today", raw: "", expected: "2026-03-14"},
		{name: "Garbage falls back to today", raw: "not a date", expected: "2026-03-14"},
		{name: "Impossible slash date falls back to today", raw: "02/30/2025", expected: "2026-03-14"},
		{name: "Impossible ISO day falls back to today", raw: "2025-02-30", expected: "2026-03-14"},
		{name: "Impossible ISO month falls back to today", raw: "2025-13-01", expected: "2026-03-14"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := n.Normalize(tc.raw)
			assert.Equal(t, tc.expected, out)
			_, err := ParseDate(out)
			assert.NoError(t, err, "normalized dates always parse")
		})
	}
}

func TestNormalizeDate_EmptyIsToday(t *testing.T) {
	assert.Equal(t, time.Now().Format(DateLayout), NormalizeDate(""))
}
