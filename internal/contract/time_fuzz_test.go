package contract

import (
	"testing"
	"time"
)

// FuzzParseRelativeTime fuzzes ParseRelativeTime with random inputs.
func FuzzParseRelativeTime(f *testing.F) {
	seeds := []string{
		"1 year ago",
		"2 months ago",
		"3 weeks ago",
		"4 days ago",
		"5 hours ago",
		"6 minutes ago",
		"0 years ago", // edge case
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(_ *testing.T, input string) {
		_, _ = ParseRelativeTime(input, time.Now())
	})
}

// FuzzParseTimeFlag covers every accepted start and end form.
func FuzzParseTimeFlag(f *testing.F) {
	seeds := []string{
		"2025-01-01",
		"2025-01-01T10:00:00Z",
		"3 weeks ago",
		"now",
		"",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	f.Fuzz(func(t *testing.T, input string) {
		got, err := ParseTimeFlag(input, now)
		if err != nil && !got.IsZero() {
			t.Errorf("ParseTimeFlag(%q) returned %v alongside error %v", input, got, err)
		}
	})
}
