package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.November, 3, 10, 0, 0, 0, time.UTC)

func TestParseRelativeTime(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    time.Time
		expectError bool
	}{
		{"plural months (mixed case)", "3 MoNtHs AgO", fixedNow.AddDate(0, -3, 0), false},
		{"singular week", "1 Week Ago", fixedNow.AddDate(0, 0, -7), false},
		{"days upper case", "10 DAYS AGO", fixedNow.AddDate(0, 0, -10), false},
		{"hours", "5 hours ago", fixedNow.Add(-5 * time.Hour), false},
		{"missing ago", "2 years", time.Time{}, true},
		{"bad unit", "4 decades ago", time.Time{}, true},
		{"non-numeric", "one year ago", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRelativeTime(tt.input, fixedNow)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseLookbackDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"720h", 720 * time.Hour, false},
		{"30s", 30 * time.Second, false},
		{"3 days", 72 * time.Hour, false},
		{"2 Weeks", 14 * 24 * time.Hour, false},
		{"1 month", 30 * 24 * time.Hour, false},
		{"0s", 0, true},
		{"0 days", 0, true},
		{"fortnight", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLookbackDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseOptionalDuration(t *testing.T) {
	for _, zero := range []string{"", "0", "none", "OFF"} {
		d, err := ParseOptionalDuration(zero)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseOptionalDuration("2 hours")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, d)
}

func TestParseTimeFlag(t *testing.T) {
	got, err := ParseTimeFlag("2025-01-15T08:00:00Z", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC), got)

	got, err = ParseTimeFlag("2025-01-15", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseTimeFlag("now", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, got)

	got, err = ParseTimeFlag("2 weeks ago", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.AddDate(0, 0, -14), got)

	_, err = ParseTimeFlag("last tuesday", fixedNow)
	assert.Error(t, err)
}
