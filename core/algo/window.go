// Package algo holds the pure computations of the pipeline: range splitting and ranking.
package algo

import (
	"fmt"
	"time"

	"github.com/huangsam/recap/schema"
)

// Day is the calendar unit used by chunk and split policies.
const Day = 24 * time.Hour

// SplitRange cuts r into contiguous windows of the given size. Every window
// ends one time unit before the next one starts, and the last window ends
// exactly at r.End. A zero-length range yields a single window.
func SplitRange(r schema.DateRange, size time.Duration) ([]schema.DateRange, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if size < schema.TimeUnit {
		return nil, fmt.Errorf("%w: window size %s is below %s", schema.ErrInvalidRange, size, schema.TimeUnit)
	}
	if r.Start.Equal(r.End) {
		return []schema.DateRange{r}, nil
	}

	var windows []schema.DateRange
	for start := r.Start; start.Before(r.End); start = start.Add(size) {
		next := start.Add(size)
		if !next.Before(r.End) {
			windows = append(windows, schema.DateRange{Start: start, End: r.End})
			break
		}
		windows = append(windows, schema.DateRange{Start: start, End: next.Add(-schema.TimeUnit)})
	}
	return windows, nil
}

// Days converts a day count into a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * Day
}
