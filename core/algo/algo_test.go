package algo

import (
	"testing"
	"time"

	"github.com/huangsam/recap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var d0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return d0.AddDate(0, 0, n) }

func TestSplitRangeThreeWeeks(t *testing.T) {
	windows, err := SplitRange(schema.DateRange{Start: day(0), End: day(21)}, Days(7))
	require.NoError(t, err)
	require.Len(t, windows, 3)

	assert.Equal(t, day(0), windows[0].Start)
	assert.Equal(t, day(7).Add(-schema.TimeUnit), windows[0].End)
	assert.Equal(t, day(7), windows[1].Start)
	assert.Equal(t, day(14).Add(-schema.TimeUnit), windows[1].End)
	assert.Equal(t, day(14), windows[2].Start)
	assert.Equal(t, day(21), windows[2].End)
}

func TestSplitRangeEdges(t *testing.T) {
	t.Run("zero length", func(t *testing.T) {
		windows, err := SplitRange(schema.DateRange{Start: day(0), End: day(0)}, Days(7))
		require.NoError(t, err)
		assert.Equal(t, []schema.DateRange{{Start: day(0), End: day(0)}}, windows)
	})

	t.Run("shorter than size", func(t *testing.T) {
		windows, err := SplitRange(schema.DateRange{Start: day(0), End: day(3)}, Days(7))
		require.NoError(t, err)
		assert.Equal(t, []schema.DateRange{{Start: day(0), End: day(3)}}, windows)
	})

	t.Run("final window truncated", func(t *testing.T) {
		windows, err := SplitRange(schema.DateRange{Start: day(0), End: day(10)}, Days(7))
		require.NoError(t, err)
		require.Len(t, windows, 2)
		assert.Equal(t, day(10), windows[1].End)
	})

	t.Run("inverted", func(t *testing.T) {
		_, err := SplitRange(schema.DateRange{Start: day(2), End: day(1)}, Days(7))
		assert.ErrorIs(t, err, schema.ErrInvalidRange)
	})

	t.Run("size too small", func(t *testing.T) {
		_, err := SplitRange(schema.DateRange{Start: day(0), End: day(1)}, time.Microsecond)
		assert.ErrorIs(t, err, schema.ErrInvalidRange)
	})
}

func TestSplitRangeCoverage(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		startMs := rapid.Int64Range(0, 1<<40).Draw(t, "start")
		lengthMs := rapid.Int64Range(0, 120*24*3600*1000).Draw(t, "length")
		sizeDays := rapid.IntRange(1, 30).Draw(t, "sizeDays")

		r := schema.DateRange{
			Start: time.UnixMilli(startMs).UTC(),
			End:   time.UnixMilli(startMs + lengthMs).UTC(),
		}
		windows, err := SplitRange(r, Days(sizeDays))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !windows[0].Start.Equal(r.Start) {
			t.Fatalf("first window starts at %s, want %s", windows[0].Start, r.Start)
		}
		if !windows[len(windows)-1].End.Equal(r.End) {
			t.Fatalf("last window ends at %s, want %s", windows[len(windows)-1].End, r.End)
		}
		for i, w := range windows {
			if w.Start.After(w.End) {
				t.Fatalf("window %d is inverted", i)
			}
			if w.End.Sub(w.Start) > Days(sizeDays) {
				t.Fatalf("window %d is longer than the split size", i)
			}
			if i > 0 && !windows[i-1].End.Add(schema.TimeUnit).Equal(w.Start) {
				t.Fatalf("windows %d and %d are not adjacent", i-1, i)
			}
		}
	})
}

func TestRankEntries(t *testing.T) {
	entries := []schema.AggregatedEntry{
		{Title: "low", ImpactScore: ScoreEntry(0.9, schema.LowImpact)},
		{Title: "high", ImpactScore: ScoreEntry(0.5, schema.HighImpact)},
		{Title: "tie-a", ImpactScore: ScoreEntry(0.5, schema.MediumImpact)},
		{Title: "tie-b", ImpactScore: ScoreEntry(1.0, schema.LowImpact)},
	}
	RankEntries(entries)

	var titles []string
	for _, e := range entries {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, []string{"high", "tie-a", "tie-b", "low"}, titles)
}
