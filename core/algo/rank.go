package algo

import (
	"cmp"
	"slices"

	"github.com/huangsam/recap/schema"
)

// ScoreEntry returns confidence × impact weight.
func ScoreEntry(confidence float64, impact schema.Impact) float64 {
	return confidence * schema.ImpactWeight(impact)
}

// RankEntries sorts entries by impact score in descending order.
// Entries with equal scores keep their relative order.
func RankEntries(entries []schema.AggregatedEntry) {
	slices.SortStableFunc(entries, func(a, b schema.AggregatedEntry) int {
		return cmp.Compare(b.ImpactScore, a.ImpactScore)
	})
}
