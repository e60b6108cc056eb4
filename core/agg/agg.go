// Package agg combines chunk results into one deduplicated, ranked document.
package agg

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/huangsam/recap/core/algo"
	"github.com/huangsam/recap/internal/textsim"
	"github.com/huangsam/recap/schema"
)

// DefaultSimilarityThreshold is the title similarity at which two entries are duplicates.
const DefaultSimilarityThreshold = 0.8

// Options controls deduplication.
type Options struct {
	SimilarityThreshold float64 // 0 uses DefaultSimilarityThreshold
	DedupBy             string
	Keep                schema.DedupKeep
}

// DefaultOptions keeps the first-seen entry of a duplicate pair.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: DefaultSimilarityThreshold,
		DedupBy:             schema.DedupByTitle,
		Keep:                schema.KeepFirst,
	}
}

// Combine merges chunk results, given in chunk order, into a document for the
// requested range. It fails with ErrAllChunksFailed when no chunk succeeded.
func Combine(results []schema.ChunkResult, requested schema.DateRange, opts Options) (*schema.AggregatedDocument, error) {
	if opts.DedupBy != "" && opts.DedupBy != schema.DedupByTitle {
		return nil, fmt.Errorf("unsupported dedup field %q", opts.DedupBy)
	}
	threshold := cmp.Or(opts.SimilarityThreshold, DefaultSimilarityThreshold)

	meta := schema.Metadata{
		TotalChunks:    len(results),
		RangeStart:     requested.Start,
		RangeEnd:       requested.End,
		CategoryCounts: map[schema.Category]int{},
	}

	var (
		failures []error
		warnings []string
		buckets  = map[schema.Category][]schema.Entry{}
	)
	for _, r := range results {
		meta.ElapsedMs += r.ElapsedMs()
		payload, err := r.Outcome.Unpack()
		if err != nil {
			meta.Failed++
			failures = append(failures, fmt.Errorf("%s: %w", r.ChunkID, err))
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("chunk %s failed: %v", r.ChunkID, err))
			continue
		}
		meta.Succeeded++
		warnings = append(warnings, payload.Warnings...)
		for _, c := range sortedCategories(payload.Entries) {
			for _, e := range payload.Entries[c] {
				if e.Category == "" {
					e.Category = c
				}
				if len(e.Provenance) == 0 {
					e.Provenance = []string{r.ChunkID}
				}
				buckets[c] = append(buckets[c], e)
			}
		}
	}

	if meta.Succeeded == 0 {
		if len(failures) == 0 {
			return nil, fmt.Errorf("%w: no chunks to combine", schema.ErrAllChunksFailed)
		}
		return nil, fmt.Errorf("%w: %w", schema.ErrAllChunksFailed, errors.Join(failures...))
	}
	meta.Incomplete = meta.Failed > 0
	meta.Warnings = append(meta.Warnings, warnings...)

	doc := &schema.AggregatedDocument{
		Entries:  make(map[schema.Category][]schema.AggregatedEntry, len(buckets)),
		Metadata: meta,
	}
	for c, entries := range buckets {
		ranked := rank(dedup(entries, threshold, opts.Keep))
		doc.Entries[c] = ranked
		doc.Metadata.CategoryCounts[c] = len(ranked)
	}
	return doc, nil
}

// candidate is an accepted entry with its token set cached.
type candidate struct {
	entry  schema.Entry
	tokens map[string]struct{}
}

// dedup drops entries whose title is at least threshold similar to an already
// accepted title. The provenance of a dropped entry is merged into the survivor.
func dedup(entries []schema.Entry, threshold float64, keep schema.DedupKeep) []schema.Entry {
	var accepted []candidate
	for _, e := range entries {
		tokens := textsim.Tokens(e.Title)
		match := -1
		for i, a := range accepted {
			if textsim.Jaccard(tokens, a.tokens) >= threshold {
				match = i
				break
			}
		}
		if match < 0 {
			accepted = append(accepted, candidate{entry: e, tokens: tokens})
			continue
		}

		survivor := &accepted[match]
		provenance := mergeProvenance(survivor.entry.Provenance, e.Provenance)
		authors := mergeProvenance(survivor.entry.Authors, e.Authors)
		replaced := keep == schema.KeepHigherConfidence && e.Confidence > survivor.entry.Confidence
		if replaced {
			*survivor = candidate{entry: e, tokens: tokens}
		}
		survivor.entry.Provenance = provenance
		survivor.entry.Authors = authors
		if replaced {
			accepted = absorb(accepted, match, threshold)
		}
	}

	out := make([]schema.Entry, len(accepted))
	for i, a := range accepted {
		out[i] = a.entry
	}
	return out
}

// absorb folds every accepted entry within threshold of accepted[i] into it.
// The new survivor's title may collide with entries its predecessor did not.
// A folded entry with higher confidence takes over, so the scan repeats until
// nothing collides.
func absorb(accepted []candidate, i int, threshold float64) []candidate {
	for changed := true; changed; {
		changed = false
		for j := 0; j < len(accepted); j++ {
			if j == i || textsim.Jaccard(accepted[i].tokens, accepted[j].tokens) < threshold {
				continue
			}
			survivor, dropped := accepted[i], accepted[j]
			provenance := mergeProvenance(survivor.entry.Provenance, dropped.entry.Provenance)
			authors := mergeProvenance(survivor.entry.Authors, dropped.entry.Authors)
			if dropped.entry.Confidence > survivor.entry.Confidence {
				survivor, changed = dropped, true
			}
			survivor.entry.Provenance = provenance
			survivor.entry.Authors = authors
			accepted[i] = survivor
			accepted = slices.Delete(accepted, j, j+1)
			if j < i {
				i--
			}
			j--
		}
	}
	return accepted
}

func mergeProvenance(a, b []string) []string {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func rank(entries []schema.Entry) []schema.AggregatedEntry {
	out := make([]schema.AggregatedEntry, len(entries))
	for i, e := range entries {
		out[i] = schema.AggregatedEntry{
			Title:       strings.TrimSpace(e.Title),
			Description: e.Description,
			Category:    e.Category,
			Impact:      e.Impact,
			Confidence:  e.Confidence,
			ImpactScore: algo.ScoreEntry(e.Confidence, e.Impact),
			Authors:     e.Authors,
			OccurredAt:  e.OccurredAt,
			Provenance:  e.Provenance,
		}
	}
	algo.RankEntries(out)
	return out
}

func sortedCategories(m map[schema.Category][]schema.Entry) []schema.Category {
	return slices.Sorted(maps.Keys(m))
}
