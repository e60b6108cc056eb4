// Package textsim provides the near-duplicate text measure used by the cache and the aggregator.
package textsim

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords are dropped before comparing token sets.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "by": {}, "for": {}, "from": {},
	"in": {}, "into": {}, "of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "with": {},
}

var folder = cases.Fold()

// Normalize lower-cases, trims, folds case and strips diacritics.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(folder.String(out))
}

// Tokens returns the normalized word set of s.
func Tokens(s string) map[string]struct{} {
	words := strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		set[stem(w)] = struct{}{}
	}
	return set
}

// stem strips common inflection suffixes so "added" and "add" compare equal.
func stem(w string) string {
	const minStem = 3
	strip := func(suffix string) bool {
		if strings.HasSuffix(w, suffix) && len(w)-len(suffix) >= minStem {
			w = w[:len(w)-len(suffix)]
			return true
		}
		return false
	}

	switch {
	case strip("ing"), strip("ed"):
	case strings.HasSuffix(w, "es") && hasSibilantStem(w[:len(w)-2]):
		strip("es")
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		strip("s")
	}
	strip("e")
	return w
}

func hasSibilantStem(s string) bool {
	for _, end := range []string{"x", "s", "z", "ch", "sh"} {
		if strings.HasSuffix(s, end) {
			return true
		}
	}
	return false
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets are identical.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Similarity is the token-Jaccard similarity of two texts.
func Similarity(a, b string) float64 {
	return Jaccard(Tokens(a), Tokens(b))
}
