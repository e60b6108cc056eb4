package schema

import (
	"strings"
	"unicode"
)

// AbbreviateName formats "Samuel Huang" to "Samuel H".
// Bot accounts and single-word names are returned unchanged.
func AbbreviateName(name string) string {
	trimmed := strings.TrimSpace(name)
	if strings.Contains(trimmed, "[bot]") {
		return strings.Join(strings.Fields(trimmed), " ")
	}

	var parts []string
	for _, p := range strings.Fields(strings.Trim(trimmed, "()\"'`")) {
		p = strings.TrimFunc(p, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !strings.ContainsRune("-'.", r)
		})
		if p = strings.TrimSuffix(p, "."); p != "" {
			parts = append(parts, p)
		}
	}

	switch len(parts) {
	case 0:
		return trimmed
	case 1:
		return parts[0]
	default:
		last := []rune(parts[len(parts)-1])
		return parts[0] + " " + string(last[0])
	}
}

// FormatAuthors formats authors as "Samuel H, Jane D".
func FormatAuthors(authors []string) string {
	abbreviated := make([]string, 0, len(authors))
	for _, a := range authors {
		abbreviated = append(abbreviated, AbbreviateName(a))
	}
	return strings.Join(abbreviated, ", ")
}
