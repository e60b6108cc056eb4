package gitclient

import (
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/recap/schema"
)

// ParseCommitLog parses `git log --numstat --pretty=format:--%H|%an|%ad|%s`
// output into one activity per commit. Churn is the sum of added and deleted
// lines over all files of the commit.
func ParseCommitLog(out []byte, scope string) []schema.Activity {
	var (
		activities []schema.Activity
		current    *schema.Activity
	)
	flush := func() {
		if current != nil {
			activities = append(activities, *current)
			current = nil
		}
	}

	for l := range strings.SplitSeq(string(out), "\n") {
		l = strings.Trim(l, " \t\r\n'")

		if strings.HasPrefix(l, "--") {
			// Commit header line
			flush()
			if a, ok := parseCommitHeader(l, scope); ok {
				current = &a
			}
			continue
		}
		if l == "" || current == nil {
			continue
		}

		// File stats line
		add, del, ok := parseFileStatsLine(l)
		if ok {
			current.Churn += add + del
		}
	}
	flush()
	return activities
}

// parseCommitHeader extracts hash, author, date and subject from a header line.
func parseCommitHeader(line, scope string) (schema.Activity, bool) {
	parts := strings.SplitN(line[2:], "|", 4) // hash|author|date|subject
	if len(parts) != 4 || parts[0] == "" {
		return schema.Activity{}, false
	}
	date, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return schema.Activity{}, false
	}
	return schema.Activity{
		ID:         parts[0],
		Kind:       schema.CommitsKind,
		Scope:      scope,
		Title:      strings.TrimSpace(parts[3]),
		Author:     parts[1],
		OccurredAt: date,
	}, true
}

// parseFileStatsLine parses "added<TAB>deleted<TAB>path".
func parseFileStatsLine(line string) (int, int, bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 {
		return 0, 0, false
	}
	return parseChurnValue(parts[0]), parseChurnValue(parts[1]), true
}

// parseChurnValue converts a churn string to int, handling "-" (binary files) as 0.
func parseChurnValue(s string) int {
	if s == "-" {
		return 0
	}
	if val, err := strconv.Atoi(s); err == nil && val >= 0 {
		return val
	}
	return 0
}
