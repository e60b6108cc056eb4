package core

import (
	"regexp"
	"strings"

	"github.com/huangsam/recap/schema"
)

// Churn thresholds, in changed lines, for impact levels.
const (
	HighChurn   = 500
	MediumChurn = 100
)

// conventionalRe matches "type(scope)!: subject".
var conventionalRe = regexp.MustCompile(`^([a-zA-Z]+)(\([^)]*\))?(!)?:\s*(.+)$`)

// prefixRule maps a conventional-commit type to a category.
type prefixRule struct {
	category   schema.Category
	confidence float64
}

var prefixRules = map[string]prefixRule{
	"feat":     {schema.FeatureCategory, 0.9},
	"feature":  {schema.FeatureCategory, 0.9},
	"fix":      {schema.FixCategory, 0.9},
	"bugfix":   {schema.FixCategory, 0.85},
	"hotfix":   {schema.FixCategory, 0.85},
	"perf":     {schema.ImprovementCategory, 0.8},
	"refactor": {schema.ImprovementCategory, 0.75},
	"docs":     {schema.ImprovementCategory, 0.6},
	"style":    {schema.ImprovementCategory, 0.5},
	"test":     {schema.ImprovementCategory, 0.5},
	"build":    {schema.ImprovementCategory, 0.5},
	"ci":       {schema.ImprovementCategory, 0.5},
	"chore":    {schema.ImprovementCategory, 0.4},
}

// Keyword fallbacks for free-form titles, checked in order.
var keywordRules = []struct {
	words []string
	rule  prefixRule
}{
	{[]string{"fix", "fixes", "fixed", "bug", "crash", "regression", "revert"}, prefixRule{schema.FixCategory, 0.55}},
	{[]string{"add", "adds", "added", "introduce", "support", "implement", "new"}, prefixRule{schema.FeatureCategory, 0.5}},
}

// Classify turns one activity into an entry. Conventional-commit prefixes
// decide the category and confidence; churn decides the impact, and a
// breaking change is always high impact.
func Classify(a schema.Activity) schema.Entry {
	title := strings.TrimSpace(a.Title)
	rule := prefixRule{schema.ImprovementCategory, 0.35}
	breaking := strings.Contains(a.Body, "BREAKING CHANGE") || strings.Contains(a.Body, "BREAKING-CHANGE")

	if m := conventionalRe.FindStringSubmatch(title); m != nil {
		if r, ok := prefixRules[strings.ToLower(m[1])]; ok {
			rule = r
			title = m[4]
			breaking = breaking || m[3] == "!"
		} else {
			rule = keywordRule(title)
		}
	} else {
		rule = keywordRule(title)
	}

	impact := impactForChurn(a.Churn)
	if breaking {
		impact = schema.HighImpact
		rule.confidence = min(1, rule.confidence+0.05)
	}

	var authors []string
	if a.Author != "" {
		authors = []string{a.Author}
	}
	return schema.Entry{
		Title:       capitalize(title),
		Description: describe(a),
		Category:    rule.category,
		Impact:      impact,
		Confidence:  rule.confidence,
		Authors:     authors,
		OccurredAt:  a.OccurredAt,
		Provenance:  []string{a.ID},
	}
}

func keywordRule(title string) prefixRule {
	fields := strings.Fields(strings.ToLower(title))
	for _, kr := range keywordRules {
		for _, f := range fields {
			f = strings.Trim(f, ".,:;!?()[]\"'")
			for _, w := range kr.words {
				if f == w {
					return kr.rule
				}
			}
		}
	}
	return prefixRule{schema.ImprovementCategory, 0.35}
}

func impactForChurn(churn int) schema.Impact {
	switch {
	case churn >= HighChurn:
		return schema.HighImpact
	case churn >= MediumChurn:
		return schema.MediumImpact
	default:
		return schema.LowImpact
	}
}

// describe prefers the first body paragraph and falls back to the scope.
func describe(a schema.Activity) string {
	if body := strings.TrimSpace(a.Body); body != "" {
		para, _, _ := strings.Cut(body, "\n\n")
		return strings.Join(strings.Fields(para), " ")
	}
	if a.Scope != "" {
		return a.Scope
	}
	return string(a.Kind)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
