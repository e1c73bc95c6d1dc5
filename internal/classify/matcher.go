package classify

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"groupscholar-workforce-estimator/internal/dataset"
)

// Matcher tests occupation names for case-insensitive containment of any of its keywords.
// Keywords are normalized once at construction; a Matcher is safe for concurrent use.
type Matcher struct {
	keywords []string
}

// NewMatcher compiles keywords, dropping blanks and duplicates.
func NewMatcher(keywords ...string) *Matcher {
	seen := make(map[string]struct{}, len(keywords))
	compiled := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		key := foldText(kw)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		compiled = append(compiled, key)
	}
	return &Matcher{keywords: compiled}
}

func (m *Matcher) Match(text string) bool {
	folded := foldText(text)
	if folded == "" {
		return false
	}
	for _, kw := range m.keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// Filter returns the records whose occupation matches, in input order. The input is not modified.
func (m *Matcher) Filter(records []dataset.Record) []dataset.Record {
	out := make([]dataset.Record, 0, len(records))
	for _, record := range records {
		if m.Match(record.Occupation) {
			out = append(out, record)
		}
	}
	return out
}

// Keywords returns the normalized keywords.
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// foldText applies NFKC, collapses whitespace and case-folds. cases.Caser is stateful, so a
// fresh one is taken per call.
func foldText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}
