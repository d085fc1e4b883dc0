// Package decompose pattern-matches a query for comparison structure
// ("A vs B", "A と B の違い") and emits one sub-query per side of the
// comparison, plus the whole comparison at a reduced weight.
package decompose

import (
	"regexp"
	"strings"
)

// SubQuery is one decomposed query plus its relative weight in the RRF fuse.
type SubQuery struct {
	Query  string
	Weight float64
}

// Decomposer pattern-matches comparison-structured queries.
type Decomposer struct {
	vsPattern      *regexp.Regexp
	jaDiffPattern  *regexp.Regexp
	betweenPattern *regexp.Regexp
}

// New returns a Decomposer ready to use.
func New() *Decomposer {
	return &Decomposer{
		// "A vs B", "A vs. B", "A versus B"
		vsPattern: regexp.MustCompile(`(?i)^(.+?)\s+(?:vs\.?|versus)\s+(.+)$`),
		// "A と B の違い", "A とB の違いは何ですか"
		jaDiffPattern: regexp.MustCompile(`^(.+?)と(.+?)の違い`),
		// "difference between A and B"
		betweenPattern: regexp.MustCompile(`(?i)^difference between\s+(.+?)\s+and\s+(.+)$`),
	}
}

// ShouldDecompose reports whether query matches a known comparison
// structure. Conservative: a query with no recognizable comparison operator
// is left undecomposed.
func (d *Decomposer) ShouldDecompose(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	if d.vsPattern.MatchString(query) {
		return true
	}
	if d.betweenPattern.MatchString(query) {
		return true
	}
	if d.jaDiffPattern.MatchString(query) {
		return true
	}
	return false
}

// Decompose returns up to maxSubQueries sub-queries for query. If the query
// does not match a comparison pattern, it returns the original query as the
// sole sub-query (the caller treats a single-item result as "no
// decomposition occurred").
func (d *Decomposer) Decompose(query string, maxSubQueries int) []SubQuery {
	query = strings.TrimSpace(query)
	if maxSubQueries <= 0 {
		maxSubQueries = 3
	}

	var operands []string
	switch {
	case d.vsPattern.MatchString(query):
		m := d.vsPattern.FindStringSubmatch(query)
		operands = []string{m[1], m[2]}
	case d.betweenPattern.MatchString(query):
		m := d.betweenPattern.FindStringSubmatch(query)
		operands = []string{m[1], m[2]}
	case d.jaDiffPattern.MatchString(query):
		m := d.jaDiffPattern.FindStringSubmatch(query)
		operands = []string{m[1], m[2]}
	default:
		return []SubQuery{{Query: query, Weight: 1.0}}
	}

	subs := make([]SubQuery, 0, len(operands)+1)
	for _, op := range operands {
		op = strings.TrimSpace(op)
		if op == "" {
			continue
		}
		subs = append(subs, SubQuery{Query: op, Weight: 1.0})
	}
	// The whole comparison, unsplit, is retained as a lower-weight sub-query
	// so that content mentioning both operands together (a comparison table,
	// for instance) is not excluded by the split.
	subs = append(subs, SubQuery{Query: query, Weight: 0.6})

	if len(subs) > maxSubQueries {
		subs = subs[:maxSubQueries]
	}
	return subs
}
