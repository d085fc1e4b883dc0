// Package normalize implements the text normalization stage that underlies
// all scoring: Unicode NFKC, width unification, casefold, whitespace
// collapsing, and symbol-variant folding. Normalize is idempotent and
// preserves line count.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var hyphenClass = map[rune]bool{
	'-': true, '‐': true, '‑': true, '–': true, '—': true, '−': true,
}

var middleDotClass = map[rune]bool{
	'・': true, '･': true,
}

var bracketFold = map[rune]rune{
	'（': '(', '）': ')',
	'［': '[', '］': ']',
	'｛': '{', '｝': '}',
	'＜': '<', '＞': '>',
	'／': '/', '＼': '\\',
}

var digitFold = map[rune]rune{
	'０': '0', '１': '1', '２': '2', '３': '3', '４': '4',
	'５': '5', '６': '6', '７': '7', '８': '8', '９': '9',
}

// Normalize applies, in order: NFKC, width unification, casefold, newline
// unification, tab/full-width-space to space with hyphen/middle-dot/
// bracket/digit folding, whitespace run collapsing. It is idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = width.Fold.String(s)
	s = strings.ToLower(s)
	s = unifyNewlines(s)
	s = foldRunes(s)
	s = collapseWhitespace(s)
	return s
}

func unifyNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

func foldRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '　':
			b.WriteRune(' ')
		case hyphenClass[r]:
			b.WriteRune('-')
		case middleDotClass[r]:
			b.WriteRune('・')
		case bracketFold[r] != 0:
			b.WriteRune(bracketFold[r])
		case digitFold[r] != 0:
			b.WriteRune(digitFold[r])
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseWhitespace collapses runs of horizontal whitespace to a single
// space, without touching newlines, so line count is preserved.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = collapseSpacesInLine(line)
	}
	return strings.Join(lines, "\n")
}

func collapseSpacesInLine(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	prevSpace := false
	for _, r := range line {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}
