package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TS01: normalize is idempotent.
func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Héllo\tWorld",
		"年次有給休暇の付与日数",
		"ＡＢＣ１２３",
		"foo  -  bar −── baz",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "not idempotent for %q", in)
	}
}

// TS02: casing and width variants of the same word normalize equal.
func TestNormalize_CaseAndWidthFold(t *testing.T) {
	assert.Equal(t, Normalize("HELLO"), Normalize("hello"))
	assert.Equal(t, Normalize("ABC"), Normalize("ＡＢＣ"))
}

// TS03: hyphen-class characters fold to ASCII hyphen.
func TestNormalize_HyphenClassFolds(t *testing.T) {
	want := Normalize("a-b")
	assert.Equal(t, want, Normalize("a‐b"))
	assert.Equal(t, want, Normalize("a‑b"))
	assert.Equal(t, want, Normalize("a–b"))
	assert.Equal(t, want, Normalize("a—b"))
	assert.Equal(t, want, Normalize("a−b"))
}

// TS04: CRLF and lone CR collapse to LF, and the number of line breaks is
// preserved (one logical newline per original line terminator).
func TestNormalize_NewlinesUnifiedLineCountPreserved(t *testing.T) {
	in := "line1\r\nline2\rline3\n"
	out := Normalize(in)
	assert.Equal(t, 3, countLineBreaks(out))
	assert.NotContains(t, out, "\r")
}

func countLineBreaks(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}

// TS05: digit variants fold to ASCII digits.
func TestNormalize_FullWidthDigitsFold(t *testing.T) {
	assert.Equal(t, Normalize("123"), Normalize("１２３"))
}

// TS06: runs of whitespace collapse to a single space.
func TestNormalize_WhitespaceRunsCollapse(t *testing.T) {
	assert.Equal(t, Normalize("a b"), Normalize("a     b"))
	assert.Equal(t, Normalize("a b"), Normalize("a\t\t b"))
}

