package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: an ASCII word run becomes exactly one token.
func TestTokenize_ASCIIWordRun(t *testing.T) {
	toks := Tokenize("hello world")
	require.Len(t, toks, 2)
	assert.Equal(t, "hello", toks[0].Text)
	assert.Equal(t, "world", toks[1].Text)
	assert.False(t, toks[0].CodeExact)
}

// TS02: a dotted identifier is a single code-exact token.
func TestTokenize_CodeExactToken(t *testing.T) {
	toks := Tokenize("see foo.bar for details")
	require.Len(t, toks, 4)
	assert.Equal(t, "foo.bar", toks[1].Text)
	assert.True(t, toks[1].CodeExact)
}

// TS03: a version-number-like token is code-exact too.
func TestTokenize_VersionNumberCodeExact(t *testing.T) {
	toks := Tokenize("upgrade to 1.2.3 now")
	require.Len(t, toks, 4)
	assert.Equal(t, "1.2.3", toks[1].Text)
	assert.True(t, toks[1].CodeExact)
}

// TS04: CJK runs are split into overlapping n-grams enabling substring
// matching without a dictionary.
func TestTokenize_CJKNGrams(t *testing.T) {
	toks := Tokenize("年次有給休暇")
	require.NotEmpty(t, toks)
	var texts []string
	for _, tk := range toks {
		texts = append(texts, tk.Text)
	}
	assert.Contains(t, texts, "休暇")
}

// TS05: tokens adjacent in position are a phrase; distant ones are not.
func TestIsPhrase_AdjacencyWithinOne(t *testing.T) {
	toks := Tokenize("a b c d")
	require.Len(t, toks, 4)
	assert.True(t, IsPhrase(toks[0], toks[1]))
	assert.False(t, IsPhrase(toks[0], toks[3]))
}

// TS06: newlines increment the line counter without emitting a token.
func TestTokenize_NewlinesTrackLines(t *testing.T) {
	toks := Tokenize("first\nsecond")
	require.Len(t, toks, 2)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
}

// TS07: IsCodeExactTerm matches the tokenizer's code-exact rule, so index
// terms can be classified without re-tokenizing.
func TestIsCodeExactTerm(t *testing.T) {
	assert.True(t, IsCodeExactTerm("foo.bar"))
	assert.True(t, IsCodeExactTerm("1.2.3"))
	assert.False(t, IsCodeExactTerm("plain"))
	assert.False(t, IsCodeExactTerm("#"))
}
