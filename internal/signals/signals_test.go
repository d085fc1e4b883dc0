package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yo-mi2027/manualdex/internal/tokenize"
)

func weights() Weights {
	return Weights{
		PhraseWeight:        0.50,
		ProximityBonusNear:  1.00,
		ProximityBonusFar:   0.50,
		NumberContextBonus:  0.80,
		ProximityNearTokens: 5,
		ProximityFarTokens:  15,
	}
}

// TS01: every query token appears in order, adjacent, in the node -> phrase
// signal fires.
func TestCompute_PhraseSignal(t *testing.T) {
	query := tokenize.Tokenize("annual leave")
	node := tokenize.Tokenize("the annual leave policy applies")

	res := Compute(query, node, "Policy", nil, weights())
	assert.True(t, res.Signals["phrase"])
	assert.Greater(t, res.Bonus, 0.0)
}

// TS02: a digit token next to a unit-like word triggers number_context.
func TestCompute_NumberContextSignal(t *testing.T) {
	query := tokenize.Tokenize("how many days")
	node := tokenize.Tokenize("you are entitled to 20 days per year")

	res := Compute(query, node, "Entitlement", nil, weights())
	assert.True(t, res.Signals["number_context"])
}

// TS03: a code-exact query token only matches verbatim, never partially.
func TestCompute_CodeExactSignalRequiresVerbatimMatch(t *testing.T) {
	query := tokenize.Tokenize("see foo.bar")
	nodeMatch := tokenize.Tokenize("refer to foo.bar in the config")
	nodeNoMatch := tokenize.Tokenize("refer to foo.baz in the config")

	resMatch := Compute(query, nodeMatch, "Config", nil, weights())
	resNoMatch := Compute(query, nodeNoMatch, "Config", nil, weights())

	assert.True(t, resMatch.Signals["code_exact"])
	assert.False(t, resNoMatch.Signals["code_exact"])
}

// TS04: the node's title matching the query head triggers anchor and
// definition_title.
func TestCompute_AnchorSignalFromTitle(t *testing.T) {
	query := tokenize.Tokenize("vacation policy details")
	node := tokenize.Tokenize("some unrelated body text")

	res := Compute(query, node, "Vacation Policy", nil, weights())
	assert.True(t, res.Signals["anchor"])
	assert.True(t, res.Signals["definition_title"])
}

// TS05: exceptions vocabulary only fires when the node contains one of the
// caller-supplied terms.
func TestCompute_ExceptionsSignal(t *testing.T) {
	query := tokenize.Tokenize("policy")
	node := tokenize.Tokenize("this policy has a special carveout term")

	res := Compute(query, node, "Policy", []string{"carveout"}, weights())
	assert.True(t, res.Signals["exceptions"])
}
