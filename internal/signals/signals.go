// Package signals computes the per-candidate lexical bonuses: phrase,
// proximity, number-context, code-exact, anchor/definition-title, and
// exceptions. prf and exploration are cross-candidate signals and are
// computed in internal/manualcore instead, where the full ranked candidate
// set is available.
package signals

import (
	"strings"
	"unicode"

	"github.com/yo-mi2027/manualdex/internal/rtypes"
	"github.com/yo-mi2027/manualdex/internal/tokenize"
)

// Weights are the configuration-driven bonus magnitudes; nothing here is
// hard-coded.
type Weights struct {
	PhraseWeight        float64
	ProximityBonusNear  float64
	ProximityBonusFar   float64
	NumberContextBonus  float64
	// ProximityNearTokens / ProximityFarTokens are the token distances
	// within which the near and far proximity bonuses apply.
	ProximityNearTokens int
	ProximityFarTokens  int
}

// Result is the additive bonus plus the signals it justifies.
type Result struct {
	Bonus         float64
	Signals       map[rtypes.Signal]bool
	MatchedTokens []string
	TokenHits     int
}

// Compute evaluates every lexical signal of a node against a query's
// tokens.
func Compute(queryTokens, nodeTokens []tokenize.Token, title string, exceptionsVocab []string, w Weights) Result {
	res := Result{Signals: make(map[rtypes.Signal]bool)}

	nodeText := make(map[string][]tokenize.Token)
	for _, nt := range nodeTokens {
		nodeText[nt.Text] = append(nodeText[nt.Text], nt)
	}

	matched := make(map[string]bool)
	for _, qt := range queryTokens {
		if occs, ok := nodeText[qt.Text]; ok && len(occs) > 0 {
			matched[qt.Text] = true
		}
	}
	res.TokenHits = len(matched)
	for t := range matched {
		res.MatchedTokens = append(res.MatchedTokens, t)
	}

	if hasPhrase(queryTokens, nodeTokens) {
		res.Bonus += w.PhraseWeight
		res.Signals[rtypes.SignalPhrase] = true
	}

	if prox := proximityBonus(queryTokens, nodeTokens, w); prox > 0 {
		res.Bonus += prox
		res.Signals[rtypes.SignalProximity] = true
	}

	if hasNumberContext(nodeTokens) {
		res.Bonus += w.NumberContextBonus
		res.Signals[rtypes.SignalNumberContext] = true
	}

	// The scoring effect of a code-exact match lives in the index, which
	// doubles the term's tf contribution; here the verbatim match only tags
	// the signal.
	for _, qt := range queryTokens {
		if qt.CodeExact {
			if occs, ok := nodeText[qt.Text]; ok && len(occs) > 0 {
				res.Signals[rtypes.SignalCodeExact] = true
				break
			}
		}
	}

	if isAnchorMatch(queryTokens, title, nodeTokens) {
		res.Signals[rtypes.SignalAnchor] = true
		res.Signals[rtypes.SignalDefinitionTitle] = true
	}

	if len(exceptionsVocab) > 0 && containsAny(nodeTokens, exceptionsVocab) {
		res.Signals[rtypes.SignalExceptions] = true
	}

	return res
}

// hasPhrase reports whether the query's token sequence appears, in order,
// with each consecutive pair adjacent (position distance <= 1).
func hasPhrase(query, node []tokenize.Token) bool {
	if len(query) == 0 {
		return false
	}
	for start := 0; start < len(node); start++ {
		if node[start].Text != query[0].Text {
			continue
		}
		prev := node[start]
		qi := 1
		ni := start + 1
		for qi < len(query) && ni < len(node) {
			if node[ni].Text == query[qi].Text && tokenize.IsPhrase(prev, node[ni]) {
				prev = node[ni]
				qi++
				ni++
				continue
			}
			ni++
		}
		if qi == len(query) {
			return true
		}
	}
	return false
}

// proximityBonus returns the near- or far-proximity bonus when any two
// distinct query tokens occur within the configured distances in the node.
func proximityBonus(query, node []tokenize.Token, w Weights) float64 {
	if len(query) < 2 {
		return 0
	}
	positions := make(map[string][]int)
	for _, nt := range node {
		positions[nt.Text] = append(positions[nt.Text], nt.Index)
	}

	best := 0
	minDist := -1
	for i := 0; i < len(query); i++ {
		for j := i + 1; j < len(query); j++ {
			if query[i].Text == query[j].Text {
				continue
			}
			for _, pi := range positions[query[i].Text] {
				for _, pj := range positions[query[j].Text] {
					d := pi - pj
					if d < 0 {
						d = -d
					}
					if minDist == -1 || d < minDist {
						minDist = d
					}
				}
			}
		}
	}
	if minDist == -1 {
		return 0
	}
	if minDist <= w.ProximityNearTokens {
		best = 2
	} else if minDist <= w.ProximityFarTokens {
		best = 1
	}
	switch best {
	case 2:
		return w.ProximityBonusNear
	case 1:
		return w.ProximityBonusFar
	default:
		return 0
	}
}

// hasNumberContext reports a digit token adjacent to a unit or
// preposition-like neighbor.
func hasNumberContext(node []tokenize.Token) bool {
	for i, t := range node {
		if !isDigitToken(t.Text) {
			continue
		}
		if i > 0 && isUnitLike(node[i-1].Text) {
			return true
		}
		if i+1 < len(node) && isUnitLike(node[i+1].Text) {
			return true
		}
	}
	return false
}

func isDigitToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var unitLikeWords = map[string]bool{
	"day": true, "days": true, "year": true, "years": true,
	"month": true, "months": true, "hour": true, "hours": true,
	"of": true, "per": true, "times": true,
	"日": true, "年": true, "ヶ月": true, "時間": true, "回": true,
}

func isUnitLike(s string) bool {
	return unitLikeWords[strings.ToLower(s)]
}

// isAnchorMatch reports whether the node's title, or its first line of
// tokens, matches the query's head term.
func isAnchorMatch(query []tokenize.Token, title string, node []tokenize.Token) bool {
	if len(query) == 0 {
		return false
	}
	head := query[0].Text
	if strings.Contains(strings.ToLower(title), head) {
		return true
	}
	firstLine := 0
	if len(node) > 0 {
		firstLine = node[0].Line
	}
	for _, nt := range node {
		if nt.Line != firstLine {
			break
		}
		if nt.Text == head {
			return true
		}
	}
	return false
}

func containsAny(node []tokenize.Token, vocab []string) bool {
	set := make(map[string]bool, len(vocab))
	for _, v := range vocab {
		set[strings.ToLower(v)] = true
	}
	for _, nt := range node {
		if set[nt.Text] {
			return true
		}
	}
	return false
}
