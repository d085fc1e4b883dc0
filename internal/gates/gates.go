// Package gates implements the baseline gate (g0) and the required-terms
// gate (g_req), including the pre-search document-frequency guard and the
// two-term RRF fusion pass.
package gates

import (
	"sort"

	"github.com/yo-mi2027/manualdex/internal/fusion"
	"github.com/yo-mi2027/manualdex/internal/rtypes"
	"github.com/yo-mi2027/manualdex/internal/signals"
	"github.com/yo-mi2027/manualdex/internal/sparseindex"
	"github.com/yo-mi2027/manualdex/internal/tokenize"
)

// Config mirrors the configuration knobs gates consumes. Kept as a small
// local struct (rather than importing internal/config directly) so this
// package stays testable without pulling in YAML/env loading.
type Config struct {
	ScoreWeights          sparseindex.ScoreWeights
	SignalWeights         signals.Weights
	TooCommonRatio        float64
	TooRareRatio          float64
	SingleTermLambda      float64
	RequiredTermsRRFK     int
	// ScanHardCap bounds how many nodes a single gate pass may score
	// (MANUAL_FIND_SCAN_HARD_CAP). Zero means unbounded.
	ScanHardCap int
	// TwoTermPassDepth truncates the per-term A and B rankings before the
	// two-term RRF fuse. A node containing both terms always survives via
	// the A+B pass; whether it also sits inside the A and B tops decides
	// required_terms_rrf versus required_term_and. Zero means the default.
	TwoTermPassDepth int
}

const defaultTwoTermPassDepth = 50

// Gates evaluates g0 and g_req over a built sparse index.
type Gates struct {
	idx *sparseindex.Index
	cfg Config
}

func New(idx *sparseindex.Index, cfg Config) *Gates {
	return &Gates{idx: idx, cfg: cfg}
}

// RunG0 scores every node with BM25 plus lexical signal bonuses, keeping
// only nodes where at least one lexical signal other than `exceptions`
// alone is present.
func (g *Gates) RunG0(queryTokens []tokenize.Token, exceptionsVocab []string) []rtypes.Candidate {
	out, _ := g.RunG0Capped(queryTokens, exceptionsVocab)
	return out
}

// RunG0Capped is RunG0 honoring Config.ScanHardCap; the second return value
// reports whether the cap stopped the scan before every node was scored.
func (g *Gates) RunG0Capped(queryTokens []tokenize.Token, exceptionsVocab []string) ([]rtypes.Candidate, bool) {
	terms := tokenTexts(queryTokens)

	limit := g.idx.NodeCount()
	truncated := false
	if g.cfg.ScanHardCap > 0 && limit > g.cfg.ScanHardCap {
		limit = g.cfg.ScanHardCap
		truncated = true
	}

	var out []rtypes.Candidate
	for nodeID := 0; nodeID < limit; nodeID++ {
		node := g.idx.Node(nodeID)
		nodeTokens := g.idx.Tokens(nodeID)

		base := g.idx.ScoreBM25(terms, nodeID, g.cfg.ScoreWeights)
		sigRes := signals.Compute(queryTokens, nodeTokens, node.Title, exceptionsVocab, g.cfg.SignalWeights)

		nonExceptionSignal := false
		for s := range sigRes.Signals {
			if s != rtypes.SignalExceptions {
				nonExceptionSignal = true
				break
			}
		}
		if base <= 0 && !nonExceptionSignal {
			continue
		}

		c := rtypes.Candidate{
			NodeID:        nodeID,
			Path:          node.Path,
			Score:         base + sigRes.Bonus,
			Signals:       sigRes.Signals,
			MatchedTokens: sigRes.MatchedTokens,
			TokenHits:     sigRes.TokenHits,
			MatchCoverage: coverage(sigRes.TokenHits, len(uniqueTexts(terms))),
		}
		if base > 0 {
			c.AddSignal(rtypes.SignalExact)
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out, truncated
}

// DFFilter applies the pre-search DF guard to a set of required terms.
func (g *Gates) DFFilter(requiredTerms []string) (kept []string, decisions []rtypes.RequiredTermDFFilter) {
	for _, term := range requiredTerms {
		ratio := g.idx.DocFreqRatio(term)
		switch {
		case ratio > g.cfg.TooCommonRatio:
			decisions = append(decisions, rtypes.RequiredTermDFFilter{Term: term, Dropped: true, Reason: "too_common"})
		case ratio < g.cfg.TooRareRatio:
			decisions = append(decisions, rtypes.RequiredTermDFFilter{Term: term, Dropped: false, Reason: "too_rare"})
			kept = append(kept, term)
		default:
			kept = append(kept, term)
		}
	}
	return kept, decisions
}

// RunGReq executes the required-terms gate over the DF-filtered term set.
// g0Scores supplies the g0 base score per node, used both for the
// single-term λ·idf bonus and as the base ranking in the two-term RRF fuse.
func (g *Gates) RunGReq(filteredTerms []string, g0Scores map[int]float64) []rtypes.Candidate {
	switch len(filteredTerms) {
	case 0:
		return nil
	case 1:
		return g.runSingleTerm(filteredTerms[0], g0Scores)
	default:
		return g.runTwoTerm(filteredTerms[0], filteredTerms[1], g0Scores)
	}
}

func (g *Gates) runSingleTerm(term string, g0Scores map[int]float64) []rtypes.Candidate {
	var out []rtypes.Candidate
	idf := g.idx.IDF(term)
	for _, p := range g.idx.PostingOf(term) {
		node := g.idx.Node(p.NodeID)
		score := g0Scores[p.NodeID] + g.cfg.SingleTermLambda*idf
		c := rtypes.Candidate{
			NodeID:        p.NodeID,
			Path:          node.Path,
			Score:         score,
			MatchedTokens: []string{term},
			TokenHits:     1,
			MatchCoverage: 1.0,
		}
		c.AddSignal(rtypes.SignalRequiredTerm)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

func (g *Gates) runTwoTerm(t1, t2 string, g0Scores map[int]float64) []rtypes.Candidate {
	setA := nodeSet(g.idx.PostingOf(t1))
	setB := nodeSet(g.idx.PostingOf(t2))

	depth := g.cfg.TwoTermPassDepth
	if depth <= 0 {
		depth = defaultTwoTermPassDepth
	}
	// The A and B passes are score-truncated; only the A+B pass keeps full
	// membership. A node containing both terms is then rrf-tagged exactly
	// when a single-term top ranked it too, and and-tagged when only the
	// A+B pass carried it into the fuse.
	rankA := truncate(g.rankingFor([]string{t1}, setA), depth)
	rankB := truncate(g.rankingFor([]string{t2}, setB), depth)

	both := intersect(setA, setB)
	rankAB := g.rankingFor([]string{t1, t2}, both)

	k := g.cfg.RequiredTermsRRFK
	if k <= 0 {
		k = fusion.DefaultK
	}
	fused := fusion.NewWithK(k).Fuse([][]fusion.RankedItem{rankA, rankB, rankAB}, g0Scores, 0)

	var out []rtypes.Candidate
	for _, f := range fused {
		node := g.idx.Node(f.NodeID)
		c := rtypes.Candidate{
			NodeID:        f.NodeID,
			Path:          node.Path,
			Score:         f.BlendedScore,
			MatchCoverage: 1.0,
		}
		switch {
		case both[f.NodeID] && f.RankingsHit > 1:
			c.AddSignal(rtypes.SignalRequiredTermsRRF)
		case both[f.NodeID]:
			c.AddSignal(rtypes.SignalRequiredTermAnd)
		default:
			c.AddSignal(rtypes.SignalRequiredTerm)
		}
		c.AddSignal(rtypes.SignalGateRRF)
		if setA[f.NodeID] {
			c.MatchedTokens = append(c.MatchedTokens, t1)
		}
		if setB[f.NodeID] {
			c.MatchedTokens = append(c.MatchedTokens, t2)
		}
		c.TokenHits = len(c.MatchedTokens)
		out = append(out, c)
	}
	return out
}

func truncate(items []fusion.RankedItem, depth int) []fusion.RankedItem {
	if len(items) > depth {
		return items[:depth]
	}
	return items
}

func (g *Gates) rankingFor(terms []string, nodes map[int]bool) []fusion.RankedItem {
	var items []fusion.RankedItem
	for nodeID := range nodes {
		items = append(items, fusion.RankedItem{
			NodeID: nodeID,
			Score:  g.idx.ScoreBM25(terms, nodeID, g.cfg.ScoreWeights),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].NodeID < items[j].NodeID
	})
	return items
}

func nodeSet(postings []sparseindex.Posting) map[int]bool {
	set := make(map[int]bool, len(postings))
	for _, p := range postings {
		set[p.NodeID] = true
	}
	return set
}

func intersect(a, b map[int]bool) map[int]bool {
	out := make(map[int]bool)
	for id := range a {
		if b[id] {
			out[id] = true
		}
	}
	return out
}

func tokenTexts(toks []tokenize.Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func uniqueTexts(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func coverage(hit, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total)
}
