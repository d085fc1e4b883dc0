package manualcore

import (
	"sort"

	"github.com/yo-mi2027/manualdex/internal/rtypes"
	"github.com/yo-mi2027/manualdex/internal/sparseindex"
	"github.com/yo-mi2027/manualdex/internal/tokenize"
)

// prfBoostScale is kept small relative to the BM25 score range so feedback
// re-ranks within a gate-admitted set but never promotes a candidate across
// a gate boundary.
const (
	prfBoostScale   = 0.15
	prfTermsPerNode = 3
)

// applyCrossCandidateSignals computes the two pipeline-level signals that
// need the full ranked candidate set rather than a single node: prf
// (pseudo-relevance feedback from the top results) and exploration
// (injecting low-ranked, coverage-clearing candidates to fight stagnation).
// candidates must already be sorted by descending score.
func (p *Pipeline) applyCrossCandidateSignals(idx *sparseindex.Index, candidates []rtypes.Candidate, queryTokens []tokenize.Token) []rtypes.Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	out := make([]rtypes.Candidate, len(candidates))
	copy(out, candidates)

	out = applyPRF(idx, out, queryTokens)
	out = p.applyExploration(out)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

func applyPRF(idx *sparseindex.Index, candidates []rtypes.Candidate, queryTokens []tokenize.Token) []rtypes.Candidate {
	topK := 5
	if topK > len(candidates) {
		topK = len(candidates)
	}

	queryTerms := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		queryTerms[t.Text] = true
	}

	boost := make(map[string]float64)
	for i := 0; i < topK; i++ {
		for term, idf := range distinctiveTerms(idx, candidates[i].NodeID, queryTerms) {
			if cur, ok := boost[term]; !ok || idf > cur {
				boost[term] = idf
			}
		}
	}
	if len(boost) == 0 {
		return candidates
	}

	for i := topK; i < len(candidates); i++ {
		c := &candidates[i]
		bonus := 0.0
		matchedTerms := 0
		for _, tok := range idx.Tokens(c.NodeID) {
			if idf, ok := boost[tok.Text]; ok {
				bonus += prfBoostScale * idf
				matchedTerms++
				if matchedTerms >= prfTermsPerNode {
					break
				}
			}
		}
		if bonus > 0 {
			c.Score += bonus
			c.AddSignal(rtypes.SignalPRF)
		}
	}
	return candidates
}

// distinctiveTerms returns up to prfTermsPerNode of a node's highest-idf
// terms that are not already part of the query, keyed by term with its idf.
func distinctiveTerms(idx *sparseindex.Index, nodeID int, queryTerms map[string]bool) map[string]float64 {
	seen := make(map[string]bool)
	type scored struct {
		term string
		idf  float64
	}
	var candidates []scored
	for _, tok := range idx.Tokens(nodeID) {
		if queryTerms[tok.Text] || seen[tok.Text] {
			continue
		}
		seen[tok.Text] = true
		candidates = append(candidates, scored{term: tok.Text, idf: idx.IDF(tok.Text)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].idf > candidates[j].idf })
	if len(candidates) > prfTermsPerNode {
		candidates = candidates[:prfTermsPerNode]
	}
	out := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		out[c.term] = c.idf
	}
	return out
}

// applyExploration injects a MANUAL_FIND_EXPLORATION_RATIO share of the
// lowest-ranked candidates that still cleared the coverage floor, scaling
// their score up by MANUAL_FIND_EXPLORATION_SCORE_SCALE so they have a
// realistic chance of surviving the dynamic cutoff.
func (p *Pipeline) applyExploration(candidates []rtypes.Candidate) []rtypes.Candidate {
	if p.cfg.ExplorationRatio <= 0 || len(candidates) == 0 {
		return candidates
	}

	var tailIdx []int
	for i, c := range candidates {
		if c.MatchCoverage >= p.cfg.CutoffMinCoverage {
			tailIdx = append(tailIdx, i)
		}
	}
	if len(tailIdx) == 0 {
		return candidates
	}
	// Work from the lowest-ranked end of the qualifying set.
	sort.Sort(sort.Reverse(sort.IntSlice(tailIdx)))

	count := int(p.cfg.ExplorationRatio * float64(len(candidates)))
	if count > len(tailIdx) {
		count = len(tailIdx)
	}
	for i := 0; i < count; i++ {
		idx := tailIdx[i]
		candidates[idx].Score *= 1 + p.cfg.ExplorationScoreScale
		candidates[idx].AddSignal(rtypes.SignalExploration)
	}
	return candidates
}
