// Package diversity implements the per-path decay rerank and the dynamic
// cutoff, applied after RRF fusion and before a trace is persisted. Both
// stages are pure functions over a sorted candidate slice.
package diversity

import (
	"sort"

	"github.com/yo-mi2027/manualdex/internal/rtypes"
)

// Config holds the configuration-driven knobs this package consumes.
type Config struct {
	DecayAlpha      float64
	CutoffScoreRatio float64
	CutoffMinCoverage float64
	// PerFileCap bounds how many candidates may share one path
	// (MANUAL_FIND_PER_FILE_CANDIDATE_CAP). Zero means unbounded.
	PerFileCap int
}

// Budget bounds the number of candidates a single request may return.
type Budget struct {
	MaxCandidates int
}

const hardCap = 50

// Rerank applies the per-path decay: the k-th
// candidate (0-indexed) sharing a path with a higher-ranked candidate has
// its score multiplied by 1/(1+alpha*k). candidates must already be sorted
// by descending score; the result is re-sorted after decay.
func Rerank(candidates []rtypes.Candidate, alpha float64) []rtypes.Candidate {
	out := make([]rtypes.Candidate, len(candidates))
	copy(out, candidates)

	seenAtPath := make(map[string]int)
	for i := range out {
		k := seenAtPath[out[i].Path]
		if k > 0 {
			out[i].Score = out[i].Score / (1 + alpha*float64(k))
		}
		seenAtPath[out[i].Path] = k + 1
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

// Cutoff reduces candidates (already diversity-reranked) to at most
// min(budget.MaxCandidates, 50), then drops tail candidates falling below
// a coverage-aware floor relative to the head score. Returns the trimmed
// slice and the reason recorded when any reduction actually occurred (the
// zero value means nothing was cut).
func Cutoff(candidates []rtypes.Candidate, budget Budget, cfg Config) ([]rtypes.Candidate, rtypes.CutoffReason) {
	if len(candidates) == 0 {
		return candidates, ""
	}

	limit := hardCap
	if budget.MaxCandidates > 0 && budget.MaxCandidates < limit {
		limit = budget.MaxCandidates
	}

	reason := rtypes.CutoffReason("")
	out := candidates
	if cfg.PerFileCap > 0 {
		perPath := make(map[string]int)
		capped := out[:0:0]
		for _, c := range out {
			if perPath[c.Path] >= cfg.PerFileCap {
				reason = rtypes.CutoffStageCap
				continue
			}
			perPath[c.Path]++
			capped = append(capped, c)
		}
		out = capped
	}
	if len(out) > limit {
		out = out[:limit]
		reason = rtypes.CutoffCandidateCap
	}

	head := out[0].Score
	floor := head * cfg.CutoffScoreRatio

	kept := out[:0:0]
	for _, c := range out {
		if c.Score < floor && c.MatchCoverage < cfg.CutoffMinCoverage {
			reason = rtypes.CutoffDynamic
			continue
		}
		kept = append(kept, c)
	}
	return kept, reason
}
