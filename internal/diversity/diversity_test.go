package diversity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yo-mi2027/manualdex/internal/rtypes"
)

// TS01: a second candidate sharing a path with a higher-ranked one is
// decayed and may drop below a third, differently-pathed candidate.
func TestRerank_DecaysRepeatedPath(t *testing.T) {
	in := []rtypes.Candidate{
		{NodeID: 1, Path: "a.md", Score: 10},
		{NodeID: 2, Path: "a.md", Score: 9},
		{NodeID: 3, Path: "b.md", Score: 8},
	}
	out := Rerank(in, 1.0)
	require.Len(t, out, 3)
	assert.Equal(t, 1, out[0].NodeID)
	// node 2 decays to 9/(1+1*1) = 4.5, dropping behind node 3's 8.
	assert.Equal(t, 3, out[1].NodeID)
	assert.Equal(t, 2, out[2].NodeID)
}

// TS02: the first candidate at any path is never decayed.
func TestRerank_FirstOccurrenceUnaffected(t *testing.T) {
	in := []rtypes.Candidate{{NodeID: 1, Path: "a.md", Score: 5}}
	out := Rerank(in, 0.5)
	assert.Equal(t, 5.0, out[0].Score)
}

// TS03: cutoff caps at min(budget.max_candidates, 50) and reports
// candidate_cap when that cap actually reduced the set.
func TestCutoff_CapsAtBudget(t *testing.T) {
	var candidates []rtypes.Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, rtypes.Candidate{NodeID: i, Score: 10 - float64(i), MatchCoverage: 1.0})
	}
	out, reason := Cutoff(candidates, Budget{MaxCandidates: 5}, Config{CutoffScoreRatio: 0, CutoffMinCoverage: 0})
	assert.Len(t, out, 5)
	assert.Equal(t, rtypes.CutoffCandidateCap, reason)
}

// TS04: a tail candidate below both the score floor and the coverage floor
// is dropped and dynamic_cutoff is reported.
func TestCutoff_DropsBelowCoverageFloor(t *testing.T) {
	candidates := []rtypes.Candidate{
		{NodeID: 1, Score: 10, MatchCoverage: 1.0},
		{NodeID: 2, Score: 0.5, MatchCoverage: 0.05},
	}
	out, reason := Cutoff(candidates, Budget{MaxCandidates: 50}, Config{CutoffScoreRatio: 0.2, CutoffMinCoverage: 0.15})
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].NodeID)
	assert.Equal(t, rtypes.CutoffDynamic, reason)
}

// TS05: no reduction occurs when nothing exceeds the budget or falls below
// the floor; the reason is the empty string.
func TestCutoff_NoReductionReportsEmptyReason(t *testing.T) {
	candidates := []rtypes.Candidate{{NodeID: 1, Score: 10, MatchCoverage: 1.0}}
	out, reason := Cutoff(candidates, Budget{MaxCandidates: 50}, Config{CutoffScoreRatio: 0.2, CutoffMinCoverage: 0.15})
	assert.Len(t, out, 1)
	assert.Equal(t, rtypes.CutoffReason(""), reason)
}

// TS06: the per-file cap drops surplus candidates from one path and reports
// stage_cap.
func TestCutoff_PerFileCapLimitsOnePath(t *testing.T) {
	var candidates []rtypes.Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, rtypes.Candidate{NodeID: i, Path: "a.md", Score: 10 - float64(i), MatchCoverage: 1.0})
	}
	candidates = append(candidates, rtypes.Candidate{NodeID: 9, Path: "b.md", Score: 1, MatchCoverage: 1.0})

	out, reason := Cutoff(candidates, Budget{MaxCandidates: 50}, Config{PerFileCap: 2})
	require.Len(t, out, 3)
	assert.Equal(t, rtypes.CutoffStageCap, reason)
	paths := map[string]int{}
	for _, c := range out {
		paths[c.Path]++
	}
	assert.Equal(t, 2, paths["a.md"])
	assert.Equal(t, 1, paths["b.md"])
}
