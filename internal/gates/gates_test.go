package gates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yo-mi2027/manualdex/internal/docstore"
	"github.com/yo-mi2027/manualdex/internal/normalize"
	"github.com/yo-mi2027/manualdex/internal/provider"
	"github.com/yo-mi2027/manualdex/internal/rtypes"
	"github.com/yo-mi2027/manualdex/internal/signals"
	"github.com/yo-mi2027/manualdex/internal/sparseindex"
	"github.com/yo-mi2027/manualdex/internal/tokenize"
)

func testConfig() Config {
	return Config{
		ScoreWeights:      sparseindex.ScoreWeights{QueryCoverageWeight: 0.35, NodeCoverageWeight: 0.50, LengthPenaltyWeight: 0.20},
		SignalWeights:     signals.Weights{PhraseWeight: 0.5, ProximityBonusNear: 1, ProximityBonusFar: 0.5, NumberContextBonus: 0.8, ProximityNearTokens: 5, ProximityFarTokens: 15},
		TooCommonRatio:    0.80,
		TooRareRatio:      0.005,
		SingleTermLambda:  1.0,
		RequiredTermsRRFK: 60,
	}
}

func buildIndex(t *testing.T, files map[string]string) *sparseindex.Index {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "hr")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	cp := provider.NewFSProvider(root)
	m, err := docstore.Build(context.Background(), cp, "hr")
	require.NoError(t, err)
	return sparseindex.Build(m, sparseindex.DefaultBM25Params())
}

func tokensOf(q string) []tokenize.Token {
	return tokenize.Tokenize(normalize.Normalize(q))
}

// TS01: a single required term strictly contained in one node
// is accepted by g_req.
func TestRunGReq_SingleRequiredTermHit(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		"a.md": "# Leave\nannual paid leave entitlement details",
		"b.md": "# Payroll\nsalary payment schedule and bank transfer",
		"c.md": "# Travel\nexpense reimbursement for business trips",
	})
	g := New(idx, testConfig())
	kept, decisions := g.DFFilter([]string{"leave"})
	require.Equal(t, []string{"leave"}, kept)
	require.Empty(t, decisions)

	g0 := g.RunG0(tokensOf("leave entitlement"), nil)
	candidates := g.RunGReq(kept, scoresOf(g0))
	require.NotEmpty(t, candidates)
	require.True(t, candidates[0].HasSignal("required_term"))
}

// TS02: with two required terms, the node containing both ranks first. It
// sits inside the A and B tops as well as the A+B pass, so more than one
// pass influenced its rank and it carries required_terms_rrf.
func TestRunGReq_TwoTermsFusionRanksBothFirst(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		"a.md": "# N1\nalpha only content here",
		"b.md": "# N2\nbeta only content here",
		"c.md": "# N3\nalpha and beta both appear here",
	})
	g := New(idx, testConfig())
	kept, _ := g.DFFilter([]string{"alpha", "beta"})
	require.Len(t, kept, 2)

	g0 := g.RunG0(tokensOf("alpha beta"), nil)
	candidates := g.RunGReq(kept, scoresOf(g0))
	require.NotEmpty(t, candidates)

	top := candidates[0]
	require.Equal(t, "c.md", top.Path)
	require.True(t, top.HasSignal("required_terms_rrf"))
	require.False(t, top.HasSignal("required_term_and"))
	require.True(t, top.HasSignal("gate_rrf"))
}

// TS02b: a node containing both terms that falls outside the truncated A
// and B tops is carried into the fuse by the A+B pass alone, so it carries
// required_term_and rather than required_terms_rrf.
func TestRunGReq_TwoTermsAndOnlyNodeOutsidePassDepth(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		"a.md": "# A\nalpha alpha alpha alpha strong emphasis",
		"b.md": "# B\nbeta beta beta beta strong emphasis",
		"c.md": "# C\nalpha beta mentioned once in passing",
	})
	cfg := testConfig()
	cfg.TwoTermPassDepth = 1
	g := New(idx, cfg)
	kept, _ := g.DFFilter([]string{"alpha", "beta"})
	require.Len(t, kept, 2)

	g0 := g.RunG0(tokensOf("alpha beta"), nil)
	candidates := g.RunGReq(kept, scoresOf(g0))
	require.NotEmpty(t, candidates)

	var andNode *rtypes.Candidate
	for i := range candidates {
		if candidates[i].Path == "c.md" {
			andNode = &candidates[i]
		}
	}
	require.NotNil(t, andNode)
	require.True(t, andNode.HasSignal("required_term_and"))
	require.False(t, andNode.HasSignal("required_terms_rrf"))
	require.True(t, andNode.HasSignal("gate_rrf"))
}

// TS03: a term appearing in almost every node is dropped by
// the DF guard as too_common.
func TestDFFilter_DropsTooCommonTerm(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 10; i++ {
		files[string(rune('a'+i))+".md"] = "# N\nubiquitous word appears everywhere plus unique" + string(rune('a'+i))
	}
	idx := buildIndex(t, files)
	g := New(idx, testConfig())

	kept, decisions := g.DFFilter([]string{"ubiquitous"})
	require.Empty(t, kept)
	require.Len(t, decisions, 1)
	require.True(t, decisions[0].Dropped)
	require.Equal(t, "too_common", decisions[0].Reason)
}

func scoresOf(candidates []rtypes.Candidate) map[int]float64 {
	out := make(map[int]float64, len(candidates))
	for _, c := range candidates {
		out[c.NodeID] = c.Score
	}
	return out
}

// TS04: the scan hard cap stops g0 after the configured number of nodes and
// reports the truncation.
func TestRunG0Capped_HonorsScanHardCap(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 6; i++ {
		files[string(rune('a'+i))+".md"] = "# N\nshared term here"
	}
	idx := buildIndex(t, files)

	cfg := testConfig()
	cfg.ScanHardCap = 4
	g := New(idx, cfg)

	candidates, truncated := g.RunG0Capped(tokensOf("shared term"), nil)
	require.True(t, truncated)
	require.LessOrEqual(t, len(candidates), 4)
}
