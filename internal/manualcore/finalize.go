package manualcore

import (
	"fmt"

	"github.com/yo-mi2027/manualdex/internal/rtypes"
	"github.com/yo-mi2027/manualdex/internal/sparseindex"
)

// finalize assigns each candidate its public ref, computes the
// retrieval-only summary diagnostics, and assembles the trace payload.
// file_bias_ratio and integration_status are computed over the final
// candidate set; required_effect_status additionally needs to know whether
// g_req was even attempted (carried via applied.selected_gate).
func (p *Pipeline) finalize(req FindRequest, idx *sparseindex.Index, final []rtypes.Candidate, applied rtypes.AppliedDiagnostics, keptRequiredTerms []string, dfDecisions []rtypes.RequiredTermDFFilter, gateRuns, fusionDebug []string, priorUnscanned map[string]bool) rtypes.TracePayload {
	if priorUnscanned != nil {
		final = filterByUnscanned(final, idx, priorUnscanned)
	}

	withRefs := make([]rtypes.Candidate, len(final))
	for i, c := range final {
		node := idx.Node(c.NodeID)
		c.Ref = fmt.Sprintf("%s:%d-%d", node.Path, node.StartLine, node.EndLine)
		withRefs[i] = c
	}

	applied.RequiredEffectStatus, applied.RequiredFailureReason = requiredEffectStatus(req.RequiredTerms, applied.SelectedGate, withRefs, dfDecisions)

	gaps := gapsOf(keptRequiredTerms, dfDecisions, withRefs)
	conflicts := []string{} // no contradiction detection in the lexical-only path

	summary := rtypes.Summary{
		ScannedFiles:      idx.ScannedFiles,
		ScannedNodes:      idx.NodeCount(),
		Candidates:        len(withRefs),
		FileBiasRatio:      fileBiasRatio(withRefs),
		ConflictCount:     len(conflicts),
		GapCount:          len(gaps),
		IntegrationStatus: integrationStatus(req.RequiredTerms, keptRequiredTerms, withRefs),
	}

	integratedTop := withRefs
	if len(integratedTop) > 5 {
		integratedTop = integratedTop[:5]
	}

	claimGraph := rtypes.ClaimGraph{Claims: []string{}, Evidences: []string{}, Edges: []string{}}
	if req.IncludeClaimGraph && p.cfg.ClaimGraphEnabled {
		claimGraph = buildClaimGraph(idx, integratedTop)
	}

	return rtypes.TracePayload{
		Applied:       applied,
		Candidates:    withRefs,
		IntegratedTop: integratedTop,
		Unscanned:     []string{},
		Gaps:          gaps,
		Conflicts:     conflicts,
		GateRuns:      gateRuns,
		FusionDebug:   fusionDebug,
		Summary:       summary,
		ClaimGraph:    claimGraph,
	}
}

func filterByUnscanned(candidates []rtypes.Candidate, idx *sparseindex.Index, unscanned map[string]bool) []rtypes.Candidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if unscanned[idx.Node(c.NodeID).Path] {
			out = append(out, c)
		}
	}
	return out
}

// requiredEffectStatus decides required_effect_status from the final
// candidate set: how many final candidates carry a required-term signal,
// whether the required gate was selected, and whether the DF guard dropped
// anything.
func requiredEffectStatus(requiredTerms []string, selectedGate string, final []rtypes.Candidate, dfDecisions []rtypes.RequiredTermDFFilter) (rtypes.RequiredEffectStatus, string) {
	if len(requiredTerms) == 0 {
		return "", ""
	}

	reqHits := 0
	for _, c := range final {
		if c.HasSignal(rtypes.SignalRequiredTerm) || c.HasSignal(rtypes.SignalRequiredTermAnd) || c.HasSignal(rtypes.SignalRequiredTermsRRF) {
			reqHits++
		}
	}

	anyDropped := false
	for _, d := range dfDecisions {
		if d.Dropped {
			anyDropped = true
		}
	}

	switch {
	case reqHits > 0 && selectedGate == "g_req":
		return rtypes.RequiredEffective, ""
	case reqHits > 0:
		return rtypes.RequiredFallback, "required_gate_empty_but_terms_present_in_fallback_results"
	case anyDropped:
		return rtypes.RequiredTermDropped, "required_term_dropped_by_df_guard"
	default:
		return rtypes.RequiredNoneMatched, "no_candidate_carried_a_required_term_signal"
	}
}

// gapsOf lists the required terms this request could not make count: those
// dropped by the DF guard, plus any kept term absent from every final
// candidate's matched tokens. This is the lexical-only analogue of a
// "missing evidence" diagnostic; no semantic gap detection is implemented.
func gapsOf(kept []string, dfDecisions []rtypes.RequiredTermDFFilter, final []rtypes.Candidate) []string {
	var gaps []string
	for _, d := range dfDecisions {
		if d.Dropped {
			gaps = append(gaps, d.Term)
		}
	}

	matched := make(map[string]bool)
	for _, c := range final {
		for _, t := range c.MatchedTokens {
			matched[t] = true
		}
	}
	for _, t := range kept {
		if !matched[t] {
			gaps = append(gaps, t)
		}
	}
	if gaps == nil {
		gaps = []string{}
	}
	return gaps
}

// fileBiasRatio is 1 - distinct_paths/candidates: a value near 1 means the
// result set concentrates on very few files. Exploration-injected
// candidates count toward this ratio.
func fileBiasRatio(candidates []rtypes.Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	paths := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		paths[c.Path] = true
	}
	return 1 - float64(len(paths))/float64(len(candidates))
}

// buildClaimGraph derives the minimal retrieval-only claim graph: one claim
// per integrated-top node (its title), one evidence per node ref, and an
// edge tying each claim to its evidence. No cross-document contradiction
// analysis happens here; the graph only reflects what retrieval surfaced.
func buildClaimGraph(idx *sparseindex.Index, top []rtypes.Candidate) rtypes.ClaimGraph {
	g := rtypes.ClaimGraph{Claims: []string{}, Evidences: []string{}, Edges: []string{}}
	for _, c := range top {
		node := idx.Node(c.NodeID)
		g.Claims = append(g.Claims, node.Title)
		g.Evidences = append(g.Evidences, c.Ref)
		g.Edges = append(g.Edges, fmt.Sprintf("%s -> %s", node.Title, c.Ref))
	}
	return g
}

func integrationStatus(requiredTerms, kept []string, final []rtypes.Candidate) rtypes.IntegrationStatus {
	if len(final) == 0 {
		return rtypes.IntegrationNone
	}
	if len(requiredTerms) == 0 {
		return rtypes.IntegrationComplete
	}

	matched := make(map[string]bool)
	for _, c := range final {
		for _, t := range c.MatchedTokens {
			matched[t] = true
		}
	}
	hits := 0
	for _, t := range kept {
		if matched[t] {
			hits++
		}
	}
	switch {
	case len(kept) > 0 && hits == len(kept):
		return rtypes.IntegrationComplete
	case hits > 0:
		return rtypes.IntegrationPartial
	default:
		return rtypes.IntegrationNone
	}
}
