// Package rtypes holds the data-model types shared across the retrieval
// pipeline: Candidate, TracePayload, and the small closed enums carried on
// responses (signals, cache modes, cutoff reasons).
package rtypes

// Signal is one of the closed set of evidence kinds a Candidate can carry.
type Signal string

const (
	SignalExact               Signal = "exact"
	SignalRequiredTerm         Signal = "required_term"
	SignalRequiredTermAnd      Signal = "required_term_and"
	SignalRequiredTermsRRF     Signal = "required_terms_rrf"
	SignalGateRRF              Signal = "gate_rrf"
	SignalPhrase               Signal = "phrase"
	SignalAnchor               Signal = "anchor"
	SignalNumberContext        Signal = "number_context"
	SignalProximity            Signal = "proximity"
	SignalExceptions           Signal = "exceptions"
	SignalCodeExact            Signal = "code_exact"
	SignalPRF                  Signal = "prf"
	SignalExploration          Signal = "exploration"
	SignalQueryDecompRRF       Signal = "query_decomp_rrf"
	SignalDefinitionTitle      Signal = "definition_title"
)

// SemCacheMode is the closed enum of semantic-cache outcomes.
type SemCacheMode string

const (
	SemCacheBypass          SemCacheMode = "bypass"
	SemCacheExact           SemCacheMode = "exact"
	SemCacheSemantic        SemCacheMode = "semantic"
	SemCacheMiss            SemCacheMode = "miss"
	SemCacheGuardRevalidate SemCacheMode = "guard_revalidate"
)

// RequiredEffectStatus describes how the required-terms gate influenced the
// final result.
type RequiredEffectStatus string

const (
	RequiredEffective       RequiredEffectStatus = "required_effective"
	RequiredTermDropped     RequiredEffectStatus = "term_dropped_or_weakened"
	RequiredNoneMatched     RequiredEffectStatus = "required_none_matched"
	RequiredFallback        RequiredEffectStatus = "required_fallback"
)

// CutoffReason is the closed enum of why the candidate list was reduced.
type CutoffReason string

const (
	CutoffTimeBudget    CutoffReason = "time_budget"
	CutoffCandidateCap  CutoffReason = "candidate_cap"
	CutoffDynamic       CutoffReason = "dynamic_cutoff"
	CutoffStageCap      CutoffReason = "stage_cap"
)

// IntegrationStatus summarizes how completely the query could be answered
// from this manual.
type IntegrationStatus string

const (
	IntegrationComplete IntegrationStatus = "complete"
	IntegrationPartial  IntegrationStatus = "partial"
	IntegrationNone     IntegrationStatus = "none"
)

// Candidate is a scored node plus the evidence that produced the score.
type Candidate struct {
	NodeID        int
	Path          string
	Ref           string
	Score         float64
	Signals       map[Signal]bool
	MatchedTokens []string
	TokenHits     int
	MatchCoverage float64
	RankExplain   string
}

// HasSignal reports whether s is present on the candidate.
func (c Candidate) HasSignal(s Signal) bool { return c.Signals[s] }

// AddSignal records s on the candidate, initializing the set if needed.
func (c *Candidate) AddSignal(s Signal) {
	if c.Signals == nil {
		c.Signals = make(map[Signal]bool)
	}
	c.Signals[s] = true
}

// RequiredTermDFFilter is one entry of applied.required_terms_df_filtered.
type RequiredTermDFFilter struct {
	Term    string `json:"term"`
	Dropped bool   `json:"dropped"`
	Reason  string `json:"reason"`
}

// AppliedDiagnostics is the non-compact response's applied{} block.
type AppliedDiagnostics struct {
	SelectedGate               string                 `json:"selected_gate"`
	RequiredTermsDFFiltered    []RequiredTermDFFilter `json:"required_terms_df_filtered,omitempty"`
	RequiredTermsRelaxed       bool                   `json:"required_terms_relaxed,omitempty"`
	RequiredTermsRelaxReason   string                 `json:"required_terms_relax_reason,omitempty"`
	RequiredEffectStatus       RequiredEffectStatus   `json:"required_effect_status,omitempty"`
	RequiredFailureReason      string                 `json:"required_failure_reason,omitempty"`
	SemCacheHit                bool                   `json:"sem_cache_hit"`
	SemCacheMode               SemCacheMode           `json:"sem_cache_mode"`
	SemCacheScore              *float64               `json:"sem_cache_score,omitempty"`
	CutoffReason               CutoffReason           `json:"cutoff_reason,omitempty"`
	QueryDecomposed            bool                   `json:"query_decomposed,omitempty"`
	SubQueries                 []string               `json:"sub_queries,omitempty"`
}

// ClaimGraph is the on-demand diagnostic substructure: an empty graph when
// disabled, never an omitted field.
type ClaimGraph struct {
	Claims   []string `json:"claims"`
	Evidences []string `json:"evidences"`
	Edges    []string `json:"edges"`
}

// Summary is the retrieval-only diagnostics block of the non-compact
// response.
type Summary struct {
	ScannedFiles      int               `json:"scanned_files"`
	ScannedNodes      int               `json:"scanned_nodes"`
	Candidates        int               `json:"candidates"`
	FileBiasRatio     float64           `json:"file_bias_ratio"`
	ConflictCount     int               `json:"conflict_count"`
	GapCount          int               `json:"gap_count"`
	IntegrationStatus IntegrationStatus `json:"integration_status"`
}

// TracePayload is the saved result, pageable later via hits().
type TracePayload struct {
	TraceID            string       `json:"trace_id"`
	ManualID           string       `json:"manual_id"`
	Applied            AppliedDiagnostics `json:"applied"`
	Candidates         []Candidate  `json:"candidates"`
	IntegratedTop      []Candidate  `json:"integrated_top"`
	Unscanned          []string     `json:"unscanned"`
	Gaps               []string     `json:"gaps"`
	Conflicts          []string     `json:"conflicts"`
	GateRuns           []string     `json:"gate_runs"`
	FusionDebug        []string     `json:"fusion_debug"`
	Summary            Summary      `json:"summary"`
	SourceLatencyMs    int64        `json:"source_latency_ms"`
	ManualsFingerprint string       `json:"manuals_fingerprint"`
	ClaimGraph         ClaimGraph   `json:"claim_graph"`
}

// Clone returns a deep-enough copy for the cache to store independently of
// trace-store eviction.
func (t TracePayload) Clone() TracePayload {
	clone := t
	clone.Candidates = append([]Candidate(nil), t.Candidates...)
	clone.IntegratedTop = append([]Candidate(nil), t.IntegratedTop...)
	clone.Unscanned = append([]string(nil), t.Unscanned...)
	clone.Gaps = append([]string(nil), t.Gaps...)
	clone.Conflicts = append([]string(nil), t.Conflicts...)
	clone.GateRuns = append([]string(nil), t.GateRuns...)
	clone.FusionDebug = append([]string(nil), t.FusionDebug...)
	return clone
}
