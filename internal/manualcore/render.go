package manualcore

import "github.com/yo-mi2027/manualdex/internal/rtypes"

// FindResponse is the non-compact find() response shape.
type FindResponse struct {
	TraceID     string                    `json:"trace_id"`
	Applied     rtypes.AppliedDiagnostics `json:"applied"`
	Summary     rtypes.Summary            `json:"summary"`
	NextActions []string                  `json:"next_actions"`
}

// CompactCandidate is the compressed candidate item shared by the compact
// find() response and hits(kind=candidates).
type CompactCandidate struct {
	Ref           string   `json:"ref"`
	Score         float64  `json:"score"`
	MatchedTokens []string `json:"matched_tokens"`
	TokenHits     int      `json:"token_hits,omitempty"`
	MatchCoverage float64  `json:"match_coverage"`
	RankExplain   string   `json:"rank_explain,omitempty"`
}

// CompactFindResponse is the public compact find() response shape.
type CompactFindResponse struct {
	TraceID       string              `json:"trace_id"`
	Candidates    []CompactCandidate  `json:"candidates"`
	Status        string              `json:"status"`
	FailureReason string              `json:"failure_reason,omitempty"`
	InlineHits    []CompactCandidate  `json:"inline_hits,omitempty"`
	NextActions   []string            `json:"next_actions"`
}

// Render builds the non-compact response from a persisted trace payload.
func Render(payload rtypes.TracePayload) FindResponse {
	return FindResponse{
		TraceID:     payload.TraceID,
		Applied:     payload.Applied,
		Summary:     payload.Summary,
		NextActions: []string{},
	}
}

// RenderCompact builds the public compact response. inlineLimit is clamped
// to 5; a non-positive inlineLimit omits inline hits entirely.
func RenderCompact(payload rtypes.TracePayload, inlineLimit int) CompactFindResponse {
	resp := CompactFindResponse{
		TraceID:     payload.TraceID,
		Candidates:  toCompactCandidates(payload.Candidates),
		Status:      string(payload.Summary.IntegrationStatus),
		NextActions: []string{},
	}
	if payload.Summary.IntegrationStatus == rtypes.IntegrationNone {
		resp.FailureReason = payload.Applied.RequiredFailureReason
		if resp.FailureReason == "" {
			resp.FailureReason = "no_candidates"
		}
	}
	if inlineLimit > 0 {
		if inlineLimit > 5 {
			inlineLimit = 5
		}
		top := payload.IntegratedTop
		if len(top) > inlineLimit {
			top = top[:inlineLimit]
		}
		resp.InlineHits = toCompactCandidates(top)
	}
	return resp
}

func toCompactCandidates(candidates []rtypes.Candidate) []CompactCandidate {
	out := make([]CompactCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = CompactCandidate{
			Ref:           c.Ref,
			Score:         c.Score,
			MatchedTokens: c.MatchedTokens,
			TokenHits:     c.TokenHits,
			MatchCoverage: c.MatchCoverage,
			RankExplain:   c.RankExplain,
		}
	}
	return out
}
