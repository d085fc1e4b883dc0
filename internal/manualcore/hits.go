package manualcore

import (
	"context"

	"github.com/yo-mi2027/manualdex/internal/apperrors"
)

// HitsRequest is the hits() paging input.
type HitsRequest struct {
	TraceID string
	Kind    string
	Offset  int
	Limit   int
}

// HitsResponse is a paged window over one kind of a trace's recorded data.
// Items holds []CompactCandidate for kind=candidates/integrated_top and
// []string for every other kind.
type HitsResponse struct {
	Items []any `json:"items"`
	Total int   `json:"total"`
}

var validHitsKinds = map[string]bool{
	"candidates": true, "unscanned": true, "conflicts": true, "gaps": true,
	"integrated_top": true, "claims": true, "evidences": true, "edges": true,
	"gate_runs": true, "fusion_debug": true,
}

// Hits pages over a previously persisted trace. Stateless: it never
// re-executes the pipeline, and an expired or unknown trace_id is
// not_found.
func (p *Pipeline) Hits(req HitsRequest) (HitsResponse, *apperrors.Error) {
	if req.Offset < 0 {
		return HitsResponse{}, apperrors.New(apperrors.InvalidParameter, "offset must be >= 0")
	}
	if req.Limit < 1 {
		return HitsResponse{}, apperrors.New(apperrors.InvalidParameter, "limit must be >= 1")
	}
	if !validHitsKinds[req.Kind] {
		return HitsResponse{}, apperrors.Newf(apperrors.InvalidParameter, "unknown hits kind", map[string]any{"kind": req.Kind})
	}

	payload, ok := p.traces.Get(req.TraceID)
	if !ok {
		return HitsResponse{}, apperrors.NotFoundTrace(req.TraceID)
	}

	var all []any
	switch req.Kind {
	case "candidates":
		for _, c := range toCompactCandidates(payload.Candidates) {
			all = append(all, c)
		}
	case "integrated_top":
		for _, c := range toCompactCandidates(payload.IntegratedTop) {
			all = append(all, c)
		}
	case "unscanned":
		all = toAnySlice(payload.Unscanned)
	case "conflicts":
		all = toAnySlice(payload.Conflicts)
	case "gaps":
		all = toAnySlice(payload.Gaps)
	case "claims":
		all = toAnySlice(payload.ClaimGraph.Claims)
	case "evidences":
		all = toAnySlice(payload.ClaimGraph.Evidences)
	case "edges":
		all = toAnySlice(payload.ClaimGraph.Edges)
	case "gate_runs":
		all = toAnySlice(payload.GateRuns)
	case "fusion_debug":
		all = toAnySlice(payload.FusionDebug)
	}

	total := len(all)
	start := req.Offset
	if start > total {
		start = total
	}
	end := start + req.Limit
	if end > total {
		end = total
	}
	return HitsResponse{Items: all[start:end], Total: total}, nil
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// TocEntry is one node of a manual's table of contents.
type TocEntry struct {
	Path      string `json:"path"`
	Title     string `json:"title"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Toc lists every node of a manual read-only, without running a query. It
// reuses the same document enumeration find() relies on, avoiding a second
// document-walking implementation.
func (p *Pipeline) Toc(ctx context.Context, manualID string) ([]TocEntry, *apperrors.Error) {
	if manualID == "" || manualID == ReservedManualID {
		return nil, apperrors.New(apperrors.InvalidParameter, "manual_id must be a non-reserved, non-empty id")
	}
	idx, err := p.idxMgr.Get(ctx, manualID)
	if err != nil {
		return nil, apperrors.NotFoundManual(manualID)
	}
	out := make([]TocEntry, idx.NodeCount())
	for i := 0; i < idx.NodeCount(); i++ {
		n := idx.Node(i)
		out[i] = TocEntry{Path: n.Path, Title: n.Title, StartLine: n.StartLine, EndLine: n.EndLine}
	}
	return out, nil
}
