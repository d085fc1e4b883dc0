// Package fusion implements Reciprocal Rank Fusion over an arbitrary number
// of rankings. It serves both the two-term required-terms gate (up to three
// passes) and sub-query decomposition (up to N sub-queries).
package fusion

import "sort"

// DefaultK is the RRF constant used when no k is configured, matching the
// MANUAL_FIND_QUERY_DECOMP_RRF_K default.
const DefaultK = 60

// RankedItem is one (node, score) pair within a single ranking, supplied in
// descending score order.
type RankedItem struct {
	NodeID int
	Score  float64
}

// Fused is one node's fused result.
type Fused struct {
	NodeID       int
	RRFScore     float64
	BlendedScore float64
	// RankingsHit counts how many input rankings contained this node; a
	// value > 1 means more than one pass influenced its rank (used to
	// distinguish required_terms_rrf from required_term and
	// required_term_and).
	RankingsHit int
}

// RRFusion fuses rankings with base-weight mixing.
type RRFusion struct {
	K int
}

func New() *RRFusion { return &RRFusion{K: DefaultK} }

func NewWithK(k int) *RRFusion { return &RRFusion{K: k} }

// Fuse computes fused(node) = Σ 1/(k+rank_i(node)) across rankings, then
// blends BASE_WEIGHT·normalize(base_score) + (1-BASE_WEIGHT)·normalize(rrf)
// using a caller-supplied base score per node (e.g. the g0 BM25 score).
// Normalization is min-max within the evaluated candidate set.
func (f *RRFusion) Fuse(rankings [][]RankedItem, baseScore map[int]float64, baseWeight float64) []Fused {
	k := f.K
	if k <= 0 {
		k = DefaultK
	}

	rrf := make(map[int]float64)
	hits := make(map[int]int)
	for _, ranking := range rankings {
		for rank, item := range ranking {
			rrf[item.NodeID] += 1.0 / float64(k+rank+1)
			hits[item.NodeID]++
		}
	}

	rrfNorm := normalize(rrf)
	baseNorm := normalize(baseScore)

	out := make([]Fused, 0, len(rrf))
	for nodeID, score := range rrf {
		bn := baseNorm[nodeID] // zero if the node never appeared in base_score
		blended := baseWeight*bn + (1-baseWeight)*rrfNorm[nodeID]
		out = append(out, Fused{
			NodeID:       nodeID,
			RRFScore:     score,
			BlendedScore: blended,
			RankingsHit:  hits[nodeID],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BlendedScore != out[j].BlendedScore {
			return out[i].BlendedScore > out[j].BlendedScore
		}
		return out[i].NodeID < out[j].NodeID // deterministic tie-break
	})
	return out
}

// normalize performs min-max scaling to [0,1] over the given score map.
func normalize(scores map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	min, max := minMax(scores)
	if max == min {
		for id := range scores {
			out[id] = 1.0
		}
		return out
	}
	for id, s := range scores {
		out[id] = (s - min) / (max - min)
	}
	return out
}

func minMax(scores map[int]float64) (float64, float64) {
	first := true
	var min, max float64
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max
}
