// Package sparseindex builds the per-manual inverted index with
// term-frequency and document-frequency statistics, and exposes the BM25
// scorer with query-coverage and length-penalty corrections layered on top.
//
// The index is an arena: nodes are addressed by a stable integer node_id
// and postings store those ids rather than pointers. A built Index is an
// immutable value, safe to share across readers without locks.
package sparseindex

import (
	"math"

	"github.com/yo-mi2027/manualdex/internal/docstore"
	"github.com/yo-mi2027/manualdex/internal/normalize"
	"github.com/yo-mi2027/manualdex/internal/tokenize"
)

// BM25Params holds the standard BM25 tuning constants.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25Params is the standard k1=1.2, b=0.75 tuning.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75}
}

// ScoreWeights are the configuration-driven corrections layered on top of
// raw BM25. The scorer embeds no literal constants beyond BM25Params.
type ScoreWeights struct {
	QueryCoverageWeight  float64
	NodeCoverageWeight   float64
	LengthPenaltyWeight  float64
}

// Posting is one term's occurrence record within a node.
type Posting struct {
	NodeID        int
	TermFrequency int
	Positions     []int
}

// Index is a built, read-only sparse index for one manual at one
// fingerprint.
type Index struct {
	Fingerprint  string
	Params       BM25Params
	ScannedFiles int

	nodes        []docstore.Node
	nodeTokens   [][]tokenize.Token
	nodeLength   []int // token count per node, for BM25 length normalization
	nodeChars    []int
	avgNodeLen   float64
	postings     map[string][]Posting
	docFreq      map[string]int
	totalNodes   int
	nodeTermFreq []map[string]int
}

// Build tokenizes every node of a manual and constructs postings. Indexing
// is eager at first request per manual and rebuilt whenever the manual's
// fingerprint changes; callers serialize concurrent builds for the same
// manual (see Manager).
func Build(m *docstore.Manual, params BM25Params) *Index {
	idx := &Index{
		Fingerprint:  m.Fingerprint,
		Params:       params,
		ScannedFiles: m.ScannedFiles,
		nodes:        m.Nodes,
		postings:     make(map[string][]Posting),
		docFreq:      make(map[string]int),
		totalNodes:   len(m.Nodes),
	}

	idx.nodeTokens = make([][]tokenize.Token, len(m.Nodes))
	idx.nodeLength = make([]int, len(m.Nodes))
	idx.nodeChars = make([]int, len(m.Nodes))
	idx.nodeTermFreq = make([]map[string]int, len(m.Nodes))

	totalLen := 0
	for _, node := range m.Nodes {
		normText := normalize.Normalize(node.Text)
		toks := tokenize.Tokenize(normText)
		idx.nodeTokens[node.NodeID] = toks
		idx.nodeLength[node.NodeID] = len(toks)
		idx.nodeChars[node.NodeID] = len([]rune(normText))
		totalLen += len(toks)

		seen := make(map[string]int)
		positions := make(map[string][]int)
		for _, tok := range toks {
			seen[tok.Text]++
			positions[tok.Text] = append(positions[tok.Text], tok.Index)
		}
		idx.nodeTermFreq[node.NodeID] = seen
		for term, tf := range seen {
			idx.postings[term] = append(idx.postings[term], Posting{
				NodeID:        node.NodeID,
				TermFrequency: tf,
				Positions:     positions[term],
			})
			idx.docFreq[term]++
		}
	}

	if idx.totalNodes > 0 {
		idx.avgNodeLen = float64(totalLen) / float64(idx.totalNodes)
	}
	return idx
}

// NodeCount returns the number of indexed nodes.
func (idx *Index) NodeCount() int { return idx.totalNodes }

// Node returns the docstore.Node for a node_id.
func (idx *Index) Node(nodeID int) docstore.Node { return idx.nodes[nodeID] }

// Tokens returns the normalized tokens of a node, for signal computation.
func (idx *Index) Tokens(nodeID int) []tokenize.Token { return idx.nodeTokens[nodeID] }

// DocFreq returns the number of nodes containing term.
func (idx *Index) DocFreq(term string) int { return idx.docFreq[term] }

// DocFreqRatio returns DocFreq(term) / NodeCount(), used by the required-
// terms DF guard.
func (idx *Index) DocFreqRatio(term string) float64 {
	if idx.totalNodes == 0 {
		return 0
	}
	return float64(idx.docFreq[term]) / float64(idx.totalNodes)
}

// PostingOf returns the posting list for a normalized token.
func (idx *Index) PostingOf(token string) []Posting {
	return idx.postings[token]
}

// IDF is the standard BM25 inverse document frequency.
func (idx *Index) IDF(term string) float64 {
	df := idx.docFreq[term]
	n := float64(idx.totalNodes)
	return math.Log(1.0 + (n-float64(df)+0.5)/(float64(df)+0.5))
}

// ScoreBM25 computes the corrected BM25 score of a node against a set of
// (already-normalized, already-tokenized) query terms: raw BM25, multiplied
// by a query-coverage correction and a node-coverage correction, then
// reduced by a length penalty.
func (idx *Index) ScoreBM25(queryTerms []string, nodeID int, w ScoreWeights) float64 {
	unique := uniqueStrings(queryTerms)
	if len(unique) == 0 || idx.totalNodes == 0 {
		return 0
	}

	docLen := float64(idx.nodeLength[nodeID])
	avgLen := idx.avgNodeLen
	if avgLen == 0 {
		avgLen = 1
	}

	var raw float64
	hit := 0
	for _, term := range unique {
		tf := idx.termFrequencyIn(nodeID, term)
		if tf == 0 {
			continue
		}
		hit++
		if tokenize.IsCodeExactTerm(term) {
			// A code-exact token only ever matches verbatim; the match is
			// worth double its raw frequency.
			tf *= 2
		}
		idf := idx.IDF(term)
		tfComponent := (float64(tf) * (idx.Params.K1 + 1)) /
			(float64(tf) + idx.Params.K1*(1-idx.Params.B+idx.Params.B*(docLen/avgLen)))
		raw += idf * tfComponent
	}
	if raw == 0 {
		return 0
	}

	coverage := float64(hit) / float64(len(unique))
	raw *= 1 + w.QueryCoverageWeight*coverage
	raw *= 1 + w.NodeCoverageWeight*coverage

	nodeChars := float64(idx.nodeChars[nodeID])
	penalty := w.LengthPenaltyWeight * math.Log(1+nodeChars/4000)
	score := raw - penalty
	if score < 0 {
		score = 0
	}
	return score
}

func (idx *Index) termFrequencyIn(nodeID int, term string) int {
	return idx.nodeTermFreq[nodeID][term]
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
