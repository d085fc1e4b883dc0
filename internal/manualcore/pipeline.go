// Package manualcore implements the Pipeline orchestrator: the
// find/hits/invalidate contract that wires together normalization,
// tokenization, the sparse index, the gates, query decomposition, RRF
// fusion, diversity rerank, the semantic cache and the trace store.
//
// A request flows validate -> fingerprint -> cache lookup -> gates ->
// decomposition -> fusion -> diversity -> cutoff -> trace persistence.
// Failures downstream of validation degrade to diagnostics on the response
// rather than errors.
package manualcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yo-mi2027/manualdex/internal/adaptivestats"
	"github.com/yo-mi2027/manualdex/internal/apperrors"
	"github.com/yo-mi2027/manualdex/internal/cache"
	"github.com/yo-mi2027/manualdex/internal/config"
	"github.com/yo-mi2027/manualdex/internal/decompose"
	"github.com/yo-mi2027/manualdex/internal/diversity"
	"github.com/yo-mi2027/manualdex/internal/fusion"
	"github.com/yo-mi2027/manualdex/internal/gates"
	"github.com/yo-mi2027/manualdex/internal/normalize"
	"github.com/yo-mi2027/manualdex/internal/provider"
	"github.com/yo-mi2027/manualdex/internal/rtypes"
	"github.com/yo-mi2027/manualdex/internal/signals"
	"github.com/yo-mi2027/manualdex/internal/sparseindex"
	"github.com/yo-mi2027/manualdex/internal/tokenize"
	"github.com/yo-mi2027/manualdex/internal/tracestore"
)

// ReservedManualID is the root id find() rejects: it names the directory
// holding all manuals, not a searchable manual.
const ReservedManualID = "manuals"

// Budget is the optional per-request budget{time_ms, max_candidates}.
type Budget struct {
	TimeMs        int
	MaxCandidates int
}

// InlineHits is the optional inline_hits{limit} request block.
type InlineHits struct {
	Limit int
}

// FindRequest is the Go-typed find() input. Wire-level type coercion
// (rejecting a bool passed where an int is expected, and vice versa) is the
// responsibility of the transport decoding this request (internal/mcpserver,
// cmd/manualdexd); by the time a FindRequest reaches the Pipeline every
// field already has its correct Go type.
type FindRequest struct {
	Query                  string
	ManualID               string
	RequiredTerms          []string
	ExpandScope            bool
	OnlyUnscannedFromTrace string
	IncludeClaimGraph      bool
	UseCache               *bool
	Budget                 *Budget
	InlineHits             *InlineHits
	// Compact marks that this call entered through the public compact
	// surface, which always bypasses the semantic cache.
	Compact bool
}

// Pipeline owns every per-process collaborator the find/hits/invalidate
// contract needs.
type Pipeline struct {
	cfg    config.Config
	cp     provider.ContentProvider
	clock  provider.Clock
	ids    provider.IDGenerator
	logger *slog.Logger

	idxMgr     *sparseindex.Manager
	decomposer *decompose.Decomposer
	cache      *cache.Cache
	traces     *tracestore.Store
	stats      *adaptivestats.Sink
}

// Option configures optional Pipeline collaborators.
type Option func(*Pipeline)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithIDGenerator overrides the default uuid-based id generator.
func WithIDGenerator(ids provider.IDGenerator) Option {
	return func(p *Pipeline) { p.ids = ids }
}

// WithClock overrides the default system clock.
func WithClock(clock provider.Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// New builds a Pipeline from config and a content provider. lockDir is the
// per-manual cross-process build lock directory; empty disables the flock
// and leaves build serialization process-local only.
func New(cfg config.Config, cp provider.ContentProvider, lockDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		cp:     cp,
		clock:  provider.SystemClock{},
		ids:    provider.UUIDGenerator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.idxMgr = sparseindex.NewManager(cp, sparseindex.DefaultBM25Params(), lockDir)
	p.decomposer = decompose.New()
	p.cache = cache.New(cfg.SemCacheMaxKeep, time.Duration(cfg.SemCacheTTLSec)*time.Second, p.clock)
	p.traces = tracestore.New(cfg.TraceMaxKeep, time.Duration(cfg.TraceTTLSec)*time.Second, p.clock)
	p.stats = adaptivestats.NewSink(cfg.AdaptiveStatsPath)
	return p
}

// Close releases the adaptive-stats background writer. Safe to call once at
// process shutdown.
func (p *Pipeline) Close() { p.stats.Close() }

// validate applies the structural request validation, independent of any
// manual's content.
func (p *Pipeline) validate(req FindRequest) *apperrors.Error {
	if req.Query == "" {
		return apperrors.New(apperrors.InvalidParameter, "query must not be empty")
	}
	if req.ManualID == "" {
		return apperrors.New(apperrors.InvalidParameter, "manual_id must not be empty")
	}
	if req.ManualID == ReservedManualID {
		return apperrors.Newf(apperrors.InvalidParameter, "manual_id is the reserved root id",
			map[string]any{"reason": "reserved_manual_id"})
	}
	if len(req.RequiredTerms) < 1 || len(req.RequiredTerms) > 2 {
		return apperrors.New(apperrors.InvalidParameter, "required_terms must contain 1 or 2 terms")
	}
	for _, t := range req.RequiredTerms {
		if t == "" {
			return apperrors.New(apperrors.InvalidParameter, "required_terms entries must not be empty")
		}
	}
	if req.Budget != nil {
		if req.Budget.TimeMs < 1 {
			return apperrors.New(apperrors.InvalidParameter, "budget.time_ms must be >= 1")
		}
		if req.Budget.MaxCandidates < 1 {
			return apperrors.New(apperrors.InvalidParameter, "budget.max_candidates must be >= 1")
		}
	}
	if req.InlineHits != nil {
		if req.InlineHits.Limit < 1 || req.InlineHits.Limit > 5 {
			return apperrors.New(apperrors.InvalidParameter, "inline_hits.limit must be in 1..5")
		}
	}
	return nil
}

// Find executes the full find() contract and returns the persisted trace
// payload. Callers render it into either response shape (see Render /
// RenderCompact).
func (p *Pipeline) Find(ctx context.Context, req FindRequest) (rtypes.TracePayload, *apperrors.Error) {
	if err := p.validate(req); err != nil {
		return rtypes.TracePayload{}, err
	}

	start := p.clock.Now()
	deadline := time.Time{}
	if req.Budget != nil && req.Budget.TimeMs > 0 {
		deadline = start.Add(time.Duration(req.Budget.TimeMs) * time.Millisecond)
	}

	idx, ierr := p.idxMgr.Get(ctx, req.ManualID)
	if ierr != nil {
		if errors.Is(ierr, os.ErrNotExist) {
			return rtypes.TracePayload{}, apperrors.NotFoundManual(req.ManualID)
		}
		return rtypes.TracePayload{}, apperrors.Newf(apperrors.InvalidScope, "failed to read manual",
			map[string]any{"manual_id": req.ManualID, "error": ierr.Error()})
	}

	var priorUnscanned map[string]bool
	if req.OnlyUnscannedFromTrace != "" {
		prior, ok := p.traces.Get(req.OnlyUnscannedFromTrace)
		if !ok {
			return rtypes.TracePayload{}, apperrors.NotFoundTrace(req.OnlyUnscannedFromTrace)
		}
		priorUnscanned = toSet(prior.Unscanned)
	}

	budgetTimeMs, budgetMaxCandidates := 0, 0
	if req.Budget != nil {
		budgetTimeMs, budgetMaxCandidates = req.Budget.TimeMs, req.Budget.MaxCandidates
	}
	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	key := cache.Key{
		ManualsFingerprint:  idx.Fingerprint,
		Query:               req.Query,
		RequiredTerms:       req.RequiredTerms,
		BudgetTimeMs:        budgetTimeMs,
		BudgetMaxCandidates: budgetMaxCandidates,
		ScopeBits:           fmt.Sprintf("expand=%v", req.ExpandScope),
	}
	lookup := cache.LookupRequest{
		Key:                    key,
		OnlyUnscannedFromTrace: req.OnlyUnscannedFromTrace != "",
		IncludeClaimGraph:      req.IncludeClaimGraph,
		UseCache:               useCache && p.cfg.SemCacheEnabled,
		CompactPublicPath:      req.Compact,
		MaxGapCeiling:          p.cfg.SemCacheMaxSummaryGap,
		MaxConflictCeiling:     p.cfg.SemCacheMaxSummaryConflict,
	}
	mode, cached, hit := p.cache.Lookup(lookup)
	if hit {
		payload := cached
		payload.TraceID = p.ids.NewID()
		payload.Applied.SemCacheHit = true
		payload.Applied.SemCacheMode = rtypes.SemCacheExact
		p.traces.Put(payload)
		p.recordStats(key, payload, true)
		return payload, nil
	}

	payload := p.runPipeline(ctx, req, idx, priorUnscanned, deadline, mode)
	payload.TraceID = p.ids.NewID()
	payload.ManualID = req.ManualID
	payload.ManualsFingerprint = idx.Fingerprint
	payload.SourceLatencyMs = p.clock.Now().Sub(start).Milliseconds()

	p.traces.Put(payload)
	if useCache && p.cfg.SemCacheEnabled && !lookup.OnlyUnscannedFromTrace && !lookup.IncludeClaimGraph && !lookup.CompactPublicPath {
		p.cache.Insert(key, payload)
	}
	p.recordStats(key, payload, false)
	return payload, nil
}

// runPipeline performs the gate → decompose → diversity → cutoff stages
// over a resolved manual index and builds the resulting trace payload.
func (p *Pipeline) runPipeline(ctx context.Context, req FindRequest, idx *sparseindex.Index, priorUnscanned map[string]bool, deadline time.Time, cacheMode rtypes.SemCacheMode) rtypes.TracePayload {
	gcfg := gates.Config{
		ScoreWeights: sparseindex.ScoreWeights{
			QueryCoverageWeight: p.cfg.SparseQueryCoverageWeight,
			NodeCoverageWeight:  p.cfg.LexicalCoverageWeight,
			LengthPenaltyWeight: p.cfg.LexicalLengthPenaltyWeight,
		},
		SignalWeights: signals.Weights{
			PhraseWeight:        p.cfg.LexicalPhraseWeight,
			ProximityBonusNear:  p.cfg.LexicalProximityBonusNear,
			ProximityBonusFar:   p.cfg.LexicalProximityBonusFar,
			NumberContextBonus:  p.cfg.LexicalNumberContextBonus,
			ProximityNearTokens: p.cfg.ProximityNearTokens,
			ProximityFarTokens:  p.cfg.ProximityFarTokens,
		},
		TooCommonRatio:    p.cfg.RequiredTermTooCommonRatio,
		TooRareRatio:      p.cfg.RequiredTermTooRareRatio,
		SingleTermLambda:  p.cfg.RequiredTermSingleLambda,
		RequiredTermsRRFK: p.cfg.QueryDecompRRFK,
		ScanHardCap:       p.cfg.ScanHardCap,
		TwoTermPassDepth:  p.cfg.RequiredTermPassDepth,
	}
	g := gates.New(idx, gcfg)

	var gateRuns, fusionDebug []string
	applied := rtypes.AppliedDiagnostics{SemCacheHit: false, SemCacheMode: cacheMode}

	queryTokens := tokenize.Tokenize(normalize.Normalize(req.Query))
	g0Candidates, scanTruncated := g.RunG0Capped(queryTokens, nil)
	if scanTruncated {
		applied.CutoffReason = rtypes.CutoffStageCap
	}
	gateRuns = append(gateRuns, fmt.Sprintf("g0: %d candidates", len(g0Candidates)))

	kept, dfDecisions := g.DFFilter(req.RequiredTerms)
	applied.RequiredTermsDFFiltered = dfDecisions

	g0Scores := scoresByNode(g0Candidates)
	var reqCandidates []rtypes.Candidate
	if len(kept) > 0 {
		reqCandidates = g.RunGReq(kept, g0Scores)
	}
	gateRuns = append(gateRuns, fmt.Sprintf("g_req: %d candidates (kept_terms=%v)", len(reqCandidates), kept))

	selected := g0Candidates
	applied.SelectedGate = "g0"
	if len(reqCandidates) > 0 {
		selected = reqCandidates
		applied.SelectedGate = "g_req"
	} else if len(req.RequiredTerms) > 0 {
		applied.RequiredTermsRelaxed = true
		applied.RequiredTermsRelaxReason = "zero_candidates_with_required_terms"
	}

	if timeExceeded(p.clock, deadline) {
		applied.CutoffReason = rtypes.CutoffTimeBudget
		return p.finalize(req, idx, selected, applied, kept, dfDecisions, gateRuns, fusionDebug, priorUnscanned)
	}

	if p.cfg.QueryDecompEnabled && p.decomposer.ShouldDecompose(req.Query) {
		subs := p.decomposer.Decompose(req.Query, p.cfg.QueryDecompMaxSubQueries)
		decomposed, debug := p.foldSubQueries(ctx, g, subs, selected, g0Scores)
		if decomposed != nil {
			selected = decomposed
			applied.QueryDecomposed = true
			for _, sq := range subs {
				applied.SubQueries = append(applied.SubQueries, sq.Query)
			}
			fusionDebug = append(fusionDebug, debug...)
		}
	}

	if timeExceeded(p.clock, deadline) {
		applied.CutoffReason = rtypes.CutoffTimeBudget
		return p.finalize(req, idx, selected, applied, kept, dfDecisions, gateRuns, fusionDebug, priorUnscanned)
	}

	enriched := p.applyCrossCandidateSignals(idx, selected, queryTokens)

	ranked := diversity.Rerank(enriched, p.cfg.DiversityDecayAlpha)
	budget := diversity.Budget{}
	if req.Budget != nil {
		budget.MaxCandidates = req.Budget.MaxCandidates
	}
	final, cutoffReason := diversity.Cutoff(ranked, budget, diversity.Config{
		DecayAlpha:        p.cfg.DiversityDecayAlpha,
		CutoffScoreRatio:  p.cfg.CutoffScoreRatio,
		CutoffMinCoverage: p.cfg.CutoffMinCoverage,
		PerFileCap:        p.cfg.PerFileCandidateCap,
	})
	if cutoffReason != "" {
		applied.CutoffReason = cutoffReason
	}

	return p.finalize(req, idx, final, applied, kept, dfDecisions, gateRuns, fusionDebug, priorUnscanned)
}

// foldSubQueries runs each decomposed sub-query's g0 gate in parallel and
// RRF-fuses them with the base ranking. Returns nil if the query failed to
// decompose into more than one sub-query.
func (p *Pipeline) foldSubQueries(ctx context.Context, g *gates.Gates, subs []decompose.SubQuery, base []rtypes.Candidate, baseScores map[int]float64) ([]rtypes.Candidate, []string) {
	if len(subs) < 2 {
		return nil, nil
	}

	subRankings := make([][]fusion.RankedItem, len(subs))
	byNode := make(map[int]rtypes.Candidate, len(base))
	for _, c := range base {
		byNode[c.NodeID] = c
	}

	subCands := make([][]rtypes.Candidate, len(subs))
	eg, _ := errgroup.WithContext(ctx)
	for i, sq := range subs {
		i, sq := i, sq
		eg.Go(func() error {
			toks := tokenize.Tokenize(normalize.Normalize(sq.Query))
			cands := g.RunG0(toks, nil)
			items := make([]fusion.RankedItem, len(cands))
			for j, c := range cands {
				items[j] = fusion.RankedItem{NodeID: c.NodeID, Score: c.Score * sq.Weight}
			}
			subRankings[i] = items
			subCands[i] = cands
			return nil
		})
	}
	_ = eg.Wait() // RunG0 is pure and never errors; fan-out is purely for latency.
	for _, cands := range subCands {
		for _, c := range cands {
			if _, ok := byNode[c.NodeID]; !ok {
				byNode[c.NodeID] = c
			}
		}
	}

	baseRanking := make([]fusion.RankedItem, len(base))
	for i, c := range base {
		baseRanking[i] = fusion.RankedItem{NodeID: c.NodeID, Score: c.Score}
	}
	allEmpty := len(base) == 0
	for _, r := range subRankings {
		if len(r) > 0 {
			allEmpty = false
		}
	}
	if allEmpty {
		return nil, []string{"decompose: all sub-queries and base gate empty, falling back to undecomposed ranking"}
	}

	rankings := append([][]fusion.RankedItem{baseRanking}, subRankings...)
	fused := fusion.NewWithK(p.cfg.QueryDecompRRFK).Fuse(rankings, baseScores, p.cfg.QueryDecompBaseWeight)

	out := make([]rtypes.Candidate, 0, len(fused))
	for _, f := range fused {
		c := byNode[f.NodeID]
		c.Score = f.BlendedScore
		if f.RankingsHit > 1 {
			c.AddSignal(rtypes.SignalQueryDecompRRF)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})

	debug := []string{fmt.Sprintf("decompose: %d sub-queries fused (base_weight=%.2f)", len(subs), p.cfg.QueryDecompBaseWeight)}
	return out, debug
}

func timeExceeded(clock provider.Clock, deadline time.Time) bool {
	return !deadline.IsZero() && clock.Now().After(deadline)
}

func scoresByNode(candidates []rtypes.Candidate) map[int]float64 {
	out := make(map[int]float64, len(candidates))
	for _, c := range candidates {
		out[c.NodeID] = c.Score
	}
	return out
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

func (p *Pipeline) recordStats(key cache.Key, payload rtypes.TracePayload, cacheHit bool) {
	var savedMs *int64
	if cacheHit {
		ms := payload.SourceLatencyMs
		savedMs = &ms
	}
	p.stats.Record(adaptivestats.Record{
		Timestamp:      p.clock.Now().UnixMilli(),
		QueryHash:      key.Hash(),
		ScannedFiles:   payload.Summary.ScannedFiles,
		Candidates:     payload.Summary.Candidates,
		SemCacheHit:    cacheHit,
		SemCacheMode:   string(payload.Applied.SemCacheMode),
		LatencySavedMs: savedMs,
		ScoringMode:    payload.Applied.SelectedGate,
		EstTokens:      estimateTokens(payload),
	})
}

func estimateTokens(payload rtypes.TracePayload) int {
	total := 0
	for _, c := range payload.Candidates {
		total += len(c.MatchedTokens)
	}
	return total
}
