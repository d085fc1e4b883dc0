// Package mcpserver is the thin external MCP tool surface over the
// retrieval core. It exposes find/hits/invalidate as MCP tools with typed
// input/output structs and never implements retrieval logic itself.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yo-mi2027/manualdex/internal/apperrors"
	"github.com/yo-mi2027/manualdex/internal/manualcore"
	"github.com/yo-mi2027/manualdex/pkg/version"
)

// Server bridges MCP clients to a manualcore.Pipeline.
type Server struct {
	mcp      *mcp.Server
	pipeline *manualcore.Pipeline
	logger   *slog.Logger
}

// FindInput is the MCP-visible input schema for the find tool.
type FindInput struct {
	Query                  string   `json:"query" jsonschema:"natural-language query plus required terms"`
	ManualID               string   `json:"manual_id" jsonschema:"the manual to search, never the reserved root id"`
	RequiredTerms          []string `json:"required_terms" jsonschema:"1 or 2 mandatory terms the result must account for"`
	ExpandScope            bool     `json:"expand_scope,omitempty" jsonschema:"widen the search scope"`
	OnlyUnscannedFromTrace string   `json:"only_unscanned_from_trace_id,omitempty" jsonschema:"restrict to nodes left unscanned by a prior trace"`
	IncludeClaimGraph      bool     `json:"include_claim_graph,omitempty" jsonschema:"populate the out-of-core claim graph diagnostic"`
	UseCache               *bool    `json:"use_cache,omitempty" jsonschema:"set false to bypass the semantic cache"`
	BudgetTimeMs           int      `json:"budget_time_ms,omitempty" jsonschema:"cooperative time budget in milliseconds"`
	BudgetMaxCandidates    int      `json:"budget_max_candidates,omitempty" jsonschema:"maximum candidates to return"`
	InlineHitsLimit        int      `json:"inline_hits_limit,omitempty" jsonschema:"1-5, include top hits inline in the compact response"`
}

// FindOutput is the MCP-visible compact find() response.
type FindOutput struct {
	TraceID       string                         `json:"trace_id"`
	Candidates    []manualcore.CompactCandidate  `json:"candidates"`
	Status        string                         `json:"status"`
	FailureReason string                         `json:"failure_reason,omitempty"`
	InlineHits    []manualcore.CompactCandidate  `json:"inline_hits,omitempty"`
	NextActions   []string                       `json:"next_actions"`
}

// HitsInput is the MCP-visible input schema for the hits paging tool.
type HitsInput struct {
	TraceID string `json:"trace_id" jsonschema:"a trace_id returned by a prior find call"`
	Kind    string `json:"kind" jsonschema:"candidates|unscanned|conflicts|gaps|integrated_top|claims|evidences|edges|gate_runs|fusion_debug"`
	Offset  int    `json:"offset,omitempty" jsonschema:"paging offset, default 0"`
	Limit   int    `json:"limit,omitempty" jsonschema:"paging limit, default 20"`
}

// HitsOutput is the MCP-visible hits() paging response.
type HitsOutput struct {
	Items []any `json:"items"`
	Total int   `json:"total"`
}

// InvalidateInput is the MCP-visible input schema for the admin invalidate
// tool.
type InvalidateInput struct {
	ManualID string `json:"manual_id" jsonschema:"the manual whose index and cache entries should be dropped"`
}

// InvalidateOutput confirms an invalidate call completed.
type InvalidateOutput struct {
	ManualID string `json:"manual_id"`
	OK       bool   `json:"ok"`
}

// New builds a Server wrapping pipeline. The caller owns the pipeline's
// lifetime; Close must be called separately.
func New(pipeline *manualcore.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{pipeline: pipeline, logger: logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "manualdex",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying SDK server, for transports or tests that
// need to drive it directly.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find",
		Description: "Search a manual's markdown and JSON documents for evidence matching a query plus 1-2 required terms. Returns the compact ranked result; use hits to page full detail.",
	}, s.handleFind)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "hits",
		Description: "Page over a previously returned trace_id's recorded candidates, gaps, conflicts, or diagnostic detail.",
	}, s.handleHits)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "invalidate",
		Description: "Admin operation: drop a manual's cached index and any semantic-cache/trace entries derived from it, forcing a full rebuild on the next find.",
	}, s.handleInvalidate)

	s.logger.Debug("mcpserver: tools registered", slog.Int("count", 3))
}

func (s *Server) handleFind(ctx context.Context, _ *mcp.CallToolRequest, input FindInput) (*mcp.CallToolResult, FindOutput, error) {
	req := manualcore.FindRequest{
		Query:                  input.Query,
		ManualID:               input.ManualID,
		RequiredTerms:          input.RequiredTerms,
		ExpandScope:            input.ExpandScope,
		OnlyUnscannedFromTrace: input.OnlyUnscannedFromTrace,
		IncludeClaimGraph:      input.IncludeClaimGraph,
		UseCache:               input.UseCache,
		Compact:                true,
	}
	if input.BudgetTimeMs > 0 || input.BudgetMaxCandidates > 0 {
		req.Budget = &manualcore.Budget{TimeMs: input.BudgetTimeMs, MaxCandidates: input.BudgetMaxCandidates}
	}
	if input.InlineHitsLimit > 0 {
		req.InlineHits = &manualcore.InlineHits{Limit: input.InlineHitsLimit}
	}

	payload, err := s.pipeline.Find(ctx, req)
	if err != nil {
		return nil, FindOutput{}, mapError(err)
	}

	inlineLimit := 0
	if req.InlineHits != nil {
		inlineLimit = req.InlineHits.Limit
	}
	resp := manualcore.RenderCompact(payload, inlineLimit)
	return nil, FindOutput{
		TraceID:       resp.TraceID,
		Candidates:    resp.Candidates,
		Status:        resp.Status,
		FailureReason: resp.FailureReason,
		InlineHits:    resp.InlineHits,
		NextActions:   resp.NextActions,
	}, nil
}

func (s *Server) handleHits(_ context.Context, _ *mcp.CallToolRequest, input HitsInput) (*mcp.CallToolResult, HitsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	resp, err := s.pipeline.Hits(manualcore.HitsRequest{
		TraceID: input.TraceID,
		Kind:    input.Kind,
		Offset:  input.Offset,
		Limit:   limit,
	})
	if err != nil {
		return nil, HitsOutput{}, mapError(err)
	}
	return nil, HitsOutput{Items: resp.Items, Total: resp.Total}, nil
}

func (s *Server) handleInvalidate(ctx context.Context, _ *mcp.CallToolRequest, input InvalidateInput) (*mcp.CallToolResult, InvalidateOutput, error) {
	if err := s.pipeline.Invalidate(ctx, input.ManualID); err != nil {
		return nil, InvalidateOutput{}, mapError(err)
	}
	return nil, InvalidateOutput{ManualID: input.ManualID, OK: true}, nil
}

// Serve starts the server on the given transport. Only "stdio" is
// supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcpserver: starting", slog.String("transport", transport))
	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("mcpserver: stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcpserver: stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("mcpserver: unknown transport %q (supported: stdio)", transport)
	}
}

// mapError renders an apperrors.Error as a plain Go error for the MCP SDK,
// preserving the flat code and message unchanged.
func mapError(err *apperrors.Error) error {
	if err == nil {
		return nil
	}
	return err
}
