package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yo-mi2027/manualdex/internal/manualcore"
)

type findOptions struct {
	manualID      string
	requiredTerms []string
	timeMs        int
	maxCandidates int
	inlineLimit   int
	noCache       bool
}

func newFindCmd() *cobra.Command {
	var opts findOptions

	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Search a manual for evidence matching a query plus required terms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runFind(cmd, query, opts)
		},
	}

	cmd.Flags().StringVar(&opts.manualID, "manual", "", "manual id to search (required)")
	cmd.Flags().StringSliceVar(&opts.requiredTerms, "required", nil, "1 or 2 required terms (repeatable)")
	cmd.Flags().IntVar(&opts.timeMs, "time-ms", 0, "cooperative time budget in milliseconds (0 = unbounded)")
	cmd.Flags().IntVar(&opts.maxCandidates, "max-candidates", 0, "maximum candidates to return (0 = default)")
	cmd.Flags().IntVar(&opts.inlineLimit, "inline-hits", 0, "1-5, include top hits inline")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the semantic cache for this call")
	_ = cmd.MarkFlagRequired("manual")

	return cmd
}

func runFind(cmd *cobra.Command, query string, opts findOptions) error {
	pipeline, err := buildPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Close()

	req := manualcore.FindRequest{
		Query:         query,
		ManualID:      opts.manualID,
		RequiredTerms: opts.requiredTerms,
		Compact:       true,
	}
	if opts.noCache {
		f := false
		req.UseCache = &f
	}
	if opts.timeMs > 0 || opts.maxCandidates > 0 {
		b := &manualcore.Budget{TimeMs: opts.timeMs, MaxCandidates: opts.maxCandidates}
		// A budget needs both fields >= 1; fill the one left at 0.
		if b.TimeMs == 0 {
			b.TimeMs = math.MaxInt32
		}
		if b.MaxCandidates == 0 {
			b.MaxCandidates = math.MaxInt32
		}
		req.Budget = b
	}
	if opts.inlineLimit > 0 {
		req.InlineHits = &manualcore.InlineHits{Limit: opts.inlineLimit}
	}

	payload, appErr := pipeline.Find(cmd.Context(), req)
	if appErr != nil {
		return appErr
	}

	inlineLimit := 0
	if req.InlineHits != nil {
		inlineLimit = req.InlineHits.Limit
	}
	resp := manualcore.RenderCompact(payload, inlineLimit)

	if isTTY() {
		return printFindHuman(cmd, resp)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func printFindHuman(cmd *cobra.Command, resp manualcore.CompactFindResponse) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "trace_id: %s\n", resp.TraceID)
	fmt.Fprintf(out, "status:   %s\n", resp.Status)
	if resp.FailureReason != "" {
		fmt.Fprintf(out, "reason:   %s\n", resp.FailureReason)
	}
	fmt.Fprintf(out, "candidates (%d):\n", len(resp.Candidates))
	for i, c := range resp.Candidates {
		fmt.Fprintf(out, "  %d. %s  score=%.3f  coverage=%.2f  tokens=%v\n", i+1, c.Ref, c.Score, c.MatchCoverage, c.MatchedTokens)
	}
	return nil
}
