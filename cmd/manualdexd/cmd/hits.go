package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yo-mi2027/manualdex/internal/manualcore"
)

func newHitsCmd() *cobra.Command {
	var traceID, kind string
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "hits",
		Short: "Page over a previously returned trace_id",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := buildPipeline()
			if err != nil {
				return err
			}
			defer pipeline.Close()

			resp, appErr := pipeline.Hits(manualcore.HitsRequest{
				TraceID: traceID,
				Kind:    kind,
				Offset:  offset,
				Limit:   limit,
			})
			if appErr != nil {
				return appErr
			}

			if isTTY() {
				fmt.Fprintf(cmd.OutOrStdout(), "total: %d\n", resp.Total)
				for i, item := range resp.Items {
					fmt.Fprintf(cmd.OutOrStdout(), "  %d. %v\n", offset+i, item)
				}
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVar(&traceID, "trace", "", "trace_id returned by a prior find call (required)")
	cmd.Flags().StringVar(&kind, "kind", "candidates", "candidates|unscanned|conflicts|gaps|integrated_top|claims|evidences|edges|gate_runs|fusion_debug")
	cmd.Flags().IntVar(&offset, "offset", 0, "paging offset")
	cmd.Flags().IntVar(&limit, "limit", 20, "paging limit")
	_ = cmd.MarkFlagRequired("trace")

	return cmd
}
