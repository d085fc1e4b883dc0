package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yo-mi2027/manualdex/internal/fswatch"
	"github.com/yo-mi2027/manualdex/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	var transport string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP stdio server exposing find/hits/invalidate",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := buildPipeline()
			if err != nil {
				return err
			}
			defer pipeline.Close()

			if watch {
				w, werr := fswatch.New(manualsRoot, pipeline)
				if werr != nil {
					slog.Warn("serve: failed to start file watcher, falling back to per-request fingerprinting", slog.String("error", werr.Error()))
				} else if serr := w.Start(cmd.Context()); serr != nil {
					slog.Warn("serve: file watcher failed to start", slog.String("error", serr.Error()))
				} else {
					defer w.Stop()
				}
			}

			srv := mcpserver.New(pipeline, slog.Default())
			return srv.Serve(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (only stdio is supported)")
	cmd.Flags().BoolVar(&watch, "watch", true, "proactively invalidate manuals on filesystem change")

	return cmd
}
