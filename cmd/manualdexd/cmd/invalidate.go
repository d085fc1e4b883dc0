package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInvalidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate <manual_id>",
		Short: "Drop a manual's cached index and any cache/trace entries derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := buildPipeline()
			if err != nil {
				return err
			}
			defer pipeline.Close()

			if appErr := pipeline.Invalidate(cmd.Context(), args[0]); appErr != nil {
				return appErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", args[0])
			return nil
		},
	}
	return cmd
}
