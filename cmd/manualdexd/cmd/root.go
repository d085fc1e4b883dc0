// Package cmd provides the CLI commands for manualdexd.
package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/yo-mi2027/manualdex/internal/config"
	"github.com/yo-mi2027/manualdex/internal/logging"
	"github.com/yo-mi2027/manualdex/internal/manualcore"
	"github.com/yo-mi2027/manualdex/internal/provider"
	"github.com/yo-mi2027/manualdex/pkg/version"
)

var (
	manualsRoot string
	configPath  string
	outputJSON  bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the manualdexd CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "manualdexd",
		Short:   "Lexical manual search core: find, hits and invalidate over a manual directory",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// MCP stdio mode reserves stdout for JSON-RPC; file-only logging
			// keeps every subcommand, not just serve, safe to pipe.
			if cleanup, err := logging.SetupMCPMode(); err == nil {
				loggingCleanup = cleanup
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}

	root.SetVersionTemplate("manualdexd version {{.Version}}\n")
	root.PersistentFlags().StringVar(&manualsRoot, "manuals-root", ".", "directory containing one subdirectory per manual")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file overriding the built-in defaults")
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "force JSON output even on a TTY")

	root.AddCommand(newFindCmd())
	root.AddCommand(newHitsCmd())
	root.AddCommand(newInvalidateCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// buildPipeline wires a manualcore.Pipeline over manualsRoot with the
// layered config (defaults -> YAML -> env), shared by every subcommand.
func buildPipeline() (*manualcore.Pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cp := provider.NewFSProvider(manualsRoot)
	lockDir := os.Getenv("MANUALDEX_LOCK_DIR")
	return manualcore.New(cfg, cp, lockDir), nil
}

// isTTY reports whether stdout is a terminal and JSON wasn't forced.
func isTTY() bool {
	if outputJSON {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
