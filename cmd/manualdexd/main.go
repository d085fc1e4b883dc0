// Command manualdexd runs the manual-search core, either as a long-lived
// MCP stdio server or as a one-shot CLI over find/hits/invalidate.
package main

import (
	"os"

	"github.com/yo-mi2027/manualdex/cmd/manualdexd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
