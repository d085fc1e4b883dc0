package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Given: invalidate called with no positional argument
// Then: cobra's ExactArgs(1) rejects before buildPipeline runs.
func TestInvalidateCmd_MissingArg_IsRejected(t *testing.T) {
	root := t.TempDir()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--manuals-root", root, "invalidate"})
	require.Error(t, cmd.Execute())
}

// Given: invalidate is called twice in a row for the same manual
// Then: both calls succeed (invalidating an already-cold manual is a no-op,
// not an error).
func TestInvalidateCmd_IsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeHRManual(t, root)

	for i := 0; i < 2; i++ {
		cmd := NewRootCmd()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs([]string{"--manuals-root", root, "invalidate", "hr"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, buf.String(), "invalidated hr")
	}
}
