package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Given: a manual with no content matching the query's required term
// When: find is run
// Then: status is none and failure_reason surfaces, not a generic error.
func TestFindCmd_NoMatch_ReportsStatusNone(t *testing.T) {
	root := t.TempDir()
	writeHRManual(t, root)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{
		"--manuals-root", root, "--json",
		"find", "年次有給休暇",
		"--manual", "hr", "--required", "no_such_term_xyz",
	})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"status": "none"`)
}

// Given: no --manual flag supplied
// Then: cobra's MarkFlagRequired rejects before the pipeline ever runs.
func TestFindCmd_MissingManualFlag_IsRejected(t *testing.T) {
	root := t.TempDir()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--manuals-root", root, "find", "anything"})
	err := cmd.Execute()
	require.Error(t, err)
}
