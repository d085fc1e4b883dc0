package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Given: an unknown trace_id
// Then: hits surfaces not_found rather than an empty page.
func TestHitsCmd_UnknownTrace_IsNotFound(t *testing.T) {
	root := t.TempDir()
	writeHRManual(t, root)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--manuals-root", root, "hits", "--trace", "does-not-exist"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")
}

// Traces live only in the owning process's memory, so a trace_id from one
// one-shot CLI invocation is not_found in the next; paging across calls is
// what the long-lived serve mode is for.
func TestHitsCmd_TraceDoesNotSurviveProcessBoundary(t *testing.T) {
	root := t.TempDir()
	writeHRManual(t, root)

	findCmd := NewRootCmd()
	findBuf := new(bytes.Buffer)
	findCmd.SetOut(findBuf)
	findCmd.SetErr(findBuf)
	findCmd.SetArgs([]string{
		"--manuals-root", root, "--json",
		"find", "年次有給休暇の付与日数",
		"--manual", "hr", "--required", "休暇",
	})
	require.NoError(t, findCmd.Execute())

	var found struct {
		TraceID string `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal(findBuf.Bytes(), &found))
	require.NotEmpty(t, found.TraceID)

	hitsCmd := NewRootCmd()
	hitsBuf := new(bytes.Buffer)
	hitsCmd.SetOut(hitsBuf)
	hitsCmd.SetErr(hitsBuf)
	hitsCmd.SetArgs([]string{"--manuals-root", root, "--json", "hits", "--trace", found.TraceID, "--kind", "candidates"})
	err := hitsCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")
}
