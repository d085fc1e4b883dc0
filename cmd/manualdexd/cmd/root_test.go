package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHRManual(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, "hr")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leave.md"),
		[]byte("# 年次有給休暇\n年次有給休暇の付与日数について説明します。\n"), 0o644))
}

// TS01: find with --json always produces parseable JSON with next_actions
// empty. No stray text corrupts the encoding.
func TestFindCmd_JSONOutput_IsWellFormed(t *testing.T) {
	root := t.TempDir()
	writeHRManual(t, root)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{
		"--manuals-root", root, "--json",
		"find", "年次有給休暇の付与日数",
		"--manual", "hr", "--required", "休暇",
	})
	require.NoError(t, cmd.Execute())

	var resp struct {
		TraceID     string   `json:"trace_id"`
		NextActions []string `json:"next_actions"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.NotEmpty(t, resp.TraceID)
	assert.Empty(t, resp.NextActions)
}

// TS02: find against the reserved root manual id surfaces invalid_parameter,
// not a generic error.
func TestFindCmd_ReservedManualID_IsRejected(t *testing.T) {
	root := t.TempDir()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{
		"--manuals-root", root,
		"find", "anything",
		"--manual", "manuals", "--required", "x",
	})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_parameter")
}

// TS03: invalidate on a fresh manual directory succeeds and reports it.
func TestInvalidateCmd_ReportsManualID(t *testing.T) {
	root := t.TempDir()
	writeHRManual(t, root)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--manuals-root", root, "invalidate", "hr"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "invalidated hr")
}
