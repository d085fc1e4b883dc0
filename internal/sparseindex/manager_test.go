package sparseindex

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yo-mi2027/manualdex/internal/provider"
)

// TS01: Get builds once and returns the same Index on repeated calls when
// the manual's content hasn't changed.
func TestManager_Get_CachesUntilFingerprintChanges(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "hr")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(path, []byte("# A\nbody"), 0o644))

	cp := provider.NewFSProvider(root)
	mgr := NewManager(cp, DefaultBM25Params(), "")

	idx1, err := mgr.Get(context.Background(), "hr")
	require.NoError(t, err)
	idx2, err := mgr.Get(context.Background(), "hr")
	require.NoError(t, err)
	require.Same(t, idx1, idx2)
}

// TS02: Invalidate forces a rebuild on the next Get even if the fingerprint
// is unchanged.
func TestManager_Invalidate_ForcesRebuild(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "hr")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A\nbody"), 0o644))

	cp := provider.NewFSProvider(root)
	mgr := NewManager(cp, DefaultBM25Params(), "")

	idx1, err := mgr.Get(context.Background(), "hr")
	require.NoError(t, err)

	mgr.Invalidate("hr")

	idx2, err := mgr.Get(context.Background(), "hr")
	require.NoError(t, err)
	require.NotSame(t, idx1, idx2)
	require.Equal(t, idx1.Fingerprint, idx2.Fingerprint)
}

// countingProvider wraps a ContentProvider and counts full-content reads.
type countingProvider struct {
	provider.ContentProvider
	mu    sync.Mutex
	reads int
}

func (c *countingProvider) ReadFile(ctx context.Context, manualRoot, relPath string) ([]byte, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.ContentProvider.ReadFile(ctx, manualRoot, relPath)
}

func (c *countingProvider) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// TS03: the steady-state Get is stat-only. File contents are read for the
// first build and again only after the fingerprint changes.
func TestManager_Get_SkipsContentReadsWhenUnchanged(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "hr")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(path, []byte("# A\nbody"), 0o644))

	cp := &countingProvider{ContentProvider: provider.NewFSProvider(root)}
	mgr := NewManager(cp, DefaultBM25Params(), "")

	_, err := mgr.Get(context.Background(), "hr")
	require.NoError(t, err)
	afterBuild := cp.readCount()
	require.Positive(t, afterBuild)

	_, err = mgr.Get(context.Background(), "hr")
	require.NoError(t, err)
	require.Equal(t, afterBuild, cp.readCount())

	require.NoError(t, os.WriteFile(path, []byte("# A\nbody grew longer"), 0o644))
	_, err = mgr.Get(context.Background(), "hr")
	require.NoError(t, err)
	require.Greater(t, cp.readCount(), afterBuild)
}
