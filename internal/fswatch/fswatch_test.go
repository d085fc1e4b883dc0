package fswatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yo-mi2027/manualdex/internal/apperrors"
)

type fakeInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, manualID string) *apperrors.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, manualID)
	return nil
}

func (f *fakeInvalidator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestManualIDOf_FirstPathSegment(t *testing.T) {
	// Given: a watcher rooted at a manuals directory
	root := t.TempDir()
	w := &Watcher{root: root}

	// When/Then: a path two levels deep resolves to its top-level manual id
	assert.Equal(t, "hr", w.manualIDOf(filepath.Join(root, "hr", "policy.md")))
	assert.Equal(t, "hr", w.manualIDOf(filepath.Join(root, "hr", "sub", "deep.md")))
	assert.Equal(t, "", w.manualIDOf(root))
}

func TestWatcher_InvalidatesOnFileWrite(t *testing.T) {
	// Given: a manuals root with one manual directory, watched from startup
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "hr"), 0o755))

	inv := &fakeInvalidator{}
	w, err := New(root, inv, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	// When: a file is written under the manual directory
	require.NoError(t, os.WriteFile(filepath.Join(root, "hr", "new.md"), []byte("# a\nbody"), 0o644))

	// Then: the manual is invalidated once the debounce window elapses
	require.Eventually(t, func() bool {
		return inv.callCount() > 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, &fakeInvalidator{})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
