package sparseindex

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/yo-mi2027/manualdex/internal/docstore"
	"github.com/yo-mi2027/manualdex/internal/provider"
)

// Manager owns one built Index per manual and rebuilds it whenever the
// manual's fingerprint changes. Builders are serialized per manual by an
// in-process mutex plus an optional cross-process flock; once built, an
// Index is an immutable snapshot so readers never take a lock.
type Manager struct {
	cp       provider.ContentProvider
	params   BM25Params
	lockDir  string

	mu      sync.Mutex
	perManual map[string]*manualState
}

type manualState struct {
	buildMu sync.Mutex
	current atomic.Pointer[Index]
}

func NewManager(cp provider.ContentProvider, params BM25Params, lockDir string) *Manager {
	return &Manager{
		cp:        cp,
		params:    params,
		lockDir:   lockDir,
		perManual: make(map[string]*manualState),
	}
}

func (m *Manager) stateFor(manualID string) *manualState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.perManual[manualID]
	if !ok {
		st = &manualState{}
		m.perManual[manualID] = st
	}
	return st
}

// Get returns the current Index for a manual, rebuilding it if the
// underlying content's fingerprint has changed or no index exists yet.
// The steady-state path costs one stat-only ListFiles: file contents are
// read only when the fingerprint differs from the cached index's.
func (m *Manager) Get(ctx context.Context, manualID string) (*Index, error) {
	st := m.stateFor(manualID)

	files, err := m.cp.ListFiles(ctx, manualID)
	if err != nil {
		return nil, err
	}
	fp := docstore.Fingerprint(files)

	if cur := st.current.Load(); cur != nil && cur.Fingerprint == fp {
		return cur, nil
	}

	st.buildMu.Lock()
	defer st.buildMu.Unlock()

	// Re-check: another goroutine may have built it while we waited.
	if cur := st.current.Load(); cur != nil && cur.Fingerprint == fp {
		return cur, nil
	}

	release, err := m.acquireCrossProcessLock(manualID)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := docstore.BuildFromFiles(ctx, m.cp, manualID, files)
	if err != nil {
		return nil, err
	}

	idx := Build(doc, m.params)
	st.current.Store(idx)
	return idx, nil
}

// Invalidate drops the cached index for a manual, forcing a rebuild on the
// next Get.
func (m *Manager) Invalidate(manualID string) {
	m.mu.Lock()
	st, ok := m.perManual[manualID]
	m.mu.Unlock()
	if ok {
		st.current.Store(nil)
	}
}

func (m *Manager) acquireCrossProcessLock(manualID string) (func(), error) {
	if m.lockDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(m.lockDir, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(m.lockDir, manualID+".lock"))
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	return func() { _ = fl.Unlock() }, nil
}
