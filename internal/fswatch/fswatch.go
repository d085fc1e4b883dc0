// Package fswatch proactively invalidates a manual's cached index and
// semantic-cache entries when its files change on disk, instead of waiting
// for the next find() call to notice a fingerprint mismatch. fsnotify
// events are registered recursively and debounced per manual. The core
// already revalidates the fingerprint on every request, so a missed event
// is never incorrect, only a missed optimization, so a watcher that fails to
// start is not fatal.
package fswatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yo-mi2027/manualdex/internal/apperrors"
)

// Invalidator is the subset of manualcore.Pipeline this package needs:
// dropping a manual's cached index and any cache/trace entries derived from
// it. Defined here (not imported from manualcore) to avoid a dependency
// cycle: manualcore never needs to know about fswatch.
type Invalidator interface {
	Invalidate(ctx context.Context, manualID string) *apperrors.Error
}

// Watcher watches one or more manual root directories and calls Invalidate
// on the owning manual id shortly after any .md/.json file under it changes.
type Watcher struct {
	fsw           *fsnotify.Watcher
	invalidator   Invalidator
	root          string // directory containing one subdirectory per manual
	debounce      time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	pending  map[string]*time.Timer
	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the default 300ms coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a Watcher over root (the directory containing one
// subdirectory per manual) that calls invalidator.Invalidate(manualID) when
// a manual's content changes. The caller must call Start to begin watching.
func New(root string, invalidator Invalidator, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fswatch: create watcher: %w", err)
	}
	w := &Watcher{
		fsw:         fsw,
		invalidator: invalidator,
		root:        root,
		debounce:    300 * time.Millisecond,
		logger:      slog.Default(),
		pending:     make(map[string]*time.Timer),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start registers every existing manual directory (and their subdirectories)
// with fsnotify and begins the event loop. The event loop runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("fswatch: watch %s: %w", w.root, err)
	}
	go w.loop(ctx)
	return nil
}

// Stop releases the underlying fsnotify watcher. Safe to call more than
// once; calls after the first do nothing and return nil.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// A manual directory may not exist yet (lazily created on first
			// index); that is not fatal to watcher startup.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if addErr := w.fsw.Add(path); addErr != nil {
				w.logger.Warn("fswatch: failed to watch directory", slog.String("path", path), slog.String("error", addErr.Error()))
			}
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fswatch: watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(ev.Name)
		}
	}

	manualID := w.manualIDOf(ev.Name)
	if manualID == "" {
		return
	}
	w.scheduleInvalidate(ctx, manualID)
}

// manualIDOf maps an absolute event path back to the manual id (the first
// path segment under root). Returns "" for paths outside root (should not
// happen) or the root itself.
func (w *Watcher) manualIDOf(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return ""
	}
	first := rel
	if idx := indexOfSeparator(rel); idx >= 0 {
		first = rel[:idx]
	}
	if first == ".." {
		return ""
	}
	return first
}

func indexOfSeparator(path string) int {
	for i, r := range path {
		if r == os.PathSeparator || r == '/' {
			return i
		}
	}
	return -1
}

// scheduleInvalidate debounces repeated events for the same manual within
// Watcher.debounce, then invokes Invalidate once.
func (w *Watcher) scheduleInvalidate(ctx context.Context, manualID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[manualID]; ok {
		t.Stop()
	}
	w.pending[manualID] = time.AfterFunc(w.debounce, func() {
		if err := w.invalidator.Invalidate(ctx, manualID); err != nil {
			w.logger.Debug("fswatch: invalidate after change failed", slog.String("manual_id", manualID), slog.String("error", err.Error()))
		}
		w.mu.Lock()
		delete(w.pending, manualID)
		w.mu.Unlock()
	})
}
