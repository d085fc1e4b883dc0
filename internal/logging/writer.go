package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// RotatingWriter is an io.Writer that rotates its file once it would exceed
// maxSize: manualdexd.log becomes manualdexd.log.1, .1 becomes .2, and
// anything at or past maxFiles is removed. Writes are synced immediately so
// a tailing reader sees records as they happen.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu      sync.Mutex
	file    *os.File
	written int64
}

// NewRotatingWriter opens (creating parent directories as needed) the log
// file at path, rotating after maxSizeMB megabytes and keeping maxFiles
// rotated generations.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	w := &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSizeMB) << 20,
		maxFiles: maxFiles,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			// Rotation failure keeps appending to the oversized file rather
			// than losing the record.
			fmt.Fprintf(os.Stderr, "logging: rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	if err == nil {
		_ = w.file.Sync()
	}
	return n, err
}

// Sync flushes the current file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the current file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("logging: stat log file: %w", err)
	}
	w.file = f
	w.written = info.Size()
	return nil
}

func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return err
		}
		w.file = nil
	}

	// Shift generations from the oldest down so no rename overwrites a live
	// file: .N is deleted or dropped, .N-1 -> .N, ..., base -> .1.
	for n := w.maxFiles; n >= 1; n-- {
		gen := w.generation(n)
		if _, err := os.Stat(gen); err != nil {
			continue
		}
		if n >= w.maxFiles {
			_ = os.Remove(gen)
			continue
		}
		_ = os.Rename(gen, w.generation(n+1))
	}
	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.generation(1)); err != nil {
			return err
		}
	}

	w.written = 0
	return w.open()
}

func (w *RotatingWriter) generation(n int) string {
	return w.path + "." + strconv.Itoa(n)
}

// Generations lists the rotated files currently on disk for path, newest
// first, for diagnostics.
func Generations(path string) []string {
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		return nil
	}
	var out []string
	for n := 1; ; n++ {
		gen := path + "." + strconv.Itoa(n)
		found := false
		for _, m := range matches {
			if m == gen {
				found = true
				break
			}
		}
		if !found {
			break
		}
		out = append(out, gen)
	}
	return out
}
