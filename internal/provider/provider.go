// Package provider defines the three external collaborator slots the
// retrieval core consumes: a filesystem-like content provider, a clock, and
// a random-id generator, plus a real filesystem-backed implementation of
// each.
package provider

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileInfo describes one indexable file under a manual.
type FileInfo struct {
	Path    string // relative to the manual root
	Size    int64
	ModTime time.Time
}

// ContentProvider is the filesystem-like slot the core reads manuals
// through. Implementations must be safe for concurrent use; the core treats
// reads as immutable snapshots and revalidates the fingerprint on every
// request entry.
type ContentProvider interface {
	// ListFiles enumerates every indexable (.md / .json) file under a
	// manual, relative-path sorted for deterministic fingerprinting.
	ListFiles(ctx context.Context, manualRoot string) ([]FileInfo, error)
	// ReadFile returns the full content of one file under a manual.
	ReadFile(ctx context.Context, manualRoot, relPath string) ([]byte, error)
}

// Clock is the time slot, substitutable in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall-clock implementation.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator produces opaque, collision-safe ids for trace_id and cache
// entry bookkeeping.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates RFC 4122 ids.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// FSProvider reads manuals directly off the local filesystem. Each manual is
// a directory named manualRoot; indexable files are every .md and .json
// file in its subtree.
type FSProvider struct {
	// Root is the directory containing one subdirectory per manual.
	Root string
}

func NewFSProvider(root string) *FSProvider {
	return &FSProvider{Root: root}
}

func (p *FSProvider) manualDir(manualRoot string) string {
	return filepath.Join(p.Root, manualRoot)
}

func (p *FSProvider) ListFiles(ctx context.Context, manualRoot string) ([]FileInfo, error) {
	dir := p.manualDir(manualRoot)
	var files []FileInfo
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}
		if !isIndexable(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (p *FSProvider) ReadFile(ctx context.Context, manualRoot, relPath string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return os.ReadFile(filepath.Join(p.manualDir(manualRoot), filepath.FromSlash(relPath)))
}

func isIndexable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".json"
}
