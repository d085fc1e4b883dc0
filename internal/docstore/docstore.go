// Package docstore enumerates the searchable Nodes of a manual: one node
// per .md heading, spanning that heading's body including all descendant
// headings, and one whole-file node per .json file. It owns file bytes
// exclusively; the sparse index only ever weakly references nodes by
// node_id.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yo-mi2027/manualdex/internal/provider"
)

// FileKind distinguishes a node's source file type.
type FileKind string

const (
	FileKindMarkdown FileKind = "md"
	FileKindJSON     FileKind = "json"
)

// Node is a searchable unit: a markdown heading section (with descendants)
// or an entire JSON file.
type Node struct {
	NodeID    int
	Path      string
	StartLine int
	EndLine   int
	Title     string
	FileKind  FileKind
	Text      string
}

// Manual is one named directory's enumerated content plus its fingerprint.
type Manual struct {
	ID          string
	Fingerprint string
	Nodes       []Node
	ScannedFiles int
}

var headingPattern = regexp.MustCompile(`^(#{1,6})[ \t]+(.*)$`)

// Build enumerates every node of a manual and computes its fingerprint.
// Errors from the provider propagate as-is; the caller (manualcore) maps
// them onto the core's error catalogue.
func Build(ctx context.Context, cp provider.ContentProvider, manualID string) (*Manual, error) {
	files, err := cp.ListFiles(ctx, manualID)
	if err != nil {
		return nil, err
	}
	return BuildFromFiles(ctx, cp, manualID, files)
}

// BuildFromFiles is Build over an already-listed file set, for callers that
// fingerprint from stat metadata first and only pay the content-reading
// pass on a fingerprint change (see sparseindex.Manager).
func BuildFromFiles(ctx context.Context, cp provider.ContentProvider, manualID string, files []provider.FileInfo) (*Manual, error) {
	fp := Fingerprint(files)

	m := &Manual{ID: manualID, Fingerprint: fp, ScannedFiles: len(files)}
	nodeID := 0
	for _, f := range files {
		data, err := cp.ReadFile(ctx, manualID, f.Path)
		if err != nil {
			return nil, fmt.Errorf("docstore: read %s: %w", f.Path, err)
		}
		var nodes []Node
		switch strings.ToLower(filepath.Ext(f.Path)) {
		case ".md":
			nodes = splitMarkdown(f.Path, string(data))
		case ".json":
			nodes = []Node{wholeFileNode(f.Path, string(data))}
		default:
			continue
		}
		for i := range nodes {
			nodes[i].NodeID = nodeID
			nodeID++
			m.Nodes = append(m.Nodes, nodes[i])
		}
	}
	return m, nil
}

// Fingerprint is a stable hash over (path, size, last_modified) of every
// indexable file; it changes iff any indexable file changes.
func Fingerprint(files []provider.FileInfo) string {
	sorted := make([]provider.FileInfo, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, f := range sorted {
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00", f.Path, f.Size, f.ModTime.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

type heading struct {
	level     int
	title     string
	startLine int
}

// splitMarkdown walks the heading stack and emits one Node per heading,
// whose Text spans from that heading's line to the line before the next
// heading at the same or a shallower level, so it includes every
// descendant heading's content.
func splitMarkdown(path, content string) []Node {
	lines := strings.Split(content, "\n")

	var headings []heading
	for i, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			headings = append(headings, heading{
				level:     len(m[1]),
				title:     strings.TrimSpace(m[2]),
				startLine: i + 1,
			})
		}
	}

	if len(headings) == 0 {
		return []Node{wholeFileNode(path, content)}
	}

	var nodes []Node
	for i, h := range headings {
		endLine := len(lines)
		for j := i + 1; j < len(headings); j++ {
			if headings[j].level <= h.level {
				endLine = headings[j].startLine - 1
				break
			}
		}
		text := strings.Join(lines[h.startLine-1:endLine], "\n")
		nodes = append(nodes, Node{
			Path:      path,
			StartLine: h.startLine,
			EndLine:   endLine,
			Title:     h.title,
			FileKind:  FileKindMarkdown,
			Text:      text,
		})
	}

	// Content before the first heading (frontmatter, a lead-in paragraph)
	// is preserved as its own node so it remains searchable.
	if headings[0].startLine > 1 {
		lead := strings.Join(lines[0:headings[0].startLine-1], "\n")
		if strings.TrimSpace(lead) != "" {
			nodes = append([]Node{{
				Path:      path,
				StartLine: 1,
				EndLine:   headings[0].startLine - 1,
				Title:     filepath.Base(path),
				FileKind:  FileKindMarkdown,
				Text:      lead,
			}}, nodes...)
		}
	}

	return nodes
}

func wholeFileNode(path, content string) Node {
	lines := strings.Count(content, "\n") + 1
	kind := FileKindJSON
	if strings.EqualFold(filepath.Ext(path), ".md") {
		kind = FileKindMarkdown
	}
	return Node{
		Path:      path,
		StartLine: 1,
		EndLine:   lines,
		Title:     filepath.Base(path),
		FileKind:  kind,
		Text:      content,
	}
}
