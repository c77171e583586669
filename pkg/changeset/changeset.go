// Package changeset models a repository changeset as files and hunks and
// provides the line-level operations the decomposition engine builds on:
// computing hunks, applying subsets of them, and rendering them as patches.
package changeset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/bahn/pkg/textutil"
)

// ErrUnknownScope is returned when a scope name cannot be parsed.
var ErrUnknownScope = errors.New("unknown scope")

// Status is the kind of change a file went through.
type Status int

// File statuses.
const (
	StatusModified Status = iota
	StatusAdded
	StatusDeleted
	StatusRenamed
)

// String returns the one-word name of the status.
func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusRenamed:
		return "renamed"
	case StatusModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Scope selects which part of the working state is considered.
type Scope int

// Scopes.
const (
	// ScopeBoth compares HEAD with the working tree, untracked files included.
	ScopeBoth Scope = iota
	// ScopeStaged compares HEAD with the index.
	ScopeStaged
	// ScopeUnstaged compares the index with the working tree.
	ScopeUnstaged
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case ScopeStaged:
		return "staged"
	case ScopeUnstaged:
		return "unstaged"
	case ScopeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseScope parses a scope name.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "both", "all":
		return ScopeBoth, nil
	case "staged", "index":
		return ScopeStaged, nil
	case "unstaged", "worktree":
		return ScopeUnstaged, nil
	default:
		return ScopeBoth, fmt.Errorf("%w: %q", ErrUnknownScope, name)
	}
}

// Hunk is a contiguous block of removed and added lines.
//
// Line numbers are 1-based. A pure insertion has OldLines == 0 and OldStart set
// to the old line it follows (0 for the top of the file). A pure deletion has
// NewLines == 0 and NewStart set to the new line it follows. Removed and Added
// keep their line terminators.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Removed  []string
	Added    []string
	// Context is the nearest preceding declaration line, if any.
	Context string
	// Opaque marks a hunk standing for the whole file (binary content,
	// pure renames, mode changes).
	Opaque bool
}

// IsPureAddition reports whether the hunk only adds lines.
func (h Hunk) IsPureAddition() bool {
	return !h.Opaque && h.OldLines == 0
}

// IsPureDeletion reports whether the hunk only removes lines.
func (h Hunk) IsPureDeletion() bool {
	return !h.Opaque && h.NewLines == 0
}

// NewRange returns the first and last new-content lines the hunk occupies.
// Pure deletions occupy the single line they follow, clamped to 1.
func (h Hunk) NewRange() (first, last int) {
	if h.NewLines == 0 {
		anchor := max(h.NewStart, 1)

		return anchor, anchor
	}

	return h.NewStart, h.NewStart + h.NewLines - 1
}

// Size is the number of changed lines, at least 1.
func (h Hunk) Size() int {
	return max(len(h.Removed)+len(h.Added), 1)
}

// oldAnchor is the number of old lines preceding the hunk.
func (h Hunk) oldAnchor() int {
	if h.OldLines == 0 {
		return h.OldStart
	}

	return h.OldStart - 1
}

// FileChange is one file's change: its status, both contents and its hunks.
// It is immutable once built.
type FileChange struct {
	Path       string
	OldPath    string
	Status     Status
	Binary     bool
	Mode       uint32
	OldContent []byte
	NewContent []byte
	Hunks      []Hunk
}

// NewFileChange builds a FileChange and computes its hunks. Binary content,
// and changes that alter no line, get a single opaque hunk.
func NewFileChange(path, oldPath string, status Status, mode uint32, oldContent, newContent []byte) *FileChange {
	fc := &FileChange{
		Path:       path,
		OldPath:    oldPath,
		Status:     status,
		Mode:       mode,
		OldContent: oldContent,
		NewContent: newContent,
		Binary:     textutil.IsBinary(oldContent) || textutil.IsBinary(newContent),
	}

	if !fc.Binary {
		fc.Hunks = ComputeHunks(oldContent, newContent)
	}

	if len(fc.Hunks) == 0 {
		fc.Hunks = []Hunk{{Opaque: true, NewStart: 1, OldStart: 1}}
	}

	return fc
}

// Opaque reports whether the file can only move as a single unit.
func (f *FileChange) Opaque() bool {
	if f.Binary || f.Status == StatusDeleted {
		return true
	}

	return len(f.Hunks) == 1 && f.Hunks[0].Opaque
}

// Lines returns the number of lines of the new content.
func (f *FileChange) Lines() int {
	return textutil.CountLines(f.NewContent)
}

// ChangedLines returns the number of removed and added lines.
func (f *FileChange) ChangedLines() int {
	total := 0
	for _, h := range f.Hunks {
		total += h.Size()
	}

	return total
}

// Changeset is the full set of file changes considered in one run.
type Changeset struct {
	Scope Scope
	Files []*FileChange
}

// Empty reports whether the changeset has no file changes.
func (c *Changeset) Empty() bool {
	return c == nil || len(c.Files) == 0
}

// File returns the change for path, or nil.
func (c *Changeset) File(path string) *FileChange {
	for _, f := range c.Files {
		if f.Path == path {
			return f
		}
	}

	return nil
}

// Paths returns the paths of all changed files.
func (c *Changeset) Paths() []string {
	paths := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		paths = append(paths, f.Path)
	}

	return paths
}

// LineKey identifies one changed line of a changeset.
type LineKey struct {
	Path string
	// Side is '-' for removed lines, '+' for added lines and '*' for opaque hunks.
	Side byte
	Line int
}

// HunkLineKeys returns the keys of every line the hunk changes.
func HunkLineKeys(path string, h Hunk) []LineKey {
	if h.Opaque {
		return []LineKey{{Path: path, Side: '*'}}
	}

	keys := make([]LineKey, 0, len(h.Removed)+len(h.Added))
	for i := range h.Removed {
		keys = append(keys, LineKey{Path: path, Side: '-', Line: h.OldStart + i})
	}

	for i := range h.Added {
		keys = append(keys, LineKey{Path: path, Side: '+', Line: h.NewStart + i})
	}

	return keys
}

// LineKeys returns the keys of every changed line of the file.
func (f *FileChange) LineKeys() map[LineKey]struct{} {
	keys := make(map[LineKey]struct{})
	f.collectKeys(keys)

	return keys
}

func (f *FileChange) collectKeys(keys map[LineKey]struct{}) {
	for _, h := range f.Hunks {
		for _, k := range HunkLineKeys(f.Path, h) {
			keys[k] = struct{}{}
		}
	}
}

// LineKeys returns the keys of every changed line in the changeset.
func (c *Changeset) LineKeys() map[LineKey]struct{} {
	keys := make(map[LineKey]struct{})

	for _, f := range c.Files {
		f.collectKeys(keys)
	}

	return keys
}

// StagedFile is the index state wanted for one path.
type StagedFile struct {
	Path string
	// OldPath is removed from the index when it differs from Path.
	OldPath string
	Content []byte
	Mode    uint32
	Delete  bool
}
