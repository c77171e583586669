package changeset

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/bahn/pkg/textutil"
)

// ErrHunkMismatch is returned when a hunk does not apply to the old content.
var ErrHunkMismatch = errors.New("hunk does not apply")

// Apply rebuilds the content obtained by applying hunks to oldContent.
// Hunks may be any subset of a file's hunks, including sub-hunks produced by
// splitting a pure addition; they are applied in old-file order.
func Apply(oldContent []byte, hunks []Hunk) ([]byte, error) {
	oldLines := textutil.SplitLines(string(oldContent))

	sorted := slices.Clone(hunks)
	slices.SortStableFunc(sorted, func(a, b Hunk) int {
		return cmp.Or(cmp.Compare(a.oldAnchor(), b.oldAnchor()), cmp.Compare(a.NewStart, b.NewStart))
	})

	var out strings.Builder

	out.Grow(len(oldContent))

	pos := 0

	for _, h := range sorted {
		if h.Opaque {
			return nil, fmt.Errorf("%w: opaque hunk cannot be applied line by line", ErrHunkMismatch)
		}

		anchor := h.oldAnchor()
		if anchor < pos || anchor+h.OldLines > len(oldLines) {
			return nil, fmt.Errorf("%w: old range %d,%d out of order", ErrHunkMismatch, h.OldStart, h.OldLines)
		}

		for _, line := range oldLines[pos:anchor] {
			out.WriteString(line)
		}

		for i, removed := range h.Removed {
			if oldLines[anchor+i] != removed {
				return nil, fmt.Errorf("%w: line %d differs", ErrHunkMismatch, anchor+i+1)
			}
		}

		for _, added := range h.Added {
			out.WriteString(added)
		}

		pos = anchor + h.OldLines
	}

	for _, line := range oldLines[pos:] {
		out.WriteString(line)
	}

	return []byte(out.String()), nil
}

// Content returns the file content after applying the given subset of the
// file's hunks. An opaque hunk, or the complete hunk set, yields the new content.
func (f *FileChange) Content(hunks []Hunk) ([]byte, error) {
	for _, h := range hunks {
		if h.Opaque {
			return f.NewContent, nil
		}
	}

	if countLines(hunks) == countLines(f.Hunks) && len(hunks) >= len(f.Hunks) {
		return f.NewContent, nil
	}

	content, err := Apply(f.OldContent, hunks)
	if err != nil {
		return nil, fmt.Errorf("apply hunks to %s: %w", f.Path, err)
	}

	return content, nil
}

func countLines(hunks []Hunk) int {
	total := 0
	for _, h := range hunks {
		total += len(h.Removed) + len(h.Added)
	}

	return total
}
