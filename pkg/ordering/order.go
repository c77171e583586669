package ordering

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/bahn/pkg/chunk"
	"github.com/Sumatoshi-tech/bahn/pkg/hunkgroup"
)

// Entry is a changed file placed in the natural order.
type Entry struct {
	File   *hunkgroup.File
	Bucket Bucket
}

// Depth is the number of directories above the file.
func (e Entry) Depth() int {
	return strings.Count(e.File.Path(), "/")
}

// Units returns the indexes of the file's changed chunks in natural order:
// preamble chunks first, then file order.
func (e Entry) Units() []int {
	units := e.File.ChangedChunks()

	slices.SortStableFunc(units, func(a, b int) int {
		return cmp.Compare(preambleRank(e.File.Chunks[a]), preambleRank(e.File.Chunks[b]))
	})

	return units
}

func preambleRank(c chunk.Chunk) int {
	if c.Category == chunk.CategoryPreamble {
		return 0
	}

	return 1
}

// Order classifies files and sorts them by bucket, then path depth, then
// path. The result does not depend on the input order.
func Order(files []*hunkgroup.File, rules *Rules) []Entry {
	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, Entry{File: f, Bucket: rules.Classify(f.Path())})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.Bucket, b.Bucket),
			cmp.Compare(a.Depth(), b.Depth()),
			strings.Compare(a.File.Path(), b.File.Path()),
		)
	})

	return entries
}
