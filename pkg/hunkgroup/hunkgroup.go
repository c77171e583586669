// Package hunkgroup binds every hunk of a file to exactly one chunk and
// suggests clusters of hunks that belong in the same commit.
package hunkgroup

import (
	"cmp"
	"path"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/chunk"
)

// DefaultThreshold is the line distance under which two hunks are clustered.
const DefaultThreshold = 3

// Tagged is a hunk bound to the chunk that contains it.
type Tagged struct {
	Hunk changeset.Hunk
	// Chunk indexes File.Chunks.
	Chunk int
}

// File is one changed file with its final chunks and tagged hunks.
type File struct {
	Change *changeset.FileChange
	// Chunks are the file's chunks after widening, in line order.
	Chunks []chunk.Chunk
	// Hunks are in new-file order.
	Hunks []Tagged
	// Parsed is false when the chunk boundaries came from the whole-file fallback.
	Parsed bool
}

// Path returns the path of the changed file.
func (f *File) Path() string {
	return f.Change.Path
}

// ChangedChunks returns the indexes of chunks holding at least one hunk, in order.
func (f *File) ChangedChunks() []int {
	var out []int

	for _, t := range f.Hunks {
		if len(out) == 0 || out[len(out)-1] != t.Chunk {
			out = append(out, t.Chunk)
		}
	}

	return out
}

// HunksOf returns the hunks tagged with chunk index c.
func (f *File) HunksOf(c int) []changeset.Hunk {
	var out []changeset.Hunk

	for _, t := range f.Hunks {
		if t.Chunk == c {
			out = append(out, t.Hunk)
		}
	}

	return out
}

// Tag binds the hunks of fc to chunks. Chunks that a modifying hunk straddles
// are merged into one; pure additions that cross a boundary are split into
// one sub-hunk per chunk. Opaque files, and files without chunks, become a
// single whole-file unit.
func Tag(fc *changeset.FileChange, cf chunk.File) *File {
	file := &File{Change: fc, Parsed: cf.ParseErr == nil}

	if fc.Opaque() || len(cf.Chunks) == 0 {
		file.Chunks = []chunk.Chunk{wholeFile(fc)}
		for _, h := range fc.Hunks {
			file.Hunks = append(file.Hunks, Tagged{Hunk: h})
		}

		return file
	}

	file.Chunks = widen(cf.Chunks, fc.Hunks)

	for _, h := range fc.Hunks {
		if h.IsPureAddition() {
			for _, sub := range splitAddition(h, file.Chunks) {
				file.Hunks = append(file.Hunks, Tagged{Hunk: sub, Chunk: locate(file.Chunks, sub)})
			}

			continue
		}

		file.Hunks = append(file.Hunks, Tagged{Hunk: h, Chunk: locate(file.Chunks, h)})
	}

	slices.SortStableFunc(file.Hunks, func(a, b Tagged) int {
		return cmp.Or(cmp.Compare(a.Hunk.NewStart, b.Hunk.NewStart), cmp.Compare(a.Hunk.OldStart, b.Hunk.OldStart))
	})

	return file
}

func wholeFile(fc *changeset.FileChange) chunk.Chunk {
	return chunk.Chunk{
		Name:     path.Base(fc.Path),
		Category: chunk.CategoryOther,
		Start:    1,
		End:      max(fc.Lines(), 1),
	}
}

// widen merges runs of chunks joined by a non-addition hunk.
func widen(chunks []chunk.Chunk, hunks []changeset.Hunk) []chunk.Chunk {
	// joined[i] means chunk i and chunk i+1 end up in the same chunk.
	joined := make([]bool, len(chunks))

	for _, h := range hunks {
		if h.IsPureAddition() {
			continue
		}

		first, last := h.NewRange()
		lo, hi := index(chunks, first), index(chunks, last)

		for i := lo; i < hi; i++ {
			joined[i] = true
		}
	}

	out := make([]chunk.Chunk, 0, len(chunks))

	for i := 0; i < len(chunks); i++ {
		merged := chunks[i]
		names := []string{merged.Name}

		for joined[i] && i+1 < len(chunks) {
			i++
			merged.End = chunks[i].End
			names = append(names, chunks[i].Name)

			if chunks[i].Category == chunk.CategoryPreamble {
				merged.Category = chunk.CategoryPreamble
			}
		}

		merged.Name = strings.Join(names, "+")
		out = append(out, merged)
	}

	return out
}

// splitAddition cuts a pure addition at the chunk boundaries it crosses.
func splitAddition(h changeset.Hunk, chunks []chunk.Chunk) []changeset.Hunk {
	first, last := h.NewRange()
	lo, hi := index(chunks, first), index(chunks, last)

	if lo == hi {
		return []changeset.Hunk{h}
	}

	out := make([]changeset.Hunk, 0, hi-lo+1)

	for i := lo; i <= hi; i++ {
		start := max(first, chunks[i].Start)
		end := min(last, chunks[i].End)

		if i == lo {
			start = first
		}

		if i == hi {
			end = last
		}

		if end < start {
			continue
		}

		sub := h
		sub.NewStart = start
		sub.NewLines = end - start + 1
		sub.Added = h.Added[start-first : end-first+1]
		sub.Removed = nil
		sub.Context = chunks[i].Name
		out = append(out, sub)
	}

	return out
}

// index returns the chunk holding line, clamping lines outside every chunk
// to the nearest one.
func index(chunks []chunk.Chunk, line int) int {
	for i, c := range chunks {
		if line <= c.End {
			return i
		}
	}

	return len(chunks) - 1
}

func locate(chunks []chunk.Chunk, h changeset.Hunk) int {
	first, _ := h.NewRange()

	return index(chunks, first)
}

// Suggest clusters the file's hunks. Consecutive hunks share a cluster when
// they sit in the same chunk, in adjacent changed chunks, or within threshold
// lines of each other. The result holds indexes into f.Hunks.
func Suggest(f *File, threshold int) [][]int {
	if len(f.Hunks) == 0 {
		return nil
	}

	if threshold < 0 {
		threshold = DefaultThreshold
	}

	clusters := [][]int{{0}}

	for i := 1; i < len(f.Hunks); i++ {
		prev, cur := f.Hunks[i-1], f.Hunks[i]
		_, prevLast := prev.Hunk.NewRange()
		curFirst, _ := cur.Hunk.NewRange()

		together := cur.Chunk-prev.Chunk <= 1 || curFirst-prevLast-1 <= threshold
		if together {
			clusters[len(clusters)-1] = append(clusters[len(clusters)-1], i)

			continue
		}

		clusters = append(clusters, []int{i})
	}

	return clusters
}
