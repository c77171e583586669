// Package assemble turns the natural order of changed chunks into commit
// groups, merging or splitting them to reach a requested commit count.
package assemble

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/chunk"
	"github.com/Sumatoshi-tech/bahn/pkg/hunkgroup"
	"github.com/Sumatoshi-tech/bahn/pkg/ordering"
)

// Sentinel errors.
var (
	ErrNoUnits           = errors.New("nothing to assemble")
	ErrUnknownMode       = errors.New("unknown split mode")
	ErrUnsatisfiable     = errors.New("target commit count unsatisfiable")
	ErrInvariantViolated = errors.New("group invariant violated")
)

// Mode is the granularity of the atomic units that groups are built from.
type Mode int

// Split modes.
const (
	// ModeChunk makes one group per changed logical chunk.
	ModeChunk Mode = iota
	// ModeFile makes one group per changed file.
	ModeFile
	// ModeHunk makes one group per cluster of related hunks and allows
	// splitting a chunk's hunks across groups.
	ModeHunk
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeHunk:
		return "hunk"
	case ModeChunk:
		return "chunk"
	default:
		return "unknown"
	}
}

// ParseMode parses a split mode name.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "chunk", "logical", "semantic":
		return ModeChunk, nil
	case "file", "files":
		return ModeFile, nil
	case "hunk", "hunks":
		return ModeHunk, nil
	default:
		return ModeChunk, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// UnsatisfiableTargetCommitsError reports that fewer groups than requested
// could be formed. The assembly still succeeds with Achieved groups.
type UnsatisfiableTargetCommitsError struct {
	Requested int
	Achieved  int
}

func (e *UnsatisfiableTargetCommitsError) Error() string {
	return fmt.Sprintf("requested %d commits but only %d atomic units exist", e.Requested, e.Achieved)
}

// Unwrap returns ErrUnsatisfiable.
func (e *UnsatisfiableTargetCommitsError) Unwrap() error { return ErrUnsatisfiable }

// InvariantViolationError reports groups that do not cover the changeset
// exactly once.
type InvariantViolationError struct {
	Missing   []changeset.LineKey
	Duplicate []changeset.LineKey
	// Extra holds lines that are not part of the changeset at all.
	Extra []changeset.LineKey
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("groups miss %d, duplicate %d and invent %d changed lines",
		len(e.Missing), len(e.Duplicate), len(e.Extra))
}

// Unwrap returns ErrInvariantViolated.
func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolated }

// Part is the slice of one file that a group commits.
type Part struct {
	File   *hunkgroup.File
	Bucket ordering.Bucket
	// Chunks names the chunks the part touches, in order.
	Chunks []string
	Hunks  []changeset.Hunk
}

// Path returns the path of the part's file.
func (p Part) Path() string {
	return p.File.Path()
}

// Group is the set of lines that becomes one commit.
type Group struct {
	Parts []Part
}

// Bucket returns the lowest bucket the group touches.
func (g Group) Bucket() ordering.Bucket {
	lowest := ordering.BucketDocs
	for _, p := range g.Parts {
		lowest = min(lowest, p.Bucket)
	}

	return lowest
}

// Paths returns the paths the group touches, in order.
func (g Group) Paths() []string {
	paths := make([]string, 0, len(g.Parts))
	for _, p := range g.Parts {
		paths = append(paths, p.Path())
	}

	return paths
}

// Size returns the number of changed lines in the group.
func (g Group) Size() int {
	total := 0

	for _, p := range g.Parts {
		for _, h := range p.Hunks {
			total += h.Size()
		}
	}

	return total
}

// Label describes the group as "<bucket>: update <path>", naming the number
// of further files when there are several.
func (g Group) Label() string {
	paths := g.Paths()
	if len(paths) == 0 {
		return g.Bucket().String() + ": update"
	}

	label := fmt.Sprintf("%s: update %s", g.Bucket(), paths[0])
	if len(paths) > 1 {
		label += fmt.Sprintf(" and %d more", len(paths)-1)
	}

	return label
}

// Options configures Assemble.
type Options struct {
	Mode Mode
	// Target is the requested group count. Zero keeps the natural grouping.
	Target int
	// Threshold is the hunk clustering distance used in hunk mode.
	Threshold int
}

// Result is the outcome of Assemble.
type Result struct {
	Groups []Group
	// Warnings holds non-fatal problems, such as an unsatisfiable target.
	Warnings []error
}

// Assemble builds commit groups from entries in natural order. The groups
// cover every changed line of every entry exactly once.
func Assemble(entries []ordering.Entry, opts Options) (Result, error) {
	seq := buildSequence(entries, opts)
	if len(seq.atoms) == 0 {
		return Result{}, ErrNoUnits
	}

	cuts := seq.rawCuts(opts.Mode)

	var result Result

	switch target := opts.Target; {
	case target <= 0 || target == len(cuts)+1:
	case target < len(cuts)+1:
		cuts = seq.merge(cuts, target)
	default:
		cuts = seq.split(cuts, target)
		if len(cuts)+1 < target {
			result.Warnings = append(result.Warnings, &UnsatisfiableTargetCommitsError{
				Requested: target,
				Achieved:  len(cuts) + 1,
			})
		}
	}

	result.Groups = seq.groups(cuts)

	if err := Verify(entries, result.Groups); err != nil {
		return Result{}, err
	}

	return result, nil
}

// Verify checks that groups cover the changed lines of entries exactly once.
func Verify(entries []ordering.Entry, groups []Group) error {
	want := make(map[changeset.LineKey]struct{})
	for _, e := range entries {
		for k := range e.File.Change.LineKeys() {
			want[k] = struct{}{}
		}
	}

	seen := make(map[changeset.LineKey]struct{}, len(want))
	violation := &InvariantViolationError{}

	for _, g := range groups {
		for _, p := range g.Parts {
			for _, h := range p.Hunks {
				for _, k := range changeset.HunkLineKeys(p.Path(), h) {
					if _, dup := seen[k]; dup {
						violation.Duplicate = append(violation.Duplicate, k)
					}

					seen[k] = struct{}{}
				}
			}
		}
	}

	for k := range want {
		if _, ok := seen[k]; !ok {
			violation.Missing = append(violation.Missing, k)
		}
	}

	for k := range seen {
		if _, ok := want[k]; !ok {
			violation.Extra = append(violation.Extra, k)
		}
	}

	if len(violation.Missing) > 0 || len(violation.Duplicate) > 0 || len(violation.Extra) > 0 {
		return violation
	}

	return nil
}

// level is the structural weight of a boundary between two atoms.
type level int

const (
	// levelInside separates hunks of a file that only moves as one unit.
	levelInside level = iota - 1
	levelHunk
	levelChunk
	levelCluster
	levelFile
)

// atom is the smallest unit: one tagged hunk.
type atom struct {
	entry    int
	chunk    int
	hunk     changeset.Hunk
	size     int
	cluster  int
	category chunk.Category
	whole    bool
}

type sequence struct {
	entries []ordering.Entry
	atoms   []atom
}

func buildSequence(entries []ordering.Entry, opts Options) *sequence {
	seq := &sequence{entries: entries}

	for ei, e := range entries {
		for ci, c := range atomOrder(e, opts) {
			for _, t := range c {
				seq.atoms = append(seq.atoms, atom{
					entry:    ei,
					chunk:    t.Chunk,
					hunk:     t.Hunk,
					size:     t.Hunk.Size(),
					cluster:  ci,
					category: e.File.Chunks[t.Chunk].Category,
					whole:    e.File.Change.Opaque(),
				})
			}
		}
	}

	return seq
}

// atomOrder lists the file's tagged hunks in natural order, bundled into
// clusters. Outside hunk mode every changed chunk is its own cluster.
func atomOrder(e ordering.Entry, opts Options) [][]hunkgroup.Tagged {
	file := e.File

	if opts.Mode != ModeHunk {
		units := e.Units()
		out := make([][]hunkgroup.Tagged, 0, len(units))

		for _, c := range units {
			var tagged []hunkgroup.Tagged

			for _, t := range file.Hunks {
				if t.Chunk == c {
					tagged = append(tagged, t)
				}
			}

			out = append(out, tagged)
		}

		return out
	}

	clusters := hunkgroup.Suggest(file, opts.Threshold)
	out := make([][]hunkgroup.Tagged, 0, len(clusters))
	rest := make([][]hunkgroup.Tagged, 0, len(clusters))

	for _, cluster := range clusters {
		tagged := make([]hunkgroup.Tagged, 0, len(cluster))
		preamble := false

		for _, i := range cluster {
			t := file.Hunks[i]
			tagged = append(tagged, t)
			preamble = preamble || file.Chunks[t.Chunk].Category == chunk.CategoryPreamble
		}

		if preamble {
			out = append(out, tagged)
		} else {
			rest = append(rest, tagged)
		}
	}

	return append(out, rest...)
}

// boundary returns the level of the boundary before atom i.
func (s *sequence) boundary(i int) level {
	prev, cur := s.atoms[i-1], s.atoms[i]

	switch {
	case prev.entry != cur.entry:
		return levelFile
	case cur.whole:
		return levelInside
	case prev.cluster != cur.cluster:
		return levelCluster
	case prev.chunk != cur.chunk:
		return levelChunk
	default:
		return levelHunk
	}
}

// rawCuts returns the atom indexes where the natural groups start, the
// first group excluded.
func (s *sequence) rawCuts(mode Mode) []int {
	var cuts []int

	for i := 1; i < len(s.atoms); i++ {
		lvl := s.boundary(i)

		switch mode {
		case ModeFile:
			if lvl == levelFile {
				cuts = append(cuts, i)
			}
		case ModeChunk:
			if lvl >= levelChunk {
				cuts = append(cuts, i)
			}
		case ModeHunk:
			if lvl >= levelCluster {
				cuts = append(cuts, i)
			}
		}
	}

	return cuts
}

// span is a group as a half-open atom range.
type span struct{ lo, hi int }

func spans(cuts []int, n int) []span {
	out := make([]span, 0, len(cuts)+1)
	lo := 0

	for _, c := range cuts {
		out = append(out, span{lo, c})
		lo = c
	}

	return append(out, span{lo, n})
}

func (s *sequence) size(sp span) int {
	total := 0
	for _, a := range s.atoms[sp.lo:sp.hi] {
		total += a.size
	}

	return total
}

func (s *sequence) buckets(sp span) (lo, hi ordering.Bucket) {
	lo, hi = ordering.BucketDocs, ordering.BucketConfig
	for _, a := range s.atoms[sp.lo:sp.hi] {
		b := s.entries[a.entry].Bucket
		lo, hi = min(lo, b), max(hi, b)
	}

	return lo, hi
}

// mergeCost ranks merging the adjacent spans a and b. Lower is better.
type mergeCost struct {
	bucketSpan int
	crossFile  int
	mismatch   int
	size       int
}

func (c mergeCost) compare(o mergeCost) int {
	return cmp.Or(
		cmp.Compare(c.bucketSpan, o.bucketSpan),
		cmp.Compare(c.crossFile, o.crossFile),
		cmp.Compare(c.mismatch, o.mismatch),
		cmp.Compare(c.size, o.size),
	)
}

func (s *sequence) mergeCost(a, b span) mergeCost {
	lo, hi := s.buckets(span{a.lo, b.hi})
	cost := mergeCost{
		bucketSpan: int(hi - lo),
		size:       s.size(a) + s.size(b),
	}

	if s.atoms[a.lo].entry != s.atoms[b.hi-1].entry {
		cost.crossFile = 1
	}

	if s.atoms[a.lo].category != s.atoms[b.lo].category {
		cost.mismatch = 1
	}

	return cost
}

// merge removes cuts until target groups remain, each time joining the
// adjacent pair with the narrowest bucket span. Ties go to the later pair.
func (s *sequence) merge(cuts []int, target int) []int {
	for len(cuts)+1 > target {
		groups := spans(cuts, len(s.atoms))
		best := 0
		bestCost := s.mergeCost(groups[0], groups[1])

		for i := 1; i+1 < len(groups); i++ {
			cost := s.mergeCost(groups[i], groups[i+1])
			if cost.compare(bestCost) <= 0 {
				best, bestCost = i, cost
			}
		}

		cuts = append(cuts[:best:best], cuts[best+1:]...)
	}

	return cuts
}

// split adds cuts until target groups exist or no group can be split. The
// largest splittable group is cut at its coarsest internal boundary, picking
// the most balanced one among boundaries of that level. A group that is one
// chunk in chunk mode, or one file in file mode, is split at the next finer
// level, down to single hunks.
func (s *sequence) split(cuts []int, target int) []int {
	for len(cuts)+1 < target {
		bestAt, bestSize := -1, -1

		for _, sp := range spans(cuts, len(s.atoms)) {
			at := s.splitPoint(sp)
			if at < 0 {
				continue
			}

			if size := s.size(sp); size > bestSize {
				bestAt, bestSize = at, size
			}
		}

		if bestAt < 0 {
			return cuts
		}

		cuts = insertSorted(cuts, bestAt)
	}

	return cuts
}

func (s *sequence) splitPoint(sp span) int {
	coarsest := levelInside

	for i := sp.lo + 1; i < sp.hi; i++ {
		coarsest = max(coarsest, s.boundary(i))
	}

	if coarsest == levelInside {
		return -1
	}

	total := s.size(sp)
	best, bestDiff := -1, total+1
	left := 0

	for i := sp.lo + 1; i < sp.hi; i++ {
		left += s.atoms[i-1].size
		if s.boundary(i) != coarsest {
			continue
		}

		diff := total - 2*left
		if diff < 0 {
			diff = -diff
		}

		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}

	return best
}

func insertSorted(cuts []int, at int) []int {
	i := 0
	for i < len(cuts) && cuts[i] < at {
		i++
	}

	out := make([]int, 0, len(cuts)+1)
	out = append(out, cuts[:i]...)
	out = append(out, at)

	return append(out, cuts[i:]...)
}

// groups materializes the spans delimited by cuts.
func (s *sequence) groups(cuts []int) []Group {
	out := make([]Group, 0, len(cuts)+1)

	for _, sp := range spans(cuts, len(s.atoms)) {
		var group Group

		for _, a := range s.atoms[sp.lo:sp.hi] {
			entry := s.entries[a.entry]
			name := entry.File.Chunks[a.chunk].Name

			last := len(group.Parts) - 1
			if last < 0 || group.Parts[last].File != entry.File {
				group.Parts = append(group.Parts, Part{File: entry.File, Bucket: entry.Bucket})
				last++
			}

			part := &group.Parts[last]
			part.Hunks = append(part.Hunks, a.hunk)

			if n := len(part.Chunks); n == 0 || part.Chunks[n-1] != name {
				part.Chunks = append(part.Chunks, name)
			}
		}

		out = append(out, group)
	}

	return out
}
