package changeset

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/bahn/pkg/textutil"
)

// maxContextLength bounds the context label copied from the declaration line.
const maxContextLength = 80

// ComputeHunks computes the line hunks turning oldContent into newContent.
// Hunks carry no context lines: each is one contiguous change block.
func ComputeHunks(oldContent, newContent []byte) []Hunk {
	dmp := diffmatchpatch.New()

	oldChars, newChars, lineArray := dmp.DiffLinesToChars(string(oldContent), string(newContent))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lineArray)

	newLines := textutil.SplitLines(string(newContent))

	var (
		hunks   []Hunk
		current *Hunk
		oldLine int
		newLine int
	)

	flush := func() {
		if current == nil {
			return
		}

		current.OldLines = len(current.Removed)
		current.NewLines = len(current.Added)

		if current.OldLines == 0 {
			current.OldStart--
		}

		if current.NewLines == 0 {
			current.NewStart--
		}

		current.Context = contextLabel(newLines, newLine-current.NewLines)
		hunks = append(hunks, *current)
		current = nil
	}

	for _, d := range diffs {
		lines := textutil.SplitLines(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()

			oldLine += len(lines)
			newLine += len(lines)
		case diffmatchpatch.DiffDelete:
			if current == nil {
				current = &Hunk{OldStart: oldLine + 1, NewStart: newLine + 1}
			}

			current.Removed = append(current.Removed, lines...)
			oldLine += len(lines)
		case diffmatchpatch.DiffInsert:
			if current == nil {
				current = &Hunk{OldStart: oldLine + 1, NewStart: newLine + 1}
			}

			current.Added = append(current.Added, lines...)
			newLine += len(lines)
		}
	}

	flush()

	return hunks
}

// contextLabel returns the nearest line above index that starts a top-level
// declaration, the way git picks its default hunk header.
func contextLabel(lines []string, index int) string {
	for i := min(index, len(lines)) - 1; i >= 0; i-- {
		line := textutil.TrimEOL(lines[i])
		if line == "" {
			continue
		}

		c := line[0]
		if c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			if len(line) > maxContextLength {
				line = line[:maxContextLength]
			}

			return line
		}
	}

	return ""
}
