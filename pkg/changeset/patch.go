package changeset

import (
	"fmt"
	"strings"
)

const noNewlineMarker = "\\ No newline at end of file\n"

// FormatPatch renders the given hunks of a file as a unified diff without
// context lines. The result is meant for humans and message generators, not
// for git apply.
func FormatPatch(f *FileChange, hunks []Hunk) string {
	var b strings.Builder

	oldPath, newPath := "a/"+f.Path, "b/"+f.Path
	if f.OldPath != "" {
		oldPath = "a/" + f.OldPath
	}

	fmt.Fprintf(&b, "diff --git %s %s\n", oldPath, newPath)

	switch f.Status {
	case StatusAdded:
		oldPath = "/dev/null"

		b.WriteString("new file\n")
	case StatusDeleted:
		newPath = "/dev/null"

		b.WriteString("deleted file\n")
	case StatusRenamed:
		fmt.Fprintf(&b, "rename from %s\nrename to %s\n", f.OldPath, f.Path)
	case StatusModified:
	}

	if f.Binary {
		fmt.Fprintf(&b, "Binary files %s and %s differ\n", oldPath, newPath)

		return b.String()
	}

	fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldPath, newPath)

	for _, h := range hunks {
		if h.Opaque {
			continue
		}

		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)

		if h.Context != "" {
			b.WriteString(" " + h.Context)
		}

		b.WriteByte('\n')
		writeLines(&b, "-", h.Removed)
		writeLines(&b, "+", h.Added)
	}

	return b.String()
}

func writeLines(b *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		b.WriteString(prefix)
		b.WriteString(line)

		if !strings.HasSuffix(line, "\n") {
			b.WriteByte('\n')
			b.WriteString(noNewlineMarker)
		}
	}
}
