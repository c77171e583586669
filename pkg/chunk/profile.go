package chunk

import (
	"path"
	"strings"

	"github.com/Sumatoshi-tech/bahn/pkg/textutil"
)

// Source is the content of one file as seen by a profile.
type Source struct {
	Path    string
	Content []byte
	Lines   []string

	// top caches the top-level syntax nodes of tree-sitter profiles.
	top []topNode
}

// NewSource splits content into lines.
func NewSource(filePath string, content []byte) *Source {
	return &Source{Path: filePath, Content: content, Lines: textutil.SplitLines(string(content))}
}

// Span is an inclusive range of 0-based line indexes.
type Span struct {
	Start int
	End   int
}

// Unit is a top-level declaration found by a profile. Span.End may stop at
// the declaration's header line; SpanOf resolves the real end.
type Unit struct {
	Name     string
	Category Category
	Span     Span
}

// Profile finds the structure of files written in one language family.
type Profile interface {
	// LocatePreamble returns the leading span of package, import and include
	// statements, including comments interleaved with them.
	LocatePreamble(src *Source) (Span, bool, error)
	// LocateUnits returns the top-level declarations in file order.
	LocateUnits(src *Source) ([]Unit, error)
	// SpanOf returns the full extent of a unit.
	SpanOf(src *Source, unit Unit) (Span, error)
	// Attaches reports whether a line preceding a unit belongs to it, as doc
	// comments, decorators and attributes do.
	Attaches(line string) bool
}

// ProfileFor returns the profile for lang. Unknown languages get the
// identity profile.
func ProfileFor(lang Language) Profile {
	switch lang {
	case LangGo:
		return goProfile{}
	case LangPython:
		return pythonProfile{}
	case LangRust, LangJavaScript, LangTypeScript, LangJava, LangKotlin, LangScala,
		LangC, LangCPP, LangCSharp, LangSwift, LangPHP:
		return braceProfiles[lang]
	case LangUnknown:
		return identityProfile{}
	default:
		return identityProfile{}
	}
}

// Split decomposes src with profile into non-overlapping chunks covering
// every line.
func Split(src *Source, profile Profile) ([]Chunk, error) {
	b := &builder{lines: src.Lines, pending: -1}
	if len(b.lines) == 0 {
		return nil, nil
	}

	preamble, ok, err := profile.LocatePreamble(src)
	if err != nil {
		return nil, err
	}

	if ok {
		b.add(Chunk{Name: "imports", Category: CategoryPreamble, Start: 1, End: preamble.End + 1})
		b.next = preamble.End + 1
	}

	units, err := profile.LocateUnits(src)
	if err != nil {
		return nil, err
	}

	for _, unit := range units {
		span, spanErr := profile.SpanOf(src, unit)
		if spanErr != nil {
			return nil, spanErr
		}

		if span.End < b.next {
			continue
		}

		span.Start = max(span.Start, b.next)

		for span.Start > b.next && profile.Attaches(b.lines[span.Start-1]) {
			span.Start--
		}

		b.gap(b.next, span.Start-1)
		b.add(Chunk{Name: unit.Name, Category: unit.Category, Start: span.Start + 1, End: span.End + 1})
		b.next = span.End + 1
	}

	b.gap(b.next, len(b.lines)-1)

	if b.pending >= 0 {
		b.add(Chunk{Name: "other", Category: CategoryOther, Start: b.pending + 1, End: len(b.lines)})
	}

	return b.chunks, nil
}

type builder struct {
	lines  []string
	chunks []Chunk
	next   int
	// pending is the first line of a blank run waiting for the next chunk.
	pending int
}

func (b *builder) add(c Chunk) {
	if b.pending >= 0 {
		c.Start = b.pending + 1
		b.pending = -1
	}

	b.chunks = append(b.chunks, c)
}

// gap assigns lines from..to, which no unit claimed. Leading blank lines
// extend the previous chunk; anything else becomes an "other" chunk.
func (b *builder) gap(from, to int) {
	if from > to {
		return
	}

	i := from
	if len(b.chunks) > 0 {
		for i <= to && textutil.IsBlank(b.lines[i]) {
			i++
		}

		b.chunks[len(b.chunks)-1].End = i
	}

	if i > to {
		return
	}

	name := ""

	for _, line := range b.lines[i : to+1] {
		if !textutil.IsBlank(line) {
			name = otherName(line)

			break
		}
	}

	if name == "" {
		if b.pending < 0 {
			b.pending = i
		}

		return
	}

	b.add(Chunk{Name: name, Category: CategoryOther, Start: i + 1, End: to + 1})
}

const maxNameFields = 2

func otherName(line string) string {
	fields := strings.Fields(line)
	if len(fields) > maxNameFields {
		fields = fields[:maxNameFields]
	}

	return strings.Join(fields, " ")
}

// identityProfile treats the whole file as one chunk.
type identityProfile struct{}

func (identityProfile) LocatePreamble(*Source) (Span, bool, error) { return Span{}, false, nil }

func (identityProfile) LocateUnits(src *Source) ([]Unit, error) {
	return []Unit{{
		Name:     path.Base(src.Path),
		Category: CategoryOther,
		Span:     Span{Start: 0, End: len(src.Lines) - 1},
	}}, nil
}

func (identityProfile) SpanOf(_ *Source, unit Unit) (Span, error) { return unit.Span, nil }

func (identityProfile) Attaches(string) bool { return false }
