package chunk

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/python"
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/bahn/pkg/safeconv"
)

// ErrSyntax is returned when the parser reports a syntax error at top level.
var ErrSyntax = errors.New("syntax error")

// topNode is a top-level syntax node reduced to what chunking needs.
type topNode struct {
	kind  string
	start int
	end   int
	text  string
}

// grammar holds a tree-sitter language and a pool of parsers for it.
type grammar struct {
	lang *sitter.Language
	pool sync.Pool
}

func newGrammar(fn func() *sitter.Language) func() *grammar {
	return sync.OnceValue(func() *grammar {
		g := &grammar{lang: fn()}
		g.pool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(g.lang)

			return parser
		}

		return g
	})
}

var (
	goGrammar     = newGrammar(func() *sitter.Language { return sitter.NewLanguage(golang.GetLanguage()) })
	pythonGrammar = newGrammar(func() *sitter.Language { return sitter.NewLanguage(python.GetLanguage()) })
)

// topLevel parses src once and returns its top-level named nodes.
func topLevel(src *Source, g *grammar) ([]topNode, error) {
	if src.top != nil {
		return src.top, nil
	}

	parser, ok := g.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, fmt.Errorf("%w: parser pool returned a foreign value", ErrSyntax)
	}
	defer g.pool.Put(parser)

	tree, err := parser.ParseString(context.Background(), nil, src.Content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.Path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, fmt.Errorf("parse %s: %w: empty tree", src.Path, ErrSyntax)
	}

	nodes := make([]topNode, 0, root.NamedChildCount())

	for idx := range root.NamedChildCount() {
		child := root.NamedChild(idx)
		if child.IsNull() {
			continue
		}

		if child.Type() == "ERROR" {
			return nil, fmt.Errorf("%w at line %d", ErrSyntax, child.StartPoint().Row+1)
		}

		start := safeconv.Must[int](uint(child.StartPoint().Row))
		end := safeconv.Must[int](uint(child.EndPoint().Row))

		if child.EndPoint().Column == 0 && end > start {
			end--
		}

		nodes = append(nodes, topNode{
			kind:  child.Type(),
			start: start,
			end:   end,
			text:  string(src.Content[child.StartByte():child.EndByte()]),
		})
	}

	src.top = nodes

	return nodes, nil
}

// preambleOf returns the span of leading nodes accepted by isPreamble,
// comments included.
func preambleOf(nodes []topNode, isPreamble func(topNode) bool) (Span, bool) {
	end := -1

	for _, n := range nodes {
		switch {
		case n.kind == "comment":
		case isPreamble(n):
			end = n.end
		default:
			return Span{Start: 0, End: end}, end >= 0
		}
	}

	return Span{Start: 0, End: end}, end >= 0
}

// unitsAfter turns every non-comment node after the preamble into a unit.
func unitsAfter(nodes []topNode, preambleEnd int, describe func(topNode) (string, Category)) []Unit {
	var units []Unit

	for _, n := range nodes {
		if n.kind == "comment" || n.end <= preambleEnd {
			continue
		}

		name, category := describe(n)
		units = append(units, Unit{Name: name, Category: category, Span: Span{Start: n.start, End: n.end}})
	}

	return units
}

func firstMatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}

	return m[1]
}

type goProfile struct{}

var (
	goFuncName   = regexp.MustCompile(`^func\s+(\w+)`)
	goMethodName = regexp.MustCompile(`^func\s*\(\s*(?:\w+\s+)?\*?\s*(\w+)[^)]*\)\s*(\w+)`)
	goTypeName   = regexp.MustCompile(`^type\s+(\w+)`)
)

func isGoPreamble(n topNode) bool {
	return n.kind == "package_clause" || n.kind == "import_declaration"
}

func (goProfile) LocatePreamble(src *Source) (Span, bool, error) {
	nodes, err := topLevel(src, goGrammar())
	if err != nil {
		return Span{}, false, err
	}

	span, ok := preambleOf(nodes, isGoPreamble)

	return span, ok, nil
}

func (goProfile) LocateUnits(src *Source) ([]Unit, error) {
	nodes, err := topLevel(src, goGrammar())
	if err != nil {
		return nil, err
	}

	span, _ := preambleOf(nodes, isGoPreamble)

	return unitsAfter(nodes, span.End, describeGo), nil
}

func describeGo(n topNode) (string, Category) {
	switch n.kind {
	case "function_declaration":
		return firstMatch(goFuncName, n.text), CategoryFunction
	case "method_declaration":
		m := goMethodName.FindStringSubmatch(n.text)
		if m == nil {
			return "method", CategoryFunction
		}

		return m[1] + "." + m[2], CategoryFunction
	case "type_declaration":
		if name := firstMatch(goTypeName, n.text); name != "" {
			return name, CategoryTypeDecl
		}

		return "types", CategoryTypeDecl
	default:
		return otherName(n.text), CategoryOther
	}
}

func (goProfile) SpanOf(_ *Source, unit Unit) (Span, error) { return unit.Span, nil }

func (goProfile) Attaches(line string) bool {
	trimmed := strings.TrimSpace(line)

	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*")
}

type pythonProfile struct{}

var (
	pyDefName   = regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+(\w+)`)
	pyClassName = regexp.MustCompile(`(?m)^\s*class\s+(\w+)`)
)

func isPythonPreamble(n topNode) bool {
	switch n.kind {
	case "import_statement", "import_from_statement", "future_import_statement":
		return true
	case "expression_statement":
		// A module docstring.
		return strings.HasPrefix(n.text, `"""`) || strings.HasPrefix(n.text, `'''`)
	default:
		return false
	}
}

func (pythonProfile) LocatePreamble(src *Source) (Span, bool, error) {
	nodes, err := topLevel(src, pythonGrammar())
	if err != nil {
		return Span{}, false, err
	}

	span, ok := preambleOf(nodes, isPythonPreamble)

	return span, ok, nil
}

func (pythonProfile) LocateUnits(src *Source) ([]Unit, error) {
	nodes, err := topLevel(src, pythonGrammar())
	if err != nil {
		return nil, err
	}

	span, _ := preambleOf(nodes, isPythonPreamble)

	return unitsAfter(nodes, span.End, describePython), nil
}

func describePython(n topNode) (string, Category) {
	switch n.kind {
	case "function_definition":
		return firstMatch(pyDefName, n.text), CategoryFunction
	case "class_definition":
		return firstMatch(pyClassName, n.text), CategoryTypeDecl
	case "decorated_definition":
		def := pyDefName.FindStringSubmatchIndex(n.text)
		class := pyClassName.FindStringSubmatchIndex(n.text)

		if class != nil && (def == nil || class[0] < def[0]) {
			return n.text[class[2]:class[3]], CategoryTypeDecl
		}

		if def != nil {
			return n.text[def[2]:def[3]], CategoryFunction
		}

		return otherName(n.text), CategoryOther
	default:
		return otherName(n.text), CategoryOther
	}
}

func (pythonProfile) SpanOf(_ *Source, unit Unit) (Span, error) { return unit.Span, nil }

func (pythonProfile) Attaches(line string) bool {
	trimmed := strings.TrimSpace(line)

	return strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "@")
}
