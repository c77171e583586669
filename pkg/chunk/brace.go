package chunk

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnbalanced is returned when a declaration's braces never close.
var ErrUnbalanced = errors.New("unbalanced braces")

type unitRule struct {
	re       *regexp.Regexp
	category Category
	prefix   string
	// after, when set, must match the previous line, which then opens the
	// unit. It carries a return type written on its own line.
	after *regexp.Regexp
}

// braceProfile recognizes C-family languages by line patterns and finds the
// end of each declaration by brace balance, skipping strings and comments.
type braceProfile struct {
	preamble []*regexp.Regexp
	units    []unitRule
	attach   []*regexp.Regexp
	// charQuotes treats ' as a character literal delimiter, not a string.
	charQuotes bool
	// hashComments treats # as a line comment.
	hashComments bool
}

var commonAttach = regexp.MustCompile(`^\s*(?://|/\*|\*|@)`)

func rx(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}

	return out
}

func rule(category Category, pattern string) unitRule {
	return unitRule{re: regexp.MustCompile(pattern), category: category}
}

var braceProfiles = map[Language]braceProfile{
	LangRust: {
		preamble: rx(`^\s*(?:pub(?:\([^)]*\))?\s+)?use\s`, `^\s*extern\s+crate\s`,
			`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+\w+\s*;`, `^#!\[`),
		units: []unitRule{
			rule(CategoryTypeDecl, `^(?:pub(?:\([^)]*\))?\s+)?(?:unsafe\s+)?(?:struct|enum|union|trait|type)\s+(?P<name>\w+)`),
			{re: regexp.MustCompile(`^(?:unsafe\s+)?impl(?:<[^>]*>)?\s+(?P<name>[^{]+?)\s*(?:\{|where\b|$)`),
				category: CategoryTypeDecl, prefix: "impl "},
			rule(CategoryFunction, `^(?:pub(?:\([^)]*\))?\s+)?(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?(?:extern\s+"[^"]*"\s+)?fn\s+(?P<name>\w+)`),
			rule(CategoryFunction, `^macro_rules!\s*(?P<name>\w+)`),
			{re: regexp.MustCompile(`^(?:pub\s+)?mod\s+(?P<name>\w+)\s*\{`), category: CategoryOther, prefix: "mod "},
		},
		attach:     rx(`^\s*#\[`),
		charQuotes: true,
	},
	LangJavaScript: jsProfile(),
	LangTypeScript: jsProfile(),
	LangJava: {
		preamble: rx(`^package\s`, `^import\s`),
		units: []unitRule{
			rule(CategoryTypeDecl, `^(?:(?:public|protected|private|abstract|final|static|sealed|non-sealed|strictfp)\s+)*(?:class|interface|enum|record|@interface)\s+(?P<name>\w+)`),
		},
		charQuotes: true,
	},
	LangKotlin: {
		preamble: rx(`^package\s`, `^import\s`),
		units: []unitRule{
			rule(CategoryTypeDecl, `^(?:(?:public|private|internal|protected|abstract|open|sealed|data|inline|value|enum|annotation|inner)\s+)*(?:class|interface|object)\s+(?P<name>\w+)`),
			rule(CategoryFunction, `^(?:(?:public|private|internal|protected|inline|suspend|operator|infix|tailrec|override)\s+)*fun\s+(?:<[^>]*>\s*)?(?:[\w.]+\.)?(?P<name>\w+)`),
		},
		charQuotes: true,
	},
	LangScala: {
		preamble: rx(`^package\s`, `^import\s`),
		units: []unitRule{
			rule(CategoryTypeDecl, `^(?:(?:final|sealed|abstract|case|implicit|private|protected)\s+)*(?:class|trait|object|enum)\s+(?P<name>\w+)`),
			rule(CategoryFunction, `^(?:(?:private|protected|override|implicit|inline)\s+)*def\s+(?P<name>\w+)`),
		},
		charQuotes: true,
	},
	LangC:   cProfile(),
	LangCPP: cProfile(),
	LangCSharp: {
		preamble: rx(`^(?:global\s+)?using\s+[\w.=\s]+;`, `^namespace\s+[\w.]+\s*;`),
		units: []unitRule{
			rule(CategoryTypeDecl, `^(?:(?:public|private|protected|internal|static|abstract|sealed|partial|readonly|ref|unsafe|file)\s+)*(?:class|interface|struct|enum|record)\s+(?P<name>\w+)`),
			{re: regexp.MustCompile(`^namespace\s+(?P<name>[\w.]+)\s*\{?\s*$`), category: CategoryOther, prefix: "namespace "},
		},
		attach:     rx(`^\s*\[`),
		charQuotes: true,
	},
	LangSwift: {
		preamble: rx(`^(?:@testable\s+)?import\s`),
		units: []unitRule{
			rule(CategoryTypeDecl, `^(?:(?:public|private|internal|fileprivate|open|final|indirect)\s+)*(?:class|struct|enum|protocol|extension|actor)\s+(?P<name>[\w.]+)`),
			rule(CategoryFunction, `^(?:(?:public|private|internal|fileprivate|open|static|@\w+)\s+)*func\s+(?P<name>\w+)`),
		},
	},
	LangPHP: {
		preamble: rx(`^<\?php`, `^namespace\s`, `^use\s`, `^(?:require|require_once|include|include_once)\b`, `^declare\s*\(`),
		units: []unitRule{
			rule(CategoryTypeDecl, `^(?:(?:abstract|final|readonly)\s+)*(?:class|interface|trait|enum)\s+(?P<name>\w+)`),
			rule(CategoryFunction, `^function\s+&?(?P<name>\w+)`),
		},
		attach:       rx(`^\s*#\[`),
		hashComments: true,
	},
}

func jsProfile() braceProfile {
	return braceProfile{
		preamble: rx(`^import\b`, `^export\s+(?:\*|\{|type\s+\{)[^;]*\bfrom\b`,
			`^(?:const|let|var)\s+[\w${}\s,:]+=\s*require\(`, `^['"]use (?:strict|client|server)['"]`),
		units: []unitRule{
			rule(CategoryFunction, `^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(?P<name>[\w$]+)`),
			rule(CategoryFunction, `^(?:export\s+)?(?:const|let|var)\s+(?P<name>[\w$]+)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*(?::\s*[^=]+)?=>|[\w$]+\s*=>)`),
			rule(CategoryTypeDecl, `^(?:export\s+)?(?:default\s+)?(?:abstract\s+)?(?:declare\s+)?class\s+(?P<name>[\w$]+)`),
			rule(CategoryTypeDecl, `^(?:export\s+)?(?:declare\s+)?(?:interface|enum|const\s+enum|namespace|module)\s+(?P<name>[\w$.]+)`),
			rule(CategoryTypeDecl, `^(?:export\s+)?type\s+(?P<name>[\w$]+)`),
		},
	}
}

func cProfile() braceProfile {
	return braceProfile{
		preamble: rx(`^#\s*(?:include|import|pragma)\b`, `^#\s*(?:ifndef|define)\s+\w+_H\w*\s*$`, `^using\s+namespace\s`),
		units: []unitRule{
			rule(CategoryTypeDecl, `^(?:typedef\s+)?(?:struct|union|enum(?:\s+class)?|class)\s+(?P<name>\w+)`),
			{re: regexp.MustCompile(`^namespace\s+(?P<name>[\w:]+)\s*\{`), category: CategoryOther, prefix: "namespace "},
			rule(CategoryFunction, `^(?:(?:static|inline|extern|const|unsigned|signed|virtual|constexpr)\s+)*[A-Za-z_][\w:<>,*&\s]*?[\s*&](?P<name>[~A-Za-z_][\w:~]*)\s*\([^;]*$`),
			{re: regexp.MustCompile(`^(?P<name>[~A-Za-z_][\w:~]*)\s*\([^;]*$`), category: CategoryFunction,
				after: regexp.MustCompile(`^(?:[A-Za-z_][\w:<>,]*[\s*&]*)+$`)},
		},
		attach:     rx(`^template\s*<`),
		charQuotes: true,
	}
}

func (p braceProfile) LocatePreamble(src *Source) (Span, bool, error) {
	end := -1
	inBlock := false

	for i := 0; i < len(src.Lines); i++ {
		trimmed := strings.TrimSpace(src.Lines[i])

		switch {
		case inBlock:
			inBlock = !strings.Contains(trimmed, "*/")
		case trimmed == "", strings.HasPrefix(trimmed, "//"), p.isHashComment(trimmed):
		case strings.HasPrefix(trimmed, "/*"):
			inBlock = !strings.Contains(trimmed, "*/")
		case matchAny(p.preamble, src.Lines[i]):
			stmtEnd, err := p.statementEnd(src, i)
			if err != nil {
				return Span{}, false, err
			}

			end, i = stmtEnd, stmtEnd
		default:
			return Span{Start: 0, End: end}, end >= 0, nil
		}
	}

	return Span{Start: 0, End: end}, end >= 0, nil
}

func (p braceProfile) LocateUnits(src *Source) ([]Unit, error) {
	var units []Unit

	lx := p.lexer()

	for i, line := range src.Lines {
		// Only lines that start outside comments and strings can open a unit.
		startsInCode := !lx.inBlock && lx.quote == 0
		lx.scan(line, func(byte) bool { return true })

		if !startsInCode || line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}

		for _, r := range p.units {
			m := r.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			start := i
			if r.after != nil {
				if i == 0 || !r.after.MatchString(src.Lines[i-1]) {
					continue
				}

				start = i - 1

				// The type line may have looked like a declaration itself.
				if n := len(units); n > 0 && units[n-1].Span.Start == start {
					units = units[:n-1]
				}
			}

			units = append(units, Unit{
				Name:     r.prefix + strings.TrimSpace(m[r.re.SubexpIndex("name")]),
				Category: r.category,
				Span:     Span{Start: start, End: i},
			})

			break
		}
	}

	return units, nil
}

func (p braceProfile) SpanOf(src *Source, unit Unit) (Span, error) {
	lx := p.lexer()
	depth, parens := 0, 0
	opened := false

	for i := unit.Span.Start; i < len(src.Lines); i++ {
		done := false

		lx.scan(src.Lines[i], func(c byte) bool {
			switch c {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				done = opened && depth == 0
			case '(', '[':
				parens++
			case ')', ']':
				parens--
			case ';':
				done = !opened && depth == 0 && parens <= 0
			}

			return !done
		})

		if done {
			return Span{Start: unit.Span.Start, End: i}, nil
		}

		if depth < 0 {
			break
		}

		// Lines before the header, such as a return type, never end the unit.
		if i >= unit.Span.End && !opened && parens <= 0 && endsWithoutBody(src.Lines, i) {
			return Span{Start: unit.Span.Start, End: i}, nil
		}
	}

	return Span{}, fmt.Errorf("%w: %s at line %d", ErrUnbalanced, unit.Name, unit.Span.Start+1)
}

func (p braceProfile) Attaches(line string) bool {
	return commonAttach.MatchString(line) || matchAny(p.attach, line) ||
		p.isHashComment(strings.TrimSpace(line))
}

func (p braceProfile) isHashComment(trimmed string) bool {
	return p.hashComments && strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "#[")
}

// statementEnd returns the line on which the statement starting at line i
// closes all the brackets it opens.
func (p braceProfile) statementEnd(src *Source, i int) (int, error) {
	lx := p.lexer()
	depth := 0

	for j := i; j < len(src.Lines); j++ {
		lx.scan(src.Lines[j], func(c byte) bool {
			switch c {
			case '{', '(', '[':
				depth++
			case '}', ')', ']':
				depth--
			}

			return true
		})

		if depth <= 0 {
			return j, nil
		}
	}

	return 0, fmt.Errorf("%w: statement at line %d", ErrUnbalanced, i+1)
}

// continuationStarts are line openings that continue a declaration header
// written at column 0.
var continuationStarts = []string{"{", "where", ")", "->", ":", ".", "=>", "|"}

// endsWithoutBody reports whether a header line that opened no body is the
// whole declaration, as with type aliases or expression-bodied functions.
func endsWithoutBody(lines []string, i int) bool {
	trimmed := strings.TrimSpace(lines[i])
	for _, suffix := range []string{",", "(", "=", "->", "=>", "&&", "||", "+", "\\", "<"} {
		if strings.HasSuffix(trimmed, suffix) {
			return false
		}
	}

	for j := i + 1; j < len(lines); j++ {
		next := lines[j]
		if strings.TrimSpace(next) == "" {
			continue
		}

		if next[0] == ' ' || next[0] == '\t' {
			return false
		}

		for _, start := range continuationStarts {
			if strings.HasPrefix(next, start) {
				return false
			}
		}

		return true
	}

	return true
}

func matchAny(res []*regexp.Regexp, line string) bool {
	for _, re := range res {
		if re.MatchString(line) {
			return true
		}
	}

	return false
}

// lexer walks code bytes across lines, skipping comments and string literals.
type lexer struct {
	inBlock      bool
	quote        byte
	charQuotes   bool
	hashComments bool
}

func (p braceProfile) lexer() *lexer {
	return &lexer{charQuotes: p.charQuotes, hashComments: p.hashComments}
}

// scan calls visit for every code byte of line until visit returns false.
func (lx *lexer) scan(line string, visit func(c byte) bool) {
	defer func() {
		// Only template literals span lines.
		if lx.quote != '`' {
			lx.quote = 0
		}
	}()

	for i := 0; i < len(line); i++ {
		c := line[i]
		next := byte(0)

		if i+1 < len(line) {
			next = line[i+1]
		}

		switch {
		case lx.inBlock:
			if c == '*' && next == '/' {
				lx.inBlock = false
				i++
			}
		case lx.quote != 0:
			if c == '\\' {
				i++
			} else if c == lx.quote {
				lx.quote = 0
			}
		case c == '/' && next == '/':
			return
		case c == '#' && lx.hashComments && next != '[':
			return
		case c == '/' && next == '*':
			lx.inBlock = true
			i++
		case c == '"' || c == '`':
			lx.quote = c
		case c == '\'':
			if !lx.charQuotes {
				lx.quote = c
			} else if skip := charLiteralLength(line[i:]); skip > 0 {
				i += skip - 1
			}
		default:
			if !visit(c) {
				return
			}
		}
	}
}

// charLiteralLength returns the length of a character literal at the start
// of s, or 0 when the quote is something else, such as a Rust lifetime.
func charLiteralLength(s string) int {
	if len(s) >= 4 && s[1] == '\\' {
		if end := strings.IndexByte(s[2:], '\''); end >= 0 {
			return end + 3
		}
	}

	if len(s) >= 3 && s[2] == '\'' {
		return 3
	}

	return 0
}
