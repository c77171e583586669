// Package chunk splits file content into ordered logical units: the preamble
// (package, import and include statements), type declarations, functions and
// whatever else lies between them.
package chunk

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"
)

// Category tags what a chunk holds.
type Category int

// Chunk categories.
const (
	CategoryOther Category = iota
	CategoryPreamble
	CategoryTypeDecl
	CategoryFunction
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPreamble:
		return "preamble"
	case CategoryTypeDecl:
		return "type-decl"
	case CategoryFunction:
		return "function"
	case CategoryOther:
		return "other"
	default:
		return "unknown"
	}
}

// Chunk is a named span of a file. Lines are 1-based and inclusive.
type Chunk struct {
	Name     string
	Category Category
	Start    int
	End      int
}

// Contains reports whether line lies inside the chunk.
func (c Chunk) Contains(line int) bool {
	return line >= c.Start && line <= c.End
}

// Lines returns the number of lines the chunk spans.
func (c Chunk) Lines() int {
	return c.End - c.Start + 1
}

// Language is a recognized language family tag.
type Language string

// Supported languages. Anything else is handled by the identity profile.
const (
	LangUnknown    Language = ""
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangKotlin     Language = "kotlin"
	LangScala      Language = "scala"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangSwift      Language = "swift"
	LangPHP        Language = "php"
)

var enryLanguages = map[string]Language{
	"Go":         LangGo,
	"Python":     LangPython,
	"Rust":       LangRust,
	"JavaScript": LangJavaScript,
	"JSX":        LangJavaScript,
	"TypeScript": LangTypeScript,
	"TSX":        LangTypeScript,
	"Java":       LangJava,
	"Kotlin":     LangKotlin,
	"Scala":      LangScala,
	"C":          LangC,
	"C++":        LangCPP,
	"C#":         LangCSharp,
	"Swift":      LangSwift,
	"PHP":        LangPHP,
}

// DetectLanguage infers the language of a file from its name and content.
func DetectLanguage(filePath string, content []byte) Language {
	name := enry.GetLanguage(path.Base(filePath), content)
	if lang, ok := enryLanguages[name]; ok {
		return lang
	}

	// enry gives up on short snippets with ambiguous extensions.
	switch strings.ToLower(path.Ext(filePath)) {
	case ".go":
		return LangGo
	case ".py":
		return LangPython
	case ".rs":
		return LangRust
	case ".ts", ".tsx":
		return LangTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LangJavaScript
	case ".h", ".c":
		return LangC
	default:
		return LangUnknown
	}
}
