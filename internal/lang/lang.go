// Package lang provides a language registry mapping file extensions to
// tree-sitter languages, their embedded query files, and the per-language
// hooks the lowering in package parse relies on.
package lang

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/argstates/internal/model"
)

//go:embed queries/*.scm
var queryFS embed.FS

var whitespaceRe = regexp.MustCompile(`\s+`)

// Family selects the lowering rules for a grammar. C and C++ share one.
type Family string

const (
	FamilyC  Family = "c"
	FamilyGo Family = "go"
)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	Family     Family
	lang       *sitter.Language
	queryOnce  sync.Once
	query      *sitter.Query
	queryErr   error
	parsers    sync.Pool

	// Literal decodes a literal node (number, character, string, null,
	// boolean) into a typed value. ok is false for anything else, including
	// literals outside the three value kinds such as floats.
	Literal func(node *sitter.Node, source []byte) (model.Value, bool)

	// ParseConstant decodes the source text of a constant, e.g. the body of
	// an object-like macro.
	ParseConstant func(text string) (model.Value, bool)

	// ZeroValue returns the implicit initial value of an uninitialized
	// declaration of type typ, when the language defines one.
	ZeroValue func(typ string) (model.Value, bool)

	// CalleeName returns the static name of a call's function expression.
	// ok is false when the callee cannot be tied to a single named function.
	CalleeName func(fn *sitter.Node, source []byte) (string, bool)

	// ParamNames returns the declared parameter names of a parameter list,
	// with "" for unnamed parameters.
	ParamNames func(params *sitter.Node, source []byte) []string
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// AcquireParser returns a pooled parser, creating one if the pool is empty.
// Return it with ReleaseParser when done.
func (l *Language) AcquireParser() *sitter.Parser {
	if p, ok := l.parsers.Get().(*sitter.Parser); ok {
		return p
	}
	return l.NewParser()
}

// ReleaseParser resets p and returns it to the pool.
func (l *Language) ReleaseParser(p *sitter.Parser) {
	p.Reset()
	l.parsers.Put(p)
}

// GetDeclQuery returns the compiled declaration query (safe to share across
// goroutines).
func (l *Language) GetDeclQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		data, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", l.Name))
		if err != nil {
			l.queryErr = fmt.Errorf("reading query file: %w", err)
			return
		}
		q, err := sitter.NewQuery(data, l.lang)
		if err != nil {
			l.queryErr = fmt.Errorf("compiling query: %w", err)
			return
		}
		l.query = q
	})
	return l.query, l.queryErr
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// Names returns the registered language names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NamedChildren returns n's named children, skipping comments.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// Unparen strips any number of parenthesized_expression wrappers.
func Unparen(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		inner := NamedChildren(n)
		if len(inner) != 1 {
			return n
		}
		n = inner[0]
	}
	return n
}
