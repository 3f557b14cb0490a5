// Package parse lowers tree-sitter parse trees into ast.Units.
package parse

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/argstates/internal/ast"
	"github.com/phobologic/argstates/internal/lang"
	"github.com/phobologic/argstates/internal/model"
)

// Options control how tolerant the lowering is of malformed input.
type Options struct {
	// Lenient lowers files that contain syntax errors instead of rejecting
	// them. Error nodes are treated as opaque.
	Lenient bool
}

// SyntaxError reports the first error node of a rejected file.
type SyntaxError struct {
	Path   string
	Line   int
	Column int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
}

// File parses source and lowers it into a Unit. The parser must be created
// for l and must not be shared with another goroutine for the duration of the
// call. path is used only for Unit.Path and error messages.
//
// Parsing is never cancelled: a cancelled parse leaves a flag set on the
// parser, and parsers are pooled.
func File(l *lang.Language, parser *sitter.Parser, source []byte, path string, opts Options) (*ast.Unit, error) {
	unit := &ast.Unit{
		Path:       path,
		Language:   l.Name,
		Signatures: make(map[string][]string),
	}
	if len(source) == 0 {
		return unit, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() && !opts.Lenient {
		serr := &SyntaxError{Path: path, Line: 1, Column: 1}
		if n := firstError(root); n != nil {
			serr.Line = int(n.StartPoint().Row) + 1
			serr.Column = int(n.StartPoint().Column) + 1
		}
		return nil, serr
	}

	lw := newLowerer(l, source, unit)
	if err := lw.declarations(root); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lw.visit(root)
	return unit, nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// declarations runs the language's declaration query over the whole file
// before lowering: signatures give parameter names, and constants (macros,
// enumerators, Go package consts) must be known before any body refers to
// them.
func (lw *lowerer) declarations(root *sitter.Node) error {
	query, err := lw.l.GetDeclQuery()
	if err != nil {
		return err
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, lw.src)

		var kind string
		var defNode, nameNode, paramsNode, valueNode *sitter.Node
		for _, c := range match.Captures {
			switch cname := query.CaptureNameForId(c.Index); cname {
			case "name":
				nameNode = c.Node
			case "params":
				paramsNode = c.Node
			case "value":
				valueNode = c.Node
			default:
				kind = cname
				defNode = c.Node
			}
		}

		switch kind {
		case "definition.function":
			lw.signature(nameNode, paramsNode)
		case "definition.constant":
			if nameNode != nil && valueNode != nil {
				if v, ok := lw.l.ParseConstant(lang.NodeText(valueNode, lw.src)); ok {
					lw.consts[lang.NodeText(nameNode, lw.src)] = v
				}
			} else if defNode != nil && defNode.Type() == "const_declaration" {
				lw.goConsts(defNode, func(_, name *sitter.Node, v model.Value, ok bool) {
					if ok {
						lw.consts[lang.NodeText(name, lw.src)] = v
					}
				})
			}
		case "definition.enum":
			lw.enumerators(defNode)
		}
	}
	return nil
}

func (lw *lowerer) signature(nameNode, params *sitter.Node) {
	if nameNode == nil || params == nil {
		return
	}
	var name string
	switch nameNode.Type() {
	case "identifier", "field_identifier", "qualified_identifier":
		name = lang.CDeclarator(nameNode, lw.src).Name
	default:
		// Function pointers and other computed declarators.
		return
	}
	name = lw.qualify(name, nameNode)
	names := lw.l.ParamNames(params, lw.src)

	// Definitions and prototypes may disagree; keep the first name seen for
	// each position and fill gaps from later declarations.
	prev := lw.unit.Signatures[name]
	for i, n := range names {
		if i >= len(prev) {
			prev = append(prev, n)
		} else if prev[i] == "" {
			prev[i] = n
		}
	}
	lw.unit.Signatures[name] = prev

	if lw.l.Family != lang.FamilyC {
		return
	}
	for i, p := range paramDecls(params) {
		d := p.ChildByFieldName("declarator")
		if d != nil && lang.CDeclarator(d, lw.src).Reference {
			if lw.refParams[name] == nil {
				lw.refParams[name] = make(map[int]bool)
			}
			lw.refParams[name][i] = true
		}
	}
}

func paramDecls(params *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, p := range lang.NamedChildren(params) {
		switch p.Type() {
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
			out = append(out, p)
		}
	}
	return out
}

// enumerators assigns values in declaration order. An enumerator with a
// non-constant initializer makes itself and every following enumerator of
// the list unknown.
func (lw *lowerer) enumerators(list *sitter.Node) {
	if list == nil {
		return
	}
	var next int64
	known := true
	for _, e := range lang.NamedChildren(list) {
		if e.Type() != "enumerator" {
			continue
		}
		name := e.ChildByFieldName("name")
		if name == nil {
			continue
		}
		if value := e.ChildByFieldName("value"); value != nil {
			v, ok := lw.constant(value)
			known = ok && v.Kind == model.Int
			if known {
				next = v.Int
			}
		}
		if known {
			lw.consts[lang.NodeText(name, lw.src)] = model.IntValue(next)
			next++
		}
	}
}

// goConsts evaluates a const declaration and calls define for every name.
// iota counts specs; a spec without values repeats the previous spec's
// expressions, so a run of bare iota keeps counting and repeated literals
// keep their value.
func (lw *lowerer) goConsts(decl *sitter.Node, define func(spec, name *sitter.Node, value model.Value, ok bool)) {
	var prev []*sitter.Node
	iota := int64(0)
	for _, spec := range lang.NamedChildren(decl) {
		if spec.Type() != "const_spec" {
			continue
		}
		values := prev
		if list := spec.ChildByFieldName("value"); list != nil {
			values = lang.NamedChildren(list)
			prev = values
		}
		for i, name := range goSpecNames(spec) {
			if i >= len(values) {
				define(spec, name, model.Value{}, false)
				continue
			}
			v, ok := lw.goConstValue(values[i], iota)
			define(spec, name, v, ok)
		}
		iota++
	}
}

func (lw *lowerer) goConstValue(n *sitter.Node, iota int64) (model.Value, bool) {
	n = lang.Unparen(n)
	if n.Type() == "iota" || (n.Type() == "identifier" && lang.NodeText(n, lw.src) == "iota") {
		return model.IntValue(iota), true
	}
	return lw.constant(n)
}

// goSpecNames returns the identifier nodes a const_spec or var_spec declares.
func goSpecNames(spec *sitter.Node) []*sitter.Node {
	var names []*sitter.Node
	for _, child := range lang.NamedChildren(spec) {
		if child.Type() == "identifier" {
			names = append(names, child)
		}
	}
	return names
}
