package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/argstates/internal/ast"
	"github.com/phobologic/argstates/internal/lang"
	"github.com/phobologic/argstates/internal/model"
)

func init() {
	dialects[lang.FamilyC] = &dialect{
		functions: set("function_definition"),
		closures:  set("lambda_expression"),
		loops:     set("for_statement", "while_statement", "do_statement"),
		scopes:    set("compound_statement", "for_statement", "if_statement", "while_statement", "switch_statement", "catch_clause"),
		gotos:     set("goto_statement"),

		funcParts:    cFuncParts,
		closureParts: cClosureParts,
		params:       cParams,
		statement:    cStatement,
		expr:         cExpr,
		fold:         cFold,
		receiver:     cReceiver,
		aggregate:    cAggregate,
	}
}

func set(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

var cDeclarators = set(
	"identifier", "init_declarator", "pointer_declarator", "array_declarator",
	"reference_declarator", "function_declarator", "parenthesized_declarator",
	"attributed_declarator",
)

func cFuncParts(lw *lowerer, n *sitter.Node) (string, []*sitter.Node, *sitter.Node) {
	body := n.ChildByFieldName("body")
	d := n.ChildByFieldName("declarator")
	for d != nil && d.Type() != "function_declarator" {
		d = d.ChildByFieldName("declarator")
	}
	if d == nil {
		return "", nil, nil
	}
	name := lang.CDeclarator(d.ChildByFieldName("declarator"), lw.src).Name
	var params []*sitter.Node
	if p := d.ChildByFieldName("parameters"); p != nil {
		params = append(params, p)
	}
	return name, params, body
}

func cClosureParts(n *sitter.Node) (*sitter.Node, *sitter.Node) {
	var params *sitter.Node
	if d := n.ChildByFieldName("declarator"); d != nil {
		params = d.ChildByFieldName("parameters")
	}
	return params, n.ChildByFieldName("body")
}

func cParams(lw *lowerer, list *sitter.Node) {
	for _, p := range paramDecls(list) {
		d := p.ChildByFieldName("declarator")
		if d == nil {
			continue
		}
		decl := lang.CDeclarator(d, lw.src)
		if v := lw.declare(decl.Name, d, ast.Param); v != nil {
			v.Array = decl.Array
		}
	}
}

func cStatement(lw *lowerer, n *sitter.Node) bool {
	switch n.Type() {
	case "declaration":
		lw.cDeclaration(n)
		return true
	case "assignment_expression":
		lw.cAssign(n)
		return true
	case "update_expression":
		lw.cUpdate(n)
		return true
	case "for_range_loop":
		lw.cRangeLoop(n)
		return true
	case "pointer_expression":
		if op := n.ChildByFieldName("operator"); op != nil && op.Type() == "&" {
			lw.escape(n.ChildByFieldName("argument"), n)
		}
	}
	return false
}

func cExpr(lw *lowerer, n *sitter.Node) (ast.Expr, bool) {
	switch n.Type() {
	case "assignment_expression":
		return lw.cAssign(n), true
	case "update_expression":
		return lw.cUpdate(n), true
	case "comma_expression":
		lw.visit(n.ChildByFieldName("left"))
		return lw.expr(n.ChildByFieldName("right")), true
	}
	return nil, false
}

func cFold(lw *lowerer, n *sitter.Node) (model.Value, bool) {
	switch n.Type() {
	case "unary_expression":
		op := n.ChildByFieldName("operator")
		if op == nil {
			break
		}
		switch op.Type() {
		case "-":
			return negate(lw.constant(n.ChildByFieldName("argument")))
		case "+":
			v, ok := lw.constant(n.ChildByFieldName("argument"))
			if ok && v.Kind == model.Int {
				return v, true
			}
		}
	case "cast_expression":
		v, ok := lw.constant(n.ChildByFieldName("value"))
		typ := lw.text(n.ChildByFieldName("type"))
		if !ok || cFloating(typ) {
			break
		}
		if zero, known := lw.l.ZeroValue(typ); known {
			cv, ok := convert(v, zero.Kind)
			if ok && cv.Kind == model.Char {
				// char is one byte wide.
				cv = model.CharValue(rune(uint8(cv.Char)))
			}
			return cv, ok
		}
		// Pointer and other casts keep the operand's value.
		return v, true
	}
	return model.Value{}, false
}

// cFloating reports whether a cast to typ yields a floating value, which
// is never enumerated.
func cFloating(typ string) bool {
	words := strings.Fields(typ)
	if len(words) == 0 {
		return false
	}
	switch words[len(words)-1] {
	case "float", "double", "_Complex":
		return true
	}
	return false
}

// cReceiver returns the object of obj.method(...). Calls through -> leave
// the pointer itself unchanged.
func cReceiver(lw *lowerer, fn *sitter.Node) *sitter.Node {
	fn = lang.Unparen(fn)
	if fn == nil || fn.Type() != "field_expression" {
		return nil
	}
	if op := fn.ChildByFieldName("operator"); op == nil || op.Type() != "." {
		return nil
	}
	return fn.ChildByFieldName("argument")
}

func cAggregate(lw *lowerer, n *sitter.Node) *sitter.Node {
	switch n.Type() {
	case "subscript_expression":
		return n.ChildByFieldName("argument")
	case "field_expression":
		return cReceiver(lw, n)
	}
	return nil
}

func (lw *lowerer) cDeclaration(n *sitter.Node) {
	typeNode := n.ChildByFieldName("type")
	static := false
	for _, c := range lang.NamedChildren(n) {
		if c.Type() == "storage_class_specifier" && lw.text(c) == "static" {
			static = true
		}
	}

	for _, c := range lang.NamedChildren(n) {
		if !cDeclarators[c.Type()] || sameNode(c, typeNode) {
			continue
		}
		d := lang.CDeclarator(c, lw.src)
		if d.Func || d.Name == "" {
			continue
		}

		var value ast.Expr
		if d.Init != nil {
			value = lw.cInit(d)
		}
		v := lw.declare(d.Name, c, ast.Local)
		if v == nil {
			continue
		}
		v.Static = static && lw.fn != nil
		v.Array = d.Array

		switch {
		case d.Reference:
			// A reference aliases its initializer; both change together.
			if d.Init != nil {
				lw.escape(d.Init, c)
			}
			lw.store(v, ast.Set, lw.opaque(c), c)
		case d.Init != nil:
			lw.cDecay(value, d.Init, c)
			lw.store(v, ast.Set, value, c)
		case v.Static:
			lw.store(v, ast.Set, lw.cZero(d, typeNode, c), c)
		}
	}
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// cZero is the implicit initial value of a static declaration.
func (lw *lowerer) cZero(d lang.Declarator, typeNode, at *sitter.Node) ast.Expr {
	src := lw.text(at)
	switch {
	case d.Array:
	case d.Pointer:
		return &ast.Literal{Value: model.IntValue(0), Src: src}
	case typeNode != nil:
		if z, ok := lw.l.ZeroValue(lw.text(typeNode)); ok {
			return &ast.Literal{Value: z, Src: src}
		}
	}
	return &ast.Opaque{Src: src}
}

// cInit lowers an initializer. Brace and parenthesized initializers of a
// scalar hold a single value.
func (lw *lowerer) cInit(d lang.Declarator) ast.Expr {
	switch d.Init.Type() {
	case "initializer_list", "argument_list":
		items := lang.NamedChildren(d.Init)
		if d.Array || len(items) != 1 {
			lw.visit(d.Init)
			return lw.opaque(d.Init)
		}
		return lw.expr(items[0])
	}
	return lw.expr(d.Init)
}

func (lw *lowerer) cAssign(n *sitter.Node) ast.Expr {
	value := lw.expr(n.ChildByFieldName("right"))
	left := n.ChildByFieldName("left")
	if op := n.ChildByFieldName("operator"); op != nil && op.Type() != "=" {
		value = lw.opaque(n)
		lw.assignTo(left, ast.Modify, value, n)
		return value
	}
	lw.cDecay(value, n.ChildByFieldName("right"), n)
	lw.assignTo(left, ast.Set, value, n)
	return value
}

// cDecay records an array stored into a pointer: the array may be written
// through it from then on.
func (lw *lowerer) cDecay(value ast.Expr, n, at *sitter.Node) {
	if ref, ok := value.(*ast.Ref); ok && ref.Var.Array {
		lw.escape(n, at)
	}
}

func (lw *lowerer) cUpdate(n *sitter.Node) ast.Expr {
	value := lw.opaque(n)
	lw.assignTo(n.ChildByFieldName("argument"), ast.Modify, value, n)
	return value
}

// cRangeLoop lowers for (decl : range). The loop variable takes a new value
// on every iteration.
func (lw *lowerer) cRangeLoop(n *sitter.Node) {
	lw.loop(n)
	lw.push()
	defer lw.pop()

	right := n.ChildByFieldName("right")
	lw.expr(right)
	if d := n.ChildByFieldName("declarator"); d != nil {
		decl := lang.CDeclarator(d, lw.src)
		v := lw.declare(decl.Name, d, ast.Local)
		lw.store(v, ast.Set, lw.opaque(right), d)
		if decl.Reference {
			lw.escape(right, n)
		}
	}
	lw.visit(n.ChildByFieldName("body"))
}
