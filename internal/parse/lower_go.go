package parse

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/argstates/internal/ast"
	"github.com/phobologic/argstates/internal/lang"
	"github.com/phobologic/argstates/internal/model"
)

func init() {
	dialects[lang.FamilyGo] = &dialect{
		functions: set("function_declaration", "method_declaration"),
		closures:  set("func_literal"),
		loops:     set("for_statement"),
		scopes: set("block", "for_statement", "if_statement", "expression_switch_statement",
			"select_statement", "expression_case", "default_case", "type_case", "communication_case"),
		gotos: set("goto_statement"),

		funcParts:    goFuncParts,
		closureParts: goClosureParts,
		params:       goParams,
		prologue:     goNamedResults,
		statement:    goStatement,
		expr:         func(*lowerer, *sitter.Node) (ast.Expr, bool) { return nil, false },
		fold:         goFold,
		receiver:     goReceiver,
		aggregate:    goAggregate,
	}
}

func goFuncParts(lw *lowerer, n *sitter.Node) (string, []*sitter.Node, *sitter.Node) {
	var params []*sitter.Node
	if r := n.ChildByFieldName("receiver"); r != nil {
		params = append(params, r)
	}
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = append(params, p)
	}
	return lw.text(n.ChildByFieldName("name")), params, n.ChildByFieldName("body")
}

func goClosureParts(n *sitter.Node) (*sitter.Node, *sitter.Node) {
	return n.ChildByFieldName("parameters"), n.ChildByFieldName("body")
}

func goParams(lw *lowerer, list *sitter.Node) {
	for _, p := range lang.NamedChildren(list) {
		switch p.Type() {
		case "parameter_declaration", "variadic_parameter_declaration":
		default:
			continue
		}
		for _, id := range goSpecNames(p) {
			lw.declare(lang.NodeText(id, lw.src), id, ast.Param)
		}
	}
}

// goNamedResults declares named results, which start at their zero value.
func goNamedResults(lw *lowerer, n *sitter.Node) {
	result := n.ChildByFieldName("result")
	if result == nil || result.Type() != "parameter_list" {
		return
	}
	for _, p := range lang.NamedChildren(result) {
		if p.Type() != "parameter_declaration" {
			continue
		}
		typeNode := p.ChildByFieldName("type")
		for _, id := range goSpecNames(p) {
			v := lw.declare(lang.NodeText(id, lw.src), id, ast.Local)
			lw.store(v, ast.Set, lw.goZero(typeNode, id), id)
		}
	}
}

func goStatement(lw *lowerer, n *sitter.Node) bool {
	switch n.Type() {
	case "short_var_declaration":
		lw.goShortVar(n)
		return true
	case "var_spec":
		lw.goVarSpec(n)
		return true
	case "const_declaration":
		// Package-level constants were evaluated before lowering.
		if lw.fn != nil {
			lw.goLocalConsts(n)
		}
		return true
	case "assignment_statement":
		lw.goAssign(n)
		return true
	case "inc_statement", "dec_statement":
		for _, operand := range lang.NamedChildren(n) {
			lw.assignTo(operand, ast.Modify, lw.opaque(n), n)
		}
		return true
	case "range_clause":
		lw.goRange(n)
		return true
	case "receive_statement":
		lw.goReceive(n)
		return true
	case "type_switch_statement":
		lw.goTypeSwitch(n)
		return true
	case "unary_expression":
		if op := n.ChildByFieldName("operator"); op != nil && op.Type() == "&" {
			lw.escape(n.ChildByFieldName("operand"), n)
		}
	}
	return false
}

func goFold(lw *lowerer, n *sitter.Node) (model.Value, bool) {
	switch n.Type() {
	case "unary_expression":
		op := n.ChildByFieldName("operator")
		if op == nil {
			break
		}
		switch op.Type() {
		case "-":
			return negate(lw.constant(n.ChildByFieldName("operand")))
		case "+":
			v, ok := lw.constant(n.ChildByFieldName("operand"))
			if ok && v.Kind == model.Int {
				return v, true
			}
		}
	case "call_expression":
		// Conversions such as byte('a') or rune(65).
		fn := n.ChildByFieldName("function")
		args := n.ChildByFieldName("arguments")
		if fn == nil || args == nil || fn.Type() != "identifier" {
			break
		}
		name := lang.NodeText(fn, lw.src)
		items := lang.NamedChildren(args)
		if len(items) != 1 || lw.lookup(name) != nil {
			break
		}
		zero, ok := lw.l.ZeroValue(name)
		if !ok {
			break
		}
		if v, ok := lw.constant(items[0]); ok {
			return convert(v, zero.Kind)
		}
	}
	return model.Value{}, false
}

func goReceiver(lw *lowerer, fn *sitter.Node) *sitter.Node {
	fn = lang.Unparen(fn)
	if fn == nil || fn.Type() != "selector_expression" {
		return nil
	}
	return fn.ChildByFieldName("operand")
}

func goAggregate(lw *lowerer, n *sitter.Node) *sitter.Node {
	switch n.Type() {
	case "index_expression", "selector_expression":
		return n.ChildByFieldName("operand")
	}
	return nil
}

func (lw *lowerer) goZero(typeNode, at *sitter.Node) ast.Expr {
	if typeNode != nil {
		if z, ok := lw.l.ZeroValue(lw.text(typeNode)); ok {
			return &ast.Literal{Value: z, Src: lw.text(at)}
		}
	}
	return lw.opaque(at)
}

// goValues lowers the right-hand side of a declaration or assignment of n
// names. A single multi-value call yields an opaque value per name.
func (lw *lowerer) goValues(rhs []*sitter.Node, n int) []ast.Expr {
	values := make([]ast.Expr, n)
	if len(rhs) == n {
		for i, e := range rhs {
			values[i] = lw.expr(e)
		}
		return values
	}
	var src string
	for _, e := range rhs {
		lw.expr(e)
		if src != "" {
			src += ", "
		}
		src += lw.text(e)
	}
	for i := range values {
		values[i] = &ast.Opaque{Src: src}
	}
	return values
}

func (lw *lowerer) goShortVar(n *sitter.Node) {
	left := namedList(n.ChildByFieldName("left"))
	values := lw.goValues(namedList(n.ChildByFieldName("right")), len(left))
	for i, id := range left {
		name := lang.NodeText(id, lw.src)
		// At least one name is new; the others are assigned.
		v := lw.local(name)
		if v == nil {
			v = lw.declare(name, id, ast.Local)
		}
		lw.store(v, ast.Set, values[i], n)
	}
}

func (lw *lowerer) goVarSpec(n *sitter.Node) {
	names := goSpecNames(n)
	typeNode := n.ChildByFieldName("type")
	var values []ast.Expr
	if list := n.ChildByFieldName("value"); list != nil {
		values = lw.goValues(lang.NamedChildren(list), len(names))
	}
	for i, id := range names {
		v := lw.declare(lang.NodeText(id, lw.src), id, ast.Local)
		if values != nil {
			lw.store(v, ast.Set, values[i], n)
			continue
		}
		lw.store(v, ast.Set, lw.goZero(typeNode, n), n)
	}
}

func (lw *lowerer) goLocalConsts(decl *sitter.Node) {
	lw.goConsts(decl, func(spec, name *sitter.Node, value model.Value, ok bool) {
		v := lw.declare(lang.NodeText(name, lw.src), name, ast.Local)
		if ok {
			lw.store(v, ast.Set, &ast.Literal{Value: value, Src: lw.text(spec)}, spec)
			return
		}
		lw.store(v, ast.Set, lw.opaque(spec), spec)
	})
}

func (lw *lowerer) goAssign(n *sitter.Node) {
	left := namedList(n.ChildByFieldName("left"))
	right := namedList(n.ChildByFieldName("right"))
	if op := n.ChildByFieldName("operator"); op != nil && op.Type() != "=" {
		for _, e := range right {
			lw.expr(e)
		}
		for _, l := range left {
			lw.assignTo(l, ast.Modify, lw.opaque(n), n)
		}
		return
	}
	values := lw.goValues(right, len(left))
	for i, l := range left {
		lw.assignTo(l, ast.Set, values[i], n)
	}
}

// goRange lowers the clause of a range loop. The iteration variables take a
// new value on every iteration.
func (lw *lowerer) goRange(n *sitter.Node) {
	right := n.ChildByFieldName("right")
	lw.expr(right)
	define := hasToken(n, ":=")
	for _, id := range namedList(n.ChildByFieldName("left")) {
		if define {
			v := lw.declare(lang.NodeText(id, lw.src), id, ast.Local)
			lw.store(v, ast.Set, lw.opaque(n), n)
			continue
		}
		lw.assignTo(id, ast.Set, lw.opaque(n), n)
	}
}

func (lw *lowerer) goReceive(n *sitter.Node) {
	lw.expr(n.ChildByFieldName("right"))
	define := hasToken(n, ":=")
	for _, id := range namedList(n.ChildByFieldName("left")) {
		if define {
			v := lw.declare(lang.NodeText(id, lw.src), id, ast.Local)
			lw.store(v, ast.Set, lw.opaque(n), n)
			continue
		}
		lw.assignTo(id, ast.Set, lw.opaque(n), n)
	}
}

func (lw *lowerer) goTypeSwitch(n *sitter.Node) {
	lw.push()
	defer lw.pop()
	lw.visit(n.ChildByFieldName("initializer"))
	value := n.ChildByFieldName("value")
	lw.expr(value)
	if alias := n.ChildByFieldName("alias"); alias != nil {
		for _, id := range namedList(alias) {
			v := lw.declare(lang.NodeText(id, lw.src), id, ast.Local)
			lw.store(v, ast.Set, lw.opaque(value), id)
		}
	}
	for _, c := range lang.NamedChildren(n) {
		if c.Type() == "type_case" || c.Type() == "default_case" {
			lw.visit(c)
		}
	}
}

// namedList returns the elements of an expression_list, or n itself when it
// is a single expression.
func namedList(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	if n.Type() == "expression_list" {
		return lang.NamedChildren(n)
	}
	return []*sitter.Node{n}
}

func hasToken(n *sitter.Node, token string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == token {
			return true
		}
	}
	return false
}
