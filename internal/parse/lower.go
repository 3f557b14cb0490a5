package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/argstates/internal/ast"
	"github.com/phobologic/argstates/internal/lang"
	"github.com/phobologic/argstates/internal/model"
)

// dialect holds the grammar-specific parts of the lowering. The engine in
// this file walks the tree, tracks scopes, functions and closures, and
// records calls; a dialect recognizes declarations and stores.
type dialect struct {
	functions map[string]bool
	closures  map[string]bool
	loops     map[string]bool
	scopes    map[string]bool
	gotos     map[string]bool

	// funcParts returns a named function's name, its parameter lists and
	// its body. A nil body means n is only a declaration.
	funcParts func(lw *lowerer, n *sitter.Node) (name string, params []*sitter.Node, body *sitter.Node)
	// closureParts returns a closure's parameter list and body.
	closureParts func(n *sitter.Node) (params, body *sitter.Node)
	// params declares the parameters of one parameter list.
	params func(lw *lowerer, list *sitter.Node)
	// prologue runs after the parameters of a function are declared.
	prologue func(lw *lowerer, n *sitter.Node)

	// statement lowers a declaration or store. It reports whether it handled
	// n together with its children.
	statement func(lw *lowerer, n *sitter.Node) bool
	// expr lowers an expression that both has side effects and a value,
	// such as a C assignment used as an operand.
	expr func(lw *lowerer, n *sitter.Node) (ast.Expr, bool)
	// fold evaluates constant shapes beyond plain literals: sign prefixes,
	// casts and conversions.
	fold func(lw *lowerer, n *sitter.Node) (model.Value, bool)

	// receiver returns the object a method call is made on, or nil.
	receiver func(lw *lowerer, fn *sitter.Node) *sitter.Node
	// aggregate returns the operand an element or field store writes into,
	// or nil when the store goes through a pointer.
	aggregate func(lw *lowerer, n *sitter.Node) *sitter.Node
}

var dialects = map[lang.Family]*dialect{}

type scope struct {
	vars map[string]*ast.Var
}

type lowerer struct {
	l    *lang.Language
	d    *dialect
	src  []byte
	unit *ast.Unit

	consts    map[string]model.Value
	refParams map[string]map[int]bool

	fn     *ast.Func
	depth  int
	scopes []scope
}

func newLowerer(l *lang.Language, source []byte, unit *ast.Unit) *lowerer {
	lw := &lowerer{
		l:         l,
		d:         dialects[l.Family],
		src:       source,
		unit:      unit,
		consts:    make(map[string]model.Value),
		refParams: make(map[string]map[int]bool),
	}
	lw.push()
	return lw
}

func (lw *lowerer) push() {
	lw.scopes = append(lw.scopes, scope{vars: make(map[string]*ast.Var)})
}

func (lw *lowerer) pop() {
	lw.scopes = lw.scopes[:len(lw.scopes)-1]
}

func (lw *lowerer) lookup(name string) *ast.Var {
	for i := len(lw.scopes) - 1; i >= 0; i-- {
		if v, ok := lw.scopes[i].vars[name]; ok {
			return v
		}
	}
	return nil
}

// local returns the variable declared under name in the innermost scope.
func (lw *lowerer) local(name string) *ast.Var {
	return lw.scopes[len(lw.scopes)-1].vars[name]
}

func (lw *lowerer) targetName(name string) string {
	return strings.TrimPrefix(name, "::")
}

// qualify prefixes a C++ declaration's name with the namespaces around at.
func (lw *lowerer) qualify(name string, at *sitter.Node) string {
	if lw.l.Family != lang.FamilyC || strings.HasPrefix(name, "::") {
		return lw.targetName(name)
	}
	if ns := lang.CNamespace(at, lw.src); ns != "" {
		return ns + "::" + name
	}
	return name
}

// callee resolves the name a call inside a C++ namespace refers to against
// the functions declared in the unit, innermost namespace first. An
// unresolved name comes back with the namespace it was used in.
func (lw *lowerer) callee(name string, at *sitter.Node) (string, string) {
	if lw.l.Family != lang.FamilyC || strings.HasPrefix(name, "::") {
		return lw.targetName(name), ""
	}
	ns := lang.CNamespace(at, lw.src)
	for p := ns; p != ""; p = ast.ParentNamespace(p) {
		if _, ok := lw.unit.Signatures[p+"::"+name]; ok {
			return p + "::" + name, ""
		}
	}
	return name, ns
}

func (lw *lowerer) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return lang.CollapseWhitespace(lang.NodeText(n, lw.src))
}

func position(n *sitter.Node) ast.Pos {
	p := n.StartPoint()
	return ast.Pos{Offset: int(n.StartByte()), Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func span(n *sitter.Node) ast.Span {
	return ast.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func isStatement(typ string) bool {
	return strings.HasSuffix(typ, "_statement") || strings.HasSuffix(typ, "declaration")
}

func (lw *lowerer) visit(n *sitter.Node) {
	if n == nil {
		return
	}
	typ := n.Type()
	if lw.fn != nil && isStatement(typ) {
		lw.fn.Stmts++
	}
	switch {
	case typ == "comment":
		return
	case lw.d.functions[typ]:
		lw.function(n)
		return
	case lw.d.closures[typ]:
		lw.lambda(n)
		return
	case typ == "call_expression":
		lw.call(n)
		return
	case lw.d.gotos[typ]:
		if lw.fn != nil {
			lw.fn.HasGoto = true
		}
	}
	if lw.d.statement(lw, n) {
		return
	}
	if lw.d.loops[typ] {
		lw.loop(n)
	}
	if lw.d.scopes[typ] {
		lw.push()
		defer lw.pop()
	}
	lw.children(n)
}

func (lw *lowerer) children(n *sitter.Node) {
	for _, child := range lang.NamedChildren(n) {
		lw.visit(child)
	}
}

func (lw *lowerer) loop(n *sitter.Node) {
	if lw.fn != nil {
		lw.fn.Loops = append(lw.fn.Loops, span(n))
	}
}

func (lw *lowerer) function(n *sitter.Node) {
	name, params, body := lw.d.funcParts(lw, n)
	if body == nil {
		return
	}
	f := &ast.Func{Name: lw.qualify(name, n), Pos: position(n), Span: span(n)}
	lw.unit.Funcs = append(lw.unit.Funcs, f)

	savedFn, savedDepth := lw.fn, lw.depth
	lw.fn, lw.depth = f, 0
	lw.push()
	for _, list := range params {
		lw.d.params(lw, list)
	}
	if lw.d.prologue != nil {
		lw.d.prologue(lw, n)
	}
	lw.visit(body)
	lw.pop()
	lw.fn, lw.depth = savedFn, savedDepth
}

// lambda lowers a closure. Inside a function it deepens the closure nesting;
// at file scope it becomes an anonymous function of its own.
func (lw *lowerer) lambda(n *sitter.Node) {
	params, body := lw.d.closureParts(n)
	if lw.fn == nil {
		f := &ast.Func{Pos: position(n), Span: span(n)}
		lw.unit.Funcs = append(lw.unit.Funcs, f)
		lw.fn = f
		defer func() { lw.fn = nil }()
	}

	lw.depth++
	lw.push()
	if params != nil {
		lw.d.params(lw, params)
	}
	lw.visit(body)
	lw.pop()
	lw.depth--
}

// declare binds name in the innermost scope. "_" is never bound.
func (lw *lowerer) declare(name string, at *sitter.Node, kind ast.VarKind) *ast.Var {
	if name == "" || name == "_" {
		return nil
	}
	if lw.fn == nil {
		kind = ast.Global
	}
	sc := lw.scopes[len(lw.scopes)-1]
	v := &ast.Var{
		Name:         name,
		Kind:         kind,
		Decl:         position(at),
		Func:         lw.fn,
		ClosureDepth: lw.depth,
	}
	sc.vars[name] = v
	if lw.fn != nil {
		lw.fn.Vars = append(lw.fn.Vars, v)
	}
	return v
}

// store records a store to v at n. Stores to globals and to variables of
// other functions are not tracked: such variables never resolve.
func (lw *lowerer) store(v *ast.Var, op ast.AssignOp, value ast.Expr, n *sitter.Node) {
	if v == nil || lw.fn == nil || v.Func != lw.fn {
		return
	}
	lw.fn.AddAssign(&ast.Assign{
		Var:          v,
		Op:           op,
		Value:        value,
		Span:         span(n),
		Pos:          position(n),
		Src:          lw.text(n),
		ClosureDepth: lw.depth,
	})
}

func (lw *lowerer) opaque(n *sitter.Node) *ast.Opaque {
	return &ast.Opaque{Src: lw.text(n)}
}

// assignTo records a store into the lvalue lhs. Element and field stores
// modify the aggregate they write into.
func (lw *lowerer) assignTo(lhs *sitter.Node, op ast.AssignOp, value ast.Expr, at *sitter.Node) {
	lhs = lang.Unparen(lhs)
	if lhs == nil {
		return
	}
	if lhs.Type() == "identifier" {
		lw.store(lw.lookup(lang.NodeText(lhs, lw.src)), op, value, at)
		return
	}
	lw.visit(lhs)
	if v := lw.rootVar(lhs); v != nil {
		lw.store(v, ast.Modify, lw.opaque(lhs), at)
	}
}

// rootVar follows element and field accesses down to the variable they are
// made on.
func (lw *lowerer) rootVar(n *sitter.Node) *ast.Var {
	for n = lw.d.aggregate(lw, n); n != nil; n = lw.d.aggregate(lw, n) {
		n = lang.Unparen(n)
		if n.Type() == "identifier" {
			return lw.lookup(lang.NodeText(n, lw.src))
		}
	}
	return nil
}

// escape records that target (a variable, or an aggregate containing it)
// may be written through an alias from at onwards.
func (lw *lowerer) escape(target, at *sitter.Node) {
	target = lang.Unparen(target)
	if target == nil {
		return
	}
	var v *ast.Var
	if target.Type() == "identifier" {
		v = lw.lookup(lang.NodeText(target, lw.src))
	} else {
		v = lw.rootVar(target)
	}
	lw.store(v, ast.Escape, lw.opaque(at), at)
}

func (lw *lowerer) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return &ast.Opaque{}
	}
	src := lw.text(n)
	if v, ok := lw.constant(n); ok {
		return &ast.Literal{Value: v, Src: src}
	}
	inner := lang.Unparen(n)
	switch typ := inner.Type(); {
	case typ == "identifier":
		if v := lw.lookup(lang.NodeText(inner, lw.src)); v != nil {
			return &ast.Ref{Var: v, Src: src}
		}
		return &ast.Opaque{Src: src}
	case typ == "call_expression":
		lw.call(inner)
		return &ast.Opaque{Src: src}
	case lw.d.closures[typ]:
		lw.lambda(inner)
		return &ast.Opaque{Src: src}
	}
	if e, ok := lw.d.expr(lw, inner); ok {
		return e
	}
	lw.visit(inner)
	return &ast.Opaque{Src: src}
}

// constant folds n to a value when it is a literal, a named constant not
// shadowed by a variable, or a dialect-specific constant shape.
func (lw *lowerer) constant(n *sitter.Node) (model.Value, bool) {
	n = lang.Unparen(n)
	if n == nil {
		return model.Value{}, false
	}
	if n.Type() == "identifier" {
		name := lang.NodeText(n, lw.src)
		if lw.lookup(name) != nil {
			return model.Value{}, false
		}
		if v, ok := lw.consts[name]; ok {
			return v, true
		}
	}
	if v, ok := lw.l.Literal(n, lw.src); ok {
		return v, true
	}
	return lw.d.fold(lw, n)
}

// convert applies a cast or conversion to kind. Only integer and character
// values convert into each other.
func convert(v model.Value, kind model.ValueKind) (model.Value, bool) {
	switch {
	case v.Kind == kind:
		return v, true
	case kind == model.Char && v.Kind == model.Int:
		return model.CharValue(rune(v.Int)), true
	case kind == model.Int && v.Kind == model.Char:
		return model.IntValue(int64(v.Char)), true
	}
	return model.Value{}, false
}

func negate(v model.Value, ok bool) (model.Value, bool) {
	if !ok || v.Kind != model.Int {
		return model.Value{}, false
	}
	return model.IntValue(-v.Int), true
}

func (lw *lowerer) call(n *sitter.Node) {
	fnNode := n.ChildByFieldName("function")
	var argNodes []*sitter.Node
	if list := n.ChildByFieldName("arguments"); list != nil {
		argNodes = lang.NamedChildren(list)
	}
	args := make([]ast.Expr, len(argNodes))
	for i, a := range argNodes {
		args[i] = lw.expr(a)
	}

	name, ok := lw.calleeName(fnNode)
	if !ok && fnNode != nil {
		lw.visit(fnNode)
	}
	var ns string
	if ok {
		name, ns = lw.callee(name, n)
	}
	if recv := lw.d.receiver(lw, fnNode); recv != nil {
		// The method may modify its receiver.
		lw.escape(recv, recv)
	}
	for i, a := range args {
		ref, isRef := a.(*ast.Ref)
		if !isRef {
			continue
		}
		if ref.Var.Array || (ok && lw.refParams[name][i]) {
			lw.escape(argNodes[i], argNodes[i])
		}
	}
	if !ok {
		return
	}
	lw.unit.Calls = append(lw.unit.Calls, &ast.Call{
		Name:         name,
		Args:         args,
		Pos:          position(n),
		Func:         lw.fn,
		ClosureDepth: lw.depth,
		Src:          lw.text(n),
		Namespace:    ns,
	})
}

// calleeName returns the static name a call goes to, as written. Names
// whose first component is a variable in scope are calls through that
// variable.
func (lw *lowerer) calleeName(fn *sitter.Node) (string, bool) {
	if fn == nil {
		return "", false
	}
	name, ok := lw.l.CalleeName(fn, lw.src)
	if !ok {
		return "", false
	}
	root := lw.targetName(name)
	if i := strings.IndexAny(root, ".:"); i >= 0 {
		root = root[:i]
	}
	if lw.lookup(root) != nil {
		return "", false
	}
	return name, true
}
