// Package ast is the closed, language-neutral tree the analysis runs on.
//
// A Unit is produced from a tree-sitter parse by package parse. It keeps only
// what the two analysis passes need: call sites with lowered arguments,
// function bodies with their variable declarations, assignments, loops and
// closures. Nothing in here refers back to the parser's nodes.
package ast

import (
	"fmt"
	"strings"

	"github.com/phobologic/argstates/internal/model"
)

// Pos is a source position. Offset is a byte offset; Line and Column are
// 1-based.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int
	End   int
}

// Contains reports whether offset lies inside s.
func (s Span) Contains(offset int) bool {
	return s.Start <= offset && offset < s.End
}

// Expr is a lowered expression. The set of implementations is closed:
// *Literal, *Ref and *Opaque.
type Expr interface {
	Text() string
	expr()
}

// Literal is a constant written in source (after folding parentheses, casts
// and sign prefixes, and substituting named constants).
type Literal struct {
	Value model.Value
	Src   string
}

// Ref is a direct reference to a variable declaration.
type Ref struct {
	Var *Var
	Src string
}

// Opaque is any expression whose value cannot be enumerated statically.
type Opaque struct {
	Src string
}

func (e *Literal) Text() string { return e.Src }
func (e *Ref) Text() string     { return e.Src }
func (e *Opaque) Text() string  { return e.Src }

func (*Literal) expr() {}
func (*Ref) expr()     {}
func (*Opaque) expr()  {}

// VarKind classifies where a variable is declared.
type VarKind int

const (
	Local VarKind = iota
	Param
	Global
)

func (k VarKind) String() string {
	switch k {
	case Local:
		return "local"
	case Param:
		return "param"
	case Global:
		return "global"
	default:
		return fmt.Sprintf("VarKind(%d)", int(k))
	}
}

// Var is a variable declaration. Pointer identity is declaration identity:
// two references denote the same variable iff they share the *Var.
type Var struct {
	Name  string
	Kind  VarKind
	Decl  Pos
	Func  *Func // nil for globals

	// ClosureDepth is the number of closures (lambdas, func literals)
	// enclosing the declaration inside its function.
	ClosureDepth int

	// Static is set for C/C++ function-local statics, whose value survives
	// across invocations.
	Static bool

	// Array is set for C/C++ arrays, whose contents change through element
	// stores and through callees they decay to pointers for.
	Array bool
}

// ID returns a stable identity string of the form name@line:col.
func (v *Var) ID() string {
	return v.Name + "@" + v.Decl.String()
}

// AssignOp distinguishes plain stores from read-modify-write updates.
type AssignOp int

const (
	// Set replaces the variable's value with Value.
	Set AssignOp = iota
	// Modify derives the new value from the old one (x += 1, x++).
	Modify
	// Escape marks a point after which the variable may be written through
	// an alias: its address is taken, a reference is bound to it, or an
	// array is handed to a callee.
	Escape
)

func (op AssignOp) String() string {
	switch op {
	case Set:
		return "set"
	case Modify:
		return "modify"
	case Escape:
		return "escape"
	default:
		return fmt.Sprintf("AssignOp(%d)", int(op))
	}
}

// Assign is one store to a variable. Declaration initializers are stores.
type Assign struct {
	Var   *Var
	Op    AssignOp
	Value Expr
	Span  Span
	Pos   Pos
	Src   string

	// ClosureDepth is the closure nesting at the store.
	ClosureDepth int
}

// Call is a call expression whose callee is a statically named function.
type Call struct {
	Name         string
	Args         []Expr
	Pos          Pos
	Func         *Func // nil at file scope
	ClosureDepth int
	Src          string

	// Namespace is set when the call is made inside a C++ namespace and its
	// callee did not resolve to a function declared in the unit. The callee
	// may then live in that namespace or any enclosing one.
	Namespace string
}

// Calls reports whether c may call the function named name.
func (c *Call) Calls(name string) bool {
	if c.Name == name {
		return true
	}
	for ns := c.Namespace; ns != ""; ns = ParentNamespace(ns) {
		if ns+"::"+c.Name == name {
			return true
		}
	}
	return false
}

// ParentNamespace drops the innermost component of a "::"-joined namespace.
func ParentNamespace(ns string) string {
	if i := strings.LastIndex(ns, "::"); i >= 0 {
		return ns[:i]
	}
	return ""
}

// Func is a function body together with the facts the resolver needs.
type Func struct {
	Name   string
	Pos    Pos
	Span   Span
	Vars   []*Var

	Assigns []*Assign
	// Loops are the spans of loop bodies (including conditions and updates).
	Loops []Span
	// HasGoto is set when the body contains a goto, which may create loops
	// the region structure does not show.
	HasGoto bool
	// Stmts counts statements in the body; it bounds reference chasing.
	Stmts int

	byVar map[*Var][]*Assign
}

// AddAssign records a store in program order.
func (f *Func) AddAssign(a *Assign) {
	f.Assigns = append(f.Assigns, a)
	if f.byVar == nil {
		f.byVar = make(map[*Var][]*Assign)
	}
	f.byVar[a.Var] = append(f.byVar[a.Var], a)
}

// AssignmentsTo returns every store to v inside f, in program order.
func (f *Func) AssignmentsTo(v *Var) []*Assign {
	return f.byVar[v]
}

// InLoopWith reports whether offsets a and b share an enclosing loop.
func (f *Func) InLoopWith(a, b int) bool {
	for _, l := range f.Loops {
		if l.Contains(a) && l.Contains(b) {
			return true
		}
	}
	return false
}

// Unit is one lowered translation unit.
type Unit struct {
	Path     string
	Language string
	Funcs    []*Func
	Calls    []*Call

	// Signatures maps a function name to its declared parameter names, as
	// seen in definitions or prototypes in this unit. Unnamed parameters are
	// empty strings.
	Signatures map[string][]string
}

// CallsTo returns the calls that may go to name, in source order.
func (u *Unit) CallsTo(name string) []*Call {
	var out []*Call
	for _, c := range u.Calls {
		if c.Calls(name) {
			out = append(out, c)
		}
	}
	return out
}

// ParamName returns the declared name of fn's parameter at position, or ""
// when unknown.
func (u *Unit) ParamName(fn string, position int) string {
	names := u.Signatures[fn]
	if position < 0 || position >= len(names) {
		return ""
	}
	return names[position]
}
