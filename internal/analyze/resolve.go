package analyze

import (
	"github.com/phobologic/argstates/internal/ast"
	"github.com/phobologic/argstates/internal/model"
)

// point is a use of a variable: a call argument, or the right-hand side of
// an assignment being chased.
type point struct {
	offset  int
	closure int
	pos     ast.Pos
}

type visit struct {
	v      *ast.Var
	offset int
}

// resolve adds the values every reaching assignment can give ref.v at the
// call to the parameter's state.
func (a *analyzer) resolve(ref reference) {
	at := point{offset: ref.call.Pos.Offset, closure: ref.call.ClosureDepth, pos: ref.call.Pos}
	a.chase(ref.fn, ref.state, ref.call.Func, ref.v, at, 0, make(map[visit]bool))
}

func (a *analyzer) chase(name string, st *model.ArgState, fn *ast.Func, v *ast.Var, at point, depth int, seen map[visit]bool) {
	switch {
	case fn == nil:
		a.unbounded(name, st, v.Name, "reference at file scope", at.pos)
		return
	case v.Kind == ast.Param:
		a.unbounded(name, st, v.Name, "parameter", at.pos)
		return
	case v.Kind == ast.Global || v.Func != fn:
		a.unbounded(name, st, v.Name, "variable outside the enclosing function", at.pos)
		return
	}

	limit := a.maxDepth
	if limit <= 0 {
		limit = max(fn.Stmts, 1)
	}
	if depth > limit {
		a.unbounded(name, st, v.Name, "reference chain too deep", at.pos)
		return
	}
	key := visit{v: v, offset: at.offset}
	if seen[key] {
		return
	}
	seen[key] = true
	a.log.Debug("chasing", "func", name, "var", v.ID(), "depth", depth)

	reaching := 0
	for _, as := range fn.AssignmentsTo(v) {
		if !reaches(fn, as, at) {
			continue
		}
		reaching++
		if as.Op != ast.Set {
			a.unbounded(name, st, as.Src, as.Op.String(), as.Pos)
			continue
		}
		switch c := Classify(as.Value); c.Kind {
		case Literal:
			st.Add(c.Value)
		case VariableReference:
			next := point{offset: as.Span.Start, closure: as.ClosureDepth, pos: as.Pos}
			a.chase(name, st, fn, c.Var, next, depth+1, seen)
		default:
			a.unbounded(name, st, c.Text, "opaque assignment", as.Pos)
		}
	}
	if reaching == 0 {
		a.unbounded(name, st, v.Name, "no reaching assignment", at.pos)
	}
}

// reaches reports whether the store as may determine the value of its
// variable at the use point at. Stores that complete before the use reach
// it; so do stores sharing a loop with it (back edges). A goto or a static
// variable defeats ordering altogether, as does a closure on either side
// that does not contain the declaration, since it may run at any time.
func reaches(fn *ast.Func, as *ast.Assign, at point) bool {
	v := as.Var
	switch {
	case fn.HasGoto, v.Static:
		return true
	case as.ClosureDepth > v.ClosureDepth, at.closure > v.ClosureDepth:
		return true
	case as.Span.End <= at.offset:
		return true
	}
	return fn.InLoopWith(as.Span.Start, at.offset)
}
