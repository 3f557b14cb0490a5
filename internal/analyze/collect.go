package analyze

import (
	"github.com/phobologic/argstates/internal/ast"
	"github.com/phobologic/argstates/internal/model"
	"github.com/phobologic/argstates/internal/state"
	"github.com/phobologic/argstates/internal/targets"
)

// reference is a variable-reference argument left for origin resolution.
type reference struct {
	fn    string
	state *model.ArgState
	call  *ast.Call
	v     *ast.Var
}

// collect records every call to a target in u. Literal arguments are added
// to the store and opaque ones mark their parameter unbounded right away;
// variable references are returned for resolution.
func (a *analyzer) collect(u *ast.Unit, set *targets.Set, st *state.Store) []reference {
	var refs []reference
	for _, name := range set.Names() {
		for _, call := range u.CallsTo(name) {
			for i, arg := range call.Args {
				ps := st.Param(name, i, u.ParamName(name, i))
				switch c := Classify(arg); c.Kind {
				case Literal:
					ps.Add(c.Value)
				case VariableReference:
					ps.AddArgName(c.Var.Name)
					refs = append(refs, reference{fn: name, state: ps, call: call, v: c.Var})
				default:
					a.unbounded(name, ps, c.Text, "opaque argument", call.Pos)
				}
			}
		}
	}
	return refs
}
