// Package analyze infers, for each parameter of a set of target functions,
// the values passed to it at call sites in a translation unit.
//
// Analysis runs in two passes over a lowered unit. Collection visits every
// call to a target and classifies each argument as a literal, a variable
// reference or an opaque expression. Resolution then walks each variable
// reference back through the enclosing function to the assignments that can
// reach the call, classifying their right-hand sides the same way and
// chasing further references. Anything that cannot be enumerated marks the
// parameter unbounded.
package analyze

import (
	"github.com/charmbracelet/log"

	"github.com/phobologic/argstates/internal/ast"
	"github.com/phobologic/argstates/internal/logging"
	"github.com/phobologic/argstates/internal/model"
	"github.com/phobologic/argstates/internal/state"
	"github.com/phobologic/argstates/internal/targets"
)

// Options tune an analysis run.
type Options struct {
	// MaxDepth bounds how many variable references are chased in a row.
	// Zero uses the statement count of the enclosing function.
	MaxDepth int
	// Logger receives debug records for every unbounded decision. Nil
	// discards them.
	Logger *log.Logger
}

type analyzer struct {
	maxDepth int
	log      *log.Logger
}

// Run analyses u for calls to the functions in set and returns a fresh
// store. Collection completes before any reference is resolved.
func Run(u *ast.Unit, set *targets.Set, opts Options) *state.Store {
	a := &analyzer{maxDepth: opts.MaxDepth, log: opts.Logger}
	if a.log == nil {
		a.log = logging.Discard()
	}

	st := state.New()
	if set.Len() == 0 {
		return st
	}
	refs := a.collect(u, set, st)
	for _, ref := range refs {
		a.resolve(ref)
	}
	return st
}

func (a *analyzer) unbounded(fn string, st *model.ArgState, text, reason string, pos ast.Pos) {
	a.log.Debug("unbounded", "func", fn, "param", st.ParamName, "reason", reason, "expr", text, "at", pos)
	st.MarkUnbounded(text)
}
