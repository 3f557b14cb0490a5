// Package state holds the argument state store shared by both analysis
// passes of one translation unit.
package state

import (
	"sort"

	"github.com/phobologic/argstates/internal/model"
)

// Store maps a target function name to the ordered states of its parameters.
// A Store is not safe for concurrent use; each translation unit owns one.
type Store struct {
	funcs map[string][]*model.ArgState
}

// New returns an empty store.
func New() *Store {
	return &Store{funcs: make(map[string][]*model.ArgState)}
}

// Param returns the state for fn's parameter at position, creating it (and
// any lower positions) on first use. name may be empty, in which case a
// synthesized name is used.
func (s *Store) Param(fn string, position int, name string) *model.ArgState {
	params := s.funcs[fn]
	for len(params) <= position {
		params = append(params, model.NewArgState(len(params), model.SyntheticParamName(len(params))))
	}
	s.funcs[fn] = params

	st := params[position]
	st.ParamName = model.PreferParamName(position, st.ParamName, name)
	return st
}

// Lookup returns the state for fn's parameter at position, if present.
func (s *Store) Lookup(fn string, position int) (*model.ArgState, bool) {
	params := s.funcs[fn]
	if position < 0 || position >= len(params) {
		return nil, false
	}
	return params[position], true
}

// Params returns fn's parameter states ordered by position.
func (s *Store) Params(fn string) []*model.ArgState {
	return s.funcs[fn]
}

// Functions returns the recorded function names in sorted order.
func (s *Store) Functions() []string {
	names := make([]string, 0, len(s.funcs))
	for name := range s.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of functions with at least one recorded parameter.
func (s *Store) Len() int {
	return len(s.funcs)
}

// Merge unions other into s. other is left untouched.
func (s *Store) Merge(other *Store) {
	if other == nil {
		return
	}
	for _, fn := range other.Functions() {
		for _, src := range other.funcs[fn] {
			dst := s.Param(fn, src.Position, src.ParamName)
			dst.Merge(src)
		}
	}
}
