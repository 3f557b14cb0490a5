// Package model defines core data structures for argstates.
package model

import (
	"fmt"
	"sort"
	"strconv"
)

// ValueKind identifies which of the three value sets a literal belongs to.
type ValueKind string

const (
	Char   ValueKind = "char"
	Int    ValueKind = "int"
	String ValueKind = "string"
)

// Value is a typed constant observed at a call site.
type Value struct {
	Kind ValueKind
	Char rune
	Int  int64
	Str  string
}

// CharValue returns a character value.
func CharValue(r rune) Value { return Value{Kind: Char, Char: r} }

// IntValue returns an integer value.
func IntValue(i int64) Value { return Value{Kind: Int, Int: i} }

// StringValue returns a string value.
func StringValue(s string) Value { return Value{Kind: String, Str: s} }

func (v Value) String() string {
	switch v.Kind {
	case Char:
		return strconv.QuoteRune(v.Char)
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case String:
		return strconv.Quote(v.Str)
	default:
		return fmt.Sprintf("Value(%q)", v.Kind)
	}
}

// ArgState accumulates everything observed for one parameter of one target
// function. The value sets only grow and Unbounded never resets.
type ArgState struct {
	Position  int // zero-based
	ParamName string

	ArgNames map[string]struct{}
	Chars    map[rune]struct{}
	Ints     map[int64]struct{}
	Strings  map[string]struct{}

	// Opaque holds the source text of every contribution that could not be
	// enumerated. A non-empty set implies Unbounded.
	Opaque    map[string]struct{}
	Unbounded bool
}

// NewArgState returns an empty state for the parameter at position.
func NewArgState(position int, paramName string) *ArgState {
	return &ArgState{
		Position:  position,
		ParamName: paramName,
		ArgNames:  make(map[string]struct{}),
		Chars:     make(map[rune]struct{}),
		Ints:      make(map[int64]struct{}),
		Strings:   make(map[string]struct{}),
		Opaque:    make(map[string]struct{}),
	}
}

// Add records a literal value in the matching set.
func (a *ArgState) Add(v Value) {
	switch v.Kind {
	case Char:
		a.Chars[v.Char] = struct{}{}
	case Int:
		a.Ints[v.Int] = struct{}{}
	case String:
		a.Strings[v.Str] = struct{}{}
	}
}

// AddArgName records the name of a variable passed for this parameter.
func (a *ArgState) AddArgName(name string) {
	if name != "" {
		a.ArgNames[name] = struct{}{}
	}
}

// MarkUnbounded flags the parameter as not enumerable. text describes the
// offending contribution and may be empty.
func (a *ArgState) MarkUnbounded(text string) {
	a.Unbounded = true
	if text != "" {
		a.Opaque[text] = struct{}{}
	}
}

// Bounded reports whether every contribution so far was enumerable.
func (a *ArgState) Bounded() bool {
	return !a.Unbounded
}

// Len returns the number of distinct literal values recorded.
func (a *ArgState) Len() int {
	return len(a.Chars) + len(a.Ints) + len(a.Strings)
}

// Merge unions other into a. ParamName is kept unless a only has a
// synthesized name and other has a declared one.
func (a *ArgState) Merge(other *ArgState) {
	a.ParamName = PreferParamName(a.Position, a.ParamName, other.ParamName)
	for k := range other.ArgNames {
		a.ArgNames[k] = struct{}{}
	}
	for k := range other.Chars {
		a.Chars[k] = struct{}{}
	}
	for k := range other.Ints {
		a.Ints[k] = struct{}{}
	}
	for k := range other.Strings {
		a.Strings[k] = struct{}{}
	}
	for k := range other.Opaque {
		a.Opaque[k] = struct{}{}
	}
	if other.Unbounded {
		a.Unbounded = true
	}
}

// SortedChars returns the character set in ascending order.
func (a *ArgState) SortedChars() []rune {
	out := make([]rune, 0, len(a.Chars))
	for r := range a.Chars {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedInts returns the integer set in ascending order.
func (a *ArgState) SortedInts() []int64 {
	out := make([]int64, 0, len(a.Ints))
	for i := range a.Ints {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedStrings returns the string set in ascending order.
func (a *ArgState) SortedStrings() []string { return sortedKeys(a.Strings) }

// SortedArgNames returns the argument variable names in ascending order.
func (a *ArgState) SortedArgNames() []string { return sortedKeys(a.ArgNames) }

// SortedOpaque returns the opaque contribution texts in ascending order.
func (a *ArgState) SortedOpaque() []string { return sortedKeys(a.Opaque) }

// SyntheticParamName is the name used when no declaration names the
// parameter: param1, param2, ...
func SyntheticParamName(position int) string {
	return "param" + strconv.Itoa(position+1)
}

// PreferParamName picks between two candidate names for the same position.
// Declared names win over synthesized ones; between two declared names the
// lexically smaller one wins so merges are order independent.
func PreferParamName(position int, a, b string) string {
	synth := SyntheticParamName(position)
	switch {
	case a == "" || a == synth:
		if b == "" {
			return synth
		}
		return b
	case b == "" || b == synth:
		return a
	case b < a:
		return b
	default:
		return a
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
