// Package report renders an argument state store as the catalogue consumed
// by harness generators.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/argstates/internal/model"
	"github.com/phobologic/argstates/internal/state"
	"github.com/phobologic/argstates/internal/toon"
)

// Report maps a target function name to its parameters.
type Report map[string]Function

// Function maps a parameter name to what was observed for it. Names that
// occur more than once in one function carry a "#position" suffix.
type Function map[string]Param

// Param is the catalogue entry of one parameter. Every list is sorted.
type Param struct {
	Position int      `json:"position" yaml:"position" jsonschema:"minimum=0,description=Zero-based parameter position"`
	Bounded  bool     `json:"bounded" yaml:"bounded" jsonschema:"description=True when the value lists are exhaustive"`
	Args     []string `json:"args" yaml:"args" jsonschema:"description=Names of the variables passed for this parameter"`
	Chars    []string `json:"chars" yaml:"chars" jsonschema:"description=Character values. Bytes outside printable ASCII are written as hex escapes"`
	Ints     []int64  `json:"ints" yaml:"ints" jsonschema:"description=Integer values"`
	Strings  []string `json:"strings" yaml:"strings" jsonschema:"description=String values"`
	Opaque   []string `json:"opaque,omitempty" yaml:"opaque,omitempty" jsonschema:"description=Source text of contributions that could not be enumerated"`
}

// Format selects the output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOON Format = "toon"
)

// Formats lists the supported formats.
var Formats = []Format{JSON, YAML, TOON}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want one of json, yaml, toon)", name)
}

// Build converts st into a Report.
func Build(st *state.Store) Report {
	r := make(Report, st.Len())
	for _, fn := range st.Functions() {
		params := st.Params(fn)
		counts := make(map[string]int, len(params))
		for _, a := range params {
			counts[a.ParamName]++
		}

		f := make(Function, len(params))
		for _, a := range params {
			name := a.ParamName
			if counts[name] > 1 {
				name += "#" + strconv.Itoa(a.Position)
			}
			f[name] = param(a)
		}
		r[fn] = f
	}
	return r
}

func param(a *model.ArgState) Param {
	p := Param{
		Position: a.Position,
		Bounded:  a.Bounded(),
		Args:     a.SortedArgNames(),
		Ints:     a.SortedInts(),
		Strings:  a.SortedStrings(),
		Opaque:   a.SortedOpaque(),
	}
	chars := a.SortedChars()
	p.Chars = make([]string, len(chars))
	for i, c := range chars {
		p.Chars[i] = charText(c)
	}
	return p
}

// charText renders a character value. Printable ASCII and printable runes
// above 0xff stand for themselves; everything else is escaped so that
// distinct values keep distinct texts.
func charText(c rune) string {
	switch {
	case c >= 0x20 && c < 0x7f:
		return string(c)
	case c >= 0 && c <= 0xff:
		return fmt.Sprintf(`\x%02x`, c)
	case utf8.ValidRune(c) && unicode.IsPrint(c):
		return string(c)
	case c >= 0 && c <= 0xffff:
		return fmt.Sprintf(`\u%04x`, c)
	}
	return fmt.Sprintf(`\U%08x`, uint32(c))
}

// Write encodes r to w in the given format.
func Write(w io.Writer, r Report, format Format) error {
	switch format {
	case JSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
	case TOON:
		if _, err := fmt.Fprintln(w, toon.Encode(r.document())); err != nil {
			return fmt.Errorf("writing toon: %w", err)
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

// document flattens r into TOON tables: one row per parameter, one per
// value, one per opaque contribution.
func (r Report) document() toon.Document {
	params := toon.Table{Name: "params", Columns: []string{"function", "param", "position", "bounded", "args"}}
	values := toon.Table{Name: "values", Columns: []string{"function", "param", "kind", "value"}}
	opaque := toon.Table{Name: "opaque", Columns: []string{"function", "param", "text"}}

	fns := make([]string, 0, len(r))
	for fn := range r {
		fns = append(fns, fn)
	}
	sort.Strings(fns)

	for _, fn := range fns {
		f := r[fn]
		names := make([]string, 0, len(f))
		for name := range f {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return f[names[i]].Position < f[names[j]].Position })

		for _, name := range names {
			p := f[name]
			params.Rows = append(params.Rows, []any{fn, name, p.Position, p.Bounded, strings.Join(p.Args, " ")})
			for _, c := range p.Chars {
				values.Rows = append(values.Rows, []any{fn, name, string(model.Char), c})
			}
			for _, i := range p.Ints {
				values.Rows = append(values.Rows, []any{fn, name, string(model.Int), i})
			}
			for _, s := range p.Strings {
				values.Rows = append(values.Rows, []any{fn, name, string(model.String), s})
			}
			for _, text := range p.Opaque {
				opaque.Rows = append(opaque.Rows, []any{fn, name, text})
			}
		}
	}

	return toon.Document{
		Fields: []toon.Field{{Key: "functions", Value: len(r)}},
		Tables: []toon.Table{params, values, opaque},
	}
}

// Schema writes the JSON Schema of Report to w.
func Schema(w io.Writer) error {
	reflector := new(jsonschema.Reflector)
	s := reflector.Reflect(Report{})
	s.Title = "argstates report"
	s.Description = "Observed argument values per target function and parameter"
	bts, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(bts)); err != nil {
		return fmt.Errorf("writing schema: %w", err)
	}
	return nil
}
