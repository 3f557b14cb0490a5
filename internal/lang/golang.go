package lang

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/phobologic/argstates/internal/model"
)

func init() {
	Languages["go"] = &Language{
		Name:          "go",
		Extensions:    []string{".go"},
		Family:        FamilyGo,
		lang:          golang.GetLanguage(),
		Literal:       goLiteral,
		ParseConstant: goParseConstant,
		ZeroValue:     goZeroValue,
		CalleeName:    goCalleeName,
		ParamNames:    goParamNames,
	}
}

func goLiteral(node *sitter.Node, source []byte) (model.Value, bool) {
	text := NodeText(node, source)
	switch node.Type() {
	case "int_literal":
		if i, ok := parseGoInt(text); ok {
			return model.IntValue(i), true
		}
	case "rune_literal":
		if len(text) >= 2 {
			r, _, tail, err := strconv.UnquoteChar(text[1:len(text)-1], '\'')
			if err == nil && tail == "" {
				return model.CharValue(r), true
			}
		}
	case "interpreted_string_literal", "raw_string_literal":
		if s, err := strconv.Unquote(text); err == nil {
			return model.StringValue(s), true
		}
	case "nil":
		return model.IntValue(0), true
	case "true":
		return model.IntValue(1), true
	case "false":
		return model.IntValue(0), true
	}
	return model.Value{}, false
}

func parseGoInt(text string) (int64, bool) {
	if i, err := strconv.ParseInt(text, 0, 64); err == nil {
		return i, true
	}
	if u, err := strconv.ParseUint(text, 0, 64); err == nil {
		return int64(u), true
	}
	return 0, false
}

func goParseConstant(text string) (model.Value, bool) {
	s := strings.TrimSpace(text)
	switch {
	case s == "":
	case s[0] == '"' || s[0] == '`':
		if str, err := strconv.Unquote(s); err == nil {
			return model.StringValue(str), true
		}
	case s[0] == '\'':
		if len(s) >= 2 {
			if r, _, tail, err := strconv.UnquoteChar(s[1:len(s)-1], '\''); err == nil && tail == "" {
				return model.CharValue(r), true
			}
		}
	default:
		if i, ok := parseGoInt(s); ok {
			return model.IntValue(i), true
		}
	}
	return model.Value{}, false
}

func goZeroValue(typ string) (model.Value, bool) {
	switch strings.TrimSpace(typ) {
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"byte", "bool":
		return model.IntValue(0), true
	case "rune":
		return model.CharValue(0), true
	case "string":
		return model.StringValue(""), true
	}
	if strings.HasPrefix(typ, "*") {
		return model.IntValue(0), true
	}
	return model.Value{}, false
}

// goCalleeName accepts plain identifiers and pkg.Func selectors.
func goCalleeName(fn *sitter.Node, source []byte) (string, bool) {
	fn = Unparen(fn)
	if fn == nil {
		return "", false
	}
	switch fn.Type() {
	case "identifier":
		return NodeText(fn, source), true
	case "selector_expression":
		operand := fn.ChildByFieldName("operand")
		field := fn.ChildByFieldName("field")
		if operand == nil || field == nil || operand.Type() != "identifier" {
			return "", false
		}
		return NodeText(operand, source) + "." + NodeText(field, source), true
	}
	return "", false
}

// goParamNames flattens grouped parameters: (a, b int, c string) yields
// a, b, c; unnamed parameters yield "".
func goParamNames(params *sitter.Node, source []byte) []string {
	var names []string
	for _, p := range NamedChildren(params) {
		switch p.Type() {
		case "parameter_declaration", "variadic_parameter_declaration":
		default:
			continue
		}
		ids := GoIdentifiers(p, source)
		if len(ids) == 0 {
			names = append(names, "")
			continue
		}
		names = append(names, ids...)
	}
	return names
}

// GoIdentifiers returns the texts of n's direct identifier children, which
// in Go declarations and parameter groups are the declared names.
func GoIdentifiers(n *sitter.Node, source []byte) []string {
	var ids []string
	for _, child := range NamedChildren(n) {
		if child.Type() == "identifier" {
			ids = append(ids, NodeText(child, source))
		}
	}
	return ids
}
