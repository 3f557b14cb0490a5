package lang

import (
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/phobologic/argstates/internal/model"
)

func init() {
	Languages["c"] = &Language{
		Name:          "c",
		Extensions:    []string{".c", ".h"},
		Family:        FamilyC,
		lang:          c.GetLanguage(),
		Literal:       cLiteral,
		ParseConstant: ParseCConstant,
		ZeroValue:     cZeroValue,
		CalleeName:    cCalleeName,
		ParamNames:    cParamNames,
	}
	Languages["cpp"] = &Language{
		Name:          "cpp",
		Extensions:    []string{".cc", ".cpp", ".cxx", ".c++", ".hh", ".hpp", ".hxx", ".h++"},
		Family:        FamilyC,
		lang:          cpp.GetLanguage(),
		Literal:       cLiteral,
		ParseConstant: ParseCConstant,
		ZeroValue:     cZeroValue,
		CalleeName:    cCalleeName,
		ParamNames:    cParamNames,
	}
}

func cLiteral(node *sitter.Node, source []byte) (model.Value, bool) {
	text := NodeText(node, source)
	switch node.Type() {
	case "number_literal":
		if i, ok := ParseCInteger(text); ok {
			return model.IntValue(i), true
		}
	case "char_literal":
		if r, ok := ParseCChar(text); ok {
			return model.CharValue(r), true
		}
	case "string_literal", "raw_string_literal":
		if s, ok := ParseCString(text); ok {
			return model.StringValue(s), true
		}
	case "concatenated_string":
		var b strings.Builder
		for _, part := range NamedChildren(node) {
			if part.Type() != "string_literal" && part.Type() != "raw_string_literal" {
				return model.Value{}, false
			}
			s, ok := ParseCString(NodeText(part, source))
			if !ok {
				return model.Value{}, false
			}
			b.WriteString(s)
		}
		return model.StringValue(b.String()), true
	case "null", "nullptr":
		return model.IntValue(0), true
	case "true":
		return model.IntValue(1), true
	case "false":
		return model.IntValue(0), true
	case "identifier":
		// Grammars that predate the null node parse NULL as a plain name.
		if text == "NULL" {
			return model.IntValue(0), true
		}
	}
	return model.Value{}, false
}

var cIntegerTypes = map[string]struct{}{
	"int": {}, "short": {}, "long": {}, "signed": {}, "unsigned": {},
	"_Bool": {}, "bool": {},
}

func cZeroValue(typ string) (model.Value, bool) {
	words := strings.Fields(typ)
	if len(words) == 0 {
		return model.Value{}, false
	}
	last := words[len(words)-1]
	if last == "char" {
		return model.CharValue(0), true
	}
	if _, ok := cIntegerTypes[last]; ok || strings.HasSuffix(last, "_t") {
		return model.IntValue(0), true
	}
	return model.Value{}, false
}

func cCalleeName(fn *sitter.Node, source []byte) (string, bool) {
	fn = Unparen(fn)
	if fn == nil {
		return "", false
	}
	switch fn.Type() {
	case "identifier":
		return NodeText(fn, source), true
	case "qualified_identifier":
		name := strings.Join(strings.Fields(NodeText(fn, source)), "")
		if strings.ContainsAny(name, "<>()") {
			return "", false
		}
		return name, true
	}
	return "", false
}

// CNamespace returns the C++ namespace enclosing n, outermost first and
// joined with "::". Anonymous namespaces add no component.
func CNamespace(n *sitter.Node, source []byte) string {
	var parts []string
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() != "namespace_definition" {
			continue
		}
		if name := p.ChildByFieldName("name"); name != nil {
			parts = append(parts, strings.Join(strings.Fields(NodeText(name, source)), ""))
		}
	}
	slices.Reverse(parts)
	return strings.Join(parts, "::")
}

func cParamNames(params *sitter.Node, source []byte) []string {
	var names []string
	for _, p := range NamedChildren(params) {
		switch p.Type() {
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
		default:
			continue
		}
		d := p.ChildByFieldName("declarator")
		if d == nil {
			if t := p.ChildByFieldName("type"); t != nil && NodeText(t, source) == "void" && len(NamedChildren(params)) == 1 {
				return nil
			}
			names = append(names, "")
			continue
		}
		names = append(names, CDeclarator(d, source).Name)
	}
	return names
}

// Declarator describes what a C/C++ declarator declares.
type Declarator struct {
	Name string
	// Func is set for function declarators (prototypes), as opposed to
	// variables of function-pointer type.
	Func      bool
	Pointer   bool
	Array     bool
	Reference bool
	// Init is the initializer expression of an init_declarator, or nil.
	Init *sitter.Node
}

// CDeclarator unwraps a C/C++ declarator down to the declared name.
func CDeclarator(d *sitter.Node, source []byte) Declarator {
	var out Declarator
	sawFunc := false
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "qualified_identifier", "destructor_name", "operator_name":
			out.Name = strings.Join(strings.Fields(NodeText(d, source)), "")
			out.Func = sawFunc
			return out
		case "init_declarator":
			out.Init = d.ChildByFieldName("value")
		case "function_declarator":
			sawFunc = true
		case "pointer_declarator":
			out.Pointer = true
			if sawFunc {
				// (*fp)(...) declares a pointer, not a function.
				sawFunc = false
			}
		case "array_declarator":
			out.Array = true
		case "reference_declarator":
			out.Reference = true
		}
		next := d.ChildByFieldName("declarator")
		if next == nil {
			children := NamedChildren(d)
			if len(children) == 0 {
				return out
			}
			next = children[len(children)-1]
			if next.Type() == "parameter_list" && len(children) > 1 {
				next = children[0]
			}
		}
		d = next
	}
	return out
}
