package analyze

import (
	"github.com/phobologic/argstates/internal/ast"
	"github.com/phobologic/argstates/internal/model"
)

// Kind is the three-way classification of an argument or assigned value.
type Kind int

const (
	Literal Kind = iota
	VariableReference
	Opaque
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case VariableReference:
		return "variable"
	default:
		return "opaque"
	}
}

// Classification is the result of Classify. Value is set for literals, Var
// for variable references; Text is the source text in every case.
type Classification struct {
	Kind  Kind
	Value model.Value
	Var   *ast.Var
	Text  string
}

// Classify is the single classification rule shared by call-site collection
// and origin resolution.
func Classify(e ast.Expr) Classification {
	switch e := e.(type) {
	case *ast.Literal:
		return Classification{Kind: Literal, Value: e.Value, Text: e.Src}
	case *ast.Ref:
		return Classification{Kind: VariableReference, Var: e.Var, Text: e.Src}
	case nil:
		return Classification{Kind: Opaque}
	default:
		return Classification{Kind: Opaque, Text: e.Text()}
	}
}
