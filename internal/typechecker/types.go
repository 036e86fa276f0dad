// Package typechecker implements ZULON's Hindley-Milner type inference:
// unification over a substitution map, a chained type environment, an
// effect stack, and closure capture-mode analysis (spec.md section 4.4).
package typechecker

import (
	"fmt"
	"strings"
)

// Type is the typechecker's internal type representation, distinct from
// the parser's syntactic Type nodes.
type Type interface {
	isType()
	String() string
}

// TVar is an unbound type variable, identified by a monotonically
// increasing id.
type TVar struct {
	ID   int
	Name string // empty unless it came from a generic parameter
}

func (*TVar) isType() {}
func (v *TVar) String() string {
	if v.Name != "" {
		return v.Name
	}

	return fmt.Sprintf("t%d", v.ID)
}

// TCon is a concrete or generic-applied named type: `i32`, `Vec<T>`,
// `Outcome<T, E>`.
type TCon struct {
	Name string
	Args []Type
}

func (*TCon) isType() {}
func (c *TCon) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}

	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}

	return fmt.Sprintf("%s<%s>", c.Name, strings.Join(parts, ", "))
}

// TFunc is a function type.
type TFunc struct {
	Params []Type
	Result Type
}

func (*TFunc) isType() {}
func (f *TFunc) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}

	return fmt.Sprintf("fn(%s) -> %s", strings.Join(parts, ", "), f.Result.String())
}

// TTuple is a tuple type.
type TTuple struct{ Elements []Type }

func (*TTuple) isType() {}
func (t *TTuple) String() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.String()
	}

	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

// Well-known base types (spec.md section 4.4).
var (
	I8     = &TCon{Name: "i8"}
	I16    = &TCon{Name: "i16"}
	I32    = &TCon{Name: "i32"}
	I64    = &TCon{Name: "i64"}
	U8     = &TCon{Name: "u8"}
	U16    = &TCon{Name: "u16"}
	U32    = &TCon{Name: "u32"}
	U64    = &TCon{Name: "u64"}
	F32    = &TCon{Name: "f32"}
	F64    = &TCon{Name: "f64"}
	Bool   = &TCon{Name: "bool"}
	Str    = &TCon{Name: "str"}
	Char   = &TCon{Name: "char"}
	Unit   = &TCon{Name: "()"}
	Never  = &TCon{Name: "!"}
)

// Outcome constructs the `Outcome<T, E>` tagged union used for `?` and
// `throw` (spec.md section 4.4/4.5).
func Outcome(ok, errT Type) *TCon { return &TCon{Name: "Outcome", Args: []Type{ok, errT}} }

// Optional constructs `Optional<T>`, the desugaring of a `T?` syntactic
// type.
func Optional(elem Type) *TCon { return &TCon{Name: "Optional", Args: []Type{elem}} }

func isIntName(name string) bool {
	switch name {
	case "i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64":
		return true
	default:
		return false
	}
}

func isFloatName(name string) bool {
	return name == "f32" || name == "f64"
}
