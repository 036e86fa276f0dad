// Package hir implements ZULON's High-level Intermediate Representation: a
// typed, desugared translation of the parsed AST (spec.md section 4.5).
package hir

import (
	"fmt"
	"strings"

	"github.com/zulon-lang/zulon/internal/position"
)

// NodeID uniquely identifies an HIR node within a compilation. Ids are
// allocated monotonically starting at 1 (spec.md section 3, invariant 1).
type NodeID uint64

// IDAllocator hands out monotonically increasing NodeIDs.
type IDAllocator struct{ next NodeID }

// Next returns a fresh id.
func (a *IDAllocator) Next() NodeID {
	a.next++
	return a.next
}

// TyKind enumerates the HIR type system's kinds (spec.md section 3, "HIR").
type TyKind int

const (
	TyPrimitive TyKind = iota
	TyTuple
	TyArray
	TyRef
	TyStruct
	TyEnum
	TyFunction
	TyInferVar
	TyNever
	TyUnit
)

// Ty is the HIR's explicit type representation. Every HIR node carries one.
type Ty struct {
	Kind    TyKind
	Name    string // primitive name, or nominal struct/enum name
	Args    []*Ty  // generic arguments for nominal types, tuple/array element(s)
	Mut     bool   // for TyRef
	Params  []*Ty  // for TyFunction
	Result  *Ty    // for TyFunction
	VarID   int    // for TyInferVar
}

func (t *Ty) String() string {
	if t == nil {
		return "?"
	}

	switch t.Kind {
	case TyPrimitive:
		return t.Name
	case TyUnit:
		return "()"
	case TyNever:
		return "!"
	case TyInferVar:
		return fmt.Sprintf("?t%d", t.VarID)
	case TyTuple:
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}

		return "(" + strings.Join(parts, ", ") + ")"
	case TyArray:
		return "[" + t.Args[0].String() + "]"
	case TyRef:
		if t.Mut {
			return "&mut " + t.Args[0].String()
		}

		return "&" + t.Args[0].String()
	case TyStruct, TyEnum:
		if len(t.Args) == 0 {
			return t.Name
		}

		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}

		return fmt.Sprintf("%s<%s>", t.Name, strings.Join(parts, ", "))
	case TyFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}

		return fmt.Sprintf("fn(%s) -> %s", strings.Join(parts, ", "), t.Result.String())
	default:
		return "?"
	}
}

// Well-known primitive and sentinel types.
var (
	TyI8     = &Ty{Kind: TyPrimitive, Name: "i8"}
	TyI16    = &Ty{Kind: TyPrimitive, Name: "i16"}
	TyI32    = &Ty{Kind: TyPrimitive, Name: "i32"}
	TyI64    = &Ty{Kind: TyPrimitive, Name: "i64"}
	TyU8     = &Ty{Kind: TyPrimitive, Name: "u8"}
	TyU16    = &Ty{Kind: TyPrimitive, Name: "u16"}
	TyU32    = &Ty{Kind: TyPrimitive, Name: "u32"}
	TyU64    = &Ty{Kind: TyPrimitive, Name: "u64"}
	TyF32    = &Ty{Kind: TyPrimitive, Name: "f32"}
	TyF64    = &Ty{Kind: TyPrimitive, Name: "f64"}
	TyBool   = &Ty{Kind: TyPrimitive, Name: "bool"}
	TyChar   = &Ty{Kind: TyPrimitive, Name: "char"}
	TyString = &Ty{Kind: TyPrimitive, Name: "string"}
	TyUnitV  = &Ty{Kind: TyUnit}
	TyNeverV = &Ty{Kind: TyNever}
)

// TyOutcome builds the `Outcome<T,E>` nominal struct type used for error
// returns (spec.md section 3, "Layouts").
func TyOutcome(ok, err *Ty) *Ty {
	return &Ty{Kind: TyStruct, Name: "Outcome", Args: []*Ty{ok, err}}
}

// TyOptional builds `Optional<T>`, the desugaring of a `T?` syntactic type.
func TyOptional(elem *Ty) *Ty {
	return &Ty{Kind: TyStruct, Name: "Optional", Args: []*Ty{elem}}
}

func primitiveByName(name string) *Ty {
	switch name {
	case "i8":
		return TyI8
	case "i16":
		return TyI16
	case "i32":
		return TyI32
	case "i64":
		return TyI64
	case "u8":
		return TyU8
	case "u16":
		return TyU16
	case "u32":
		return TyU32
	case "u64":
		return TyU64
	case "f32":
		return TyF32
	case "f64":
		return TyF64
	case "bool":
		return TyBool
	case "char":
		return TyChar
	case "str", "string":
		return TyString
	default:
		return nil
	}
}

// Node is the base interface implemented by every HIR node.
type Node interface {
	HIRID() NodeID
	GetSpan() position.Span
	GetType() *Ty
}

type base struct {
	ID   NodeID
	Span position.Span
	Type *Ty
}

func (b base) HIRID() NodeID       { return b.ID }
func (b base) GetSpan() position.Span { return b.Span }
func (b base) GetType() *Ty        { return b.Type }

// CaptureMode mirrors typechecker.CaptureMode without importing the
// typechecker package (HIR depends on types the checker already resolved,
// not on the checker itself).
type CaptureMode int

const (
	ImmutableRef CaptureMode = iota
	MutableRef
	ByValue
)

func (m CaptureMode) String() string {
	switch m {
	case ImmutableRef:
		return "ImmutableRef"
	case MutableRef:
		return "MutableRef"
	case ByValue:
		return "ByValue"
	default:
		return "Unknown"
	}
}

// Capture is one free variable captured by a closure, attached to the HIR
// closure node per spec.md section 4.5 ("Closure captures analyzed in 4.4
// are attached to the HIR closure node").
type Capture struct {
	Name string
	Mode CaptureMode
	Type *Ty
	Span position.Span
}
