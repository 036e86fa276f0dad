package typechecker

import (
	"fmt"

	"github.com/zulon-lang/zulon/internal/position"
)

// ErrorKind enumerates the type checker's failure modes (spec.md
// section 7).
type ErrorKind int

const (
	TypeMismatch ErrorKind = iota
	ArityMismatch
	NotCallable
	UndefinedVariable
	UndefinedEffect
	InferenceError
	DuplicateBinding
)

func (k ErrorKind) String() string {
	switch k {
	case TypeMismatch:
		return "TypeMismatch"
	case ArityMismatch:
		return "ArityMismatch"
	case NotCallable:
		return "NotCallable"
	case UndefinedVariable:
		return "UndefinedVariable"
	case UndefinedEffect:
		return "UndefinedEffect"
	case InferenceError:
		return "InferenceError"
	case DuplicateBinding:
		return "DuplicateBinding"
	default:
		return "TypeError"
	}
}

// Error is a single type-checking failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    position.Span
}

func (e *Error) Error() string {
	if e.Span.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Span.Start, e.Kind, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
