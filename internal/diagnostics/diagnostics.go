// Package diagnostics renders compiler diagnostics with source context.
//
// It sits above internal/position: every diagnostic carries a Span so any
// failure can be traced back to the originating source characters (spec.md
// section 3).
package diagnostics

import (
	"fmt"

	"github.com/zulon-lang/zulon/internal/position"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "diagnostic"
	}
}

// Stage identifies which pipeline stage raised a diagnostic.
type Stage string

const (
	StageMacro       Stage = "macro"
	StageLex         Stage = "lex"
	StageParse       Stage = "parse"
	StageType        Stage = "type"
	StageHIR         Stage = "hir"
	StageMIR         Stage = "mir"
	StageAsync       Stage = "async"
	StageLIR         Stage = "lir"
	StageLayout      Stage = "layout"
	StageCodegen     Stage = "codegen"
)

// Diagnostic is a single structured error, warning, or note.
type Diagnostic struct {
	Severity Severity
	Stage    Stage
	Code     string
	Message  string
	Span     position.Span
	Notes    []string
	Hint     string
}

// Error implements the error interface so a Diagnostic can be returned
// directly from a stage's entry point.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Span.String(), d.Severity, d.Message)
}

// Bag accumulates diagnostics in the order they are added, for
// Renderer.RenderAll to render together. The lexer, parser and type
// checker report their own error types and do not collect into a Bag.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic to the bag.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Errorf builds and appends an error-level diagnostic.
func (b *Bag) Errorf(stage Stage, code string, span position.Span, format string, args ...interface{}) {
	b.Add(Diagnostic{
		Severity: SeverityError,
		Stage:    stage,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// HasErrors reports whether the bag contains at least one error-severity
// diagnostic.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Items returns the accumulated diagnostics in insertion order.
func (b *Bag) Items() []Diagnostic { return b.items }

// Len returns the number of accumulated diagnostics.
func (b *Bag) Len() int { return len(b.items) }
