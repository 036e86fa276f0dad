package typechecker

import "github.com/zulon-lang/zulon/internal/parser"

// CaptureMode is how a closure captures one free variable from its
// enclosing scope. Modes only ever upgrade while walking a closure body
// (spec.md section 4.4): a variable that is merely read stays
// ImmutableRef; an assignment upgrades it to MutableRef; a use that moves
// it (returned, or bound into a struct literal / another closure)
// upgrades it all the way to ByValue. Once upgraded, a mode never drops
// back down.
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

func upgrade(cur, next CaptureMode) CaptureMode {
	if next > cur {
		return next
	}

	return cur
}

// Capture describes one free variable captured by a closure.
type Capture struct {
	Name string
	Mode CaptureMode
}

// CaptureAnalyzer computes, for a single ClosureExpr, the capture mode of
// every free variable its body references.
type CaptureAnalyzer struct {
	locals  map[string]bool
	modes   map[string]CaptureMode
	order   []string
}

// AnalyzeClosure walks cl.Body and returns its captures in first-use
// order.
func AnalyzeClosure(cl *parser.ClosureExpr) []Capture {
	a := &CaptureAnalyzer{locals: map[string]bool{}, modes: map[string]CaptureMode{}}

	for _, p := range cl.Params {
		a.locals[p.Name] = true
	}

	a.walkExpr(cl.Body, false, false)

	caps := make([]Capture, len(a.order))
	for i, name := range a.order {
		caps[i] = Capture{Name: name, Mode: a.modes[name]}
	}

	return caps
}

func (a *CaptureAnalyzer) note(name string, mode CaptureMode) {
	if a.locals[name] {
		return
	}

	if _, ok := a.modes[name]; !ok {
		a.order = append(a.order, name)
	}

	a.modes[name] = upgrade(a.modes[name], mode)
}

// walkExpr visits e. assigned marks that e is the target of an
// assignment; moved marks that e's value is being moved out (bound by
// `let`, placed in an array/tuple/struct literal, or returned, thrown or
// carried by `break`). Call arguments are not treated as moved.
func (a *CaptureAnalyzer) walkExpr(e parser.Expression, assigned, moved bool) {
	if e == nil {
		return
	}

	switch n := e.(type) {
	case *parser.IdentExpr:
		switch {
		case moved:
			a.note(n.Name, ByValue)
		case assigned:
			a.note(n.Name, MutableRef)
		default:
			a.note(n.Name, ImmutableRef)
		}
	case *parser.PathExpr:
		// qualified paths reference items, not locals; nothing to capture.
	case *parser.BinaryExpr:
		a.walkExpr(n.Left, false, false)
		a.walkExpr(n.Right, false, false)
	case *parser.UnaryExpr:
		mutRef := n.Op == parser.OpRefMut
		a.walkExpr(n.Operand, mutRef, false)
	case *parser.AssignExpr:
		a.walkExpr(n.Target, true, false)
		a.walkExpr(n.Value, false, false)
	case *parser.CallExpr:
		a.walkExpr(n.Callee, false, false)

		for _, arg := range n.Args {
			a.walkExpr(arg, false, false)
		}
	case *parser.MethodCallExpr:
		a.walkExpr(n.Receiver, false, false)

		for _, arg := range n.Args {
			a.walkExpr(arg, false, false)
		}
	case *parser.FieldExpr:
		a.walkExpr(n.Receiver, assigned, false)
	case *parser.TupleIndexExpr:
		a.walkExpr(n.Receiver, assigned, false)
	case *parser.IndexExpr:
		a.walkExpr(n.Receiver, assigned, false)
		a.walkExpr(n.Index, false, false)
	case *parser.ArrayLitExpr:
		for _, el := range n.Elements {
			a.walkExpr(el, false, true)
		}
	case *parser.TupleLitExpr:
		for _, el := range n.Elements {
			a.walkExpr(el, false, true)
		}
	case *parser.StructLitExpr:
		for _, f := range n.Fields {
			a.walkExpr(f.Value, false, true)
		}
	case *parser.BlockExpr:
		a.walkBlock(n)
	case *parser.IfExpr:
		a.walkExpr(n.Cond, false, false)
		a.walkBlock(n.Then)
		a.walkExpr(n.Else, false, false)
	case *parser.MatchExpr:
		a.walkExpr(n.Scrutinee, false, false)

		for _, arm := range n.Arms {
			a.walkExpr(arm.Guard, false, false)
			a.walkExpr(arm.Body, false, false)
		}
	case *parser.LoopExpr:
		a.walkBlock(n.Body)
	case *parser.WhileExpr:
		a.walkExpr(n.Cond, false, false)
		a.walkBlock(n.Body)
	case *parser.ForExpr:
		a.walkExpr(n.Iter, false, false)
		a.walkBlock(n.Body)
	case *parser.BreakExpr:
		a.walkExpr(n.Value, false, true)
	case *parser.ReturnExpr:
		a.walkExpr(n.Value, false, true)
	case *parser.ThrowExpr:
		a.walkExpr(n.Value, false, true)
	case *parser.TryExpr:
		a.walkExpr(n.Value, false, false)
	case *parser.PerformExpr:
		for _, arg := range n.Args {
			a.walkExpr(arg, false, false)
		}
	case *parser.ClosureExpr:
		// A nested closure captures through its own analysis; treat any
		// name it references that isn't one of its own params as moved
		// into it by value at this level (it must outlive this frame).
		inner := AnalyzeClosure(n)
		for _, c := range inner {
			a.note(c.Name, ByValue)
		}
	case *parser.DeferExpr:
		a.walkExpr(n.Value, false, false)
	case *parser.CastExpr:
		a.walkExpr(n.Value, false, false)
	case *parser.RangeExpr:
		a.walkExpr(n.Start, false, false)
		a.walkExpr(n.End, false, false)
	case *parser.MacroInvokeExpr:
		for _, arg := range n.Args {
			a.walkExpr(arg, false, false)
		}
	case *parser.TemplateStringExpr:
		for _, part := range n.Parts {
			if part.IsExpr {
				a.walkExpr(part.Expr, false, false)
			}
		}
	case *parser.TryHandlerExpr:
		a.walkBlock(n.Body)

		for _, h := range n.Handlers {
			a.walkExpr(h.Body, false, false)
		}
	default:
		// Literals and other leaf nodes capture nothing.
	}
}

func (a *CaptureAnalyzer) walkBlock(b *parser.BlockExpr) {
	if b == nil {
		return
	}

	for _, stmt := range b.Statements {
		switch s := stmt.(type) {
		case *parser.LetStmt:
			a.walkExpr(s.Value, false, true)
			a.locals[s.Name] = true
		case *parser.ExprStmt:
			a.walkExpr(s.Expr, false, false)
		}
	}

	a.walkExpr(b.Trailing, false, false)
}
