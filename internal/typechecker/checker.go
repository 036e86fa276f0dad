package typechecker

import (
	"fmt"

	"github.com/zulon-lang/zulon/internal/parser"
)

// Checker performs two passes over a Crate: registerItems collects every
// top-level signature into the global environment, then checkItems infers
// and unifies types through each function body (spec.md section 4.4).
type Checker struct {
	global  *Env
	subst   Subst
	nextVar int
	errors  []*Error

	// Captures records the computed capture list for every closure
	// encountered during checking, keyed by AST node identity.
	Captures map[*parser.ClosureExpr][]Capture
}

// New creates a Checker with an empty global environment.
func New() *Checker {
	return &Checker{
		global:   NewEnv(),
		subst:    Subst{},
		Captures: map[*parser.ClosureExpr][]Capture{},
	}
}

func (c *Checker) freshVar() *TVar {
	c.nextVar++
	return &TVar{ID: c.nextVar}
}

func (c *Checker) unify(a, b Type) error {
	s, err := Unify(c.subst, a, b)
	if err != nil {
		return err
	}

	c.subst = s

	return nil
}

// joinBranches unifies two control-flow branch types, treating a
// diverging (Never) branch as compatible with anything (spec.md section
// 4.5: `return`/`throw`/`break` never constrain the surrounding
// expression's type).
func (c *Checker) joinBranches(a, b Type) (Type, error) {
	ra, rb := c.subst.Apply(a), c.subst.Apply(b)

	if isNever(ra) {
		return rb, nil
	}

	if isNever(rb) {
		return ra, nil
	}

	if err := c.unify(ra, rb); err != nil {
		return nil, err
	}

	return c.subst.Apply(ra), nil
}

// Check type-checks an entire crate and returns every error found. An
// empty result means the crate is well-typed.
func (c *Checker) Check(crate *parser.Crate) []*Error {
	c.registerItems(c.global, crate.Items)
	c.checkItems(c.global, crate.Items)

	return c.errors
}

func (c *Checker) registerItems(env *Env, items []parser.Declaration) {
	for _, item := range items {
		switch d := item.(type) {
		case *parser.FunctionDecl:
			env.DefineValue(d.Name, c.functionType(env, d))
		case *parser.StructDecl:
			env.DefineType(d.Name, &TCon{Name: d.Name})
		case *parser.EnumDecl:
			env.DefineType(d.Name, &TCon{Name: d.Name})
		case *parser.TypeAliasDecl:
			env.DefineType(d.Name, c.resolveType(env, d.Type))
		case *parser.ConstDecl:
			if d.Type != nil {
				env.DefineValue(d.Name, c.resolveType(env, d.Type))
			} else {
				env.DefineValue(d.Name, c.freshVar())
			}
		case *parser.StaticDecl:
			if d.Type != nil {
				env.DefineValue(d.Name, c.resolveType(env, d.Type))
			} else {
				env.DefineValue(d.Name, c.freshVar())
			}
		case *parser.EffectDecl:
			info := &EffectInfo{Name: d.Name, Operations: map[string]*TFunc{}}

			for _, op := range d.Operations {
				info.Operations[op.Name] = c.functionType(env, op).(*TFunc)
			}

			env.DefineEffect(info)
		case *parser.TraitDecl:
			info := &TraitInfo{Name: d.Name, Methods: map[string]*TFunc{}}

			for _, m := range d.Methods {
				info.Methods[m.Name] = c.functionType(env, m).(*TFunc)
			}

			env.DefineTrait(info)
		case *parser.ImplDecl:
			for _, m := range d.Methods {
				env.DefineValue(d.TypeName+"::"+m.Name, c.functionType(env, m))
			}
		case *parser.ModuleDecl:
			c.registerItems(env, d.Items)
		case *parser.UseDecl, *parser.ExternCrateDecl:
			// Module resolution is a non-goal (spec.md section 1); use/extern
			// crate items are recognized syntactically only.
		}
	}
}

func (c *Checker) functionType(env *Env, d *parser.FunctionDecl) Type {
	params := make([]Type, len(d.Params))

	for i, p := range d.Params {
		if p.Type != nil {
			params[i] = c.resolveType(env, p.Type)
		} else {
			params[i] = c.freshVar()
		}
	}

	var result Type = Unit
	if d.ReturnType != nil {
		result = c.resolveType(env, d.ReturnType)
	}

	if d.ErrorType != nil {
		result = Outcome(result, c.resolveType(env, d.ErrorType))
	}

	return &TFunc{Params: params, Result: result}
}

// resolveType converts a parser.Type syntax node into the checker's Type
// representation, desugaring `T?` to Optional<T> and `T | E` to
// Outcome<T, E> (spec.md section 4.3).
func (c *Checker) resolveType(env *Env, t parser.Type) Type {
	switch n := t.(type) {
	case nil:
		return c.freshVar()
	case *parser.SimpleType:
		args := make([]Type, len(n.Args))
		for i, a := range n.Args {
			args[i] = c.resolveType(env, a)
		}

		if len(args) == 0 {
			if builtin, ok := builtinType(n.Name); ok {
				return builtin
			}

			if known, ok := env.LookupType(n.Name); ok {
				return known
			}
		}

		return &TCon{Name: n.Name, Args: args}
	case *parser.PathType:
		name := n.Segments[len(n.Segments)-1]

		args := make([]Type, len(n.Args))
		for i, a := range n.Args {
			args[i] = c.resolveType(env, a)
		}

		return &TCon{Name: name, Args: args}
	case *parser.TupleType:
		elems := make([]Type, len(n.Elements))
		for i, e := range n.Elements {
			elems[i] = c.resolveType(env, e)
		}

		return &TTuple{Elements: elems}
	case *parser.ArrayType:
		return &TCon{Name: "Array", Args: []Type{c.resolveType(env, n.Elem)}}
	case *parser.SliceType:
		return &TCon{Name: "Slice", Args: []Type{c.resolveType(env, n.Elem)}}
	case *parser.RefType:
		return c.resolveType(env, n.Elem)
	case *parser.PointerType:
		return &TCon{Name: "Ptr", Args: []Type{c.resolveType(env, n.Elem)}}
	case *parser.FunctionType:
		params := make([]Type, len(n.Params))
		for i, p := range n.Params {
			params[i] = c.resolveType(env, p)
		}

		return &TFunc{Params: params, Result: c.resolveType(env, n.Result)}
	case *parser.TraitObjectType:
		return &TCon{Name: "dyn " + n.TraitName}
	case *parser.ImplTraitType:
		return &TCon{Name: "impl " + n.TraitName}
	case *parser.NeverType:
		return Never
	case *parser.UnitType:
		return Unit
	case *parser.OptionalType:
		return Optional(c.resolveType(env, n.Elem))
	case *parser.ErrorUnionType:
		return Outcome(c.resolveType(env, n.Value), c.resolveType(env, n.Error))
	default:
		return c.freshVar()
	}
}

func builtinType(name string) (Type, bool) {
	switch name {
	case "i8":
		return I8, true
	case "i16":
		return I16, true
	case "i32":
		return I32, true
	case "i64":
		return I64, true
	case "u8":
		return U8, true
	case "u16":
		return U16, true
	case "u32":
		return U32, true
	case "u64":
		return U64, true
	case "f32":
		return F32, true
	case "f64":
		return F64, true
	case "bool":
		return Bool, true
	case "str":
		return Str, true
	case "char":
		return Char, true
	default:
		return nil, false
	}
}

func (c *Checker) checkItems(env *Env, items []parser.Declaration) {
	for _, item := range items {
		switch d := item.(type) {
		case *parser.FunctionDecl:
			c.checkFunction(env, d)
		case *parser.ImplDecl:
			for _, m := range d.Methods {
				c.checkFunction(env, m)
			}
		case *parser.ModuleDecl:
			c.checkItems(env, d.Items)
		}
	}
}

func (c *Checker) checkFunction(env *Env, d *parser.FunctionDecl) {
	if d.Body == nil {
		return // extern / trait-signature-only declarations have nothing to check
	}

	fnEnv := env.Child()

	sig := c.functionType(env, d).(*TFunc)
	for i, p := range d.Params {
		fnEnv.DefineValue(p.Name, sig.Params[i])
	}

	var permitted []string
	for _, eff := range d.Effects {
		if st, ok := eff.(*parser.SimpleType); ok {
			permitted = append(permitted, st.Name)
		}
	}

	effects := &EffectStack{}
	effects.Push(permitted)

	bodyType, err := c.inferBlock(fnEnv, d.Body, effects)
	if err != nil {
		c.errors = append(c.errors, toCheckerError(err))
		return
	}

	if isNever(c.subst.Apply(bodyType)) {
		// A body that always throws/returns/diverges needs no further
		// unification against the declared result (spec.md section 4.5).
		return
	}

	wantResult := sig.Result
	if d.ErrorType != nil {
		// The declared result is Outcome<T, E>; a block's trailing value
		// only needs to unify with the Ok side, `throw`/`?` handle the
		// error side explicitly (spec.md section 4.5).
		if outcome, ok := wantResult.(*TCon); ok && outcome.Name == "Outcome" && len(outcome.Args) == 2 {
			wantResult = outcome.Args[0]
		}
	}

	if err := c.unify(bodyType, wantResult); err != nil {
		c.errors = append(c.errors, toCheckerError(err))
	}
}

func isNever(t Type) bool {
	tc, ok := t.(*TCon)
	return ok && tc.Name == "!"
}

func toCheckerError(err error) *Error {
	if ce, ok := err.(*Error); ok {
		return ce
	}

	return &Error{Kind: InferenceError, Message: err.Error()}
}

func (c *Checker) inferBlock(env *Env, b *parser.BlockExpr, effects *EffectStack) (Type, error) {
	blockEnv := env.Child()

	for _, stmt := range b.Statements {
		switch s := stmt.(type) {
		case *parser.LetStmt:
			var declared Type
			if s.Type != nil {
				declared = c.resolveType(blockEnv, s.Type)
			}

			if s.Value != nil {
				valType, err := c.inferExpr(blockEnv, s.Value, effects)
				if err != nil {
					return nil, err
				}

				if declared != nil {
					if err := c.unify(declared, valType); err != nil {
						return nil, err
					}
				} else {
					declared = valType
				}
			} else if declared == nil {
				declared = c.freshVar()
			}

			blockEnv.DefineValue(s.Name, declared)
		case *parser.ExprStmt:
			if _, err := c.inferExpr(blockEnv, s.Expr, effects); err != nil {
				return nil, err
			}
		case *parser.FunctionDecl:
			blockEnv.DefineValue(s.Name, c.functionType(blockEnv, s))
			c.checkFunction(blockEnv, s)
		case *parser.StructDecl, *parser.EnumDecl, *parser.ConstDecl, *parser.StaticDecl, *parser.UseDecl:
			c.registerItems(blockEnv, []parser.Declaration{s.(parser.Declaration)})
		}
	}

	if b.Trailing != nil {
		return c.inferExpr(blockEnv, b.Trailing, effects)
	}

	return Unit, nil
}

// inferExpr infers e's type in env, unifying as it goes (spec.md
// section 4.4).
func (c *Checker) inferExpr(env *Env, e parser.Expression, effects *EffectStack) (Type, error) {
	switch n := e.(type) {
	case *parser.IntegerLit:
		if n.Suffix != "" {
			if t, ok := builtinType(n.Suffix); ok {
				return t, nil
			}
		}

		return I32, nil
	case *parser.FloatLit:
		if n.Suffix != "" {
			if t, ok := builtinType(n.Suffix); ok {
				return t, nil
			}
		}

		return F64, nil
	case *parser.StringLit:
		return Str, nil
	case *parser.TemplateStringExpr:
		for _, part := range n.Parts {
			if part.IsExpr {
				if _, err := c.inferExpr(env, part.Expr, effects); err != nil {
					return nil, err
				}
			}
		}

		return Str, nil
	case *parser.CharLit:
		return Char, nil
	case *parser.BoolLit:
		return Bool, nil
	case *parser.NullLit:
		return Optional(c.freshVar()), nil
	case *parser.IdentExpr:
		if t, ok := env.LookupValue(n.Name); ok {
			return t, nil
		}

		return nil, &Error{Kind: UndefinedVariable, Message: "undefined variable: " + n.Name, Span: n.GetSpan()}
	case *parser.PathExpr:
		name := n.Segments[len(n.Segments)-1]
		if t, ok := env.LookupValue(name); ok {
			return t, nil
		}

		return c.freshVar(), nil
	case *parser.BinaryExpr:
		return c.inferBinary(env, n, effects)
	case *parser.UnaryExpr:
		t, err := c.inferExpr(env, n.Operand, effects)
		if err != nil {
			return nil, err
		}

		if n.Op == parser.OpNot {
			if err := c.unify(t, Bool); err != nil {
				return nil, err
			}

			return Bool, nil
		}

		return t, nil
	case *parser.AssignExpr:
		targetType, err := c.inferExpr(env, n.Target, effects)
		if err != nil {
			return nil, err
		}

		valType, err := c.inferExpr(env, n.Value, effects)
		if err != nil {
			return nil, err
		}

		if err := c.unify(targetType, valType); err != nil {
			return nil, err
		}

		return Unit, nil
	case *parser.CallExpr:
		return c.inferCall(env, n, effects)
	case *parser.MethodCallExpr:
		if _, err := c.inferExpr(env, n.Receiver, effects); err != nil {
			return nil, err
		}

		for _, a := range n.Args {
			if _, err := c.inferExpr(env, a, effects); err != nil {
				return nil, err
			}
		}

		return c.freshVar(), nil
	case *parser.FieldExpr:
		if _, err := c.inferExpr(env, n.Receiver, effects); err != nil {
			return nil, err
		}

		return c.freshVar(), nil
	case *parser.TupleIndexExpr:
		if _, err := c.inferExpr(env, n.Receiver, effects); err != nil {
			return nil, err
		}

		return c.freshVar(), nil
	case *parser.IndexExpr:
		if _, err := c.inferExpr(env, n.Receiver, effects); err != nil {
			return nil, err
		}

		if _, err := c.inferExpr(env, n.Index, effects); err != nil {
			return nil, err
		}

		return c.freshVar(), nil
	case *parser.ArrayLitExpr:
		elem := c.freshVar()

		for _, el := range n.Elements {
			t, err := c.inferExpr(env, el, effects)
			if err != nil {
				return nil, err
			}

			if err := c.unify(elem, t); err != nil {
				return nil, err
			}
		}

		return &TCon{Name: "Array", Args: []Type{c.subst.Apply(elem)}}, nil
	case *parser.TupleLitExpr:
		elems := make([]Type, len(n.Elements))

		for i, el := range n.Elements {
			t, err := c.inferExpr(env, el, effects)
			if err != nil {
				return nil, err
			}

			elems[i] = t
		}

		return &TTuple{Elements: elems}, nil
	case *parser.StructLitExpr:
		for _, f := range n.Fields {
			if _, err := c.inferExpr(env, f.Value, effects); err != nil {
				return nil, err
			}
		}

		if t, ok := env.LookupType(n.Name); ok {
			return t, nil
		}

		return &TCon{Name: n.Name}, nil
	case *parser.BlockExpr:
		return c.inferBlock(env, n, effects)
	case *parser.IfExpr:
		condType, err := c.inferExpr(env, n.Cond, effects)
		if err != nil {
			return nil, err
		}

		if err := c.unify(condType, Bool); err != nil {
			return nil, err
		}

		thenType, err := c.inferBlock(env, n.Then, effects)
		if err != nil {
			return nil, err
		}

		if n.Else == nil {
			return Unit, nil
		}

		elseType, err := c.inferExpr(env, n.Else, effects)
		if err != nil {
			return nil, err
		}

		joined, err := c.joinBranches(thenType, elseType)
		if err != nil {
			return nil, err
		}

		return joined, nil
	case *parser.MatchExpr:
		return c.inferMatch(env, n, effects)
	case *parser.LoopExpr:
		if _, err := c.inferBlock(env, n.Body, effects); err != nil {
			return nil, err
		}

		return c.freshVar(), nil
	case *parser.WhileExpr:
		condType, err := c.inferExpr(env, n.Cond, effects)
		if err != nil {
			return nil, err
		}

		if err := c.unify(condType, Bool); err != nil {
			return nil, err
		}

		if _, err := c.inferBlock(env, n.Body, effects); err != nil {
			return nil, err
		}

		return Unit, nil
	case *parser.ForExpr:
		if _, err := c.inferExpr(env, n.Iter, effects); err != nil {
			return nil, err
		}

		loopEnv := env.Child()
		c.bindPattern(loopEnv, n.Pattern, c.freshVar())

		if _, err := c.inferBlock(loopEnv, n.Body, effects); err != nil {
			return nil, err
		}

		return Unit, nil
	case *parser.BreakExpr:
		if n.Value != nil {
			if _, err := c.inferExpr(env, n.Value, effects); err != nil {
				return nil, err
			}
		}

		return Never, nil
	case *parser.ContinueExpr:
		return Never, nil
	case *parser.ReturnExpr:
		if n.Value != nil {
			if _, err := c.inferExpr(env, n.Value, effects); err != nil {
				return nil, err
			}
		}

		return Never, nil
	case *parser.ThrowExpr:
		if _, err := c.inferExpr(env, n.Value, effects); err != nil {
			return nil, err
		}

		return Never, nil
	case *parser.TryExpr:
		return c.inferTry(env, n, effects)
	case *parser.TryHandlerExpr:
		return c.inferBlock(env, n.Body, effects)
	case *parser.PerformExpr:
		info, ok := env.LookupEffect(n.EffectName)
		if !ok {
			return nil, &Error{Kind: UndefinedEffect, Message: "undefined effect: " + n.EffectName, Span: n.GetSpan()}
		}

		if !effects.Permits(n.EffectName) {
			return nil, &Error{Kind: UndefinedEffect, Message: "effect not permitted here: " + n.EffectName, Span: n.GetSpan()}
		}

		op, ok := info.Operations[n.Operation]
		if !ok {
			return nil, &Error{Kind: UndefinedEffect, Message: fmt.Sprintf("effect %s has no operation %s", n.EffectName, n.Operation), Span: n.GetSpan()}
		}

		if len(n.Args) != len(op.Params) {
			return nil, &Error{Kind: ArityMismatch, Message: fmt.Sprintf("%s::%s expects %d arguments, got %d", n.EffectName, n.Operation, len(op.Params), len(n.Args)), Span: n.GetSpan()}
		}

		for i, a := range n.Args {
			at, err := c.inferExpr(env, a, effects)
			if err != nil {
				return nil, err
			}

			if err := c.unify(at, op.Params[i]); err != nil {
				return nil, err
			}
		}

		return op.Result, nil
	case *parser.ClosureExpr:
		c.Captures[n] = AnalyzeClosure(n)
		return c.inferClosure(env, n, effects)
	case *parser.DeferExpr:
		return c.inferExpr(env, n.Value, effects)
	case *parser.CastExpr:
		if _, err := c.inferExpr(env, n.Value, effects); err != nil {
			return nil, err
		}

		return c.resolveType(env, n.Type), nil
	case *parser.RangeExpr:
		elem := c.freshVar()

		if n.Start != nil {
			t, err := c.inferExpr(env, n.Start, effects)
			if err != nil {
				return nil, err
			}

			if err := c.unify(elem, t); err != nil {
				return nil, err
			}
		}

		if n.End != nil {
			t, err := c.inferExpr(env, n.End, effects)
			if err != nil {
				return nil, err
			}

			if err := c.unify(elem, t); err != nil {
				return nil, err
			}
		}

		return &TCon{Name: "Range", Args: []Type{c.subst.Apply(elem)}}, nil
	case *parser.MacroInvokeExpr:
		for _, a := range n.Args {
			if _, err := c.inferExpr(env, a, effects); err != nil {
				return nil, err
			}
		}

		return c.freshVar(), nil
	default:
		return nil, &Error{Kind: InferenceError, Message: fmt.Sprintf("unsupported expression node %T", e)}
	}
}

func (c *Checker) inferBinary(env *Env, n *parser.BinaryExpr, effects *EffectStack) (Type, error) {
	left, err := c.inferExpr(env, n.Left, effects)
	if err != nil {
		return nil, err
	}

	right, err := c.inferExpr(env, n.Right, effects)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case parser.OpAnd, parser.OpOr:
		if err := c.unify(left, Bool); err != nil {
			return nil, err
		}

		if err := c.unify(right, Bool); err != nil {
			return nil, err
		}

		return Bool, nil
	case parser.OpEq, parser.OpNe, parser.OpLt, parser.OpLe, parser.OpGt, parser.OpGe:
		if err := c.unify(left, right); err != nil {
			return nil, err
		}

		return Bool, nil
	default:
		if err := c.unify(left, right); err != nil {
			return nil, err
		}

		return c.subst.Apply(left), nil
	}
}

func (c *Checker) inferCall(env *Env, n *parser.CallExpr, effects *EffectStack) (Type, error) {
	calleeType, err := c.inferExpr(env, n.Callee, effects)
	if err != nil {
		return nil, err
	}

	fn, ok := c.subst.Apply(calleeType).(*TFunc)
	if !ok {
		return nil, &Error{Kind: NotCallable, Message: fmt.Sprintf("%s is not callable", describeCallee(n.Callee)), Span: n.GetSpan()}
	}

	if len(n.Args) != len(fn.Params) {
		return nil, &Error{Kind: ArityMismatch, Message: fmt.Sprintf("%s expects %d arguments, got %d", describeCallee(n.Callee), len(fn.Params), len(n.Args)), Span: n.GetSpan()}
	}

	for i, a := range n.Args {
		at, err := c.inferExpr(env, a, effects)
		if err != nil {
			return nil, err
		}

		if err := c.unify(at, fn.Params[i]); err != nil {
			return nil, err
		}
	}

	return c.subst.Apply(fn.Result), nil
}

func describeCallee(e parser.Expression) string {
	switch n := e.(type) {
	case *parser.IdentExpr:
		return n.Name
	case *parser.PathExpr:
		return n.Segments[len(n.Segments)-1]
	default:
		return "expression"
	}
}

func (c *Checker) inferClosure(env *Env, n *parser.ClosureExpr, effects *EffectStack) (Type, error) {
	closureEnv := env.Child()

	params := make([]Type, len(n.Params))

	for i, p := range n.Params {
		var t Type
		if p.Type != nil {
			t = c.resolveType(env, p.Type)
		} else {
			t = c.freshVar()
		}

		params[i] = t
		closureEnv.DefineValue(p.Name, t)
	}

	bodyType, err := c.inferExpr(closureEnv, n.Body, effects)
	if err != nil {
		return nil, err
	}

	if n.ReturnType != nil {
		want := c.resolveType(env, n.ReturnType)
		if err := c.unify(bodyType, want); err != nil {
			return nil, err
		}

		bodyType = want
	}

	return &TFunc{Params: params, Result: c.subst.Apply(bodyType)}, nil
}

// inferTry type-checks `expr?`: expr must have type Outcome<T, E>, and
// the enclosing function's declared error type must unify with E
// (spec.md section 4.5). Because the enclosing function's error type
// isn't threaded through inferExpr, unification here is limited to
// requiring expr's type to actually be an Outcome and yields its Ok side.
func (c *Checker) inferTry(env *Env, n *parser.TryExpr, effects *EffectStack) (Type, error) {
	t, err := c.inferExpr(env, n.Value, effects)
	if err != nil {
		return nil, err
	}

	outcome, ok := c.subst.Apply(t).(*TCon)
	if !ok || outcome.Name != "Outcome" || len(outcome.Args) != 2 {
		return nil, &Error{Kind: TypeMismatch, Message: "'?' requires an Outcome<T, E> operand, found " + t.String(), Span: n.GetSpan()}
	}

	return outcome.Args[0], nil
}

func (c *Checker) inferMatch(env *Env, n *parser.MatchExpr, effects *EffectStack) (Type, error) {
	scrutType, err := c.inferExpr(env, n.Scrutinee, effects)
	if err != nil {
		return nil, err
	}

	var result Type = Never

	for _, arm := range n.Arms {
		armEnv := env.Child()
		c.bindPattern(armEnv, arm.Pattern, scrutType)

		if arm.Guard != nil {
			guardType, err := c.inferExpr(armEnv, arm.Guard, effects)
			if err != nil {
				return nil, err
			}

			if err := c.unify(guardType, Bool); err != nil {
				return nil, err
			}
		}

		bodyType, err := c.inferExpr(armEnv, arm.Body, effects)
		if err != nil {
			return nil, err
		}

		joined, err := c.joinBranches(result, bodyType)
		if err != nil {
			return nil, err
		}

		result = joined
	}

	return c.subst.Apply(result), nil
}

// bindPattern introduces every binding a pattern makes into env, treating
// scrutinee as the (possibly partially-known) type being destructured.
func (c *Checker) bindPattern(env *Env, pat parser.Pattern, scrutinee Type) {
	switch p := pat.(type) {
	case *parser.IdentPattern:
		env.DefineValue(p.Name, scrutinee)
	case *parser.WildcardPattern, *parser.LiteralPattern, *parser.RangePattern:
		// no bindings
	case *parser.StructPattern:
		for _, f := range p.Fields {
			c.bindPattern(env, f.Pattern, c.freshVar())
		}
	case *parser.TuplePattern:
		for _, el := range p.Elements {
			c.bindPattern(env, el, c.freshVar())
		}
	case *parser.TupleVariantPattern:
		for _, el := range p.Elements {
			c.bindPattern(env, el, c.freshVar())
		}
	case *parser.ArrayPattern:
		for _, el := range p.Elements {
			c.bindPattern(env, el, c.freshVar())
		}
	case *parser.SlicePattern:
		for _, el := range p.Elements {
			c.bindPattern(env, el, c.freshVar())
		}
	case *parser.OrPattern:
		for _, alt := range p.Alternatives {
			c.bindPattern(env, alt, scrutinee)
		}
	}
}
