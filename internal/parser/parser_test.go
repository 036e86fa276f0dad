package parser

import (
	"testing"

	"github.com/zulon-lang/zulon/internal/lexer"
)

func parse(t *testing.T, src string) *Crate {
	t.Helper()

	l := lexer.New(src)

	toks, errs := l.Tokenize()
	if len(errs) != 0 {
		t.Fatalf("unexpected lex errors: %v", errs)
	}

	crate, err := New(lexer.Filter(toks), "test.zl").ParseCrate()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	return crate
}

func TestParseFunctionWithErrorUnionReturn(t *testing.T) {
	crate := parse(t, `
fn divide(a: i32, b: i32) -> i32 | DivError {
	if b == 0 {
		throw DivError::ZeroDivision;
	}
	a / b
}
`)

	if len(crate.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(crate.Items))
	}

	fn, ok := crate.Items[0].(*FunctionDecl)
	if !ok {
		t.Fatalf("item is %T, want *FunctionDecl", crate.Items[0])
	}

	if fn.Name != "divide" {
		t.Fatalf("fn.Name = %q", fn.Name)
	}

	if fn.ErrorType == nil {
		t.Fatalf("expected a declared error type")
	}

	if fn.Body == nil || fn.Body.Trailing == nil {
		t.Fatalf("expected a trailing expression in the function body")
	}
}

func TestParsePrecedenceClimbing(t *testing.T) {
	crate := parse(t, `fn f() { 1 + 2 * 3 == 7 && true; }`)

	fn := crate.Items[0].(*FunctionDecl)
	stmt := fn.Body.Statements[0].(*ExprStmt)

	and, ok := stmt.Expr.(*BinaryExpr)
	if !ok || and.Op != OpAnd {
		t.Fatalf("top-level operator = %#v, want &&", stmt.Expr)
	}

	eq, ok := and.Left.(*BinaryExpr)
	if !ok || eq.Op != OpEq {
		t.Fatalf("left of && = %#v, want ==", and.Left)
	}

	add, ok := eq.Left.(*BinaryExpr)
	if !ok || add.Op != OpAdd {
		t.Fatalf("left of == = %#v, want +", eq.Left)
	}

	mul, ok := add.Right.(*BinaryExpr)
	if !ok || mul.Op != OpMul {
		t.Fatalf("right of + = %#v, want *", add.Right)
	}
}

func TestParseIfElseIsExpression(t *testing.T) {
	crate := parse(t, `fn f() -> i32 { let x = if true { 1 } else { 2 }; x }`)

	fn := crate.Items[0].(*FunctionDecl)
	let := fn.Body.Statements[0].(*LetStmt)

	if _, ok := let.Value.(*IfExpr); !ok {
		t.Fatalf("let value = %#v, want *IfExpr", let.Value)
	}
}

func TestParseTryOperatorChaining(t *testing.T) {
	crate := parse(t, `fn f() -> i32 | E { g()?.h()? }`)

	fn := crate.Items[0].(*FunctionDecl)

	outer, ok := fn.Body.Trailing.(*TryExpr)
	if !ok {
		t.Fatalf("trailing = %#v, want outer *TryExpr", fn.Body.Trailing)
	}

	method, ok := outer.Value.(*MethodCallExpr)
	if !ok {
		t.Fatalf("outer.Value = %#v, want *MethodCallExpr", outer.Value)
	}

	if _, ok := method.Receiver.(*TryExpr); !ok {
		t.Fatalf("method.Receiver = %#v, want *TryExpr", method.Receiver)
	}
}

func TestParseStructLitSuppressedInCondition(t *testing.T) {
	crate := parse(t, `
struct Point { x: i32, y: i32 }
fn f(p: Point) -> i32 {
	if p.x == 1 {
		2
	} else {
		3
	}
}
`)

	fn := crate.Items[1].(*FunctionDecl)

	ifExpr, ok := fn.Body.Trailing.(*IfExpr)
	if !ok {
		t.Fatalf("trailing = %#v, want *IfExpr", fn.Body.Trailing)
	}

	if _, ok := ifExpr.Cond.(*BinaryExpr); !ok {
		t.Fatalf("cond = %#v, want *BinaryExpr", ifExpr.Cond)
	}
}

func TestParseStructLitAllowedInExprContext(t *testing.T) {
	crate := parse(t, `
struct Point { x: i32, y: i32 }
fn f() -> Point { Point { x: 1, y: 2 } }
`)

	fn := crate.Items[1].(*FunctionDecl)

	lit, ok := fn.Body.Trailing.(*StructLitExpr)
	if !ok {
		t.Fatalf("trailing = %#v, want *StructLitExpr", fn.Body.Trailing)
	}

	if lit.Name != "Point" || len(lit.Fields) != 2 {
		t.Fatalf("lit = %#v", lit)
	}
}

func TestParseMatchWithGuardAndOrPattern(t *testing.T) {
	crate := parse(t, `
fn f(x: i32) -> i32 {
	match x {
		0 | 1 => 10,
		n if n > 5 => 20,
		_ => 30,
	}
}
`)

	fn := crate.Items[0].(*FunctionDecl)
	m := fn.Body.Trailing.(*MatchExpr)

	if len(m.Arms) != 3 {
		t.Fatalf("got %d arms, want 3", len(m.Arms))
	}

	if _, ok := m.Arms[0].Pattern.(*OrPattern); !ok {
		t.Fatalf("arm[0].Pattern = %#v, want *OrPattern", m.Arms[0].Pattern)
	}

	if m.Arms[1].Guard == nil {
		t.Fatalf("arm[1] expected a guard")
	}

	if _, ok := m.Arms[2].Pattern.(*WildcardPattern); !ok {
		t.Fatalf("arm[2].Pattern = %#v, want *WildcardPattern", m.Arms[2].Pattern)
	}
}

func TestParseNestedGenericsClosingAngleSplit(t *testing.T) {
	// The trailing ">>" is lexed as a single Shr token (maximal munch);
	// the parser must split it into two generic-list closes.
	crate := parse(t, `fn f(x: Vec<Outcome<i32, E>>) {}`)

	fn := crate.Items[0].(*FunctionDecl)

	outer, ok := fn.Params[0].Type.(*SimpleType)
	if !ok || outer.Name != "Vec" || len(outer.Args) != 1 {
		t.Fatalf("param type = %#v", fn.Params[0].Type)
	}

	inner, ok := outer.Args[0].(*SimpleType)
	if !ok || inner.Name != "Outcome" || len(inner.Args) != 2 {
		t.Fatalf("outer.Args[0] = %#v, want *SimpleType(Outcome, 2 args)", outer.Args[0])
	}
}

func TestParseClosureExpr(t *testing.T) {
	crate := parse(t, `fn f() { let add = |a: i32, b: i32| -> i32 a + b; }`)

	fn := crate.Items[0].(*FunctionDecl)
	let := fn.Body.Statements[0].(*LetStmt)

	closure, ok := let.Value.(*ClosureExpr)
	if !ok {
		t.Fatalf("let value = %#v, want *ClosureExpr", let.Value)
	}

	if len(closure.Params) != 2 || closure.ReturnType == nil {
		t.Fatalf("closure = %#v", closure)
	}
}

func TestParseExternVariadicFunction(t *testing.T) {
	crate := parse(t, `extern fn printf(fmt: str, ...) -> i32;`)

	fn := crate.Items[0].(*FunctionDecl)
	if !fn.IsExtern || !fn.Variadic || fn.Body != nil {
		t.Fatalf("fn = %#v", fn)
	}
}

func TestParseTemplateStringInterpolation(t *testing.T) {
	crate := parse(t, "fn f(name: str) -> str { `hello ${name}!` }")

	fn := crate.Items[0].(*FunctionDecl)

	tmpl, ok := fn.Body.Trailing.(*TemplateStringExpr)
	if !ok {
		t.Fatalf("trailing = %#v, want *TemplateStringExpr", fn.Body.Trailing)
	}

	if len(tmpl.Parts) != 3 {
		t.Fatalf("got %d parts, want 3 (static, expr, static)", len(tmpl.Parts))
	}

	if !tmpl.Parts[1].IsExpr {
		t.Fatalf("parts[1] should be the interpolated expression")
	}
}

func TestParseFirstErrorAborts(t *testing.T) {
	l := lexer.New(`fn f( { }`)

	toks, errs := l.Tokenize()
	if len(errs) != 0 {
		t.Fatalf("unexpected lex errors: %v", errs)
	}

	_, err := New(lexer.Filter(toks), "test.zl").ParseCrate()
	if err == nil {
		t.Fatalf("expected a parse error")
	}
}
