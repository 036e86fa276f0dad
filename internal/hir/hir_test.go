package hir

import (
	"testing"

	"github.com/zulon-lang/zulon/internal/lexer"
	"github.com/zulon-lang/zulon/internal/parser"
	"github.com/zulon-lang/zulon/internal/typechecker"
)

func lowerSrc(t *testing.T, src string) *Program {
	t.Helper()

	l := lexer.New(src)

	toks, errs := l.Tokenize()
	if len(errs) != 0 {
		t.Fatalf("unexpected lex errors: %v", errs)
	}

	crate, err := parser.New(lexer.Filter(toks), "test.zl").ParseCrate()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	c := typechecker.New()
	if errs := c.Check(crate); len(errs) != 0 {
		t.Fatalf("unexpected check errors: %v", errs)
	}

	return NewLowerer(c.Captures).Lower(crate)
}

func findFunction(prog *Program, name string) *Function {
	for _, fn := range prog.Functions {
		if fn.Name == name {
			return fn
		}
	}

	return nil
}

func TestLowerSimpleFunction(t *testing.T) {
	prog := lowerSrc(t, `
fn add(a: i32, b: i32) -> i32 {
	a + b
}
`)

	fn := findFunction(prog, "add")
	if fn == nil {
		t.Fatalf("expected function 'add' in lowered program")
	}

	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}

	if fn.Body == nil || fn.Body.Trailing == nil {
		t.Fatalf("expected a trailing expression in the body")
	}

	if _, ok := fn.Body.Trailing.(*BinaryExpr); !ok {
		t.Fatalf("expected trailing expression to be a BinaryExpr, got %T", fn.Body.Trailing)
	}
}

func TestLowerErrorUnionBecomesOutcome(t *testing.T) {
	prog := lowerSrc(t, `
fn parse(s: str) -> i32 | ParseError {
	throw ParseError {}
}
`)

	fn := findFunction(prog, "parse")
	if fn == nil {
		t.Fatalf("expected function 'parse'")
	}

	if fn.GetType().Kind != TyStruct || fn.GetType().Name != "Outcome" {
		t.Fatalf("expected function result type Outcome<...>, got %v", fn.GetType())
	}

	if fn.ErrorType == nil || fn.ErrorType.Name != "ParseError" {
		t.Fatalf("expected ErrorType ParseError, got %v", fn.ErrorType)
	}
}

func TestLowerAssertEqFallsBackToIf(t *testing.T) {
	prog := lowerSrc(t, `
fn check(a: i32, b: i32) -> i32 {
	assert_eq!(a, b);
	0
}
`)

	fn := findFunction(prog, "check")
	if fn == nil {
		t.Fatalf("expected function 'check'")
	}

	if len(fn.Body.Statements) == 0 {
		t.Fatalf("expected at least one statement")
	}

	stmt, ok := fn.Body.Statements[0].(*ExprStmt)
	if !ok {
		t.Fatalf("expected an ExprStmt, got %T", fn.Body.Statements[0])
	}

	ifExpr, ok := stmt.Expr.(*IfExpr)
	if !ok {
		t.Fatalf("expected assert_eq! to lower to an IfExpr, got %T", stmt.Expr)
	}

	cond, ok := ifExpr.Cond.(*BinaryExpr)
	if !ok || cond.Op != OpNe {
		t.Fatalf("expected the guard condition to be a != comparison, got %#v", ifExpr.Cond)
	}
}

func TestLowerClosureCapturesAttached(t *testing.T) {
	prog := lowerSrc(t, `
fn makeCounter() -> i32 {
	let mut count = 0;
	let increment = || {
		count = count + 1;
	};
	count
}
`)

	fn := findFunction(prog, "makeCounter")
	if fn == nil {
		t.Fatalf("expected function 'makeCounter'")
	}

	var closure *ClosureExpr

	for _, stmt := range fn.Body.Statements {
		let, ok := stmt.(*LetStmt)
		if !ok || let.Name != "increment" {
			continue
		}

		closure, _ = let.Value.(*ClosureExpr)
	}

	if closure == nil {
		t.Fatalf("expected to find the 'increment' closure")
	}

	if len(closure.Captures) != 1 || closure.Captures[0].Name != "count" {
		t.Fatalf("expected a single capture of 'count', got %#v", closure.Captures)
	}

	if closure.Captures[0].Mode != MutableRef {
		t.Fatalf("expected count to be captured MutableRef, got %v", closure.Captures[0].Mode)
	}
}

func TestLowerMatchWithoutWildcardGetsDefaultArm(t *testing.T) {
	prog := lowerSrc(t, `
enum Color { Red, Green, Blue }

fn name(c: Color) -> i32 {
	match c {
		Color::Red => 0,
		Color::Green => 1,
	}
}
`)

	fn := findFunction(prog, "name")
	if fn == nil {
		t.Fatalf("expected function 'name'")
	}

	m, ok := fn.Body.Trailing.(*MatchExpr)
	if !ok {
		t.Fatalf("expected trailing expression to be a MatchExpr, got %T", fn.Body.Trailing)
	}

	if m.HasDefault {
		t.Fatalf("expected HasDefault to be false for a match with no wildcard arm")
	}

	if len(m.Arms) != 3 {
		t.Fatalf("expected an implicit default arm to be appended, got %d arms", len(m.Arms))
	}

	last := m.Arms[len(m.Arms)-1]
	if _, ok := last.Pattern.(*WildcardPattern); !ok {
		t.Fatalf("expected the appended arm's pattern to be a wildcard, got %T", last.Pattern)
	}
}

func TestLowerMatchWithWildcardHasDefault(t *testing.T) {
	prog := lowerSrc(t, `
fn classify(n: i32) -> i32 {
	match n {
		0 => 10,
		_ => 20,
	}
}
`)

	fn := findFunction(prog, "classify")
	m := fn.Body.Trailing.(*MatchExpr)

	if !m.HasDefault {
		t.Fatalf("expected HasDefault to be true when a wildcard arm is present")
	}

	if len(m.Arms) != 2 {
		t.Fatalf("expected no arm to be appended, got %d arms", len(m.Arms))
	}
}

func TestLowerDeferExtractedFromBlock(t *testing.T) {
	prog := lowerSrc(t, `
extern fn close() -> i32;

fn cleanup() -> i32 {
	defer close();
	1
}
`)

	fn := findFunction(prog, "cleanup")

	if len(fn.Body.Statements) != 0 {
		t.Fatalf("expected the defer statement to be removed from Statements, got %d", len(fn.Body.Statements))
	}

	if len(fn.Body.Defers) != 1 {
		t.Fatalf("expected exactly one deferred expression, got %d", len(fn.Body.Defers))
	}

	if _, ok := fn.Body.Defers[0].(*CallExpr); !ok {
		t.Fatalf("expected the deferred expression to be a CallExpr, got %T", fn.Body.Defers[0])
	}
}

func TestLowerCompoundAssignDesugared(t *testing.T) {
	prog := lowerSrc(t, `
fn bump() -> i32 {
	let mut x = 0;
	x += 1;
	x
}
`)

	fn := findFunction(prog, "bump")

	var assign *AssignExpr

	for _, stmt := range fn.Body.Statements {
		if es, ok := stmt.(*ExprStmt); ok {
			if a, ok := es.Expr.(*AssignExpr); ok {
				assign = a
			}
		}
	}

	if assign == nil {
		t.Fatalf("expected to find the desugared assignment")
	}

	bin, ok := assign.Value.(*BinaryExpr)
	if !ok || bin.Op != OpAdd {
		t.Fatalf("expected x += 1 to desugar to x = x + 1, got %#v", assign.Value)
	}
}

func TestLowerNodeIDsAreMonotonicAndUnique(t *testing.T) {
	prog := lowerSrc(t, `
fn add(a: i32, b: i32) -> i32 {
	a + b
}
`)

	fn := findFunction(prog, "add")

	seen := map[NodeID]bool{}
	ids := []NodeID{fn.HIRID(), fn.Body.HIRID(), fn.Body.Trailing.HIRID()}

	for _, id := range ids {
		if id == 0 {
			t.Fatalf("expected a nonzero NodeID")
		}

		if seen[id] {
			t.Fatalf("expected unique NodeIDs, got a duplicate: %d", id)
		}

		seen[id] = true
	}
}
