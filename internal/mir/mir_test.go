package mir

import (
	"testing"

	"github.com/zulon-lang/zulon/internal/hir"
	"github.com/zulon-lang/zulon/internal/lexer"
	"github.com/zulon-lang/zulon/internal/parser"
	"github.com/zulon-lang/zulon/internal/typechecker"
)

func lowerSrc(t *testing.T, src string) *Module {
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

	prog := hir.NewLowerer(c.Captures).Lower(crate)

	return NewLowerer().Lower(prog)
}

func findFn(mod *Module, name string) *Function {
	for _, fn := range mod.Functions {
		if fn.Name == name {
			return fn
		}
	}

	return nil
}

func lastBlock(fn *Function) *BasicBlock {
	return fn.Blocks[len(fn.Blocks)-1]
}

func TestLowerArithmeticIntoSingleBlock(t *testing.T) {
	mod := lowerSrc(t, `
fn add(a: i32, b: i32) -> i32 {
	a + b
}
`)

	fn := findFn(mod, "add")
	if fn == nil {
		t.Fatalf("expected function 'add'")
	}

	if len(fn.Blocks) != 1 {
		t.Fatalf("expected a single block for a straight-line body, got %d", len(fn.Blocks))
	}

	bb := fn.Blocks[0]

	ret, ok := bb.Term.(Return)
	if !ok {
		t.Fatalf("expected a Return terminator, got %#v", bb.Term)
	}

	if ret.Value == nil {
		t.Fatalf("expected a non-nil return value")
	}

	foundBinOp := false

	for _, in := range bb.Instrs {
		if _, ok := in.(BinaryOp); ok {
			foundBinOp = true
		}
	}

	if !foundBinOp {
		t.Fatalf("expected a BinaryOp instruction lowering a + b")
	}
}

func TestLowerIfProducesThenElseJoinBlocks(t *testing.T) {
	mod := lowerSrc(t, `
fn pick(cond: bool) -> i32 {
	if cond {
		1
	} else {
		2
	}
}
`)

	fn := findFn(mod, "pick")
	if fn == nil {
		t.Fatalf("expected function 'pick'")
	}

	// entry, then, else, join
	if len(fn.Blocks) != 4 {
		t.Fatalf("expected 4 blocks (entry/then/else/join), got %d", len(fn.Blocks))
	}

	entry := fn.Blocks[0]

	ifTerm, ok := entry.Term.(If)
	if !ok {
		t.Fatalf("expected entry block to end in If, got %#v", entry.Term)
	}

	join := fn.Block(func() BlockID {
		// the join block is whichever block the then/else blocks Goto into
		then := fn.Block(ifTerm.Then)

		g, ok := then.Term.(Goto)
		if !ok {
			t.Fatalf("expected then-block to end in Goto, got %#v", then.Term)
		}

		return g.Target
	}())

	if join == nil {
		t.Fatalf("expected to find the join block")
	}

	foundMove := false

	for _, in := range join.Instrs {
		if _, ok := in.(Move); ok {
			foundMove = true
		}
	}

	if !foundMove {
		t.Fatalf("expected the join block to contain the if-join placeholder Move")
	}

	if _, ok := join.Term.(Return); !ok {
		t.Fatalf("expected the join block to end in Return, got %#v", join.Term)
	}
}

func TestLowerWhileLoopStructure(t *testing.T) {
	mod := lowerSrc(t, `
fn countdown(n: i32, cond: bool) -> i32 {
	let mut x = n;
	while cond {
		x = 0;
	}
	x
}
`)

	fn := findFn(mod, "countdown")
	if fn == nil {
		t.Fatalf("expected function 'countdown'")
	}

	var header *BasicBlock

	for _, bb := range fn.Blocks {
		if _, ok := bb.Term.(If); ok {
			header = bb
		}
	}

	if header == nil {
		t.Fatalf("expected a header block ending in If")
	}

	ifTerm := header.Term.(If)

	body := fn.Block(ifTerm.Then)
	if body == nil {
		t.Fatalf("expected a body block")
	}

	if g, ok := body.Term.(Goto); !ok || g.Target != header.ID {
		t.Fatalf("expected the loop body to Goto back to the header, got %#v", body.Term)
	}
}

func TestLowerLoopExitIsUnreachable(t *testing.T) {
	mod := lowerSrc(t, `
fn spin() -> i32 {
	loop {
		break;
	}
}
`)

	fn := findFn(mod, "spin")
	if fn == nil {
		t.Fatalf("expected function 'spin'")
	}

	unreachableCount := 0

	for _, bb := range fn.Blocks {
		if _, ok := bb.Term.(Unreachable); ok {
			unreachableCount++
		}
	}

	if unreachableCount == 0 {
		t.Fatalf("expected at least one Unreachable terminator (loop exit and/or break)")
	}
}

func TestLowerTryChecksDiscriminant(t *testing.T) {
	mod := lowerSrc(t, `
fn mayFail() -> i32 | ParseError {
	throw ParseError {}
}

fn caller() -> i32 | ParseError {
	let v = mayFail()?;
	v
}
`)

	fn := findFn(mod, "caller")
	if fn == nil {
		t.Fatalf("expected function 'caller'")
	}

	var sawFieldAccessDiscriminant bool

	var sawThrow bool

	for _, bb := range fn.Blocks {
		for _, in := range bb.Instrs {
			if fa, ok := in.(FieldAccess); ok && fa.Field == "discriminant" {
				sawFieldAccessDiscriminant = true
			}
		}

		if _, ok := bb.Term.(Throw); ok {
			sawThrow = true
		}
	}

	if !sawFieldAccessDiscriminant {
		t.Fatalf("expected `?` to read the Outcome's discriminant field")
	}

	if !sawThrow {
		t.Fatalf("expected `?`'s error branch to lower to a Throw terminator")
	}
}

func TestLowerThrowIsDistinctFromReturn(t *testing.T) {
	mod := lowerSrc(t, `
fn fails() -> i32 | ParseError {
	throw ParseError {}
}
`)

	fn := findFn(mod, "fails")
	if fn == nil {
		t.Fatalf("expected function 'fails'")
	}

	found := false

	for _, bb := range fn.Blocks {
		if _, ok := bb.Term.(Throw); ok {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected a Throw terminator for the throw statement")
	}
}

func TestLowerMatchChainsArmsWithImplicitDefault(t *testing.T) {
	mod := lowerSrc(t, `
enum Color { Red, Green, Blue }

fn code(c: Color) -> i32 {
	match c {
		Color::Red => 1,
		Color::Green => 2,
	}
}
`)

	fn := findFn(mod, "code")
	if fn == nil {
		t.Fatalf("expected function 'code'")
	}

	ifCount := 0

	discCount := 0

	for _, bb := range fn.Blocks {
		if _, ok := bb.Term.(If); ok {
			ifCount++
		}

		for _, in := range bb.Instrs {
			if fa, ok := in.(FieldAccess); ok && fa.Field == "discriminant" {
				discCount++
			}
		}
	}

	// Red and Green arms each test the discriminant and branch; the
	// synthesized wildcard default arm does not since it always matches.
	if discCount != 2 {
		t.Fatalf("expected 2 discriminant tests (Red, Green), got %d", discCount)
	}

	if ifCount == 0 {
		t.Fatalf("expected at least one If terminator chaining match arms")
	}
}

func TestLowerClosureEmittedAsSeparateFunction(t *testing.T) {
	mod := lowerSrc(t, `
fn makeCounter() -> i32 {
	let mut count = 0;
	let increment = || {
		count = count + 1;
	};
	count
}
`)

	if findFn(mod, "makeCounter") == nil {
		t.Fatalf("expected function 'makeCounter'")
	}

	foundClosure := false

	for _, fn := range mod.Functions {
		if fn.Name != "makeCounter" && len(fn.Params) > 0 && fn.Params[0] == "count" {
			foundClosure = true
		}
	}

	if !foundClosure {
		t.Fatalf("expected a separate lowered function for the closure, capturing 'count' as its first param")
	}

	outer := findFn(mod, "makeCounter")

	foundMakeCall := false

	for _, bb := range outer.Blocks {
		for _, in := range bb.Instrs {
			if c, ok := in.(Call); ok && c.Callee != "" && len(c.Callee) > len("closure.make.") && c.Callee[:len("closure.make.")] == "closure.make." {
				foundMakeCall = true
			}
		}
	}

	if !foundMakeCall {
		t.Fatalf("expected the outer function to call closure.make.<name> to construct the closure")
	}
}

func TestLowerDeferFlushedBeforeReturn(t *testing.T) {
	mod := lowerSrc(t, `
extern fn close() -> i32;

fn cleanup() -> i32 {
	defer close();
	1
}
`)

	fn := findFn(mod, "cleanup")
	if fn == nil {
		t.Fatalf("expected function 'cleanup'")
	}

	bb := lastBlock(fn)

	foundCall := false

	for _, in := range bb.Instrs {
		if c, ok := in.(Call); ok && c.Callee == "close" {
			foundCall = true
		}
	}

	if !foundCall {
		t.Fatalf("expected the deferred close() call to be emitted before the return")
	}

	if _, ok := bb.Term.(Return); !ok {
		t.Fatalf("expected the block to still end in Return after flushing defers")
	}
}

func TestLowerExternCallMarkedExternal(t *testing.T) {
	mod := lowerSrc(t, `
extern fn puts(s: str) -> i32;

fn greet() -> i32 {
	puts("hi")
}
`)

	fn := findFn(mod, "greet")
	if fn == nil {
		t.Fatalf("expected function 'greet'")
	}

	foundExternalCall := false

	for _, bb := range fn.Blocks {
		for _, in := range bb.Instrs {
			if c, ok := in.(Call); ok && c.Callee == "puts" {
				if !c.External {
					t.Fatalf("expected the call to puts to be marked External")
				}

				foundExternalCall = true
			}
		}
	}

	if !foundExternalCall {
		t.Fatalf("expected a Call instruction invoking puts")
	}

	found := false

	for _, name := range fn.Externals {
		if name == "puts" {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected 'puts' to be recorded in fn.Externals, got %v", fn.Externals)
	}
}

func TestTransformAsyncInsertsStateSwitch(t *testing.T) {
	mod := lowerSrc(t, `
extern fn ready() -> i32;
extern fn await(x: i32) -> i32;

#[async]
fn fetch() -> i32 {
	let v = await(ready());
	v
}
`)

	fn := findFn(mod, "fetch")
	if fn == nil {
		t.Fatalf("expected function 'fetch'")
	}

	if !fn.IsAsync {
		t.Fatalf("expected fn.IsAsync to be true")
	}

	if len(fn.Params) == 0 || fn.Params[0] != "__state" {
		t.Fatalf("expected __state to be prepended as the first parameter, got %v", fn.Params)
	}

	entry := fn.Blocks[0]

	sw, ok := entry.Term.(Switch)
	if !ok {
		t.Fatalf("expected the entry block to end in a Switch on __state, got %#v", entry.Term)
	}

	if _, ok := sw.Cases[0]; !ok {
		t.Fatalf("expected case 0 to dispatch to the original entry block")
	}

	if len(sw.Cases) < 2 {
		t.Fatalf("expected at least one resume-block case beyond 0, got %d cases", len(sw.Cases))
	}

	trap := fn.Block(sw.Default)
	if trap == nil {
		t.Fatalf("expected a default trap block")
	}

	if _, ok := trap.Term.(Unreachable); !ok {
		t.Fatalf("expected the default case to be Unreachable, got %#v", trap.Term)
	}
}

func TestTransformAsyncNoopWithoutAwait(t *testing.T) {
	mod := lowerSrc(t, `
#[async]
fn noop() -> i32 {
	1
}
`)

	fn := findFn(mod, "noop")
	if fn == nil {
		t.Fatalf("expected function 'noop'")
	}

	for _, bb := range fn.Blocks {
		if _, ok := bb.Term.(Switch); ok {
			t.Fatalf("expected no state-switch when the body has no suspension point")
		}
	}
}

func TestCompleteCFGFillsMissingTerminators(t *testing.T) {
	fn := &Function{
		Blocks: []*BasicBlock{
			{ID: 0, Instrs: []Instruction{Move{Dst: 5, From: TempPlace{ID: 1}}}},
			{ID: 1},
		},
	}

	CompleteCFG(fn)

	ret, ok := fn.Blocks[0].Term.(Return)
	if !ok {
		t.Fatalf("expected block 0 to be completed with Return, got %#v", fn.Blocks[0].Term)
	}

	po, ok := ret.Value.(PlaceOperand)
	if !ok {
		t.Fatalf("expected the Return value to be a PlaceOperand, got %#v", ret.Value)
	}

	tp, ok := po.Place.(TempPlace)
	if !ok || tp.ID != 5 {
		t.Fatalf("expected Return to use the pending-phi Move's dst temp 5, got %#v", po.Place)
	}

	if _, ok := fn.Blocks[1].Term.(Unreachable); !ok {
		t.Fatalf("expected block 1 (no pending Move) to fall back to Unreachable, got %#v", fn.Blocks[1].Term)
	}
}

func TestLowerCarriesStructFieldsOntoModule(t *testing.T) {
	mod := lowerSrc(t, `
struct Point {
	x: i32,
	y: i32,
}

fn origin() -> Point {
	Point { x: 0, y: 0 }
}
`)

	if len(mod.Structs) != 1 {
		t.Fatalf("expected 1 struct declaration, got %d", len(mod.Structs))
	}

	s := mod.Structs[0]
	if s.Name != "Point" {
		t.Fatalf("expected struct name Point, got %q", s.Name)
	}

	if len(s.Fields) != 2 || s.Fields[0].Name != "x" || s.Fields[1].Name != "y" {
		t.Fatalf("expected fields x, y in declaration order, got %#v", s.Fields)
	}
}

func TestLowerCarriesEnumVariantsOntoModule(t *testing.T) {
	mod := lowerSrc(t, `
enum Color { Red, Green, Blue }

fn code(c: Color) -> i32 {
	match c {
		Color::Red => 1,
		Color::Green => 2,
	}
}
`)

	if len(mod.Enums) != 1 {
		t.Fatalf("expected 1 enum declaration, got %d", len(mod.Enums))
	}

	e := mod.Enums[0]
	if e.Name != "Color" {
		t.Fatalf("expected enum name Color, got %q", e.Name)
	}

	if len(e.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(e.Variants))
	}

	if e.Variants[0].Name != "Red" || e.Variants[2].Name != "Blue" {
		t.Fatalf("expected variants in declaration order, got %#v", e.Variants)
	}
}

func TestModuleStringDoesNotPanic(t *testing.T) {
	mod := lowerSrc(t, `
fn add(a: i32, b: i32) -> i32 {
	a + b
}
`)

	if mod.String() == "" {
		t.Fatalf("expected a non-empty module dump")
	}
}
