package testdiscovery

import (
	"strings"
	"testing"

	"github.com/zulon-lang/zulon/internal/lexer"
	"github.com/zulon-lang/zulon/internal/parser"
)

func parseSrc(t *testing.T, src string) *parser.Crate {
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

	return crate
}

func TestDiscoverFindsAttributedFunctionsOnly(t *testing.T) {
	crate := parseSrc(t, `
#[test]
fn test_add() -> i32 | str {
	0
}

fn helper() -> i32 {
	1
}

#[test]
fn test_sub() -> i32 | str {
	0
}
`)

	cases := Discover(crate)

	if len(cases) != 2 {
		t.Fatalf("expected 2 test cases, got %d: %+v", len(cases), cases)
	}

	if cases[0].Name != "test_add" || cases[1].Name != "test_sub" {
		t.Fatalf("expected discovery order test_add, test_sub, got %+v", cases)
	}
}

func TestDiscoverRecursesIntoModules(t *testing.T) {
	crate := parseSrc(t, `
mod suite {
	#[test]
	fn test_nested() -> i32 | str {
		0
	}
}
`)

	cases := Discover(crate)

	if len(cases) != 1 || cases[0].Name != "test_nested" {
		t.Fatalf("expected to find test_nested inside the module, got %+v", cases)
	}
}

func TestDiscoverMarksIgnoredAttribute(t *testing.T) {
	crate := parseSrc(t, `
#[test(ignored = "true")]
fn test_flaky() -> i32 | str {
	0
}
`)

	cases := Discover(crate)

	if len(cases) != 1 {
		t.Fatalf("expected 1 test case, got %d", len(cases))
	}

	if !cases[0].Ignored {
		t.Fatalf("expected test_flaky to be marked ignored")
	}
}

func TestMetadataProducesJSONArray(t *testing.T) {
	out, err := Metadata([]Case{{Name: "test_add"}, {Name: "test_flaky", Ignored: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := string(out)

	if !strings.Contains(s, `"name": "test_add"`) {
		t.Fatalf("expected test_add's name in the metadata, got:\n%s", s)
	}

	if !strings.Contains(s, `"ignored": true`) {
		t.Fatalf("expected test_flaky's ignored flag in the metadata, got:\n%s", s)
	}
}

func TestMetadataOnNoCasesIsEmptyArray(t *testing.T) {
	out, err := Metadata(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.TrimSpace(string(out)) != "[]" {
		t.Fatalf("expected an empty JSON array, got %q", out)
	}
}

func TestSyntheticMainCallsEachNonIgnoredTest(t *testing.T) {
	src := SyntheticMain([]Case{
		{Name: "test_add"},
		{Name: "test_flaky", Ignored: true},
	})

	if !strings.Contains(src, "fn main() -> i32 | str {") {
		t.Fatalf("expected main's Outcome-returning signature, got:\n%s", src)
	}

	if !strings.Contains(src, "test_add()?;") {
		t.Fatalf("expected a call to test_add propagated with ?, got:\n%s", src)
	}

	if strings.Contains(src, "test_flaky()?;") {
		t.Fatalf("expected test_flaky to be skipped, not called, got:\n%s", src)
	}

	if !strings.Contains(src, "ignored: test_flaky") {
		t.Fatalf("expected test_flaky to be reported as ignored, got:\n%s", src)
	}
}

func TestPathHelpersStripZlExtension(t *testing.T) {
	if got := MetadataPath("foo/bar.zl"); got != "foo/bar.test.json" {
		t.Fatalf("MetadataPath = %q", got)
	}

	if got := MainPath("foo/bar.zl"); got != "foo/bar.test_main.zl" {
		t.Fatalf("MainPath = %q", got)
	}
}
