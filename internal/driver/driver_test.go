package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	return path
}

func TestRunCompilesToLLVMFile(t *testing.T) {
	dir := t.TempDir()

	src := writeTemp(t, dir, "main.zl", `
fn main() -> i32 {
	42
}
`)

	out := filepath.Join(dir, "main.ll")

	if err := Run(Options{Input: src, Output: out}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected an output file: %v", err)
	}

	if !strings.Contains(string(data), "define i32 @main()") {
		t.Fatalf("expected a main definition in the emitted IR, got:\n%s", data)
	}
}

func TestRunReportsLexErrors(t *testing.T) {
	dir := t.TempDir()

	src := writeTemp(t, dir, "bad.zl", "fn main() -> i32 { `unterminated }")

	err := Run(Options{Input: src, Output: filepath.Join(dir, "bad.ll")})
	if err == nil {
		t.Fatalf("expected a lexing error")
	}
}

func TestRunReportsParseErrors(t *testing.T) {
	dir := t.TempDir()

	src := writeTemp(t, dir, "bad.zl", "fn main( -> i32 { 0 }")

	err := Run(Options{Input: src, Output: filepath.Join(dir, "bad.ll")})
	if err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestRunReportsTypeErrors(t *testing.T) {
	dir := t.TempDir()

	src := writeTemp(t, dir, "bad.zl", `
fn main() -> i32 {
	"not an int"
}
`)

	err := Run(Options{Input: src, Output: filepath.Join(dir, "bad.ll")})
	if err == nil {
		t.Fatalf("expected a type error")
	}
}

func TestRunEmitTestsWritesMetadataAndSyntheticMain(t *testing.T) {
	dir := t.TempDir()

	src := writeTemp(t, dir, "suite.zl", `
#[test]
fn test_add() -> i32 | str {
	0
}
`)

	if err := Run(Options{
		Input:     src,
		Output:    filepath.Join(dir, "suite.ll"),
		EmitTests: true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meta, err := os.ReadFile(filepath.Join(dir, "suite.test.json"))
	if err != nil {
		t.Fatalf("expected test metadata to be written: %v", err)
	}

	if !strings.Contains(string(meta), "test_add") {
		t.Fatalf("expected test_add in metadata, got:\n%s", meta)
	}

	main, err := os.ReadFile(filepath.Join(dir, "suite.test_main.zl"))
	if err != nil {
		t.Fatalf("expected a synthetic test main to be written: %v", err)
	}

	if !strings.Contains(string(main), "test_add()?;") {
		t.Fatalf("expected the synthetic main to call test_add, got:\n%s", main)
	}
}

func TestModuleNameStripsDirectoryAndExtension(t *testing.T) {
	if got := moduleName("/a/b/hello.zl"); got != "hello" {
		t.Fatalf("moduleName = %q", got)
	}
}
