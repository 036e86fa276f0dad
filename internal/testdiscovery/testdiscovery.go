// Package testdiscovery finds #[test]-annotated functions in a parsed
// crate and generates the two artifacts spec.md section 6 describes for
// them: a `<source>.test.json` metadata file and a `<source>.test_main.zl`
// synthetic entry point that invokes each discovered test.
package testdiscovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zulon-lang/zulon/internal/parser"
)

// Case is one discovered test: a function name plus whether it carries
// `#[test(ignored)]`.
type Case struct {
	Name    string `json:"name"`
	Ignored bool   `json:"ignored,omitempty"`
}

// Discover walks every top-level and nested-module declaration in crate,
// collecting one Case per function attributed #[test]. Methods on impl/
// trait blocks and effect operations are not test candidates; only free
// functions are.
func Discover(crate *parser.Crate) []Case {
	var cases []Case

	discoverItems(crate.Items, &cases)

	return cases
}

func discoverItems(items []parser.Declaration, out *[]Case) {
	for _, item := range items {
		switch d := item.(type) {
		case *parser.FunctionDecl:
			if c, ok := caseOf(d); ok {
				*out = append(*out, c)
			}
		case *parser.ModuleDecl:
			discoverItems(d.Items, out)
		}
	}
}

func caseOf(d *parser.FunctionDecl) (Case, bool) {
	for _, a := range d.Attributes {
		if a.Name != "test" {
			continue
		}

		c := Case{Name: d.Name}

		if v, ok := a.Args["ignored"]; ok {
			c.Ignored = v == "" || v == "true"
		}

		return c, true
	}

	return Case{}, false
}

// Metadata renders cases as the `<source>.test.json` array: one object
// per test, in discovery order.
func Metadata(cases []Case) ([]byte, error) {
	if cases == nil {
		cases = []Case{}
	}

	return json.MarshalIndent(cases, "", "  ")
}

// SyntheticMain renders the `<source>.test_main.zl` source: a main that
// calls every non-ignored test in discovery order and propagates the
// first failure as its own Outcome error, Rust-`fn main() -> Result<(),
// E>`-style, so the surrounding C runtime can translate it into a
// process exit code (spec.md section 6's "propagates an exit code").
// Ignored tests are skipped but still reported.
func SyntheticMain(cases []Case) string {
	var b strings.Builder

	b.WriteString("extern fn printf(fmt: str, ...) -> i32;\n\n")
	b.WriteString("fn main() -> i32 | str {\n")

	run, skip := 0, 0

	for _, c := range cases {
		if c.Ignored {
			skip++

			fmt.Fprintf(&b, "\tprintf(\"ignored: %s\\n\");\n", c.Name)

			continue
		}

		run++

		fmt.Fprintf(&b, "\tprintf(\"running: %s\\n\");\n", c.Name)
		fmt.Fprintf(&b, "\t%s()?;\n", c.Name)
	}

	fmt.Fprintf(&b, "\tprintf(\"%d passed, %d ignored\\n\");\n", run, skip)
	b.WriteString("\t0\n")
	b.WriteString("}\n")

	return b.String()
}

// MetadataPath and MainPath derive the two artifact paths from a source
// file path, stripping any ".zl" extension before appending the
// artifact suffix.
func MetadataPath(sourcePath string) string {
	return trimZl(sourcePath) + ".test.json"
}

func MainPath(sourcePath string) string {
	return trimZl(sourcePath) + ".test_main.zl"
}

func trimZl(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, ".zl")
}
