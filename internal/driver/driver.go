// Package driver orchestrates the pipeline: macro expansion, lexing,
// parsing, type checking, HIR/MIR/LIR lowering, and LLVM IR emission
// (spec.md sections 4.1-4.9). It is the one in-scope sliver of the
// otherwise out-of-scope compiler driver (spec.md section 1).
package driver

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zulon-lang/zulon/internal/codegen/llvmgen"
	"github.com/zulon-lang/zulon/internal/diagnostics"
	"github.com/zulon-lang/zulon/internal/hir"
	"github.com/zulon-lang/zulon/internal/lexer"
	"github.com/zulon-lang/zulon/internal/lir"
	"github.com/zulon-lang/zulon/internal/macro"
	"github.com/zulon-lang/zulon/internal/mir"
	"github.com/zulon-lang/zulon/internal/parser"
	"github.com/zulon-lang/zulon/internal/position"
	"github.com/zulon-lang/zulon/internal/testdiscovery"
	"github.com/zulon-lang/zulon/internal/typechecker"
)

var logger = log.New(os.Stderr, "zulonc: ", log.Ltime)

// Options configures a single compilation run.
type Options struct {
	Input     string
	Output    string // "" means stdout
	EmitTests bool
	NoColor   bool
	DumpAST   bool
	DumpHIR   bool
	DumpMIR   bool
	DumpLIR   bool
}

// Run executes the full pipeline for one source file. It renders every
// diagnostic it collects to stderr before returning the first stage
// error it hit; callers translate a non-nil return into a non-zero exit
// code (spec.md section 6).
func Run(opts Options) error {
	if opts.NoColor {
		os.Setenv("NO_COLOR", "1")
	}

	raw, err := os.ReadFile(opts.Input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", opts.Input, err)
	}

	start := time.Now()

	src := macro.New().Expand(string(raw))
	logger.Printf("macro: expanded %s (%v)", opts.Input, time.Since(start))

	sourceFile := position.NewSourceFile(opts.Input, src)
	renderer := diagnostics.NewRenderer(sourceFile)

	crate, err := lexAndParse(opts.Input, src, renderer)
	if err != nil {
		return err
	}

	if opts.DumpAST {
		fmt.Printf("%+v\n", crate)
	}

	checker := typechecker.New()

	stageStart := time.Now()

	if errs := checker.Check(crate); len(errs) != 0 {
		for _, e := range errs {
			renderer.Render(os.Stderr, diagnostics.Diagnostic{
				Severity: diagnostics.SeverityError,
				Stage:    diagnostics.StageType,
				Code:     e.Kind.String(),
				Message:  e.Message,
				Span:     e.Span,
			})
		}

		return fmt.Errorf("type checking failed with %d error(s)", len(errs))
	}

	logger.Printf("typecheck: ok (%v)", time.Since(stageStart))

	hirProg := hir.NewLowerer(checker.Captures).Lower(crate)
	if opts.DumpHIR {
		fmt.Printf("%+v\n", hirProg)
	}

	mirMod := mir.NewLowerer().Lower(hirProg)
	logger.Printf("mir: lowered %d function(s)", len(mirMod.Functions))

	if opts.DumpMIR {
		fmt.Println(mirMod.String())
	}

	lirMod := lir.NewLowerer().Lower(mirMod)
	lirMod.Name = moduleName(opts.Input)

	if opts.DumpLIR {
		fmt.Println(lirMod.String())
	}

	ir := llvmgen.Emit(lirMod)

	if err := writeOutput(opts.Output, ir); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if opts.EmitTests {
		if err := emitTestArtifacts(opts.Input, crate); err != nil {
			return fmt.Errorf("emitting test artifacts: %w", err)
		}
	}

	logger.Printf("done: %s (%v)", opts.Input, time.Since(start))

	return nil
}

func lexAndParse(filename, src string, renderer *diagnostics.Renderer) (*parser.Crate, error) {
	l := lexer.NewWithFilename(src, filename)

	toks, lexErrs := l.Tokenize()
	if len(lexErrs) != 0 {
		for _, e := range lexErrs {
			renderer.Render(os.Stderr, diagnostics.Diagnostic{
				Severity: diagnostics.SeverityError,
				Stage:    diagnostics.StageLex,
				Code:     e.Kind.String(),
				Message:  e.Message,
				Span:     e.Span,
			})
		}

		return nil, fmt.Errorf("lexing failed with %d error(s)", len(lexErrs))
	}

	logger.Printf("lex: %d tokens", len(toks))

	crate, err := parser.New(lexer.Filter(toks), filename).ParseCrate()
	if err != nil {
		if pe, ok := err.(*parser.Error); ok {
			renderer.Render(os.Stderr, diagnostics.Diagnostic{
				Severity: diagnostics.SeverityError,
				Stage:    diagnostics.StageParse,
				Message:  pe.Error(),
				Span:     pe.Span,
			})
		} else {
			fmt.Fprintln(os.Stderr, err)
		}

		return nil, fmt.Errorf("parsing failed: %w", err)
	}

	return crate, nil
}

func emitTestArtifacts(sourcePath string, crate *parser.Crate) error {
	cases := testdiscovery.Discover(crate)

	meta, err := testdiscovery.Metadata(cases)
	if err != nil {
		return fmt.Errorf("marshaling test metadata: %w", err)
	}

	if err := os.WriteFile(testdiscovery.MetadataPath(sourcePath), meta, 0o644); err != nil {
		return err
	}

	main := testdiscovery.SyntheticMain(cases)

	if err := os.WriteFile(testdiscovery.MainPath(sourcePath), []byte(main), 0o644); err != nil {
		return err
	}

	logger.Printf("testdiscovery: %d test(s) discovered in %s", len(cases), sourcePath)

	return nil
}

func writeOutput(path, ir string) error {
	if path == "" {
		_, err := fmt.Println(ir)

		return err
	}

	return os.WriteFile(path, []byte(ir), 0o644)
}

func moduleName(sourcePath string) string {
	base := filepath.Base(sourcePath)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
