// Package main provides the entry point for the Zulon compiler.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/zulon-lang/zulon/internal/driver"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		output      = flag.String("o", "", "output .ll path (default stdout)")
		emitTests   = flag.Bool("emit-tests", false, "discover #[test] functions and emit <source>.test.json and <source>.test_main.zl")
		noColor     = flag.Bool("no-color", false, "disable colorized diagnostics")
		dumpAST     = flag.Bool("dump-ast", false, "dump the parsed AST")
		dumpHIR     = flag.Bool("dump-hir", false, "dump the lowered HIR")
		dumpMIR     = flag.Bool("dump-mir", false, "dump the lowered MIR")
		dumpLIR     = flag.Bool("dump-lir", false, "dump the lowered LIR")
	)

	flag.Usage = showUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("zulonc %s (%s)\n", version, commit)
		return
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one input file")
		showUsage()
		os.Exit(1)
	}

	opts := driver.Options{
		Input:     args[0],
		Output:    *output,
		EmitTests: *emitTests,
		NoColor:   *noColor,
		DumpAST:   *dumpAST,
		DumpHIR:   *dumpHIR,
		DumpMIR:   *dumpMIR,
		DumpLIR:   *dumpLIR,
	}

	if err := driver.Run(opts); err != nil {
		log.Fatalf("compilation failed: %v", err)
	}
}

func showUsage() {
	fmt.Println("zulonc - the Zulon compiler")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    zulonc [OPTIONS] <INPUT_FILE>")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    -version        Show version information")
	fmt.Println("    -o PATH         Write emitted LLVM IR to PATH (default stdout)")
	fmt.Println("    -emit-tests     Emit <source>.test.json and <source>.test_main.zl")
	fmt.Println("    -no-color       Disable colorized diagnostics")
	fmt.Println("    -dump-ast       Dump the parsed AST")
	fmt.Println("    -dump-hir       Dump the lowered HIR")
	fmt.Println("    -dump-mir       Dump the lowered MIR")
	fmt.Println("    -dump-lir       Dump the lowered LIR")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("    zulonc hello.zl")
	fmt.Println("    zulonc -o hello.ll -emit-tests hello.zl")
}
