// Package llvmgen walks internal/lir and writes textual LLVM IR (spec.md
// section 4.9). No attempt is made to produce optimal IR: the contract is
// correctness-by-construction and readability, not instruction selection
// or register allocation quality.
package llvmgen

import (
	"fmt"
	"strings"

	"github.com/zulon-lang/zulon/internal/layout"
	"github.com/zulon-lang/zulon/internal/lir"
)

// externSig describes one of the implicit externs spec.md section 6 says
// every module auto-declares.
type externSig struct {
	name     string
	params   []string
	result   string
	variadic bool
}

var implicitExterns = []externSig{
	{"printf", []string{"i8*"}, "i32", true},
	{"scanf", []string{"i8*"}, "i32", true},
	{"string_concat", []string{"i8*", "i8*"}, "i8*", false},
	{"async_sleep", []string{"i32"}, "i32", false},
	{"async_file_read", []string{"i8*", "i8*", "i32"}, "i32", false},
	{"async_file_write", []string{"i8*", "i8*", "i32"}, "i32", false},
	{"async_tcp_connect", []string{"i8*", "i32"}, "i32", false},
	{"zulon_ref_inc", []string{"i8*"}, "void", false},
	{"zulon_ref_dec", []string{"i8*"}, "void", false},
}

// Emit walks mod and returns its textual LLVM IR.
func Emit(mod *lir.Module) string {
	e := &emitter{mod: mod}
	return e.run()
}

type emitter struct {
	mod *lir.Module
}

func (e *emitter) run() string {
	var b strings.Builder

	name := e.mod.Name
	if name == "" {
		name = "zulon"
	}

	fmt.Fprintf(&b, "; ModuleID = '%s'\n", name)

	e.emitStructs(&b)
	e.emitExternDecls(&b)
	e.emitStrings(&b)

	resultTypes := e.resultTypes()

	for _, fn := range e.mod.Functions {
		if fn.IsExtern {
			continue
		}

		b.WriteByte('\n')
		newFuncEmitter(&b, fn, resultTypes).run()
	}

	return b.String()
}

func (e *emitter) resultTypes() map[string]string {
	m := make(map[string]string, len(e.mod.Functions))
	for _, fn := range e.mod.Functions {
		m[fn.Name] = fn.ResultTy
	}

	return m
}

// emitStructs collects every struct/enum type that shows up anywhere in
// the module — a function's parameter/return type, a declared struct or
// enum, or a Gep's field name — and emits its type definition before
// anything references it. Declared structs and enums (hir.StructDecl/
// EnumDecl, carried down through mir.Module/lir.Module) get their real
// field layout from internal/layout; a nominal type referenced but never
// declared in this compilation unit still falls back to opaque.
func (e *emitter) emitStructs(b *strings.Builder) {
	needOutcome := false
	needStructFallback := false

	named := map[string]bool{}

	var order []string

	consider := func(ty string) {
		base := structBase(ty)
		if base == "" || primitive[base] {
			return
		}

		if base == "Outcome" {
			needOutcome = true
			return
		}

		if !named[base] {
			named[base] = true

			order = append(order, base)
		}
	}

	for _, fn := range e.mod.Functions {
		consider(fn.ResultTy)

		for _, p := range fn.ParamTy {
			consider(p)
		}

		for _, bb := range fn.Blocks {
			for _, in := range bb.Insns {
				g, ok := in.(lir.Gep)
				if !ok {
					continue
				}

				if g.Field == "discriminant" || g.Field == "data" {
					needOutcome = true
				} else {
					needStructFallback = true
				}
			}
		}
	}

	declared := map[string]bool{}
	for _, s := range e.mod.Structs {
		declared[s.Name] = true
	}

	for _, en := range e.mod.Enums {
		declared[en.Name] = true
	}

	if !needOutcome && !needStructFallback && len(order) == 0 && len(declared) == 0 {
		return
	}

	b.WriteByte('\n')

	calc := layout.NewCalculator()

	if needOutcome {
		emitOutcome(b, calc)
	}

	if needStructFallback {
		// Gep resolves its bitcast target purely from a field name
		// (internal/codegen/llvmgen/function.go emitGep), not from the
		// owning struct recorded below, so any non-Outcome field access
		// still needs this generic aggregate regardless of how many real
		// struct defs follow it.
		b.WriteString("%Struct = type { i32, i32, i32, i32 }\n")
	}

	for _, s := range e.mod.Structs {
		emitStructDef(b, calc, s)
	}

	for _, en := range e.mod.Enums {
		emitEnumDef(b, calc, en)
	}

	for _, n := range order {
		if declared[n] {
			continue
		}

		fmt.Fprintf(b, "%%%s = type opaque\n", n)
	}
}

func emitOutcome(b *strings.Builder, calc *layout.Calculator) {
	sl, err := calc.Outcome(8, 8)
	if err != nil {
		b.WriteString("%Outcome = type { i32, i64 }\n")
		return
	}

	disc := llvmIntType(sl.Fields[layout.OutcomeDiscriminantIndex].Size)
	data := llvmIntType(sl.Fields[layout.OutcomeDataIndex].Size)

	fmt.Fprintf(b, "%%Outcome = type { %s, %s }\n", disc, data)
}

func emitStructDef(b *strings.Builder, calc *layout.Calculator, s *lir.StructDef) {
	fields := make([]layout.FieldInfo, len(s.Fields))
	llvmTypes := make([]string, len(s.Fields))

	for i, f := range s.Fields {
		size, align := typeSize(f.Type)
		fields[i] = layout.FieldInfo{Name: f.Name, Type: f.Type, Size: size, Align: align}
		llvmTypes[i] = llvmType(f.Type)
	}

	if _, err := calc.StructOf(s.Name, fields); err != nil {
		fmt.Fprintf(b, "%%%s = type opaque\n", s.Name)
		return
	}

	if len(llvmTypes) == 0 {
		fmt.Fprintf(b, "%%%s = type {}\n", s.Name)
		return
	}

	fmt.Fprintf(b, "%%%s = type { %s }\n", s.Name, strings.Join(llvmTypes, ", "))
}

// emitEnumDef lays out each variant as its own struct to find the
// widest payload, then renders the enum as { discriminant, [N x i8] }
// per internal/layout's tagged-union shape — the same shape Outcome
// uses, generalized to a real field-typed payload size.
func emitEnumDef(b *strings.Builder, calc *layout.Calculator, en *lir.EnumDef) {
	var payloadSize, payloadAlign int64

	for _, v := range en.Variants {
		fields := make([]layout.FieldInfo, len(v.Fields))

		for i, f := range v.Fields {
			size, align := typeSize(f.Type)
			fields[i] = layout.FieldInfo{Name: f.Name, Type: f.Type, Size: size, Align: align}
		}

		sl, err := calc.StructOf(en.Name+"::"+v.Name, fields)
		if err != nil {
			continue
		}

		if sl.Size > payloadSize {
			payloadSize = sl.Size
		}

		if sl.Align > payloadAlign {
			payloadAlign = sl.Align
		}
	}

	if payloadAlign == 0 {
		payloadAlign = 1
	}

	el, err := calc.EnumOf(en.Name, len(en.Variants), payloadSize, payloadAlign)
	if err != nil {
		fmt.Fprintf(b, "%%%s = type opaque\n", en.Name)
		return
	}

	discTy := llvmIntType(el.DiscriminantSize)

	if el.PayloadSize == 0 {
		fmt.Fprintf(b, "%%%s = type { %s }\n", en.Name, discTy)
		return
	}

	fmt.Fprintf(b, "%%%s = type { %s, [%d x i8] }\n", en.Name, discTy, el.PayloadSize)
}

func (e *emitter) emitExternDecls(b *strings.Builder) {
	b.WriteByte('\n')

	declared := map[string]bool{}

	for _, ext := range implicitExterns {
		fmt.Fprintf(b, "declare %s @%s(%s)\n", ext.result, ext.name, externParamList(ext.params, ext.variadic))

		declared[ext.name] = true
	}

	for _, fn := range e.mod.Functions {
		if !fn.IsExtern || declared[fn.Name] {
			continue
		}

		params := make([]string, len(fn.ParamTy))
		for i, p := range fn.ParamTy {
			params[i] = llvmType(p)
		}

		fmt.Fprintf(b, "declare %s @%s(%s)\n", llvmType(fn.ResultTy), fn.Name, externParamList(params, fn.Variadic))

		declared[fn.Name] = true
	}
}

func externParamList(params []string, variadic bool) string {
	parts := append([]string{}, params...)
	if variadic {
		parts = append(parts, "...")
	}

	return strings.Join(parts, ", ")
}

func (e *emitter) emitStrings(b *strings.Builder) {
	if len(e.mod.Strings) == 0 {
		return
	}

	b.WriteByte('\n')

	for i, s := range e.mod.Strings {
		esc, n := escapeString(s)
		fmt.Fprintf(b, "@.str%d = private unnamed_addr constant [%d x i8] c\"%s\\00\"\n", i, n, esc)
	}
}

// escapeString applies spec.md section 6's escape rules and returns the
// byte length including the trailing NUL.
func escapeString(s string) (string, int) {
	var b strings.Builder

	n := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		n++

		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\0A`)
		case '\r':
			b.WriteString(`\0D`)
		case '\t':
			b.WriteString(`\09`)
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), n + 1
}
