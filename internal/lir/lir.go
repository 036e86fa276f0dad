// Package lir defines ZULON's Low-level IR: true SSA with explicit vregs
// and phi nodes, one step away from textual LLVM IR (spec.md section 4.8).
package lir

import (
	"fmt"
	"strings"
)

// VReg names a static-single-assignment virtual register. VReg 0 is the
// reserved undef sentinel used as a pending-phi source when a predecessor
// produces no value on that edge.
type VReg int

const Undef VReg = 0

// BlockID names a basic block within a function.
type BlockID int

// Module is a compiled unit of LIR, one function per MIR function.
type Module struct {
	Name      string
	Structs   []*StructDef // struct declarations, carried through for layout-backed codegen
	Enums     []*EnumDef   // enum declarations, likewise
	Strings   []string     // interned string constants, indexed by StringConst.Index
	Externals []string
	Functions []*Function
}

// FieldDef names one field of a StructDef or enum variant, mirroring
// mir.FieldDef.
type FieldDef struct {
	Name string
	Type string
}

// StructDef is a struct declaration's field shape, carried unchanged from
// mir.StructDef so llvmgen can consult internal/layout for a real
// `%Name = type { ... }` definition.
type StructDef struct {
	Name   string
	Fields []FieldDef
}

// EnumVariantDef is one variant of an EnumDef.
type EnumVariantDef struct {
	Name   string
	Fields []FieldDef
}

// EnumDef is an enum declaration's variant shape, carried unchanged from
// mir.EnumDef.
type EnumDef struct {
	Name     string
	Variants []EnumVariantDef
}

// Function is a function body expressed as SSA basic blocks.
type Function struct {
	Name      string
	ParamTy   []string
	ResultTy  string
	NumParams int // the first NumParams vregs are the parameters, in order
	IsExtern  bool
	Variadic  bool
	Externals []string
	Blocks    []*BasicBlock
	NextVReg  VReg
}

func (f *Function) Block(id BlockID) *BasicBlock {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b
		}
	}

	return nil
}

func (f *Function) fresh() VReg {
	f.NextVReg++
	return f.NextVReg
}

// BasicBlock holds its phi nodes separately from its ordinary
// instructions, mirroring how the emitter renders them (phis first).
type BasicBlock struct {
	ID    BlockID
	Phis  []*Phi
	Insns []Insn
	Term  Terminator
}

// Phi merges one value per predecessor block into a single vreg.
type Phi struct {
	Dst     VReg
	Sources map[BlockID]VReg
}

// Insn is implemented by every non-terminating LIR instruction.
type Insn interface{ isInsn() }

// CmpPred is a comparison predicate, shared by integer and float Cmp.
type CmpPred int

const (
	CmpEq CmpPred = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

func (p CmpPred) String() string {
	switch p {
	case CmpEq:
		return "eq"
	case CmpNe:
		return "ne"
	case CmpLt:
		return "lt"
	case CmpLe:
		return "le"
	case CmpGt:
		return "gt"
	case CmpGe:
		return "ge"
	default:
		return "?"
	}
}

// ArithOp is the operator of a Const-folded binary arithmetic/bitwise op.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpBoolAnd
	OpBoolOr
)

func (o ArithOp) String() string {
	names := [...]string{"add", "sub", "mul", "div", "mod", "and", "or", "xor", "shl", "shr", "and", "or"}
	if int(o) < len(names) {
		return names[o]
	}

	return "?"
}

// Value is an SSA operand: either a vreg or an immediate constant baked
// in at MIR lowering time.
type Value interface{ isValue() }

// VRegValue references another instruction's result.
type VRegValue struct{ Reg VReg }

// IntConst, FloatConst, BoolConst are immediate operands.
type IntConst struct{ Value int64 }
type FloatConst struct{ Value float64 }
type BoolConst struct{ Value bool }

// StringConst references a module-level `.strN` global by index.
type StringConst struct {
	Index int
	Value string
}

func (VRegValue) isValue()   {}
func (IntConst) isValue()    {}
func (FloatConst) isValue()  {}
func (BoolConst) isValue()   {}
func (StringConst) isValue() {}

// Const materializes an immediate into a fresh vreg.
type Const struct {
	Dst   VReg
	Value Value
}

// Arith applies a binary arithmetic/bitwise operator. Float is always
// false today: MIR doesn't thread operand types through far enough for
// this lowering to pick the float-typed instruction form (spec.md's
// 4.9 operator table distinguishes fadd/fsub/... from add/sub/...), so
// the emitter currently always selects the integer forms; the field
// stays in place for when type-directed MIR lands.
type Arith struct {
	Dst         VReg
	Op          ArithOp
	Left, Right Value
	Float       bool
}

// Cmp applies a comparison, producing a boolean vreg. See Arith's note
// on Float.
type Cmp struct {
	Dst         VReg
	Pred        CmpPred
	Left, Right Value
	Float       bool
}

// Neg/Not are unary operators. See Arith's note on Float.
type Neg struct {
	Dst   VReg
	Src   Value
	Float bool
}

type Not struct {
	Dst VReg
	Src Value
}

// Alloca reserves a stack slot for a mutable local, identified by Name
// for debugging only; LIR addresses it purely by Dst vreg thereafter.
type Alloca struct {
	Dst  VReg
	Name string
}

// Load reads through a pointer vreg (a stack slot or a Gep result).
type Load struct {
	Dst  VReg
	Addr VReg
}

// Store writes a value through a pointer vreg.
type Store struct {
	Addr  VReg
	Value Value
}

// Gep computes the address of a struct field by resolved index.
type Gep struct {
	Dst      VReg
	Base     VReg
	Field    string
	FieldIdx int
}

// Call invokes a function known to be defined in this module.
type Call struct {
	Dst    VReg
	Callee string
	Args   []Value
}

// CallExternal invokes a function known to be an extern declaration.
type CallExternal struct {
	Dst      VReg
	Callee   string
	Args     []Value
	Variadic bool
}

// CallIndirect invokes a function through a vreg holding a callee value
// (a closure.make result or a function pointer).
type CallIndirect struct {
	Dst    VReg
	Target VReg
	Args   []Value
}

func (Const) isInsn()        {}
func (Arith) isInsn()        {}
func (Cmp) isInsn()          {}
func (Neg) isInsn()          {}
func (Not) isInsn()          {}
func (Alloca) isInsn()       {}
func (Load) isInsn()         {}
func (Store) isInsn()        {}
func (Gep) isInsn()          {}
func (Call) isInsn()         {}
func (CallExternal) isInsn() {}
func (CallIndirect) isInsn() {}

// Terminator is implemented by every block-ending LIR instruction.
type Terminator interface{ isTerm() }

// Return exits the function, optionally with a value.
type Return struct{ Value Value } // Value == nil means a bare return

// Jump unconditionally transfers control to Target.
type Jump struct{ Target BlockID }

// Branch transfers control based on Cond.
type Branch struct {
	Cond        Value
	True, False BlockID
}

// LSwitch transfers control based on the integer value of Value.
type LSwitch struct {
	Value   Value
	Cases   map[int64]BlockID
	Default BlockID
}

// Unreachable marks a block control can never reach.
type Unreachable struct{}

// ErrReturn exits the function along an error path; the emitter wraps
// Value into `Outcome::Err` rather than `Outcome::Ok` (mirrors mir.Throw,
// carried through rather than collapsed into Return — see DESIGN.md).
type ErrReturn struct{ Value Value }

func (Return) isTerm()      {}
func (Jump) isTerm()        {}
func (Branch) isTerm()      {}
func (LSwitch) isTerm()     {}
func (Unreachable) isTerm() {}
func (ErrReturn) isTerm()   {}

func (m *Module) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "module %s\n", m.Name)

	for _, fn := range m.Functions {
		b.WriteString(fn.String())
		b.WriteByte('\n')
	}

	return b.String()
}

func (f *Function) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "func %s -> %s {\n", f.Name, f.ResultTy)

	for _, bb := range f.Blocks {
		b.WriteString(bb.String())
	}

	b.WriteString("}\n")

	return b.String()
}

func (bb *BasicBlock) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "block%d:\n", bb.ID)

	for _, p := range bb.Phis {
		fmt.Fprintf(&b, "  %s\n", p.String())
	}

	for _, in := range bb.Insns {
		fmt.Fprintf(&b, "  %s\n", insnString(in))
	}

	fmt.Fprintf(&b, "  %s\n", termString(bb.Term))

	return b.String()
}

func (p *Phi) String() string {
	var parts []string

	for pred, v := range p.Sources {
		parts = append(parts, fmt.Sprintf("[%s, block%d]", valueString(VRegValue{Reg: v}), pred))
	}

	return fmt.Sprintf("%%v%d = phi %s", p.Dst, strings.Join(parts, ", "))
}

func valueString(v Value) string {
	switch x := v.(type) {
	case nil:
		return "<none>"
	case VRegValue:
		if x.Reg == Undef {
			return "undef"
		}

		return fmt.Sprintf("%%v%d", x.Reg)
	case IntConst:
		return fmt.Sprintf("%d", x.Value)
	case FloatConst:
		return fmt.Sprintf("%g", x.Value)
	case BoolConst:
		return fmt.Sprintf("%t", x.Value)
	case StringConst:
		return fmt.Sprintf(".str%d", x.Index)
	default:
		return "<value>"
	}
}

func insnString(in Insn) string {
	switch i := in.(type) {
	case Const:
		return fmt.Sprintf("%%v%d = const %s", i.Dst, valueString(i.Value))
	case Arith:
		return fmt.Sprintf("%%v%d = %s %s, %s", i.Dst, i.Op, valueString(i.Left), valueString(i.Right))
	case Cmp:
		return fmt.Sprintf("%%v%d = cmp.%s %s, %s", i.Dst, i.Pred, valueString(i.Left), valueString(i.Right))
	case Neg:
		return fmt.Sprintf("%%v%d = neg %s", i.Dst, valueString(i.Src))
	case Not:
		return fmt.Sprintf("%%v%d = not %s", i.Dst, valueString(i.Src))
	case Alloca:
		return fmt.Sprintf("%%v%d = alloca %s", i.Dst, i.Name)
	case Load:
		return fmt.Sprintf("%%v%d = load %%v%d", i.Dst, i.Addr)
	case Store:
		return fmt.Sprintf("store %%v%d, %s", i.Addr, valueString(i.Value))
	case Gep:
		return fmt.Sprintf("%%v%d = gep %%v%d, %s(%d)", i.Dst, i.Base, i.Field, i.FieldIdx)
	case Call:
		return fmt.Sprintf("%%v%d = call %s(%s)", i.Dst, i.Callee, joinValues(i.Args))
	case CallExternal:
		return fmt.Sprintf("%%v%d = call_external %s(%s)", i.Dst, i.Callee, joinValues(i.Args))
	case CallIndirect:
		return fmt.Sprintf("%%v%d = call_indirect %%v%d(%s)", i.Dst, i.Target, joinValues(i.Args))
	default:
		return "<insn>"
	}
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = valueString(v)
	}

	return strings.Join(parts, ", ")
}

func termString(t Terminator) string {
	switch v := t.(type) {
	case nil:
		return "<no terminator>"
	case Return:
		if v.Value == nil {
			return "return"
		}

		return fmt.Sprintf("return %s", valueString(v.Value))
	case Jump:
		return fmt.Sprintf("jump block%d", v.Target)
	case Branch:
		return fmt.Sprintf("branch %s, block%d, block%d", valueString(v.Cond), v.True, v.False)
	case LSwitch:
		return fmt.Sprintf("switch %s, default block%d", valueString(v.Value), v.Default)
	case Unreachable:
		return "unreachable"
	case ErrReturn:
		return fmt.Sprintf("err_return %s", valueString(v.Value))
	default:
		return "<term>"
	}
}
