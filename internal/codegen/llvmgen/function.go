package llvmgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zulon-lang/zulon/internal/lir"
)

// funcEmitter renders a single lir.Function's `define` block. It keeps a
// running vreg -> LLVM-type map because LIR itself doesn't carry static
// types per vreg (spec.md section 4.8 only threads names/field strings);
// every instruction's printed type is inferred locally from its operands
// rather than looked up from one global source of truth.
type funcEmitter struct {
	b    *strings.Builder
	fn   *lir.Function
	typ  map[lir.VReg]string
	imm  map[lir.VReg]string // constant-propagated immediates, substituted at use sites
	rt   map[string]string   // function name -> ResultTy, for typing Call results
	next lir.VReg            // scratch vreg counter for emitter-synthesized values
}

func newFuncEmitter(b *strings.Builder, fn *lir.Function, resultTypes map[string]string) *funcEmitter {
	return &funcEmitter{
		b:    b,
		fn:   fn,
		typ:  map[lir.VReg]string{},
		imm:  map[lir.VReg]string{},
		rt:   resultTypes,
		next: fn.NextVReg,
	}
}

func (fe *funcEmitter) scratch() lir.VReg {
	fe.next++
	return fe.next
}

func (fe *funcEmitter) ref(v lir.VReg) string {
	return fmt.Sprintf("%%v%d", v)
}

// resultType returns the function's LLVM result type. An undeclared-return
// main defaults to i32 rather than void: spec.md section 8's boundary
// behaviors require `fn main() {}` to emit `define i32 @main()`, matching
// C's `int main(void)` convention, even though main's HIR result type
// resolves to unit like any other bare-block function (hir/lower.go).
func (fe *funcEmitter) resultType() string {
	ty := llvmType(fe.fn.ResultTy)
	if fe.fn.Name == "main" && ty == "void" {
		return "i32"
	}

	return ty
}

func (fe *funcEmitter) run() {
	resTy := fe.resultType()

	params := make([]string, fe.fn.NumParams)
	for i := 0; i < fe.fn.NumParams; i++ {
		pty := "i32"
		if i < len(fe.fn.ParamTy) {
			pty = llvmType(fe.fn.ParamTy[i])
		}

		reg := lir.VReg(i + 1)
		fe.typ[reg] = pty
		params[i] = fmt.Sprintf("%s %s", pty, fe.ref(reg))
	}

	fmt.Fprintf(fe.b, "define %s @%s(%s) {\n", resTy, fe.fn.Name, strings.Join(params, ", "))

	for _, bb := range fe.fn.Blocks {
		fe.emitBlock(bb)
	}

	fe.b.WriteString("}\n")
}

func (fe *funcEmitter) emitBlock(bb *lir.BasicBlock) {
	fmt.Fprintf(fe.b, "block%d:\n", bb.ID)

	for _, p := range bb.Phis {
		fe.emitPhi(p)
	}

	for _, in := range bb.Insns {
		fe.emitInsn(in)
	}

	fe.emitTerm(bb.Term)
}

func (fe *funcEmitter) emitPhi(p *lir.Phi) {
	preds := make([]lir.BlockID, 0, len(p.Sources))
	for bid := range p.Sources {
		preds = append(preds, bid)
	}

	sort.Slice(preds, func(i, j int) bool { return preds[i] < preds[j] })

	ty := "i32"

	parts := make([]string, 0, len(preds))
	for _, bid := range preds {
		v := p.Sources[bid]
		if t, ok := fe.typ[v]; ok {
			ty = t
		}

		parts = append(parts, fmt.Sprintf("[ %s, %%block%d ]", fe.vregRef(v), bid))
	}

	fe.typ[p.Dst] = ty
	fmt.Fprintf(fe.b, "  %s = phi %s %s\n", fe.ref(p.Dst), ty, strings.Join(parts, ", "))
}

// vregRef renders a vreg reference, substituting a propagated immediate
// or the undef sentinel where applicable.
func (fe *funcEmitter) vregRef(v lir.VReg) string {
	if v == lir.Undef {
		return "undef"
	}

	if c, ok := fe.imm[v]; ok {
		return c
	}

	return fe.ref(v)
}

func (fe *funcEmitter) valueType(v lir.Value) string {
	switch x := v.(type) {
	case lir.VRegValue:
		if t, ok := fe.typ[x.Reg]; ok {
			return t
		}

		return "i32"
	case lir.IntConst:
		return "i32"
	case lir.FloatConst:
		return "double"
	case lir.BoolConst:
		return "i1"
	case lir.StringConst:
		return "i8*"
	default:
		return "i32"
	}
}

func (fe *funcEmitter) valueRef(v lir.Value) string {
	switch x := v.(type) {
	case lir.VRegValue:
		return fe.vregRef(x.Reg)
	case lir.IntConst:
		return fmt.Sprintf("%d", x.Value)
	case lir.FloatConst:
		return fmt.Sprintf("%g", x.Value)
	case lir.BoolConst:
		if x.Value {
			return "1"
		}

		return "0"
	case lir.StringConst:
		return fmt.Sprintf("@.str%d", x.Index)
	default:
		return "0"
	}
}

func (fe *funcEmitter) emitInsn(in lir.Insn) {
	switch i := in.(type) {
	case lir.Const:
		fe.emitConst(i)
	case lir.Arith:
		op := arithMnemonic(i.Op, i.Float)
		ty := fe.valueType(i.Left)
		fmt.Fprintf(fe.b, "  %s = %s %s %s, %s\n", fe.ref(i.Dst), op, ty, fe.valueRef(i.Left), fe.valueRef(i.Right))
		fe.typ[i.Dst] = ty
	case lir.Cmp:
		instr, pred := "icmp", cmpMnemonic(i.Pred, false)
		if i.Float {
			instr, pred = "fcmp", cmpMnemonic(i.Pred, true)
		}

		ty := fe.valueType(i.Left)
		fmt.Fprintf(fe.b, "  %s = %s %s %s %s, %s\n", fe.ref(i.Dst), instr, pred, ty, fe.valueRef(i.Left), fe.valueRef(i.Right))
		fe.typ[i.Dst] = "i1"
	case lir.Neg:
		ty := fe.valueType(i.Src)
		if i.Float {
			fmt.Fprintf(fe.b, "  %s = fneg %s %s\n", fe.ref(i.Dst), ty, fe.valueRef(i.Src))
		} else {
			fmt.Fprintf(fe.b, "  %s = sub %s 0, %s\n", fe.ref(i.Dst), ty, fe.valueRef(i.Src))
		}

		fe.typ[i.Dst] = ty
	case lir.Not:
		ty := fe.valueType(i.Src)
		fmt.Fprintf(fe.b, "  %s = xor %s %s, -1\n", fe.ref(i.Dst), ty, fe.valueRef(i.Src))
		fe.typ[i.Dst] = ty
	case lir.Alloca:
		fmt.Fprintf(fe.b, "  %s = alloca i32 ; %s\n", fe.ref(i.Dst), i.Name)
		fe.typ[i.Dst] = "i32*"
	case lir.Load:
		ptrTy := fe.typ[i.Addr]
		if ptrTy == "" {
			ptrTy = "i32*"
		}

		elem := pointeeType(ptrTy)
		fmt.Fprintf(fe.b, "  %s = load %s, %s %s\n", fe.ref(i.Dst), elem, ptrTy, fe.vregRef(i.Addr))
		fe.typ[i.Dst] = elem
	case lir.Store:
		vt := fe.valueType(i.Value)
		fmt.Fprintf(fe.b, "  store %s %s, %s* %s\n", vt, fe.valueRef(i.Value), vt, fe.vregRef(i.Addr))
	case lir.Gep:
		fe.emitGep(i)
	case lir.Call:
		args := fe.renderArgs(i.Args)

		ty := "i32"
		if rt, ok := fe.rt[i.Callee]; ok {
			ty = llvmType(rt)
		}

		fmt.Fprintf(fe.b, "  %s = call %s @%s(%s)\n", fe.ref(i.Dst), ty, i.Callee, args)
		fe.typ[i.Dst] = ty
	case lir.CallExternal:
		args := fe.renderArgs(i.Args)
		fmt.Fprintf(fe.b, "  %s = call i32 @%s(%s)\n", fe.ref(i.Dst), i.Callee, args)
		fe.typ[i.Dst] = "i32"
	case lir.CallIndirect:
		args := fe.renderArgs(i.Args)
		fmt.Fprintf(fe.b, "  %s = call i32 %s(%s)\n", fe.ref(i.Dst), fe.vregRef(i.Target), args)
		fe.typ[i.Dst] = "i32"
	default:
		fmt.Fprintf(fe.b, "  ; unhandled insn %#v\n", in)
	}
}

// emitConst materializes an immediate. Non-string constants are folded
// directly into their use sites rather than printed as a named
// instruction — LLVM has no `const` opcode, and naming a bare immediate
// (e.g. `%v3 = add i32 0, 5`) would only add noise.
func (fe *funcEmitter) emitConst(c lir.Const) {
	if s, ok := c.Value.(lir.StringConst); ok {
		n := len(s.Value) + 1
		fmt.Fprintf(fe.b, "  %s = getelementptr inbounds [%d x i8], [%d x i8]* @.str%d, i64 0, i64 0\n",
			fe.ref(c.Dst), n, n, s.Index)
		fe.typ[c.Dst] = "i8*"

		return
	}

	fe.imm[c.Dst] = fe.valueRef(c.Value)
	fe.typ[c.Dst] = fe.valueType(c.Value)
}

// emitGep renders a Gep as a bitcast-to-known-aggregate followed by the
// actual getelementptr. The bitcast sidesteps needing to track each
// Alloca's true element type (LIR's Alloca only carries a debug Name):
// the aggregate type is instead recovered from the field name itself,
// which spec.md's field resolution already hard-codes for Outcome. Any
// non-Outcome field bitcasts to the generic %Struct fallback emitted by
// emitStructs — real per-declaration struct/enum types are emitted
// alongside it (layout-backed, see internal/layout), but a lir.Gep
// itself carries no owning-struct name to select among them by.
func (fe *funcEmitter) emitGep(g lir.Gep) {
	aggTy := "Outcome"
	fieldTy := "i32"

	switch g.Field {
	case "data":
		fieldTy = "i64"
	case "discriminant":
	default:
		aggTy = "Struct"
	}

	baseTy := fe.typ[g.Base]
	if baseTy == "" {
		baseTy = "i32*"
	}

	cast := fe.scratch()
	fmt.Fprintf(fe.b, "  %s = bitcast %s %s to %%%s*\n", fe.ref(cast), baseTy, fe.vregRef(g.Base), aggTy)
	fmt.Fprintf(fe.b, "  %s = getelementptr inbounds %%%s, %%%s* %s, i32 0, i32 %d ; %s\n",
		fe.ref(g.Dst), aggTy, aggTy, fe.ref(cast), g.FieldIdx, g.Field)

	fe.typ[g.Dst] = fieldTy + "*"
}

func (fe *funcEmitter) renderArgs(args []lir.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%s %s", fe.valueType(a), fe.valueRef(a))
	}

	return strings.Join(parts, ", ")
}

func (fe *funcEmitter) emitTerm(t lir.Terminator) {
	switch v := t.(type) {
	case lir.Return:
		fe.emitReturn(v.Value, false)
	case lir.ErrReturn:
		fe.emitReturn(v.Value, true)
	case lir.Jump:
		fmt.Fprintf(fe.b, "  br label %%block%d\n", v.Target)
	case lir.Branch:
		fmt.Fprintf(fe.b, "  br i1 %s, label %%block%d, label %%block%d\n", fe.valueRef(v.Cond), v.True, v.False)
	case lir.LSwitch:
		fe.emitSwitch(v)
	case lir.Unreachable:
		fe.b.WriteString("  unreachable\n")
	default:
		fe.b.WriteString("  unreachable\n")
	}
}

func (fe *funcEmitter) emitSwitch(v lir.LSwitch) {
	ty := fe.valueType(v.Value)

	keys := make([]int64, 0, len(v.Cases))
	for k := range v.Cases {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	cases := make([]string, 0, len(keys))
	for _, k := range keys {
		cases = append(cases, fmt.Sprintf("%s %d, label %%block%d", ty, k, v.Cases[k]))
	}

	fmt.Fprintf(fe.b, "  switch %s %s, label %%block%d [ %s ]\n", ty, fe.valueRef(v.Value), v.Default, strings.Join(cases, " "))
}

// emitReturn implements spec.md section 4.9's special return shape: when
// the function's declared result is Outcome<T,E>, a bare value return is
// wrapped into the tagged union by allocating a stack slot, storing the
// discriminant and payload, then loading and returning the whole struct.
func (fe *funcEmitter) emitReturn(v lir.Value, isErr bool) {
	if !isOutcome(fe.fn.ResultTy) {
		resTy := fe.resultType()

		if v == nil {
			if resTy == "void" {
				fe.b.WriteString("  ret void\n")
			} else {
				fmt.Fprintf(fe.b, "  ret %s 0\n", resTy)
			}

			return
		}

		fmt.Fprintf(fe.b, "  ret %s %s\n", resTy, fe.valueRef(v))

		return
	}

	disc := 0
	if isErr {
		disc = 1
	}

	slot := fe.scratch()
	fmt.Fprintf(fe.b, "  %s = alloca %%Outcome\n", fe.ref(slot))

	dGep := fe.scratch()
	fmt.Fprintf(fe.b, "  %s = getelementptr inbounds %%Outcome, %%Outcome* %s, i32 0, i32 0\n", fe.ref(dGep), fe.ref(slot))
	fmt.Fprintf(fe.b, "  store i32 %d, i32* %s\n", disc, fe.ref(dGep))

	if v != nil {
		payload := fe.payloadAsI64(v)

		vGep := fe.scratch()
		fmt.Fprintf(fe.b, "  %s = getelementptr inbounds %%Outcome, %%Outcome* %s, i32 0, i32 1\n", fe.ref(vGep), fe.ref(slot))
		fmt.Fprintf(fe.b, "  store i64 %s, i64* %s\n", payload, fe.ref(vGep))
	}

	loaded := fe.scratch()
	fmt.Fprintf(fe.b, "  %s = load %%Outcome, %%Outcome* %s\n", fe.ref(loaded), fe.ref(slot))
	fmt.Fprintf(fe.b, "  ret %%Outcome %s\n", fe.ref(loaded))
}

// payloadAsI64 widens/converts v to the Outcome payload slot's i64 width.
func (fe *funcEmitter) payloadAsI64(v lir.Value) string {
	ty := fe.valueType(v)
	ref := fe.valueRef(v)

	switch ty {
	case "i64":
		return ref
	case "i8*":
		c := fe.scratch()
		fmt.Fprintf(fe.b, "  %s = ptrtoint i8* %s to i64\n", fe.ref(c), ref)

		return fe.ref(c)
	case "double":
		c := fe.scratch()
		fmt.Fprintf(fe.b, "  %s = bitcast double %s to i64\n", fe.ref(c), ref)

		return fe.ref(c)
	default:
		c := fe.scratch()
		fmt.Fprintf(fe.b, "  %s = zext %s %s to i64\n", fe.ref(c), ty, ref)

		return fe.ref(c)
	}
}

func arithMnemonic(op lir.ArithOp, float bool) string {
	if float {
		switch op {
		case lir.OpAdd:
			return "fadd"
		case lir.OpSub:
			return "fsub"
		case lir.OpMul:
			return "fmul"
		case lir.OpDiv:
			return "fdiv"
		case lir.OpMod:
			return "frem"
		}
	}

	switch op {
	case lir.OpAdd:
		return "add"
	case lir.OpSub:
		return "sub"
	case lir.OpMul:
		return "mul"
	case lir.OpDiv:
		return "sdiv"
	case lir.OpMod:
		return "srem"
	case lir.OpAnd, lir.OpBoolAnd:
		return "and"
	case lir.OpOr, lir.OpBoolOr:
		return "or"
	case lir.OpXor:
		return "xor"
	case lir.OpShl:
		return "shl"
	case lir.OpShr:
		return "ashr"
	default:
		return "add"
	}
}

func cmpMnemonic(p lir.CmpPred, float bool) string {
	if float {
		switch p {
		case lir.CmpEq:
			return "oeq"
		case lir.CmpNe:
			return "une"
		case lir.CmpLt:
			return "olt"
		case lir.CmpLe:
			return "ole"
		case lir.CmpGt:
			return "ogt"
		case lir.CmpGe:
			return "oge"
		}
	}

	switch p {
	case lir.CmpEq:
		return "eq"
	case lir.CmpNe:
		return "ne"
	case lir.CmpLt:
		return "slt"
	case lir.CmpLe:
		return "sle"
	case lir.CmpGt:
		return "sgt"
	case lir.CmpGe:
		return "sge"
	default:
		return "eq"
	}
}
