package lir

import (
	"fmt"
	"sort"

	"github.com/zulon-lang/zulon/internal/mir"
)

// Lowerer translates a mir.Module into an SSA lir.Module (spec.md
// section 4.8). Struct/enum declarations pass through to Module.Structs/
// Enums unchanged, for llvmgen to consult internal/layout when emitting
// type definitions. Field indices on a Gep itself are still assigned in
// first-seen order per field name rather than per owning struct
// (fieldIndex below): a FieldPlace only carries a field name, not which
// declared struct it projects from, so indexing stays this pragmatic
// stand-in until that link exists (see DESIGN.md).
type Lowerer struct {
	strings    []string
	stringIdx  map[string]int
	fieldIdx   map[string]int
	nextFieldI int
}

func NewLowerer() *Lowerer {
	return &Lowerer{
		stringIdx: map[string]int{},
		fieldIdx:  map[string]int{},
	}
}

func (l *Lowerer) Lower(mod *mir.Module) *Module {
	out := &Module{}

	for _, s := range mod.Structs {
		out.Structs = append(out.Structs, &StructDef{Name: s.Name, Fields: lirFieldDefsOf(s.Fields)})
	}

	for _, e := range mod.Enums {
		variants := make([]EnumVariantDef, len(e.Variants))
		for i, v := range e.Variants {
			variants[i] = EnumVariantDef{Name: v.Name, Fields: lirFieldDefsOf(v.Fields)}
		}

		out.Enums = append(out.Enums, &EnumDef{Name: e.Name, Variants: variants})
	}

	for _, fn := range mod.Functions {
		out.Functions = append(out.Functions, l.lowerFunction(fn))
	}

	out.Strings = l.strings

	return out
}

func lirFieldDefsOf(fields []mir.FieldDef) []FieldDef {
	out := make([]FieldDef, len(fields))
	for i, f := range fields {
		out[i] = FieldDef{Name: f.Name, Type: f.Type}
	}

	return out
}

func (l *Lowerer) internString(s string) StringConst {
	if idx, ok := l.stringIdx[s]; ok {
		return StringConst{Index: idx, Value: s}
	}

	idx := len(l.strings)
	l.strings = append(l.strings, s)
	l.stringIdx[s] = idx

	return StringConst{Index: idx, Value: s}
}

func (l *Lowerer) fieldIndex(name string) int {
	switch name {
	case "discriminant":
		return 0
	case "data":
		return 1
	}

	if idx, ok := l.fieldIdx[name]; ok {
		return idx
	}

	idx := l.nextFieldI
	l.nextFieldI++
	l.fieldIdx[name] = idx

	return idx
}

type pendingPhi struct {
	phi   *Phi
	preds []mir.BlockID
}

// fnLowerer holds the per-function SSA-construction state.
type fnLowerer struct {
	parent *Lowerer
	mfn    *mir.Function
	fn     *Function
	cur    *BasicBlock

	mutable  map[string]bool
	localVal map[string]Value
	localPtr map[string]VReg
	paramVal map[string]Value
	tempVal  map[mir.TempID]Value

	predOf map[mir.BlockID][]mir.BlockID

	pending []pendingPhi
}

func (l *Lowerer) lowerFunction(mfn *mir.Function) *Function {
	fn := &Function{
		Name:      mfn.Name,
		ParamTy:   mfn.ParamTy,
		ResultTy:  mfn.ResultTy,
		NumParams: len(mfn.Params),
		IsExtern:  mfn.IsExtern,
		Variadic:  mfn.Variadic,
		Externals: mfn.Externals,
	}

	if mfn.IsExtern || len(mfn.Blocks) == 0 {
		return fn
	}

	fb := &fnLowerer{
		parent:   l,
		mfn:      mfn,
		fn:       fn,
		mutable:  detectMutableLocals(mfn),
		localVal: map[string]Value{},
		localPtr: map[string]VReg{},
		paramVal: map[string]Value{},
		tempVal:  map[mir.TempID]Value{},
		predOf:   predecessorsOf(mfn),
	}

	for _, name := range mfn.Params {
		fb.paramVal[name] = VRegValue{Reg: fb.fn.fresh()}
	}

	ids := make([]mir.BlockID, 0, len(mfn.Blocks))
	byID := map[mir.BlockID]*mir.BasicBlock{}

	for _, bb := range mfn.Blocks {
		ids = append(ids, bb.ID)
		byID[bb.ID] = bb
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		fn.Blocks = append(fn.Blocks, &BasicBlock{ID: BlockID(id)})
	}

	entry := fn.Block(BlockID(ids[0]))
	fb.cur = entry

	var mutNames []string
	for name := range fb.mutable {
		mutNames = append(mutNames, name)
	}

	sort.Strings(mutNames)

	for _, name := range mutNames {
		slot := fb.fn.fresh()
		fb.localPtr[name] = slot
		fb.cur.Insns = append(fb.cur.Insns, Alloca{Dst: slot, Name: name})
	}

	for _, id := range ids {
		mbb := byID[id]
		fb.cur = fn.Block(BlockID(id))
		fb.lowerBlock(mbb)
	}

	fb.resolvePendingPhis(byID)

	CompleteCFG(fn)

	return fn
}

func (fb *fnLowerer) lowerBlock(mbb *mir.BasicBlock) {
	for _, in := range mbb.Instrs {
		fb.lowerInstr(mbb.ID, in)
	}

	fb.cur.Term = fb.lowerTerm(mbb.Term)
}

func (fb *fnLowerer) emit(in Insn) {
	fb.cur.Insns = append(fb.cur.Insns, in)
}

func (fb *fnLowerer) lowerInstr(blockID mir.BlockID, in mir.Instruction) {
	switch i := in.(type) {
	case mir.Const:
		dst := fb.fn.fresh()
		fb.emit(Const{Dst: dst, Value: fb.readOperand(i.Value)})
		fb.tempVal[i.Dst] = VRegValue{Reg: dst}
	case mir.Copy:
		fb.tempVal[i.Dst] = fb.readPlace(i.From)
	case mir.Move:
		preds := fb.predOf[blockID]
		if len(preds) > 1 {
			phi := &Phi{Dst: fb.fn.fresh(), Sources: map[BlockID]VReg{}}
			fb.cur.Phis = append(fb.cur.Phis, phi)
			fb.tempVal[i.Dst] = VRegValue{Reg: phi.Dst}
			fb.pending = append(fb.pending, pendingPhi{phi: phi, preds: preds})
		} else {
			fb.tempVal[i.Dst] = fb.readPlace(i.From)
		}
	case mir.BinaryOp:
		fb.lowerBinaryOp(i)
	case mir.UnaryOp:
		fb.lowerUnaryOp(i)
	case mir.Call:
		fb.lowerCall(i)
	case mir.Load:
		fb.tempVal[i.Dst] = fb.readPlace(i.From)
	case mir.Store:
		fb.writePlace(i.To, fb.readOperand(i.Value))
	case mir.Borrow:
		addr := fb.addrOf(i.From)
		fb.tempVal[i.Dst] = VRegValue{Reg: addr}
	case mir.FieldAccess:
		addr := fb.addrOf(mir.FieldPlace{Base: i.Base, Field: i.Field})
		dst := fb.fn.fresh()
		fb.emit(Load{Dst: dst, Addr: addr})
		fb.tempVal[i.Dst] = VRegValue{Reg: dst}
	case mir.Drop:
		// No destructor lowering modeled yet; matches mir.Drop's own
		// placeholder semantics.
	case mir.PerformEffect:
		args := make([]Value, len(i.Args))
		for idx, a := range i.Args {
			args[idx] = fb.readOperand(a)
		}

		dst := fb.fn.fresh()
		fb.emit(Call{Dst: dst, Callee: i.EffectName + "." + i.Operation, Args: args})
		fb.tempVal[i.Dst] = VRegValue{Reg: dst}
	}
}

func (fb *fnLowerer) lowerBinaryOp(i mir.BinaryOp) {
	left := fb.readOperand(i.Left)
	right := fb.readOperand(i.Right)
	dst := fb.fn.fresh()

	if pred, ok := cmpPredOf(i.Op); ok {
		fb.emit(Cmp{Dst: dst, Pred: pred, Left: left, Right: right})
	} else {
		fb.emit(Arith{Dst: dst, Op: arithOpOf(i.Op), Left: left, Right: right})
	}

	fb.tempVal[i.Dst] = VRegValue{Reg: dst}
}

func (fb *fnLowerer) lowerUnaryOp(i mir.UnaryOp) {
	src := fb.readOperand(i.Operand)
	dst := fb.fn.fresh()

	if i.Op == mir.UnNeg {
		fb.emit(Neg{Dst: dst, Src: src})
	} else {
		fb.emit(Not{Dst: dst, Src: src})
	}

	fb.tempVal[i.Dst] = VRegValue{Reg: dst}
}

func (fb *fnLowerer) lowerCall(i mir.Call) {
	args := make([]Value, len(i.Args))
	for idx, a := range i.Args {
		args[idx] = fb.readOperand(a)
	}

	dst := fb.fn.fresh()

	switch {
	case i.Indirect != nil:
		target := fb.addrValue(i.Indirect)
		fb.emit(CallIndirect{Dst: dst, Target: target, Args: args})
	case i.External:
		fb.emit(CallExternal{Dst: dst, Callee: i.Callee, Args: args, Variadic: i.Variadic})
	default:
		fb.emit(Call{Dst: dst, Callee: i.Callee, Args: args})
	}

	fb.tempVal[i.Dst] = VRegValue{Reg: dst}
}

func (fb *fnLowerer) addrValue(p mir.Place) VReg {
	v := fb.readPlace(p)
	return fb.asVReg(v)
}

func (fb *fnLowerer) lowerTerm(term mir.Terminator) Terminator {
	switch t := term.(type) {
	case mir.Return:
		if t.Value == nil {
			return Return{}
		}

		return Return{Value: fb.readOperand(t.Value)}
	case mir.Goto:
		return Jump{Target: BlockID(t.Target)}
	case mir.If:
		return Branch{Cond: fb.readOperand(t.Cond), True: BlockID(t.Then), False: BlockID(t.Else)}
	case mir.Switch:
		cases := make(map[int64]BlockID, len(t.Cases))
		for k, v := range t.Cases {
			cases[k] = BlockID(v)
		}

		return LSwitch{Value: fb.readOperand(t.Value), Cases: cases, Default: BlockID(t.Default)}
	case mir.Throw:
		return ErrReturn{Value: fb.readOperand(t.Value)}
	case mir.EffectCall:
		args := make([]Value, len(t.Args))
		for idx, a := range t.Args {
			args[idx] = fb.readOperand(a)
		}

		fb.emit(Call{Dst: fb.fn.fresh(), Callee: t.EffectName + "." + t.Operation, Args: args})

		return Unreachable{}
	case mir.Unreachable:
		return Unreachable{}
	default:
		return Unreachable{}
	}
}

func (fb *fnLowerer) readOperand(op mir.Operand) Value {
	switch o := op.(type) {
	case mir.PlaceOperand:
		return fb.readPlace(o.Place)
	case mir.IntOperand:
		return IntConst{Value: o.Value}
	case mir.FloatOperand:
		return FloatConst{Value: o.Value}
	case mir.StringOperand:
		return fb.parent.internString(o.Value)
	case mir.BoolOperand:
		return BoolConst{Value: o.Value}
	default:
		return IntConst{Value: 0}
	}
}

func (fb *fnLowerer) readPlace(p mir.Place) Value {
	switch pl := p.(type) {
	case mir.TempPlace:
		if pl.ID == 0 {
			return VRegValue{Reg: Undef}
		}

		if v, ok := fb.tempVal[pl.ID]; ok {
			return v
		}

		return VRegValue{Reg: Undef}
	case mir.ParamPlace:
		if v, ok := fb.paramVal[pl.Name]; ok {
			return v
		}

		return VRegValue{Reg: Undef}
	case mir.LocalPlace:
		if fb.mutable[pl.Name] {
			dst := fb.fn.fresh()
			fb.emit(Load{Dst: dst, Addr: fb.localPtr[pl.Name]})

			return VRegValue{Reg: dst}
		}

		if v, ok := fb.localVal[pl.Name]; ok {
			return v
		}

		return VRegValue{Reg: Undef}
	case mir.FieldPlace, mir.IndexPlace:
		addr := fb.addrOf(pl)
		dst := fb.fn.fresh()
		fb.emit(Load{Dst: dst, Addr: addr})

		return VRegValue{Reg: dst}
	case mir.DerefPlace:
		addr := fb.asVReg(fb.readPlace(pl.Base))
		dst := fb.fn.fresh()
		fb.emit(Load{Dst: dst, Addr: addr})

		return VRegValue{Reg: dst}
	case mir.RefPlace:
		return VRegValue{Reg: fb.addrOf(pl.Base)}
	default:
		return VRegValue{Reg: Undef}
	}
}

func (fb *fnLowerer) writePlace(p mir.Place, val Value) {
	switch pl := p.(type) {
	case mir.LocalPlace:
		if fb.mutable[pl.Name] {
			fb.emit(Store{Addr: fb.localPtr[pl.Name], Value: val})
		} else {
			fb.localVal[pl.Name] = val
		}
	case mir.ParamPlace:
		fb.paramVal[pl.Name] = val
	case mir.TempPlace:
		fb.tempVal[pl.ID] = val
	case mir.FieldPlace, mir.IndexPlace, mir.DerefPlace:
		addr := fb.addrOf(pl)
		fb.emit(Store{Addr: addr, Value: val})
	case mir.RefPlace:
		addr := fb.addrOf(pl.Base)
		fb.emit(Store{Addr: addr, Value: val})
	}
}

// addrOf materializes a pointer vreg for p. Places without a natural
// address (a bare temp or an immutable local) are spilled to a fresh
// stack slot on demand — not optimal, but always correct, consistent
// with spec.md section 4.9's "no attempt at optimal IR" contract.
func (fb *fnLowerer) addrOf(p mir.Place) VReg {
	switch pl := p.(type) {
	case mir.LocalPlace:
		if fb.mutable[pl.Name] {
			return fb.localPtr[pl.Name]
		}

		return fb.spill(fb.localVal[pl.Name], "spill."+pl.Name)
	case mir.ParamPlace:
		return fb.spill(fb.paramVal[pl.Name], "spill."+pl.Name)
	case mir.TempPlace:
		return fb.spill(fb.readPlace(pl), fmt.Sprintf("spill.t%d", pl.ID))
	case mir.FieldPlace:
		base := fb.addrOf(pl.Base)
		dst := fb.fn.fresh()
		fb.emit(Gep{Dst: dst, Base: base, Field: pl.Field, FieldIdx: fb.parent.fieldIndex(pl.Field)})

		return dst
	case mir.IndexPlace:
		base := fb.addrOf(pl.Base)
		dst := fb.fn.fresh()
		fb.emit(Gep{Dst: dst, Base: base, Field: "[]", FieldIdx: 0})

		return dst
	case mir.DerefPlace:
		return fb.asVReg(fb.readPlace(pl.Base))
	case mir.RefPlace:
		return fb.addrOf(pl.Base)
	default:
		return Undef
	}
}

func (fb *fnLowerer) spill(v Value, name string) VReg {
	slot := fb.fn.fresh()
	fb.emit(Alloca{Dst: slot, Name: name})
	fb.emit(Store{Addr: slot, Value: v})

	return slot
}

func (fb *fnLowerer) asVReg(v Value) VReg {
	if vr, ok := v.(VRegValue); ok {
		return vr.Reg
	}

	dst := fb.fn.fresh()
	fb.emit(Const{Dst: dst, Value: v})

	return dst
}

// resolvePendingPhis fills in each join phi's per-predecessor source now
// that every block has been lowered and every mir temp has a known LIR
// value, avoiding the forward-reference problem of an else-branch block
// whose id is higher than the join block it feeds.
func (fb *fnLowerer) resolvePendingPhis(byID map[mir.BlockID]*mir.BasicBlock) {
	for _, pp := range fb.pending {
		for _, pred := range pp.preds {
			vr := Undef

			if id, ok := lastDefTemp(byID[pred]); ok {
				if v, ok := fb.tempVal[id]; ok {
					if r, ok := v.(VRegValue); ok {
						vr = r.Reg
					}
				}
			}

			pp.phi.Sources[BlockID(pred)] = vr
		}
	}
}

func lastDefTemp(bb *mir.BasicBlock) (mir.TempID, bool) {
	if bb == nil {
		return 0, false
	}

	var last mir.TempID

	found := false

	for _, in := range bb.Instrs {
		if id, ok := mirInstrDst(in); ok {
			last = id
			found = true
		}
	}

	return last, found
}

func mirInstrDst(in mir.Instruction) (mir.TempID, bool) {
	switch i := in.(type) {
	case mir.Const:
		return i.Dst, true
	case mir.Copy:
		return i.Dst, true
	case mir.Move:
		return i.Dst, true
	case mir.BinaryOp:
		return i.Dst, true
	case mir.UnaryOp:
		return i.Dst, true
	case mir.Call:
		return i.Dst, true
	case mir.Load:
		return i.Dst, true
	case mir.Borrow:
		return i.Dst, true
	case mir.FieldAccess:
		return i.Dst, true
	case mir.PerformEffect:
		return i.Dst, true
	default:
		return 0, false
	}
}

func detectMutableLocals(fn *mir.Function) map[string]bool {
	out := map[string]bool{}

	for _, bb := range fn.Blocks {
		for _, in := range bb.Instrs {
			if st, ok := in.(mir.Store); ok {
				if lp, ok := st.To.(mir.LocalPlace); ok {
					out[lp.Name] = true
				}
			}
		}
	}

	return out
}

func predecessorsOf(fn *mir.Function) map[mir.BlockID][]mir.BlockID {
	out := map[mir.BlockID][]mir.BlockID{}

	add := func(from, to mir.BlockID) {
		for _, existing := range out[to] {
			if existing == from {
				return
			}
		}

		out[to] = append(out[to], from)
	}

	for _, bb := range fn.Blocks {
		switch t := bb.Term.(type) {
		case mir.Goto:
			add(bb.ID, t.Target)
		case mir.If:
			add(bb.ID, t.Then)
			add(bb.ID, t.Else)
		case mir.Switch:
			for _, target := range t.Cases {
				add(bb.ID, target)
			}

			add(bb.ID, t.Default)
		}
	}

	return out
}

func cmpPredOf(op mir.BinOp) (CmpPred, bool) {
	switch op {
	case mir.BinEq:
		return CmpEq, true
	case mir.BinNe:
		return CmpNe, true
	case mir.BinLt:
		return CmpLt, true
	case mir.BinLe:
		return CmpLe, true
	case mir.BinGt:
		return CmpGt, true
	case mir.BinGe:
		return CmpGe, true
	default:
		return 0, false
	}
}

func arithOpOf(op mir.BinOp) ArithOp {
	switch op {
	case mir.BinAdd:
		return OpAdd
	case mir.BinSub:
		return OpSub
	case mir.BinMul:
		return OpMul
	case mir.BinDiv:
		return OpDiv
	case mir.BinMod:
		return OpMod
	case mir.BinAnd:
		return OpBoolAnd
	case mir.BinOr:
		return OpBoolOr
	case mir.BinBitAnd:
		return OpAnd
	case mir.BinBitOr:
		return OpOr
	case mir.BinBitXor:
		return OpXor
	case mir.BinShl:
		return OpShl
	case mir.BinShr:
		return OpShr
	default:
		return OpAdd
	}
}
