package mir

import "strings"

// TransformAsync rewrites a function flagged IsAsync into a state machine
// (spec.md section 4.7). It is a no-op for non-async functions.
func TransformAsync(fn *Function) {
	if !fn.IsAsync {
		return
	}

	ids := continuingAllocator(fn)

	type site struct {
		blockIdx int
		instrIdx int
	}

	var sites []site

	for bi, bb := range fn.Blocks {
		for ii, in := range bb.Instrs {
			if isAwaitCall(in) {
				sites = append(sites, site{blockIdx: bi, instrIdx: ii})
			}
		}
	}

	if len(sites) == 0 {
		return
	}

	// Liveness analysis (spec.md step 2) conservatively over-approximates:
	// every local ever stored anywhere in the function is treated as live
	// across every suspension point, rather than computing the precise
	// per-await reachable-block live set. This is sound (it never drops a
	// local that needs to survive a suspension) but may persist more state
	// than a precise liveness pass would.
	captured := allStoredLocals(fn)

	siteForBlock := func(bi int) *site {
		for i := range sites {
			if sites[i].blockIdx == bi {
				return &sites[i]
			}
		}

		return nil
	}

	var resumeIDs []BlockID

	var rebuilt []*BasicBlock

	for bi, bb := range fn.Blocks {
		s := siteForBlock(bi)
		if s == nil {
			rebuilt = append(rebuilt, bb)
			continue
		}

		pre := &BasicBlock{ID: bb.ID, Instrs: append([]Instruction{}, bb.Instrs[:s.instrIdx]...)}
		for _, name := range captured {
			pre.Instrs = append(pre.Instrs, Copy{Dst: ids.Temp(), From: LocalPlace{Name: name}})
		}

		state := int64(len(resumeIDs) + 1)
		pre.Term = Return{Value: IntOperand{Value: state}}

		resumeID := ids.Block()

		var restoreInstrs []Instruction
		for _, name := range captured {
			restoreInstrs = append(restoreInstrs, Copy{Dst: ids.Temp(), From: LocalPlace{Name: name}})
		}

		resume := &BasicBlock{
			ID:     resumeID,
			Instrs: append(restoreInstrs, bb.Instrs[s.instrIdx+1:]...),
			Term:   bb.Term,
		}

		resumeIDs = append(resumeIDs, resumeID)
		rebuilt = append(rebuilt, pre, resume)
	}

	fn.Blocks = rebuilt

	originalEntryID := fn.Blocks[0].ID

	cases := map[int64]BlockID{0: originalEntryID}
	for i, id := range resumeIDs {
		cases[int64(i+1)] = id
	}

	trapID := ids.Block()
	trap := &BasicBlock{ID: trapID, Term: Unreachable{}}

	entryID := ids.Block()
	entry := &BasicBlock{
		ID: entryID,
		Term: Switch{
			Value:   PlaceOperand{Place: ParamPlace{Name: "__state"}},
			Cases:   cases,
			Default: trapID,
		},
	}

	fn.Blocks = append([]*BasicBlock{entry, trap}, fn.Blocks...)
	fn.Params = append([]string{"__state"}, fn.Params...)
}

func isAwaitCall(in Instruction) bool {
	c, ok := in.(Call)
	if !ok {
		return false
	}

	return c.Callee == "await" || strings.Contains(c.Callee, "poll")
}

func allStoredLocals(fn *Function) []string {
	seen := map[string]bool{}

	var names []string

	for _, bb := range fn.Blocks {
		for _, in := range bb.Instrs {
			if st, ok := in.(Store); ok {
				if lp, ok := st.To.(LocalPlace); ok && !seen[lp.Name] {
					seen[lp.Name] = true
					names = append(names, lp.Name)
				}
			}
		}
	}

	return names
}

func continuingAllocator(fn *Function) *IDAllocator {
	a := &IDAllocator{}

	for _, bb := range fn.Blocks {
		if bb.ID >= a.nextBlock {
			a.nextBlock = bb.ID + 1
		}

		for _, in := range bb.Instrs {
			if id, ok := instrDst(in); ok && id >= a.nextTemp {
				a.nextTemp = id
			}
		}
	}

	return a
}

func instrDst(in Instruction) (TempID, bool) {
	switch i := in.(type) {
	case Const:
		return i.Dst, true
	case Copy:
		return i.Dst, true
	case Move:
		return i.Dst, true
	case BinaryOp:
		return i.Dst, true
	case UnaryOp:
		return i.Dst, true
	case Call:
		return i.Dst, true
	case Load:
		return i.Dst, true
	case Borrow:
		return i.Dst, true
	case FieldAccess:
		return i.Dst, true
	case PerformEffect:
		return i.Dst, true
	default:
		return 0, false
	}
}
