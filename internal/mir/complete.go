package mir

// CompleteCFG implements spec.md section 4.6's completion pass: any block
// still missing a terminator after lowering gets one, preferring a Return
// of the most recent pending-phi Move in that block (the value an `if`'s
// join block would have produced had the corresponding branch fallen
// through) and falling back to Unreachable.
func CompleteCFG(fn *Function) {
	for _, bb := range fn.Blocks {
		if bb.Term != nil {
			continue
		}

		var phiSrc *TempID

		for _, in := range bb.Instrs {
			if mv, ok := in.(Move); ok {
				id := mv.Dst
				phiSrc = &id
			}
		}

		if phiSrc != nil {
			bb.Term = Return{Value: PlaceOperand{Place: TempPlace{ID: *phiSrc}}}
		} else {
			bb.Term = Unreachable{}
		}
	}
}
