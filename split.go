// Completion: 100% - isplit/iconcat value splitting complete
package legalize

// The narrowing rules work on half-width values obtained with isplit
// and rebuilt with iconcat. The invariant that keeps this sound is
// that iconcat(isplit(v)) and isplit(iconcat(lo, hi)) both collapse to
// the original values, so once every producer and consumer of a wide
// type has been narrowed, no isplit or iconcat survives.

// splitValue returns the low and high halves of v at the cursor. When
// v is the result of an iconcat the halves already exist; otherwise an
// isplit is inserted, to be cancelled later when v's producer is
// narrowed.
func splitValue(pos *Cursor, v Value) (lo, hi Value) {
	f := pos.F
	if def, _ := f.ValueDef(v); def != NoInst {
		id := f.InstData(def)
		if id.Op == OpIconcat {
			return id.Args[0], id.Args[1]
		}
	}
	return pos.InsIsplit(v)
}

// cancelIsplit collapses an isplit whose operand is an iconcat,
// aliasing the split results to the concat operands. Returns false
// when the operand is produced some other way.
func cancelIsplit(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	def, _ := f.ValueDef(id.Args[0])
	if def == NoInst {
		return false
	}
	dd := f.InstData(def)
	if dd.Op != OpIconcat {
		return false
	}
	res := f.InstResults(inst)
	lo, hi := dd.Args[0], dd.Args[1]
	f.clearResults(inst)
	f.ChangeToAlias(res[0], lo)
	f.ChangeToAlias(res[1], hi)
	f.RemoveInst(inst)
	return true
}

// splitBlockParams rewrites every block parameter whose type the ISA
// cannot hold in one register. The parameter becomes a (low, high)
// pair, the original value is rebuilt with iconcat at the top of the
// block, and every predecessor branch passes split halves instead.
// The entry block is skipped; its parameters follow the signature.
func splitBlockParams(f *Function, cfg *ControlFlowGraph, isa *ISA) {
	pos := NewCursor(f)
	entry := f.FirstBlock()
	for b := entry; b != NoBlock; b = f.NextBlock(b) {
		if b == entry {
			continue
		}
		old := f.BlockParams(b)
		split := false
		for _, v := range old {
			if illegalAbiType(f.ValueType(v), isa) {
				split = true
				break
			}
		}
		if !split {
			continue
		}

		var params []Value
		type rebuild struct {
			idx    int // index into the old parameter list
			old    Value
			pieces []Value
		}
		var rebuilds []rebuild
		for i, v := range old {
			ty := f.ValueType(v)
			if !illegalAbiType(ty, isa) {
				params = append(params, v)
				continue
			}
			var pieces []Value
			for _, p := range legalAbiTypes(ty, isa) {
				nv := f.newBlockParamValue(b, p.Ty)
				params = append(params, nv)
				pieces = append(pieces, nv)
			}
			rebuilds = append(rebuilds, rebuild{idx: i, old: v, pieces: pieces})
		}
		f.setBlockParams(b, params)
		pos.GotoTop(b)
		splitAt := make(map[int]bool)
		for _, r := range rebuilds {
			f.ChangeToAlias(r.old, concatPieces(pos, r.pieces))
			splitAt[r.idx] = true
		}

		// Patch every incoming branch to pass the pieces.
		for _, pred := range cfg.Preds(b) {
			if f.InstData(pred.Inst).Dest != b {
				continue
			}
			pos.GotoInst(pred.Inst)
			var newArgs []Value
			for i, a := range f.InstData(pred.Inst).DestArgs {
				if splitAt[i] {
					newArgs = append(newArgs, splitIntoPieces(pos, a, isa)...)
				} else {
					newArgs = append(newArgs, a)
				}
			}
			f.InstData(pred.Inst).DestArgs = newArgs
		}
	}
}

// simplifyBranchArguments resolves alias chains in a branch's
// destination arguments so later passes see the canonical values.
func simplifyBranchArguments(f *Function, inst Inst) {
	id := f.InstData(inst)
	for i, a := range id.DestArgs {
		id.DestArgs[i] = f.ResolveAliases(a)
	}
}

// removeDeadSplits deletes isplit and iconcat instructions none of
// whose results are used, iterating until no more die. After a
// successful narrowing pass this erases the whole split scaffolding.
func removeDeadSplits(f *Function) {
	for {
		used := make(map[Value]bool)
		for b := f.FirstBlock(); b != NoBlock; b = f.NextBlock(b) {
			for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
				id := f.InstData(i)
				for _, a := range id.Args {
					used[f.ResolveAliases(a)] = true
				}
				for _, a := range id.DestArgs {
					used[f.ResolveAliases(a)] = true
				}
			}
		}
		removed := false
		for b := f.FirstBlock(); b != NoBlock; b = f.NextBlock(b) {
			i := f.FirstInst(b)
			for i != NoInst {
				next := f.NextInst(i)
				id := f.InstData(i)
				if id.Op == OpIsplit || id.Op == OpIconcat {
					live := false
					for _, r := range f.InstResults(i) {
						if used[r] {
							live = true
							break
						}
					}
					if !live {
						f.RemoveInst(i)
						removed = true
					}
				}
				i = next
			}
		}
		if !removed {
			return
		}
	}
}
