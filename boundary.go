// Completion: 100% - ABI boundary legalization complete
package legalize

// ABI boundaries carry values the target has no registers for: i128
// everywhere, i64 on 32-bit modes. Signatures are rewritten so every
// oversized parameter becomes a (low, high) pair, recursively, and
// call sites and returns are patched with isplit/iconcat so the
// narrowing rules can dissolve the wide values entirely.

// illegalAbiType reports whether a type cannot be passed directly.
func illegalAbiType(ty Type, isa *ISA) bool {
	return ty.IsInt() && ty.Bits() > isa.PointerType.Bits()
}

// legalAbiTypes expands one ABI type into the legal types that carry
// it, low half first.
func legalAbiTypes(ty Type, isa *ISA) []AbiParam {
	if !illegalAbiType(ty, isa) {
		return []AbiParam{{Ty: ty}}
	}
	half := ty.HalfWidth()
	out := legalAbiTypes(half, isa)
	return append(out, legalAbiTypes(half, isa)...)
}

// legalizeSignature rewrites sig in place. Already-legal signatures
// come back unchanged, so repeated legalization is a no-op.
func legalizeSignature(sig *Signature, isa *ISA) bool {
	changed := false
	expand := func(params []AbiParam) []AbiParam {
		var out []AbiParam
		for _, p := range params {
			if illegalAbiType(p.Ty, isa) {
				changed = true
				out = append(out, legalAbiTypes(p.Ty, isa)...)
			} else {
				out = append(out, p)
			}
		}
		return out
	}
	sig.Params = expand(sig.Params)
	sig.Returns = expand(sig.Returns)
	return changed
}

// legalizeSignatures rewrites the function's own signature, every
// referenced signature, and the entry block parameters to match.
func legalizeSignatures(f *Function, isa *ISA) {
	changedOwn := legalizeSignature(f.Sig, isa)
	for _, sig := range f.Sigs {
		legalizeSignature(sig, isa)
	}
	if !changedOwn {
		return
	}
	entry := f.FirstBlock()
	if entry == NoBlock {
		return
	}
	legalizeEntryParams(f, entry, isa)
}

// legalizeEntryParams splits oversized entry block parameters into
// half-width pairs and reconstitutes the original values with iconcat
// at the top of the entry block.
func legalizeEntryParams(f *Function, entry Block, isa *ISA) {
	old := f.BlockParams(entry)
	needsWork := false
	for _, v := range old {
		if illegalAbiType(f.ValueType(v), isa) {
			needsWork = true
			break
		}
	}
	if !needsWork {
		return
	}

	pos := NewCursor(f)
	pos.GotoTop(entry)

	var params []Value
	type rebuild struct {
		old    Value
		pieces []Value
	}
	var rebuilds []rebuild
	for _, v := range old {
		ty := f.ValueType(v)
		if !illegalAbiType(ty, isa) {
			params = append(params, v)
			continue
		}
		pieces := make([]Value, 0, 2)
		for _, p := range legalAbiTypes(ty, isa) {
			nv := f.newBlockParamValue(entry, p.Ty)
			params = append(params, nv)
			pieces = append(pieces, nv)
		}
		rebuilds = append(rebuilds, rebuild{old: v, pieces: pieces})
	}
	f.setBlockParams(entry, params)
	for _, r := range rebuilds {
		v := concatPieces(pos, r.pieces)
		f.ChangeToAlias(r.old, v)
	}
}

// concatPieces reassembles a value from its legal pieces, low first.
// The piece list length is a power of two by construction.
func concatPieces(pos *Cursor, pieces []Value) Value {
	if len(pieces) == 1 {
		return pieces[0]
	}
	mid := len(pieces) / 2
	lo := concatPieces(pos, pieces[:mid])
	hi := concatPieces(pos, pieces[mid:])
	return pos.InsIconcat(lo, hi)
}

// splitIntoPieces breaks a wide value into its legal pieces with
// isplit instructions inserted at the cursor.
func splitIntoPieces(pos *Cursor, v Value, isa *ISA) []Value {
	if !illegalAbiType(pos.F.ValueType(v), isa) {
		return []Value{v}
	}
	lo, hi := pos.InsIsplit(v)
	out := splitIntoPieces(pos, lo, isa)
	return append(out, splitIntoPieces(pos, hi, isa)...)
}

// handleCallABI patches a call whose arguments or results use
// oversized types. Returns true when the call was rewritten.
func handleCallABI(f *Function, pos *Cursor, inst Inst, isa *ISA) bool {
	id := f.InstData(inst)
	changed := false

	// Fixed args of call_indirect (the callee) stay; value args split.
	firstArg := 0
	if id.Op == OpCallIndirect {
		firstArg = 1
	}
	needSplit := false
	for _, a := range id.Args[firstArg:] {
		if illegalAbiType(f.ValueType(a), isa) {
			needSplit = true
			break
		}
	}
	// The shared cursor moves only when the call is rewritten; touching
	// it on the no-change path would make the driver rescan this call.
	if needSplit {
		changed = true
		var args []Value
		args = append(args, id.Args[:firstArg]...)
		pos.GotoInst(inst)
		for _, a := range id.Args[firstArg:] {
			if illegalAbiType(f.ValueType(a), isa) {
				args = append(args, splitIntoPieces(pos, a, isa)...)
			} else {
				args = append(args, a)
			}
		}
		f.InstData(inst).Args = args
	}

	// Results: replace each oversized result with half-width results
	// and reassemble the original value after the call.
	id = f.InstData(inst)
	oversized := false
	for _, r := range id.results {
		if illegalAbiType(f.ValueType(r), isa) {
			oversized = true
			break
		}
	}
	if oversized {
		changed = true
		old := id.results
		f.clearResults(inst)
		pos.GotoAfter(inst, f.InstBlock(inst))
		for _, r := range old {
			ty := f.ValueType(r)
			if !illegalAbiType(ty, isa) {
				f.reattachResult(inst, r)
				continue
			}
			var pieces []Value
			for _, p := range legalAbiTypes(ty, isa) {
				pieces = append(pieces, f.appendResult(inst, p.Ty))
			}
			// concatPieces inserts instructions, so alias after it.
			f.ChangeToAlias(r, concatPieces(pos, pieces))
		}
	}
	return changed
}

// handleReturnABI splits oversized return values in place. The shared
// cursor moves only when the return is rewritten.
func handleReturnABI(f *Function, pos *Cursor, inst Inst, isa *ISA) bool {
	id := f.InstData(inst)
	needSplit := false
	for _, a := range id.Args {
		if illegalAbiType(f.ValueType(a), isa) {
			needSplit = true
			break
		}
	}
	if !needSplit {
		return false
	}
	pos.GotoInst(inst)
	var args []Value
	for _, a := range id.Args {
		if illegalAbiType(f.ValueType(a), isa) {
			args = append(args, splitIntoPieces(pos, a, isa)...)
		} else {
			args = append(args, a)
		}
	}
	f.InstData(inst).Args = args
	return true
}
