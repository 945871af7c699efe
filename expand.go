// Completion: 100% - expand legalization rules complete
package legalize

// The expand group rewrites an instruction into equivalent ones of the
// same width: immediate forms materialize their constant, compound
// arithmetic decomposes, and control flow idioms turn into plain
// branches. Rules return false when the opcode has no expansion, which
// sends the driver on to the libcall fallback.

// replaceWithAliases dissolves a multi-result instruction by aliasing
// each of its results to a replacement value and unlinking it.
func replaceWithAliases(f *Function, inst Inst, vals ...Value) {
	res := f.InstResults(inst)
	f.clearResults(inst)
	for i, v := range vals {
		f.ChangeToAlias(res[i], v)
	}
	f.RemoveInst(inst)
}

func expand(f *Function, inst Inst, cfg *ControlFlowGraph, isa *ISA) bool {
	id := f.InstData(inst)
	switch id.Op {
	// Immediate forms: materialize the constant.
	case OpIaddImm:
		return expandBinaryImm(f, inst, OpIadd)
	case OpImulImm:
		return expandBinaryImm(f, inst, OpImul)
	case OpUdivImm:
		return expandBinaryImm(f, inst, OpUdiv)
	case OpSdivImm:
		return expandBinaryImm(f, inst, OpSdiv)
	case OpUremImm:
		return expandBinaryImm(f, inst, OpUrem)
	case OpSremImm:
		return expandBinaryImm(f, inst, OpSrem)
	case OpBandImm:
		return expandBinaryImm(f, inst, OpBand)
	case OpBorImm:
		return expandBinaryImm(f, inst, OpBor)
	case OpBxorImm:
		return expandBinaryImm(f, inst, OpBxor)
	case OpIshlImm:
		return expandBinaryImm(f, inst, OpIshl)
	case OpUshrImm:
		return expandBinaryImm(f, inst, OpUshr)
	case OpSshrImm:
		return expandBinaryImm(f, inst, OpSshr)
	case OpRotlImm:
		return expandBinaryImm(f, inst, OpRotl)
	case OpRotrImm:
		return expandBinaryImm(f, inst, OpRotr)
	case OpIrsubImm:
		return expandIrsubImm(f, inst)
	case OpIconst:
		return expandIconst(f, inst)
	case OpIcmpImm:
		return expandCmpImm(f, inst, OpIcmp)
	case OpIfcmpImm:
		return expandCmpImm(f, inst, OpIfcmp)

	// Negated-operand forms.
	case OpBandNot:
		return expandNotForm(f, inst, OpBand)
	case OpBorNot:
		return expandNotForm(f, inst, OpBor)
	case OpBxorNot:
		return expandNotForm(f, inst, OpBxor)

	case OpBitrev:
		return expandBitrev(f, inst)

	// Carry and borrow decomposition.
	case OpIaddCout:
		return expandIaddCout(f, inst)
	case OpIaddCin:
		return expandIaddCin(f, inst)
	case OpIaddCarry:
		return expandIaddCarry(f, inst)
	case OpIsubBout:
		return expandIsubBout(f, inst)
	case OpIsubBin:
		return expandIsubBin(f, inst)
	case OpIsubBorrow:
		return expandIsubBorrow(f, inst)

	// Floating point sign manipulation via the sign mask.
	case OpFabs:
		return expandFabs(f, inst)
	case OpFneg:
		return expandFneg(f, inst)
	case OpFcopysign:
		return expandFcopysign(f, inst)
	case OpF32const, OpF64const:
		return expandFconst(f, inst)

	// Stack slot access.
	case OpStackLoad:
		return expandStackLoad(f, inst, isa)
	case OpStackStore:
		return expandStackStore(f, inst, isa)

	// Control flow idioms.
	case OpTrapz:
		return expandCondTrap(f, inst, cfg, OpBrnz)
	case OpTrapnz:
		return expandCondTrap(f, inst, cfg, OpBrz)
	case OpBrIcmp:
		return expandBrIcmp(f, inst)
	case OpBrTable:
		return expandBrTable(f, inst, cfg, isa)
	case OpSelect:
		return expandSelect(f, inst, cfg)
	}
	return false
}

// expandFlags prefers CPU flags for conditional traps and otherwise
// defers to the plain expansion rules.
func expandFlags(f *Function, inst Inst, cfg *ControlFlowGraph, isa *ISA) bool {
	switch f.InstData(inst).Op {
	case OpTrapz:
		return expandCondTrapFlags(f, inst, IntEqual)
	case OpTrapnz:
		return expandCondTrapFlags(f, inst, IntNotEqual)
	}
	return expand(f, inst, cfg, isa)
}

func expandBinaryImm(f *Function, inst Inst, op Opcode) bool {
	pos := NewCursor(f)
	pos.GotoInst(inst)
	id := f.InstData(inst)
	x := id.Args[0]
	y := pos.InsIconst(f.ValueType(x), id.Imm)
	f.ReplaceWithBinary(inst, op, x, y)
	return true
}

func expandIrsubImm(f *Function, inst Inst) bool {
	pos := NewCursor(f)
	pos.GotoInst(inst)
	id := f.InstData(inst)
	x := id.Args[0]
	y := pos.InsIconst(f.ValueType(x), id.Imm)
	// Reverse subtraction: the immediate is the minuend.
	f.ReplaceWithBinary(inst, OpIsub, y, x)
	return true
}

// expandIconst materializes a constant that fits no single immediate
// field as an upper-20-bit constant plus a 12-bit addend, the lui+addi
// idiom. The round up by 0x800 compensates for the addend's sign
// extension.
func expandIconst(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	imm := id.Imm
	ty := f.ValueType(f.FirstResult(inst))
	if isSignedInt(imm, 12, 0) {
		return false
	}
	hi := (imm + 0x800) &^ 0xfff
	lo := imm - hi
	if ty == I32 {
		hi = int64(int32(hi))
	}
	if !isSignedInt(hi, 32, 12) {
		return false
	}
	pos := NewCursor(f)
	pos.GotoInst(inst)
	h := pos.InsIconst(ty, hi)
	f.ReplaceWith(inst, instData{Op: OpIaddImm, Args: []Value{h}, Imm: lo})
	return true
}

func expandCmpImm(f *Function, inst Inst, op Opcode) bool {
	pos := NewCursor(f)
	pos.GotoInst(inst)
	id := f.InstData(inst)
	x := id.Args[0]
	cc := id.Cond
	y := pos.InsIconst(f.ValueType(x), id.Imm)
	f.ReplaceWith(inst, instData{Op: op, Cond: cc, Args: []Value{x, y}})
	return true
}

func expandNotForm(f *Function, inst Inst, op Opcode) bool {
	pos := NewCursor(f)
	pos.GotoInst(inst)
	id := f.InstData(inst)
	x, y := id.Args[0], id.Args[1]
	ny := pos.InsUnary(OpBnot, y)
	f.ReplaceWithBinary(inst, op, x, ny)
	return true
}

// bitrevStage is one swap step: pick alternating groups with the two
// masks and exchange them by shifting.
type bitrevStage struct {
	maskHi, maskLo int64
	shift          int64
}

var bitrevStages = map[Type][]bitrevStage{
	I8: {
		{0xaa, 0x55, 1},
		{0xcc, 0x33, 2},
	},
	I16: {
		{0xaaaa, 0x5555, 1},
		{0xcccc, 0x3333, 2},
		{0xf0f0, 0x0f0f, 4},
	},
	I32: {
		{0xaaaaaaaa, 0x55555555, 1},
		{0xcccccccc, 0x33333333, 2},
		{0xf0f0f0f0, 0x0f0f0f0f, 4},
		{int64(0xff00ff00), 0x00ff00ff, 8},
	},
	I64: {
		{int64(-6148914691236517206), 0x5555555555555555, 1}, // 0xaaaa... / 0x5555...
		{int64(-3689348814741910324), 0x3333333333333333, 2}, // 0xcccc... / 0x3333...
		{int64(-1085102592571150096), 0x0f0f0f0f0f0f0f0f, 4}, // 0xf0f0... / 0x0f0f...
		{int64(-71777214294589696), 0x00ff00ff00ff00ff, 8},   // 0xff00... / 0x00ff...
		{int64(-281470681808896), 0x0000ffff0000ffff, 16},    // 0xffff0000... / 0x0000ffff...
	},
}

func expandBitrev(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	ty := f.ValueType(x)
	stages, ok := bitrevStages[ty]
	if !ok {
		return false
	}
	pos := NewCursor(f)
	pos.GotoInst(inst)
	v := x
	for _, s := range stages {
		a := pos.InsBinaryImm(OpBandImm, v, s.maskHi)
		a = pos.InsBinaryImm(OpUshrImm, a, s.shift)
		b := pos.InsBinaryImm(OpBandImm, v, s.maskLo)
		b = pos.InsBinaryImm(OpIshlImm, b, s.shift)
		v = pos.InsBinary(OpBor, a, b)
	}
	half := int64(ty.Bits() / 2)
	a := pos.InsBinaryImm(OpUshrImm, v, half)
	b := pos.InsBinaryImm(OpIshlImm, v, half)
	f.ReplaceWithBinary(inst, OpBor, a, b)
	return true
}

func expandIaddCout(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x, y := id.Args[0], id.Args[1]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	sum := pos.InsBinary(OpIadd, x, y)
	// Unsigned overflow iff the sum wrapped below an addend.
	carry := pos.InsIcmp(IntUnsignedLessThan, sum, x)
	replaceWithAliases(f, inst, sum, carry)
	return true
}

func expandIaddCin(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x, y, c := id.Args[0], id.Args[1], id.Args[2]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a := pos.InsBinary(OpIadd, x, y)
	ci := pos.InsConv(OpBint, f.ValueType(x), c)
	f.ReplaceWithBinary(inst, OpIadd, a, ci)
	return true
}

func expandIaddCarry(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x, y, cin := id.Args[0], id.Args[1], id.Args[2]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a, c1 := pos.InsPairResult(OpIaddCout, x, y, B1)
	ci := pos.InsConv(OpBint, f.ValueType(x), cin)
	sum, c2 := pos.InsPairResult(OpIaddCout, a, ci, B1)
	cout := pos.InsBinary(OpBor, c1, c2)
	replaceWithAliases(f, inst, sum, cout)
	return true
}

func expandIsubBout(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x, y := id.Args[0], id.Args[1]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	diff := pos.InsBinary(OpIsub, x, y)
	borrow := pos.InsIcmp(IntUnsignedLessThan, x, y)
	replaceWithAliases(f, inst, diff, borrow)
	return true
}

func expandIsubBin(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x, y, b := id.Args[0], id.Args[1], id.Args[2]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a := pos.InsBinary(OpIsub, x, y)
	bi := pos.InsConv(OpBint, f.ValueType(x), b)
	f.ReplaceWithBinary(inst, OpIsub, a, bi)
	return true
}

func expandIsubBorrow(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x, y, bin := id.Args[0], id.Args[1], id.Args[2]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a, b1 := pos.InsPairResult(OpIsubBout, x, y, B1)
	bi := pos.InsConv(OpBint, f.ValueType(x), bin)
	diff, b2 := pos.InsPairResult(OpIsubBout, a, bi, B1)
	bout := pos.InsBinary(OpBor, b1, b2)
	replaceWithAliases(f, inst, diff, bout)
	return true
}

// floatSignMask returns the IEEE sign bit pattern for the type.
func floatSignMask(ty Type) int64 {
	if ty == F32 {
		return 0x80000000
	}
	return -1 << 63 // 0x8000000000000000
}

func expandFabs(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	ty := f.ValueType(x)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	mask := pos.InsFconst(ty, floatSignMask(ty))
	f.ReplaceWithBinary(inst, OpBandNot, x, mask)
	return true
}

func expandFneg(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	ty := f.ValueType(x)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	mask := pos.InsFconst(ty, floatSignMask(ty))
	f.ReplaceWithBinary(inst, OpBxor, x, mask)
	return true
}

func expandFcopysign(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x, y := id.Args[0], id.Args[1]
	ty := f.ValueType(x)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	mask := pos.InsFconst(ty, floatSignMask(ty))
	magnitude := pos.InsBinary(OpBandNot, x, mask)
	sign := pos.InsBinary(OpBand, y, mask)
	f.ReplaceWithBinary(inst, OpBor, magnitude, sign)
	return true
}

func expandFconst(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	ity, fty := I32, F32
	if id.Op == OpF64const {
		ity, fty = I64, F64
	}
	pos := NewCursor(f)
	pos.GotoInst(inst)
	bits := pos.InsIconst(ity, id.Imm)
	f.ReplaceWith(inst, instData{Op: OpBitcast, Ty: fty, Args: []Value{bits}})
	return true
}

func expandStackLoad(f *Function, inst Inst, isa *ISA) bool {
	id := f.InstData(inst)
	ty := f.ValueType(f.FirstResult(inst))
	pos := NewCursor(f)
	pos.GotoInst(inst)
	addr := pos.InsStackAddr(isa.PointerType, id.SS, id.Offset)
	f.ReplaceWith(inst, instData{Op: OpLoad, Ty: ty, Args: []Value{addr}})
	return true
}

func expandStackStore(f *Function, inst Inst, isa *ISA) bool {
	id := f.InstData(inst)
	data := id.Args[0]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	addr := pos.InsStackAddr(isa.PointerType, id.SS, id.Offset)
	f.ReplaceWith(inst, instData{Op: OpStore, Args: []Value{data, addr}})
	return true
}

// expandCondTrap turns a conditional trap into a branch over the trap:
//
//	trapz x, code        brnz x, resume
//	...          =>      trap code
//	                   resume:
//	                     ...
func expandCondTrap(f *Function, inst Inst, cfg *ControlFlowGraph, skip Opcode) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	code := id.Trap
	block := f.InstBlock(inst)

	resume := f.NewBlockAfter(block)
	f.moveTailTo(inst, resume)
	f.RemoveInst(inst)
	pos := NewCursor(f)
	pos.GotoBottom(block)
	if skip == OpBrz {
		pos.InsBrz(x, resume)
	} else {
		pos.InsBrnz(x, resume)
	}
	pos.InsTrap(code)
	cfg.RecomputeBlock(f, block, resume)
	return true
}

// expandCondTrapFlags keeps the condition in CPU flags.
func expandCondTrapFlags(f *Function, inst Inst, cc IntCC) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	code := id.Trap
	pos := NewCursor(f)
	pos.GotoInst(inst)
	flags := pos.InsIfcmpImm(x, 0)
	pos.InsTrapif(cc, flags, code)
	f.RemoveInst(inst)
	return true
}

func expandBrIcmp(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	cc := id.Cond
	x, y := id.Args[0], id.Args[1]
	dest := id.Dest
	args := id.DestArgs
	pos := NewCursor(f)
	pos.GotoInst(inst)
	c := pos.InsIcmp(cc, x, y)
	f.ReplaceWith(inst, instData{Op: OpBrnz, Args: []Value{c}, Dest: dest, DestArgs: args})
	return true
}

// expandBrTable lowers a table branch. With jump tables enabled the
// target address is computed from the table; otherwise the table
// becomes a chain of compare-and-branch instructions ending in a jump
// to the default block.
func expandBrTable(f *Function, inst Inst, cfg *ControlFlowGraph, isa *ISA) bool {
	if isa.Shared.JumpTablesEnabled() {
		return expandBrTableJt(f, inst, cfg, isa)
	}
	return expandBrTableConds(f, inst, cfg)
}

func expandBrTableJt(f *Function, inst Inst, cfg *ControlFlowGraph, isa *ISA) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	jt := id.JT
	def := id.Dest
	block := f.InstBlock(inst)
	ptr := isa.PointerType

	// Bounds check first: out of range goes to the default block.
	pos := NewCursor(f)
	pos.GotoInst(inst)
	oob := pos.InsIcmpImm(IntUnsignedGreaterThanOrEqual, x, int64(len(f.JumpTables[jt])))
	pos.InsBrnz(oob, def)

	base, _ := pos.InsInst(instData{Op: OpJumpTableBase, Ty: ptr, JT: jt}, ptr)
	entry, _ := pos.InsInst(instData{Op: OpJumpTableEntry, Ty: ptr, Args: []Value{x}, JT: jt}, ptr)
	addr := pos.InsBinary(OpIadd, f.FirstResult(base), f.FirstResult(entry))
	f.ReplaceWith(inst, instData{Op: OpIndirectJumpTableBr, Args: []Value{addr}, JT: jt})
	cfg.RecomputeBlock(f, block)
	return true
}

func expandBrTableConds(f *Function, inst Inst, cfg *ControlFlowGraph) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	jt := id.JT
	def := id.Dest
	block := f.InstBlock(inst)
	ty := f.ValueType(x)

	pos := NewCursor(f)
	pos.GotoInst(inst)
	for i, dest := range f.JumpTables[jt] {
		c := pos.InsIconst(ty, int64(i))
		pos.InsBrIcmp(IntEqual, x, c, dest)
	}
	f.ReplaceWithJump(inst, def)
	cfg.RecomputeBlock(f, block)
	return true
}

// expandSelect materializes a select with a branch and a block
// parameter carrying the chosen value.
func expandSelect(f *Function, inst Inst, cfg *ControlFlowGraph) bool {
	id := f.InstData(inst)
	c, tv, fv := id.Args[0], id.Args[1], id.Args[2]
	ty := f.ValueType(tv)
	block := f.InstBlock(inst)

	merge := f.NewBlockAfter(block)
	f.moveTailTo(inst, merge)
	param := f.AppendBlockParam(merge, ty)

	res := f.FirstResult(inst)
	f.clearResults(inst)
	f.ReplaceWith(inst, instData{Op: OpBrnz, Args: []Value{c}, Dest: merge, DestArgs: []Value{tv}})
	pos := NewCursor(f)
	pos.GotoBottom(block)
	pos.InsJump(merge, fv)
	f.ChangeToAlias(res, param)
	cfg.RecomputeBlock(f, block, merge)
	return true
}
