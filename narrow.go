// Completion: 100% - narrow legalization rules complete
package legalize

// The narrow group rewrites an instruction on a type wider than the
// registers into instructions on its two halves, obtained with isplit
// and rebuilt with iconcat. Every rule leaves the original result
// value as an iconcat of the halves so consumers are untouched; the
// scaffolding dissolves once both sides of each split are narrowed.

func narrow(f *Function, inst Inst, cfg *ControlFlowGraph, isa *ISA) bool {
	// Every rule splits the controlling type in half.
	if !tsScalarWide.Contains(f.CtrlType(inst)) {
		return false
	}
	id := f.InstData(inst)
	switch id.Op {
	case OpBand, OpBor, OpBxor:
		return narrowBinaryLanewise(f, inst, id.Op)
	case OpBandNot, OpBorNot, OpBxorNot:
		return narrowBinaryLanewise(f, inst, id.Op)
	case OpBnot:
		return narrowBnot(f, inst)
	case OpIadd:
		return narrowIadd(f, inst, OpIaddCout, OpIaddCin)
	case OpIsub:
		return narrowIsub(f, inst, OpIsubBout, OpIsubBin)
	case OpImul:
		return narrowImul(f, inst)
	case OpIcmp:
		return narrowIcmp(f, inst)
	case OpIcmpImm:
		return narrowIcmpImm(f, inst)
	case OpIconst:
		return narrowIconst(f, inst)
	case OpSelect:
		return narrowSelect(f, inst)
	case OpBrz, OpBrnz:
		return narrowBranchOnInt(f, inst, cfg)
	case OpLoad:
		return narrowLoad(f, inst)
	case OpStore:
		return narrowStore(f, inst)
	case OpIsplit:
		return cancelIsplit(f, inst)
	}
	return false
}

// narrowFlags narrows iadd/isub through the CPU flags carry chain
// instead of explicit boolean carries.
func narrowFlags(f *Function, inst Inst, cfg *ControlFlowGraph, isa *ISA) bool {
	if !tsScalarWide.Contains(f.CtrlType(inst)) {
		return false
	}
	id := f.InstData(inst)
	switch id.Op {
	case OpIadd:
		return narrowIadd(f, inst, OpIaddIfcout, OpIaddIfcin)
	case OpIsub:
		return narrowIsub(f, inst, OpIsubIfbout, OpIsubIfbin)
	}
	return narrow(f, inst, cfg, isa)
}

// narrowNoFlags is the narrow group for targets without a flags
// register; the base rules already use boolean carries.
func narrowNoFlags(f *Function, inst Inst, cfg *ControlFlowGraph, isa *ISA) bool {
	return narrow(f, inst, cfg, isa)
}

func narrowBinaryLanewise(f *Function, inst Inst, op Opcode) bool {
	id := f.InstData(inst)
	x, y := id.Args[0], id.Args[1]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	xl, xh := splitValue(pos, x)
	yl, yh := splitValue(pos, y)
	lo := pos.InsBinary(op, xl, yl)
	hi := pos.InsBinary(op, xh, yh)
	f.ReplaceWithBinary(inst, OpIconcat, lo, hi)
	return true
}

func narrowBnot(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	xl, xh := splitValue(pos, x)
	lo := pos.InsUnary(OpBnot, xl)
	hi := pos.InsUnary(OpBnot, xh)
	f.ReplaceWithBinary(inst, OpIconcat, lo, hi)
	return true
}

// narrowIadd chains the halves through a carry: the low halves add
// with carry out, the high halves consume it.
func narrowIadd(f *Function, inst Inst, coutOp, cinOp Opcode) bool {
	id := f.InstData(inst)
	x, y := id.Args[0], id.Args[1]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	xl, xh := splitValue(pos, x)
	yl, yh := splitValue(pos, y)
	carryTy := B1
	if coutOp == OpIaddIfcout {
		carryTy = IFLAGS
	}
	lo, carry := pos.InsPairResult(coutOp, xl, yl, carryTy)
	hi := pos.InsTernary(cinOp, xh, yh, carry, xh)
	f.ReplaceWithBinary(inst, OpIconcat, lo, hi)
	return true
}

func narrowIsub(f *Function, inst Inst, boutOp, binOp Opcode) bool {
	id := f.InstData(inst)
	x, y := id.Args[0], id.Args[1]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	xl, xh := splitValue(pos, x)
	yl, yh := splitValue(pos, y)
	borrowTy := B1
	if boutOp == OpIsubIfbout {
		borrowTy = IFLAGS
	}
	lo, borrow := pos.InsPairResult(boutOp, xl, yl, borrowTy)
	hi := pos.InsTernary(binOp, xh, yh, borrow, xh)
	f.ReplaceWithBinary(inst, OpIconcat, lo, hi)
	return true
}

// narrowImul builds the product from three half-width multiplies:
// the low product, and the high half from the cross products plus the
// carry out of the low product.
func narrowImul(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x, y := id.Args[0], id.Args[1]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	xl, xh := splitValue(pos, x)
	yl, yh := splitValue(pos, y)
	lo := pos.InsBinary(OpImul, xl, yl)
	c1 := pos.InsBinary(OpImul, xh, yl)
	c2 := pos.InsBinary(OpImul, xl, yh)
	c3 := pos.InsBinary(OpUmulhi, xl, yl)
	hi := pos.InsBinary(OpIadd, c1, c2)
	hi = pos.InsBinary(OpIadd, hi, c3)
	f.ReplaceWithBinary(inst, OpIconcat, lo, hi)
	return true
}

// narrowIcmp compares wide values half by half. Equality is a pair of
// half compares; orderings decide on the high halves and fall back to
// an unsigned low compare when they tie.
func narrowIcmp(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	cc := id.Cond
	x, y := id.Args[0], id.Args[1]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	xl, xh := splitValue(pos, x)
	yl, yh := splitValue(pos, y)

	switch cc {
	case IntEqual:
		lo := pos.InsIcmp(IntEqual, xl, yl)
		hi := pos.InsIcmp(IntEqual, xh, yh)
		f.ReplaceWithBinary(inst, OpBand, lo, hi)
	case IntNotEqual:
		lo := pos.InsIcmp(IntNotEqual, xl, yl)
		hi := pos.InsIcmp(IntNotEqual, xh, yh)
		f.ReplaceWithBinary(inst, OpBor, lo, hi)
	default:
		b1 := pos.InsIcmp(cc.WithoutEqual(), xh, yh)
		b2 := pos.InsIcmp(IntNotEqual, xh, yh)
		b3 := pos.InsIcmp(cc.Unsigned(), xl, yl)
		c1 := pos.InsUnary(OpBnot, b2)
		c2 := pos.InsBinary(OpBand, c1, b3)
		f.ReplaceWithBinary(inst, OpBor, b1, c2)
	}
	return true
}

func narrowIcmpImm(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	cc := id.Cond
	x := id.Args[0]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	y := pos.InsIconst(f.ValueType(x), id.Imm)
	f.ReplaceWith(inst, instData{Op: OpIcmp, Cond: cc, Args: []Value{x, y}})
	return true
}

// narrowIconst splits the constant into half-width constants. The
// immediate field is 64 bits, so an i128 constant is the
// sign-extension of its low half.
func narrowIconst(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	ty := f.ValueType(f.FirstResult(inst))
	half := ty.HalfWidth()
	if half == INVALID {
		return false
	}
	pos := NewCursor(f)
	pos.GotoInst(inst)
	imm := id.Imm
	var loBits, hiBits int64
	if ty == I128 {
		loBits = imm
		hiBits = imm >> 63
	} else {
		// Halves are stored sign-extended, like every immediate.
		shift := uint(half.Bits())
		loBits = imm << (64 - shift) >> (64 - shift)
		hiBits = imm >> shift
	}
	lo := pos.InsIconst(half, loBits)
	hi := pos.InsIconst(half, hiBits)
	f.ReplaceWithBinary(inst, OpIconcat, lo, hi)
	return true
}

func narrowSelect(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	c, tv, fv := id.Args[0], id.Args[1], id.Args[2]
	pos := NewCursor(f)
	pos.GotoInst(inst)
	tl, th := splitValue(pos, tv)
	fl, fh := splitValue(pos, fv)
	lo := pos.InsSelect(c, tl, fl)
	hi := pos.InsSelect(c, th, fh)
	f.ReplaceWithBinary(inst, OpIconcat, lo, hi)
	return true
}

// narrowBranchOnInt tests a wide value for zero by or-ing its halves.
func narrowBranchOnInt(f *Function, inst Inst, cfg *ControlFlowGraph) bool {
	id := f.InstData(inst)
	op := id.Op
	x := id.Args[0]
	dest := id.Dest
	args := id.DestArgs
	pos := NewCursor(f)
	pos.GotoInst(inst)
	xl, xh := splitValue(pos, x)
	c := pos.InsBinary(OpBor, xl, xh)
	f.ReplaceWith(inst, instData{Op: op, Args: []Value{c}, Dest: dest, DestArgs: args})
	return true
}

func narrowLoad(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	addr := id.Args[0]
	offset := id.Offset
	ty := f.ValueType(f.FirstResult(inst))
	half := ty.HalfWidth()
	if half == INVALID {
		return false
	}
	delta := int32(half.Bits() / 8)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	lo := pos.InsLoad(OpLoad, half, addr, offset)
	hi := pos.InsLoad(OpLoad, half, addr, offset+delta)
	f.ReplaceWithBinary(inst, OpIconcat, lo, hi)
	return true
}

func narrowStore(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	data, addr := id.Args[0], id.Args[1]
	offset := id.Offset
	ty := f.ValueType(data)
	half := ty.HalfWidth()
	if half == INVALID {
		return false
	}
	delta := int32(half.Bits() / 8)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	dl, dh := splitValue(pos, data)
	pos.InsStore(OpStore, dl, addr, offset)
	f.ReplaceWith(inst, instData{Op: OpStore, Args: []Value{dh, addr}, Offset: offset + delta})
	return true
}
