// Completion: 100% - widen legalization rules complete
package legalize

// The widen group promotes 8- and 16-bit operations to 32 bits, the
// narrowest width most targets can encode. Operands are zero- or
// sign-extended as the operation demands, the 32-bit form runs, and
// the result is reduced back so the surrounding code keeps its types.

// widenTo is the width every narrow operation is promoted to.
const widenTo = I32

func widen(f *Function, inst Inst, cfg *ControlFlowGraph, isa *ISA) bool {
	id := f.InstData(inst)
	ty := f.CtrlType(inst)
	if id.Op == OpBrTable {
		// br_table is not polymorphic; the index operand decides.
		ty = f.ValueType(id.Args[0])
	}
	if !tsScalarNarrow.Contains(ty) {
		return false
	}
	switch id.Op {
	// Result truncation makes the extension kind irrelevant for these.
	case OpIadd, OpIsub, OpImul, OpBand, OpBor, OpBxor, OpBnot:
		return widenBinary(f, inst, id.Op, OpUextend)
	case OpUdiv, OpUrem:
		return widenBinary(f, inst, id.Op, OpUextend)
	case OpSdiv, OpSrem:
		return widenBinary(f, inst, id.Op, OpSextend)

	case OpIaddImm, OpImulImm, OpBandImm, OpBorImm, OpBxorImm, OpIrsubImm,
		OpUdivImm, OpUremImm:
		return widenBinaryImm(f, inst, id.Op, OpUextend)
	case OpSdivImm, OpSremImm:
		return widenBinaryImm(f, inst, id.Op, OpSextend)

	case OpIshl, OpUshr, OpSshr:
		return widenShift(f, inst, id.Op)
	case OpIshlImm, OpUshrImm, OpSshrImm:
		return widenShiftImm(f, inst, id.Op)

	case OpIconst:
		return widenIconst(f, inst)
	case OpBint:
		return widenBint(f, inst)

	case OpClz:
		return widenBitcount(f, inst, OpClz, OpUextend, true)
	case OpCls:
		return widenBitcount(f, inst, OpCls, OpSextend, true)
	case OpCtz:
		return widenCtz(f, inst)
	case OpPopcnt:
		return widenBitcount(f, inst, OpPopcnt, OpUextend, false)

	case OpIcmp:
		return widenIcmp(f, inst)
	case OpIcmpImm:
		return widenIcmpImm(f, inst)

	case OpBrz, OpBrnz:
		return widenBranchOnInt(f, inst)
	case OpBrTable:
		return widenBrTableIndex(f, inst)
	}
	return false
}

// extendOp picks the extension matching a condition code's signedness.
func extendOp(cc IntCC) Opcode {
	if cc.IsSigned() {
		return OpSextend
	}
	return OpUextend
}

func widenBinary(f *Function, inst Inst, op, ext Opcode) bool {
	id := f.InstData(inst)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	ty := f.ValueType(id.Args[0])
	if id.Op == OpBnot {
		a := pos.InsConv(ext, widenTo, id.Args[0])
		r := pos.InsUnary(OpBnot, a)
		f.ReplaceWith(inst, instData{Op: OpIreduce, Ty: ty, Args: []Value{r}})
		return true
	}
	a := pos.InsConv(ext, widenTo, id.Args[0])
	b := pos.InsConv(ext, widenTo, id.Args[1])
	r := pos.InsBinary(op, a, b)
	f.ReplaceWith(inst, instData{Op: OpIreduce, Ty: ty, Args: []Value{r}})
	return true
}

func widenBinaryImm(f *Function, inst Inst, op, ext Opcode) bool {
	id := f.InstData(inst)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	ty := f.ValueType(id.Args[0])
	a := pos.InsConv(ext, widenTo, id.Args[0])
	r := pos.InsBinaryImm(op, a, id.Imm)
	f.ReplaceWith(inst, instData{Op: OpIreduce, Ty: ty, Args: []Value{r}})
	return true
}

// widenShift masks the shift amount to the original width so the
// promoted shift cannot see bits the narrow one would ignore.
func widenShift(f *Function, inst Inst, op Opcode) bool {
	id := f.InstData(inst)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	x, y := id.Args[0], id.Args[1]
	ty := f.ValueType(x)
	ext := OpUextend
	if op == OpSshr {
		ext = OpSextend
	}
	a := pos.InsConv(ext, widenTo, x)
	amt := pos.InsBinaryImm(OpBandImm, y, int64(ty.Bits()-1))
	r := pos.InsBinary(op, a, amt)
	f.ReplaceWith(inst, instData{Op: OpIreduce, Ty: ty, Args: []Value{r}})
	return true
}

func widenShiftImm(f *Function, inst Inst, op Opcode) bool {
	id := f.InstData(inst)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	x := id.Args[0]
	ty := f.ValueType(x)
	ext := OpUextend
	if op == OpSshrImm {
		ext = OpSextend
	}
	a := pos.InsConv(ext, widenTo, x)
	r := pos.InsBinaryImm(op, a, id.Imm&int64(ty.Bits()-1))
	f.ReplaceWith(inst, instData{Op: OpIreduce, Ty: ty, Args: []Value{r}})
	return true
}

func widenIconst(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	ty := f.ValueType(f.FirstResult(inst))
	pos := NewCursor(f)
	pos.GotoInst(inst)
	c := pos.InsIconst(widenTo, id.Imm)
	f.ReplaceWith(inst, instData{Op: OpIreduce, Ty: ty, Args: []Value{c}})
	return true
}

func widenBint(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	ty := f.ValueType(f.FirstResult(inst))
	pos := NewCursor(f)
	pos.GotoInst(inst)
	b := pos.InsConv(OpBint, widenTo, id.Args[0])
	f.ReplaceWith(inst, instData{Op: OpIreduce, Ty: ty, Args: []Value{b}})
	return true
}

// widenBitcount runs the count at 32 bits. Leading-bit counts see
// extra high bits, so the result is adjusted down by the widening
// amount; popcnt needs no adjustment.
func widenBitcount(f *Function, inst Inst, op, ext Opcode, adjust bool) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	ty := f.ValueType(x)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a := pos.InsConv(ext, widenTo, x)
	c := pos.InsUnary(op, a)
	if adjust {
		c = pos.InsBinaryImm(OpIaddImm, c, int64(ty.Bits()-widenTo.Bits()))
	}
	f.ReplaceWith(inst, instData{Op: OpIreduce, Ty: ty, Args: []Value{c}})
	return true
}

// widenCtz sets a guard bit just above the original width so the count
// can never run into the widened zeros.
func widenCtz(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	x := id.Args[0]
	ty := f.ValueType(x)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a := pos.InsConv(OpUextend, widenTo, x)
	g := pos.InsBinaryImm(OpBorImm, a, int64(1)<<uint(ty.Bits()))
	c := pos.InsUnary(OpCtz, g)
	f.ReplaceWith(inst, instData{Op: OpIreduce, Ty: ty, Args: []Value{c}})
	return true
}

func widenIcmp(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	cc := id.Cond
	ext := extendOp(cc)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a := pos.InsConv(ext, widenTo, id.Args[0])
	b := pos.InsConv(ext, widenTo, id.Args[1])
	f.ReplaceWith(inst, instData{Op: OpIcmp, Cond: cc, Args: []Value{a, b}})
	return true
}

func widenIcmpImm(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	cc := id.Cond
	ext := extendOp(cc)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a := pos.InsConv(ext, widenTo, id.Args[0])
	f.ReplaceWith(inst, instData{Op: OpIcmpImm, Cond: cc, Args: []Value{a}, Imm: id.Imm})
	return true
}

func widenBranchOnInt(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	op := id.Op
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a := pos.InsConv(OpUextend, widenTo, id.Args[0])
	f.ReplaceWith(inst, instData{Op: op, Args: []Value{a}, Dest: id.Dest, DestArgs: id.DestArgs})
	return true
}

func widenBrTableIndex(f *Function, inst Inst) bool {
	id := f.InstData(inst)
	pos := NewCursor(f)
	pos.GotoInst(inst)
	a := pos.InsConv(OpUextend, widenTo, id.Args[0])
	f.InstData(inst).Args[0] = a
	return true
}
