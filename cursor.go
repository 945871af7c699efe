// Completion: 100% - insertion cursor and instruction builders complete
package legalize

// Cursor is an insertion point in a function. It sits between two
// instructions of a block: new instructions are inserted before the
// current instruction, or appended when the cursor is at the end of the
// block. The legalizer drives a cursor across every block and rewinds
// it after each rewrite so replacement code is rescanned.
type Cursor struct {
	F     *Function
	block Block
	inst  Inst // next instruction to visit; NoInst means end of block
}

// NewCursor returns a cursor over f with no position.
func NewCursor(f *Function) *Cursor {
	return &Cursor{F: f}
}

// Block returns the block the cursor is in.
func (c *Cursor) Block() Block { return c.block }

// GotoTop positions the cursor before the first instruction of b.
func (c *Cursor) GotoTop(b Block) {
	c.block = b
	c.inst = c.F.FirstInst(b)
}

// GotoInst positions the cursor just before inst i.
func (c *Cursor) GotoInst(i Inst) {
	c.block = c.F.InstBlock(i)
	c.inst = i
}

// GotoAfter positions the cursor just after inst i in block b. Passing
// NoInst positions it at the top of b.
func (c *Cursor) GotoAfter(i Inst, b Block) {
	c.block = b
	if i == NoInst {
		c.inst = c.F.FirstInst(b)
	} else {
		c.inst = c.F.NextInst(i)
	}
}

// GotoBottom positions the cursor at the end of b, after the
// terminator.
func (c *Cursor) GotoBottom(b Block) {
	c.block = b
	c.inst = NoInst
}

// NextInst returns the instruction at the cursor and advances past it.
// Returns NoInst at the end of the block.
func (c *Cursor) NextInst() Inst {
	i := c.inst
	if i != NoInst {
		c.inst = c.F.NextInst(i)
	}
	return i
}

// insert links a fresh instruction at the cursor position.
func (c *Cursor) insert(data instData) Inst {
	i := c.F.newInst(data)
	if c.inst != NoInst {
		c.F.insertInstBefore(i, c.inst)
	} else {
		c.F.appendInst(i, c.block)
	}
	return i
}

// InsInst inserts an instruction with explicit result types and
// returns it together with its result values.
func (c *Cursor) InsInst(data instData, resultTys ...Type) (Inst, []Value) {
	i := c.insert(data)
	for _, ty := range resultTys {
		c.F.appendResult(i, ty)
	}
	return i, c.F.InstResults(i)
}

// InsIconst inserts an integer constant of the given type.
func (c *Cursor) InsIconst(ty Type, imm int64) Value {
	i := c.insert(instData{Op: OpIconst, Ty: ty, Imm: imm})
	return c.F.appendResult(i, ty)
}

// InsFconst inserts a floating point constant from its bit pattern.
func (c *Cursor) InsFconst(ty Type, bits int64) Value {
	op := OpF32const
	if ty == F64 {
		op = OpF64const
	}
	i := c.insert(instData{Op: op, Ty: ty, Imm: bits})
	return c.F.appendResult(i, ty)
}

// InsBinary inserts a two-operand instruction whose result has the type
// of the first operand.
func (c *Cursor) InsBinary(op Opcode, x, y Value) Value {
	i := c.insert(instData{Op: op, Args: []Value{x, y}})
	return c.F.appendResult(i, c.F.ValueType(x))
}

// InsBinaryImm inserts an immediate-form binary instruction.
func (c *Cursor) InsBinaryImm(op Opcode, x Value, imm int64) Value {
	i := c.insert(instData{Op: op, Args: []Value{x}, Imm: imm})
	return c.F.appendResult(i, c.F.ValueType(x))
}

// InsUnary inserts a one-operand instruction preserving the type.
func (c *Cursor) InsUnary(op Opcode, x Value) Value {
	i := c.insert(instData{Op: op, Args: []Value{x}})
	return c.F.appendResult(i, c.F.ValueType(x))
}

// InsConv inserts a type-changing unary: uextend, sextend, ireduce,
// bitcast or bint.
func (c *Cursor) InsConv(op Opcode, ty Type, x Value) Value {
	i := c.insert(instData{Op: op, Ty: ty, Args: []Value{x}})
	return c.F.appendResult(i, ty)
}

// InsIcmp inserts an integer compare producing a b1.
func (c *Cursor) InsIcmp(cc IntCC, x, y Value) Value {
	i := c.insert(instData{Op: OpIcmp, Cond: cc, Args: []Value{x, y}})
	return c.F.appendResult(i, B1)
}

// InsIcmpImm inserts an immediate integer compare producing a b1.
func (c *Cursor) InsIcmpImm(cc IntCC, x Value, imm int64) Value {
	i := c.insert(instData{Op: OpIcmpImm, Cond: cc, Args: []Value{x}, Imm: imm})
	return c.F.appendResult(i, B1)
}

// InsIfcmp inserts a flags-producing integer compare.
func (c *Cursor) InsIfcmp(x, y Value) Value {
	i := c.insert(instData{Op: OpIfcmp, Args: []Value{x, y}})
	return c.F.appendResult(i, IFLAGS)
}

// InsIfcmpImm inserts a flags-producing immediate compare.
func (c *Cursor) InsIfcmpImm(x Value, imm int64) Value {
	i := c.insert(instData{Op: OpIfcmpImm, Args: []Value{x}, Imm: imm})
	return c.F.appendResult(i, IFLAGS)
}

// InsIsplit inserts an isplit and returns the low and high halves.
func (c *Cursor) InsIsplit(x Value) (lo, hi Value) {
	half := c.F.ValueType(x).HalfWidth()
	i := c.insert(instData{Op: OpIsplit, Args: []Value{x}})
	lo = c.F.appendResult(i, half)
	hi = c.F.appendResult(i, half)
	return lo, hi
}

// InsIconcat inserts an iconcat of two halves.
func (c *Cursor) InsIconcat(lo, hi Value) Value {
	double := c.F.ValueType(lo).DoubleWidth()
	i := c.insert(instData{Op: OpIconcat, Args: []Value{lo, hi}})
	return c.F.appendResult(i, double)
}

// InsPairResult inserts an instruction with two results, like
// iadd_cout (sum, carry) or iadd_ifcout (sum, flags).
func (c *Cursor) InsPairResult(op Opcode, x, y Value, ty2 Type) (Value, Value) {
	i := c.insert(instData{Op: op, Args: []Value{x, y}})
	r0 := c.F.appendResult(i, c.F.ValueType(x))
	r1 := c.F.appendResult(i, ty2)
	return r0, r1
}

// InsTernary inserts a three-operand instruction whose result has the
// type of the second operand (select, iadd_cin, fcopysign style).
func (c *Cursor) InsTernary(op Opcode, a, b, d Value, resultFrom Value) Value {
	i := c.insert(instData{Op: op, Args: []Value{a, b, d}})
	return c.F.appendResult(i, c.F.ValueType(resultFrom))
}

// InsSelect inserts a select between x and y.
func (c *Cursor) InsSelect(cond, x, y Value) Value {
	return c.InsTernary(OpSelect, cond, x, y, x)
}

// InsJump inserts an unconditional jump.
func (c *Cursor) InsJump(dest Block, args ...Value) Inst {
	return c.insert(instData{Op: OpJump, Dest: dest, DestArgs: args})
}

// InsBrz inserts a branch taken when cond is zero.
func (c *Cursor) InsBrz(cond Value, dest Block, args ...Value) Inst {
	return c.insert(instData{Op: OpBrz, Args: []Value{cond}, Dest: dest, DestArgs: args})
}

// InsBrnz inserts a branch taken when cond is non-zero.
func (c *Cursor) InsBrnz(cond Value, dest Block, args ...Value) Inst {
	return c.insert(instData{Op: OpBrnz, Args: []Value{cond}, Dest: dest, DestArgs: args})
}

// InsBrIcmp inserts a fused compare-and-branch.
func (c *Cursor) InsBrIcmp(cc IntCC, x, y Value, dest Block, args ...Value) Inst {
	return c.insert(instData{Op: OpBrIcmp, Cond: cc, Args: []Value{x, y}, Dest: dest, DestArgs: args})
}

// InsTrap inserts an unconditional trap.
func (c *Cursor) InsTrap(code TrapCode) Inst {
	return c.insert(instData{Op: OpTrap, Trap: code})
}

// InsTrapif inserts a trap conditional on CPU flags.
func (c *Cursor) InsTrapif(cc IntCC, flags Value, code TrapCode) Inst {
	return c.insert(instData{Op: OpTrapif, Cond: cc, Args: []Value{flags}, Trap: code})
}

// InsCall inserts a call to an external function and returns the
// instruction; results follow the callee signature.
func (c *Cursor) InsCall(callee FuncRef, sig *Signature, args []Value) Inst {
	i := c.insert(instData{Op: OpCall, Func: callee, Args: args})
	for _, r := range sig.Returns {
		c.F.appendResult(i, r.Ty)
	}
	return i
}

// InsLoad inserts a typed load.
func (c *Cursor) InsLoad(op Opcode, ty Type, addr Value, offset int32) Value {
	i := c.insert(instData{Op: op, Ty: ty, Args: []Value{addr}, Offset: offset})
	return c.F.appendResult(i, ty)
}

// InsStore inserts a typed store.
func (c *Cursor) InsStore(op Opcode, data, addr Value, offset int32) Inst {
	return c.insert(instData{Op: op, Args: []Value{data, addr}, Offset: offset})
}

// InsStackAddr inserts a stack slot address computation.
func (c *Cursor) InsStackAddr(ty Type, ss StackSlot, offset int32) Value {
	i := c.insert(instData{Op: OpStackAddr, Ty: ty, SS: ss, Offset: offset})
	return c.F.appendResult(i, ty)
}

// ReplaceWith rewrites inst i in place, keeping its result values so
// existing uses observe the new definition. The result count must not
// shrink; surplus old results are not permitted.
func (f *Function) ReplaceWith(i Inst, data instData) {
	old := &f.insts[i]
	data.results = old.results
	data.block = old.block
	data.prev = old.prev
	data.next = old.next
	f.insts[i] = data
}

// ReplaceWithBinary rewrites inst i as a two-operand instruction.
func (f *Function) ReplaceWithBinary(i Inst, op Opcode, x, y Value) {
	f.ReplaceWith(i, instData{Op: op, Args: []Value{x, y}})
}

// ReplaceWithUnary rewrites inst i as a one-operand instruction.
func (f *Function) ReplaceWithUnary(i Inst, op Opcode, x Value) {
	f.ReplaceWith(i, instData{Op: op, Args: []Value{x}})
}

// ReplaceWithJump rewrites inst i as an unconditional jump.
func (f *Function) ReplaceWithJump(i Inst, dest Block, args ...Value) {
	f.ReplaceWith(i, instData{Op: OpJump, Dest: dest, DestArgs: args})
}
