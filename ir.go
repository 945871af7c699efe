// Completion: 100% - IR data model complete (opcodes, values, layout)
package legalize

import "fmt"

// Value names an SSA value: the result of an instruction or a block
// parameter. Value 0 is reserved as the invalid value.
type Value uint32

// Inst names an instruction in a function.
type Inst uint32

// Block names a basic block in a function.
type Block uint32

// JumpTableRef names a jump table attached to a function.
type JumpTableRef uint32

// FuncRef names an external function known to a function.
type FuncRef uint32

// SigRef names a signature attached to a function, used by indirect
// calls and external function declarations.
type SigRef uint32

// StackSlot names an explicit stack slot in a function's frame.
type StackSlot uint32

const (
	NoValue Value = 0
	NoInst  Inst  = 0
	NoBlock Block = 0
)

func (v Value) String() string { return fmt.Sprintf("v%d", uint32(v)) }
func (i Inst) String() string  { return fmt.Sprintf("inst%d", uint32(i)) }
func (b Block) String() string { return fmt.Sprintf("block%d", uint32(b)) }

// TrapCode describes the reason a trap instruction fires.
type TrapCode string

const (
	TrapStackOverflow    TrapCode = "stk_ovf"
	TrapHeapOutOfBounds  TrapCode = "heap_oob"
	TrapTableOutOfBounds TrapCode = "table_oob"
	TrapIntegerOverflow  TrapCode = "int_ovf"
	TrapIntegerDivision  TrapCode = "int_divz"
	TrapBadConversion    TrapCode = "bad_toint"
	TrapUser             TrapCode = "user"
)

// Opcode identifies an IR instruction kind.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Constants and conversions.
	OpIconst
	OpF32const
	OpF64const
	OpBint
	OpBitcast
	OpUextend
	OpSextend
	OpIreduce

	// Integer arithmetic.
	OpIadd
	OpIsub
	OpImul
	OpUmulhi
	OpSmulhi
	OpUdiv
	OpSdiv
	OpUrem
	OpSrem

	// Arithmetic with explicit carry/borrow values.
	OpIaddCin
	OpIaddCout
	OpIaddCarry
	OpIsubBin
	OpIsubBout
	OpIsubBorrow

	// Arithmetic using CPU flags for the carry chain.
	OpIaddIfcin
	OpIaddIfcout
	OpIsubIfbin
	OpIsubIfbout

	// Bitwise.
	OpBand
	OpBor
	OpBxor
	OpBnot
	OpBandNot
	OpBorNot
	OpBxorNot

	// Shifts and rotates.
	OpIshl
	OpUshr
	OpSshr
	OpRotl
	OpRotr

	// Bit counting and reversal.
	OpClz
	OpCls
	OpCtz
	OpPopcnt
	OpBitrev

	// Immediate forms.
	OpIaddImm
	OpImulImm
	OpIrsubImm
	OpUdivImm
	OpSdivImm
	OpUremImm
	OpSremImm
	OpBandImm
	OpBorImm
	OpBxorImm
	OpIshlImm
	OpUshrImm
	OpSshrImm
	OpRotlImm
	OpRotrImm
	OpIcmpImm
	OpIfcmpImm

	// Comparisons.
	OpIcmp
	OpIfcmp

	// Wide integer splitting.
	OpIsplit
	OpIconcat

	// Selection.
	OpSelect

	// Floating point sign manipulation.
	OpFabs
	OpFneg
	OpFcopysign

	// Control flow.
	OpJump
	OpBrz
	OpBrnz
	OpBrIcmp
	OpBrTable
	OpTrap
	OpTrapz
	OpTrapnz
	OpTrapif
	OpReturn
	OpCall
	OpCallIndirect

	// Lowered jump table access.
	OpJumpTableBase
	OpJumpTableEntry
	OpIndirectJumpTableBr

	// Memory.
	OpLoad
	OpStore
	OpUload8
	OpSload8
	OpIstore8
	OpUload16
	OpSload16
	OpIstore16
	OpUload32
	OpSload32
	OpIstore32
	OpStackLoad
	OpStackStore
	OpStackAddr

	// Register allocation support.
	OpCopy
	OpRegmove
	OpSpill
	OpFill
	OpCopyNop

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpInvalid:      "invalid",
	OpIconst:       "iconst",
	OpF32const:     "f32const",
	OpF64const:     "f64const",
	OpBint:         "bint",
	OpBitcast:      "bitcast",
	OpUextend:      "uextend",
	OpSextend:      "sextend",
	OpIreduce:      "ireduce",
	OpIadd:         "iadd",
	OpIsub:         "isub",
	OpImul:         "imul",
	OpUmulhi:       "umulhi",
	OpSmulhi:       "smulhi",
	OpUdiv:         "udiv",
	OpSdiv:         "sdiv",
	OpUrem:         "urem",
	OpSrem:         "srem",
	OpIaddCin:      "iadd_cin",
	OpIaddCout:     "iadd_cout",
	OpIaddCarry:    "iadd_carry",
	OpIsubBin:      "isub_bin",
	OpIsubBout:     "isub_bout",
	OpIsubBorrow:   "isub_borrow",
	OpIaddIfcin:    "iadd_ifcin",
	OpIaddIfcout:   "iadd_ifcout",
	OpIsubIfbin:    "isub_ifbin",
	OpIsubIfbout:   "isub_ifbout",
	OpBand:         "band",
	OpBor:          "bor",
	OpBxor:         "bxor",
	OpBnot:         "bnot",
	OpBandNot:      "band_not",
	OpBorNot:       "bor_not",
	OpBxorNot:      "bxor_not",
	OpIshl:         "ishl",
	OpUshr:         "ushr",
	OpSshr:         "sshr",
	OpRotl:         "rotl",
	OpRotr:         "rotr",
	OpClz:          "clz",
	OpCls:          "cls",
	OpCtz:          "ctz",
	OpPopcnt:       "popcnt",
	OpBitrev:       "bitrev",
	OpIaddImm:      "iadd_imm",
	OpImulImm:      "imul_imm",
	OpIrsubImm:     "irsub_imm",
	OpUdivImm:      "udiv_imm",
	OpSdivImm:      "sdiv_imm",
	OpUremImm:      "urem_imm",
	OpSremImm:      "srem_imm",
	OpBandImm:      "band_imm",
	OpBorImm:       "bor_imm",
	OpBxorImm:      "bxor_imm",
	OpIshlImm:      "ishl_imm",
	OpUshrImm:      "ushr_imm",
	OpSshrImm:      "sshr_imm",
	OpRotlImm:      "rotl_imm",
	OpRotrImm:      "rotr_imm",
	OpIcmpImm:      "icmp_imm",
	OpIfcmpImm:     "ifcmp_imm",
	OpIcmp:         "icmp",
	OpIfcmp:        "ifcmp",
	OpIsplit:       "isplit",
	OpIconcat:      "iconcat",
	OpSelect:       "select",
	OpFabs:         "fabs",
	OpFneg:         "fneg",
	OpFcopysign:    "fcopysign",
	OpJump:         "jump",
	OpBrz:          "brz",
	OpBrnz:         "brnz",
	OpBrIcmp:       "br_icmp",
	OpBrTable:      "br_table",
	OpTrap:         "trap",
	OpTrapz:        "trapz",
	OpTrapnz:       "trapnz",
	OpTrapif:       "trapif",
	OpReturn:       "return",
	OpCall:         "call",
	OpCallIndirect: "call_indirect",
	OpJumpTableBase:       "jump_table_base",
	OpJumpTableEntry:      "jump_table_entry",
	OpIndirectJumpTableBr: "indirect_jump_table_br",
	OpLoad:         "load",
	OpStore:        "store",
	OpUload8:       "uload8",
	OpSload8:       "sload8",
	OpIstore8:      "istore8",
	OpUload16:      "uload16",
	OpSload16:      "sload16",
	OpIstore16:     "istore16",
	OpUload32:      "uload32",
	OpSload32:      "sload32",
	OpIstore32:     "istore32",
	OpStackLoad:    "stack_load",
	OpStackStore:   "stack_store",
	OpStackAddr:    "stack_addr",
	OpCopy:         "copy",
	OpRegmove:      "regmove",
	OpSpill:        "spill",
	OpFill:         "fill",
	OpCopyNop:      "copy_nop",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("op%d", uint8(op))
}

// IsBranch reports whether the opcode transfers control to a block.
func (op Opcode) IsBranch() bool {
	switch op {
	case OpJump, OpBrz, OpBrnz, OpBrIcmp, OpBrTable, OpIndirectJumpTableBr:
		return true
	}
	return false
}

// IsTerminator reports whether the opcode must end a block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpJump, OpBrTable, OpIndirectJumpTableBr, OpTrap, OpReturn:
		return true
	}
	return false
}

// AbiParam is one parameter or return value in a signature.
type AbiParam struct {
	Ty Type
}

// Signature describes the parameters and returns of a function.
type Signature struct {
	Params  []AbiParam
	Returns []AbiParam
}

// ExtFuncData describes an external function referenced by name.
type ExtFuncData struct {
	Name string
	Sig  SigRef
}

// StackSlotData describes one explicit stack slot.
type StackSlotData struct {
	Size   uint32
	Offset int32
}

// LocKind says where a value lives after register allocation.
type LocKind uint8

const (
	LocNone LocKind = iota
	LocReg
	LocStack
)

// ValueLoc is a value's assigned location. The encoder consumes these;
// producing them is the register allocator's job.
type ValueLoc struct {
	Kind   LocKind
	Reg    RegUnit
	Offset int32
}

type valueKind uint8

const (
	vkInvalid valueKind = iota
	vkInstResult
	vkBlockParam
	vkAlias
)

type valueData struct {
	kind  valueKind
	ty    Type
	def   Inst   // defining instruction for vkInstResult
	block Block  // owning block for vkBlockParam
	num   uint16 // result or parameter index
	alias Value  // aliased value for vkAlias
}

// instData is the full payload of one instruction. Which fields are
// meaningful depends on the opcode; unused fields stay zero.
type instData struct {
	Op      Opcode
	Args    []Value
	results []Value

	Ty   Type  // explicit controlling type (constants, casts)
	Imm  int64 // immediate operand, or float bit pattern
	Cond IntCC

	Dest     Block   // branch destination / br_table default
	DestArgs []Value // arguments passed to Dest's block parameters
	JT       JumpTableRef
	Func     FuncRef
	Sig      SigRef
	SS       StackSlot
	Offset   int32
	Trap     TrapCode

	// Source and destination units of a regmove.
	RegFrom, RegTo RegUnit

	enc Encoding

	// Intrusive layout list.
	block      Block
	prev, next Inst
}

type blockData struct {
	params     []Value
	first, last Inst
	prev, next  Block
	inLayout    bool
}

// Function is an IR function: its data flow graph, block layout, and
// the auxiliary tables the legalizer and encoder work from.
type Function struct {
	Name string
	Sig  *Signature

	values []valueData
	insts  []instData
	blocks []blockData

	layoutHead, layoutTail Block

	JumpTables [][]Block
	Sigs       []*Signature
	ExtFuncs   []ExtFuncData
	StackSlots []StackSlotData

	// Locations carries the register allocator's value assignments.
	Locations map[Value]ValueLoc
}

// NewFunction creates an empty function with the given signature.
func NewFunction(name string, sig *Signature) *Function {
	return &Function{
		Name:      name,
		Sig:       sig,
		values:    make([]valueData, 1), // index 0 is NoValue
		insts:     make([]instData, 1),
		blocks:    make([]blockData, 1),
		Locations: make(map[Value]ValueLoc),
	}
}

// NewBlock creates a block and appends it to the layout.
func (f *Function) NewBlock() Block {
	b := Block(len(f.blocks))
	f.blocks = append(f.blocks, blockData{})
	f.appendBlockToLayout(b)
	return b
}

// NewBlockAfter creates a block placed immediately after prev in the
// layout. CFG expansions use this so new blocks are visited by the
// in-flight legalization scan.
func (f *Function) NewBlockAfter(prev Block) Block {
	b := Block(len(f.blocks))
	f.blocks = append(f.blocks, blockData{})
	f.insertBlockAfter(b, prev)
	return b
}

func (f *Function) appendBlockToLayout(b Block) {
	bd := &f.blocks[b]
	bd.inLayout = true
	bd.prev = f.layoutTail
	bd.next = NoBlock
	if f.layoutTail != NoBlock {
		f.blocks[f.layoutTail].next = b
	} else {
		f.layoutHead = b
	}
	f.layoutTail = b
}

func (f *Function) insertBlockAfter(b, prev Block) {
	bd := &f.blocks[b]
	pd := &f.blocks[prev]
	bd.inLayout = true
	bd.prev = prev
	bd.next = pd.next
	if pd.next != NoBlock {
		f.blocks[pd.next].prev = b
	} else {
		f.layoutTail = b
	}
	pd.next = b
}

// FirstBlock returns the entry block, or NoBlock for an empty function.
func (f *Function) FirstBlock() Block { return f.layoutHead }

// NextBlock returns the block after b in layout order.
func (f *Function) NextBlock(b Block) Block { return f.blocks[b].next }

// NumBlocks returns the number of blocks ever created.
func (f *Function) NumBlocks() int { return len(f.blocks) - 1 }

// AppendBlockParam adds a parameter of the given type to block b.
func (f *Function) AppendBlockParam(b Block, ty Type) Value {
	v := Value(len(f.values))
	f.values = append(f.values, valueData{
		kind:  vkBlockParam,
		ty:    ty,
		block: b,
		num:   uint16(len(f.blocks[b].params)),
	})
	f.blocks[b].params = append(f.blocks[b].params, v)
	return v
}

// BlockParams returns the parameter values of block b.
func (f *Function) BlockParams(b Block) []Value { return f.blocks[b].params }

// setBlockParams replaces the parameter list of b wholesale, renumbering
// the surviving values. Used by block parameter splitting.
func (f *Function) setBlockParams(b Block, params []Value) {
	f.blocks[b].params = params
	for i, v := range params {
		f.values[v].num = uint16(i)
	}
}

// newBlockParamValue mints a fresh parameter value for b without
// attaching it; the caller assembles the final list via setBlockParams.
func (f *Function) newBlockParamValue(b Block, ty Type) Value {
	v := Value(len(f.values))
	f.values = append(f.values, valueData{kind: vkBlockParam, ty: ty, block: b})
	return v
}

func (f *Function) newInst(data instData) Inst {
	i := Inst(len(f.insts))
	f.insts = append(f.insts, data)
	return i
}

// appendResult adds a result value of the given type to inst i.
func (f *Function) appendResult(i Inst, ty Type) Value {
	v := Value(len(f.values))
	id := &f.insts[i]
	f.values = append(f.values, valueData{
		kind: vkInstResult,
		ty:   ty,
		def:  i,
		num:  uint16(len(id.results)),
	})
	id.results = append(id.results, v)
	return v
}

// reattachResult re-appends an existing value as the next result of
// inst i. Boundary legalization uses this to rebuild a call's result
// list around split values.
func (f *Function) reattachResult(i Inst, v Value) {
	id := &f.insts[i]
	f.values[v].kind = vkInstResult
	f.values[v].def = i
	f.values[v].num = uint16(len(id.results))
	id.results = append(id.results, v)
}

// InstResults returns the result values of inst i.
func (f *Function) InstResults(i Inst) []Value { return f.insts[i].results }

// FirstResult returns the sole or first result of inst i.
func (f *Function) FirstResult(i Inst) Value { return f.insts[i].results[0] }

// InstData returns the mutable payload of inst i.
func (f *Function) InstData(i Inst) *instData { return &f.insts[i] }

// InstBlock returns the block inst i is linked into.
func (f *Function) InstBlock(i Inst) Block { return f.insts[i].block }

// ValueType returns the type of value v.
func (f *Function) ValueType(v Value) Type {
	return f.values[f.ResolveAliases(v)].ty
}

// ValueDef returns the defining instruction of v and the result index,
// or NoInst for block parameters.
func (f *Function) ValueDef(v Value) (Inst, int) {
	v = f.ResolveAliases(v)
	vd := &f.values[v]
	if vd.kind == vkInstResult {
		return vd.def, int(vd.num)
	}
	return NoInst, 0
}

// ResolveAliases follows an alias chain to the original value.
func (f *Function) ResolveAliases(v Value) Value {
	for f.values[v].kind == vkAlias {
		v = f.values[v].alias
	}
	return v
}

// ChangeToAlias turns dst into an alias of src. All existing uses of
// dst now observe src. dst must not be its own resolved target.
func (f *Function) ChangeToAlias(dst, src Value) {
	if f.ResolveAliases(src) == dst {
		panic(fmt.Sprintf("%s: alias cycle through %s", dst, src))
	}
	f.values[dst] = valueData{kind: vkAlias, ty: f.ValueType(src), alias: src}
}

// clearResults detaches the result values of inst i without touching
// the values themselves; the caller has aliased them already.
func (f *Function) clearResults(i Inst) {
	f.insts[i].results = nil
}

// appendInst links inst i at the end of block b.
func (f *Function) appendInst(i Inst, b Block) {
	id := &f.insts[i]
	bd := &f.blocks[b]
	id.block = b
	id.prev = bd.last
	id.next = NoInst
	if bd.last != NoInst {
		f.insts[bd.last].next = i
	} else {
		bd.first = i
	}
	bd.last = i
}

// insertInstBefore links inst i just before pos, which must be linked.
func (f *Function) insertInstBefore(i, pos Inst) {
	id := &f.insts[i]
	pd := &f.insts[pos]
	b := pd.block
	id.block = b
	id.prev = pd.prev
	id.next = pos
	if pd.prev != NoInst {
		f.insts[pd.prev].next = i
	} else {
		f.blocks[b].first = i
	}
	pd.prev = i
}

// RemoveInst unlinks inst i from its block.
func (f *Function) RemoveInst(i Inst) {
	id := &f.insts[i]
	b := id.block
	if id.prev != NoInst {
		f.insts[id.prev].next = id.next
	} else {
		f.blocks[b].first = id.next
	}
	if id.next != NoInst {
		f.insts[id.next].prev = id.prev
	} else {
		f.blocks[b].last = id.prev
	}
	id.block = NoBlock
	id.prev = NoInst
	id.next = NoInst
}

// moveTailTo moves every instruction after i into block dst, which
// must be empty, preserving their order. Used when an expansion splits
// a block around a new control flow edge.
func (f *Function) moveTailTo(i Inst, dst Block) {
	src := f.insts[i].block
	first := f.insts[i].next
	if first == NoInst {
		return
	}
	last := f.blocks[src].last
	f.insts[i].next = NoInst
	f.blocks[src].last = i
	f.blocks[dst].first = first
	f.blocks[dst].last = last
	f.insts[first].prev = NoInst
	for j := first; j != NoInst; j = f.insts[j].next {
		f.insts[j].block = dst
	}
}

// FirstInst returns the first instruction of block b.
func (f *Function) FirstInst(b Block) Inst { return f.blocks[b].first }

// LastInst returns the terminator of block b.
func (f *Function) LastInst(b Block) Inst { return f.blocks[b].last }

// NextInst returns the instruction after i within its block.
func (f *Function) NextInst(i Inst) Inst { return f.insts[i].next }

// PrevInst returns the instruction before i within its block.
func (f *Function) PrevInst(i Inst) Inst { return f.insts[i].prev }

// CtrlType returns the controlling type variable of inst i: the type
// the encoding tables are keyed on. For most instructions this is the
// type of the first result; compares, branches and stores are
// controlled by their first operand, and non-polymorphic instructions
// use INVALID.
func (f *Function) CtrlType(i Inst) Type {
	id := &f.insts[i]
	switch id.Op {
	case OpBrz, OpBrnz, OpBrIcmp, OpIcmp, OpIcmpImm, OpIfcmp, OpIfcmpImm,
		OpIsplit, OpStore, OpIstore8, OpIstore16, OpIstore32, OpSpill:
		return f.ValueType(id.Args[0])
	case OpJump, OpBrTable, OpIndirectJumpTableBr, OpTrap, OpTrapz,
		OpTrapnz, OpTrapif, OpReturn, OpCall, OpCallIndirect, OpStackStore:
		return INVALID
	}
	if len(id.results) > 0 {
		return f.ValueType(id.results[0])
	}
	if len(id.Args) > 0 {
		return f.ValueType(id.Args[0])
	}
	return INVALID
}

// Encoding returns the encoding assigned to inst i, if any.
func (f *Function) Encoding(i Inst) Encoding { return f.insts[i].enc }

// SetEncoding records the chosen encoding for inst i.
func (f *Function) SetEncoding(i Inst, e Encoding) { f.insts[i].enc = e }

// NewJumpTable attaches a jump table and returns its reference.
func (f *Function) NewJumpTable(targets []Block) JumpTableRef {
	f.JumpTables = append(f.JumpTables, targets)
	return JumpTableRef(len(f.JumpTables) - 1)
}

// NewSig attaches a signature for use by calls.
func (f *Function) NewSig(sig *Signature) SigRef {
	f.Sigs = append(f.Sigs, sig)
	return SigRef(len(f.Sigs) - 1)
}

// NewExtFunc declares an external function.
func (f *Function) NewExtFunc(name string, sig SigRef) FuncRef {
	f.ExtFuncs = append(f.ExtFuncs, ExtFuncData{Name: name, Sig: sig})
	return FuncRef(len(f.ExtFuncs) - 1)
}

// NewStackSlot creates an explicit stack slot of the given size.
func (f *Function) NewStackSlot(size uint32, offset int32) StackSlot {
	f.StackSlots = append(f.StackSlots, StackSlotData{Size: size, Offset: offset})
	return StackSlot(len(f.StackSlots) - 1)
}
