// Completion: 100% - RISC-V recipe emitters complete
package legalize

// riscvMachineWord assembles the fixed fields of a 32-bit RISC-V
// instruction from the recipe encoding bits and three register
// numbers. Immediate fields are ORed in on top by the emitters; for
// I-type instructions the funct7 bits land in imm[11:5], which is
// exactly where srai wants its 0100000 marker.
func riscvMachineWord(bits uint16, rd, rs1, rs2 RegUnit) uint32 {
	opcode5 := uint32(bits) & 0x1f
	funct3 := (uint32(bits) >> 5) & 0x7
	funct7 := (uint32(bits) >> 8) & 0x7f
	return 0x3 | opcode5<<2 | uint32(rd)<<7 | funct3<<12 |
		uint32(rs1)<<15 | uint32(rs2)<<20 | funct7<<25
}

// iImm places a 12-bit I-type immediate.
func iImm(imm int64) uint32 {
	return (uint32(imm) & 0xfff) << 20
}

// sImm places an S-type immediate, split across the rd and funct7
// fields.
func sImm(imm int32) uint32 {
	i := uint32(imm)
	return (i&0x1f)<<7 | (i>>5&0x7f)<<25
}

// sbImm places a 13-bit branch displacement in its scrambled SB-type
// bit order.
func sbImm(imm int64) uint32 {
	i := uint32(imm)
	return (i>>12&1)<<31 | (i>>5&0x3f)<<25 | (i>>1&0xf)<<8 | (i>>11&1)<<7
}

// ujImm places a 21-bit jump displacement in its scrambled UJ-type bit
// order.
func ujImm(imm int64) uint32 {
	i := uint32(imm)
	return (i>>20&1)<<31 | (i>>1&0x3ff)<<21 | (i>>11&1)<<20 | (i>>12&0xff)<<12
}

// Register units 0..31 are x0..x31, so units double as register
// numbers. x1 is the return address register, x2 the stack pointer.
const (
	regRA RegUnit = 1
	regSP RegUnit = 2
)

func emitR(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	rd := e.regOf(f.FirstResult(i))
	sink.PutUint32(riscvMachineWord(bits, rd, e.regOf(id.Args[0]), e.regOf(id.Args[1])))
}

func emitRshamt(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	rd := e.regOf(f.FirstResult(i))
	w := riscvMachineWord(bits, rd, e.regOf(id.Args[0]), 0)
	sink.PutUint32(w | (uint32(id.Imm)&0x3f)<<20)
}

func emitIi(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	rd := e.regOf(f.FirstResult(i))
	w := riscvMachineWord(bits, rd, e.regOf(id.Args[0]), 0)
	sink.PutUint32(w | iImm(id.Imm))
}

func emitIz(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	rd := e.regOf(f.FirstResult(i))
	w := riscvMachineWord(bits, rd, 0, 0)
	sink.PutUint32(w | iImm(id.Imm))
}

func emitIret(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	// jalr x0, x1, 0
	sink.PutUint32(riscvMachineWord(bits, 0, regRA, 0))
}

func emitIcall(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	// jalr x1, callee, 0
	sink.PutUint32(riscvMachineWord(bits, regRA, e.regOf(id.Args[0]), 0))
}

func emitIcopy(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	rd := e.regOf(f.FirstResult(i))
	// addi rd, rs1, 0
	sink.PutUint32(riscvMachineWord(bits, rd, e.regOf(id.Args[0]), 0))
}

func emitIrmov(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	// addi to, from, 0
	sink.PutUint32(riscvMachineWord(bits, id.RegTo, id.RegFrom, 0))
}

func emitU(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	rd := e.regOf(f.FirstResult(i))
	w := riscvMachineWord(bits, rd, 0, 0)
	sink.PutUint32(w | uint32(id.Imm)&0xfffff000)
}

func emitUJ(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	off := e.branchOffset(sink, i, id.Dest)
	// jal x0, dest
	sink.PutUint32(riscvMachineWord(bits, 0, 0, 0) | ujImm(off))
}

func emitUJcall(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	sink.Reloc(RelocRiscvCall, e.externalName(id.Func), 0)
	// jal x1, 0 with the displacement left for the linker.
	sink.PutUint32(riscvMachineWord(bits, regRA, 0, 0))
}

func emitSB(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	off := e.branchOffset(sink, i, id.Dest)
	w := riscvMachineWord(bits, 0, e.regOf(id.Args[0]), e.regOf(id.Args[1]))
	sink.PutUint32(w | sbImm(off))
}

func emitSBzero(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	off := e.branchOffset(sink, i, id.Dest)
	// Compare against x0.
	w := riscvMachineWord(bits, 0, e.regOf(id.Args[0]), 0)
	sink.PutUint32(w | sbImm(off))
}

func emitGPsp(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	off := e.stackOf(f.FirstResult(i))
	w := riscvMachineWord(bits, 0, regSP, e.regOf(id.Args[0]))
	sink.PutUint32(w | sImm(off))
}

func emitGPfi(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
	id := f.InstData(i)
	rd := e.regOf(f.FirstResult(i))
	off := e.stackOf(id.Args[0])
	w := riscvMachineWord(bits, rd, regSP, 0)
	sink.PutUint32(w | iImm(int64(off)))
}

func emitStacknull(f *Function, i Inst, bits uint16, sink CodeSink, e *Emitter) {
}

func riscvEmitters() []recipeEmitter {
	return []recipeEmitter{
		rcpR:         emitR,
		rcpRshamt:    emitRshamt,
		rcpRicmp:     emitR,
		rcpIi:        emitIi,
		rcpIz:        emitIz,
		rcpIicmp:     emitIi,
		rcpIret:      emitIret,
		rcpIcall:     emitIcall,
		rcpIcopy:     emitIcopy,
		rcpIrmov:     emitIrmov,
		rcpU:         emitU,
		rcpUJ:        emitUJ,
		rcpUJcall:    emitUJcall,
		rcpSB:        emitSB,
		rcpSBzero:    emitSBzero,
		rcpGPsp:      emitGPsp,
		rcpGPfi:      emitGPfi,
		rcpStacknull: emitStacknull,
	}
}
