// Completion: 100% - binary emission tests complete
package legalize

import (
	"encoding/binary"
	"testing"
)

// emitWords legalizes f, emits it, and returns the machine words and
// relocations.
func emitWords(t *testing.T, isa *ISA, f *Function) ([]uint32, []RelocEntry) {
	t.Helper()
	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("LegalizeFunction: %v", err)
	}
	buf := NewSafeBuffer(f.Name)
	sink := NewMemoryCodeSink(buf)
	if err := EmitFunction(isa, f, sink); err != nil {
		t.Fatalf("EmitFunction: %v", err)
	}
	buf.Commit()
	code := buf.Bytes()
	if len(code)%4 != 0 {
		t.Fatalf("emitted %d bytes, not a whole number of words", len(code))
	}
	var words []uint32
	for i := 0; i < len(code); i += 4 {
		words = append(words, binary.LittleEndian.Uint32(code[i:]))
	}
	return words, sink.Relocs
}

func checkWords(t *testing.T, got, want []uint32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("emitted %d words %#08x, want %d words %#08x", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %#08x, want %#08x", i, got[i], want[i])
		}
	}
}

func setReg(f *Function, v Value, unit RegUnit) {
	f.Locations[v] = ValueLoc{Kind: LocReg, Reg: unit}
}

func setStack(f *Function, v Value, offset int32) {
	f.Locations[v] = ValueLoc{Kind: LocStack, Offset: offset}
}

func TestEmitAdd(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])
	insReturn(pos, v)
	setReg(f, vals[0], 6)
	setReg(f, vals[1], 7)
	setReg(f, v, 5)

	words, relocs := emitWords(t, isa, f)
	// add x5, x6, x7; ret
	checkWords(t, words, []uint32{0x007302b3, 0x00008067})
	if len(relocs) != 0 {
		t.Errorf("unexpected relocations %+v", relocs)
	}
}

func TestEmitAddi(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32)
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinaryImm(OpIaddImm, vals[0], 100)
	insReturn(pos, v)
	setReg(f, vals[0], 6)
	setReg(f, v, 5)

	words, _ := emitWords(t, isa, f)
	// addi x5, x6, 100; ret
	checkWords(t, words, []uint32{0x06430293, 0x00008067})
}

func TestEmitLui(t *testing.T) {
	isa := testRV32(t)
	f, b, _ := newTestFunc()
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsIconst(I32, 0x12345000)
	insReturn(pos, v)
	setReg(f, v, 5)

	words, _ := emitWords(t, isa, f)
	// lui x5, 0x12345; ret
	checkWords(t, words, []uint32{0x123452b7, 0x00008067})
}

func TestEmitBranch(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	exit := f.NewBlock()
	pos := NewCursor(f)
	pos.GotoBottom(b)
	pos.InsBrIcmp(IntEqual, vals[0], vals[1], exit)
	pos.InsJump(exit)
	pos.GotoBottom(exit)
	insReturn(pos)
	setReg(f, vals[0], 6)
	setReg(f, vals[1], 7)

	words, _ := emitWords(t, isa, f)
	// beq x6, x7, +8; jal x0, +4; ret
	checkWords(t, words, []uint32{0x00730463, 0x0040006f, 0x00008067})
}

func TestEmitCallReloc(t *testing.T) {
	isa := testRV32(t)
	f, b, _ := newTestFunc()
	sig := f.NewSig(&Signature{})
	callee := f.NewExtFunc("memcpy", sig)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	pos.InsInst(instData{Op: OpCall, Func: callee})
	insReturn(pos)

	words, relocs := emitWords(t, isa, f)
	// jal x1, 0 with the target left to the linker; ret
	checkWords(t, words, []uint32{0x000000ef, 0x00008067})
	if len(relocs) != 1 {
		t.Fatalf("got %d relocations, want 1", len(relocs))
	}
	r := relocs[0]
	if r.Offset != 0 || r.Kind != RelocRiscvCall || r.Name != "memcpy" || r.Addend != 0 {
		t.Errorf("reloc = %+v", r)
	}
}

func TestEmitSpillFill(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32)
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	spilled, _ := pos.InsInst(instData{Op: OpSpill, Args: []Value{vals[0]}}, I32)
	filled, _ := pos.InsInst(instData{Op: OpFill, Args: []Value{f.FirstResult(spilled)}}, I32)
	insReturn(pos, f.FirstResult(filled))
	setReg(f, vals[0], 8)
	setStack(f, f.FirstResult(spilled), 12)
	setReg(f, f.FirstResult(filled), 9)

	words, _ := emitWords(t, isa, f)
	// sw x8, 12(x2); lw x9, 12(x2); ret
	checkWords(t, words, []uint32{0x00812623, 0x00c12483, 0x00008067})
}

func TestEmitRegmove(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	pos.InsInst(instData{Op: OpRegmove, Args: []Value{vals[0]}, RegFrom: 3, RegTo: 4})
	insReturn(pos)

	words, _ := emitWords(t, isa, f)
	// addi x4, x3, 0; ret
	checkWords(t, words, []uint32{0x00018213, 0x00008067})
}
