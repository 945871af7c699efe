// Completion: 100% - binary emission framework complete
package legalize

import (
	"encoding/binary"
	"fmt"
)

// RelocKind names a relocation the linker must resolve.
type RelocKind uint8

const (
	// RelocAbs4 is a 4-byte absolute address.
	RelocAbs4 RelocKind = iota
	// RelocAbs8 is an 8-byte absolute address.
	RelocAbs8
	// RelocRiscvCall marks a jal whose target is an external function.
	RelocRiscvCall
)

// RelocEntry records one relocation against the emitted code.
type RelocEntry struct {
	Offset uint32
	Kind   RelocKind
	Name   string
	Addend int64
}

// CodeSink receives emitted machine code. Emitters call PutUint32 once
// per instruction word and Reloc for fields the linker fills in.
type CodeSink interface {
	// Offset is the current emission offset in bytes.
	Offset() uint32
	// PutUint32 emits one little-endian 32-bit word.
	PutUint32(x uint32)
	// Reloc records a relocation at the current offset.
	Reloc(kind RelocKind, name string, addend int64)
}

// MemoryCodeSink collects machine code into a SafeBuffer and keeps the
// relocations alongside.
type MemoryCodeSink struct {
	buf    *SafeBuffer
	Relocs []RelocEntry
}

// NewMemoryCodeSink returns a sink writing into buf.
func NewMemoryCodeSink(buf *SafeBuffer) *MemoryCodeSink {
	return &MemoryCodeSink{buf: buf}
}

func (s *MemoryCodeSink) Offset() uint32 { return uint32(s.buf.Len()) }

func (s *MemoryCodeSink) PutUint32(x uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	s.buf.Write(b[:])
}

func (s *MemoryCodeSink) Reloc(kind RelocKind, name string, addend int64) {
	s.Relocs = append(s.Relocs, RelocEntry{
		Offset: s.Offset(),
		Kind:   kind,
		Name:   name,
		Addend: addend,
	})
}

// Emitter carries the per-function state recipe emitters need: the
// block offsets for branch targets and the value locations assigned by
// register allocation.
type Emitter struct {
	isa          *ISA
	f            *Function
	start        uint32
	blockOffsets map[Block]uint32
}

// EmitFunction encodes a legalized function into the sink. The first
// pass sizes every block so branches know their targets; the second
// runs each instruction's recipe emitter. Every instruction must carry
// a legal encoding.
func EmitFunction(isa *ISA, f *Function, sink CodeSink) error {
	e := &Emitter{
		isa:          isa,
		f:            f,
		start:        sink.Offset(),
		blockOffsets: make(map[Block]uint32),
	}
	offset := e.start
	for b := f.FirstBlock(); b != NoBlock; b = f.NextBlock(b) {
		e.blockOffsets[b] = offset
		for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
			if !f.Encoding(i).IsLegal() {
				return fmt.Errorf("cannot emit %s in %s: no encoding",
					f.InstData(i).Op, f.Name)
			}
			offset += uint32(isa.InstSize(f, i))
		}
	}
	for b := f.FirstBlock(); b != NoBlock; b = f.NextBlock(b) {
		for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
			enc := f.Encoding(i)
			isa.Emitters[enc.Recipe](f, i, enc.Bits, sink, e)
		}
	}
	return nil
}

// regOf returns the register unit assigned to v.
func (e *Emitter) regOf(v Value) RegUnit {
	v = e.f.ResolveAliases(v)
	loc, ok := e.f.Locations[v]
	if !ok || loc.Kind != LocReg {
		panic(fmt.Sprintf("value v%d in %s has no register", v, e.f.Name))
	}
	return loc.Reg
}

// stackOf returns the stack offset assigned to v.
func (e *Emitter) stackOf(v Value) int32 {
	v = e.f.ResolveAliases(v)
	loc, ok := e.f.Locations[v]
	if !ok || loc.Kind != LocStack {
		panic(fmt.Sprintf("value v%d in %s has no stack slot", v, e.f.Name))
	}
	return loc.Offset
}

// branchOffset computes the displacement from inst to dest and checks
// it against the recipe's reach.
func (e *Emitter) branchOffset(sink CodeSink, inst Inst, dest Block) int64 {
	target, ok := e.blockOffsets[dest]
	if !ok {
		panic(fmt.Sprintf("branch to block%d outside the layout", dest))
	}
	off := int64(target) - int64(sink.Offset())
	r := &e.isa.Recipes[e.f.Encoding(inst).Recipe]
	if r.BranchRange != 0 && !r.branchReach(off) {
		panic(fmt.Sprintf("branch offset %d exceeds %d-bit range in %s",
			off, r.BranchRange, e.f.Name))
	}
	return off
}

// externalName returns the linkage name of a call's callee.
func (e *Emitter) externalName(fn FuncRef) string {
	return e.f.ExtFuncs[fn].Name
}
