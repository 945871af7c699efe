// Completion: 100% - encoding table tests complete
package legalize

import "testing"

func testRV32(t *testing.T) *ISA {
	t.Helper()
	return NewRV32(NewSharedFlags(NewSharedBuilder()), RiscvSettings().Finish())
}

func testRV64(t *testing.T) *ISA {
	t.Helper()
	return NewRV64(NewSharedFlags(NewSharedBuilder()), RiscvSettings().Finish())
}

// newTestFunc builds a one-block function whose parameters have the
// given types.
func newTestFunc(tys ...Type) (*Function, Block, []Value) {
	sig := &Signature{}
	for _, ty := range tys {
		sig.Params = append(sig.Params, AbiParam{Ty: ty})
	}
	f := NewFunction("test", sig)
	b := f.NewBlock()
	var vals []Value
	for _, ty := range tys {
		vals = append(vals, f.AppendBlockParam(b, ty))
	}
	return f, b, vals
}

func defOf(t *testing.T, f *Function, v Value) Inst {
	t.Helper()
	def, _ := f.ValueDef(v)
	if def == NoInst {
		t.Fatal("value has no defining instruction")
	}
	return def
}

func TestLookupIaddI32(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])

	enc, _ := isa.EncodingFor(f, defOf(t, f, v))
	if !enc.IsLegal() {
		t.Fatal("iadd.i32 should be encodable")
	}
	if name := isa.RecipeName(enc); name != "R" {
		t.Errorf("recipe = %s, want R", name)
	}
	if enc.Bits != 0x000c {
		t.Errorf("bits = %#x, want 0xc", enc.Bits)
	}
}

func TestLookupImulGatedOnM(t *testing.T) {
	f, b, vals := newTestFunc(I32, I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpImul, vals[0], vals[1])
	inst := defOf(t, f, v)

	isa := testRV32(t)
	enc, _ := isa.EncodingFor(f, inst)
	if !enc.IsLegal() || enc.Bits != 0x010c {
		t.Errorf("imul.i32 with M = %+v, want recipe R bits 0x10c", enc)
	}

	b2 := RiscvSettings()
	if err := b2.Set("enable_m", "false"); err != nil {
		t.Fatal(err)
	}
	noM := NewRV32(NewSharedFlags(NewSharedBuilder()), b2.Finish())
	enc, action := noM.EncodingFor(f, inst)
	if enc.IsLegal() {
		t.Error("imul.i32 without M should have no encoding")
	}
	if action != rvActExpand {
		t.Errorf("action = %d, want expand", action)
	}
}

func TestLookupIconst(t *testing.T) {
	isa := testRV32(t)
	f, b, _ := newTestFunc()
	pos := NewCursor(f)
	pos.GotoBottom(b)

	small := pos.InsIconst(I32, 42)
	upper := pos.InsIconst(I32, 0x12345000)
	neither := pos.InsIconst(I32, 0x12345678)

	enc, _ := isa.EncodingFor(f, defOf(t, f, small))
	if name := isa.RecipeName(enc); name != "Iz" {
		t.Errorf("iconst 42 recipe = %s, want Iz", name)
	}
	enc, _ = isa.EncodingFor(f, defOf(t, f, upper))
	if name := isa.RecipeName(enc); name != "U" {
		t.Errorf("iconst 0x12345000 recipe = %s, want U", name)
	}
	enc, action := isa.EncodingFor(f, defOf(t, f, neither))
	if enc.IsLegal() {
		t.Error("iconst 0x12345678 should fit neither addi nor lui")
	}
	if action != rvActExpand {
		t.Errorf("action = %d, want expand", action)
	}
}

func TestLookupIcmpConditions(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)

	slt := pos.InsIcmp(IntSignedLessThan, vals[0], vals[1])
	ult := pos.InsIcmp(IntUnsignedLessThan, vals[0], vals[1])
	eq := pos.InsIcmp(IntEqual, vals[0], vals[1])

	enc, _ := isa.EncodingFor(f, defOf(t, f, slt))
	if !enc.IsLegal() || enc.Bits != 0x004c {
		t.Errorf("icmp slt = %+v, want Ricmp bits 0x4c", enc)
	}
	enc, _ = isa.EncodingFor(f, defOf(t, f, ult))
	if !enc.IsLegal() || enc.Bits != 0x006c {
		t.Errorf("icmp ult = %+v, want Ricmp bits 0x6c", enc)
	}
	enc, _ = isa.EncodingFor(f, defOf(t, f, eq))
	if enc.IsLegal() {
		t.Error("icmp eq has no direct encoding")
	}
}

func TestLookupBrIcmp(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	dest := f.NewBlock()
	pos := NewCursor(f)
	pos.GotoBottom(b)
	inst := pos.InsBrIcmp(IntEqual, vals[0], vals[1], dest)

	enc, _ := isa.EncodingFor(f, inst)
	if !enc.IsLegal() || enc.Bits != 0x0018 {
		t.Errorf("br_icmp eq = %+v, want SB bits 0x18", enc)
	}
	if name := isa.RecipeName(enc); name != "SB" {
		t.Errorf("recipe = %s, want SB", name)
	}
}

func TestLookupBrIcmpUnsupportedCond(t *testing.T) {
	// sgt matches none of the guarded candidates; the walk must end at
	// the last guard instead of running into a neighboring list.
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	dest := f.NewBlock()
	pos := NewCursor(f)
	pos.GotoBottom(b)
	inst := pos.InsBrIcmp(IntSignedGreaterThan, vals[0], vals[1], dest)

	enc, action := isa.EncodingFor(f, inst)
	if enc.IsLegal() {
		t.Errorf("br_icmp sgt = %+v, want no encoding", enc)
	}
	if action != rvActExpand {
		t.Errorf("action = %d, want expand", action)
	}
}

func TestLookupWideTypeActions(t *testing.T) {
	rv32 := testRV32(t)
	rv64 := testRV64(t)
	f, b, vals := newTestFunc(I64, I64)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])
	inst := defOf(t, f, v)

	enc, action := rv32.EncodingFor(f, inst)
	if enc.IsLegal() {
		t.Error("iadd.i64 should not encode on rv32")
	}
	if action != rvActNarrow {
		t.Errorf("rv32 action = %d, want narrow", action)
	}

	enc, _ = rv64.EncodingFor(f, inst)
	if !enc.IsLegal() || enc.Bits != 0x000c {
		t.Errorf("iadd.i64 on rv64 = %+v, want R bits 0xc", enc)
	}
}

func TestLookupRV64Word(t *testing.T) {
	isa := testRV64(t)
	f, b, vals := newTestFunc(I32, I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])

	// addw, not add: 32-bit results stay sign extended.
	enc, _ := isa.EncodingFor(f, defOf(t, f, v))
	if !enc.IsLegal() || enc.Bits != 0x000e {
		t.Errorf("iadd.i32 on rv64 = %+v, want R bits 0xe", enc)
	}
}

func TestLookupNarrowI8(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I8, I8)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])

	enc, action := isa.EncodingFor(f, defOf(t, f, v))
	if enc.IsLegal() {
		t.Error("iadd.i8 should not encode")
	}
	if action != rvActWiden {
		t.Errorf("action = %d, want widen", action)
	}
}

func TestLookupMissingTypeUsesDefault(t *testing.T) {
	// IFLAGS has no level 1 entry, so the default action applies.
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	flags := pos.InsIfcmp(vals[0], vals[1])
	cp := pos.InsUnary(OpCopy, flags)

	enc, action := isa.EncodingFor(f, defOf(t, f, cp))
	if enc.IsLegal() {
		t.Error("copy.iflags should not encode")
	}
	if action != isa.Tables.DefaultLegalize {
		t.Errorf("action = %d, want the default %d", action, isa.Tables.DefaultLegalize)
	}
}

func TestLookupDeterminism(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpBxor, vals[0], vals[1])
	inst := defOf(t, f, v)

	first, firstAction := isa.EncodingFor(f, inst)
	for i := 0; i < 10; i++ {
		enc, action := isa.EncodingFor(f, inst)
		if enc != first || action != firstAction {
			t.Fatalf("lookup %d returned %+v/%d, first was %+v/%d",
				i, enc, action, first, firstAction)
		}
	}
}
