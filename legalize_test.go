// Completion: 100% - legalization driver and rule tests complete
package legalize

import (
	"strings"
	"testing"
)

// insReturn appends a return instruction at the cursor.
func insReturn(pos *Cursor, args ...Value) Inst {
	i, _ := pos.InsInst(instData{Op: OpReturn, Args: args})
	return i
}

// blockOps lists the opcodes of a block in layout order.
func blockOps(f *Function, b Block) []Opcode {
	var ops []Opcode
	for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
		ops = append(ops, f.InstData(i).Op)
	}
	return ops
}

// checkAllEncoded fails unless every instruction has a legal encoding.
func checkAllEncoded(t *testing.T, f *Function) {
	t.Helper()
	for b := f.FirstBlock(); b != NoBlock; b = f.NextBlock(b) {
		for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
			if !f.Encoding(i).IsLegal() {
				t.Errorf("%s has no encoding after legalization", f.InstData(i).Op)
			}
		}
	}
}

// evalEntry interprets the legalized entry block over the given value
// environment and returns the return instruction's arguments. Only the
// opcodes the legalized test functions can contain are implemented;
// mask bounds every produced value to the register width.
func evalEntry(t *testing.T, f *Function, env map[Value]uint64, mask uint64) []uint64 {
	t.Helper()
	get := func(v Value) uint64 { return env[f.ResolveAliases(v)] }
	b := f.FirstBlock()
	for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
		id := f.InstData(i)
		switch id.Op {
		case OpIconst:
			env[f.FirstResult(i)] = uint64(id.Imm) & mask
		case OpIadd:
			env[f.FirstResult(i)] = (get(id.Args[0]) + get(id.Args[1])) & mask
		case OpIaddImm:
			env[f.FirstResult(i)] = (get(id.Args[0]) + uint64(id.Imm)) & mask
		case OpIsub:
			env[f.FirstResult(i)] = (get(id.Args[0]) - get(id.Args[1])) & mask
		case OpBand:
			env[f.FirstResult(i)] = get(id.Args[0]) & get(id.Args[1])
		case OpBor:
			env[f.FirstResult(i)] = get(id.Args[0]) | get(id.Args[1])
		case OpBxor:
			env[f.FirstResult(i)] = get(id.Args[0]) ^ get(id.Args[1])
		case OpBint, OpCopy:
			env[f.FirstResult(i)] = get(id.Args[0])
		case OpIcmp:
			a, b := get(id.Args[0]), get(id.Args[1])
			var r bool
			switch id.Cond {
			case IntEqual:
				r = a == b
			case IntNotEqual:
				r = a != b
			case IntUnsignedLessThan:
				r = a < b
			default:
				t.Fatalf("evaluator: condition %s not implemented", id.Cond)
			}
			if r {
				env[f.FirstResult(i)] = 1
			} else {
				env[f.FirstResult(i)] = 0
			}
		case OpReturn:
			var out []uint64
			for _, a := range id.Args {
				out = append(out, get(a))
			}
			return out
		default:
			t.Fatalf("evaluator: opcode %s not implemented", id.Op)
		}
	}
	t.Fatal("entry block has no return")
	return nil
}

func TestLegalizeSimpleFunction(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])
	insReturn(pos, v)

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("LegalizeFunction: %v", err)
	}
	checkAllEncoded(t, f)
	if got := blockOps(f, b); len(got) != 2 || got[0] != OpIadd || got[1] != OpReturn {
		t.Errorf("ops after legalization = %v", got)
	}
}

func TestLegalizeIdempotent(t *testing.T) {
	isa := testRV32(t)
	f, blk0, vals := newTestFunc(I32, I32)
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	pos := NewCursor(f)
	pos.GotoBottom(blk0)
	v := pos.InsBinaryImm(OpIaddImm, vals[0], 0x5000)
	w := pos.InsBinary(OpBxor, v, vals[1])
	insReturn(pos, w)

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("first LegalizeFunction: %v", err)
	}
	type shot struct {
		op  Opcode
		enc Encoding
	}
	var first []shot
	for blk := f.FirstBlock(); blk != NoBlock; blk = f.NextBlock(blk) {
		for i := f.FirstInst(blk); i != NoInst; i = f.NextInst(i) {
			first = append(first, shot{f.InstData(i).Op, f.Encoding(i)})
		}
	}

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("second LegalizeFunction: %v", err)
	}
	var second []shot
	for blk := f.FirstBlock(); blk != NoBlock; blk = f.NextBlock(blk) {
		for i := f.FirstInst(blk); i != NoInst; i = f.NextInst(i) {
			second = append(second, shot{f.InstData(i).Op, f.Encoding(i)})
		}
	}
	if len(first) != len(second) {
		t.Fatalf("second run changed instruction count: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("inst %d changed: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func TestExpandLargeImmediate(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32)
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinaryImm(OpIaddImm, vals[0], 0x12345678)
	insReturn(pos, v)

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("LegalizeFunction: %v", err)
	}
	checkAllEncoded(t, f)

	env := map[Value]uint64{f.BlockParams(b)[0]: 5}
	out := evalEntry(t, f, env, 0xffffffff)
	want := uint64(5+0x12345678) & 0xffffffff
	if len(out) != 1 || out[0] != want {
		t.Errorf("result = %#x, want %#x", out, want)
	}
}

func TestLegalizeLeavesLegalCallAndReturn(t *testing.T) {
	// A call and return carrying only register-sized values give the
	// ABI pass nothing to rewrite; the scan must still move past them.
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32)
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	sig := f.NewSig(&Signature{
		Params:  []AbiParam{{Ty: I32}},
		Returns: []AbiParam{{Ty: I32}},
	})
	callee := f.NewExtFunc("helper", sig)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	call := pos.InsCall(callee, f.Sigs[sig], []Value{vals[0]})
	insReturn(pos, f.FirstResult(call))

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("LegalizeFunction: %v", err)
	}
	checkAllEncoded(t, f)
	got := blockOps(f, b)
	if len(got) != 2 || got[0] != OpCall || got[1] != OpReturn {
		t.Errorf("ops = %v, want [call return]", got)
	}
}

func TestNarrowI64AddOnRV32(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I64, I64)
	f.Sig.Returns = []AbiParam{{Ty: I64}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])
	insReturn(pos, v)

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("LegalizeFunction: %v", err)
	}
	checkAllEncoded(t, f)

	params := f.BlockParams(b)
	if len(params) != 4 {
		t.Fatalf("entry has %d params after ABI legalization, want 4", len(params))
	}
	cases := []struct{ x, y uint64 }{
		{1, 2},
		{0xffffffff, 1},
		{0x100000000, 0xffffffffffffffff},
		{0x7fffffffffffffff, 1},
		{0xdeadbeef12345678, 0x0fedcba987654321},
	}
	for _, c := range cases {
		env := map[Value]uint64{
			params[0]: c.x & 0xffffffff,
			params[1]: c.x >> 32,
			params[2]: c.y & 0xffffffff,
			params[3]: c.y >> 32,
		}
		out := evalEntry(t, f, env, 0xffffffff)
		if len(out) != 2 {
			t.Fatalf("return has %d values, want 2", len(out))
		}
		got := out[0] | out[1]<<32
		if want := c.x + c.y; got != want {
			t.Errorf("%#x + %#x = %#x, want %#x", c.x, c.y, got, want)
		}
	}
}

func TestNarrowI128AddOnRV64(t *testing.T) {
	isa := testRV64(t)
	f, b, vals := newTestFunc(I128, I128)
	f.Sig.Returns = []AbiParam{{Ty: I128}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])
	insReturn(pos, v)

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("LegalizeFunction: %v", err)
	}
	checkAllEncoded(t, f)

	params := f.BlockParams(b)
	if len(params) != 4 {
		t.Fatalf("entry has %d params after ABI legalization, want 4", len(params))
	}
	cases := []struct{ xl, xh, yl, yh uint64 }{
		{1, 0, 2, 0},
		{0xffffffffffffffff, 0, 1, 0},
		{0xffffffffffffffff, 0xffffffffffffffff, 1, 0},
		{0x8000000000000000, 5, 0x8000000000000000, 7},
	}
	for _, c := range cases {
		env := map[Value]uint64{
			params[0]: c.xl, params[1]: c.xh,
			params[2]: c.yl, params[3]: c.yh,
		}
		out := evalEntry(t, f, env, ^uint64(0))
		wantLo := c.xl + c.yl
		carry := uint64(0)
		if wantLo < c.xl {
			carry = 1
		}
		wantHi := c.xh + c.yh + carry
		if len(out) != 2 || out[0] != wantLo || out[1] != wantHi {
			t.Errorf("got (%#x, %#x), want (%#x, %#x)", out[0], out[1], wantLo, wantHi)
		}
	}
}

func TestNarrowFlagsUsesFlagsCarry(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I64, I64)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])

	if !narrowFlags(f, defOf(t, f, v), nil, isa) {
		t.Fatal("narrow_flags should handle iadd.i64")
	}
	var sawCout, sawCin bool
	for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
		switch f.InstData(i).Op {
		case OpIaddIfcout:
			sawCout = true
			if ty := f.ValueType(f.InstResults(i)[1]); ty != IFLAGS {
				t.Errorf("carry out type = %s, want iflags", ty)
			}
		case OpIaddIfcin:
			sawCin = true
		case OpIaddCout, OpIaddCin:
			t.Errorf("boolean carry %s in the flags group", f.InstData(i).Op)
		}
	}
	if !sawCout || !sawCin {
		t.Errorf("ops = %v, want iadd_ifcout and iadd_ifcin", blockOps(f, b))
	}
}

func TestNarrowOnlyAppliesToWideTypes(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])

	if narrow(f, defOf(t, f, v), nil, isa) {
		t.Error("narrow rewrote an i32 add")
	}
	if got := blockOps(f, b); len(got) != 1 || got[0] != OpIadd {
		t.Errorf("ops = %v, want [iadd]", got)
	}
}

func TestWidenOnlyAppliesToNarrowTypes(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])

	if widen(f, defOf(t, f, v), nil, isa) {
		t.Error("widen rewrote an i32 add")
	}
	if got := blockOps(f, b); len(got) != 1 || got[0] != OpIadd {
		t.Errorf("ops = %v, want [iadd]", got)
	}
}

func TestWidenI8Add(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I8, I8)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIadd, vals[0], vals[1])
	inst := defOf(t, f, v)

	if !widen(f, inst, nil, isa) {
		t.Fatal("widen should handle iadd.i8")
	}
	want := []Opcode{OpUextend, OpUextend, OpIadd, OpIreduce}
	got := blockOps(f, b)
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ops = %v, want %v", got, want)
		}
	}
	// The promoted add runs at 32 bits; the reduce restores i8.
	if ty := f.ValueType(f.ResolveAliases(v)); ty != I8 {
		t.Errorf("result type = %s, want i8", ty)
	}
}

func TestWidenShiftMasksAmount(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I8, I8)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpIshl, vals[0], vals[1])
	inst := defOf(t, f, v)

	if !widen(f, inst, nil, isa) {
		t.Fatal("widen should handle ishl.i8")
	}
	found := false
	for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
		id := f.InstData(i)
		if id.Op == OpBandImm && id.Imm == 7 {
			found = true
		}
	}
	if !found {
		t.Error("widened shift must mask the amount with band_imm 7")
	}
}

func TestExpandCondTrap(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	inst, _ := pos.InsInst(instData{Op: OpTrapz, Args: []Value{vals[0]}, Trap: TrapIntegerDivision})
	insReturn(pos)

	cfg := NewCFG()
	cfg.Compute(f)
	if !expand(f, inst, cfg, isa) {
		t.Fatal("expand should handle trapz")
	}

	resume := f.NextBlock(b)
	if resume == NoBlock {
		t.Fatal("expansion should create a resume block")
	}
	got := blockOps(f, b)
	if len(got) != 2 || got[0] != OpBrnz || got[1] != OpTrap {
		t.Errorf("trap block ops = %v, want [brnz trap]", got)
	}
	if f.InstData(f.FirstInst(b)).Dest != resume {
		t.Error("the skip branch must target the resume block")
	}
	if got := blockOps(f, resume); len(got) != 1 || got[0] != OpReturn {
		t.Errorf("resume block ops = %v, want [return]", got)
	}
	if f.InstData(f.NextInst(f.FirstInst(b))).Trap != TrapIntegerDivision {
		t.Error("trap code must be preserved")
	}
}

func TestExpandCondTrapNonzero(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	inst, _ := pos.InsInst(instData{Op: OpTrapnz, Args: []Value{vals[0]}, Trap: TrapIntegerOverflow})
	insReturn(pos)

	cfg := NewCFG()
	cfg.Compute(f)
	if !expand(f, inst, cfg, isa) {
		t.Fatal("expand should handle trapnz")
	}

	resume := f.NextBlock(b)
	got := blockOps(f, b)
	if len(got) != 2 || got[0] != OpBrz || got[1] != OpTrap {
		t.Errorf("trap block ops = %v, want [brz trap]", got)
	}
	if f.InstData(f.FirstInst(b)).Dest != resume {
		t.Error("the skip branch must target the resume block")
	}
	if f.InstData(f.NextInst(f.FirstInst(b))).Trap != TrapIntegerOverflow {
		t.Error("trap code must be preserved")
	}
}

func TestExpandFlagsCondTrap(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	inst, _ := pos.InsInst(instData{Op: OpTrapz, Args: []Value{vals[0]}, Trap: TrapIntegerDivision})
	insReturn(pos)

	if !expandFlags(f, inst, nil, isa) {
		t.Fatal("expand_flags should handle trapz")
	}
	want := []Opcode{OpIfcmpImm, OpTrapif, OpReturn}
	got := blockOps(f, b)
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ops = %v, want %v", got, want)
		}
	}
	id := f.InstData(f.NextInst(f.FirstInst(b)))
	if id.Cond != IntEqual {
		t.Errorf("trapif condition = %s, want eq", id.Cond)
	}
	if id.Trap != TrapIntegerDivision {
		t.Error("trap code must be preserved")
	}
	if ty := f.ValueType(id.Args[0]); ty != IFLAGS {
		t.Errorf("trapif operand type = %s, want iflags", ty)
	}
}

func TestLegalizeSelect(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	c := pos.InsIcmp(IntSignedLessThan, vals[0], vals[1])
	s := pos.InsSelect(c, vals[0], vals[1])
	insReturn(pos, s)

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("LegalizeFunction: %v", err)
	}
	checkAllEncoded(t, f)

	merge := f.NextBlock(b)
	if merge == NoBlock {
		t.Fatal("select expansion should create a merge block")
	}
	if n := len(f.BlockParams(merge)); n != 1 {
		t.Errorf("merge block has %d params, want 1", n)
	}
	// The select result is now the merge block parameter.
	if f.ResolveAliases(s) != f.BlockParams(merge)[0] {
		t.Error("select result should alias the merge block parameter")
	}
	got := blockOps(f, b)
	if len(got) != 3 || got[1] != OpBrnz || got[2] != OpJump {
		t.Errorf("entry ops = %v, want [icmp brnz jump]", got)
	}
}

func TestLegalizeBrTableConds(t *testing.T) {
	shared := NewSharedBuilder()
	if err := shared.Set("jump_tables_enabled", "false"); err != nil {
		t.Fatal(err)
	}
	isa := NewRV32(NewSharedFlags(shared), RiscvSettings().Finish())

	f, b, vals := newTestFunc(I32)
	def := f.NewBlock()
	t0 := f.NewBlock()
	t1 := f.NewBlock()
	jt := f.NewJumpTable([]Block{t0, t1})
	pos := NewCursor(f)
	pos.GotoBottom(b)
	pos.InsInst(instData{Op: OpBrTable, Args: []Value{vals[0]}, Dest: def, JT: jt})
	for _, blk := range []Block{def, t0, t1} {
		pos.GotoBottom(blk)
		insReturn(pos)
	}

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("LegalizeFunction: %v", err)
	}
	checkAllEncoded(t, f)
	if f.JumpTables != nil {
		t.Error("jump tables should be dropped when disabled")
	}
	var brs int
	for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
		if f.InstData(i).Op == OpBrIcmp {
			brs++
		}
	}
	if brs != 2 {
		t.Errorf("found %d br_icmp in the chain, want 2", brs)
	}
	if f.InstData(f.LastInst(b)).Op != OpJump {
		t.Error("the chain must end with a jump to the default block")
	}
}

func TestLegalizeUdivLibcall(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	f.Sig.Returns = []AbiParam{{Ty: I32}}
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpUdiv, vals[0], vals[1])
	insReturn(pos, v)

	if err := LegalizeFunction(f, isa); err != nil {
		t.Fatalf("LegalizeFunction: %v", err)
	}
	checkAllEncoded(t, f)

	inst := defOf(t, f, f.ResolveAliases(v))
	if f.InstData(inst).Op != OpCall {
		t.Fatalf("udiv became %s, want call", f.InstData(inst).Op)
	}
	name := f.ExtFuncs[f.InstData(inst).Func].Name
	if name != "__udivsi3" {
		t.Errorf("libcall name = %q, want __udivsi3", name)
	}
}

func TestLegalizeUnencodableFails(t *testing.T) {
	isa := testRV32(t)
	f, b, vals := newTestFunc(I32, I32)
	pos := NewCursor(f)
	pos.GotoBottom(b)
	v := pos.InsBinary(OpRotl, vals[0], vals[1])
	insReturn(pos, v)

	err := LegalizeFunction(f, isa)
	if err == nil {
		t.Fatal("rotl.i32 has no encoding, no expansion and no libcall; expected an error")
	}
	if !strings.Contains(err.Error(), "unable to legalize") {
		t.Errorf("error = %q, want it to mention the stuck instruction", err)
	}
}
