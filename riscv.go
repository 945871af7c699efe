// Completion: 100% - RISC-V target definition complete (RV32 and RV64)
package legalize

// RISC-V base opcodes (the full 7-bit opcode field).
const (
	rvOP      = 0x33
	rvOPIMM   = 0x13
	rvOP32    = 0x3b
	rvOPIMM32 = 0x1b
	rvLUI     = 0x37
	rvJAL     = 0x6f
	rvJALR    = 0x67
	rvBRANCH  = 0x63
	rvLOAD    = 0x03
	rvSTORE   = 0x23
)

// rvEncBits packs the recipe encoding bits: the five interesting
// opcode bits (the low two are always 0b11), funct3 and funct7.
func rvEncBits(opcode7, funct3, funct7 uint16) uint16 {
	return (opcode7>>2)&0x1f | funct3<<5 | funct7<<8
}

// Register file: 32 integer registers named x0..x31 and 32 float
// registers named f0..f31, one allocation unit each.
var (
	riscvGPR = &RegClass{
		Name:       "GPR",
		Index:      0,
		Width:      1,
		Bank:       0,
		TopRC:      0,
		First:      0,
		Subclasses: 0x1,
		Mask:       [3]uint32{0xffffffff, 0, 0},
	}
	riscvFPR = &RegClass{
		Name:       "FPR",
		Index:      1,
		Width:      1,
		Bank:       1,
		TopRC:      1,
		First:      32,
		Subclasses: 0x2,
		Mask:       [3]uint32{0, 0xffffffff, 0},
	}

	// RiscvRegInfo describes the RISC-V register file.
	RiscvRegInfo = &RegInfo{
		Banks: []RegBank{
			{
				Name:             "IntRegs",
				FirstUnit:        0,
				Units:            32,
				Prefix:           "x",
				FirstTopRC:       0,
				NumTopRCs:        1,
				PressureTracking: true,
			},
			{
				Name:             "FloatRegs",
				FirstUnit:        32,
				Units:            32,
				Prefix:           "f",
				FirstTopRC:       1,
				NumTopRCs:        1,
				PressureTracking: true,
			},
		},
		Classes: []*RegClass{riscvGPR, riscvFPR},
	}
)

// RISC-V specific settings. The supports_* flags describe the CPU;
// the enable_* flags describe what the user lets the compiler use.
// An extension is usable when both hold, which is what the full_*
// predicates say.
var (
	riscvTemplate *Template
	riscvFullM    int
	riscvFullA    int
	riscvFullF    int
	riscvFullD    int
)

func init() {
	tb := NewTemplateBuilder("riscv")
	supportsM := tb.AddBool("supports_m", true)
	supportsA := tb.AddBool("supports_a", true)
	supportsF := tb.AddBool("supports_f", true)
	supportsD := tb.AddBool("supports_d", true)
	tb.AddBool("enable_e", false)
	enableM := tb.AddBool("enable_m", true)
	enableA := tb.AddBool("enable_a", true)
	enableF := tb.AddBool("enable_f", true)
	enableD := tb.AddBool("enable_d", true)
	riscvFullM = tb.AddPredicate(supportsM, enableM)
	riscvFullA = tb.AddPredicate(supportsA, enableA)
	riscvFullF = tb.AddPredicate(supportsF, enableF)
	riscvFullD = tb.AddPredicate(supportsD, enableD)
	riscvTemplate = tb.Build()
}

// RiscvSettings returns a builder over the RISC-V settings.
func RiscvSettings() *Builder { return NewBuilder(riscvTemplate) }

// Recipe indexes. The order is load bearing: encoding lists name
// recipes by index.
const (
	rcpR = iota
	rcpRshamt
	rcpRicmp
	rcpIi
	rcpIz
	rcpIicmp
	rcpIret
	rcpIcall
	rcpIcopy
	rcpIrmov
	rcpU
	rcpUJ
	rcpUJcall
	rcpSB
	rcpSBzero
	rcpGPsp
	rcpGPfi
	rcpStacknull
)

// Recipe immediate predicates.
func rvImmFitsSigned12(f *Function, i Inst) bool {
	return isSignedInt(f.InstData(i).Imm, 12, 0)
}

func rvImmFitsUpper20(f *Function, i Inst) bool {
	return isSignedInt(f.InstData(i).Imm, 32, 12)
}

func riscvRecipes() []EncodingRecipe {
	gpr := riscvGPR
	return []EncodingRecipe{
		rcpR:      {Name: "R", Size: 4, InRegs: []*RegClass{gpr, gpr}, OutRegs: []*RegClass{gpr}},
		rcpRshamt: {Name: "Rshamt", Size: 4, InRegs: []*RegClass{gpr}, OutRegs: []*RegClass{gpr}},
		rcpRicmp:  {Name: "Ricmp", Size: 4, InRegs: []*RegClass{gpr, gpr}, OutRegs: []*RegClass{gpr}},
		rcpIi:     {Name: "Ii", Size: 4, InRegs: []*RegClass{gpr}, OutRegs: []*RegClass{gpr}, Pred: rvImmFitsSigned12},
		rcpIz:     {Name: "Iz", Size: 4, OutRegs: []*RegClass{gpr}, Pred: rvImmFitsSigned12},
		rcpIicmp:  {Name: "Iicmp", Size: 4, InRegs: []*RegClass{gpr}, OutRegs: []*RegClass{gpr}, Pred: rvImmFitsSigned12},
		rcpIret:   {Name: "Iret", Size: 4},
		rcpIcall:  {Name: "Icall", Size: 4, InRegs: []*RegClass{gpr}},
		rcpIcopy:  {Name: "Icopy", Size: 4, InRegs: []*RegClass{gpr}, OutRegs: []*RegClass{gpr}},
		rcpIrmov:  {Name: "Irmov", Size: 4},
		rcpU:      {Name: "U", Size: 4, OutRegs: []*RegClass{gpr}, Pred: rvImmFitsUpper20},
		rcpUJ:     {Name: "UJ", Size: 4, BranchRange: 21},
		rcpUJcall: {Name: "UJcall", Size: 4},
		rcpSB:     {Name: "SB", Size: 4, InRegs: []*RegClass{gpr, gpr}, BranchRange: 13},
		rcpSBzero: {Name: "SBzero", Size: 4, InRegs: []*RegClass{gpr}, BranchRange: 13},
		rcpGPsp:   {Name: "GPsp", Size: 4, InRegs: []*RegClass{gpr}},
		rcpGPfi:   {Name: "GPfi", Size: 4, OutRegs: []*RegClass{gpr}},
		rcpStacknull: {Name: "stacknull", Size: 0},
	}
}

// Instruction predicates: condition code tests shared by the compare
// and compare-and-branch encodings.
const (
	rvPredCondEq = iota
	rvPredCondNe
	rvPredCondSlt
	rvPredCondSge
	rvPredCondUlt
	rvPredCondUge
	numRiscvInstPreds
)

func condIs(cc IntCC) InstPredicate {
	return func(f *Function, i Inst) bool {
		return f.InstData(i).Cond == cc
	}
}

func riscvInstPreds() []InstPredicate {
	return []InstPredicate{
		rvPredCondEq:  condIs(IntEqual),
		rvPredCondNe:  condIs(IntNotEqual),
		rvPredCondSlt: condIs(IntSignedLessThan),
		rvPredCondSge: condIs(IntSignedGreaterThanOrEqual),
		rvPredCondUlt: condIs(IntUnsignedLessThan),
		rvPredCondUge: condIs(IntUnsignedGreaterThanOrEqual),
	}
}

// Legalize action indexes.
const (
	rvActExpand = iota
	rvActNarrow
	rvActWiden
)

// riscvEncDefs builds the encoding definitions for one CPU mode.
// native is the register width type: I32 for RV32, I64 for RV64.
func riscvEncDefs(native Type, rv64 bool) []encDef {
	var defs []encDef
	add := func(op Opcode, ty Type, entries ...encEntry) {
		defs = append(defs, encDef{op: op, ty: ty, entries: entries})
	}

	storeF3 := uint16(2) // SW
	loadF3 := uint16(2)  // LW
	if rv64 {
		storeF3 = 3 // SD
		loadF3 = 3  // LD
	}

	// Integer register-register and register-immediate operations on
	// the native width.
	add(OpIadd, native, entry(rcpR, rvEncBits(rvOP, 0, 0)))
	add(OpIsub, native, entry(rcpR, rvEncBits(rvOP, 0, 0x20)))
	add(OpBand, native, entry(rcpR, rvEncBits(rvOP, 7, 0)))
	add(OpBor, native, entry(rcpR, rvEncBits(rvOP, 6, 0)))
	add(OpBxor, native, entry(rcpR, rvEncBits(rvOP, 4, 0)))
	add(OpIaddImm, native, entry(rcpIi, rvEncBits(rvOPIMM, 0, 0)))
	add(OpBandImm, native, entry(rcpIi, rvEncBits(rvOPIMM, 7, 0)))
	add(OpBorImm, native, entry(rcpIi, rvEncBits(rvOPIMM, 6, 0)))
	add(OpBxorImm, native, entry(rcpIi, rvEncBits(rvOPIMM, 4, 0)))

	// imul needs the M extension.
	add(OpImul, native, entryIsap(riscvFullM, rcpR, rvEncBits(rvOP, 0, 1)))

	// Dynamic and immediate shifts.
	add(OpIshl, native, entry(rcpR, rvEncBits(rvOP, 1, 0)))
	add(OpUshr, native, entry(rcpR, rvEncBits(rvOP, 5, 0)))
	add(OpSshr, native, entry(rcpR, rvEncBits(rvOP, 5, 0x20)))
	add(OpIshlImm, native, entry(rcpRshamt, rvEncBits(rvOPIMM, 1, 0)))
	add(OpUshrImm, native, entry(rcpRshamt, rvEncBits(rvOPIMM, 5, 0)))
	add(OpSshrImm, native, entry(rcpRshamt, rvEncBits(rvOPIMM, 5, 0x20)))

	// Comparisons: slt/sltu and their immediate forms are the only
	// conditions the hardware computes into a register.
	add(OpIcmp, native,
		entryWhen(rvPredCondSlt, rcpRicmp, rvEncBits(rvOP, 2, 0)),
		entryWhen(rvPredCondUlt, rcpRicmp, rvEncBits(rvOP, 3, 0)))
	add(OpIcmpImm, native,
		entryWhen(rvPredCondSlt, rcpIicmp, rvEncBits(rvOPIMM, 2, 0)),
		entryWhen(rvPredCondUlt, rcpIicmp, rvEncBits(rvOPIMM, 3, 0)))

	// Constants: addi from x0 when the immediate is small, otherwise
	// lui for the shifted-by-12 range.
	add(OpIconst, native,
		entry(rcpIz, rvEncBits(rvOPIMM, 0, 0)),
		entry(rcpU, rvEncBits(rvLUI, 0, 0)))

	// Register moves and spill/fill.
	add(OpCopy, native, entry(rcpIcopy, rvEncBits(rvOPIMM, 0, 0)))
	add(OpRegmove, native, entry(rcpIrmov, rvEncBits(rvOPIMM, 0, 0)))
	add(OpBint, native, entry(rcpIcopy, rvEncBits(rvOPIMM, 0, 0)))
	add(OpSpill, native, entry(rcpGPsp, rvEncBits(rvSTORE, storeF3, 0)))
	add(OpFill, native, entry(rcpGPfi, rvEncBits(rvLOAD, loadF3, 0)))
	add(OpCopyNop, native, entry(rcpStacknull, 0))

	// Branches on the native width and on b1.
	for _, ty := range []Type{native, B1} {
		add(OpBrz, ty, entry(rcpSBzero, rvEncBits(rvBRANCH, 0, 0)))
		add(OpBrnz, ty, entry(rcpSBzero, rvEncBits(rvBRANCH, 1, 0)))
	}
	add(OpCopy, B1, entry(rcpIcopy, rvEncBits(rvOPIMM, 0, 0)))

	// Fused compare-and-branch, one encoding per hardware condition.
	add(OpBrIcmp, native,
		entryWhen(rvPredCondEq, rcpSB, rvEncBits(rvBRANCH, 0, 0)),
		entryWhen(rvPredCondNe, rcpSB, rvEncBits(rvBRANCH, 1, 0)),
		entryWhen(rvPredCondSlt, rcpSB, rvEncBits(rvBRANCH, 4, 0)),
		entryWhen(rvPredCondSge, rcpSB, rvEncBits(rvBRANCH, 5, 0)),
		entryWhen(rvPredCondUlt, rcpSB, rvEncBits(rvBRANCH, 6, 0)),
		entryWhen(rvPredCondUge, rcpSB, rvEncBits(rvBRANCH, 7, 0)))

	// Non-polymorphic control flow.
	add(OpJump, INVALID, entry(rcpUJ, rvEncBits(rvJAL, 0, 0)))
	add(OpCall, INVALID, entry(rcpUJcall, rvEncBits(rvJAL, 0, 0)))
	add(OpCallIndirect, INVALID, entry(rcpIcall, rvEncBits(rvJALR, 0, 0)))
	add(OpReturn, INVALID, entry(rcpIret, rvEncBits(rvJALR, 0, 0)))

	if rv64 {
		// 32-bit operations use the *W opcode spaces so results stay
		// properly sign extended.
		add(OpIadd, I32, entry(rcpR, rvEncBits(rvOP32, 0, 0)))
		add(OpIsub, I32, entry(rcpR, rvEncBits(rvOP32, 0, 0x20)))
		add(OpImul, I32, entryIsap(riscvFullM, rcpR, rvEncBits(rvOP32, 0, 1)))
		add(OpIaddImm, I32, entry(rcpIi, rvEncBits(rvOPIMM32, 0, 0)))
		add(OpIshl, I32, entry(rcpR, rvEncBits(rvOP32, 1, 0)))
		add(OpUshr, I32, entry(rcpR, rvEncBits(rvOP32, 5, 0)))
		add(OpSshr, I32, entry(rcpR, rvEncBits(rvOP32, 5, 0x20)))
		add(OpIshlImm, I32, entry(rcpRshamt, rvEncBits(rvOPIMM32, 1, 0)))
		add(OpUshrImm, I32, entry(rcpRshamt, rvEncBits(rvOPIMM32, 5, 0)))
		add(OpSshrImm, I32, entry(rcpRshamt, rvEncBits(rvOPIMM32, 5, 0x20)))

		// Bitwise operations are width agnostic.
		add(OpBand, I32, entry(rcpR, rvEncBits(rvOP, 7, 0)))
		add(OpBor, I32, entry(rcpR, rvEncBits(rvOP, 6, 0)))
		add(OpBxor, I32, entry(rcpR, rvEncBits(rvOP, 4, 0)))
		add(OpBandImm, I32, entry(rcpIi, rvEncBits(rvOPIMM, 7, 0)))
		add(OpBorImm, I32, entry(rcpIi, rvEncBits(rvOPIMM, 6, 0)))
		add(OpBxorImm, I32, entry(rcpIi, rvEncBits(rvOPIMM, 4, 0)))

		// Sign-extended representations make the full width compares
		// and branches correct for i32 as well.
		add(OpIcmp, I32,
			entryWhen(rvPredCondSlt, rcpRicmp, rvEncBits(rvOP, 2, 0)),
			entryWhen(rvPredCondUlt, rcpRicmp, rvEncBits(rvOP, 3, 0)))
		add(OpIcmpImm, I32,
			entryWhen(rvPredCondSlt, rcpIicmp, rvEncBits(rvOPIMM, 2, 0)),
			entryWhen(rvPredCondUlt, rcpIicmp, rvEncBits(rvOPIMM, 3, 0)))
		add(OpIconst, I32,
			entry(rcpIz, rvEncBits(rvOPIMM, 0, 0)),
			entry(rcpU, rvEncBits(rvLUI, 0, 0)))
		add(OpCopy, I32, entry(rcpIcopy, rvEncBits(rvOPIMM, 0, 0)))
		add(OpRegmove, I32, entry(rcpIrmov, rvEncBits(rvOPIMM, 0, 0)))
		add(OpBint, I32, entry(rcpIcopy, rvEncBits(rvOPIMM, 0, 0)))
		add(OpSpill, I32, entry(rcpGPsp, rvEncBits(rvSTORE, 2, 0)))
		add(OpFill, I32, entry(rcpGPfi, rvEncBits(rvLOAD, 2, 0)))
		add(OpBrz, I32, entry(rcpSBzero, rvEncBits(rvBRANCH, 0, 0)))
		add(OpBrnz, I32, entry(rcpSBzero, rvEncBits(rvBRANCH, 1, 0)))
		add(OpBrIcmp, I32,
			entryWhen(rvPredCondEq, rcpSB, rvEncBits(rvBRANCH, 0, 0)),
			entryWhen(rvPredCondNe, rcpSB, rvEncBits(rvBRANCH, 1, 0)),
			entryWhen(rvPredCondSlt, rcpSB, rvEncBits(rvBRANCH, 4, 0)),
			entryWhen(rvPredCondSge, rcpSB, rvEncBits(rvBRANCH, 5, 0)),
			entryWhen(rvPredCondUlt, rcpSB, rvEncBits(rvBRANCH, 6, 0)),
			entryWhen(rvPredCondUge, rcpSB, rvEncBits(rvBRANCH, 7, 0)))
	}
	return defs
}

// riscvTypeActions assigns each controlling type its legalization
// action for one CPU mode.
func riscvTypeActions(rv64 bool) map[Type]uint8 {
	actions := map[Type]uint8{
		INVALID: rvActExpand,
		B1:      rvActExpand,
		I8:      rvActWiden,
		I16:     rvActWiden,
		I32:     rvActExpand,
		I64:     rvActNarrow,
		I128:    rvActNarrow,
		F32:     rvActExpand,
		F64:     rvActExpand,
	}
	if rv64 {
		actions[I64] = rvActExpand
	}
	return actions
}

// riscvLibcallName names the compiler-rt routine for operations the
// hardware cannot do, picked by operand width.
func riscvLibcallName(op Opcode, ty Type) string {
	suffix := ""
	switch ty.Bits() {
	case 32:
		suffix = "si3"
	case 64:
		suffix = "di3"
	case 128:
		suffix = "ti3"
	default:
		return ""
	}
	switch op {
	case OpImul:
		return "__mul" + suffix
	case OpSdiv:
		return "__div" + suffix
	case OpUdiv:
		return "__udiv" + suffix
	case OpSrem:
		return "__mod" + suffix
	case OpUrem:
		return "__umod" + suffix
	}
	return ""
}

func newRiscvISA(mode string, native Type, rv64 bool, shared SharedFlags, isaFlags Flags) *ISA {
	if isaFlags.template != riscvTemplate {
		panic("flags are not RISC-V settings")
	}
	isa := &ISA{
		Name:        "riscv",
		CPUMode:     mode,
		PointerType: native,
		Shared:      shared,
		IsaFlags:    isaFlags,
		predView:    isaFlags.PredicateView(),
		RegInfo:     RiscvRegInfo,
		Recipes:     riscvRecipes(),
		InstPreds:   riscvInstPreds(),
		LegalizeActions: []LegalizeAction{
			rvActExpand: expand,
			rvActNarrow: narrowNoFlags,
			rvActWiden:  widen,
		},
		LegalizeNames: []string{
			rvActExpand: "expand",
			rvActNarrow: "narrow",
			rvActWiden:  "widen",
		},
		LibcallName: riscvLibcallName,
	}
	isa.Tables = buildEncTables(riscvEncDefs(native, rv64), riscvTypeActions(rv64),
		rvActNarrow, numRiscvInstPreds)
	isa.Emitters = riscvEmitters()
	return isa
}

// NewRV32 returns the 32-bit RISC-V target.
func NewRV32(shared SharedFlags, isaFlags Flags) *ISA {
	return newRiscvISA("rv32", I32, false, shared, isaFlags)
}

// NewRV64 returns the 64-bit RISC-V target.
func NewRV64(shared SharedFlags, isaFlags Flags) *ISA {
	return newRiscvISA("rv64", I64, true, shared, isaFlags)
}
