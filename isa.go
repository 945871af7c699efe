// Completion: 100% - target ISA interface complete
package legalize

// LegalizeAction rewrites one illegal instruction into legal ones.
// It returns false when the instruction does not match any of its
// rules. Actions are registered per ISA and named by index from the
// encoding tables.
type LegalizeAction func(f *Function, inst Inst, cfg *ControlFlowGraph, isa *ISA) bool

// recipeEmitter packs one encoded instruction into the sink.
type recipeEmitter func(f *Function, inst Inst, bits uint16, sink CodeSink, e *Emitter)

// ISA bundles everything the legalizer and encoder need to know about
// one target CPU mode: register file, recipes, encoding tables,
// legalization actions and frozen settings.
type ISA struct {
	Name    string
	CPUMode string

	// PointerType is the native address width.
	PointerType Type

	Shared   SharedFlags
	IsaFlags Flags
	predView PredicateView

	RegInfo *RegInfo

	Recipes   []EncodingRecipe
	InstPreds []InstPredicate
	Tables    *EncTables

	LegalizeActions []LegalizeAction
	LegalizeNames   []string

	// LibcallName maps an unencodable instruction to a runtime
	// routine, or "" when no routine exists. The legalizer's last
	// resort before declaring the instruction stuck.
	LibcallName func(op Opcode, ty Type) string

	Emitters []recipeEmitter
}

// checkPred evaluates a combined predicate number: instruction
// predicates first, then the ISA settings predicates.
func (isa *ISA) checkPred(f *Function, inst Inst, pred int) bool {
	if pred < len(isa.InstPreds) {
		return isa.InstPreds[pred](f, inst)
	}
	return isa.predView.Test(pred - len(isa.InstPreds))
}

// EncodingFor looks up the encoding of inst, or returns an illegal
// encoding together with the index of the legalization action to try.
func (isa *ISA) EncodingFor(f *Function, inst Inst) (Encoding, uint8) {
	return isa.Tables.lookup(f, inst, isa)
}

// RecipeName names a recipe for diagnostics.
func (isa *ISA) RecipeName(e Encoding) string {
	if !e.IsLegal() {
		return "-"
	}
	return isa.Recipes[e.Recipe].Name
}

// InstSize returns the encoded size in bytes of a legalized
// instruction, 0 for instructions that emit nothing.
func (isa *ISA) InstSize(f *Function, inst Inst) uint8 {
	e := f.Encoding(inst)
	if !e.IsLegal() {
		return 0
	}
	return isa.Recipes[e.Recipe].Size
}
