// Completion: 100% - encoding recipe descriptions complete
package legalize

// Encoding is a recipe index paired with the recipe-specific encoding
// bits. The zero bits value is meaningful, so illegality is marked by
// the recipe index alone.
type Encoding struct {
	Recipe uint16
	Bits   uint16
}

// noRecipe marks an instruction with no legal encoding.
const noRecipe uint16 = 0xffff

// IsLegal reports whether the encoding refers to a real recipe.
func (e Encoding) IsLegal() bool { return e.Recipe != noRecipe }

// badEncoding is the canonical illegal encoding.
var badEncoding = Encoding{Recipe: noRecipe}

// InstPredicate checks a property of a specific instruction, like a
// condition code or an immediate that fits a field.
type InstPredicate func(*Function, Inst) bool

// EncodingRecipe describes one way of encoding instructions: the
// binary format, its size, register constraints, and an optional
// predicate that re-validates operands against the recipe's fields.
type EncodingRecipe struct {
	Name string
	Size uint8

	// BranchRange is the bit width of the signed branch displacement,
	// or 0 for non-branch recipes. The displacement is measured from
	// the address of the branch itself.
	BranchRange uint8

	InRegs  []*RegClass
	OutRegs []*RegClass

	Pred InstPredicate
}

// branchReach reports whether a byte offset fits the recipe's branch
// displacement field.
func (r *EncodingRecipe) branchReach(offset int64) bool {
	if r.BranchRange == 0 {
		return false
	}
	limit := int64(1) << (r.BranchRange - 1)
	return offset >= -limit && offset < limit
}

// isSignedInt reports whether x is a signed integer of the given bit
// width whose low `scale` bits are zero. This is the immediate field
// check shared by the recipe predicates.
func isSignedInt(x int64, bits, scale uint) bool {
	s := x >> scale
	if s<<scale != x {
		return false
	}
	limit := int64(1) << (bits - 1)
	return s >= -limit && s < limit
}
