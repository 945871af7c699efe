// Completion: 100% - value types and type sets complete
package legalize

import "fmt"

// Type is the type of an SSA value: a boolean, an integer or a floating
// point number of a fixed width, or a CPU flags value produced by a
// comparison instruction.
type Type uint8

const (
	// INVALID marks a missing or unknown type. It doubles as the empty
	// marker in the level 1 encoding tables.
	INVALID Type = iota
	B1
	I8
	I16
	I32
	I64
	I128
	F32
	F64
	IFLAGS
	FFLAGS
)

var typeNames = [...]string{
	INVALID: "invalid",
	B1:      "b1",
	I8:      "i8",
	I16:     "i16",
	I32:     "i32",
	I64:     "i64",
	I128:    "i128",
	F32:     "f32",
	F64:     "f64",
	IFLAGS:  "iflags",
	FFLAGS:  "fflags",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type%d", uint8(t))
}

// Bits returns the width of the type in bits, or 0 for non-numeric types.
func (t Type) Bits() int {
	switch t {
	case B1:
		return 1
	case I8:
		return 8
	case I16:
		return 16
	case I32, F32:
		return 32
	case I64, F64:
		return 64
	case I128:
		return 128
	}
	return 0
}

// IsInt reports whether t is an integer type.
func (t Type) IsInt() bool {
	return t >= I8 && t <= I128
}

// IsFloat reports whether t is a floating point type.
func (t Type) IsFloat() bool {
	return t == F32 || t == F64
}

// IsBool reports whether t is a boolean type.
func (t Type) IsBool() bool {
	return t == B1
}

// IsFlags reports whether t is a CPU flags type.
func (t Type) IsFlags() bool {
	return t == IFLAGS || t == FFLAGS
}

// HalfWidth returns the integer type of half the width, or INVALID when
// no such type exists.
func (t Type) HalfWidth() Type {
	switch t {
	case I16:
		return I8
	case I32:
		return I16
	case I64:
		return I32
	case I128:
		return I64
	}
	return INVALID
}

// DoubleWidth returns the integer type of twice the width, or INVALID
// when no such type exists.
func (t Type) DoubleWidth() Type {
	switch t {
	case I8:
		return I16
	case I16:
		return I32
	case I32:
		return I64
	case I64:
		return I128
	}
	return INVALID
}

// IntWithBits returns the integer type of the given width.
func IntWithBits(bits int) Type {
	switch bits {
	case 8:
		return I8
	case 16:
		return I16
	case 32:
		return I32
	case 64:
		return I64
	case 128:
		return I128
	}
	return INVALID
}

// log2bits maps a bit width to its log2, used for type set membership.
func log2bits(bits int) uint {
	n := uint(0)
	for bits > 1 {
		bits >>= 1
		n++
	}
	return n
}

// TypeSet is a compact set of value types: a bitmask of permitted lane
// counts (bit n = 1<<n lanes) and a bitmask of permitted integer widths
// (bit n = 1<<n bits). Scalars occupy lane bit 0.
type TypeSet struct {
	Lanes uint16
	Ints  uint8
}

// Contains reports whether the scalar integer type t is a member.
func (ts TypeSet) Contains(t Type) bool {
	if !t.IsInt() {
		return false
	}
	if ts.Lanes&1 == 0 {
		return false
	}
	return ts.Ints&(1<<log2bits(t.Bits())) != 0
}

// Type sets referenced by the legalization groups. The widths run from
// i8 (bit 3) up to i128 (bit 7); the 0xf0 sets exclude i8. Wide types
// can be split in half, narrow types are below the 32-bit promotion
// width.
var (
	tsAnyInt       = TypeSet{Lanes: 0x1ff, Ints: 0xf8}
	tsScalarInt    = TypeSet{Lanes: 0x1, Ints: 0xf8}
	tsAnyInt16Up   = TypeSet{Lanes: 0x1ff, Ints: 0xf0}
	tsScalarWide   = TypeSet{Lanes: 0x1, Ints: 0xf0}
	tsScalarNarrow = TypeSet{Lanes: 0x1, Ints: 0x18}
)
