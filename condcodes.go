// Completion: 100% - integer condition code algebra complete
package legalize

// IntCC is an integer comparison condition code.
type IntCC uint8

const (
	IntEqual IntCC = iota
	IntNotEqual
	IntSignedLessThan
	IntSignedGreaterThanOrEqual
	IntSignedGreaterThan
	IntSignedLessThanOrEqual
	IntUnsignedLessThan
	IntUnsignedGreaterThanOrEqual
	IntUnsignedGreaterThan
	IntUnsignedLessThanOrEqual
)

var intccNames = [...]string{
	IntEqual:                      "eq",
	IntNotEqual:                   "ne",
	IntSignedLessThan:             "slt",
	IntSignedGreaterThanOrEqual:   "sge",
	IntSignedGreaterThan:          "sgt",
	IntSignedLessThanOrEqual:      "sle",
	IntUnsignedLessThan:           "ult",
	IntUnsignedGreaterThanOrEqual: "uge",
	IntUnsignedGreaterThan:        "ugt",
	IntUnsignedLessThanOrEqual:    "ule",
}

func (cc IntCC) String() string {
	if int(cc) < len(intccNames) {
		return intccNames[cc]
	}
	return "??"
}

// Inverse returns the negated condition: Inverse(slt) is sge.
func (cc IntCC) Inverse() IntCC {
	switch cc {
	case IntEqual:
		return IntNotEqual
	case IntNotEqual:
		return IntEqual
	case IntSignedLessThan:
		return IntSignedGreaterThanOrEqual
	case IntSignedGreaterThanOrEqual:
		return IntSignedLessThan
	case IntSignedGreaterThan:
		return IntSignedLessThanOrEqual
	case IntSignedLessThanOrEqual:
		return IntSignedGreaterThan
	case IntUnsignedLessThan:
		return IntUnsignedGreaterThanOrEqual
	case IntUnsignedGreaterThanOrEqual:
		return IntUnsignedLessThan
	case IntUnsignedGreaterThan:
		return IntUnsignedLessThanOrEqual
	case IntUnsignedLessThanOrEqual:
		return IntUnsignedGreaterThan
	}
	return cc
}

// Reverse returns the condition with the operands swapped: Reverse(slt)
// is sgt.
func (cc IntCC) Reverse() IntCC {
	switch cc {
	case IntSignedLessThan:
		return IntSignedGreaterThan
	case IntSignedGreaterThan:
		return IntSignedLessThan
	case IntSignedGreaterThanOrEqual:
		return IntSignedLessThanOrEqual
	case IntSignedLessThanOrEqual:
		return IntSignedGreaterThanOrEqual
	case IntUnsignedLessThan:
		return IntUnsignedGreaterThan
	case IntUnsignedGreaterThan:
		return IntUnsignedLessThan
	case IntUnsignedGreaterThanOrEqual:
		return IntUnsignedLessThanOrEqual
	case IntUnsignedLessThanOrEqual:
		return IntUnsignedGreaterThanOrEqual
	}
	return cc
}

// Unsigned maps a signed ordering to its unsigned counterpart, leaving
// everything else alone. Used when comparing the low halves of split
// integers, which always compare unsigned.
func (cc IntCC) Unsigned() IntCC {
	switch cc {
	case IntSignedLessThan:
		return IntUnsignedLessThan
	case IntSignedGreaterThanOrEqual:
		return IntUnsignedGreaterThanOrEqual
	case IntSignedGreaterThan:
		return IntUnsignedGreaterThan
	case IntSignedLessThanOrEqual:
		return IntUnsignedLessThanOrEqual
	}
	return cc
}

// WithoutEqual strips the equality from an ordered condition: sle
// becomes slt. Panics on eq/ne, which have no ordered part.
func (cc IntCC) WithoutEqual() IntCC {
	switch cc {
	case IntSignedLessThan, IntSignedLessThanOrEqual:
		return IntSignedLessThan
	case IntSignedGreaterThan, IntSignedGreaterThanOrEqual:
		return IntSignedGreaterThan
	case IntUnsignedLessThan, IntUnsignedLessThanOrEqual:
		return IntUnsignedLessThan
	case IntUnsignedGreaterThan, IntUnsignedGreaterThanOrEqual:
		return IntUnsignedGreaterThan
	}
	panic("condition has no ordered component: " + cc.String())
}

// IsSigned reports whether the condition is a signed ordering.
func (cc IntCC) IsSigned() bool {
	switch cc {
	case IntSignedLessThan, IntSignedGreaterThanOrEqual,
		IntSignedGreaterThan, IntSignedLessThanOrEqual:
		return true
	}
	return false
}
