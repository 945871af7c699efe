// Completion: 100% - register banks, classes and aliasing complete
package legalize

import (
	"fmt"
	"strconv"
)

// RegUnit is the index of one allocation unit in a target's register
// file. Wide registers cover several consecutive units.
type RegUnit uint16

// RegBank is a contiguous run of register units sharing a naming
// scheme. Units are named either by an explicit list or by a prefix
// plus the unit's index within the bank.
type RegBank struct {
	Name      string
	FirstUnit RegUnit
	Units     RegUnit
	Names     []string
	Prefix    string

	FirstTopRC       int
	NumTopRCs        int
	PressureTracking bool
}

// Contains reports whether unit lies in this bank.
func (b *RegBank) Contains(unit RegUnit) bool {
	return unit >= b.FirstUnit && unit < b.FirstUnit+b.Units
}

// unitName returns the name of a unit in this bank, without the "%".
func (b *RegBank) unitName(unit RegUnit) string {
	rel := int(unit - b.FirstUnit)
	if rel < len(b.Names) && b.Names[rel] != "" {
		return b.Names[rel]
	}
	return b.Prefix + strconv.Itoa(rel)
}

// RegClass is a set of registers the allocator may choose from for one
// kind of operand. A class covers registers of a fixed width (in
// units) starting at First; Mask has one bit per possible first unit.
type RegClass struct {
	Name  string
	Index int
	Width RegUnit
	Bank  int
	TopRC int
	First RegUnit

	// Subclasses is a bitmask of class indexes: this class and every
	// class allocatable from it.
	Subclasses uint64

	// Mask marks the valid first units of registers in the class, in
	// 32-bit chunks of the global unit space.
	Mask [3]uint32
}

// Contains reports whether the register starting at unit belongs to
// the class.
func (rc *RegClass) Contains(unit RegUnit) bool {
	return rc.Mask[unit/32]&(1<<(unit%32)) != 0
}

// Unit returns the n'th register of the class, counting only valid
// first units.
func (rc *RegClass) Unit(n int) RegUnit {
	unit := rc.First + RegUnit(n)*rc.Width
	if !rc.Contains(unit) {
		panic(fmt.Sprintf("register class %s has no unit %d", rc.Name, n))
	}
	return unit
}

// HasSubclass reports whether other is a subclass of rc.
func (rc *RegClass) HasSubclass(other *RegClass) bool {
	return rc.Subclasses&(1<<uint(other.Index)) != 0
}

// RegsOverlap reports whether the register starting at reg1 in rc1
// shares any unit with the register starting at reg2 in rc2. Register
// widths differ between classes, so this is an interval test over the
// covered units.
func RegsOverlap(rc1 *RegClass, reg1 RegUnit, rc2 *RegClass, reg2 RegUnit) bool {
	end1 := reg1 + rc1.Width
	end2 := reg2 + rc2.Width
	return !(end1 <= reg2 || end2 <= reg1)
}

// RegInfo describes a target's complete register file: its banks and
// the classes carved out of them.
type RegInfo struct {
	Banks   []RegBank
	Classes []*RegClass
}

// BankContaining returns the bank holding unit, or nil.
func (ri *RegInfo) BankContaining(unit RegUnit) *RegBank {
	for i := range ri.Banks {
		if ri.Banks[i].Contains(unit) {
			return &ri.Banks[i]
		}
	}
	return nil
}

// DisplayRegUnit formats a unit as "%name". Out of range units format
// as "%INVALID<n>" so diagnostics never hide a bad unit.
func (ri *RegInfo) DisplayRegUnit(unit RegUnit) string {
	if b := ri.BankContaining(unit); b != nil {
		return "%" + b.unitName(unit)
	}
	return fmt.Sprintf("%%INVALID%d", unit)
}

// ParseRegUnit recognizes a register name, with or without a leading
// "%", and returns its unit number.
func (ri *RegInfo) ParseRegUnit(name string) (RegUnit, bool) {
	if len(name) > 0 && name[0] == '%' {
		name = name[1:]
	}
	for i := range ri.Banks {
		b := &ri.Banks[i]
		for rel, n := range b.Names {
			if n != "" && n == name {
				return b.FirstUnit + RegUnit(rel), true
			}
		}
		if b.Prefix == "" || len(name) <= len(b.Prefix) || name[:len(b.Prefix)] != b.Prefix {
			continue
		}
		digits := name[len(b.Prefix):]
		// Reject "x007": unit names are canonical.
		if len(digits) > 1 && digits[0] == '0' {
			continue
		}
		rel, err := strconv.Atoi(digits)
		if err != nil || rel < 0 || RegUnit(rel) >= b.Units {
			continue
		}
		return b.FirstUnit + RegUnit(rel), true
	}
	return 0, false
}
