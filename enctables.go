// Completion: 100% - two-level encoding tables and list interpreter complete
package legalize

import "fmt"

// Encoding lookup runs in three stages. A level 1 hash table keyed by
// the instruction's controlling type points at a level 2 hash table
// keyed by opcode, which points at an encoding list: a program of
// 16-bit words naming candidate recipes guarded by predicates. The
// first candidate whose predicates all hold wins. Both hash tables are
// open addressed with triangular probing and never change after they
// are built.

// Encoding list words. Values below encCtrlBase are recipe entries:
// the recipe index shifted left one, with bit 0 set on the last
// candidate of the list. A recipe entry is followed by one word of
// encoding bits. Control words carry a predicate number in their low
// 12 bits: predicate numbers below the ISA's instruction predicate
// count test the instruction, the rest index the settings predicate
// view.
const (
	encCtrlBase = 0x1000

	// codeStopUnless aborts the list when the predicate fails.
	codeStopUnless = 0x1000
	// codeSkipUnless skips the next recipe entry (two words) when the
	// predicate fails.
	codeSkipUnless = 0x3000

	encCtrlMask = 0xf000
	encPredMask = 0x0fff
)

// emptyLog2Len marks an unoccupied level 1 slot. The type field alone
// cannot mark emptiness because INVALID is the real key of the
// non-polymorphic instruction group.
const emptyLog2Len = 0xff

// Level1Entry maps a controlling type to its level 2 subtable and the
// legalization action for opcodes missing from it.
type Level1Entry struct {
	Ty       Type
	Log2Len  uint8
	Offset   uint32
	Legalize uint8
}

// Level2Entry maps an opcode to the offset of its encoding list.
type Level2Entry struct {
	Op     Opcode
	Offset uint32
}

// EncTables is the complete encoding lookup structure for one CPU
// mode.
type EncTables struct {
	Level1   []Level1Entry
	Level2   []Level2Entry
	Enclists []uint16

	// DefaultLegalize is the action for controlling types with no
	// level 1 entry at all.
	DefaultLegalize uint8
}

// hashU32 is the multiplicative hash for the numeric table keys.
func hashU32(x uint32) uint32 { return x * 0x9e3779b9 }

// lookup finds the encoding for inst, or reports the legalization
// action to apply. A zero-value Encoding with Recipe == noRecipe means
// no encoding exists.
func (et *EncTables) lookup(f *Function, inst Inst, isa *ISA) (Encoding, uint8) {
	ctrl := f.CtrlType(inst)

	l1 := et.probeLevel1(ctrl)
	if l1 == nil {
		return badEncoding, et.DefaultLegalize
	}
	l2 := et.probeLevel2(l1, f.InstData(inst).Op)
	if l2 == nil {
		return badEncoding, l1.Legalize
	}

	offset := l2.Offset
	for {
		word := et.Enclists[offset]
		if word < encCtrlBase {
			recipe := word >> 1
			stop := word&1 != 0
			bits := et.Enclists[offset+1]
			r := &isa.Recipes[recipe]
			if r.Pred == nil || r.Pred(f, inst) {
				return Encoding{Recipe: recipe, Bits: bits}, l1.Legalize
			}
			if stop {
				break
			}
			offset += 2
			continue
		}
		pred := int(word & encPredMask)
		switch word & encCtrlMask {
		case codeStopUnless:
			if !isa.checkPred(f, inst, pred) {
				return badEncoding, l1.Legalize
			}
			offset++
		case codeSkipUnless:
			if isa.checkPred(f, inst, pred) {
				offset++
			} else {
				offset += 3
			}
		default:
			panic(fmt.Sprintf("malformed encoding list word %#x at %d", word, offset))
		}
	}
	return badEncoding, l1.Legalize
}

func (et *EncTables) probeLevel1(ty Type) *Level1Entry {
	mask := uint32(len(et.Level1) - 1)
	idx := hashU32(uint32(ty)) & mask
	step := uint32(0)
	for {
		e := &et.Level1[idx]
		if e.Log2Len == emptyLog2Len {
			return nil
		}
		if e.Ty == ty {
			return e
		}
		step++
		idx = (idx + step) & mask
	}
}

func (et *EncTables) probeLevel2(l1 *Level1Entry, op Opcode) *Level2Entry {
	length := uint32(1) << l1.Log2Len
	sub := et.Level2[l1.Offset : l1.Offset+length]
	mask := length - 1
	idx := hashU32(uint32(op)) & mask
	step := uint32(0)
	for {
		e := &sub[idx]
		if e.Op == OpInvalid {
			return nil
		}
		if e.Op == op {
			return e
		}
		step++
		idx = (idx + step) & mask
	}
}

// encEntry is one candidate in an encoding definition: a recipe, its
// bits, and optional predicate guards.
type encEntry struct {
	recipe   int
	bits     uint16
	instPred int // skip this candidate unless the predicate holds; -1 none
	isaPred  int // abort the whole list unless the setting holds; -1 none
}

// entry builds an unguarded candidate.
func entry(recipe int, bits uint16) encEntry {
	return encEntry{recipe: recipe, bits: bits, instPred: -1, isaPred: -1}
}

// entryWhen guards a candidate with an instruction predicate.
func entryWhen(pred, recipe int, bits uint16) encEntry {
	return encEntry{recipe: recipe, bits: bits, instPred: pred, isaPred: -1}
}

// entryIsap gates the list on an ISA settings predicate.
func entryIsap(isap, recipe int, bits uint16) encEntry {
	return encEntry{recipe: recipe, bits: bits, instPred: -1, isaPred: isap}
}

// encDef is every candidate encoding for one (opcode, type) pair.
type encDef struct {
	op      Opcode
	ty      Type
	entries []encEntry
}

// buildEncTables assembles the two-level tables from the definitions.
// typeActions must name a legalize action for every controlling type
// the mode knows about, including types with no encodings at all.
func buildEncTables(defs []encDef, typeActions map[Type]uint8, defaultAction uint8, numInstPreds int) *EncTables {
	et := &EncTables{DefaultLegalize: defaultAction}

	// Emit the encoding lists and group offsets by (type, opcode).
	type tyOps struct {
		ops     []Opcode
		offsets map[Opcode]uint32
	}
	groups := make(map[Type]*tyOps)
	for ty := range typeActions {
		groups[ty] = &tyOps{offsets: make(map[Opcode]uint32)}
	}
	for _, d := range defs {
		g, ok := groups[d.ty]
		if !ok {
			panic(fmt.Sprintf("encoding for %s.%s but no legalize action for %s",
				d.op, d.ty, d.ty))
		}
		if _, dup := g.offsets[d.op]; dup {
			panic(fmt.Sprintf("duplicate encoding definition for %s.%s", d.op, d.ty))
		}
		g.offsets[d.op] = uint32(len(et.Enclists))
		g.ops = append(g.ops, d.op)
		for i, e := range d.entries {
			last := i == len(d.entries)-1
			if e.isaPred >= 0 {
				et.Enclists = append(et.Enclists, codeStopUnless|uint16(numInstPreds+e.isaPred))
			}
			if e.instPred >= 0 {
				// The last candidate's guard must end the list on
				// failure; a skip here would walk into the next list.
				code := uint16(codeSkipUnless)
				if last {
					code = codeStopUnless
				}
				et.Enclists = append(et.Enclists, code|uint16(e.instPred))
			}
			word := uint16(e.recipe) << 1
			if last {
				word |= 1
			}
			et.Enclists = append(et.Enclists, word, e.bits)
		}
	}

	// Build the level 2 subtables.
	type l1def struct {
		ty       Type
		log2len  uint8
		offset   uint32
		legalize uint8
	}
	var l1defs []l1def
	for ty, action := range typeActions {
		g := groups[ty]
		size := uint32(2)
		for size < uint32(2*len(g.ops)) {
			size *= 2
		}
		log2len := uint8(0)
		for uint32(1)<<log2len < size {
			log2len++
		}
		offset := uint32(len(et.Level2))
		sub := make([]Level2Entry, size)
		for _, op := range g.ops {
			mask := size - 1
			idx := hashU32(uint32(op)) & mask
			step := uint32(0)
			for sub[idx].Op != OpInvalid {
				step++
				idx = (idx + step) & mask
			}
			sub[idx] = Level2Entry{Op: op, Offset: g.offsets[op]}
		}
		et.Level2 = append(et.Level2, sub...)
		l1defs = append(l1defs, l1def{ty: ty, log2len: log2len, offset: offset, legalize: action})
	}

	// Build the level 1 table.
	size := uint32(2)
	for size < uint32(2*len(l1defs)) {
		size *= 2
	}
	et.Level1 = make([]Level1Entry, size)
	for i := range et.Level1 {
		et.Level1[i].Log2Len = emptyLog2Len
	}
	for _, d := range l1defs {
		mask := size - 1
		idx := hashU32(uint32(d.ty)) & mask
		step := uint32(0)
		for et.Level1[idx].Log2Len != emptyLog2Len {
			step++
			idx = (idx + step) & mask
		}
		et.Level1[idx] = Level1Entry{Ty: d.ty, Log2Len: d.log2len, Offset: d.offset, Legalize: d.legalize}
	}
	return et
}
