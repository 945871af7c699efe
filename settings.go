// Completion: 100% - packed settings with numbered predicates complete
package legalize

import (
	"fmt"
	"strings"
)

// Settings are packed into a byte array so an ISA's encoding tables can
// test them by number instead of by name. Boolean settings occupy
// single bits; enums and numbers occupy whole bytes. Each bool setting
// is also a predicate, and a template may define computed predicates
// (conjunctions of bools) after them; the encoder's predicate words
// index into that combined bit space.

type settingKind uint8

const (
	boolSetting settingKind = iota
	enumSetting
	numSetting
)

type settingDescriptor struct {
	name       string
	kind       settingKind
	byteOffset uint8
	bitOffset  uint8 // bool settings only
	defaultVal uint8
	values     []string // enum settings only
	predNum    int      // predicate number of a bool setting
}

// Template describes a group of settings: their packed layout, their
// defaults, and the computed predicates derived from them.
type Template struct {
	name        string
	descriptors []settingDescriptor
	byteLen     int
	// Computed predicates, each a conjunction of bool predicate
	// numbers, numbered after the bool settings themselves.
	predicates [][]int
	numPreds   int
	hashTable  []int // open addressed index into descriptors, by name
}

// TemplateBuilder assembles a Template. The resulting layout is fixed
// by declaration order.
type TemplateBuilder struct {
	t        Template
	boolBits int
}

// NewTemplateBuilder starts a template with the given name.
func NewTemplateBuilder(name string) *TemplateBuilder {
	return &TemplateBuilder{t: Template{name: name}}
}

// AddBool declares a boolean setting and returns its predicate number.
func (tb *TemplateBuilder) AddBool(name string, def bool) int {
	d := settingDescriptor{
		name:       name,
		kind:       boolSetting,
		byteOffset: uint8(tb.boolBits / 8),
		bitOffset:  uint8(tb.boolBits % 8),
		predNum:    tb.boolBits,
	}
	if def {
		d.defaultVal = 1
	}
	tb.boolBits++
	tb.t.descriptors = append(tb.t.descriptors, d)
	return d.predNum
}

// AddEnum declares an enumerated setting; the first value is the
// default unless def says otherwise.
func (tb *TemplateBuilder) AddEnum(name string, values ...string) {
	tb.t.descriptors = append(tb.t.descriptors, settingDescriptor{
		name:   name,
		kind:   enumSetting,
		values: values,
	})
}

// AddNum declares a small numeric setting.
func (tb *TemplateBuilder) AddNum(name string, def uint8) {
	tb.t.descriptors = append(tb.t.descriptors, settingDescriptor{
		name:       name,
		kind:       numSetting,
		defaultVal: def,
	})
}

// AddPredicate declares a computed predicate as the conjunction of
// previously declared bool settings, and returns its number.
func (tb *TemplateBuilder) AddPredicate(bools ...int) int {
	tb.t.predicates = append(tb.t.predicates, bools)
	return tb.boolBits + len(tb.t.predicates) - 1
}

// Build finalizes the layout: bool bits are packed first, then enum and
// num settings each take a byte, and the name hash table is built.
func (tb *TemplateBuilder) Build() *Template {
	t := &tb.t
	byteLen := (tb.boolBits + 7) / 8
	for i := range t.descriptors {
		d := &t.descriptors[i]
		if d.kind != boolSetting {
			d.byteOffset = uint8(byteLen)
			byteLen++
		}
	}
	t.byteLen = byteLen
	t.numPreds = tb.boolBits + len(t.predicates)

	size := 2
	for size < 2*len(t.descriptors) {
		size *= 2
	}
	t.hashTable = make([]int, size)
	for i := range t.hashTable {
		t.hashTable[i] = -1
	}
	for i, d := range t.descriptors {
		slot, ok := probe(t.hashTable, d.name, func(idx int) string {
			return t.descriptors[idx].name
		})
		if ok {
			panic("duplicate setting name: " + d.name)
		}
		t.hashTable[slot] = i
	}
	return t
}

// simpleHash is the string hash used by the setting name tables, a
// multiply-xor over the bytes of the name.
func simpleHash(s string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = h*33 ^ uint32(s[i])
	}
	return h
}

// probe walks an open addressed table with triangular steps. It
// returns the slot holding key, or the empty slot where it belongs.
func probe(table []int, key string, nameAt func(int) string) (int, bool) {
	mask := len(table) - 1
	idx := int(simpleHash(key)) & mask
	step := 0
	for {
		if table[idx] < 0 {
			return idx, false
		}
		if nameAt(table[idx]) == key {
			return idx, true
		}
		step++
		idx = (idx + step) & mask
	}
}

func (t *Template) lookup(name string) (*settingDescriptor, bool) {
	slot, ok := probe(t.hashTable, name, func(idx int) string {
		return t.descriptors[idx].name
	})
	if !ok {
		return nil, false
	}
	return &t.descriptors[t.hashTable[slot]], true
}

// Builder accumulates setting values for a template before they are
// frozen into Flags.
type Builder struct {
	template *Template
	bytes    []byte
}

// NewBuilder returns a builder holding the template defaults.
func NewBuilder(t *Template) *Builder {
	b := &Builder{template: t, bytes: make([]byte, t.byteLen)}
	for _, d := range t.descriptors {
		switch d.kind {
		case boolSetting:
			if d.defaultVal != 0 {
				b.bytes[d.byteOffset] |= 1 << d.bitOffset
			}
		case enumSetting:
			b.bytes[d.byteOffset] = 0
		case numSetting:
			b.bytes[d.byteOffset] = d.defaultVal
		}
	}
	return b
}

// parseBool accepts the usual spellings of a boolean value.
func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "on", "yes", "1":
		return true, nil
	case "false", "off", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool value %q", value)
}

// Set assigns a setting by name from its string representation.
func (b *Builder) Set(name, value string) error {
	d, ok := b.template.lookup(name)
	if !ok {
		return fmt.Errorf("no setting named %q in %s", name, b.template.name)
	}
	switch d.kind {
	case boolSetting:
		v, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("setting %q: %v", name, err)
		}
		if v {
			b.bytes[d.byteOffset] |= 1 << d.bitOffset
		} else {
			b.bytes[d.byteOffset] &^= 1 << d.bitOffset
		}
		return nil
	case enumSetting:
		for i, ev := range d.values {
			if ev == value {
				b.bytes[d.byteOffset] = uint8(i)
				return nil
			}
		}
		return fmt.Errorf("setting %q: invalid value %q", name, value)
	case numSetting:
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 0 || n > 255 {
			return fmt.Errorf("setting %q: invalid number %q", name, value)
		}
		b.bytes[d.byteOffset] = uint8(n)
		return nil
	}
	return fmt.Errorf("setting %q: unknown kind", name)
}

// Enable turns a boolean setting on.
func (b *Builder) Enable(name string) error { return b.Set(name, "true") }

// Flags is a frozen settings byte array: the packed settings followed
// by the materialized predicate bits. Flags never change once built.
type Flags struct {
	template *Template
	bytes    []byte
}

// Finish freezes the builder, computing the predicate bits.
func (b *Builder) Finish() Flags {
	t := b.template
	predBytes := (t.numPreds + 7) / 8
	bytes := make([]byte, t.byteLen+predBytes)
	copy(bytes, b.bytes)
	pv := bytes[t.byteLen:]

	// Every bool setting is its own predicate.
	for _, d := range t.descriptors {
		if d.kind != boolSetting {
			continue
		}
		if b.bytes[d.byteOffset]&(1<<d.bitOffset) != 0 {
			pv[d.predNum/8] |= 1 << (d.predNum % 8)
		}
	}
	// Computed predicates follow.
	base := 0
	for _, d := range t.descriptors {
		if d.kind == boolSetting {
			base++
		}
	}
	for i, conj := range t.predicates {
		all := true
		for _, p := range conj {
			if pv[p/8]&(1<<(p%8)) == 0 {
				all = false
				break
			}
		}
		if all {
			n := base + i
			pv[n/8] |= 1 << (n % 8)
		}
	}
	return Flags{template: t, bytes: bytes}
}

// Bool reads a boolean setting by name.
func (f Flags) Bool(name string) bool {
	d, ok := f.template.lookup(name)
	if !ok || d.kind != boolSetting {
		panic("no bool setting named " + name)
	}
	return f.bytes[d.byteOffset]&(1<<d.bitOffset) != 0
}

// Enum reads an enumerated setting by name.
func (f Flags) Enum(name string) string {
	d, ok := f.template.lookup(name)
	if !ok || d.kind != enumSetting {
		panic("no enum setting named " + name)
	}
	return d.values[f.bytes[d.byteOffset]]
}

// Num reads a numeric setting by name.
func (f Flags) Num(name string) uint8 {
	d, ok := f.template.lookup(name)
	if !ok || d.kind != numSetting {
		panic("no num setting named " + name)
	}
	return f.bytes[d.byteOffset]
}

// PredicateView is the read-only predicate bits of some Flags, indexed
// by predicate number.
type PredicateView []byte

// PredicateView exposes the predicate bits for the encoder.
func (f Flags) PredicateView() PredicateView {
	return PredicateView(f.bytes[f.template.byteLen:])
}

// Test reports whether predicate n holds.
func (pv PredicateView) Test(n int) bool {
	return pv[n/8]&(1<<(n%8)) != 0
}

// sharedTemplate holds the target-independent settings.
var sharedTemplate = func() *Template {
	tb := NewTemplateBuilder("shared")
	tb.AddEnum("opt_level", "none", "speed", "speed_and_size")
	tb.AddBool("jump_tables_enabled", true)
	tb.AddBool("avoid_div_traps", false)
	tb.AddBool("enable_verifier", false)
	return tb.Build()
}()

// NewSharedBuilder returns a builder over the shared settings.
func NewSharedBuilder() *Builder { return NewBuilder(sharedTemplate) }

// SharedFlags wraps the frozen shared settings with typed accessors.
type SharedFlags struct {
	Flags
}

// NewSharedFlags freezes a shared settings builder.
func NewSharedFlags(b *Builder) SharedFlags {
	if b.template != sharedTemplate {
		panic("builder is not for the shared settings")
	}
	return SharedFlags{b.Finish()}
}

// JumpTablesEnabled says whether br_table may use real jump tables.
func (f SharedFlags) JumpTablesEnabled() bool { return f.Bool("jump_tables_enabled") }

// AvoidDivTraps says whether division should be guarded explicitly.
func (f SharedFlags) AvoidDivTraps() bool { return f.Bool("avoid_div_traps") }

// OptLevel returns the requested optimization level.
func (f SharedFlags) OptLevel() string { return f.Enum("opt_level") }
