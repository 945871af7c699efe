// Completion: 100% - runtime library call fallback complete
package legalize

// When an instruction has no encoding and no legalization rule fires,
// the last resort is a call to a runtime support routine. The ISA
// names the routine; the call inherits the instruction's operands and
// results, so the surrounding code never notices the difference.

// expandAsLibcall rewrites inst as a call to the ISA's support routine
// for its opcode and controlling type. Returns false when no routine
// exists.
func expandAsLibcall(f *Function, inst Inst, isa *ISA) bool {
	if isa.LibcallName == nil {
		return false
	}
	id := f.InstData(inst)
	name := isa.LibcallName(id.Op, f.CtrlType(inst))
	if name == "" {
		return false
	}

	sig := &Signature{}
	for _, a := range id.Args {
		sig.Params = append(sig.Params, AbiParam{Ty: f.ValueType(a)})
	}
	for _, r := range f.InstResults(inst) {
		sig.Returns = append(sig.Returns, AbiParam{Ty: f.ValueType(r)})
	}
	callee := findOrAddExtFunc(f, name, sig)
	f.ReplaceWith(inst, instData{Op: OpCall, Func: callee, Args: id.Args})
	return true
}

// findOrAddExtFunc reuses an existing declaration of name, or adds a
// new one with the given signature.
func findOrAddExtFunc(f *Function, name string, sig *Signature) FuncRef {
	for i := range f.ExtFuncs {
		if f.ExtFuncs[i].Name == name {
			return FuncRef(i)
		}
	}
	return f.NewExtFunc(name, f.NewSig(sig))
}
