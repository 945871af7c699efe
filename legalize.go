// Completion: 100% - legalization driver complete
package legalize

import (
	"fmt"
	"os"
)

// maxLegalizeDepth bounds the number of consecutive rewrites applied
// without encoding progress. A correct rule set converges in a handful
// of steps per instruction; hitting the bound means two rules are
// undoing each other and the pass aborts instead of spinning.
const maxLegalizeDepth = 100

// LegalizeFunction rewrites f until every instruction either has a
// legal encoding for the ISA or has been dissolved, assigning the
// chosen encodings as it goes. On success the function is ready for
// binary emission. Running it again on legal code changes nothing.
func LegalizeFunction(f *Function, isa *ISA) error {
	legalizeSignatures(f, isa)

	cfg := NewCFG()
	cfg.Compute(f)
	splitBlockParams(f, cfg, isa)

	pos := NewCursor(f)
	var pending []Inst
	depth := 0

	for b := f.FirstBlock(); b != NoBlock; b = f.NextBlock(b) {
		pos.GotoTop(b)
		for {
			inst := pos.NextInst()
			if inst == NoInst {
				break
			}
			op := f.InstData(inst).Op

			if op == OpCall || op == OpCallIndirect {
				if handleCallABI(f, pos, inst, isa) {
					rewind(pos, f, inst)
					continue
				}
			}
			if op == OpReturn {
				if handleReturnABI(f, pos, inst, isa) {
					rewind(pos, f, inst)
					continue
				}
			}
			if op.IsBranch() {
				simplifyBranchArguments(f, inst)
			}
			if op == OpIsplit {
				if cancelIsplit(f, inst) {
					depth = 0
					continue
				}
				// The producer has not been narrowed yet; retry after
				// the main scan.
				pending = append(pending, inst)
				continue
			}
			if op == OpIconcat {
				// Dissolved by its consumers; swept up at the end.
				continue
			}

			enc, action := isa.EncodingFor(f, inst)
			if enc.IsLegal() {
				f.SetEncoding(inst, enc)
				depth = 0
				continue
			}

			if VerboseMode {
				fmt.Fprintf(os.Stderr, "legalize %s: %s.%s -> %s\n",
					f.Name, op, f.CtrlType(inst), isa.LegalizeNames[action])
			}
			prev := f.PrevInst(inst)
			block := f.InstBlock(inst)
			rewritten := isa.LegalizeActions[action](f, inst, cfg, isa)
			if !rewritten {
				rewritten = expandAsLibcall(f, inst, isa)
				if rewritten && VerboseMode {
					fmt.Fprintf(os.Stderr, "legalize %s: %s.%s -> libcall\n",
						f.Name, op, f.CtrlType(inst))
				}
			}
			if !rewritten {
				return fmt.Errorf("%s: unable to legalize %s.%s in %s mode on %s",
					f.Name, op, f.CtrlType(inst), isa.CPUMode, isa.Name)
			}
			depth++
			if depth > maxLegalizeDepth {
				return fmt.Errorf("%s: legalization of %s.%s did not converge after %d rewrites",
					f.Name, op, f.CtrlType(inst), maxLegalizeDepth)
			}
			pos.GotoAfter(prev, block)
		}
	}

	// Deferred isplits: their producers have been narrowed by now, so
	// they cancel against the concats the narrowing introduced.
	for _, inst := range pending {
		if f.InstBlock(inst) == NoBlock {
			continue
		}
		cancelIsplit(f, inst)
	}
	removeDeadSplits(f)
	for _, inst := range pending {
		if f.InstBlock(inst) != NoBlock {
			return fmt.Errorf("%s: %s of %s cannot be resolved in %s mode on %s",
				f.Name, OpIsplit, f.ValueType(f.InstData(inst).Args[0]), isa.CPUMode, isa.Name)
		}
	}

	// Every surviving instruction must have found an encoding.
	for b := f.FirstBlock(); b != NoBlock; b = f.NextBlock(b) {
		for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
			id := f.InstData(i)
			if id.Op == OpIconcat {
				return fmt.Errorf("%s: %s.%s has no consumer able to dissolve it on %s",
					f.Name, id.Op, f.CtrlType(i), isa.Name)
			}
			if !f.Encoding(i).IsLegal() {
				return fmt.Errorf("%s: no encoding for %s.%s in %s mode on %s",
					f.Name, id.Op, f.CtrlType(i), isa.CPUMode, isa.Name)
			}
		}
	}

	if !isa.Shared.JumpTablesEnabled() {
		// The conds expansion has replaced every br_table; the tables
		// themselves are dead weight now.
		f.JumpTables = nil
	}
	return nil
}

// rewind repositions the cursor so the scan revisits the code inserted
// in front of inst. Revisiting already-legal instructions is harmless:
// they simply get their encodings assigned again.
func rewind(pos *Cursor, f *Function, inst Inst) {
	pos.GotoTop(f.InstBlock(inst))
}
