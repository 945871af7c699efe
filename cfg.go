// Completion: 100% - control flow graph maintenance complete
package legalize

// BlockPredecessor is one incoming edge: the branch instruction and the
// block it lives in.
type BlockPredecessor struct {
	Block Block
	Inst  Inst
}

// ControlFlowGraph tracks predecessor and successor edges per block.
// The legalizer keeps it current across CFG-rewriting expansions by
// recomputing the affected blocks.
type ControlFlowGraph struct {
	preds map[Block][]BlockPredecessor
	succs map[Block][]Block
}

// NewCFG returns an empty control flow graph.
func NewCFG() *ControlFlowGraph {
	return &ControlFlowGraph{
		preds: make(map[Block][]BlockPredecessor),
		succs: make(map[Block][]Block),
	}
}

// Compute rebuilds the whole graph from f's layout.
func (cfg *ControlFlowGraph) Compute(f *Function) {
	cfg.preds = make(map[Block][]BlockPredecessor)
	cfg.succs = make(map[Block][]Block)
	for b := f.FirstBlock(); b != NoBlock; b = f.NextBlock(b) {
		cfg.computeBlock(f, b)
	}
}

// RecomputeBlock rebuilds the outgoing edges of the given blocks and
// the incoming edges they imply. Callers pass every block whose
// terminator they touched plus any blocks they created.
func (cfg *ControlFlowGraph) RecomputeBlock(f *Function, blocks ...Block) {
	for _, b := range blocks {
		cfg.invalidateBlock(b)
	}
	for _, b := range blocks {
		cfg.computeBlock(f, b)
	}
}

func (cfg *ControlFlowGraph) invalidateBlock(b Block) {
	for _, succ := range cfg.succs[b] {
		preds := cfg.preds[succ]
		kept := preds[:0]
		for _, p := range preds {
			if p.Block != b {
				kept = append(kept, p)
			}
		}
		cfg.preds[succ] = kept
	}
	delete(cfg.succs, b)
}

func (cfg *ControlFlowGraph) computeBlock(f *Function, b Block) {
	for i := f.FirstInst(b); i != NoInst; i = f.NextInst(i) {
		id := f.InstData(i)
		if !id.Op.IsBranch() {
			continue
		}
		if id.Op == OpBrTable || id.Op == OpIndirectJumpTableBr {
			for _, dest := range f.JumpTables[id.JT] {
				cfg.addEdge(b, i, dest)
			}
		}
		if id.Dest != NoBlock {
			cfg.addEdge(b, i, id.Dest)
		}
	}
}

func (cfg *ControlFlowGraph) addEdge(from Block, inst Inst, to Block) {
	// Parallel edges collapse in succs; preds still record each branch.
	seen := false
	for _, s := range cfg.succs[from] {
		if s == to {
			seen = true
			break
		}
	}
	if !seen {
		cfg.succs[from] = append(cfg.succs[from], to)
	}
	cfg.preds[to] = append(cfg.preds[to], BlockPredecessor{Block: from, Inst: inst})
}

// Preds returns the incoming edges of b.
func (cfg *ControlFlowGraph) Preds(b Block) []BlockPredecessor { return cfg.preds[b] }

// Succs returns the successor blocks of b.
func (cfg *ControlFlowGraph) Succs(b Block) []Block { return cfg.succs[b] }
