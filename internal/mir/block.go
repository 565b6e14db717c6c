package mir

// Block is a MIR basic block: an ordered instruction list ending in
// exactly one terminator, mirroring internal/ssa.BasicBlock's shape at the
// register-machine level.
type Block struct {
	Label  string
	parent *Function
	instrs []*Inst
	preds  []*Block
}

func NewBlock(label string) *Block { return &Block{Label: label} }

func (b *Block) Parent() *Function     { return b.parent }
func (b *Block) Instructions() []*Inst { return b.instrs }
func (b *Block) Predecessors() []*Block { return b.preds }

func (b *Block) Terminator() *Inst {
	if len(b.instrs) == 0 {
		return nil
	}
	last := b.instrs[len(b.instrs)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

func (b *Block) Successors() []*Block {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	return t.Successors()
}

// Phis returns the phi-prefix of the block.
func (b *Block) Phis() []*Inst {
	var out []*Inst
	for _, in := range b.instrs {
		if in.Kind != KPhi {
			break
		}
		out = append(out, in)
	}
	return out
}

func (b *Block) Append(in *Inst) {
	in.parent = b
	b.instrs = append(b.instrs, in)
}

// AppendPhi inserts in at the end of the phi-prefix, ahead of any
// non-phi instruction already present.
func (b *Block) AppendPhi(in *Inst) {
	idx := len(b.Phis())
	in.parent = b
	b.instrs = append(b.instrs, nil)
	copy(b.instrs[idx+1:], b.instrs[idx:])
	b.instrs[idx] = in
}

func (b *Block) addPred(p *Block) { b.preds = append(b.preds, p) }

func (b *Block) removePred(p *Block) {
	for idx, e := range b.preds {
		if e == p {
			b.preds = append(b.preds[:idx], b.preds[idx+1:]...)
			return
		}
	}
}

// IndexOf returns the position of in within the block, or -1.
func (b *Block) IndexOf(in *Inst) int {
	for idx, e := range b.instrs {
		if e == in {
			return idx
		}
	}
	return -1
}

// Remove drops in from the block's instruction list without touching
// predecessor/successor bookkeeping (the caller is responsible when
// removing a terminator).
func (b *Block) Remove(in *Inst) {
	idx := b.IndexOf(in)
	if idx < 0 {
		return
	}
	b.instrs = append(b.instrs[:idx], b.instrs[idx+1:]...)
	in.parent = nil
}

// SetInstructions replaces the block's whole instruction list, used by
// JumpElision's block-reordering and instruction-splicing rewrites.
func (b *Block) SetInstructions(instrs []*Inst) {
	b.instrs = instrs
	for _, in := range instrs {
		in.parent = b
	}
}
