package ssa

import "fmt"

// BasicBlock is an ordered sequence of instructions followed by exactly one
// terminator, plus a predecessor list and a name.
// Successors are *derived* from the terminator's target operands, never
// stored redundantly, so they can never drift out of sync with it.
type BasicBlock struct {
	label   string
	parent  *Function
	instrs  []Instruction
	preds   []*BasicBlock
}

func newBasicBlock(label string) *BasicBlock {
	return &BasicBlock{label: label}
}

// NewSyntheticBlock creates a BasicBlock that belongs to no function's
// block list: a traversal-only sentinel node. Its sole sanctioned use is
// package analysis's synthetic post-dominance sink; nothing else
// should reference one.
func NewSyntheticBlock(label string) *BasicBlock {
	return newBasicBlock(label)
}

func (b *BasicBlock) Label() string          { return b.label }
func (b *BasicBlock) Parent() *Function      { return b.parent }
func (b *BasicBlock) Predecessors() []*BasicBlock { return b.preds }
func (b *BasicBlock) Instructions() []Instruction { return b.instrs }

// Successors derives the block's successors from its terminator, or nil if
// the block is (transiently, mid-construction) missing one.
func (b *BasicBlock) Successors() []*BasicBlock {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	return term.Successors()
}

// Terminator returns the block's terminator, which by invariant 4
// is always the last instruction once the block is complete.
func (b *BasicBlock) Terminator() Terminator {
	if len(b.instrs) == 0 {
		return nil
	}
	last := b.instrs[len(b.instrs)-1]
	if t, ok := last.(Terminator); ok {
		return t
	}
	return nil
}

// HasPhi reports whether the block's first instruction is a Phi; phis form
// a prefix of the block by invariant 5.
func (b *BasicBlock) HasPhi() bool {
	return len(b.instrs) > 0 && b.instrs[0].Kind() == KPhi
}

// Phis returns the phi-prefix of the block's instruction list.
func (b *BasicBlock) Phis() []*PhiInst {
	var out []*PhiInst
	for _, inst := range b.instrs {
		p, ok := inst.(*PhiInst)
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}

// NonPhiInstructions returns every instruction in the block after the phi
// prefix (terminator included).
func (b *BasicBlock) NonPhiInstructions() []Instruction {
	return b.instrs[len(b.Phis()):]
}

// insertAt inserts inst at position idx (0 <= idx <= len(instrs)), wiring
// its parent pointer. Internal: callers go through Builder or an explicit
// structural-edit method so use-lists and predecessor lists stay coherent
// in the same call mutation protocol.
func (b *BasicBlock) insertAt(idx int, inst Instruction) {
	b.instrs = append(b.instrs, nil)
	copy(b.instrs[idx+1:], b.instrs[idx:])
	b.instrs[idx] = inst
	inst.setParent(b)
	if b.parent != nil {
		inst.AsValue().assignID(b.parent.nextValueID())
	}
}

// Append adds inst to the end of the block's instruction list.
func (b *BasicBlock) Append(inst Instruction) {
	b.insertAt(len(b.instrs), inst)
}

// IndexOf returns the position of inst in the block, or -1.
func (b *BasicBlock) IndexOf(inst Instruction) int {
	for idx, existing := range b.instrs {
		if existing == inst {
			return idx
		}
	}
	return -1
}

// InsertBefore inserts inst immediately before mark.
func (b *BasicBlock) InsertBefore(mark, inst Instruction) {
	idx := b.IndexOf(mark)
	if idx < 0 {
		idx = len(b.instrs)
	}
	b.insertAt(idx, inst)
}

// Erase removes inst from the block. Destroying a value must first clear
// all uses of it, so callers must call
// replaceAllUsesWith(inst.AsValue(), ...) or otherwise ensure inst is
// unused before calling Erase; Erase itself only unbinds inst's own
// operands (so it stops being a user of anything) and detaches it from the
// block.
func (b *BasicBlock) Erase(inst Instruction) {
	idx := b.IndexOf(inst)
	if idx < 0 {
		return
	}
	for slot, op := range inst.Operands() {
		if op != nil {
			op.removeUse(inst, slot)
		}
	}
	b.instrs = append(b.instrs[:idx], b.instrs[idx+1:]...)
	inst.setParent(nil)
}

// Extract detaches inst from the block without unbinding its operands,
// for transforms that move an instruction into another block: the
// instruction keeps its operand use-list entries, only the block linkage
// changes. The caller must re-insert it somewhere its operands still
// dominate.
func (b *BasicBlock) Extract(inst Instruction) {
	idx := b.IndexOf(inst)
	if idx < 0 {
		return
	}
	b.instrs = append(b.instrs[:idx], b.instrs[idx+1:]...)
	inst.setParent(nil)
}

func (b *BasicBlock) addPred(p *BasicBlock) {
	b.preds = append(b.preds, p)
}

func (b *BasicBlock) removePred(p *BasicBlock) {
	for i, existing := range b.preds {
		if existing == p {
			b.preds = append(b.preds[:i], b.preds[i+1:]...)
			return
		}
	}
}

// AddPredecessor records p as an additional predecessor edge of b, for
// transforms that synthesize an edge without going through one of the
// terminator constructors.
func (b *BasicBlock) AddPredecessor(p *BasicBlock) { b.addPred(p) }

// UpdatePredecessor replaces one occurrence of old in b's predecessor list
// with replacement, for transforms that retarget an edge's source block
// without going through SetTarget/SetThen/SetElse — e.g. SimplifyCFG
// splicing a block's instructions (and therefore its outgoing edges) into
// its sole predecessor.
func (b *BasicBlock) UpdatePredecessor(old, replacement *BasicBlock) {
	for i, p := range b.preds {
		if p == old {
			b.preds[i] = replacement
			return
		}
	}
}

// DetachTerminator removes the block's current terminator's edges from
// every successor's predecessor list, one removal per edge occurrence (so
// a Branch with identical then/else targets correctly drops both stale
// entries). Callers use this before Erase-ing a terminator they are about
// to replace wholesale, rather than retargeting it in place via
// SetTarget/SetThen/SetElse.
func (b *BasicBlock) DetachTerminator() {
	term := b.Terminator()
	if term == nil {
		return
	}
	for _, s := range term.Successors() {
		if s != nil {
			s.removePred(b)
		}
	}
}

// updateSuccessor is the single choke point for rewiring a terminator's
// target: it keeps `from`'s (the block owning the terminator) membership
// in the old and new target's predecessor lists consistent in the same
// call, and drops any phi edge in the old target that was keyed on `from`
// is left to the caller (phis must be fixed up explicitly — there is no
// single correct rewrite of an incoming value when retargeting a branch).
func updateSuccessor(from, oldTarget, newTarget *BasicBlock) {
	if oldTarget == newTarget || from == nil {
		return
	}
	if oldTarget != nil {
		oldTarget.removePred(from)
	}
	if newTarget != nil {
		newTarget.addPred(from)
	}
	if from.parent != nil {
		from.parent.invalidateCFGInfo()
	}
}

func (b *BasicBlock) String() string {
	return fmt.Sprintf("%%%s", b.label)
}
