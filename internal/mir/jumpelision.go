package mir

// JumpElision reorders a function's blocks in DFS preorder from the entry
// (Then before Else) so that,
// wherever possible, a block's fall-through successor immediately follows
// it, then drops any KJump that has become a jump to the very next block,
// copies the short return tail of a trivial jump target into the jumping
// block, and merges a block into its sole predecessor when that
// predecessor has no other successor. Returns whether anything changed.
func JumpElision(f *Function) bool {
	changed := reorderBlocks(f)
	changed = elideFallthroughJumps(f) || changed
	changed = duplicateReturnTails(f) || changed
	changed = mergeSingleSuccessors(f) || changed
	return changed
}

func reorderBlocks(f *Function) bool {
	if len(f.Blocks) == 0 {
		return false
	}
	order := make([]*Block, 0, len(f.Blocks))
	visited := make(map[*Block]bool, len(f.Blocks))
	var visit func(b *Block)
	visit = func(b *Block) {
		if b == nil || visited[b] {
			return
		}
		visited[b] = true
		order = append(order, b)
		t := b.Terminator()
		if t == nil {
			return
		}
		for _, s := range t.Successors() {
			visit(s)
		}
	}
	visit(f.Entry())
	for _, b := range f.Blocks {
		visit(b)
	}
	changed := false
	for i, b := range order {
		if f.Blocks[i] != b {
			changed = true
		}
	}
	f.Blocks = order
	return changed
}

func elideFallthroughJumps(f *Function) bool {
	changed := false
	for i, b := range f.Blocks {
		t := b.Terminator()
		if t == nil || t.Kind != KJump {
			continue
		}
		if i+1 < len(f.Blocks) && f.Blocks[i+1] == t.Target {
			b.Remove(t)
			changed = true
		}
	}
	return changed
}

// duplicateReturnTails copies the instructions of a jump target into the
// jumping block when the target is a trivial return tail: at most three
// instructions, the last a KReturn, none a phi. The copy frees the
// source block from the jump entirely; a target left with no
// predecessors is dropped.
func duplicateReturnTails(f *Function) bool {
	changed := false
	for _, b := range f.Blocks {
		t := b.Terminator()
		if t == nil || t.Kind != KJump {
			continue
		}
		succ := t.Target
		if succ == b || succ == f.Entry() || !isReturnTail(succ) {
			continue
		}
		b.Remove(t)
		for _, in := range succ.instrs {
			b.Append(cloneInst(in))
		}
		succ.removePred(b)
		changed = true
	}
	if changed {
		kept := f.Blocks[:0:0]
		for _, b := range f.Blocks {
			if b != f.Entry() && len(b.preds) == 0 {
				continue
			}
			kept = append(kept, b)
		}
		f.Blocks = kept
	}
	return changed
}

func isReturnTail(b *Block) bool {
	if len(b.instrs) == 0 || len(b.instrs) > 3 {
		return false
	}
	if b.instrs[len(b.instrs)-1].Kind != KReturn {
		return false
	}
	for _, in := range b.instrs {
		if in.Kind == KPhi {
			return false
		}
	}
	return true
}

// cloneInst shallow-copies an instruction for tail duplication; the Src
// slice is copied so later per-copy register rewrites can't alias.
func cloneInst(in *Inst) *Inst {
	c := *in
	c.parent = nil
	c.Src = append([]*Register(nil), in.Src...)
	if in.Addr != nil {
		addr := *in.Addr
		c.Addr = &addr
	}
	return &c
}

// mergeSingleSuccessors splices a block into its unique predecessor when
// that predecessor's only successor is this block, eliminating the
// now-redundant jump between them.
func mergeSingleSuccessors(f *Function) bool {
	changed := false
	kept := make([]*Block, 0, len(f.Blocks))
	merged := make(map[*Block]bool)
	placed := make(map[*Block]bool)
	for _, b := range f.Blocks {
		if merged[b] {
			continue
		}
		kept = append(kept, b)
		placed[b] = true
		for {
			t := b.Terminator()
			if t == nil || t.Kind != KJump {
				break
			}
			succ := t.Target
			// A backward jump's target has already been emitted; splicing
			// it here would leave it in the block list twice.
			if placed[succ] || len(succ.preds) != 1 || succ.preds[0] != b || succ == f.Entry() {
				break
			}
			b.Remove(t)
			for _, in := range succ.instrs {
				b.Append(in)
			}
			for _, s := range b.Successors() {
				s.removePred(succ)
				s.addPred(b)
			}
			merged[succ] = true
			changed = true
		}
	}
	f.Blocks = kept
	return changed
}
