package transform

import (
	"scatha/internal/pass"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

func init() {
	pass.Register(&pass.Descriptor{
		Name:     "simplifycfg",
		Category: pass.CategoryTransform,
		Requires: []string{"ssa"},
		Provides: []string{"ssa"},
		Function: SimplifyCFG,
	})
}

// SimplifyCFG iterates the rewrites to a fixed point:
// folding constant-conditioned branches to gotos, merging a block into its
// sole predecessor, bypassing empty pass-through blocks, collapsing small
// diamonds into selects, replacing branches with identical targets by a
// goto, and removing unreachable blocks.
func SimplifyCFG(f *ssa.Function) bool {
	changed := false
	for {
		roundChanged := false
		roundChanged = foldConstantBranches(f) || roundChanged
		roundChanged = replaceIdenticalBranchTargets(f) || roundChanged
		roundChanged = mergeSoleSuccessor(f) || roundChanged
		roundChanged = bypassEmptyBlock(f) || roundChanged
		roundChanged = collapseDiamond(f) || roundChanged
		roundChanged = removeUnreachable(f) || roundChanged
		if roundChanged {
			f.InvalidateCFGInfo()
			changed = true
			continue
		}
		break
	}
	return changed
}

func constBool(v *ssa.Value) (bool, bool) {
	if v == nil || v.Kind() != ssa.KindConstant {
		return false, false
	}
	c := v.Constant()
	if c == nil || c.Kind != sctx.ConstBool {
		return false, false
	}
	return c.Bool, true
}

// foldConstantBranches turns `branch true/false, a, b` into `goto a`/`goto
// b`, dropping the block from the unchosen target's predecessor list.
func foldConstantBranches(f *ssa.Function) bool {
	changed := false
	for _, b := range f.Blocks() {
		br, ok := b.Terminator().(*ssa.BranchInst)
		if !ok {
			continue
		}
		taken, ok := constBool(br.Cond())
		if !ok {
			continue
		}
		target, unchosen := br.Then(), br.Else()
		if !taken {
			target, unchosen = unchosen, target
		}
		ssa.ReplaceAllUses(br.AsValue(), nil)
		b.DetachTerminator()
		b.Erase(br)
		if unchosen != target {
			for _, phi := range unchosen.Phis() {
				phi.RemoveIncoming(b)
			}
		}
		builder := ssa.NewBuilder(f.Module().Context(), f)
		builder.InsertAtEnd(b)
		builder.AddGoto(target)
		changed = true
	}
	return changed
}

// replaceIdenticalBranchTargets turns `branch c, x, x` into `goto x`.
func replaceIdenticalBranchTargets(f *ssa.Function) bool {
	changed := false
	for _, b := range f.Blocks() {
		br, ok := b.Terminator().(*ssa.BranchInst)
		if !ok || br.Then() != br.Else() {
			continue
		}
		target := br.Then()
		ssa.ReplaceAllUses(br.AsValue(), nil)
		b.DetachTerminator()
		b.Erase(br)
		// The branch carried two b->target edges; the goto carries one, so
		// any phi in target drops one of its two b entries.
		for _, phi := range target.Phis() {
			occurrences := 0
			for _, e := range phi.Incoming() {
				if e.Pred == b {
					occurrences++
				}
			}
			if occurrences > 1 {
				phi.RemoveIncoming(b)
			}
		}
		builder := ssa.NewBuilder(f.Module().Context(), f)
		builder.InsertAtEnd(b)
		builder.AddGoto(target)
		changed = true
	}
	return changed
}

// mergeSoleSuccessor splices a block B into its single predecessor P when P
// has only B as a successor: B's instructions move after P's terminator and
// phis in B are rewired to read P's incoming values directly.
func mergeSoleSuccessor(f *ssa.Function) bool {
	changed := false
	for _, b := range append([]*ssa.BasicBlock(nil), f.Blocks()...) {
		if b == f.Entry() {
			continue
		}
		preds := b.Predecessors()
		if len(preds) != 1 {
			continue
		}
		p := preds[0]
		if p == b || len(p.Successors()) != 1 {
			continue
		}
		if !onlyGoto(p) {
			continue
		}
		for _, phi := range b.Phis() {
			var repl *ssa.Value
			for _, e := range phi.Incoming() {
				if e.Pred == p {
					repl = e.Val
				}
			}
			ssa.ReplaceAllUses(phi.AsValue(), repl)
		}
		term := p.Terminator()
		ssa.ReplaceAllUses(term.AsValue(), nil)
		p.DetachTerminator()
		p.Erase(term)
		for _, inst := range append([]ssa.Instruction(nil), b.Instructions()...) {
			if inst.Kind() == ssa.KPhi {
				b.Erase(inst)
				continue
			}
			b.Extract(inst)
			p.Append(inst)
		}
		for _, s := range p.Successors() {
			retargetPredecessor(s, b, p)
			s.UpdatePredecessor(b, p)
		}
		f.RemoveBlock(b)
		changed = true
	}
	return changed
}

func onlyGoto(b *ssa.BasicBlock) bool {
	_, ok := b.Terminator().(*ssa.GotoInst)
	return ok
}

func retargetPredecessor(block, from, to *ssa.BasicBlock) {
	for _, phi := range block.Phis() {
		for _, e := range phi.Incoming() {
			if e.Pred == from {
				phi.RemoveIncoming(from)
				phi.AddIncoming(to, e.Val)
			}
		}
	}
}

// bypassEmptyBlock removes a block B that is empty but for its terminator,
// has a single predecessor and single successor, by retargeting P's
// terminator straight to B's successor.
func bypassEmptyBlock(f *ssa.Function) bool {
	changed := false
	for _, b := range append([]*ssa.BasicBlock(nil), f.Blocks()...) {
		if b == f.Entry() || len(b.Phis()) > 0 {
			continue
		}
		goTo, ok := b.Terminator().(*ssa.GotoInst)
		if !ok || len(b.NonPhiInstructions()) != 1 {
			continue
		}
		succ := goTo.Target()
		originalPreds := append([]*ssa.BasicBlock(nil), b.Predecessors()...)
		valueForB := map[*ssa.PhiInst]*ssa.Value{}
		for _, phi := range succ.Phis() {
			for _, e := range phi.Incoming() {
				if e.Pred == b {
					valueForB[phi] = e.Val
				}
			}
		}
		for _, p := range originalPreds {
			retargetTerminator(p, b, succ)
			for phi, val := range valueForB {
				phi.AddIncoming(p, val)
			}
		}
		for phi := range valueForB {
			phi.RemoveIncoming(b)
		}
		f.RemoveBlock(b)
		changed = true
	}
	return changed
}

func retargetTerminator(block, from, to *ssa.BasicBlock) {
	switch term := block.Terminator().(type) {
	case *ssa.GotoInst:
		if term.Target() == from {
			term.SetTarget(to)
		}
	case *ssa.BranchInst:
		if term.Then() == from {
			term.SetThen(to)
		}
		if term.Else() == from {
			term.SetElse(to)
		}
	}
}

// collapseDiamond speculatively executes a small, side-effect-free block B
// between a branch in P and a common successor S, replacing the phis S
// merges through B by Selects on P's branch condition. Bounded to blocks
// with at most 4 non-terminator instructions, none of which has a side
// effect; GEPs count as free.
func collapseDiamond(f *ssa.Function) bool {
	changed := false
	for _, b := range append([]*ssa.BasicBlock(nil), f.Blocks()...) {
		preds := b.Predecessors()
		if len(preds) != 1 {
			continue
		}
		p := preds[0]
		br, ok := p.Terminator().(*ssa.BranchInst)
		if !ok {
			continue
		}
		var other *ssa.BasicBlock
		var bIsThen bool
		switch b {
		case br.Then():
			other = br.Else()
			bIsThen = true
		case br.Else():
			other = br.Then()
			bIsThen = false
		default:
			continue
		}
		goTo, ok := b.Terminator().(*ssa.GotoInst)
		if !ok || goTo.Target() != other {
			continue
		}
		// A true diamond: the join merges exactly the p and b paths. A
		// third predecessor's value has no seat in a two-way select.
		if !predsAreExactly(other, p, b) {
			continue
		}
		if !speculatable(b) {
			continue
		}
		for _, phi := range other.Phis() {
			var fromP, fromB *ssa.Value
			for _, e := range phi.Incoming() {
				if e.Pred == p {
					fromP = e.Val
				}
				if e.Pred == b {
					fromB = e.Val
				}
			}
			if fromP == nil || fromB == nil {
				continue
			}
			thenV, elseV := fromB, fromP
			if !bIsThen {
				thenV, elseV = fromP, fromB
			}
			sel := ssa.NewSelect(br.Cond(), thenV, elseV)
			other.InsertBefore(firstNonPhiOrNil(other), sel)
			ssa.ReplaceAllUses(phi.AsValue(), sel.AsValue())
			other.Erase(phi)
		}
		for _, inst := range append([]ssa.Instruction(nil), b.NonPhiInstructions()...) {
			if inst.IsTerminator() {
				continue
			}
			b.Extract(inst)
			p.InsertBefore(br, inst)
		}
		term := p.Terminator()
		ssa.ReplaceAllUses(term.AsValue(), nil)
		p.DetachTerminator()
		p.Erase(term)
		builder := ssa.NewBuilder(f.Module().Context(), f)
		builder.InsertAtEnd(p)
		builder.AddGoto(other)
		b.DetachTerminator()
		f.RemoveBlock(b)
		changed = true
	}
	return changed
}

func predsAreExactly(block, x, y *ssa.BasicBlock) bool {
	preds := block.Predecessors()
	if len(preds) != 2 {
		return false
	}
	return (preds[0] == x && preds[1] == y) || (preds[0] == y && preds[1] == x)
}

// speculatable bounds collapseDiamond's candidate block: few instructions,
// none with a side effect; GEPs, arithmetic, compares, conversions, and
// selects are free to execute speculatively.
func speculatable(b *ssa.BasicBlock) bool {
	count := 0
	for _, inst := range b.NonPhiInstructions() {
		if inst.IsTerminator() {
			continue
		}
		switch inst.(type) {
		case *ssa.GEPInst, *ssa.ArithmeticInst, *ssa.UnaryArithmeticInst,
			*ssa.CompareInst, *ssa.ConversionInst, *ssa.SelectInst,
			*ssa.ExtractValueInst, *ssa.InsertValueInst:
			count++
		default:
			return false
		}
		if count > 4 {
			return false
		}
	}
	return true
}

// removeUnreachable drops every block no longer reachable from the entry,
// clearing it from any surviving predecessor/phi bookkeeping first.
func removeUnreachable(f *ssa.Function) bool {
	entry := f.Entry()
	if entry == nil {
		return false
	}
	reachable := map[*ssa.BasicBlock]bool{}
	var stack []*ssa.BasicBlock
	stack = append(stack, entry)
	reachable[entry] = true
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range b.Successors() {
			if s != nil && !reachable[s] {
				reachable[s] = true
				stack = append(stack, s)
			}
		}
	}
	changed := false
	for _, b := range append([]*ssa.BasicBlock(nil), f.Blocks()...) {
		if reachable[b] {
			continue
		}
		for _, s := range b.Successors() {
			if s != nil && reachable[s] {
				for _, phi := range s.Phis() {
					phi.RemoveIncoming(b)
				}
			}
		}
		for _, inst := range append([]ssa.Instruction(nil), b.Instructions()...) {
			ssa.ReplaceAllUses(inst.AsValue(), nil)
			b.Erase(inst)
		}
		f.RemoveBlock(b)
		changed = true
	}
	return changed
}
