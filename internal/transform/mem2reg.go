// Package transform implements the optimization passes: mem2reg, SROA,
// InstCombine, GVN, DCE, SimplifyCFG, inlining, and rematerialization.
// Every pass mutates an internal/ssa function and consults/invalidates
// internal/analysis results around the edit.
package transform

import (
	"sort"

	"scatha/internal/analysis"
	"scatha/internal/pass"
	"scatha/internal/ssa"
)

func init() {
	pass.Register(&pass.Descriptor{
		Name:     "mem2reg",
		Category: pass.CategoryTransform,
		Requires: []string{"ssa"},
		Provides: []string{"ssa", "no-trivial-allocas"},
		Function: Mem2Reg,
	})
}

// Mem2Reg promotes every alloca in f's entry block that is only ever used by
// loads and stores of its own address (never escaping into any other
// instruction) into SSA registers, inserting phi nodes at the dominance
// frontier of its defining blocks, restricted to the alloca's live-in set
// (minimal SSA)
//
// Returns whether any alloca was promoted (callers use this to decide
// whether to invalidate CFG-dependent analyses: phi insertion changes the
// CFG's def-use shape even though it never touches an edge).
func Mem2Reg(f *ssa.Function) bool {
	changed := false
	// Repeat for a few rounds to peel stack-of-stack-pointer patterns: a
	// store of one promoted alloca's value into another only becomes
	// promotable once the first round erases the inner loads/stores
	// referencing it.
	for round := 0; round < 4; round++ {
		promotedThisRound := false
		entry := f.Entry()
		if entry == nil {
			break
		}
		for _, inst := range append([]ssa.Instruction(nil), entry.Instructions()...) {
			alloca, ok := inst.(*ssa.AllocaInst)
			if !ok {
				continue
			}
			if promoteAlloca(f, alloca) {
				promotedThisRound = true
				changed = true
			}
		}
		if !promotedThisRound {
			break
		}
		f.InvalidateCFGInfo()
	}
	return changed
}

// promotable reports whether alloca is only ever used by loads and stores of
// its own address; any other use (passed to a call, stored as a value,
// GEP'd, etc.) disqualifies it
func promotable(alloca *ssa.AllocaInst) bool {
	for _, u := range alloca.AsValue().Uses() {
		switch inst := u.User.(type) {
		case *ssa.LoadInst:
			if inst.Addr() != alloca.AsValue() {
				return false
			}
		case *ssa.StoreInst:
			if inst.Addr() != alloca.AsValue() || inst.Val() == alloca.AsValue() {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func promoteAlloca(f *ssa.Function, alloca *ssa.AllocaInst) bool {
	if !promotable(alloca) {
		return false
	}

	defBlocks := map[*ssa.BasicBlock]bool{}
	useBlocks := map[*ssa.BasicBlock]bool{}
	var loads []*ssa.LoadInst
	var stores []*ssa.StoreInst
	for _, u := range alloca.AsValue().Uses() {
		switch inst := u.User.(type) {
		case *ssa.LoadInst:
			loads = append(loads, inst)
			useBlocks[inst.Parent()] = true
		case *ssa.StoreInst:
			stores = append(stores, inst)
			defBlocks[inst.Parent()] = true
		}
	}
	// An alloca with no stores at all is still worth promoting: every load
	// simply reads undef, and the alloca disappears along with them.

	dt := analysis.Dominators(f)

	// Live-in blocks: use blocks plus their predecessors, transitively, until
	// a defining block is reached.
	liveIn := map[*ssa.BasicBlock]bool{}
	var worklist []*ssa.BasicBlock
	for b := range useBlocks {
		if !liveIn[b] {
			liveIn[b] = true
			worklist = append(worklist, b)
		}
	}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if defBlocks[b] {
			continue
		}
		for _, p := range b.Predecessors() {
			if !liveIn[p] {
				liveIn[p] = true
				worklist = append(worklist, p)
			}
		}
	}

	// Phi placement: iterated dominance frontier of the defining blocks,
	// restricted to live-in blocks (minimal SSA).
	phiBlocks := map[*ssa.BasicBlock]bool{}
	defList := blockSlice(defBlocks)
	worklist = append([]*ssa.BasicBlock(nil), defList...)
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, fb := range dt.Frontier(b) {
			if phiBlocks[fb] || !liveIn[fb] {
				continue
			}
			phiBlocks[fb] = true
			worklist = append(worklist, fb)
		}
	}

	phis := map[*ssa.BasicBlock]*ssa.PhiInst{}
	for _, b := range blockSlice(phiBlocks) {
		b := b
		builder := ssa.NewBuilder(f.Module().Context(), f)
		builder.SetInsertPoint(b, firstNonPhiOrNil(b))
		phi := builder.AddPhi(alloca.Elem)
		phis[b] = phi
	}

	renamePromotion(f, dt, alloca, phis)

	for _, l := range loads {
		l.Parent().Erase(l)
	}
	for _, s := range stores {
		s.Parent().Erase(s)
	}
	if alloca.Parent() != nil {
		alloca.Parent().Erase(alloca)
	}
	return true
}

// renamePromotion walks the dominator tree in pre-order, maintaining a
// per-call value stack: a load is replaced by the
// stack top (or undef if empty), a store pushes its value, every phi
// incoming slot for a visited block's successors is filled, and the stack
// is popped back on block exit.
func renamePromotion(f *ssa.Function, dt *analysis.DominatorTree, alloca *ssa.AllocaInst, phis map[*ssa.BasicBlock]*ssa.PhiInst) {
	undef := f.Module().ConstantValue(f.Module().Context().Undef(alloca.Elem))
	var stack []*ssa.Value

	var visit func(b *ssa.BasicBlock)
	visit = func(b *ssa.BasicBlock) {
		pushed := 0
		if phi, ok := phis[b]; ok {
			stack = append(stack, phi.AsValue())
			pushed++
		}
		for _, inst := range b.Instructions() {
			switch in := inst.(type) {
			case *ssa.LoadInst:
				if in.Addr() != alloca.AsValue() {
					continue
				}
				var cur *ssa.Value
				if len(stack) > 0 {
					cur = stack[len(stack)-1]
				} else {
					cur = undef
				}
				ssa.ReplaceAllUses(in.AsValue(), cur)
			case *ssa.StoreInst:
				if in.Addr() != alloca.AsValue() {
					continue
				}
				stack = append(stack, in.Val())
				pushed++
			}
		}
		var cur *ssa.Value
		if len(stack) > 0 {
			cur = stack[len(stack)-1]
		} else {
			cur = undef
		}
		for _, s := range b.Successors() {
			if phi, ok := phis[s]; ok {
				phi.SetIncomingForPred(b, cur)
			}
		}
		for _, c := range dt.Children(b) {
			visit(c)
		}
		stack = stack[:len(stack)-pushed]
	}
	if entry := f.Entry(); entry != nil {
		visit(entry)
	}
}

func firstNonPhiOrNil(b *ssa.BasicBlock) ssa.Instruction {
	nonPhi := b.NonPhiInstructions()
	if len(nonPhi) == 0 {
		return nil
	}
	return nonPhi[0]
}

func blockSlice(m map[*ssa.BasicBlock]bool) []*ssa.BasicBlock {
	out := make([]*ssa.BasicBlock, 0, len(m))
	for b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label() < out[j].Label() })
	return out
}
