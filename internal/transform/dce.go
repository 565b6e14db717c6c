package transform

import (
	"scatha/internal/analysis"
	"scatha/internal/pass"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

func init() {
	pass.Register(&pass.Descriptor{
		Name:     "dce",
		Category: pass.CategoryTransform,
		Requires: []string{"ssa"},
		Provides: []string{"ssa"},
		Function: DCE,
	})
}

// DCE runs mark-and-sweep aggressive dead code elimination over f. The
// initial live set is every return plus every instruction with a
// side effect (stores, calls to a function not known to be
// Memory_WriteNone); liveness then propagates to operands and, for every
// live instruction in block B, to the terminators of every block in B's
// reverse-dominance frontier (and, for phis, every predecessor's
// terminator). Unmarked branches collapse to a Goto targeting the nearest
// useful post-dominator; unmarked non-goto instructions are erased. If the
// function has no reachable return and no side effects left, its body
// collapses to a single block returning undef. Control dependence comes
// from internal/analysis's PostDominatorTree, whose Frontier is exactly
// the reverse-dominance frontier the marking step needs.
func DCE(f *ssa.Function) bool {
	if f.Entry() == nil {
		return false
	}
	pdt := analysis.PostDominators(f)
	defOf := instructionsByValue(f)

	live := map[ssa.Instruction]bool{}
	var worklist []ssa.Instruction

	markLive := func(inst ssa.Instruction) {
		if inst != nil && !live[inst] {
			live[inst] = true
			worklist = append(worklist, inst)
		}
	}

	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			if isInitiallyLive(inst) {
				markLive(inst)
			}
		}
	}

	for len(worklist) > 0 {
		inst := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		for _, op := range inst.Operands() {
			if op == nil {
				continue
			}
			if def, ok := defOf[op]; ok {
				markLive(def)
			}
		}
		if phi, ok := inst.(*ssa.PhiInst); ok {
			for _, e := range phi.Incoming() {
				if e.Pred != nil {
					markLive(e.Pred.Terminator())
				}
			}
		}
		for _, rb := range pdt.Frontier(inst.Parent()) {
			markLive(rb.Terminator())
		}
	}

	changed := false
	for _, b := range f.Blocks() {
		for _, inst := range append([]ssa.Instruction(nil), b.Instructions()...) {
			if live[inst] || inst.Kind() == ssa.KGoto {
				continue
			}
			if br, ok := inst.(*ssa.BranchInst); ok {
				target := nearestUsefulPostDominator(pdt, b)
				ssa.ReplaceAllUses(br.AsValue(), nil)
				b.DetachTerminator()
				b.Erase(br)
				g := ssa.NewBuilder(f.Module().Context(), f)
				g.InsertAtEnd(b)
				g.AddGoto(target)
				changed = true
				continue
			}
			if inst.IsTerminator() {
				// a dead Return still has to end its block somehow; the
				// whole-function fallback below handles the returnless case.
				continue
			}
			ssa.ReplaceAllUses(inst.AsValue(), nil)
			b.Erase(inst)
			changed = true
		}
	}

	if !hasReachableReturn(f) && !hasSideEffect(f) {
		collapseToUndefReturn(f)
		changed = true
	}

	if changed {
		f.InvalidateCFGInfo()
	}
	return changed
}

func isInitiallyLive(inst ssa.Instruction) bool {
	switch in := inst.(type) {
	case *ssa.ReturnInst:
		return true
	case *ssa.StoreInst:
		return true
	case *ssa.CallInst:
		return !calleeIsWriteNone(in)
	default:
		return false
	}
}

func calleeIsWriteNone(c *ssa.CallInst) bool {
	return c.Callee.Direct != nil && c.Callee.Direct.HasAttr(ssa.AttrMemoryWriteNone)
}

// instructionsByValue indexes every instruction of f by its Value identity,
// the Value->Instruction downcast package ssa deliberately omits (see
// analysis.instructionOf's doc comment for why: a Value doesn't know its
// own owner). DCE needs this mapping at every worklist pop, so it is built
// once per run rather than re-scanned per lookup.
func instructionsByValue(f *ssa.Function) map[*ssa.Value]ssa.Instruction {
	out := make(map[*ssa.Value]ssa.Instruction)
	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			out[inst.AsValue()] = inst
		}
	}
	return out
}

func hasReachableReturn(f *ssa.Function) bool {
	for _, b := range f.Blocks() {
		if _, ok := b.Terminator().(*ssa.ReturnInst); ok {
			return true
		}
	}
	return false
}

func hasSideEffect(f *ssa.Function) bool {
	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			if isInitiallyLive(inst) {
				return true
			}
		}
	}
	return false
}

func collapseToUndefReturn(f *ssa.Function) {
	entry := f.Entry()
	if entry == nil {
		return
	}
	for _, b := range f.Blocks() {
		b.DetachTerminator()
	}
	for _, b := range append([]*ssa.BasicBlock(nil), f.Blocks()...) {
		if b != entry {
			f.RemoveBlock(b)
		}
	}
	for _, inst := range append([]ssa.Instruction(nil), entry.Instructions()...) {
		ssa.ReplaceAllUses(inst.AsValue(), nil)
		entry.Erase(inst)
	}
	builder := ssa.NewBuilder(f.Module().Context(), f)
	builder.InsertAtEnd(entry)
	if _, isVoid := f.ReturnType().(sctx.VoidType); isVoid {
		builder.AddReturn(nil)
		return
	}
	undef := f.Module().ConstantValue(f.Module().Context().Undef(f.ReturnType()))
	builder.AddReturn(undef)
}

// nearestUsefulPostDominator finds the closest strict post-dominator of b
// that still has a terminator (every real block does; this walks upward
// past any block this same pass has already reduced to a bare Goto,
// settling for the first ancestor encountered since every block keeps
// exactly one terminator).
func nearestUsefulPostDominator(pdt *analysis.PostDominatorTree, b *ssa.BasicBlock) *ssa.BasicBlock {
	cur := pdt.Idom(b)
	for cur != nil {
		if cur.Terminator() != nil {
			return cur
		}
		cur = pdt.Idom(cur)
	}
	return b
}
