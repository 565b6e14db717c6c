package transform

import (
	"scatha/internal/pass"
	"scatha/internal/ssa"
)

func init() {
	pass.Register(&pass.Descriptor{
		Name:     "rematerialize",
		Category: pass.CategoryTransform,
		Requires: []string{"ssa"},
		Provides: []string{"ssa"},
		Function: Rematerialize,
	})
}

// Rematerialize clones a cross-block-used GetElementPointer at each
// out-of-block use instead of keeping one shared definition live across
// block boundaries — a cheap recomputation traded for a long live range,
// which is exactly what a register allocator downstream of this pass
// wants from an address computation. The rewrite is scoped to GEPInst
// alone: arithmetic, compare, and conversion results are not
// rematerialized here, only address computations.
//
// A Phi user has no single program point for "insert the copy right
// before the user": its operand is consumed at the control-flow edge from
// one specific predecessor, not at the Phi instruction itself, which may
// sit in a block reached by several different edges. So for a Phi use the
// clone goes into that predecessor, immediately before its terminator,
// and only that one incoming value is rewired.
func Rematerialize(f *ssa.Function) bool {
	changed := false
	for _, b := range f.Blocks() {
		for _, inst := range append([]ssa.Instruction(nil), b.Instructions()...) {
			gep, ok := inst.(*ssa.GEPInst)
			if !ok {
				continue
			}
			if rematerializeGEP(f, gep) {
				changed = true
			}
		}
	}
	if changed {
		f.InvalidateCFGInfo()
	}
	return changed
}

// rematOccurrence is one out-of-block use of a GEP awaiting a local clone:
// `at` is the instruction the clone must land immediately before (the user
// itself for an ordinary operand, or the owning predecessor's terminator
// for a Phi edge reached through it).
type rematOccurrence struct {
	user    ssa.User
	slot    int
	at      ssa.Instruction
	atBlock *ssa.BasicBlock
}

func rematerializeGEP(f *ssa.Function, gep *ssa.GEPInst) bool {
	defBlock := gep.Parent()
	var occurrences []rematOccurrence
	for _, u := range gep.AsValue().Uses() {
		if phi, ok := u.User.(*ssa.PhiInst); ok {
			pred := phi.Incoming()[u.Slot].Pred
			if pred == nil || pred == defBlock {
				continue
			}
			occurrences = append(occurrences, rematOccurrence{user: u.User, slot: u.Slot, at: pred.Terminator(), atBlock: pred})
			continue
		}
		inst, ok := u.User.(ssa.Instruction)
		if !ok || inst.Parent() == defBlock {
			continue
		}
		occurrences = append(occurrences, rematOccurrence{user: u.User, slot: u.Slot, at: inst, atBlock: inst.Parent()})
	}
	if len(occurrences) == 0 {
		return false
	}

	ctx := f.Module().Context()
	for _, occ := range occurrences {
		copyInst := ssa.NewGEP(ctx, gep.Base(), gep.ArrayIndex(), gep.InboundsType, gep.MemberIndices)
		occ.atBlock.InsertBefore(occ.at, copyInst)
		occ.user.SetOperand(occ.slot, copyInst.AsValue())
	}
	if gep.AsValue().IsUnused() {
		defBlock.Erase(gep)
	}
	return true
}
