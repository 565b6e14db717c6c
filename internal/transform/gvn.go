package transform

import (
	"fmt"
	"sort"
	"strings"

	"scatha/internal/analysis"
	"scatha/internal/pass"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

func init() {
	pass.Register(&pass.Descriptor{
		Name:     "gvn",
		Category: pass.CategoryTransform,
		Requires: []string{"ssa"},
		Provides: []string{"ssa"},
		Function: GVN,
	})
}

// GVN implements loop-aware global value numbering: pure (non-memory,
// non-call) computations are assigned a
// computation key — instruction kind, ordered-or-unordered operand tuple,
// plus discriminators — and every instruction that maps to a key already
// available at its program point is replaced by the earlier one.
//
// Availability is computed by a dominator-tree preorder walk: each block
// inherits its parent's table of available computations and extends it
// with its own, so every value the walk unifies strictly dominates every
// instruction it is substituted into. On top of that, loop-invariant
// computations that recur inside a loop body are hoisted up into the
// loop's preheader (synthesized first if absent).
func GVN(f *ssa.Function) bool {
	if f.Entry() == nil {
		return false
	}
	changed := false
	if splitCriticalEdges(f) {
		changed = true
		f.InvalidateCFGInfo()
	}
	if ensureLoopPreheaders(f) {
		changed = true
		f.InvalidateCFGInfo()
	}

	dt := analysis.Dominators(f)
	ctx := f.Module().Context()

	type table map[string]*ssa.Value

	var replaced []ssa.Instruction
	var visit func(b *ssa.BasicBlock, avail table)
	visit = func(b *ssa.BasicBlock, avail table) {
		local := make(table, len(avail)+4)
		for k, v := range avail {
			local[k] = v
		}
		for _, inst := range append([]ssa.Instruction(nil), b.Instructions()...) {
			key, ok := computationKey(ctx, inst)
			if !ok {
				continue
			}
			if existing, found := local[key]; found && existing != inst.AsValue() {
				ssa.ReplaceAllUses(inst.AsValue(), existing)
				replaced = append(replaced, inst)
				changed = true
				continue
			}
			local[key] = inst.AsValue()
		}
		for _, c := range dt.Children(b) {
			visit(c, local)
		}
	}
	visit(f.Entry(), table{})

	for _, inst := range replaced {
		if inst.Parent() != nil {
			inst.Parent().Erase(inst)
		}
	}

	if hoistLoopInvariants(f, dt, ctx) {
		changed = true
	}

	if changed {
		f.InvalidateCFGInfo()
		// Edge-split/landing-pad blocks that received no motion end up as
		// trivial single-pred/single-succ gotos; fold them back in rather
		// than leaving GVN scaffolding behind.
		for bypassEmptyBlock(f) {
		}
	}
	return changed
}

// computationKey builds the ordered-or-unordered, discriminator-bearing
// key for every value-numberable (pure, non-memory,
// non-control) instruction kind; it returns ok=false for anything GVN does
// not touch (loads, stores, calls, phis, terminators, allocas).
func computationKey(ctx *sctx.Context, inst ssa.Instruction) (string, bool) {
	switch in := inst.(type) {
	case *ssa.ArithmeticInst:
		return opKey("arith", fmt.Sprintf("%d", in.Op), ctx.IsCommutative(in.Op), in.LHS(), in.RHS()), true
	case *ssa.UnaryArithmeticInst:
		return opKey("unary", fmt.Sprintf("%d", in.Op), false, in.Operand()), true
	case *ssa.CompareInst:
		// eq/neq are symmetric under operand swap even though compares in
		// general are not commutative.
		symmetric := in.Op == ssa.CmpEQ || in.Op == ssa.CmpNE
		disc := fmt.Sprintf("%d:%d", in.Mode, in.Op)
		return opKey("cmp", disc, symmetric, in.LHS(), in.RHS()), true
	case *ssa.ConversionInst:
		disc := fmt.Sprintf("%d:%s", in.ConvKind, in.Type())
		return opKey("conv", disc, false, in.Operand()), true
	case *ssa.GEPInst:
		disc := fmt.Sprintf("%s:%v", in.InboundsType, in.MemberIndices)
		return opKey("gep", disc, false, in.Base(), in.ArrayIndex()), true
	case *ssa.ExtractValueInst:
		disc := fmt.Sprintf("%v", in.Indices)
		return opKey("extract", disc, false, in.Agg()), true
	case *ssa.InsertValueInst:
		disc := fmt.Sprintf("%v", in.Indices)
		return opKey("insert", disc, false, in.Agg(), in.Inserted()), true
	case *ssa.SelectInst:
		return opKey("select", "", false, in.Cond(), in.Then(), in.Else()), true
	default:
		return "", false
	}
}

// opKey renders a stable key from a node kind, a discriminator, and an
// operand list, sorting the operand identities first when commute is true
// so that e.g. `add a, b` and `add b, a` hash identically.
func opKey(kind, disc string, commute bool, operands ...*ssa.Value) string {
	ids := make([]string, len(operands))
	for i, o := range operands {
		ids[i] = valueIdentity(o)
	}
	if commute {
		sort.Strings(ids)
	}
	return kind + "|" + disc + "|" + strings.Join(ids, ",")
}

// valueIdentity renders a stable identity string for an operand: constants
// key on their interned payload (so two occurrences of the literal `5`
// compare equal), everything else keys on pointer identity via its
// instruction/parameter/global address.
func valueIdentity(v *ssa.Value) string {
	if v == nil {
		return "<nil>"
	}
	if v.Kind() == ssa.KindConstant || v.Kind() == ssa.KindUndef || v.Kind() == ssa.KindNull {
		return "c:" + v.Constant().String()
	}
	return fmt.Sprintf("v:%p", v)
}

// splitCriticalEdges inserts a landing block on every critical edge (a
// multi-successor block's edge into a multi-predecessor block), rewiring
// terminators, predecessor lists, and phi incoming edges.
func splitCriticalEdges(f *ssa.Function) bool {
	changed := false
	for _, b := range append([]*ssa.BasicBlock(nil), f.Blocks()...) {
		succs := b.Successors()
		if len(succs) < 2 {
			continue
		}
		for _, s := range dedupSucc(succs) {
			if len(s.Predecessors()) < 2 {
				continue
			}
			splitEdge(f, b, s)
			changed = true
		}
	}
	return changed
}

func dedupSucc(bs []*ssa.BasicBlock) []*ssa.BasicBlock {
	seen := map[*ssa.BasicBlock]bool{}
	var out []*ssa.BasicBlock
	for _, b := range bs {
		if b != nil && !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

// splitEdge inserts a fresh block on the b->s edge, retargets b's
// terminator to land on it instead, and redirects s's phi incoming value
// for b to come from the new block instead.
func splitEdge(f *ssa.Function, b, s *ssa.BasicBlock) *ssa.BasicBlock {
	mid := f.NewBlock(b.Label() + "." + s.Label() + ".split")
	for _, phi := range s.Phis() {
		for _, e := range phi.Incoming() {
			if e.Pred == b {
				phi.RemoveIncoming(b)
				phi.AddIncoming(mid, e.Val)
				break
			}
		}
	}
	retargetTerminator(b, s, mid)
	builder := ssa.NewBuilder(f.Module().Context(), f)
	builder.InsertAtEnd(mid)
	builder.AddGoto(s)
	return mid
}

// ensureLoopPreheaders inserts a landing-pad block for every loop header
// whose entering edges do not already funnel through a single dedicated
// predecessor.
func ensureLoopPreheaders(f *ssa.Function) bool {
	lf := analysis.Loops(f)
	changed := false
	for _, root := range allProperNodes(lf) {
		loop := root.Loop
		if len(loop.Entering) == 1 {
			continue
		}
		if len(loop.Entering) == 0 {
			continue // irreducible/unreachable header; nothing to funnel
		}
		pre := f.NewBlock(loop.Header.Label() + ".preheader")
		for _, phi := range loop.Header.Phis() {
			var collected []ssa.PhiEdge
			for _, e := range append([]ssa.PhiEdge(nil), phi.Incoming()...) {
				if containsBlock(loop.Entering, e.Pred) {
					collected = append(collected, e)
				}
			}
			for _, e := range collected {
				phi.RemoveIncoming(e.Pred)
			}
			// All entering edges carried the same value for a mem2reg'd phi
			// only when they agree; otherwise park a fresh phi in the
			// preheader to merge them before feeding the header's phi one
			// incoming slot.
			if len(collected) == 1 {
				retargetTerminator(collected[0].Pred, loop.Header, pre)
				phi.AddIncoming(pre, collected[0].Val)
				continue
			}
			builder := ssa.NewBuilder(f.Module().Context(), f)
			builder.SetInsertPoint(pre, nil)
			merge := builder.AddPhi(phi.Type())
			for _, e := range collected {
				retargetTerminator(e.Pred, loop.Header, pre)
				merge.AddIncoming(e.Pred, e.Val)
			}
			phi.AddIncoming(pre, merge.AsValue())
		}
		for _, entering := range loop.Entering {
			retargetTerminator(entering, loop.Header, pre)
		}
		builder := ssa.NewBuilder(f.Module().Context(), f)
		builder.InsertAtEnd(pre)
		builder.AddGoto(loop.Header)
		changed = true
	}
	if changed {
		f.InvalidateCFGInfo()
	}
	return changed
}

func containsBlock(bs []*ssa.BasicBlock, b *ssa.BasicBlock) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}

func allProperNodes(lf *analysis.LoopForest) []*analysis.LNFNode {
	var out []*analysis.LNFNode
	var walk func(n *analysis.LNFNode)
	walk = func(n *analysis.LNFNode) {
		if n.Proper() {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range lf.Roots() {
		walk(r)
	}
	return out
}

// hoistLoopInvariants moves a pure computation whose operands are all
// loop-invariant (defined outside the loop, or constants/parameters) from
// a loop body into its preheader the first time it is seen, and unifies
// every later loop-body recurrence of the same computation key with it —
// the net effect of moving a computation into a landing pad across every
// incident edge at once.
func hoistLoopInvariants(f *ssa.Function, dt *analysis.DominatorTree, ctx *sctx.Context) bool {
	lf := analysis.Loops(f)
	changed := false
	for _, node := range allProperNodes(lf) {
		loop := node.Loop
		if len(loop.Entering) != 1 {
			// Irreducible or multi-entry header ensureLoopPreheaders left
			// alone (e.g. an unreachable loop with no entering edge at
			// all); nothing to hoist into.
			continue
		}
		preheader := loop.Entering[0]
		definedInBody := make(map[*ssa.Value]bool)
		for _, b := range loop.Inner {
			for _, inst := range b.Instructions() {
				definedInBody[inst.AsValue()] = true
			}
		}
		hoisted := map[string]*ssa.Value{}
		for _, b := range loop.Inner {
			for _, inst := range append([]ssa.Instruction(nil), b.Instructions()...) {
				key, ok := computationKey(ctx, inst)
				if !ok || !allOperandsLoopInvariant(inst, definedInBody) {
					continue
				}
				if existing, found := hoisted[key]; found {
					ssa.ReplaceAllUses(inst.AsValue(), existing)
					b.Erase(inst)
					changed = true
					continue
				}
				b.Extract(inst)
				preheader.InsertBefore(preheader.Terminator(), inst)
				hoisted[key] = inst.AsValue()
				changed = true
			}
		}
	}
	return changed
}

func allOperandsLoopInvariant(inst ssa.Instruction, definedInBody map[*ssa.Value]bool) bool {
	for _, op := range inst.Operands() {
		if op != nil && definedInBody[op] {
			return false
		}
	}
	return true
}
