package transform

import (
	"scatha/internal/analysis"
	"scatha/internal/pass"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

func init() {
	pass.Register(&pass.Descriptor{
		Name:     "inline",
		Category: pass.CategoryTransform,
		Requires: []string{"ssa"},
		Provides: []string{"ssa"},
		Module:   Inline,
	})
}

// inlineSizeThreshold caps the callee instruction count this pass will
// splice into a caller. A flat instruction-count ceiling stands in for a
// real per-callee cost model.
const inlineSizeThreshold = 32

// Inline splices small, non-recursive direct callees into their call
// sites, processing the call graph's strongly-connected components in
// their bottom-up order (analysis.ComputeCallGraph's SCCs()) so a callee
// is fully settled — including any inlining done into its own body —
// before it is itself considered as something to inline elsewhere.
// Recursive SCCs (self- or mutually-recursive functions) are left alone,
// handing recursion to the runtime call stack instead of the optimizer.
func Inline(mod *ssa.Module) bool {
	cg := analysis.ComputeCallGraph(mod)
	changed := false
	for _, scc := range cg.SCCs() {
		if scc.Recursive() {
			continue
		}
		fn := scc.Nodes[0].Function
		if fn.External() || fn.Entry() == nil {
			continue
		}
		for {
			call := findInlineCandidate(fn)
			if call == nil {
				break
			}
			if !inlineCallSite(fn, call) {
				break
			}
			changed = true
			fn.InvalidateCFGInfo()
		}
	}
	return changed
}

func findInlineCandidate(fn *ssa.Function) *ssa.CallInst {
	recursive := map[*ssa.Function]bool{}
	for _, scc := range analysis.ComputeCallGraph(fn.Module()).SCCs() {
		if scc.Recursive() {
			for _, n := range scc.Nodes {
				recursive[n.Function] = true
			}
		}
	}
	for _, b := range fn.Blocks() {
		for _, inst := range b.Instructions() {
			call, ok := inst.(*ssa.CallInst)
			if !ok {
				continue
			}
			callee := call.Callee.Direct
			if callee == nil || callee == fn || recursive[callee] || callee.External() || callee.Entry() == nil {
				continue
			}
			if functionSize(callee) <= inlineSizeThreshold {
				return call
			}
		}
	}
	return nil
}

func functionSize(fn *ssa.Function) int {
	n := 0
	for _, b := range fn.Blocks() {
		n += len(b.Instructions())
	}
	return n
}

// inlineCallSite splices callee's body in place of call: the call's block
// is split at the call, the callee's blocks are cloned with parameters
// bound to the call's arguments, every cloned return becomes a Goto to the
// continuation block (merging multiple return values through a Phi when
// the callee has more than one reachable return), and the call's own uses
// are rewritten to that merged result before the call is erased.
func inlineCallSite(f *ssa.Function, call *ssa.CallInst) bool {
	callee := call.Callee.Direct
	callBlock := call.Parent()
	ctx := f.Module().Context()

	contBlock := f.NewBlock(callBlock.Label() + ".cont")
	splitBlockAt(callBlock, contBlock, call)

	args := call.Args()
	clonedEntry, retEdges := cloneCalleeBody(f, callee, args)

	goCall := ssa.NewGoto(ctx, clonedEntry)
	callBlock.Append(goCall)
	clonedEntry.AddPredecessor(callBlock)

	var result *ssa.Value
	_, isVoid := call.Type().(sctx.VoidType)
	switch {
	case len(retEdges) == 0:
		// Callee never reaches a return (every path traps/loops): the
		// continuation is unreachable through this path; leave contBlock
		// predecessor-less on this edge and, if the call result were
		// used, there is nothing meaningful to substitute.
	case len(retEdges) == 1:
		result = retEdges[0].val
		retEdges[0].block.Erase(retEdges[0].ret)
		g := ssa.NewGoto(ctx, contBlock)
		retEdges[0].block.Append(g)
		contBlock.AddPredecessor(retEdges[0].block)
	default:
		var phi *ssa.PhiInst
		if !isVoid {
			phi = ssa.NewPhi(call.Type())
		}
		for _, e := range retEdges {
			e.block.Erase(e.ret)
			g := ssa.NewGoto(ctx, contBlock)
			e.block.Append(g)
			contBlock.AddPredecessor(e.block)
			if phi != nil {
				phi.AddIncoming(e.block, e.val)
			}
		}
		if phi != nil {
			existing := contBlock.Instructions()
			if len(existing) > 0 {
				contBlock.InsertBefore(existing[0], phi)
			} else {
				contBlock.Append(phi)
			}
			result = phi.AsValue()
		}
	}

	if !isVoid {
		if result == nil {
			// No reachable return: the continuation is dead on this path,
			// but its instructions still hold operand slots on the call.
			result = f.Module().ConstantValue(ctx.Undef(call.Type()))
		}
		ssa.ReplaceAllUses(call.AsValue(), result)
	}
	callBlock.Erase(call)
	return true
}

// splitBlockAt moves every instruction after call (including callBlock's
// original terminator) into dest, then retargets every successor's
// predecessor/phi bookkeeping from callBlock to dest.
func splitBlockAt(callBlock, dest *ssa.BasicBlock, call ssa.Instruction) {
	idx := callBlock.IndexOf(call)
	tail := append([]ssa.Instruction(nil), callBlock.Instructions()[idx+1:]...)
	oldSuccessors := append([]*ssa.BasicBlock(nil), callBlock.Successors()...)

	for _, inst := range tail {
		moveInstruction(callBlock, dest, inst)
	}

	for _, s := range oldSuccessors {
		if s == nil {
			continue
		}
		s.UpdatePredecessor(callBlock, dest)
		for _, phi := range s.Phis() {
			for _, e := range phi.Incoming() {
				if e.Pred == callBlock {
					phi.RemoveIncoming(callBlock)
					phi.AddIncoming(dest, e.Val)
					break
				}
			}
		}
	}
}

// moveInstruction relocates inst from one block to another, preserving
// its operand use-list bindings.
func moveInstruction(from, to *ssa.BasicBlock, inst ssa.Instruction) {
	from.Extract(inst)
	to.Append(inst)
}

type retEdge struct {
	block *ssa.BasicBlock
	ret   *ssa.ReturnInst
	val   *ssa.Value
}

// cloneCalleeBody duplicates callee's blocks into f (renamed under
// callee's own name to keep them recognizable), binding callee's
// parameters directly to args instead of allocating fresh Parameter
// values. Follows internal/ssa.CloneFunction's two-phase clone, adapted
// to target an existing function's block list instead of declaring a new
// Function.
func cloneCalleeBody(f *ssa.Function, callee *ssa.Function, args []*ssa.Value) (*ssa.BasicBlock, []retEdge) {
	ctx := f.Module().Context()

	valueMap := make(map[*ssa.Value]*ssa.Value, len(callee.Params()))
	for i, p := range callee.Params() {
		valueMap[p.AsValue()] = args[i]
	}

	blockMap := make(map[*ssa.BasicBlock]*ssa.BasicBlock, len(callee.Blocks()))
	for _, b := range callee.Blocks() {
		blockMap[b] = f.NewBlock(callee.Name() + "." + b.Label())
	}

	for _, b := range callee.Blocks() {
		nb := blockMap[b]
		for _, inst := range b.Instructions() {
			cloned := ssa.CloneInstruction(ctx, inst)
			valueMap[inst.AsValue()] = cloned.AsValue()
			nb.Append(cloned)
		}
	}

	var retEdges []retEdge
	for _, b := range callee.Blocks() {
		nb := blockMap[b]
		oldInsts := b.Instructions()
		newInsts := nb.Instructions()
		for idx, newInst := range newInsts {
			oldInst := oldInsts[idx]

			if newPhi, ok := newInst.(*ssa.PhiInst); ok {
				oldPhi := oldInst.(*ssa.PhiInst)
				for _, e := range oldPhi.Incoming() {
					newPred := blockMap[e.Pred]
					newVal := e.Val
					if nv, ok := valueMap[e.Val]; ok {
						newVal = nv
					}
					newPhi.RemoveIncoming(e.Pred)
					newPhi.AddIncoming(newPred, newVal)
				}
				continue
			}

			for slot, op := range oldInst.Operands() {
				if op == nil {
					continue
				}
				if nv, ok := valueMap[op]; ok {
					newInst.SetOperand(slot, nv)
				}
			}

			switch t := newInst.(type) {
			case *ssa.GotoInst:
				if nt, ok := blockMap[t.Target()]; ok {
					t.SetTarget(nt)
				}
			case *ssa.BranchInst:
				if nt, ok := blockMap[t.Then()]; ok {
					t.SetThen(nt)
				}
				if nt, ok := blockMap[t.Else()]; ok {
					t.SetElse(nt)
				}
			case *ssa.ReturnInst:
				retEdges = append(retEdges, retEdge{block: nb, ret: t, val: t.Val()})
			}
		}
	}

	return blockMap[callee.Entry()], retEdges
}
