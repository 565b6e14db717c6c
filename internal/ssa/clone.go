package ssa

import "scatha/internal/sctx"

// CloneInstruction constructs an unlinked duplicate of inst with the same
// operand values and no parent block — a per-kind "raw clone" step, one
// constructor call per concrete instruction kind. Operands are copied as-is
// (including any cross-references to other instructions of the function
// inst belongs to); a caller cloning a whole block or function must follow
// up by rewriting every operand through its own old-to-new value map in a
// second pass.
func CloneInstruction(ctx *sctx.Context, inst Instruction) Instruction {
	var cloned Instruction
	switch in := inst.(type) {
	case *AllocaInst:
		cloned = NewAlloca(ctx, in.Elem, in.Count())
	case *LoadInst:
		cloned = NewLoad(in.Addr(), in.Type())
	case *StoreInst:
		cloned = NewStore(ctx, in.Addr(), in.Val())
	case *GEPInst:
		cloned = NewGEP(ctx, in.Base(), in.ArrayIndex(), in.InboundsType, append([]int(nil), in.MemberIndices...))
	case *ArithmeticInst:
		cloned = NewArithmetic(in.Op, in.LHS(), in.RHS())
	case *UnaryArithmeticInst:
		cloned = NewUnaryArithmetic(in.Op, in.Operand())
	case *CompareInst:
		cloned = NewCompare(ctx, in.Mode, in.Op, in.LHS(), in.RHS())
	case *ConversionInst:
		cloned = NewConversion(in.ConvKind, in.Operand(), in.Type())
	case *CallInst:
		cloned = NewCall(in.Callee, append([]*Value(nil), in.Args()...), in.Type())
	case *PhiInst:
		phi := NewPhi(in.Type())
		for _, e := range in.Incoming() {
			phi.AddIncoming(e.Pred, e.Val)
		}
		cloned = phi
	case *SelectInst:
		cloned = NewSelect(in.Cond(), in.Then(), in.Else())
	case *ExtractValueInst:
		cloned = NewExtractValue(in.Agg(), append([]int(nil), in.Indices...), in.Type())
	case *InsertValueInst:
		cloned = NewInsertValue(in.Agg(), in.Inserted(), append([]int(nil), in.Indices...))
	case *GotoInst:
		cloned = NewGoto(ctx, in.Target())
	case *BranchInst:
		cloned = NewBranch(ctx, in.Cond(), in.Then(), in.Else())
	case *ReturnInst:
		cloned = NewReturn(ctx, in.Val())
	default:
		panic("ssa: CloneInstruction: unhandled instruction kind")
	}
	cloned.AsValue().name = inst.AsValue().name
	return cloned
}

// CloneFunction duplicates fn's whole body into a freshly declared function
// named newName on mod, remapping every intra-function reference
// (parameters, instruction results, and block targets/Phi predecessors) to
// the clone's own values and blocks. Cross-function references (globals,
// constants, external declarations, and — deliberately, for a recursive
// callee — the callee's own direct-call edges to itself) are left shared
// with the original: only intra-function references are remapped, never
// substituting the callee for itself.
//
// Used by the inliner to materialize an independent copy of a callee's body at a
// call site.
func CloneFunction(mod *Module, fn *Function, newName string) *Function {
	ctx := mod.Context()
	paramTypes := make([]sctx.Type, len(fn.params))
	for i, p := range fn.params {
		paramTypes[i] = p.Type()
	}
	clone := mod.NewFunction(newName, paramTypes, fn.returnType)
	for name := range fn.attrs {
		clone.SetAttr(name)
	}

	valueMap := make(map[*Value]*Value, len(fn.params))
	for i, p := range fn.params {
		valueMap[p.AsValue()] = clone.params[i].AsValue()
	}
	blockMap := make(map[*BasicBlock]*BasicBlock, len(fn.blocks))

	for _, b := range fn.blocks {
		nb := newBasicBlock(b.label)
		nb.parent = clone
		for _, inst := range b.instrs {
			cloned := CloneInstruction(ctx, inst)
			valueMap[inst.AsValue()] = cloned.AsValue()
			nb.instrs = append(nb.instrs, cloned)
			cloned.setParent(nb)
			cloned.AsValue().assignID(clone.nextValueID())
		}
		blockMap[b] = nb
		clone.blocks = append(clone.blocks, nb)
	}

	for _, b := range fn.blocks {
		nb := blockMap[b]
		for _, p := range b.preds {
			if np, ok := blockMap[p]; ok {
				nb.preds = append(nb.preds, np)
			}
		}
		for idx, newInst := range nb.instrs {
			oldInst := b.instrs[idx]
			for slot, op := range oldInst.Operands() {
				if op == nil {
					continue
				}
				if newVal, ok := valueMap[op]; ok {
					newInst.SetOperand(slot, newVal)
				}
			}
			if newPhi, ok := newInst.(*PhiInst); ok {
				oldPhi := oldInst.(*PhiInst)
				for i, e := range oldPhi.incoming {
					if np, ok := blockMap[e.Pred]; ok {
						newPhi.incoming[i].Pred = np
					}
				}
			}
			switch t := newInst.(type) {
			case *GotoInst:
				if nt, ok := blockMap[t.target]; ok {
					t.target = nt
				}
			case *BranchInst:
				if nt, ok := blockMap[t.thenBB]; ok {
					t.thenBB = nt
				}
				if nt, ok := blockMap[t.elseBB]; ok {
					t.elseBB = nt
				}
			}
		}
	}

	clone.invalidateCFGInfo()
	return clone
}
