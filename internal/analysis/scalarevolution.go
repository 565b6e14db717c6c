package analysis

import (
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// InductionVariable is a recognized affine (or geometric) recurrence of an
// integer-typed loop header phi: its value starts at Base and each
// iteration's latch value is `phi op Step`, where op is Add or Mul.
type InductionVariable struct {
	Phi  *ssa.PhiInst
	Op   sctx.ArithOp // Add or Mul
	Base *ssa.Value   // the phi's incoming value from the loop preheader
	Step *ssa.Value   // the per-iteration increment/multiplier
}

// findInductionVariables runs the scalar-evolution recognizer over loop's
// header phis. It only fires on canonical loops (a header with exactly
// two predecessors: one preheader, one latch); non-canonical loops (e.g.
// multiple latches, no single preheader) are simply skipped.
func findInductionVariables(f *ssa.Function, loop *LoopInfo, dt *DominatorTree) []*InductionVariable {
	header := loop.Header
	preheader, latch, ok := determinePreheaderAndLatch(header, loop)
	if !ok {
		return nil
	}

	var out []*InductionVariable
	for _, phi := range header.Phis() {
		if !isIntegral(phi.Type()) {
			continue
		}
		phOperand := incomingFrom(phi, preheader)
		latchOperand := incomingFrom(phi, latch)
		if phOperand == nil || latchOperand == nil {
			continue
		}
		if iv := recognizeAffine(f, phi, phOperand, latchOperand, loop); iv != nil {
			out = append(out, iv)
		}
	}
	return out
}

func determinePreheaderAndLatch(header *ssa.BasicBlock, loop *LoopInfo) (preheader, latch *ssa.BasicBlock, ok bool) {
	preds := header.Predecessors()
	if len(preds) != 2 {
		return nil, nil, false
	}
	isLatch := func(b *ssa.BasicBlock) bool {
		for _, l := range loop.Latches {
			if l == b {
				return true
			}
		}
		return false
	}
	a, b := preds[0], preds[1]
	switch {
	case isLatch(a) && !isLatch(b):
		return b, a, true
	case isLatch(b) && !isLatch(a):
		return a, b, true
	default:
		return nil, nil, false
	}
}

func incomingFrom(phi *ssa.PhiInst, pred *ssa.BasicBlock) *ssa.Value {
	for _, e := range phi.Incoming() {
		if e.Pred == pred {
			return e.Val
		}
	}
	return nil
}

func isIntegral(t sctx.Type) bool {
	_, ok := t.(*sctx.IntType)
	return ok
}

// recognizeAffine matches the affine-recurrence shape: the latch operand
// must be `phi op rhs` (phi on the LHS) with op in {Add, Mul}, and rhs
// must itself be a loop-invariant value (a constant, a value defined
// outside the loop, or a parameter).
func recognizeAffine(f *ssa.Function, phi *ssa.PhiInst, base, latchOperand *ssa.Value, loop *LoopInfo) *InductionVariable {
	inst, ok := instructionOf(f, latchOperand)
	if !ok {
		return nil
	}
	arith, ok := inst.(*ssa.ArithmeticInst)
	if !ok {
		return nil
	}
	if arith.LHS() != phi.AsValue() {
		return nil
	}
	if arith.Op != sctx.Add && arith.Op != sctx.Mul {
		return nil
	}
	if !loopInvariant(arith.RHS(), loop) {
		return nil
	}
	return &InductionVariable{Phi: phi, Op: arith.Op, Base: base, Step: arith.RHS()}
}

// instructionOf finds the Instruction that defines v. package ssa has no
// Value->Instruction downcast (a Value doesn't know its own owner), so this
// scans every block of the function in order until it finds v's definer.
func instructionOf(f *ssa.Function, v *ssa.Value) (ssa.Instruction, bool) {
	if v == nil || v.Kind() != ssa.KindInstruction {
		return nil, false
	}
	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			if inst.AsValue() == v {
				return inst, true
			}
		}
	}
	return nil, false
}

// loopInvariant reports whether v is safe to use as a scev step: a
// constant, a parameter, or an instruction defined outside the loop body.
func loopInvariant(v *ssa.Value, loop *LoopInfo) bool {
	switch v.Kind() {
	case ssa.KindConstant, ssa.KindUndef, ssa.KindNull, ssa.KindParameter, ssa.KindGlobal, ssa.KindFunction:
		return true
	}
	for _, b := range loop.Inner {
		for _, inst := range b.Instructions() {
			if inst.AsValue() == v {
				return false
			}
		}
	}
	return true
}
