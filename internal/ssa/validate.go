package ssa

import (
	"fmt"

	"scatha/internal/diag"
	"scatha/internal/sctx"
)

// ViolationKind tags which invariant was broken.
type ViolationKind int

const (
	ViolTerminatorMissing ViolationKind = iota
	ViolTerminatorMisplaced
	ViolPhiNotPrefix
	ViolPhiEdgeCountMismatch
	ViolPhiMissingPred
	ViolUseNotDominated
	ViolDanglingOperand
	ViolTypeMismatch
)

func (k ViolationKind) String() string {
	names := [...]string{
		"terminator missing", "terminator misplaced", "phi not a block prefix",
		"phi incoming count does not match predecessor count", "phi missing predecessor edge",
		"use not dominated by its definition", "dangling operand", "operand type mismatch",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown violation"
}

// Violation is one broken invariant, attributed to the function/block/
// instruction it was found in.
type Violation struct {
	Kind  ViolationKind
	Func  string
	Block string
	Inst  Instruction
	Msg   string
}

func (v Violation) String() string {
	loc := v.Func
	if v.Block != "" {
		loc += "." + v.Block
	}
	return fmt.Sprintf("%s: %s: %s", loc, v.Kind, v.Msg)
}

// Validate walks every function in the module and returns every invariant
// violation found. An
// empty result means the module is well-formed.
//
// This is the pure "find every problem" half of invariant enforcement;
// the diag package's reporter decides whether a violation panics or is
// merely logged.
func Validate(m *Module) []Violation {
	var out []Violation
	for _, f := range m.Functions() {
		out = append(out, validateFunction(f)...)
	}
	return out
}

// AssertInvariants panics through diag.InvariantViolation on the first
// violation Validate finds; the enclosing module is printed only when
// SC_REPORT_INVARIANT_VIOLATIONS is set, via the lazy thunk.
func AssertInvariants(m *Module) {
	violations := Validate(m)
	if len(violations) == 0 {
		return
	}
	v := violations[0]
	diag.InvariantViolation(v.Func, v.String(), func() string { return Print(m) })
}

func validateFunction(f *Function) []Violation {
	var out []Violation
	if f.External() {
		return out
	}
	definedHere := make(map[*Value]bool)
	for _, p := range f.Params() {
		definedHere[p.AsValue()] = true
	}

	for _, b := range f.Blocks() {
		out = append(out, validateBlock(f, b)...)
		for _, inst := range b.Instructions() {
			definedHere[inst.AsValue()] = true
		}
	}

	// invariant (b)/(c): every operand referencing an instruction or
	// parameter in this function must be defined somewhere reachable, and
	// dominance is checked separately below per use (kept O(n) per block
	// via a dominator-less conservative same-function membership check
	// here; the precise dominance check is done by package analysis, whose
	// DominatorTree.Dominates is called from transform passes that already
	// hold one — this validator only catches gross errors: an operand that
	// belongs to no block of f at all).
	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			for slot, op := range inst.Operands() {
				if op == nil {
					if _, ok := inst.(*AllocaInst); ok && slot == 0 {
						continue // a nil count means "single element"
					}
					out = append(out, Violation{
						Kind: ViolDanglingOperand, Func: f.Name(), Block: b.Label(), Inst: inst,
						Msg: fmt.Sprintf("operand %d is nil", slot),
					})
					continue
				}
				if op.Kind() == KindInstruction && !definedHere[op] {
					out = append(out, Violation{
						Kind: ViolDanglingOperand, Func: f.Name(), Block: b.Label(), Inst: inst,
						Msg: fmt.Sprintf("operand %d (%s) is not defined in function %s", slot, refName(op), f.Name()),
					})
				}
			}
			out = append(out, validateOperandTypes(f, b, inst)...)
		}
	}
	return out
}

// validateOperandTypes checks the per-kind typing rules: binary operands
// agree, compares take two like-typed (or two pointer) operands and
// produce i1, and a branch condition is i1.
func validateOperandTypes(f *Function, b *BasicBlock, inst Instruction) []Violation {
	var out []Violation
	mismatch := func(msg string) {
		out = append(out, Violation{Kind: ViolTypeMismatch, Func: f.Name(), Block: b.Label(), Inst: inst, Msg: msg})
	}
	isBool := func(v *Value) bool {
		it, ok := v.Type().(*sctx.IntType)
		return ok && it.Bits == 1
	}
	switch in := inst.(type) {
	case *ArithmeticInst:
		if in.LHS() != nil && in.RHS() != nil && in.LHS().Type() != in.RHS().Type() {
			mismatch(fmt.Sprintf("binary operand types differ: %s vs %s", in.LHS().Type(), in.RHS().Type()))
		}
	case *CompareInst:
		if in.LHS() != nil && in.RHS() != nil && in.LHS().Type() != in.RHS().Type() {
			mismatch(fmt.Sprintf("compare operand types differ: %s vs %s", in.LHS().Type(), in.RHS().Type()))
		}
		if !isBool(in.AsValue()) {
			mismatch("compare does not produce i1")
		}
	case *BranchInst:
		if in.Cond() != nil && !isBool(in.Cond()) {
			mismatch(fmt.Sprintf("branch condition is %s, not i1", in.Cond().Type()))
		}
	}
	return out
}

func validateBlock(f *Function, b *BasicBlock) []Violation {
	var out []Violation
	instrs := b.Instructions()
	if len(instrs) == 0 {
		out = append(out, Violation{Kind: ViolTerminatorMissing, Func: f.Name(), Block: b.Label(), Msg: "block is empty"})
		return out
	}

	// invariant 5: phis form a prefix.
	seenNonPhi := false
	for _, inst := range instrs {
		if inst.Kind() == KPhi {
			if seenNonPhi {
				out = append(out, Violation{Kind: ViolPhiNotPrefix, Func: f.Name(), Block: b.Label(), Inst: inst,
					Msg: "phi appears after a non-phi instruction"})
			}
		} else {
			seenNonPhi = true
		}
	}

	// invariant 4: exactly one terminator, as the last instruction.
	for idx, inst := range instrs {
		isTerm := inst.IsTerminator()
		isLast := idx == len(instrs)-1
		if isTerm && !isLast {
			out = append(out, Violation{Kind: ViolTerminatorMisplaced, Func: f.Name(), Block: b.Label(), Inst: inst,
				Msg: "terminator is not the last instruction in the block"})
		}
		if !isTerm && isLast {
			out = append(out, Violation{Kind: ViolTerminatorMissing, Func: f.Name(), Block: b.Label(), Inst: inst,
				Msg: "block does not end in a terminator"})
		}
	}

	// invariant 5 continued: every phi has exactly one edge per predecessor,
	// no more and no fewer.
	for _, phi := range b.Phis() {
		seen := make(map[*BasicBlock]int)
		for _, e := range phi.Incoming() {
			seen[e.Pred]++
		}
		for _, pred := range b.Predecessors() {
			if seen[pred] == 0 {
				out = append(out, Violation{Kind: ViolPhiMissingPred, Func: f.Name(), Block: b.Label(), Inst: phi,
					Msg: fmt.Sprintf("missing incoming edge from predecessor %s", pred.Label())})
			}
		}
		if len(phi.Incoming()) != len(b.Predecessors()) {
			out = append(out, Violation{Kind: ViolPhiEdgeCountMismatch, Func: f.Name(), Block: b.Label(), Inst: phi,
				Msg: fmt.Sprintf("phi has %d incoming edges, block has %d predecessors", len(phi.Incoming()), len(b.Predecessors()))})
		}
	}

	return out
}
