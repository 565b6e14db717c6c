package transform

import (
	"testing"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// buildRedundantAdd builds:
//
//	entry: %a = add p0, p1 ; %b = add p0, p1 ; return %a
//
// so %b is a dominator-available redundant recomputation of %a.
func buildRedundantAdd(t *testing.T) (*ssa.Function, *ssa.ArithmeticInst, *ssa.ArithmeticInst) {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("f", []sctx.Type{i64, i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	_ = entry
	a := b.AddArithmetic(sctx.Add, fn.Params()[0].AsValue(), fn.Params()[1].AsValue())
	c := b.AddArithmetic(sctx.Add, fn.Params()[1].AsValue(), fn.Params()[0].AsValue())
	b.AddReturn(a.AsValue())
	_ = c
	return fn, a, c
}

func TestGVNUnifiesCommutativeRedundancy(t *testing.T) {
	fn, a, c := buildRedundantAdd(t)
	if !GVN(fn) {
		t.Fatalf("expected GVN to report a change")
	}
	if len(c.AsValue().Uses()) != 0 {
		t.Fatalf("redundant add should have been erased")
	}
	if a.Parent() == nil {
		t.Fatalf("surviving add should remain in its block")
	}
}

func TestGVNLeavesNonRedundantComputations(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("g", []sctx.Type{i64, i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	sub := b.AddArithmetic(sctx.Sub, fn.Params()[0].AsValue(), fn.Params()[1].AsValue())
	add := b.AddArithmetic(sctx.Add, fn.Params()[0].AsValue(), fn.Params()[1].AsValue())
	b.AddReturn(add.AsValue())

	if GVN(fn) {
		t.Fatalf("expected no change for two distinct computations")
	}
	if sub.Parent() == nil || add.Parent() == nil {
		t.Fatalf("both instructions should survive")
	}
}

func TestGVNHoistsLoopInvariantComputation(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("loop", []sctx.Type{i64, i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	header := b.NewBlock("header")
	body := b.NewBlock("body")
	exit := b.NewBlock("exit")

	zero := mod.ConstantValue(ctx.IntConstant(0, 64))
	one := mod.ConstantValue(ctx.IntConstant(1, 64))

	b.InsertAtEnd(entry)
	b.AddGoto(header)

	// Two predecessors into header keeps it a canonical loop header: entry
	// (outside) and body (the latch).
	b.InsertAtEnd(header)
	iv := b.AddPhi(i64)
	iv.AddIncoming(entry, zero)
	cond := b.AddCompare(ssa.CompareSigned, ssa.CmpLS, iv.AsValue(), fn.Params()[1].AsValue())
	b.AddBranch(cond.AsValue(), body, exit)

	b.InsertAtEnd(body)
	invariant := b.AddArithmetic(sctx.Add, fn.Params()[0].AsValue(), fn.Params()[1].AsValue())
	next := b.AddArithmetic(sctx.Add, iv.AsValue(), one)
	b.AddGoto(header)
	iv.AddIncoming(body, next.AsValue())

	b.InsertAtEnd(exit)
	b.AddReturn(invariant.AsValue())

	if err := ssa.Validate(mod); len(err) != 0 {
		t.Fatalf("invalid IR before GVN: %v", err)
	}

	if !GVN(fn) {
		t.Fatalf("expected GVN to hoist the loop-invariant add")
	}

	for _, blk := range fn.Blocks() {
		if blk == body {
			for _, inst := range blk.Instructions() {
				if _, ok := inst.(*ssa.ArithmeticInst); ok && inst.Kind() == ssa.KArithmetic {
					if arith, ok := inst.(*ssa.ArithmeticInst); ok && arith.Op == sctx.Add {
						if arith.LHS() == fn.Params()[0].AsValue() || arith.RHS() == fn.Params()[0].AsValue() {
							t.Fatalf("invariant add should have been hoisted out of the loop body")
						}
					}
				}
			}
		}
	}
}
