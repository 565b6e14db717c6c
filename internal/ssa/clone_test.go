package ssa_test

import (
	"testing"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// buildAddOneForClone builds:
//
//	entry: %c = add p0, 1 ; branch %c>0 ? but kept simple: ; return %c
func buildAddOneForClone(t *testing.T) (*ssa.Module, *ssa.Function) {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("f", []sctx.Type{i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	one := mod.ConstantValue(ctx.IntConstant(1, 64))
	add := b.AddArithmetic(sctx.Add, fn.Params()[0].AsValue(), one)
	b.AddReturn(add.AsValue())

	if errs := ssa.Validate(mod); len(errs) != 0 {
		t.Fatalf("invalid IR: %v", errs)
	}
	return mod, fn
}

func TestCloneFunctionIsIndependentOfOriginal(t *testing.T) {
	mod, fn := buildAddOneForClone(t)
	clone := ssa.CloneFunction(mod, fn, "f_clone")

	if clone.Name() != "f_clone" {
		t.Fatalf("expected clone named f_clone, got %s", clone.Name())
	}
	if len(clone.Blocks()) != len(fn.Blocks()) {
		t.Fatalf("expected same block count")
	}
	if clone.Entry() == fn.Entry() {
		t.Fatalf("clone should not share blocks with the original")
	}

	origAdd := fn.Entry().Instructions()[0].(*ssa.ArithmeticInst)
	cloneAdd := clone.Entry().Instructions()[0].(*ssa.ArithmeticInst)
	if cloneAdd == origAdd {
		t.Fatalf("clone's instructions must be distinct objects")
	}
	if cloneAdd.LHS() == origAdd.LHS() {
		t.Fatalf("clone's add should read the clone's own parameter, not the original's")
	}
	if cloneAdd.LHS() != clone.Params()[0].AsValue() {
		t.Fatalf("clone's add should reference clone.Params()[0]")
	}

	clonedReturn := clone.Entry().Terminator().(*ssa.ReturnInst)
	if clonedReturn.Val() != cloneAdd.AsValue() {
		t.Fatalf("clone's return should read the clone's own add result")
	}

	if len(origAdd.AsValue().Uses()) != 1 {
		t.Fatalf("cloning must not leave a stray use on the original add's value")
	}
}

// buildLoopWithPhi builds a two-block loop so CloneFunction must remap both
// a Phi's predecessor list and a Goto's target.
func buildLoopWithPhi(t *testing.T) (*ssa.Module, *ssa.Function) {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("loop", []sctx.Type{i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	header := b.NewBlock("header")

	b.InsertAtEnd(entry)
	b.AddGoto(header)

	b.InsertAtEnd(header)
	one := mod.ConstantValue(ctx.IntConstant(1, 64))
	phi := b.AddPhi(i64)
	phi.AddIncoming(entry, fn.Params()[0].AsValue())
	next := b.AddArithmetic(sctx.Add, phi.AsValue(), one)
	phi.AddIncoming(header, next.AsValue())
	b.AddGoto(header)

	if errs := ssa.Validate(mod); len(errs) != 0 {
		t.Fatalf("invalid IR: %v", errs)
	}
	return mod, fn
}

func TestCloneFunctionRemapsPhiPredecessorsAndBranchTargets(t *testing.T) {
	mod, fn := buildLoopWithPhi(t)
	clone := ssa.CloneFunction(mod, fn, "loop_clone")

	cloneEntry := clone.Blocks()[0]
	cloneHeader := clone.Blocks()[1]

	gotoInst := cloneEntry.Terminator().(*ssa.GotoInst)
	if gotoInst.Target() != cloneHeader {
		t.Fatalf("clone's goto should target the clone's own header block")
	}

	clonePhi := cloneHeader.Instructions()[0].(*ssa.PhiInst)
	for _, e := range clonePhi.Incoming() {
		if e.Pred != cloneEntry && e.Pred != cloneHeader {
			t.Fatalf("phi predecessor %v was not remapped into the clone's own blocks", e.Pred.Label())
		}
	}
}
