package transform

import (
	"testing"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// buildCrossBlockGEP builds:
//
//	entry: %g = gep [i64,4], ptr p0, index 0, members [] ; branch p1, then, else
//	then: %v1 = load i64, ptr %g ; return %v1
//	else: return 0
func buildCrossBlockGEP(t *testing.T) (*ssa.Function, *ssa.GEPInst, *ssa.LoadInst) {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	i1 := ctx.IntType(1)
	arr := ctx.ArrayType(i64, 4)
	fn := mod.NewFunction("f", []sctx.Type{ctx.PtrType(), i1}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	thenBB := b.NewBlock("then")
	elseBB := b.NewBlock("else")

	zeroIdx := mod.ConstantValue(ctx.IntConstant(0, 64))
	gep := b.AddGEP(fn.Params()[0].AsValue(), zeroIdx, arr, nil)
	b.AddBranch(fn.Params()[1].AsValue(), thenBB, elseBB)

	b.InsertAtEnd(thenBB)
	load := b.AddLoad(gep.AsValue(), i64)
	b.AddReturn(load.AsValue())

	b.InsertAtEnd(elseBB)
	b.AddReturn(mod.ConstantValue(ctx.IntConstant(0, 64)))

	if errs := ssa.Validate(mod); len(errs) != 0 {
		t.Fatalf("invalid IR: %v", errs)
	}
	_ = entry
	return fn, gep, load
}

func TestRematerializeClonesCrossBlockGEP(t *testing.T) {
	fn, gep, load := buildCrossBlockGEP(t)
	if !Rematerialize(fn) {
		t.Fatalf("expected a change")
	}
	if load.Addr() == gep.AsValue() {
		t.Fatalf("load should now read a local clone, not the original cross-block GEP")
	}
	if gep.Parent() != nil {
		t.Fatalf("original GEP should have been erased once unused")
	}
	if load.Addr().Kind() != ssa.KindInstruction {
		t.Fatalf("clone should itself be a GEP instruction value")
	}
}

func TestRematerializeLeavesSameBlockUse(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	arr := ctx.ArrayType(i64, 4)
	fn := mod.NewFunction("g", []sctx.Type{ctx.PtrType()}, i64)

	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	zeroIdx := mod.ConstantValue(ctx.IntConstant(0, 64))
	gep := b.AddGEP(fn.Params()[0].AsValue(), zeroIdx, arr, nil)
	load := b.AddLoad(gep.AsValue(), i64)
	b.AddReturn(load.AsValue())

	if Rematerialize(fn) {
		t.Fatalf("expected no change for a same-block use")
	}
	if load.Addr() != gep.AsValue() {
		t.Fatalf("same-block use should still read the original GEP")
	}
}

// buildPhiUseGEP builds a GEP in entry whose only out-of-block use reaches
// a phi in a join block via the `then` predecessor edge.
func buildPhiUseGEP(t *testing.T) (*ssa.Function, *ssa.GEPInst, *ssa.PhiInst, *ssa.BasicBlock) {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	i1 := ctx.IntType(1)
	arr := ctx.ArrayType(i64, 4)
	ptrT := ctx.PtrType()
	fn := mod.NewFunction("h", []sctx.Type{ptrT, i1}, ptrT)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	thenBB := b.NewBlock("then")
	elseBB := b.NewBlock("else")
	join := b.NewBlock("join")

	zeroIdx := mod.ConstantValue(ctx.IntConstant(0, 64))
	gep := b.AddGEP(fn.Params()[0].AsValue(), zeroIdx, arr, nil)
	b.AddBranch(fn.Params()[1].AsValue(), thenBB, elseBB)

	b.InsertAtEnd(thenBB)
	b.AddGoto(join)

	b.InsertAtEnd(elseBB)
	b.AddGoto(join)

	b.InsertAtEnd(join)
	phi := b.AddPhi(ptrT)
	phi.AddIncoming(thenBB, gep.AsValue())
	phi.AddIncoming(elseBB, mod.ConstantValue(ctx.NullPointer()))
	b.AddReturn(phi.AsValue())

	if errs := ssa.Validate(mod); len(errs) != 0 {
		t.Fatalf("invalid IR: %v", errs)
	}
	_ = entry
	return fn, gep, phi, thenBB
}

func TestRematerializeClonesIntoPhiPredecessor(t *testing.T) {
	fn, gep, phi, thenBB := buildPhiUseGEP(t)
	if !Rematerialize(fn) {
		t.Fatalf("expected a change for the phi-edge use")
	}
	var fromThen *ssa.Value
	for _, e := range phi.Incoming() {
		if e.Pred == thenBB {
			fromThen = e.Val
		}
	}
	if fromThen == gep.AsValue() {
		t.Fatalf("phi's then-edge should now read a clone placed in the predecessor block")
	}
	found := false
	for _, inst := range thenBB.Instructions() {
		if inst.AsValue() == fromThen {
			found = true
		}
	}
	if !found {
		t.Fatalf("clone should live in the then predecessor block")
	}
	if gep.Parent() != nil {
		t.Fatalf("original GEP should have been erased once unused")
	}
}
