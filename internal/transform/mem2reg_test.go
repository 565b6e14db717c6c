package transform

import (
	"testing"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// TestMem2RegPromotesStraightLineAlloca builds:
//
//	entry: %a = alloca i64; store %a, 42; %v = load %a; return %v
//
// and expects the alloca, its store, and its load all to disappear,
// replaced by the constant flowing directly into the return.
func TestMem2RegPromotesStraightLineAlloca(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("f", nil, i64)

	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	alloca := b.AddAlloca(i64, nil)
	fortytwo := mod.ConstantValue(ctx.IntConstant(42, 64))
	b.AddStore(alloca.AsValue(), fortytwo)
	load := b.AddLoad(alloca.AsValue(), i64)
	b.AddReturn(load.AsValue())

	if !Mem2Reg(fn) {
		t.Fatalf("expected mem2reg to promote the alloca")
	}
	if alloca.Parent() != nil {
		t.Fatalf("alloca should have been erased")
	}
	if violations := ssa.Validate(mod); len(violations) != 0 {
		t.Fatalf("invalid IR after mem2reg: %v", violations)
	}
}

// TestMem2RegInsertsPhiAtMerge builds a diamond where each branch stores a
// different value to the same alloca before merging, and expects a phi to
// appear at the merge block in the load's place.
func TestMem2RegInsertsPhiAtMerge(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("g", []sctx.Type{ctx.IntType(1)}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	thenBB := b.NewBlock("then")
	elseBB := b.NewBlock("else")
	merge := b.NewBlock("merge")

	one := mod.ConstantValue(ctx.IntConstant(1, 64))
	two := mod.ConstantValue(ctx.IntConstant(2, 64))

	b.InsertAtEnd(entry)
	alloca := b.AddAlloca(i64, nil)
	b.AddBranch(fn.Params()[0].AsValue(), thenBB, elseBB)

	b.InsertAtEnd(thenBB)
	b.AddStore(alloca.AsValue(), one)
	b.AddGoto(merge)

	b.InsertAtEnd(elseBB)
	b.AddStore(alloca.AsValue(), two)
	b.AddGoto(merge)

	b.InsertAtEnd(merge)
	load := b.AddLoad(alloca.AsValue(), i64)
	b.AddReturn(load.AsValue())

	if !Mem2Reg(fn) {
		t.Fatalf("expected mem2reg to promote the alloca and insert a phi")
	}
	if alloca.Parent() != nil {
		t.Fatalf("alloca should have been erased")
	}
	foundPhi := false
	for _, inst := range merge.Instructions() {
		if _, ok := inst.(*ssa.PhiInst); ok {
			foundPhi = true
		}
	}
	if !foundPhi {
		t.Fatalf("expected a phi at the merge block")
	}
	if violations := ssa.Validate(mod); len(violations) != 0 {
		t.Fatalf("invalid IR after mem2reg: %v", violations)
	}
}

// TestMem2RegSkipsEscapingAlloca leaves an alloca alone once its address is
// passed somewhere other than a load/store of itself.
func TestMem2RegSkipsEscapingAlloca(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	ptr := ctx.PtrType()
	ext := mod.NewExternal("escape", []sctx.Type{ptr}, ctx.VoidType())
	fn := mod.NewFunction("h", nil, i64)

	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	alloca := b.AddAlloca(i64, nil)
	b.AddCall(ssa.Callee{External: ext}, []*ssa.Value{alloca.AsValue()}, ctx.VoidType())
	load := b.AddLoad(alloca.AsValue(), i64)
	b.AddReturn(load.AsValue())

	if Mem2Reg(fn) {
		t.Fatalf("expected mem2reg to leave an escaping alloca untouched")
	}
	if alloca.Parent() == nil {
		t.Fatalf("escaping alloca should survive")
	}
}
