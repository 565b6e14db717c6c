package transform

import (
	"testing"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// TestDCERemovesDeadArithmetic builds a function computing an unused value
// alongside its return and expects the dead computation to be erased.
func TestDCERemovesDeadArithmetic(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("f", []sctx.Type{i64, i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	dead := b.AddArithmetic(sctx.Mul, fn.Params()[0].AsValue(), fn.Params()[1].AsValue())
	b.AddReturn(fn.Params()[0].AsValue())

	if !DCE(fn) {
		t.Fatalf("expected DCE to remove the dead instruction")
	}
	if dead.Parent() != nil {
		t.Fatalf("dead arithmetic should have been erased")
	}
	if violations := ssa.Validate(mod); len(violations) != 0 {
		t.Fatalf("invalid IR after DCE: %v", violations)
	}
}

// TestDCEKeepsStores verifies a Store (a side effect) survives even with
// no uses of its own value.
func TestDCEKeepsStores(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	ptr := ctx.PtrType()
	fn := mod.NewFunction("g", []sctx.Type{ptr, i64}, ctx.VoidType())

	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	store := b.AddStore(fn.Params()[0].AsValue(), fn.Params()[1].AsValue())
	b.AddReturn(nil)

	if DCE(fn) {
		t.Fatalf("expected no change: the store is a side effect")
	}
	if store.Parent() == nil {
		t.Fatalf("store should survive DCE")
	}
}

// TestDCECollapsesDeadFunctionToUndefReturn builds a function with no
// reachable return (an infinite self-loop) and no side effects, and
// expects its body to collapse to a single undef-returning block.
func TestDCECollapsesDeadFunctionToUndefReturn(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("loop", nil, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	b.InsertAtEnd(entry)
	b.AddGoto(entry)

	if !DCE(fn) {
		t.Fatalf("expected DCE to collapse the returnless function")
	}
	if len(fn.Blocks()) != 1 {
		t.Fatalf("expected a single block after collapse, got %d", len(fn.Blocks()))
	}
	ret, ok := fn.Blocks()[0].Terminator().(*ssa.ReturnInst)
	if !ok {
		t.Fatalf("expected a return terminator after collapse")
	}
	_ = ret
}
