package transform

import (
	"testing"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// TestInlineSplicesSmallCallee builds a caller invoking a small, non-
// recursive callee and expects the call gone and the callee's arithmetic
// spliced into the caller.
func TestInlineSplicesSmallCallee(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)

	callee := mod.NewFunction("addOne", []sctx.Type{i64}, i64)
	cb := ssa.NewBuilder(ctx, callee)
	cb.AddNewBlock("entry")
	one := mod.ConstantValue(ctx.IntConstant(1, 64))
	sum := cb.AddArithmetic(sctx.Add, callee.Params()[0].AsValue(), one)
	cb.AddReturn(sum.AsValue())

	caller := mod.NewFunction("main", []sctx.Type{i64}, i64)
	mb := ssa.NewBuilder(ctx, caller)
	mb.AddNewBlock("entry")
	call := mb.AddCall(ssa.Callee{Direct: callee}, []*ssa.Value{caller.Params()[0].AsValue()}, i64)
	mb.AddReturn(call.AsValue())

	if !Inline(mod) {
		t.Fatalf("expected Inline to splice the small callee")
	}
	for _, b := range caller.Blocks() {
		for _, inst := range b.Instructions() {
			if c, ok := inst.(*ssa.CallInst); ok && c.Callee.Direct == callee {
				t.Fatalf("call to addOne should have been inlined away")
			}
		}
	}
	if violations := ssa.Validate(mod); len(violations) != 0 {
		t.Fatalf("invalid IR after Inline: %v", violations)
	}
}

// TestInlineLeavesRecursiveCalleeAlone checks that a self-recursive
// function's own call sites are never touched.
func TestInlineLeavesRecursiveCalleeAlone(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)

	fact := mod.NewFunction("fact", []sctx.Type{i64}, i64)
	fb := ssa.NewBuilder(ctx, fact)
	fb.AddNewBlock("entry")
	call := fb.AddCall(ssa.Callee{Direct: fact}, []*ssa.Value{fact.Params()[0].AsValue()}, i64)
	fb.AddReturn(call.AsValue())

	if Inline(mod) {
		t.Fatalf("expected Inline to leave a recursive SCC untouched")
	}
	if call.Parent() == nil {
		t.Fatalf("recursive call site should survive")
	}
}
