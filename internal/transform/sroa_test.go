package transform

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// buildStructAlloca builds an entry block that allocates a {i64, i64}
// struct, stores to each field through a constant-index GEP, loads them
// back, and returns their sum.
func buildStructAlloca(t *testing.T) (*ssa.Module, *ssa.Function, *ssa.AllocaInst) {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	st := ctx.StructType("Pair", []sctx.Field{{Offset: 0, Type: i64}, {Offset: 8, Type: i64}})
	fn := mod.NewFunction("f", []sctx.Type{i64, i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	alloca := b.AddAlloca(st, nil)
	zeroIdx := mod.ConstantValue(ctx.IntConstant(0, 64))
	gep0 := b.AddGEP(alloca.AsValue(), zeroIdx, st, []int{0})
	gep1 := b.AddGEP(alloca.AsValue(), zeroIdx, st, []int{1})
	b.AddStore(gep0.AsValue(), fn.Params()[0].AsValue())
	b.AddStore(gep1.AsValue(), fn.Params()[1].AsValue())
	l0 := b.AddLoad(gep0.AsValue(), i64)
	l1 := b.AddLoad(gep1.AsValue(), i64)
	sum := b.AddArithmetic(sctx.Add, l0.AsValue(), l1.AsValue())
	b.AddReturn(sum.AsValue())

	return mod, fn, alloca
}

func TestSROASplitsStructAlloca(t *testing.T) {
	mod, fn, alloca := buildStructAlloca(t)

	if !SROA(fn) {
		t.Fatalf("expected SROA to split the struct alloca")
	}
	if alloca.Parent() != nil {
		t.Fatalf("original aggregate alloca should be gone")
	}
	if violations := ssa.Validate(mod); len(violations) != 0 {
		t.Fatalf("invalid IR after SROA: %v", violations)
	}
}

// TestSROASplitsMemcpyPerSlice builds an alloca filled by one whole-struct
// memcpy and read back field by field, and expects the copy split into one
// memcpy per field slice (the second with its source advanced by the
// field offset), the aggregate alloca gone.
func TestSROASplitsMemcpyPerSlice(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	ptr := ctx.PtrType()
	st := ctx.StructType("Pair2", []sctx.Field{{Offset: 0, Type: i64}, {Offset: 8, Type: i64}})
	memcpyFn := mod.NewExternal("__builtin_memcpy", []sctx.Type{ptr, ptr, i64}, ctx.VoidType())
	fn := mod.NewFunction("copyIn", []sctx.Type{ptr}, i64)

	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	alloca := b.AddAlloca(st, nil)
	sixteen := mod.ConstantValue(ctx.IntConstant(16, 64))
	b.AddCall(ssa.Callee{External: memcpyFn}, []*ssa.Value{alloca.AsValue(), fn.Params()[0].AsValue(), sixteen}, ctx.VoidType())
	zeroIdx := mod.ConstantValue(ctx.IntConstant(0, 64))
	gep0 := b.AddGEP(alloca.AsValue(), zeroIdx, st, []int{0})
	gep1 := b.AddGEP(alloca.AsValue(), zeroIdx, st, []int{1})
	l0 := b.AddLoad(gep0.AsValue(), i64)
	l1 := b.AddLoad(gep1.AsValue(), i64)
	sum := b.AddArithmetic(sctx.Add, l0.AsValue(), l1.AsValue())
	b.AddReturn(sum.AsValue())

	if !SROA(fn) {
		t.Fatalf("expected SROA to slice the memcpy-filled alloca")
	}
	if alloca.Parent() != nil {
		t.Fatalf("original aggregate alloca should be gone")
	}
	var copies []*ssa.CallInst
	for _, blk := range fn.Blocks() {
		for _, inst := range blk.Instructions() {
			if c, ok := inst.(*ssa.CallInst); ok && c.Callee.External == memcpyFn {
				copies = append(copies, c)
			}
		}
	}
	if len(copies) != 2 {
		t.Fatalf("expected the memcpy split into one call per field slice, got %d calls", len(copies))
	}
	for _, c := range copies {
		n := c.Args()[2].Constant()
		if n == nil || n.Int != 8 {
			t.Fatalf("expected each split memcpy to copy one 8-byte field, got length %v", c.Args()[2])
		}
	}
	if violations := ssa.Validate(mod); len(violations) != 0 {
		t.Fatalf("invalid IR after SROA: %v", violations)
	}
}

// TestSROAIdempotent checks that running SROA (composed with its usual
// mem2reg follow-up) twice settles: the second run reports no further
// change.
func TestSROAIdempotent(t *testing.T) {
	mod, fn, _ := buildStructAlloca(t)

	SROA(fn)
	before := ssa.Print(mod)
	if SROA(fn) {
		t.Fatalf("expected a second SROA run over already-split allocas to report no change")
	}
	if diff := cmp.Diff(before, ssa.Print(mod)); diff != "" {
		t.Fatalf("expected identical IR on a second SROA run (-first +second):\n%s", diff)
	}
}
