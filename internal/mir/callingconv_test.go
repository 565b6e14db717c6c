package mir

import (
	"testing"

	"scatha/internal/sctx"
)

// TestComputeParamConventionSmallValueInRegister checks rule 2: a value
// parameter no wider than 16 bytes passes in a register.
func TestComputeParamConventionSmallValueInRegister(t *testing.T) {
	ctx := sctx.NewContext()
	conv := ComputeParamConvention(ctx.IntType(64), false)
	if conv.Loc != LocRegister || conv.Slots != 1 {
		t.Fatalf("expected a register, 1-slot convention for an i64 value, got %+v", conv)
	}
}

// TestComputeParamConventionLargeValueInMemory checks rule 3: a value
// parameter wider than 16 bytes passes through memory.
func TestComputeParamConventionLargeValueInMemory(t *testing.T) {
	ctx := sctx.NewContext()
	i64 := ctx.IntType(64)
	big := ctx.StructType("Big", []sctx.Field{
		{Offset: 0, Type: i64}, {Offset: 8, Type: i64}, {Offset: 16, Type: i64},
	})
	conv := ComputeParamConvention(big, false)
	if conv.Loc != LocMemory {
		t.Fatalf("expected a 24-byte struct to pass through memory, got %+v", conv)
	}
}

// TestComputeParamConventionReferenceAlwaysRegister checks rule 1: a
// reference parameter always passes as a single register regardless of the
// pointee's size.
func TestComputeParamConventionReferenceAlwaysRegister(t *testing.T) {
	ctx := sctx.NewContext()
	i64 := ctx.IntType(64)
	big := ctx.StructType("Big", []sctx.Field{
		{Offset: 0, Type: i64}, {Offset: 8, Type: i64}, {Offset: 16, Type: i64},
	})
	conv := ComputeParamConvention(big, true)
	if conv.Loc != LocRegister || conv.Slots != 1 {
		t.Fatalf("expected a reference parameter to stay a single register regardless of size, got %+v", conv)
	}
}

// TestComputeParamConventionDynamicArrayReferenceTwoRegisters checks the
// (pointer, count) dynamic-array shape passes as two registers when taken
// by reference.
func TestComputeParamConventionDynamicArrayReferenceTwoRegisters(t *testing.T) {
	ctx := sctx.NewContext()
	ptr := ctx.PtrType()
	i64 := ctx.IntType(64)
	arr := ctx.TupleType(ptr, i64)
	conv := ComputeParamConvention(arr, true)
	if conv.Loc != LocRegister || conv.Slots != 2 {
		t.Fatalf("expected a dynamic-array reference to occupy 2 registers, got %+v", conv)
	}
}

// TestComputeReturnConventionVoid checks a void return needs no registers
// and no implicit pointer parameter.
func TestComputeReturnConventionVoid(t *testing.T) {
	ctx := sctx.NewContext()
	conv, implicit := ComputeReturnConvention(ctx.VoidType())
	if implicit {
		t.Fatalf("a void return should never need an implicit return pointer")
	}
	if conv.Slots != 0 {
		t.Fatalf("expected 0 slots for a void return, got %+v", conv)
	}
}

// TestComputeReturnConventionLargeStructImplicitPointer checks rule 4: a
// large-struct return is realized as an implicit first pointer parameter.
func TestComputeReturnConventionLargeStructImplicitPointer(t *testing.T) {
	ctx := sctx.NewContext()
	i64 := ctx.IntType(64)
	big := ctx.StructType("Big", []sctx.Field{
		{Offset: 0, Type: i64}, {Offset: 8, Type: i64}, {Offset: 16, Type: i64},
	})
	conv, implicit := ComputeReturnConvention(big)
	if !implicit {
		t.Fatalf("expected a large struct return to require an implicit return pointer")
	}
	if conv.Loc != LocMemory || conv.Slots != 1 {
		t.Fatalf("expected a single memory slot convention, got %+v", conv)
	}
}
