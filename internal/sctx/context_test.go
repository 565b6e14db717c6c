package sctx

import "testing"

// TestTypesAreInterned checks that equal structural types share identity.
func TestTypesAreInterned(t *testing.T) {
	ctx := NewContext()
	a := ctx.IntType(64)
	b := ctx.IntType(64)
	if a != b {
		t.Fatalf("expected two i64 requests to return the identical interned type")
	}
	if ctx.IntType(32) == a {
		t.Fatalf("expected i32 and i64 to be distinct types")
	}
	arr1 := ctx.ArrayType(a, 4)
	arr2 := ctx.ArrayType(b, 4)
	if arr1 != arr2 {
		t.Fatalf("expected structurally-equal array types to be interned")
	}
}

// TestPointerTypeDistinctFromInteger checks that a pointer type is
// distinct from any integer even if they happen to have the same size.
func TestPointerTypeDistinctFromInteger(t *testing.T) {
	ctx := NewContext()
	ptr := ctx.PtrType()
	i64 := ctx.IntType(64)
	if ptr.Size() != i64.Size() {
		t.Fatalf("expected ptr and i64 to share a size for this test to be meaningful")
	}
	if ptr == i64 {
		t.Fatalf("ptr must never compare equal to an integer type of the same size")
	}
}

// TestNamedStructsInternedByIdentity checks that named structs intern by
// identity: a second declaration with the same name returns the
// existing type even if the field list given this time differs.
func TestNamedStructsInternedByIdentity(t *testing.T) {
	ctx := NewContext()
	i64 := ctx.IntType(64)
	first := ctx.StructType("Point", []Field{{Offset: 0, Type: i64}, {Offset: 8, Type: i64}})
	second := ctx.StructType("Point", []Field{{Offset: 0, Type: i64}})
	if first != second {
		t.Fatalf("expected a second declaration of the same struct name to return the identical type")
	}
}

// TestAnonymousTuplesLayoutWithAlignment checks that TupleType inserts
// padding so each field lands on its own alignment boundary.
func TestAnonymousTuplesLayoutWithAlignment(t *testing.T) {
	ctx := NewContext()
	i8 := ctx.IntType(8)
	i64 := ctx.IntType(64)
	tup := ctx.TupleType(i8, i64)
	rt, ok := tup.(*RecordType)
	if !ok {
		t.Fatalf("expected TupleType to return a *RecordType")
	}
	if rt.Fields[0].Offset != 0 {
		t.Fatalf("expected the i8 field at offset 0, got %d", rt.Fields[0].Offset)
	}
	if rt.Fields[1].Offset != 8 {
		t.Fatalf("expected the i64 field padded out to offset 8, got %d", rt.Fields[1].Offset)
	}
	if rt.Size() != 16 {
		t.Fatalf("expected total size 16 (8 padding + 8 i64), got %d", rt.Size())
	}
}

// TestIntConstantTruncatesAndSignExtends checks two's complement
// truncation: a too-wide value is masked to bits width, and the sign bit
// propagates for a negative narrow value.
func TestIntConstantTruncatesAndSignExtends(t *testing.T) {
	ctx := NewContext()
	c := ctx.IntConstant(-1, 8)
	if c.Int != -1 {
		t.Fatalf("expected -1 (all ones) to round-trip through an i8 constant, got %d", c.Int)
	}
	same := ctx.IntConstant(255, 8)
	if same != c {
		t.Fatalf("expected 255 truncated to i8 to be canonically the same constant as -1")
	}
}

// TestConstantPoolInternsOnePerBitPattern checks the constant pool holds
// one immutable node per (type, bit pattern) tuple.
func TestConstantPoolInternsOnePerBitPattern(t *testing.T) {
	ctx := NewContext()
	a := ctx.IntConstant(42, 64)
	b := ctx.IntConstant(42, 64)
	if a != b {
		t.Fatalf("expected two requests for the same (type, value) to return the identical constant")
	}
	if ctx.IntConstant(42, 32) == a {
		t.Fatalf("expected different bit widths to produce distinct constants even with equal values")
	}
}

// TestAggregateConstantsInternByElements checks that array, record, and
// function constants intern on their element identity, and render their
// elements in typed form.
func TestAggregateConstantsInternByElements(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.IntType(32)
	elems := []*Constant{ctx.IntConstant(1, 32), ctx.IntConstant(2, 32)}

	a := ctx.ArrayConstant(i32, elems)
	b := ctx.ArrayConstant(i32, []*Constant{ctx.IntConstant(1, 32), ctx.IntConstant(2, 32)})
	if a != b {
		t.Fatalf("expected arrays of identical interned elements to share one node")
	}
	if got := a.Literal(); got != "[i32 1, i32 2]" {
		t.Fatalf("unexpected array literal rendering %q", got)
	}

	rec := ctx.StructType("ipair", []Field{{Offset: 0, Type: i32}, {Offset: 4, Type: i32}})
	r1 := ctx.RecordConstant(rec, elems)
	r2 := ctx.RecordConstant(rec, elems)
	if r1 != r2 {
		t.Fatalf("expected record constants to intern like any other")
	}
	if r1 == a {
		t.Fatalf("a record and an array over the same elements are distinct constants")
	}
	if got := r1.Literal(); got != "{i32 1, i32 2}" {
		t.Fatalf("unexpected record literal rendering %q", got)
	}

	f1 := ctx.FunctionConstant("callback")
	if f1 != ctx.FunctionConstant("callback") {
		t.Fatalf("expected one function constant per name")
	}
	if got := f1.String(); got != "ptr @callback" {
		t.Fatalf("unexpected function constant rendering %q", got)
	}
}

// TestUndefIsOnePerType checks there is one interned undef per type.
func TestUndefIsOnePerType(t *testing.T) {
	ctx := NewContext()
	i64 := ctx.IntType(64)
	u1 := ctx.Undef(i64)
	u2 := ctx.Undef(i64)
	if u1 != u2 {
		t.Fatalf("expected the same undef constant for repeated calls with the same type")
	}
	if ctx.Undef(ctx.IntType(32)) == u1 {
		t.Fatalf("expected undef of a different type to be a distinct constant")
	}
}

// TestIsCommutative checks the commutativity recognizer GVN and
// InstCombine rely on.
func TestIsCommutative(t *testing.T) {
	ctx := NewContext()
	if !ctx.IsCommutative(Add) {
		t.Fatalf("expected Add to be commutative")
	}
	if ctx.IsCommutative(Sub) {
		t.Fatalf("expected Sub to not be commutative")
	}
	if !ctx.IsCommutative(XOr) {
		t.Fatalf("expected XOr to be commutative")
	}
}

// TestUniqueNameAppendsSuffixOnCollision checks the per-namespace
// name-uniquing facility.
func TestUniqueNameAppendsSuffixOnCollision(t *testing.T) {
	ctx := NewContext()
	first := ctx.UniqueName("fn", "x")
	second := ctx.UniqueName("fn", "x")
	if first == second {
		t.Fatalf("expected a colliding name to get a distinct suffix")
	}
	otherNamespace := ctx.UniqueName("other", "x")
	if otherNamespace != "x" {
		t.Fatalf("expected a fresh namespace to not collide with 'fn's 'x', got %q", otherNamespace)
	}
}
