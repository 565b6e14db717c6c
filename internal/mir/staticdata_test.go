package mir

import (
	"testing"

	"scatha/internal/sctx"
)

// TestStaticDataSerializesArrayConstant checks an [i32, 3] initializer
// lays out element by element, little-endian, at the type's offsets.
func TestStaticDataSerializesArrayConstant(t *testing.T) {
	ctx := sctx.NewContext()
	i32 := ctx.IntType(32)
	arr := ctx.ArrayConstant(i32, []*sctx.Constant{
		ctx.IntConstant(1, 32), ctx.IntConstant(2, 32), ctx.IntConstant(3, 32),
	})

	d := NewStaticData()
	off := d.Append("const_data", arr.Type(), arr)
	if off != 0 {
		t.Fatalf("expected the first global at offset 0, got %d", off)
	}
	want := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	if len(d.Bytes) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(d.Bytes))
	}
	for i, b := range want {
		if d.Bytes[i] != b {
			t.Fatalf("byte %d: expected %d, got %d", i, b, d.Bytes[i])
		}
	}
}

// TestStaticDataSerializesRecordAtFieldOffsets checks a record initializer
// honors the explicit field offsets, leaving padding zero.
func TestStaticDataSerializesRecordAtFieldOffsets(t *testing.T) {
	ctx := sctx.NewContext()
	i32 := ctx.IntType(32)
	i64 := ctx.IntType(64)
	rec := ctx.StructType("Padded", []sctx.Field{
		{Offset: 0, Type: i32},
		{Offset: 8, Type: i64},
	})
	init := ctx.RecordConstant(rec, []*sctx.Constant{
		ctx.IntConstant(5, 32), ctx.IntConstant(6, 64),
	})

	d := NewStaticData()
	d.Append("padded", rec, init)
	if len(d.Bytes) != rec.Size() {
		t.Fatalf("expected %d bytes, got %d", rec.Size(), len(d.Bytes))
	}
	if d.Bytes[0] != 5 {
		t.Fatalf("expected first field at offset 0, got %d", d.Bytes[0])
	}
	for i := 4; i < 8; i++ {
		if d.Bytes[i] != 0 {
			t.Fatalf("expected padding byte %d to stay zero, got %d", i, d.Bytes[i])
		}
	}
	if d.Bytes[8] != 6 {
		t.Fatalf("expected second field at offset 8, got %d", d.Bytes[8])
	}
}

// TestStaticDataRecordsFunctionPointerPlaceholders checks a vtable of
// function constants serializes as zero bytes plus one patch record per
// slot at its absolute image offset.
func TestStaticDataRecordsFunctionPointerPlaceholders(t *testing.T) {
	ctx := sctx.NewContext()
	ptr := ctx.PtrType()
	vtable := ctx.ArrayConstant(ptr, []*sctx.Constant{
		ctx.FunctionConstant("f1"), ctx.FunctionConstant("f2"),
	})

	d := NewStaticData()
	d.Append("vtable", vtable.Type(), vtable)
	for i, b := range d.Bytes {
		if b != 0 {
			t.Fatalf("expected placeholder bytes to stay zero, byte %d is %d", i, b)
		}
	}
	if len(d.Placeholders) != 2 {
		t.Fatalf("expected one placeholder per vtable slot, got %d", len(d.Placeholders))
	}
	if d.Placeholders[0].ByteOffset != 0 || d.Placeholders[0].FunctionName != "f1" {
		t.Fatalf("unexpected first placeholder %+v", d.Placeholders[0])
	}
	if d.Placeholders[1].ByteOffset != 8 || d.Placeholders[1].FunctionName != "f2" {
		t.Fatalf("unexpected second placeholder %+v", d.Placeholders[1])
	}
}
