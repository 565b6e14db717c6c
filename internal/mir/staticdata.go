package mir

import (
	"encoding/binary"
	"math"

	"scatha/internal/sctx"
)

// PointerConstant is the 64-bit encoding `{ slot: u32, offset: u32 }` of
// a pointer constant, with slot 1 denoting the static-data region.
type PointerConstant struct {
	Slot   uint32
	Offset uint32
}

// StaticDataSlot is the region a pointer constant's Slot field denotes.
const StaticDataSlot uint32 = 1

// FunctionPlaceholder marks a byte range of the static image that a
// function-pointer constant occupies; the assembler patches it in once
// function addresses are known.
type FunctionPlaceholder struct {
	ByteOffset   int
	FunctionName string
}

// StaticData is the linear byte image every GlobalVariable initializer
// serializes into, laid out at the field offsets the global's type already
// encodes.
type StaticData struct {
	Bytes        []byte
	GlobalOffset map[string]int
	Placeholders []FunctionPlaceholder
}

func NewStaticData() *StaticData {
	return &StaticData{GlobalOffset: make(map[string]int)}
}

// Append serializes a constant's bit pattern into the image at its
// type's natural alignment and records the global's starting offset,
// returning it. Aggregate initializers recurse field by field at the
// offsets the type already encodes; a function-pointer constant has no
// resolvable address at this stage, so its bytes stay zero and a
// FunctionPlaceholder records the slot for the assembler to patch.
func (d *StaticData) Append(name string, typ sctx.Type, init *sctx.Constant) int {
	if typ.Align() > 0 {
		for len(d.Bytes)%typ.Align() != 0 {
			d.Bytes = append(d.Bytes, 0)
		}
	}
	off := len(d.Bytes)
	d.GlobalOffset[name] = off
	buf := make([]byte, typ.Size())
	d.serializeConstant(buf, off, typ, init)
	d.Bytes = append(d.Bytes, buf...)
	return off
}

// serializeConstant writes c's bit pattern into buf (sized to typ), with
// abs the byte offset of buf[0] within the whole image (placeholder
// records need absolute positions). A nil c is a zeroinitializer.
func (d *StaticData) serializeConstant(buf []byte, abs int, typ sctx.Type, c *sctx.Constant) {
	if c == nil {
		return // zeroinitializer
	}
	switch c.Kind {
	case sctx.ConstInt, sctx.ConstBool:
		v := c.Int
		if c.Kind == sctx.ConstBool && c.Bool {
			v = 1
		}
		putIntLE(buf, uint64(v), typ.Size())
	case sctx.ConstFloat:
		if typ.Size() == 4 {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(c.Float)))
		} else {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(c.Float))
		}
	case sctx.ConstArray:
		at, ok := typ.(*sctx.ArrayType)
		if !ok {
			panic("mir: array constant serialized against non-array type " + typ.String())
		}
		es := at.Elem.Size()
		for i, e := range c.Elems {
			d.serializeConstant(buf[i*es:(i+1)*es], abs+i*es, at.Elem, e)
		}
	case sctx.ConstRecord:
		rt, ok := typ.(*sctx.RecordType)
		if !ok || len(rt.Fields) != len(c.Elems) {
			panic("mir: record constant serialized against mismatched type " + typ.String())
		}
		for i, f := range rt.Fields {
			d.serializeConstant(buf[f.Offset:f.Offset+f.Type.Size()], abs+f.Offset, f.Type, c.Elems[i])
		}
	case sctx.ConstFunction:
		d.Placeholders = append(d.Placeholders, FunctionPlaceholder{ByteOffset: abs, FunctionName: c.Func})
	case sctx.ConstNullPointer:
		// already zero
	case sctx.ConstUndef:
		// undefined bytes are left zero; not semantically required either way
	default:
		panic("mir: unhandled constant kind in static data serialization")
	}
}

func putIntLE(buf []byte, v uint64, size int) {
	for i := 0; i < size && i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

// EncodePointer produces the 64-bit `{slot, offset}` encoding of a pointer
// constant pointing offset bytes into the static-data region.
func EncodePointer(p PointerConstant) uint64 {
	return uint64(p.Slot)<<32 | uint64(p.Offset)
}
