// Package sctx implements the compilation context: the type interner, constant
// pool, and name-uniquing facility that every IR object is built against.
package sctx

import (
	"fmt"
	"strings"
)

// Type is a structural, interned description of the shape of a Value.
// Equal structural types share identity: two calls to Context.ArrayType
// with the same element and count return the identical *TypeImpl.
type Type interface {
	fmt.Stringer

	// Size is the size in bytes of a value of this type.
	Size() int
	// Align is the required alignment in bytes.
	Align() int
	// Key is the structural cache key used by the interner; two types with
	// equal keys are the same interned object.
	key() string
}

// VoidType is the unique type of a value-less result (e.g. a Store or a
// Return with no value).
type VoidType struct{}

func (VoidType) String() string { return "void" }
func (VoidType) Size() int      { return 0 }
func (VoidType) Align() int     { return 1 }
func (VoidType) key() string    { return "void" }

// IntType is an integer of a fixed bit width. The only supported widths
// are {1, 8, 16, 32, 64}; width 1 is the boolean/`i1` type
// produced by compares and consumed by branches and selects.
type IntType struct {
	Bits int
}

func (t *IntType) String() string { return fmt.Sprintf("i%d", t.Bits) }
func (t *IntType) Size() int      { return (t.Bits + 7) / 8 }
func (t *IntType) Align() int     { return min(t.Size(), 8) }
func (t *IntType) key() string    { return fmt.Sprintf("i%d", t.Bits) }

// FloatType is a 32- or 64-bit IEEE-754 floating point type.
type FloatType struct {
	Bits int
}

func (t *FloatType) String() string { return fmt.Sprintf("f%d", t.Bits) }
func (t *FloatType) Size() int      { return t.Bits / 8 }
func (t *FloatType) Align() int     { return t.Size() }
func (t *FloatType) key() string    { return fmt.Sprintf("f%d", t.Bits) }

// PointerType is opaque: it is not parameterized by a pointee type. Pointer
// identity is distinct from any integer type of equal size.
type PointerType struct{}

func (*PointerType) String() string { return "ptr" }
func (*PointerType) Size() int      { return 8 }
func (*PointerType) Align() int     { return 8 }
func (*PointerType) key() string    { return "ptr" }

// ArrayType is a fixed-count homogeneous sequence.
type ArrayType struct {
	Elem  Type
	Count int
}

func (t *ArrayType) String() string { return fmt.Sprintf("[%s, %d]", t.Elem, t.Count) }
func (t *ArrayType) Size() int      { return t.Elem.Size() * t.Count }
func (t *ArrayType) Align() int     { return t.Elem.Align() }
func (t *ArrayType) key() string    { return fmt.Sprintf("[%s;%d]", t.Elem.key(), t.Count) }

// Field is one member of a record type: a byte offset and a field type.
// Offsets are explicit (not recomputed) so that a record's layout encodes
// the source language's ABI.
type Field struct {
	Offset int
	Type   Type
}

// RecordType is either a named struct (Name != "") or an anonymous tuple
// (Name == ""). Two anonymous tuples with identical field sequences are
// the same interned type; two named structs are only equal by identity
// even if structurally identical ("named structs are
// by identity").
type RecordType struct {
	Name    string
	Fields  []Field
	size    int
	align   int
	keyText string
}

func (t *RecordType) String() string {
	if t.Name != "" {
		return "%" + t.Name
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Type.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (t *RecordType) Size() int   { return t.size }
func (t *RecordType) Align() int  { return t.align }
func (t *RecordType) key() string { return t.keyText }

func layoutFields(fields []Field) (size, align int) {
	align = 1
	for _, f := range fields {
		if f.Type.Align() > align {
			align = f.Type.Align()
		}
		end := f.Offset + f.Type.Size()
		if end > size {
			size = end
		}
	}
	if align > 1 && size%align != 0 {
		size += align - size%align
	}
	return size, align
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
