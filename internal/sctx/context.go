package sctx

import (
	"fmt"
	"sort"
)

// ArithOp is the closed set of arithmetic operators carried by
// ssa.ArithmeticInst / ssa.UnaryArithmeticInst. Defined here, not in
// package ssa, because Context.IsCommutative answers for instruction
// combining and value numbering without importing the IR layer.
type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	SDiv
	UDiv
	SRem
	URem
	FAdd
	FSub
	FMul
	FDiv
	FRem
	And
	Or
	XOr
	LShL
	LShR
	AShR
	Neg   // unary
	FNeg  // unary
	BitNot // unary
)

func (op ArithOp) String() string {
	names := [...]string{
		"add", "sub", "mul", "sdiv", "udiv", "srem", "urem",
		"fadd", "fsub", "fmul", "fdiv", "frem",
		"and", "or", "xor", "lshl", "lshr", "ashr",
		"neg", "fneg", "bitnot",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return fmt.Sprintf("arithop(%d)", int(op))
}

var commutative = map[ArithOp]bool{
	Add: true, Mul: true, FAdd: true, FMul: true,
	And: true, Or: true, XOr: true,
}

// Context owns every Type and Constant in a compilation unit, plus the
// name-uniquing facility shared by every Function/Module namespace.
type Context struct {
	types     map[string]Type
	constants map[string]*Constant
	undefs    map[string]*Constant
	nullptr   *Constant

	names map[string]map[string]int // namespace -> base name -> next suffix
}

// NewContext creates an empty context with its built-in singleton constants
// primed (undef is created lazily per type; null pointer is primed here
// since there is exactly one pointer type).
func NewContext() *Context {
	c := &Context{
		types:     make(map[string]Type),
		constants: make(map[string]*Constant),
		undefs:    make(map[string]*Constant),
		names:     make(map[string]map[string]int),
	}
	c.nullptr = &Constant{Kind: ConstNullPointer, Typ: c.PtrType()}
	return c
}

func (c *Context) intern(t Type) Type {
	if existing, ok := c.types[t.key()]; ok {
		return existing
	}
	c.types[t.key()] = t
	return t
}

// VoidType returns the unique void type.
func (c *Context) VoidType() Type { return c.intern(VoidType{}) }

// IntType returns the interned integer type of the given bit width. Only
// widths in {1, 8, 16, 32, 64} are valid; the context does
// not itself validate this (the front end and the IR validator do).
func (c *Context) IntType(bits int) Type { return c.intern(&IntType{Bits: bits}) }

// FloatType returns the interned 32- or 64-bit float type.
func (c *Context) FloatType(bits int) Type { return c.intern(&FloatType{Bits: bits}) }

// PtrType returns the single, opaque, interned pointer type.
func (c *Context) PtrType() Type { return c.intern(&PointerType{}) }

// ArrayType returns the interned array type of (elem, count).
func (c *Context) ArrayType(elem Type, count int) Type {
	return c.intern(&ArrayType{Elem: elem, Count: count})
}

// TupleType returns the interned anonymous record type built from the given
// element types, laid out with no padding between members other than what
// each field's own alignment demands.
func (c *Context) TupleType(elems ...Type) Type {
	fields := make([]Field, len(elems))
	offset := 0
	for i, e := range elems {
		if e.Align() > 0 && offset%e.Align() != 0 {
			offset += e.Align() - offset%e.Align()
		}
		fields[i] = Field{Offset: offset, Type: e}
		offset += e.Size()
	}
	size, align := layoutFields(fields)
	key := "tuple("
	for i, f := range fields {
		if i > 0 {
			key += ","
		}
		key += f.Type.key()
	}
	key += ")"
	return c.intern(&RecordType{Fields: fields, size: size, align: align, keyText: key})
}

// StructType declares (or re-declares identically) a named struct. Named
// structs are interned by name: a second call with the same name returns
// the same object regardless of field list ("named
// structs are by identity").
func (c *Context) StructType(name string, fields []Field) Type {
	key := "struct:" + name
	if existing, ok := c.types[key]; ok {
		return existing
	}
	size, align := layoutFields(fields)
	t := &RecordType{Name: name, Fields: fields, size: size, align: align, keyText: key}
	c.types[key] = t
	return t
}

// IsCommutative reports whether op's operand order is semantically
// irrelevant. Used by InstCombine's canonicalization and GVN's computation
// keys.
func (c *Context) IsCommutative(op ArithOp) bool { return commutative[op] }

// UniqueName returns a name guaranteed unique within namespace (typically a
// Function or a Module), appending a numeric suffix on collision. This is
// the name factory every owning parent runs new names through.
func (c *Context) UniqueName(namespace, want string) string {
	bucket, ok := c.names[namespace]
	if !ok {
		bucket = make(map[string]int)
		c.names[namespace] = bucket
	}
	if _, taken := bucket[want]; !taken {
		bucket[want] = 0
		return want
	}
	for {
		bucket[want]++
		candidate := fmt.Sprintf("%s.%d", want, bucket[want])
		if _, taken := bucket[candidate]; !taken {
			bucket[candidate] = 0
			return candidate
		}
	}
}

// SortedArithOps is a test/debug helper returning every ArithOp in a stable
// order; used by golden-output tests that enumerate the commutativity table.
func SortedArithOps() []ArithOp {
	ops := make([]ArithOp, 0, len(commutative))
	for op := range commutative {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
