package mir

import "scatha/internal/sctx"

// Location is where a PassingConvention places its argument or return
// value.
type Location int

const (
	LocRegister Location = iota
	LocMemory
)

// PassingConvention is the per-parameter/per-return-value layout: a
// location and the number of IR-parameter slots the value occupies.
type PassingConvention struct {
	Loc   Location
	Slots int
}

// isDynamicArrayShape recognizes the two-word (pointer, count) tuple shape
// a dynamic array reference or value lowers to by the time AST-to-IR
// lowering (out of this core's scope) has produced an IR
// signature: an anonymous two-field record whose first field is a pointer
// and whose second is an integer. This is the one IR-type-level signal
// available to the core for the dynamic-array passing cases, since the
// reference-vs-value distinction that motivates those rules is itself a
// front-end, not an IR-level, concept by the time a Module reaches this
// layer.
func isDynamicArrayShape(t sctx.Type) bool {
	rec, ok := t.(*sctx.RecordType)
	if !ok || rec.Name != "" || len(rec.Fields) != 2 {
		return false
	}
	_, ptrOK := rec.Fields[0].Type.(*sctx.PointerType)
	count, countOK := rec.Fields[1].Type.(*sctx.IntType)
	return ptrOK && countOK && count.Bits == 64
}

// ComputeParamConvention computes how an IR parameter type is passed.
// isReference distinguishes a reference parameter (always a register)
// from a value parameter (register if small, memory pointer otherwise);
// since the core receives only post-lowering IR types, a caller (the
// driver, which still has the front end's parameter kind) supplies
// it. When unknown (e.g. constructing a convention from IR alone, as
// this package's own lowering driver does for a Module it did not
// itself type-check), it is conservatively false and the value rules
// govern.
func ComputeParamConvention(t sctx.Type, isReference bool) PassingConvention {
	if isReference {
		if isDynamicArrayShape(t) {
			return PassingConvention{Loc: LocRegister, Slots: 2}
		}
		return PassingConvention{Loc: LocRegister, Slots: 1}
	}
	if t.Size() <= 16 {
		return PassingConvention{Loc: LocRegister, Slots: 1}
	}
	if isDynamicArrayShape(t) {
		return PassingConvention{Loc: LocMemory, Slots: 2}
	}
	return PassingConvention{Loc: LocMemory, Slots: 1}
}

// ComputeReturnConvention computes the return-value layout: returns
// follow the parameter rules, except a memory return is realized as an
// implicit first pointer parameter and an IR return type of void. hasImplicitParam
// reports whether the caller must prepend that pointer parameter.
func ComputeReturnConvention(t sctx.Type) (conv PassingConvention, hasImplicitParam bool) {
	if _, isVoid := t.(sctx.VoidType); isVoid {
		return PassingConvention{Loc: LocRegister, Slots: 0}, false
	}
	conv = ComputeParamConvention(t, false)
	if conv.Loc == LocMemory {
		return PassingConvention{Loc: LocMemory, Slots: 1}, true
	}
	return conv, false
}
