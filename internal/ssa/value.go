// Package ssa implements the IR data model: the SSA graph
// itself (Value/User/Instruction kinds, BasicBlock, Function, Module),
// use-def and def-use maintenance, and naming.
package ssa

import "scatha/internal/sctx"

// ValueKind is the closed runtime tag of every SSA-graph node that can
// appear as an operand.
type ValueKind int

const (
	KindConstant ValueKind = iota
	KindGlobal
	KindInstruction
	KindFunction
	KindParameter
	KindUndef
	KindNull
)

func (k ValueKind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindGlobal:
		return "global"
	case KindInstruction:
		return "instruction"
	case KindFunction:
		return "function"
	case KindParameter:
		return "parameter"
	case KindUndef:
		return "undef"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// ProvenanceKind distinguishes a statically known allocation site from an
// opaque dynamic one.
type ProvenanceKind int

const (
	ProvStatic ProvenanceKind = iota
	ProvDynamic
)

// Provenance describes where a pointer value was ultimately derived from.
type Provenance struct {
	Kind ProvenanceKind
	Inst Instruction // set when Kind == ProvStatic
	Val  *Value      // set when Kind == ProvDynamic
}

// Equal reports whether two provenances denote the same allocation site.
func (p Provenance) Equal(o Provenance) bool {
	if p.Kind != o.Kind {
		return false
	}
	if p.Kind == ProvStatic {
		return p.Inst == o.Inst
	}
	return p.Val == o.Val
}

// PointerInfo records what is statically known about a pointer-typed Value.
// Only meaningful when Value.Type() is a pointer.
type PointerInfo struct {
	Align        int
	HasValidSize bool
	ValidSize    int
	Provenance   Provenance
	HasOffset    bool
	Offset       int
	NotNull      bool
	NonEscaping  bool
}

// Use is one `(user, operand-slot)` edge, held in the used Value's
// use-list. Use-lists are non-owning: they index into their
// User without keeping it alive.
type Use struct {
	User User
	Slot int
}

// User is any Value that itself references other Values as operands.
// Instruction is the only User kind in this IR.
type User interface {
	Operands() []*Value
	SetOperand(i int, v *Value)
}

// Value is the common base of every SSA-graph node. It is embedded
// (anonymously, by value) into every concrete node type — instructions via
// instBase, and directly into Function, Parameter, and GlobalVariable — so
// AsValue() is always available without an extra allocation.
//
// Values are not copyable: callers must only ever
// hold a *Value obtained from the owning node, never copy the struct.
type Value struct {
	kind     ValueKind
	id       int
	idSet    bool
	name string
	typ  sctx.Type
	uses []Use

	ptrInfo *PointerInfo
	attrs   map[string]string

	constant *sctx.Constant // payload when kind is Constant/Undef/Null
}

func newValue(kind ValueKind, typ sctx.Type) Value {
	return Value{kind: kind, typ: typ}
}

// assignID gives the value a function-unique numeric slot the first time
// it is called; later calls (e.g. when an instruction is moved between
// blocks by a transform) are no-ops so identifiers stay stable once issued.
func (v *Value) assignID(id int) {
	if v.idSet {
		return
	}
	v.id = id
	v.idSet = true
}

func (v *Value) Kind() ValueKind           { return v.kind }
func (v *Value) ID() int                   { return v.id }
func (v *Value) Name() string              { return v.name }
func (v *Value) Type() sctx.Type           { return v.typ }
func (v *Value) Uses() []Use               { return v.uses }
func (v *Value) HasName() bool             { return v.name != "" }
func (v *Value) PointerInfo() *PointerInfo { return v.ptrInfo }

// SetName assigns v's name verbatim, bypassing the per-function
// uniquing facility. The textual IR reader (package irtext) is the
// sanctioned caller: a well-formed module's names are already unique, so
// re-deriving uniqueness here would only risk silently renaming what the
// source text wrote.
func (v *Value) SetName(name string) { v.name = name }

// SetPointerInfo installs a freshly computed PointerInfo; only meaningful
// for pointer-typed values. Analysis passes are the only
// expected callers.
func (v *Value) SetPointerInfo(pi *PointerInfo) { v.ptrInfo = pi }

// Attr returns an attribute by key and a presence flag.
func (v *Value) Attr(key string) (string, bool) {
	if v.attrs == nil {
		return "", false
	}
	val, ok := v.attrs[key]
	return val, ok
}

// SetAttr installs an attribute on the value's attribute map.
func (v *Value) SetAttr(key, val string) {
	if v.attrs == nil {
		v.attrs = make(map[string]string)
	}
	v.attrs[key] = val
}

// Constant returns the underlying interned constant payload, or nil unless
// Kind() is KindConstant, KindUndef, or KindNull.
func (v *Value) Constant() *sctx.Constant { return v.constant }

func (v *Value) addUse(user User, slot int) { v.uses = append(v.uses, Use{User: user, Slot: slot}) }

func (v *Value) removeUse(user User, slot int) {
	for i, u := range v.uses {
		if u.User == user && u.Slot == slot {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

// NumUses reports how many operand slots across the module reference this
// value, counting multiplicity.
func (v *Value) NumUses() int { return len(v.uses) }

// IsUnused reports whether the value has no uses at all.
func (v *Value) IsUnused() bool { return len(v.uses) == 0 }

// bindOperand is the single choke point every instruction's field setter
// routes through: it keeps the old and new operand's use-lists coherent
// for a single slot.
func bindOperand(user User, slot int, old, newVal *Value) {
	if old == newVal {
		return
	}
	if old != nil {
		old.removeUse(user, slot)
	}
	if newVal != nil {
		newVal.addUse(user, slot)
	}
}

// replaceAllUsesWith rewrites every use of old to refer to newVal
// instead, updating each user's operand slot and both use-lists
// atomically. It is safe to call with newVal == nil only when old is
// about to be destroyed and every use has already been erased.
func replaceAllUsesWith(old, newVal *Value) {
	if old == newVal {
		return
	}
	uses := append([]Use(nil), old.uses...) // snapshot: SetOperand mutates old.uses
	for _, u := range uses {
		u.User.SetOperand(u.Slot, newVal)
	}
}
