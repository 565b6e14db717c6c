package ssa

import (
	"fmt"
	"strings"

	"scatha/internal/sctx"
)

// InstKind is the closed tag of the instruction union. Concrete
// instruction types are grouped below by kind.
type InstKind int

const (
	KAlloca InstKind = iota
	KLoad
	KStore
	KGetElementPointer
	KArithmetic
	KUnaryArithmetic
	KCompare
	KConversion
	KCall
	KPhi
	KSelect
	KExtractValue
	KInsertValue
	KGoto
	KBranch
	KReturn
)

func (k InstKind) String() string {
	names := [...]string{
		"alloca", "load", "store", "gep", "arithmetic", "unary_arithmetic",
		"compare", "conversion", "call", "phi", "select", "extract_value",
		"insert_value", "goto", "branch", "return",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Instruction is a User that lives in a BasicBlock's ordered list.
type Instruction interface {
	User
	AsValue() *Value
	Parent() *BasicBlock
	setParent(b *BasicBlock)
	IsTerminator() bool
	Kind() InstKind
	String() string
}

// Terminator is the sub-interface of instructions that end a block.
type Terminator interface {
	Instruction
	Successors() []*BasicBlock
}

// instBase is embedded by every concrete instruction and supplies the
// Value identity plus the parent-block back-reference.
type instBase struct {
	Value
	parent *BasicBlock
}

func (b *instBase) AsValue() *Value          { return &b.Value }
func (b *instBase) Parent() *BasicBlock      { return b.parent }
func (b *instBase) setParent(bb *BasicBlock) { b.parent = bb }

func newInstBase(typ sctx.Type) instBase {
	return instBase{Value: newValue(KindInstruction, typ)}
}

// ---- Alloca ----

// AllocaInst reserves stack storage for Count elements of Elem; its result
// is a pointer whose provenance is itself.
type AllocaInst struct {
	instBase
	Elem  sctx.Type
	count *Value
}

func NewAlloca(ctx *sctx.Context, elem sctx.Type, count *Value) *AllocaInst {
	i := &AllocaInst{instBase: newInstBase(ctx.PtrType()), Elem: elem}
	i.SetOperand(0, count)
	return i
}

func (i *AllocaInst) Count() *Value { return i.count }
func (i *AllocaInst) Operands() []*Value { return []*Value{i.count} }
func (i *AllocaInst) SetOperand(idx int, v *Value) {
	if idx != 0 {
		return
	}
	bindOperand(i, 0, i.count, v)
	i.count = v
}
func (i *AllocaInst) IsTerminator() bool { return false }
func (i *AllocaInst) Kind() InstKind     { return KAlloca }
func (i *AllocaInst) String() string {
	return fmt.Sprintf("%s = alloca %s, count %s", refName(i.AsValue()), i.Elem, operandName(i.count))
}

// ---- Load / Store ----

type LoadInst struct {
	instBase
	addr *Value
}

func NewLoad(addr *Value, typ sctx.Type) *LoadInst {
	i := &LoadInst{instBase: newInstBase(typ)}
	i.SetOperand(0, addr)
	return i
}

func (i *LoadInst) Addr() *Value         { return i.addr }
func (i *LoadInst) Operands() []*Value   { return []*Value{i.addr} }
func (i *LoadInst) SetOperand(idx int, v *Value) {
	if idx != 0 {
		return
	}
	bindOperand(i, 0, i.addr, v)
	i.addr = v
}
func (i *LoadInst) IsTerminator() bool { return false }
func (i *LoadInst) Kind() InstKind     { return KLoad }
func (i *LoadInst) String() string {
	return fmt.Sprintf("%s = load %s, ptr %s", refName(i.AsValue()), i.Type(), operandName(i.addr))
}

type StoreInst struct {
	instBase
	addr, val *Value
}

func NewStore(ctx *sctx.Context, addr, val *Value) *StoreInst {
	i := &StoreInst{instBase: newInstBase(ctx.VoidType())}
	i.SetOperand(0, addr)
	i.SetOperand(1, val)
	return i
}

func (i *StoreInst) Addr() *Value { return i.addr }
func (i *StoreInst) Val() *Value  { return i.val }
func (i *StoreInst) Operands() []*Value { return []*Value{i.addr, i.val} }
func (i *StoreInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		bindOperand(i, 0, i.addr, v)
		i.addr = v
	case 1:
		bindOperand(i, 1, i.val, v)
		i.val = v
	}
}
func (i *StoreInst) IsTerminator() bool { return false }
func (i *StoreInst) Kind() InstKind     { return KStore }
func (i *StoreInst) String() string {
	return fmt.Sprintf("store %s, ptr %s", operandName(i.val), operandName(i.addr))
}

// ---- GetElementPointer ----

// GEPInst computes base + arrayIndex*elemSize + sum(memberOffsets).
// MemberIndices are
// compile-time constant member-selection indices resolved against
// InboundsType, not Value operands.
type GEPInst struct {
	instBase
	base, arrayIndex *Value
	MemberIndices    []int
	InboundsType     sctx.Type
}

func NewGEP(ctx *sctx.Context, base, arrayIndex *Value, inboundsType sctx.Type, memberIndices []int) *GEPInst {
	i := &GEPInst{instBase: newInstBase(ctx.PtrType()), InboundsType: inboundsType, MemberIndices: memberIndices}
	i.SetOperand(0, base)
	i.SetOperand(1, arrayIndex)
	return i
}

func (i *GEPInst) Base() *Value       { return i.base }
func (i *GEPInst) ArrayIndex() *Value { return i.arrayIndex }
func (i *GEPInst) Operands() []*Value { return []*Value{i.base, i.arrayIndex} }
func (i *GEPInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		bindOperand(i, 0, i.base, v)
		i.base = v
	case 1:
		bindOperand(i, 1, i.arrayIndex, v)
		i.arrayIndex = v
	}
}
func (i *GEPInst) IsTerminator() bool { return false }
func (i *GEPInst) Kind() InstKind     { return KGetElementPointer }
func (i *GEPInst) String() string {
	parts := make([]string, len(i.MemberIndices))
	for n, m := range i.MemberIndices {
		parts[n] = fmt.Sprintf("%d", m)
	}
	return fmt.Sprintf("%s = gep %s, ptr %s, index %s, members [%s]",
		refName(i.AsValue()), i.InboundsType, operandName(i.base), operandName(i.arrayIndex), strings.Join(parts, ","))
}

// ---- Arithmetic ----

type ArithmeticInst struct {
	instBase
	Op          sctx.ArithOp
	lhs, rhs    *Value
}

func NewArithmetic(op sctx.ArithOp, lhs, rhs *Value) *ArithmeticInst {
	i := &ArithmeticInst{instBase: newInstBase(lhs.Type()), Op: op}
	i.SetOperand(0, lhs)
	i.SetOperand(1, rhs)
	return i
}

func (i *ArithmeticInst) LHS() *Value { return i.lhs }
func (i *ArithmeticInst) RHS() *Value { return i.rhs }
func (i *ArithmeticInst) Operands() []*Value { return []*Value{i.lhs, i.rhs} }
func (i *ArithmeticInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		bindOperand(i, 0, i.lhs, v)
		i.lhs = v
	case 1:
		bindOperand(i, 1, i.rhs, v)
		i.rhs = v
	}
}
func (i *ArithmeticInst) IsTerminator() bool { return false }
func (i *ArithmeticInst) Kind() InstKind     { return KArithmetic }
func (i *ArithmeticInst) String() string {
	return fmt.Sprintf("%s = %s %s, %s", refName(i.AsValue()), i.Op, operandName(i.lhs), operandName(i.rhs))
}

type UnaryArithmeticInst struct {
	instBase
	Op      sctx.ArithOp
	operand *Value
}

func NewUnaryArithmetic(op sctx.ArithOp, operand *Value) *UnaryArithmeticInst {
	i := &UnaryArithmeticInst{instBase: newInstBase(operand.Type()), Op: op}
	i.SetOperand(0, operand)
	return i
}

func (i *UnaryArithmeticInst) Operand() *Value { return i.operand }
func (i *UnaryArithmeticInst) Operands() []*Value { return []*Value{i.operand} }
func (i *UnaryArithmeticInst) SetOperand(idx int, v *Value) {
	if idx != 0 {
		return
	}
	bindOperand(i, 0, i.operand, v)
	i.operand = v
}
func (i *UnaryArithmeticInst) IsTerminator() bool { return false }
func (i *UnaryArithmeticInst) Kind() InstKind     { return KUnaryArithmetic }
func (i *UnaryArithmeticInst) String() string {
	return fmt.Sprintf("%s = %s %s", refName(i.AsValue()), i.Op, operandName(i.operand))
}

// ---- Compare ----

type CompareMode int

const (
	CompareSigned CompareMode = iota
	CompareUnsigned
	CompareFloat
)

func (m CompareMode) String() string {
	return [...]string{"signed", "unsigned", "float"}[m]
}

type CompareOp int

const (
	CmpEQ CompareOp = iota
	CmpNE
	CmpLS
	CmpLE
	CmpGT
	CmpGE
)

func (op CompareOp) String() string {
	return [...]string{"eq", "neq", "ls", "leq", "grt", "geq"}[op]
}

type CompareInst struct {
	instBase
	Mode     CompareMode
	Op       CompareOp
	lhs, rhs *Value
}

func NewCompare(ctx *sctx.Context, mode CompareMode, op CompareOp, lhs, rhs *Value) *CompareInst {
	i := &CompareInst{instBase: newInstBase(ctx.IntType(1)), Mode: mode, Op: op}
	i.SetOperand(0, lhs)
	i.SetOperand(1, rhs)
	return i
}

func (i *CompareInst) LHS() *Value { return i.lhs }
func (i *CompareInst) RHS() *Value { return i.rhs }
func (i *CompareInst) Operands() []*Value { return []*Value{i.lhs, i.rhs} }
func (i *CompareInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		bindOperand(i, 0, i.lhs, v)
		i.lhs = v
	case 1:
		bindOperand(i, 1, i.rhs, v)
		i.rhs = v
	}
}
func (i *CompareInst) IsTerminator() bool { return false }
func (i *CompareInst) Kind() InstKind     { return KCompare }
func (i *CompareInst) String() string {
	return fmt.Sprintf("%s = cmp %s %s %s, %s", refName(i.AsValue()), i.Mode, i.Op, operandName(i.lhs), operandName(i.rhs))
}

// ---- Conversion ----

type ConversionKind int

const (
	ConvZExt ConversionKind = iota
	ConvSExt
	ConvTrunc
	ConvFExt
	ConvFTrunc
	ConvUToF
	ConvSToF
	ConvFToU
	ConvFToS
	ConvBitcast
)

func (k ConversionKind) String() string {
	return [...]string{"zext", "sext", "trunc", "fext", "ftrunc", "utof", "stof", "ftou", "ftos", "bitcast"}[k]
}

type ConversionInst struct {
	instBase
	ConvKind ConversionKind
	operand  *Value
}

func NewConversion(kind ConversionKind, operand *Value, target sctx.Type) *ConversionInst {
	i := &ConversionInst{instBase: newInstBase(target), ConvKind: kind}
	i.SetOperand(0, operand)
	return i
}

func (i *ConversionInst) Operand() *Value { return i.operand }
func (i *ConversionInst) Operands() []*Value { return []*Value{i.operand} }
func (i *ConversionInst) SetOperand(idx int, v *Value) {
	if idx != 0 {
		return
	}
	bindOperand(i, 0, i.operand, v)
	i.operand = v
}
func (i *ConversionInst) IsTerminator() bool { return false }
func (i *ConversionInst) Kind() InstKind     { return KConversion }
func (i *ConversionInst) String() string {
	return fmt.Sprintf("%s = %s %s to %s", refName(i.AsValue()), i.ConvKind, operandName(i.operand), i.Type())
}

// ---- Call ----

// Callee is either a direct Function, an external declaration, or a
// pointer-typed indirect target.
type Callee struct {
	Direct   *Function
	External *ExternalFunction
	Indirect *Value
}

func (c Callee) String() string {
	switch {
	case c.Direct != nil:
		return "@" + c.Direct.Name()
	case c.External != nil:
		return "@" + c.External.Name()
	default:
		return operandName(c.Indirect)
	}
}

type CallInst struct {
	instBase
	Callee Callee
	args   []*Value
}

func NewCall(callee Callee, args []*Value, retType sctx.Type) *CallInst {
	i := &CallInst{instBase: newInstBase(retType), Callee: callee}
	i.args = make([]*Value, len(args))
	off := 0
	if callee.Indirect != nil {
		callee.Indirect.addUse(i, 0)
		off = 1
	}
	for idx, a := range args {
		i.SetOperand(idx+off, a)
	}
	return i
}

func (i *CallInst) Args() []*Value { return i.args }
func (i *CallInst) Operands() []*Value {
	if i.Callee.Indirect != nil {
		return append([]*Value{i.Callee.Indirect}, i.args...)
	}
	return i.args
}
func (i *CallInst) SetOperand(idx int, v *Value) {
	slot := idx
	if i.Callee.Indirect != nil {
		if idx == 0 {
			bindOperand(i, 0, i.Callee.Indirect, v)
			i.Callee.Indirect = v
			return
		}
		idx--
	}
	if idx < 0 || idx >= len(i.args) {
		return
	}
	bindOperand(i, slot, i.args[idx], v)
	i.args[idx] = v
}
func (i *CallInst) IsTerminator() bool { return false }
func (i *CallInst) Kind() InstKind     { return KCall }
func (i *CallInst) String() string {
	parts := make([]string, len(i.args))
	for n, a := range i.args {
		parts[n] = operandName(a)
	}
	prefix := ""
	if i.Type() != nil {
		if _, isVoid := i.Type().(sctx.VoidType); !isVoid {
			prefix = refName(i.AsValue()) + " = "
		}
	}
	return fmt.Sprintf("%scall %s %s(%s)", prefix, i.Type(), i.Callee, strings.Join(parts, ", "))
}

// ExternalFunction is a callable declaration with no body, owned by the
// Module.
type ExternalFunction struct {
	name       string
	params     []sctx.Type
	returnType sctx.Type
}

func NewExternalFunction(name string, params []sctx.Type, ret sctx.Type) *ExternalFunction {
	return &ExternalFunction{name: name, params: params, returnType: ret}
}

func (e *ExternalFunction) Name() string         { return e.name }
func (e *ExternalFunction) Params() []sctx.Type  { return e.params }
func (e *ExternalFunction) ReturnType() sctx.Type { return e.returnType }

// ---- Phi ----

// PhiEdge is one incoming value of a Phi, paired with the predecessor it
// arrives from.
type PhiEdge struct {
	Pred *BasicBlock
	Val  *Value
}

type PhiInst struct {
	instBase
	incoming []PhiEdge
}

func NewPhi(typ sctx.Type) *PhiInst {
	return &PhiInst{instBase: newInstBase(typ)}
}

func (i *PhiInst) Incoming() []PhiEdge { return i.incoming }

// AddIncoming appends one (pred, value) edge. Builders and mem2reg/SROA use
// this directly; general rewrites should prefer SetIncomingForPred.
func (i *PhiInst) AddIncoming(pred *BasicBlock, v *Value) {
	slot := len(i.incoming)
	i.incoming = append(i.incoming, PhiEdge{Pred: pred})
	bindOperand(i, slot, nil, v)
	i.incoming[slot].Val = v
}

// SetIncomingForPred overwrites (or appends) the edge for pred.
func (i *PhiInst) SetIncomingForPred(pred *BasicBlock, v *Value) {
	for idx, e := range i.incoming {
		if e.Pred == pred {
			bindOperand(i, idx, e.Val, v)
			i.incoming[idx].Val = v
			return
		}
	}
	i.AddIncoming(pred, v)
}

// RemoveIncoming drops the edge for pred, if present, shifting later slots
// down and keeping use-lists coherent.
func (i *PhiInst) RemoveIncoming(pred *BasicBlock) {
	for idx, e := range i.incoming {
		if e.Pred == pred {
			bindOperand(i, idx, e.Val, nil)
			i.incoming = append(i.incoming[:idx], i.incoming[idx+1:]...)
			// re-home use-list slots for edges shifted down by one
			for j := idx; j < len(i.incoming); j++ {
				i.incoming[j].Val.removeUse(i, j+1)
				i.incoming[j].Val.addUse(i, j)
			}
			return
		}
	}
}

func (i *PhiInst) Operands() []*Value {
	ops := make([]*Value, len(i.incoming))
	for n, e := range i.incoming {
		ops[n] = e.Val
	}
	return ops
}
func (i *PhiInst) SetOperand(idx int, v *Value) {
	if idx < 0 || idx >= len(i.incoming) {
		return
	}
	bindOperand(i, idx, i.incoming[idx].Val, v)
	i.incoming[idx].Val = v
}
func (i *PhiInst) IsTerminator() bool { return false }
func (i *PhiInst) Kind() InstKind     { return KPhi }
func (i *PhiInst) String() string {
	parts := make([]string, len(i.incoming))
	for n, e := range i.incoming {
		label := "?"
		if e.Pred != nil {
			label = e.Pred.Label()
		}
		parts[n] = fmt.Sprintf("[%s : %s]", label, operandName(e.Val))
	}
	return fmt.Sprintf("%s = phi %s %s", refName(i.AsValue()), i.Type(), strings.Join(parts, ", "))
}

// ---- Select ----

type SelectInst struct {
	instBase
	cond, thenV, elseV *Value
}

func NewSelect(cond, thenV, elseV *Value) *SelectInst {
	i := &SelectInst{instBase: newInstBase(thenV.Type())}
	i.SetOperand(0, cond)
	i.SetOperand(1, thenV)
	i.SetOperand(2, elseV)
	return i
}

func (i *SelectInst) Cond() *Value { return i.cond }
func (i *SelectInst) Then() *Value { return i.thenV }
func (i *SelectInst) Else() *Value { return i.elseV }
func (i *SelectInst) Operands() []*Value { return []*Value{i.cond, i.thenV, i.elseV} }
func (i *SelectInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		bindOperand(i, 0, i.cond, v)
		i.cond = v
	case 1:
		bindOperand(i, 1, i.thenV, v)
		i.thenV = v
	case 2:
		bindOperand(i, 2, i.elseV, v)
		i.elseV = v
	}
}
func (i *SelectInst) IsTerminator() bool { return false }
func (i *SelectInst) Kind() InstKind     { return KSelect }
func (i *SelectInst) String() string {
	return fmt.Sprintf("%s = select %s, %s, %s", refName(i.AsValue()), operandName(i.cond), operandName(i.thenV), operandName(i.elseV))
}

// ---- ExtractValue / InsertValue ----

type ExtractValueInst struct {
	instBase
	agg     *Value
	Indices []int
}

func NewExtractValue(agg *Value, indices []int, resultType sctx.Type) *ExtractValueInst {
	i := &ExtractValueInst{instBase: newInstBase(resultType), Indices: indices}
	i.SetOperand(0, agg)
	return i
}

func (i *ExtractValueInst) Agg() *Value { return i.agg }
func (i *ExtractValueInst) Operands() []*Value { return []*Value{i.agg} }
func (i *ExtractValueInst) SetOperand(idx int, v *Value) {
	if idx != 0 {
		return
	}
	bindOperand(i, 0, i.agg, v)
	i.agg = v
}
func (i *ExtractValueInst) IsTerminator() bool { return false }
func (i *ExtractValueInst) Kind() InstKind     { return KExtractValue }
func (i *ExtractValueInst) String() string {
	return fmt.Sprintf("%s = extractvalue %s, %v", refName(i.AsValue()), operandName(i.agg), i.Indices)
}

type InsertValueInst struct {
	instBase
	agg, inserted *Value
	Indices       []int
}

func NewInsertValue(agg, inserted *Value, indices []int) *InsertValueInst {
	i := &InsertValueInst{instBase: newInstBase(agg.Type()), Indices: indices}
	i.SetOperand(0, agg)
	i.SetOperand(1, inserted)
	return i
}

func (i *InsertValueInst) Agg() *Value      { return i.agg }
func (i *InsertValueInst) Inserted() *Value { return i.inserted }
func (i *InsertValueInst) Operands() []*Value { return []*Value{i.agg, i.inserted} }
func (i *InsertValueInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		bindOperand(i, 0, i.agg, v)
		i.agg = v
	case 1:
		bindOperand(i, 1, i.inserted, v)
		i.inserted = v
	}
}
func (i *InsertValueInst) IsTerminator() bool { return false }
func (i *InsertValueInst) Kind() InstKind     { return KInsertValue }
func (i *InsertValueInst) String() string {
	return fmt.Sprintf("%s = insertvalue %s, %s, %v", refName(i.AsValue()), operandName(i.agg), operandName(i.inserted), i.Indices)
}

// ---- Terminators ----

type GotoInst struct {
	instBase
	target *BasicBlock
}

func NewGoto(ctx *sctx.Context, target *BasicBlock) *GotoInst {
	return &GotoInst{instBase: newInstBase(ctx.VoidType()), target: target}
}

func (i *GotoInst) Target() *BasicBlock { return i.target }
func (i *GotoInst) SetTarget(b *BasicBlock) {
	updateSuccessor(i.parent, i.target, b)
	i.target = b
}
func (i *GotoInst) Operands() []*Value          { return nil }
func (i *GotoInst) SetOperand(int, *Value)      {}
func (i *GotoInst) IsTerminator() bool          { return true }
func (i *GotoInst) Kind() InstKind              { return KGoto }
func (i *GotoInst) Successors() []*BasicBlock   { return []*BasicBlock{i.target} }
func (i *GotoInst) String() string              { return fmt.Sprintf("goto %s", i.target.Label()) }

type BranchInst struct {
	instBase
	cond             *Value
	thenBB, elseBB   *BasicBlock
}

func NewBranch(ctx *sctx.Context, cond *Value, thenBB, elseBB *BasicBlock) *BranchInst {
	i := &BranchInst{instBase: newInstBase(ctx.VoidType()), thenBB: thenBB, elseBB: elseBB}
	i.SetOperand(0, cond)
	return i
}

func (i *BranchInst) Cond() *Value        { return i.cond }
func (i *BranchInst) Then() *BasicBlock   { return i.thenBB }
func (i *BranchInst) Else() *BasicBlock   { return i.elseBB }
func (i *BranchInst) SetThen(b *BasicBlock) { updateSuccessor(i.parent, i.thenBB, b); i.thenBB = b }
func (i *BranchInst) SetElse(b *BasicBlock) { updateSuccessor(i.parent, i.elseBB, b); i.elseBB = b }
func (i *BranchInst) Operands() []*Value  { return []*Value{i.cond} }
func (i *BranchInst) SetOperand(idx int, v *Value) {
	if idx != 0 {
		return
	}
	bindOperand(i, 0, i.cond, v)
	i.cond = v
}
func (i *BranchInst) IsTerminator() bool        { return true }
func (i *BranchInst) Kind() InstKind            { return KBranch }
func (i *BranchInst) Successors() []*BasicBlock { return []*BasicBlock{i.thenBB, i.elseBB} }
func (i *BranchInst) String() string {
	return fmt.Sprintf("branch %s, %s, %s", operandName(i.cond), i.thenBB.Label(), i.elseBB.Label())
}

type ReturnInst struct {
	instBase
	val *Value
}

func NewReturn(ctx *sctx.Context, val *Value) *ReturnInst {
	i := &ReturnInst{instBase: newInstBase(ctx.VoidType())}
	i.SetOperand(0, val)
	return i
}

func (i *ReturnInst) Val() *Value { return i.val }
func (i *ReturnInst) Operands() []*Value {
	if i.val == nil {
		return nil
	}
	return []*Value{i.val}
}
func (i *ReturnInst) SetOperand(idx int, v *Value) {
	if idx != 0 {
		return
	}
	bindOperand(i, 0, i.val, v)
	i.val = v
}
func (i *ReturnInst) IsTerminator() bool        { return true }
func (i *ReturnInst) Kind() InstKind            { return KReturn }
func (i *ReturnInst) Successors() []*BasicBlock { return nil }
func (i *ReturnInst) String() string {
	if i.val == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", operandName(i.val))
}

// refName and operandName render a Value the way the textual IR form
// does: a named value as "%name", an unnamed instruction as
// "%<id>", and anything else (constants, globals, functions) via its own
// String().
func refName(v *Value) string {
	if v.HasName() {
		return "%" + v.Name()
	}
	return fmt.Sprintf("%%%d", v.ID())
}

func operandName(v *Value) string {
	if v == nil {
		return "<nil>"
	}
	switch v.Kind() {
	case KindInstruction, KindParameter:
		return refName(v)
	case KindConstant, KindUndef, KindNull:
		return v.Constant().String()
	case KindGlobal, KindFunction:
		return "@" + v.Name()
	default:
		return refName(v)
	}
}
