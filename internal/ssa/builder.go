package ssa

import "scatha/internal/sctx"

// Builder associates with a function and a current insertion point (a
// block plus a position within it) and offers add<Kind>/insert<Kind>
// construction helpers.
type Builder struct {
	ctx   *sctx.Context
	fn    *Function
	block *BasicBlock
	pos   int // index within block.instrs; equals len(instrs) to insert at end
}

// NewBuilder creates a builder for fn with no insertion point set; callers
// must call InsertAtEnd or SetInsertPoint before adding instructions.
func NewBuilder(ctx *sctx.Context, fn *Function) *Builder {
	return &Builder{ctx: ctx, fn: fn}
}

func (b *Builder) Context() *sctx.Context { return b.ctx }
func (b *Builder) Function() *Function    { return b.fn }

// InsertAtEnd points the builder at the end of block.
func (b *Builder) InsertAtEnd(block *BasicBlock) {
	b.block = block
	b.pos = len(block.instrs)
}

// SetInsertPoint points the builder immediately before mark.
func (b *Builder) SetInsertPoint(block *BasicBlock, mark Instruction) {
	b.block = block
	if mark == nil {
		b.pos = len(block.instrs)
		return
	}
	idx := block.IndexOf(mark)
	if idx < 0 {
		idx = len(block.instrs)
	}
	b.pos = idx
}

// NewBlock creates (but does not switch into) a new block on the current
// function.
func (b *Builder) NewBlock(name string) *BasicBlock { return b.fn.NewBlock(name) }

// AddBlock appends an externally constructed block to the function.
func (b *Builder) AddBlock(blk *BasicBlock) { b.fn.AddBlock(blk) }

// AddNewBlock creates a new block, appends it, and switches the builder's
// insertion point to its end.
func (b *Builder) AddNewBlock(name string) *BasicBlock {
	blk := b.fn.NewBlock(name)
	b.InsertAtEnd(blk)
	return blk
}

func (b *Builder) insert(inst Instruction) Instruction {
	b.block.insertAt(b.pos, inst)
	b.pos++
	return inst
}

// insertBefore constructs inst at a specific iterator without disturbing
// the builder's own insertion point.
func (b *Builder) insertBefore(before Instruction, inst Instruction) Instruction {
	before.Parent().InsertBefore(before, inst)
	return inst
}

func (b *Builder) AddAlloca(elem sctx.Type, count *Value) *AllocaInst {
	return b.insert(NewAlloca(b.ctx, elem, count)).(*AllocaInst)
}
func (b *Builder) AddLoad(addr *Value, typ sctx.Type) *LoadInst {
	return b.insert(NewLoad(addr, typ)).(*LoadInst)
}
func (b *Builder) AddStore(addr, val *Value) *StoreInst {
	return b.insert(NewStore(b.ctx, addr, val)).(*StoreInst)
}
func (b *Builder) AddGEP(base, arrayIndex *Value, inboundsType sctx.Type, members []int) *GEPInst {
	return b.insert(NewGEP(b.ctx, base, arrayIndex, inboundsType, members)).(*GEPInst)
}
func (b *Builder) AddArithmetic(op sctx.ArithOp, lhs, rhs *Value) *ArithmeticInst {
	return b.insert(NewArithmetic(op, lhs, rhs)).(*ArithmeticInst)
}
func (b *Builder) AddUnaryArithmetic(op sctx.ArithOp, operand *Value) *UnaryArithmeticInst {
	return b.insert(NewUnaryArithmetic(op, operand)).(*UnaryArithmeticInst)
}
func (b *Builder) AddCompare(mode CompareMode, op CompareOp, lhs, rhs *Value) *CompareInst {
	return b.insert(NewCompare(b.ctx, mode, op, lhs, rhs)).(*CompareInst)
}
func (b *Builder) AddConversion(kind ConversionKind, operand *Value, target sctx.Type) *ConversionInst {
	return b.insert(NewConversion(kind, operand, target)).(*ConversionInst)
}
func (b *Builder) AddCall(callee Callee, args []*Value, retType sctx.Type) *CallInst {
	return b.insert(NewCall(callee, args, retType)).(*CallInst)
}
func (b *Builder) AddSelect(cond, thenV, elseV *Value) *SelectInst {
	return b.insert(NewSelect(cond, thenV, elseV)).(*SelectInst)
}
func (b *Builder) AddExtractValue(agg *Value, indices []int, resultType sctx.Type) *ExtractValueInst {
	return b.insert(NewExtractValue(agg, indices, resultType)).(*ExtractValueInst)
}
func (b *Builder) AddInsertValue(agg, inserted *Value, indices []int) *InsertValueInst {
	return b.insert(NewInsertValue(agg, inserted, indices)).(*InsertValueInst)
}

// AddPhi inserts a phi at the end of the phi-prefix of the current
// block, independent of the builder's own b.pos, and advances b.pos if
// the phi was inserted ahead of it.
func (b *Builder) AddPhi(typ sctx.Type) *PhiInst {
	phi := NewPhi(typ)
	phiCount := len(b.block.Phis())
	b.block.insertAt(phiCount, phi)
	if phiCount <= b.pos {
		b.pos++
	}
	return phi
}

func (b *Builder) AddGoto(target *BasicBlock) *GotoInst {
	g := NewGoto(b.ctx, target)
	b.insert(g)
	target.addPred(b.block)
	b.fn.invalidateCFGInfo()
	return g
}

func (b *Builder) AddBranch(cond *Value, thenBB, elseBB *BasicBlock) *BranchInst {
	br := NewBranch(b.ctx, cond, thenBB, elseBB)
	b.insert(br)
	thenBB.addPred(b.block)
	elseBB.addPred(b.block)
	b.fn.invalidateCFGInfo()
	return br
}

func (b *Builder) AddReturn(val *Value) *ReturnInst {
	return b.insert(NewReturn(b.ctx, val)).(*ReturnInst)
}

// FunctionBuilder additionally owns a deferred-alloca list: allocas
// created anywhere are parked and, at InsertAllocas(), moved to the entry
// block in creation order, filtered to those still used.
type FunctionBuilder struct {
	*Builder
	deferred []*AllocaInst
}

func NewFunctionBuilder(ctx *sctx.Context, fn *Function) *FunctionBuilder {
	return &FunctionBuilder{Builder: NewBuilder(ctx, fn)}
}

// AddAlloca overrides Builder.AddAlloca: it parks the alloca rather than
// inserting it at the current point.
func (fb *FunctionBuilder) AddAlloca(elem sctx.Type, count *Value) *AllocaInst {
	a := NewAlloca(fb.ctx, elem, count)
	fb.deferred = append(fb.deferred, a)
	return a
}

// InsertAllocas moves every still-used deferred alloca into the entry
// block, in the order they were created, ahead of any existing entry-block
// instruction.
func (fb *FunctionBuilder) InsertAllocas() {
	entry := fb.fn.Entry()
	if entry == nil {
		return
	}
	live := make([]*AllocaInst, 0, len(fb.deferred))
	for _, a := range fb.deferred {
		if !a.IsUnused() {
			live = append(live, a)
		}
	}
	for i := len(live) - 1; i >= 0; i-- {
		entry.insertAt(0, live[i])
	}
	fb.deferred = nil
}

// PackValues creates an anonymous tuple of the given values via chained
// InsertValues, with a recognizable naming pattern ("<name>.pack") for
// debuggability.
func (fb *FunctionBuilder) PackValues(values []*Value, name string) *Value {
	types := make([]sctx.Type, len(values))
	for i, v := range values {
		types[i] = v.Type()
	}
	tupleType := fb.ctx.TupleType(types...)
	agg := fb.MakeZeroConstant(tupleType)
	for i, v := range values {
		agg = fb.AddInsertValue(agg, v, []int{i}).AsValue()
		if name != "" {
			agg.name = fb.ctx.UniqueName(fb.fn.name, name+".pack")
		}
	}
	return agg
}

// MakeZeroConstant recursively produces the type-appropriate zero value.
func (fb *FunctionBuilder) MakeZeroConstant(typ sctx.Type) *Value {
	return makeZero(fb.ctx, fb.fn.module, typ)
}

func makeZero(ctx *sctx.Context, mod *Module, typ sctx.Type) *Value {
	switch t := typ.(type) {
	case *sctx.IntType:
		return constOrWrap(ctx, mod, ctx.IntConstant(0, t.Bits))
	case *sctx.FloatType:
		return constOrWrap(ctx, mod, ctx.FloatConstant(0, t.Bits))
	case *sctx.PointerType:
		return constOrWrap(ctx, mod, ctx.NullPointer())
	default:
		// Arrays/records have no scalar zero constant in this IR; the
		// canonical zero is undef of the aggregate type, matching the
		// context's own undef-per-type singleton.
		return constOrWrap(ctx, mod, ctx.Undef(typ))
	}
}

func constOrWrap(ctx *sctx.Context, mod *Module, c *sctx.Constant) *Value {
	if mod != nil {
		return mod.ConstantValue(c)
	}
	return wrapConstant(c)
}
