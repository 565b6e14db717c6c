package transform

import (
	"scatha/internal/analysis"
	"scatha/internal/pass"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

func init() {
	pass.Register(&pass.Descriptor{
		Name:     "instcombine",
		Category: pass.CategoryTransform,
		Requires: []string{"ssa"},
		Provides: []string{"ssa"},
		Function: InstCombine,
	})
}

// InstCombine runs the worklist-driven local rewriter. The
// worklist preserves insertion order and deduplicates (a slice plus a
// membership set); it is seeded with every instruction of f, and an
// instruction's users are re-enqueued whenever it is rewritten or erased so
// a fold can cascade without a second full pass.
func InstCombine(f *ssa.Function) bool {
	changed := false
	var queue []ssa.Instruction
	queued := map[ssa.Instruction]bool{}
	defOf := instructionsByValue(f)

	enqueue := func(inst ssa.Instruction) {
		if inst == nil || queued[inst] {
			return
		}
		queued[inst] = true
		queue = append(queue, inst)
	}
	enqueueUsers := func(v *ssa.Value) {
		for _, u := range v.Uses() {
			if inst, ok := u.User.(ssa.Instruction); ok {
				enqueue(inst)
			}
		}
	}
	// Erasing an instruction can leave its operands' definitions dead in
	// turn; revisit them so a fold cascades upward as well as downward.
	enqueueOperandDefs := func(inst ssa.Instruction) {
		for _, op := range inst.Operands() {
			if op == nil {
				continue
			}
			if d, ok := defOf[op]; ok {
				enqueue(d)
			}
		}
	}

	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			enqueue(inst)
		}
	}

	analysis.PointerAnalysis(f)

	for len(queue) > 0 {
		inst := queue[0]
		queue = queue[1:]
		delete(queued, inst)

		if inst.Parent() == nil {
			continue
		}
		if isDeadForCombine(inst) {
			enqueueUsers(inst.AsValue())
			enqueueOperandDefs(inst)
			ssa.ReplaceAllUses(inst.AsValue(), nil)
			inst.Parent().Erase(inst)
			changed = true
			continue
		}

		// combineOne's contract: (false, nil) is a no-op; (true, non-nil)
		// replaces inst by the returned value and erases it; (true, nil)
		// means inst already mutated itself in place (e.g. the commutative
		// operand swap below) and must be kept, not erased.
		repl, newVal := combineOne(f, inst, defOf)
		if !repl {
			continue
		}
		if newVal == nil {
			enqueue(inst)
			changed = true
			continue
		}
		enqueueUsers(inst.AsValue())
		enqueueOperandDefs(inst)
		ssa.ReplaceAllUses(inst.AsValue(), newVal)
		inst.Parent().Erase(inst)
		delete(defOf, inst.AsValue())
		changed = true
	}
	return changed
}

// isDeadForCombine reports whether inst has no side effect and no
// remaining uses — the worklist's cheapest rule.
func isDeadForCombine(inst ssa.Instruction) bool {
	if !inst.AsValue().IsUnused() {
		return false
	}
	switch inst.(type) {
	case *ssa.StoreInst, *ssa.CallInst:
		return false
	}
	return !inst.IsTerminator()
}

// combineOne dispatches on kind and returns (true, replacement) when inst
// should be replaced by replacement and erased, (true, nil) when inst
// already rewrote itself in place (kept, not erased), or (false, nil) to
// leave inst alone entirely.
func combineOne(f *ssa.Function, inst ssa.Instruction, defOf map[*ssa.Value]ssa.Instruction) (bool, *ssa.Value) {
	switch in := inst.(type) {
	case *ssa.ArithmeticInst:
		return combineArithmetic(f, in, defOf)
	case *ssa.GEPInst:
		return combineGEP(f, in, defOf)
	case *ssa.CompareInst:
		return combineCompare(f, in)
	case *ssa.SelectInst:
		return combineSelect(f, in)
	case *ssa.PhiInst:
		return combinePhi(in)
	case *ssa.ConversionInst:
		return combineConversion(f, in, defOf)
	case *ssa.LoadInst:
		return combineLoad(f, in, defOf)
	case *ssa.ExtractValueInst:
		return combineExtractValue(in, defOf)
	default:
		return false, nil
	}
}

func ctxOf(f *ssa.Function) *sctx.Context { return f.Module().Context() }

func constOf(f *ssa.Function, c *sctx.Constant) *ssa.Value { return f.Module().ConstantValue(c) }

func intConstVal(v *ssa.Value) (int64, bool) {
	if v == nil || v.Kind() != ssa.KindConstant {
		return 0, false
	}
	c := v.Constant()
	if c == nil || c.Kind != sctx.ConstInt {
		return 0, false
	}
	return c.Int, true
}

// combineArithmetic applies the arithmetic identity and chained-constant
// folds.
func combineArithmetic(f *ssa.Function, in *ssa.ArithmeticInst, defOf map[*ssa.Value]ssa.Instruction) (bool, *ssa.Value) {
	ctx := ctxOf(f)
	lhs, rhs := in.LHS(), in.RHS()

	// Canonicalize constants to the right for commutative ops.
	if ctx.IsCommutative(in.Op) && lhs.Kind() == ssa.KindConstant && rhs.Kind() != ssa.KindConstant {
		in.SetOperand(0, rhs)
		in.SetOperand(1, lhs)
		return true, nil
	}

	rc, rIsConst := intConstVal(rhs)
	lc, lIsConst := intConstVal(lhs)

	// Two integer constants collapse to one.
	if rIsConst && lIsConst {
		if folded, ok := foldIntConst(in.Op, lc, rc); ok {
			return true, constOf(f, ctx.IntConstant(folded, bitsOf(in.Type())))
		}
	}

	switch in.Op {
	case sctx.Add:
		if rIsConst && rc == 0 {
			return true, lhs
		}
		if v, ok := foldConstChain(f, in, lhs, rc, rIsConst, defOf); ok {
			return true, v
		}
		if ru, ok := defOf[rhs].(*ssa.UnaryArithmeticInst); ok && ru.Op == sctx.Neg {
			return true, newSub(f, in, lhs, ru.Operand(), defOf)
		}
		if lu, ok := defOf[lhs].(*ssa.UnaryArithmeticInst); ok && lu.Op == sctx.Neg {
			return true, newSub(f, in, rhs, lu.Operand(), defOf)
		}
	case sctx.Sub:
		if rIsConst && rc == 0 {
			return true, lhs
		}
		if lhs == rhs {
			return true, constOf(f, ctx.IntConstant(0, bitsOf(lhs.Type())))
		}
	case sctx.Mul:
		if rIsConst && rc == 1 {
			return true, lhs
		}
		if v, ok := foldConstChain(f, in, lhs, rc, rIsConst, defOf); ok {
			return true, v
		}
	case sctx.SDiv, sctx.UDiv:
		if rIsConst && rc == 1 {
			return true, lhs
		}
		if rIsConst && rc == 0 {
			return true, constOf(f, ctx.Undef(in.Type()))
		}
		if lhs == rhs {
			return true, constOf(f, ctx.IntConstant(1, bitsOf(lhs.Type())))
		}
	case sctx.SRem, sctx.URem:
		if rIsConst && (rc == 0) {
			return true, constOf(f, ctx.Undef(in.Type()))
		}
		if rIsConst && rc == 1 {
			return true, constOf(f, ctx.IntConstant(0, bitsOf(lhs.Type())))
		}
		if lhs == rhs {
			return true, constOf(f, ctx.IntConstant(0, bitsOf(lhs.Type())))
		}
	case sctx.And:
		if rIsConst && rc == allOnes(bitsOf(lhs.Type())) {
			return true, lhs
		}
	case sctx.Or:
		if rIsConst && rc == 0 {
			return true, lhs
		}
	case sctx.XOr:
		if lhs == rhs {
			return true, constOf(f, ctx.IntConstant(0, bitsOf(lhs.Type())))
		}
	}
	return false, nil
}

func bitsOf(t sctx.Type) int {
	if it, ok := t.(*sctx.IntType); ok {
		return it.Bits
	}
	return 64
}

func allOnes(bits int) int64 {
	if bits >= 64 {
		return -1
	}
	return (int64(1) << uint(bits)) - 1
}

// foldIntConst evaluates op over two integer constant bit patterns. Ops
// whose identity/undef cases are handled elsewhere (division and
// remainder by zero) decline rather than duplicating that logic here.
func foldIntConst(op sctx.ArithOp, l, r int64) (int64, bool) {
	switch op {
	case sctx.Add:
		return l + r, true
	case sctx.Sub:
		return l - r, true
	case sctx.Mul:
		return l * r, true
	case sctx.And:
		return l & r, true
	case sctx.Or:
		return l | r, true
	case sctx.XOr:
		return l ^ r, true
	default:
		return 0, false
	}
}

// foldConstChain merges `(x op c1) op c2` into `x op (c1 op c2)` for the
// associative integer ops, so a chain of additive or multiplicative
// constants settles into a single constant operand.
func foldConstChain(f *ssa.Function, in *ssa.ArithmeticInst, lhs *ssa.Value, rc int64, rIsConst bool, defOf map[*ssa.Value]ssa.Instruction) (*ssa.Value, bool) {
	if !rIsConst {
		return nil, false
	}
	if _, isInt := in.Type().(*sctx.IntType); !isInt {
		return nil, false
	}
	inner, ok := defOf[lhs].(*ssa.ArithmeticInst)
	if !ok || inner.Op != in.Op {
		return nil, false
	}
	ic, iok := intConstVal(inner.RHS())
	if !iok {
		return nil, false
	}
	merged, ok := foldIntConst(in.Op, ic, rc)
	if !ok {
		return nil, false
	}
	ctx := ctxOf(f)
	builder := ssa.NewBuilder(ctx, f)
	builder.SetInsertPoint(in.Parent(), in)
	folded := builder.AddArithmetic(in.Op, inner.LHS(), constOf(f, ctx.IntConstant(merged, bitsOf(in.Type()))))
	defOf[folded.AsValue()] = folded
	return folded.AsValue(), true
}

func newSub(f *ssa.Function, at ssa.Instruction, a, b *ssa.Value, defOf map[*ssa.Value]ssa.Instruction) *ssa.Value {
	builder := ssa.NewBuilder(ctxOf(f), f)
	builder.SetInsertPoint(at.Parent(), at)
	sub := builder.AddArithmetic(sctx.Sub, a, b)
	defOf[sub.AsValue()] = sub
	return sub.AsValue()
}

// combineGEP recursively folds a GEP whose base is itself a constant-index
// GEP into a single GEP with summed array indices and concatenated member
// indices. Falls through when the base GEP's
// member-index chain doesn't resolve cleanly to the same InboundsType,
// since collapsing to a byte-offset `i8` GEP needs a computed aggregate
// offset this IR's GEP already expresses structurally via member indices.
func combineGEP(f *ssa.Function, in *ssa.GEPInst, defOf map[*ssa.Value]ssa.Instruction) (bool, *ssa.Value) {
	base, ok := defOf[in.Base()].(*ssa.GEPInst)
	if !ok {
		return false, nil
	}
	if base.InboundsType != in.InboundsType {
		return false, nil
	}
	outerIdx, outerOK := intConstVal(in.ArrayIndex())
	baseIdx, baseOK := intConstVal(base.ArrayIndex())
	if !outerOK || !baseOK {
		return false, nil
	}
	ctx := ctxOf(f)
	summed := constOf(f, ctx.IntConstant(outerIdx+baseIdx, 64))
	members := append(append([]int(nil), base.MemberIndices...), in.MemberIndices...)
	builder := ssa.NewBuilder(ctx, f)
	builder.SetInsertPoint(in.Parent(), in)
	merged := builder.AddGEP(base.Base(), summed, in.InboundsType, members)
	defOf[merged.AsValue()] = merged
	return true, merged.AsValue()
}

// combineCompare folds a constant-condition-free pointer-equality compare
// using provenance and leaves everything else untouched.
func combineCompare(f *ssa.Function, in *ssa.CompareInst) (bool, *ssa.Value) {
	if in.Op != ssa.CmpEQ && in.Op != ssa.CmpNE {
		return false, nil
	}
	lhs, rhs := in.LHS(), in.RHS()
	if _, isPtr := lhs.Type().(*sctx.PointerType); !isPtr {
		return false, nil
	}
	pl, pr := lhs.PointerInfo(), rhs.PointerInfo()
	if pl == nil || pr == nil {
		return false, nil
	}
	distinct := pl.Provenance.Kind == ssa.ProvStatic && pr.Provenance.Kind == ssa.ProvStatic && !pl.Provenance.Equal(pr.Provenance)
	if !distinct {
		return false, nil
	}
	eq := in.Op == ssa.CmpEQ
	return true, constOf(f, ctxOf(f).BoolConstant(!eq))
}

// combineSelect applies the select folds.
func combineSelect(f *ssa.Function, in *ssa.SelectInst) (bool, *ssa.Value) {
	if b, ok := boolConstVal(in.Cond()); ok {
		if b {
			return true, in.Then()
		}
		return true, in.Else()
	}
	if in.Then() == in.Else() {
		return true, in.Then()
	}
	if it, isInt := in.Type().(*sctx.IntType); isInt && it.Bits == 1 {
		tb, tok := boolConstVal(in.Then())
		eb, eok := boolConstVal(in.Else())
		if tok && eok {
			if tb && !eb {
				return true, in.Cond()
			}
			if !tb && eb {
				builder := ssa.NewBuilder(ctxOf(f), f)
				builder.SetInsertPoint(in.Parent(), in)
				return true, builder.AddUnaryArithmetic(sctx.BitNot, in.Cond()).AsValue()
			}
		}
	}
	return false, nil
}

func boolConstVal(v *ssa.Value) (bool, bool) {
	if v == nil || v.Kind() != ssa.KindConstant {
		return false, false
	}
	c := v.Constant()
	if c == nil || c.Kind != sctx.ConstBool {
		return false, false
	}
	return c.Bool, true
}

// combinePhi collapses a single-operand phi (every incoming edge names the
// same value, or the phi itself) to that value.
func combinePhi(in *ssa.PhiInst) (bool, *ssa.Value) {
	var only *ssa.Value
	for _, e := range in.Incoming() {
		if e.Val == in.AsValue() {
			continue
		}
		if only == nil {
			only = e.Val
			continue
		}
		if only != e.Val {
			return false, nil
		}
	}
	if only == nil {
		return false, nil
	}
	return true, only
}

// combineConversion removes a same-type bitcast, folds chained bitcasts,
// and sinks a bitcast through a single-use load by retyping the load.
func combineConversion(f *ssa.Function, in *ssa.ConversionInst, defOf map[*ssa.Value]ssa.Instruction) (bool, *ssa.Value) {
	if in.ConvKind != ssa.ConvBitcast {
		return false, nil
	}
	if in.Operand().Type() == in.Type() {
		return true, in.Operand()
	}
	if inner, ok := defOf[in.Operand()].(*ssa.ConversionInst); ok && inner.ConvKind == ssa.ConvBitcast {
		builder := ssa.NewBuilder(ctxOf(f), f)
		builder.SetInsertPoint(in.Parent(), in)
		merged := builder.AddConversion(ssa.ConvBitcast, inner.Operand(), in.Type())
		defOf[merged.AsValue()] = merged
		return true, merged.AsValue()
	}
	if ld, ok := defOf[in.Operand()].(*ssa.LoadInst); ok &&
		ld.AsValue().NumUses() == 1 && ld.Type().Size() == in.Type().Size() {
		builder := ssa.NewBuilder(ctxOf(f), f)
		builder.SetInsertPoint(ld.Parent(), ld)
		retyped := builder.AddLoad(ld.Addr(), in.Type())
		defOf[retyped.AsValue()] = retyped
		return true, retyped.AsValue()
	}
	return false, nil
}

// combineLoad folds a load whose address traces back through
// constant-indexed GEPs to an immutable global, substituting the global's
// constant initializer (bitcast when the access type differs but the
// sizes match). Aggregate initializers have no constant node in this IR,
// so only whole-scalar accesses at offset zero fold.
func combineLoad(f *ssa.Function, in *ssa.LoadInst, defOf map[*ssa.Value]ssa.Instruction) (bool, *ssa.Value) {
	root, offset := traceConstGEPs(in.Addr(), defOf)
	if root == nil || root.Kind() != ssa.KindGlobal || offset != 0 {
		return false, nil
	}
	var g *ssa.GlobalVariable
	for _, cand := range f.Module().Globals() {
		if cand.AsValue() == root {
			g = cand
			break
		}
	}
	if g == nil || g.Mutable() || g.Init() == nil {
		return false, nil
	}
	if g.ValueType() == in.Type() {
		return true, constOf(f, g.Init())
	}
	if g.ValueType().Size() != in.Type().Size() {
		return false, nil
	}
	builder := ssa.NewBuilder(ctxOf(f), f)
	builder.SetInsertPoint(in.Parent(), in)
	cast := builder.AddConversion(ssa.ConvBitcast, constOf(f, g.Init()), in.Type())
	defOf[cast.AsValue()] = cast
	return true, cast.AsValue()
}

// traceConstGEPs walks a pointer back through constant-indexed GEPs,
// accumulating the static byte offset, and returns the non-GEP root (nil
// when any index along the way is dynamic).
func traceConstGEPs(addr *ssa.Value, defOf map[*ssa.Value]ssa.Instruction) (*ssa.Value, int) {
	offset := 0
	for {
		gep, ok := defOf[addr].(*ssa.GEPInst)
		if !ok {
			return addr, offset
		}
		idx, ok := intConstVal(gep.ArrayIndex())
		if !ok {
			return nil, 0
		}
		memberOff, _ := walkMembers(gep.InboundsType, gep.MemberIndices)
		offset += int(idx)*gep.InboundsType.Size() + memberOff
		addr = gep.Base()
	}
}

// combineExtractValue forwards an extract of a value just inserted at the
// same index path, and otherwise recurses past an unrelated insert.
func combineExtractValue(in *ssa.ExtractValueInst, defOf map[*ssa.Value]ssa.Instruction) (bool, *ssa.Value) {
	cur := in.Agg()
	for {
		ins, ok := defOf[cur].(*ssa.InsertValueInst)
		if !ok {
			return false, nil
		}
		if indicesEqual(ins.Indices, in.Indices) {
			return true, ins.Inserted()
		}
		if !pathsDisjoint(ins.Indices, in.Indices) {
			return false, nil
		}
		cur = ins.Agg()
	}
}

func indicesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pathsDisjoint reports whether index paths a and b cannot alias (one is
// not a prefix of the other), so it is safe to look through an insert at a
// path unrelated to the extract being folded.
func pathsDisjoint(a, b []int) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}
