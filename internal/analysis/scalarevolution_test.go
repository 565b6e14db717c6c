package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scatha/internal/analysis"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

func TestScalarEvolutionRecognizesMultiplicativeStep(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("doubling", []sctx.Type{i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	header := b.NewBlock("header")
	latch := b.NewBlock("latch")
	exit := b.NewBlock("exit")

	b.AddGoto(header)

	b.InsertAtEnd(header)
	one := mod.ConstantValue(ctx.IntConstant(1, 64))
	phi := b.AddPhi(i64)
	phi.AddIncoming(entry, one)
	cond := b.AddCompare(ssa.CompareSigned, ssa.CmpLS, phi.AsValue(), fn.Params()[0].AsValue())
	b.AddBranch(cond.AsValue(), latch, exit)

	b.InsertAtEnd(latch)
	two := mod.ConstantValue(ctx.IntConstant(2, 64))
	next := b.AddArithmetic(sctx.Mul, phi.AsValue(), two)
	b.AddGoto(header)
	phi.AddIncoming(latch, next.AsValue())

	b.InsertAtEnd(exit)
	b.AddReturn(phi.AsValue())
	require.Empty(t, ssa.Validate(mod))

	lf := analysis.Loops(fn)
	loop := lf.NodeFor(header).Loop
	require.Len(t, loop.InductionVars, 1)
	assert.Equal(t, sctx.Mul, loop.InductionVars[0].Op)
	assert.Same(t, two, loop.InductionVars[0].Step)
}

func TestScalarEvolutionSkipsNonCanonicalHeader(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("twoLatches", []sctx.Type{i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	header := b.NewBlock("header")
	body := b.NewBlock("body")
	latch1 := b.NewBlock("latch1")
	latch2 := b.NewBlock("latch2")
	exit := b.NewBlock("exit")

	b.AddGoto(header)

	b.InsertAtEnd(header)
	zero := mod.ConstantValue(ctx.IntConstant(0, 64))
	phi := b.AddPhi(i64)
	phi.AddIncoming(entry, zero)
	cond := b.AddCompare(ssa.CompareSigned, ssa.CmpLS, phi.AsValue(), fn.Params()[0].AsValue())
	b.AddBranch(cond.AsValue(), body, exit)

	b.InsertAtEnd(body)
	b.AddBranch(cond.AsValue(), latch1, latch2)

	b.InsertAtEnd(latch1)
	one := mod.ConstantValue(ctx.IntConstant(1, 64))
	v1 := b.AddArithmetic(sctx.Add, phi.AsValue(), one)
	b.AddGoto(header)

	b.InsertAtEnd(latch2)
	two := mod.ConstantValue(ctx.IntConstant(2, 64))
	v2 := b.AddArithmetic(sctx.Add, phi.AsValue(), two)
	b.AddGoto(header)

	phi.AddIncoming(latch1, v1.AsValue())
	phi.AddIncoming(latch2, v2.AsValue())

	b.InsertAtEnd(exit)
	b.AddReturn(phi.AsValue())
	require.Empty(t, ssa.Validate(mod))

	lf := analysis.Loops(fn)
	loop := lf.NodeFor(header).Loop
	// header has 3 predecessors (entry, latch1, latch2): not canonical
	// (determinePreheaderAndLatch requires exactly one preheader and one
	// latch), so no induction variable is recognized.
	assert.Empty(t, loop.InductionVars)
}
