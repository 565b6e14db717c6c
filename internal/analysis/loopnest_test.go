package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scatha/internal/analysis"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// buildCountingLoop builds:
//
//	entry:
//	  goto header
//	header:
//	  i = phi [0, entry], [i.next, latch]
//	  cond = i ls n
//	  branch cond, latch, exit
//	latch:
//	  i.next = i + 1
//	  goto header
//	exit:
//	  ret i
func buildCountingLoop(t *testing.T) (*ssa.Function, map[string]*ssa.BasicBlock, *ssa.PhiInst) {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("countTo", []sctx.Type{i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	header := b.NewBlock("header")
	latch := b.NewBlock("latch")
	exit := b.NewBlock("exit")

	b.AddGoto(header)

	b.InsertAtEnd(header)
	zero := mod.ConstantValue(ctx.IntConstant(0, 64))
	iPhi := b.AddPhi(i64)
	iPhi.AddIncoming(entry, zero)
	cond := b.AddCompare(ssa.CompareSigned, ssa.CmpLS, iPhi.AsValue(), fn.Params()[0].AsValue())
	b.AddBranch(cond.AsValue(), latch, exit)

	b.InsertAtEnd(latch)
	one := mod.ConstantValue(ctx.IntConstant(1, 64))
	iNext := b.AddArithmetic(sctx.Add, iPhi.AsValue(), one)
	b.AddGoto(header)
	iPhi.AddIncoming(latch, iNext.AsValue())

	b.InsertAtEnd(exit)
	b.AddReturn(iPhi.AsValue())

	require.Empty(t, ssa.Validate(mod))
	return fn, map[string]*ssa.BasicBlock{
		"entry": entry, "header": header, "latch": latch, "exit": exit,
	}, iPhi
}

func TestLoopsRecognizesNaturalLoop(t *testing.T) {
	fn, blk, _ := buildCountingLoop(t)
	lf := analysis.Loops(fn)

	header := lf.NodeFor(blk["header"])
	require.NotNil(t, header)
	require.True(t, header.Proper())

	loop := header.Loop
	assert.Equal(t, blk["header"], loop.Header)
	assert.ElementsMatch(t, []*ssa.BasicBlock{blk["header"], blk["latch"]}, loop.Inner)
	assert.ElementsMatch(t, []*ssa.BasicBlock{blk["entry"]}, loop.Entering)
	assert.ElementsMatch(t, []*ssa.BasicBlock{blk["latch"]}, loop.Latches)
	assert.ElementsMatch(t, []*ssa.BasicBlock{blk["header"]}, loop.Exiting)
	assert.ElementsMatch(t, []*ssa.BasicBlock{blk["exit"]}, loop.ExitBlock)

	assert.Nil(t, lf.LoopFor(blk["entry"]))
	assert.Same(t, loop, lf.LoopFor(blk["latch"]))
}

func TestLoopsRecognizesAffineInductionVariable(t *testing.T) {
	fn, blk, iPhi := buildCountingLoop(t)
	lf := analysis.Loops(fn)
	loop := lf.NodeFor(blk["header"]).Loop

	require.Len(t, loop.InductionVars, 1)
	iv := loop.InductionVars[0]
	assert.Same(t, iPhi, iv.Phi)
	assert.Equal(t, sctx.Add, iv.Op)
}

func TestMakeLCSSACreatesExitPhi(t *testing.T) {
	fn, blk, iPhi := buildCountingLoop(t)

	analysis.MakeLCSSA(fn)
	require.Empty(t, ssa.Validate(fn.Module()))

	ret := blk["exit"].Terminator().(*ssa.ReturnInst)
	// The return used to read iPhi directly; after LCSSA it must read a
	// phi local to the exit block instead.
	assert.NotSame(t, iPhi.AsValue(), ret.Val())
	exitPhis := blk["exit"].Phis()
	require.Len(t, exitPhis, 1)
	assert.Same(t, exitPhis[0].AsValue(), ret.Val())
}
