package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scatha/internal/analysis"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// buildDiamond builds:
//
//	entry -> (then | else) -> merge -> ret
func buildDiamond(t *testing.T) (*ssa.Module, *ssa.Function, map[string]*ssa.BasicBlock) {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("diamond", []sctx.Type{i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	thenBB := b.NewBlock("then")
	elseBB := b.NewBlock("else")
	merge := b.NewBlock("merge")

	zero := mod.ConstantValue(ctx.IntConstant(0, 64))
	cond := b.AddCompare(ssa.CompareSigned, ssa.CmpGT, fn.Params()[0].AsValue(), zero)
	b.AddBranch(cond.AsValue(), thenBB, elseBB)

	b.InsertAtEnd(thenBB)
	b.AddGoto(merge)

	b.InsertAtEnd(elseBB)
	b.AddGoto(merge)

	b.InsertAtEnd(merge)
	phi := b.AddPhi(i64)
	phi.AddIncoming(thenBB, fn.Params()[0].AsValue())
	phi.AddIncoming(elseBB, zero)
	b.AddReturn(phi.AsValue())

	require.Empty(t, ssa.Validate(mod))
	return mod, fn, map[string]*ssa.BasicBlock{
		"entry": entry, "then": thenBB, "else": elseBB, "merge": merge,
	}
}

func TestDominatorsDiamond(t *testing.T) {
	_, fn, blk := buildDiamond(t)
	dt := analysis.Dominators(fn)

	assert.True(t, dt.Dominates(blk["entry"], blk["merge"]))
	assert.True(t, dt.StrictlyDominates(blk["entry"], blk["then"]))
	assert.False(t, dt.Dominates(blk["then"], blk["merge"]))
	assert.False(t, dt.Dominates(blk["else"], blk["merge"]))
	assert.Equal(t, blk["entry"], dt.Idom(blk["merge"]))

	frontier := dt.Frontier(blk["then"])
	require.Len(t, frontier, 1)
	assert.Equal(t, blk["merge"], frontier[0])
}

func TestPostDominatorsSingleExit(t *testing.T) {
	_, fn, blk := buildDiamond(t)
	pdt := analysis.PostDominators(fn)

	assert.True(t, pdt.PostDominates(blk["merge"], blk["then"]))
	assert.True(t, pdt.PostDominates(blk["merge"], blk["entry"]))
	assert.False(t, pdt.PostDominates(blk["then"], blk["entry"]))
}

func TestPostDominatorsMultipleExits(t *testing.T) {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("twoExits", []sctx.Type{i64}, i64)

	b := ssa.NewBuilder(ctx, fn)
	entry := b.AddNewBlock("entry")
	left := b.NewBlock("left")
	right := b.NewBlock("right")

	zero := mod.ConstantValue(ctx.IntConstant(0, 64))
	cond := b.AddCompare(ssa.CompareSigned, ssa.CmpGT, fn.Params()[0].AsValue(), zero)
	b.AddBranch(cond.AsValue(), left, right)

	b.InsertAtEnd(left)
	b.AddReturn(zero)

	b.InsertAtEnd(right)
	b.AddReturn(fn.Params()[0].AsValue())

	require.Empty(t, ssa.Validate(mod))

	pdt := analysis.PostDominators(fn)
	// Neither single exit post-dominates entry; only the synthetic sink would.
	assert.False(t, pdt.PostDominates(left, entry))
	assert.False(t, pdt.PostDominates(right, entry))
}
