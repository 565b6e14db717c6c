package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scatha/internal/analysis"
	"scatha/internal/sctx"
)

// pairType builds a two-field record with no tail padding: {i32 @0, i32 @4},
// size 8.
func pairType(ctx *sctx.Context) (sctx.Type, sctx.Type, sctx.Type) {
	i32 := ctx.IntType(32)
	rec := ctx.StructType("pair", []sctx.Field{
		{Offset: 0, Type: i32},
		{Offset: 4, Type: i32},
	})
	return rec, i32, i32
}

func TestBuildAccessTreeRecord(t *testing.T) {
	ctx := sctx.NewContext()
	rec, f0, f1 := pairType(ctx)

	tree := analysis.BuildAccessTree(rec, 0)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, 0, tree.Children[0].Offset)
	assert.Same(t, f0, tree.Children[0].Type)
	assert.Equal(t, 4, tree.Children[1].Offset)
	assert.Same(t, f1, tree.Children[1].Type)
}

func TestSlicePointsIncludesEveryMemberBoundary(t *testing.T) {
	ctx := sctx.NewContext()
	rec, _, _ := pairType(ctx)

	tree := analysis.BuildAccessTree(rec, 0)
	points := analysis.SlicePoints(tree)
	assert.Equal(t, []int{0, 4, 8}, points)
}

func TestNodeAtFindsExactMember(t *testing.T) {
	ctx := sctx.NewContext()
	rec, _, f1 := pairType(ctx)

	tree := analysis.BuildAccessTree(rec, 0)
	node, ok := analysis.NodeAt(tree, 4, f1.Size())
	require.True(t, ok)
	assert.Same(t, f1, node.Type)

	_, ok = analysis.NodeAt(tree, 2, f1.Size())
	assert.False(t, ok)
}
