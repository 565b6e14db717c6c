package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scatha/internal/analysis"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// declareCaller builds a function that calls callee once and returns its
// result, used to assemble small call graphs by hand.
func declareCaller(mod *ssa.Module, name string, callee *ssa.Function) *ssa.Function {
	ctx := mod.Context()
	i64 := ctx.IntType(64)
	fn := mod.NewFunction(name, nil, i64)
	fb := ssa.NewFunctionBuilder(ctx, fn)
	fb.AddNewBlock("entry")
	call := fb.AddCall(ssa.Callee{Direct: callee}, nil, i64)
	fb.AddReturn(call.AsValue())
	fb.InsertAllocas()
	return fn
}

func TestComputeCallGraphLinearChain(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)

	leaf := mod.NewFunction("leaf", nil, i64)
	lb := ssa.NewFunctionBuilder(ctx, leaf)
	lb.AddNewBlock("entry")
	lb.AddReturn(mod.ConstantValue(ctx.IntConstant(0, 64)))
	lb.InsertAllocas()

	mid := declareCaller(mod, "mid", leaf)
	top := declareCaller(mod, "top", mid)
	_ = top
	require.Empty(t, ssa.Validate(mod))

	cg := analysis.ComputeCallGraph(mod)
	topNode := cg.NodeFor(top)
	midNode := cg.NodeFor(mid)
	leafNode := cg.NodeFor(leaf)

	require.Len(t, topNode.Callees, 1)
	assert.Same(t, midNode, topNode.Callees[0])
	require.Len(t, midNode.Callees, 1)
	assert.Same(t, leafNode, midNode.Callees[0])
	assert.Empty(t, leafNode.Callees)

	sccs := cg.SCCs()
	require.Len(t, sccs, 3)
	for _, scc := range sccs {
		assert.False(t, scc.Recursive())
	}
	// Tarjan emits SCCs in reverse topological (callee-before-caller) order.
	assert.Same(t, leafNode, sccs[0].Nodes[0])
	assert.Same(t, topNode, sccs[2].Nodes[0])
}

func TestComputeCallGraphMutualRecursionFormsOneSCC(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)

	a := mod.NewFunction("a", nil, i64)
	b := mod.NewFunction("b", nil, i64)

	ab := ssa.NewFunctionBuilder(ctx, a)
	ab.AddNewBlock("entry")
	callB := ab.AddCall(ssa.Callee{Direct: b}, nil, i64)
	ab.AddReturn(callB.AsValue())
	ab.InsertAllocas()

	bb := ssa.NewFunctionBuilder(ctx, b)
	bb.AddNewBlock("entry")
	callA := bb.AddCall(ssa.Callee{Direct: a}, nil, i64)
	bb.AddReturn(callA.AsValue())
	bb.InsertAllocas()

	require.Empty(t, ssa.Validate(mod))

	cg := analysis.ComputeCallGraph(mod)
	aNode, bNode := cg.NodeFor(a), cg.NodeFor(b)
	require.Same(t, aNode.SCC(), bNode.SCC())
	assert.True(t, aNode.SCC().Recursive())
	assert.Len(t, aNode.SCC().Nodes, 2)
}

func TestComputeCallGraphSelfRecursionNotAGraphEdge(t *testing.T) {
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)

	fn := mod.NewFunction("fact", nil, i64)
	fb := ssa.NewFunctionBuilder(ctx, fn)
	fb.AddNewBlock("entry")
	call := fb.AddCall(ssa.Callee{Direct: fn}, nil, i64)
	fb.AddReturn(call.AsValue())
	fb.InsertAllocas()
	require.Empty(t, ssa.Validate(mod))

	cg := analysis.ComputeCallGraph(mod)
	node := cg.NodeFor(fn)
	assert.Empty(t, node.Callees)
	assert.True(t, node.IsRecursive())
	assert.True(t, node.SCC().Recursive())
}
