// Package analysis implements the analyses layered over the IR: dominance
// and post-dominance, the loop nesting forest and LCSSA, pointer info
// propagation, scalar evolution, member access trees, and the SCC call
// graph. All are pure computations over an internal/ssa function or module
// that cache their result on the function and invalidate on any CFG edit.
package analysis

import (
	"sort"

	"github.com/willf/bitset"

	"scatha/internal/ssa"
)

// domKey is the cache key GetOrCompute uses for dominance results.
const domKey = "analysis.dominance"
const postDomKey = "analysis.postdominance"

// DominatorTree is the immediate-dominator tree of a function's CFG plus
// the derived dominator-frontier and full dominator-set maps.
type DominatorTree struct {
	order    []*ssa.BasicBlock          // blocks in reverse-postorder, entry first
	index    map[*ssa.BasicBlock]int    // order position, for the RPO-based algorithm
	idom     map[*ssa.BasicBlock]*ssa.BasicBlock
	children map[*ssa.BasicBlock][]*ssa.BasicBlock
	frontier map[*ssa.BasicBlock][]*ssa.BasicBlock
	domSet   map[*ssa.BasicBlock]*bitset.BitSet
}

// Dominators computes (or returns the cached) dominator tree of f.
func Dominators(f *ssa.Function) *DominatorTree {
	return ssa.GetOrCompute(f, domKey, func() *DominatorTree {
		return computeDominance(f.Entry(), successorsOf, predecessorsOf)
	})
}

func successorsOf(b *ssa.BasicBlock) []*ssa.BasicBlock   { return b.Successors() }
func predecessorsOf(b *ssa.BasicBlock) []*ssa.BasicBlock { return b.Predecessors() }

// computeDominance runs the Cooper/Harvey/Kennedy "A Simple, Fast Dominance
// Algorithm" iterative fixpoint over blocks reachable from root, using succ
// and pred to traverse (so the same code computes both dominance and, with
// the edge functions swapped, post-dominance over a reversed graph).
func computeDominance(root *ssa.BasicBlock, succ, pred func(*ssa.BasicBlock) []*ssa.BasicBlock) *DominatorTree {
	dt := &DominatorTree{
		idom:     make(map[*ssa.BasicBlock]*ssa.BasicBlock),
		children: make(map[*ssa.BasicBlock][]*ssa.BasicBlock),
		frontier: make(map[*ssa.BasicBlock][]*ssa.BasicBlock),
		domSet:   make(map[*ssa.BasicBlock]*bitset.BitSet),
	}
	if root == nil {
		return dt
	}
	dt.order = reversePostorder(root, succ)
	dt.index = make(map[*ssa.BasicBlock]int, len(dt.order))
	for i, b := range dt.order {
		dt.index[b] = i
	}

	dt.idom[root] = root
	changed := true
	for changed {
		changed = false
		for _, b := range dt.order[1:] {
			var newIdom *ssa.BasicBlock
			for _, p := range pred(b) {
				if dt.idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(dt, newIdom, p)
			}
			if newIdom != dt.idom[b] {
				dt.idom[b] = newIdom
				changed = true
			}
		}
	}
	dt.idom[root] = nil // root has no strict dominator

	for _, b := range dt.order {
		if idom := dt.idom[b]; idom != nil {
			dt.children[idom] = append(dt.children[idom], b)
		}
	}

	// Dominance frontier (Cytron et al.): for each block with >1 predecessor,
	// walk up from each predecessor to (but not including) the block's idom.
	for _, b := range dt.order {
		preds := pred(b)
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			if dt.idom[p] == nil && p != root {
				continue
			}
			runner := p
			for runner != nil && runner != dt.idom[b] {
				dt.frontier[runner] = append(dt.frontier[runner], b)
				runner = dt.idom[runner]
			}
		}
	}

	// Full dominator-set bitsets, root to each block along the idom chain.
	for _, b := range dt.order {
		set := bitset.New(uint(len(dt.order)))
		for cur := b; cur != nil; cur = dt.idom[cur] {
			set.Set(uint(dt.index[cur]))
			if cur == root {
				break
			}
		}
		dt.domSet[b] = set
	}

	return dt
}

func intersect(dt *DominatorTree, a, b *ssa.BasicBlock) *ssa.BasicBlock {
	for a != b {
		for dt.index[a] > dt.index[b] {
			a = dt.idom[a]
		}
		for dt.index[b] > dt.index[a] {
			b = dt.idom[b]
		}
	}
	return a
}

// reversePostorder visits the graph reachable from root via succ and
// returns it in reverse postorder (root first), the traversal order the
// Cooper/Harvey/Kennedy algorithm requires for fast convergence.
func reversePostorder(root *ssa.BasicBlock, succ func(*ssa.BasicBlock) []*ssa.BasicBlock) []*ssa.BasicBlock {
	visited := make(map[*ssa.BasicBlock]bool)
	var post []*ssa.BasicBlock
	var visit func(*ssa.BasicBlock)
	visit = func(b *ssa.BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range succ(b) {
			if s != nil {
				visit(s)
			}
		}
		post = append(post, b)
	}
	visit(root)
	rev := make([]*ssa.BasicBlock, len(post))
	for i, b := range post {
		rev[len(post)-1-i] = b
	}
	return rev
}

// Idom returns b's immediate dominator, or nil for the entry block.
func (dt *DominatorTree) Idom(b *ssa.BasicBlock) *ssa.BasicBlock { return dt.idom[b] }

// Children returns the dominator-tree children of b.
func (dt *DominatorTree) Children(b *ssa.BasicBlock) []*ssa.BasicBlock { return dt.children[b] }

// Frontier returns b's dominance frontier.
func (dt *DominatorTree) Frontier(b *ssa.BasicBlock) []*ssa.BasicBlock { return dt.frontier[b] }

// Dominates reports whether a dominates b (every path from entry to b
// passes through a), including a dominating itself.
func (dt *DominatorTree) Dominates(a, b *ssa.BasicBlock) bool {
	idx, ok := dt.index[a]
	if !ok {
		return false
	}
	set, ok := dt.domSet[b]
	if !ok {
		return false
	}
	return set.Test(uint(idx))
}

// StrictlyDominates reports whether a dominates b and a != b.
func (dt *DominatorTree) StrictlyDominates(a, b *ssa.BasicBlock) bool {
	return a != b && dt.Dominates(a, b)
}

// InstructionDominates reports whether the definition of def (an
// instruction) dominates the use site use (an instruction in the same
// function), honoring same-block program order and the phi exception:
// phi operands are considered to occur at the end of their corresponding
// predecessor, not at the phi's own position.
func (dt *DominatorTree) InstructionDominates(def, use ssa.Instruction) bool {
	db, ub := def.Parent(), use.Parent()
	if db == ub {
		if _, isPhi := use.(*ssa.PhiInst); isPhi {
			return true
		}
		return indexInBlock(db, def) <= indexInBlock(ub, use)
	}
	return dt.StrictlyDominates(db, ub)
}

func indexInBlock(b *ssa.BasicBlock, inst ssa.Instruction) int {
	for i, in := range b.Instructions() {
		if in == inst {
			return i
		}
	}
	return -1
}

// PostDominatorTree is the result of running the same fixpoint over the
// reversed CFG, using a synthetic sink when the function has zero or more
// than one return block.
type PostDominatorTree struct {
	*DominatorTree
	sink     *ssa.BasicBlock // non-nil only when synthetic
	realExit *ssa.BasicBlock // the function's single real exit, if unique
}

// PostDominators computes (or returns the cached) post-dominator tree of f.
func PostDominators(f *ssa.Function) *PostDominatorTree {
	return ssa.GetOrCompute(f, postDomKey, func() *PostDominatorTree {
		exits := exitBlocks(f)
		var root *ssa.BasicBlock
		var sink *ssa.BasicBlock
		switch len(exits) {
		case 1:
			root = exits[0]
		default:
			sink = syntheticSink(exits)
			root = sink
		}
		succ := func(b *ssa.BasicBlock) []*ssa.BasicBlock { return reversedSucc(b, sink, exits) }
		pred := func(b *ssa.BasicBlock) []*ssa.BasicBlock { return reversedPred(b, sink, exits) }
		dt := computeDominance(root, succ, pred)
		pdt := &PostDominatorTree{DominatorTree: dt, sink: sink}
		if len(exits) == 1 {
			pdt.realExit = exits[0]
		}
		return pdt
	})
}

func exitBlocks(f *ssa.Function) []*ssa.BasicBlock {
	var out []*ssa.BasicBlock
	for _, b := range f.Blocks() {
		if _, ok := b.Terminator().(*ssa.ReturnInst); ok {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label() < out[j].Label() })
	return out
}

// syntheticSink stands in for a virtual block whose only predecessors are
// every real exit; it never appears in f.Blocks() and is only used as a
// traversal root for the reversed-CFG fixpoint.
func syntheticSink(exits []*ssa.BasicBlock) *ssa.BasicBlock {
	return ssa.NewSyntheticBlock("postdom.sink")
}

func reversedSucc(b, sink *ssa.BasicBlock, exits []*ssa.BasicBlock) []*ssa.BasicBlock {
	if sink != nil && b == sink {
		return exits
	}
	return b.Predecessors()
}

func reversedPred(b, sink *ssa.BasicBlock, exits []*ssa.BasicBlock) []*ssa.BasicBlock {
	if sink != nil && b == sink {
		return nil
	}
	if sink == nil {
		return b.Successors()
	}
	for _, e := range exits {
		if e == b {
			return append(append([]*ssa.BasicBlock{}, b.Successors()...), sink)
		}
	}
	return b.Successors()
}

// PostDominates reports whether a post-dominates b.
func (pdt *PostDominatorTree) PostDominates(a, b *ssa.BasicBlock) bool {
	return pdt.DominatorTree.Dominates(a, b)
}
