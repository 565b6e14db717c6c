package analysis

import (
	"sort"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

const lnfKey = "analysis.loopnestingforest"

// LNFNode is one node of the Loop Nesting Forest: every block gets a node;
// "proper" nodes (those with children or a self back-edge) are loop
// headers and carry a *LoopInfo.
type LNFNode struct {
	Block    *ssa.BasicBlock
	Parent   *LNFNode
	Children []*LNFNode
	Loop     *LoopInfo // non-nil iff this node is a proper (header) node
}

func (n *LNFNode) Proper() bool { return n.Loop != nil }

// LoopInfo records the derived structure of one natural loop rooted at a
// header.
type LoopInfo struct {
	Header    *ssa.BasicBlock
	Inner     []*ssa.BasicBlock // transitive predecessors reaching Header without leaving the loop
	Entering  []*ssa.BasicBlock // outside predecessors of Header
	Latches   []*ssa.BasicBlock // inner predecessors of Header
	Exiting   []*ssa.BasicBlock // inner blocks with >=1 outside successor
	ExitBlock []*ssa.BasicBlock // outside successors of inner blocks
	// ClosingPhi maps (exit block, inner instruction) to the LCSSA phi that
	// closes the instruction's live-out value at that exit.
	ClosingPhi map[ExitUse]*ssa.PhiInst
	// InductionVars lists the affine induction variables ScalarEvolution
	// recognized in this loop.
	InductionVars []*InductionVariable
}

// ExitUse keys LoopInfo.ClosingPhi.
type ExitUse struct {
	Exit *ssa.BasicBlock
	Def  ssa.Instruction
}

// LoopForest is the whole-function LNF: a list of top-level nodes (the
// function's outermost loop headers and the blocks in no loop) plus a
// lookup from block to node.
type LoopForest struct {
	nodes map[*ssa.BasicBlock]*LNFNode
	roots []*LNFNode
}

// NodeFor returns the LNF node for b.
func (lf *LoopForest) NodeFor(b *ssa.BasicBlock) *LNFNode { return lf.nodes[b] }

// Roots returns the top-level nodes (blocks not nested in any loop, plus
// outermost loop headers).
func (lf *LoopForest) Roots() []*LNFNode { return lf.roots }

// LoopFor returns the innermost enclosing loop of b, or nil if b is not in
// any loop.
func (lf *LoopForest) LoopFor(b *ssa.BasicBlock) *LoopInfo {
	n := lf.nodes[b]
	if n == nil {
		return nil
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Proper() {
			return cur.Loop
		}
	}
	return nil
}

// Loops computes (or returns the cached) loop nesting forest of f.
func Loops(f *ssa.Function) *LoopForest {
	return ssa.GetOrCompute(f, lnfKey, func() *LoopForest {
		return computeLoopForest(f)
	})
}

func computeLoopForest(f *ssa.Function) *LoopForest {
	dt := Dominators(f)
	lf := &LoopForest{nodes: make(map[*ssa.BasicBlock]*LNFNode)}

	backEdges := findBackEdges(f, dt)
	headers := make(map[*ssa.BasicBlock][]*ssa.BasicBlock) // header -> latches
	for _, e := range backEdges {
		headers[e.header] = append(headers[e.header], e.latch)
	}

	for _, b := range f.Blocks() {
		lf.nodes[b] = &LNFNode{Block: b}
	}

	// Natural-loop membership: for each header, the loop body is the set of
	// blocks that can reach a latch without going through the header again,
	// found by a backward walk from each latch stopping at the header.
	for header, latches := range headers {
		body := naturalLoopBody(header, latches)
		info := &LoopInfo{Header: header, ClosingPhi: make(map[ExitUse]*ssa.PhiInst)}
		bodySet := make(map[*ssa.BasicBlock]bool, len(body))
		for _, b := range body {
			bodySet[b] = true
		}
		info.Inner = sortedBlocks(body)
		for _, p := range header.Predecessors() {
			if !bodySet[p] {
				info.Entering = append(info.Entering, p)
			}
		}
		info.Latches = sortedBlocks(latches)
		for _, b := range info.Inner {
			outside := false
			for _, s := range b.Successors() {
				if !bodySet[s] {
					outside = true
					info.ExitBlock = append(info.ExitBlock, s)
				}
			}
			if outside {
				info.Exiting = append(info.Exiting, b)
			}
		}
		info.ExitBlock = dedupBlocks(info.ExitBlock)
		lf.nodes[header].Loop = info
	}

	// Nest LNF nodes: a block's parent is the innermost header whose body
	// contains it (excluding itself), determined by body-size ordering.
	type headerBody struct {
		header *ssa.BasicBlock
		body   map[*ssa.BasicBlock]bool
	}
	var hbs []headerBody
	for header, latches := range headers {
		body := naturalLoopBody(header, latches)
		bodySet := make(map[*ssa.BasicBlock]bool, len(body))
		for _, b := range body {
			bodySet[b] = true
		}
		hbs = append(hbs, headerBody{header, bodySet})
	}
	sort.Slice(hbs, func(i, j int) bool { return len(hbs[i].body) < len(hbs[j].body) })

	for b, node := range lf.nodes {
		var innermost *ssa.BasicBlock
		for _, hb := range hbs {
			if hb.header == b {
				continue
			}
			if hb.body[b] {
				innermost = hb.header // first match (sorted smallest-first) is innermost
				break
			}
		}
		if innermost != nil {
			parent := lf.nodes[innermost]
			node.Parent = parent
			parent.Children = append(parent.Children, node)
		} else {
			lf.roots = append(lf.roots, node)
		}
	}
	sort.Slice(lf.roots, func(i, j int) bool { return lf.roots[i].Block.Label() < lf.roots[j].Block.Label() })

	for header := range headers {
		populateClosingPhiPlaceholders(lf.nodes[header].Loop)
		lf.nodes[header].Loop.InductionVars = findInductionVariables(f, lf.nodes[header].Loop, dt)
	}

	return lf
}

type backEdge struct{ latch, header *ssa.BasicBlock }

// findBackEdges returns every CFG edge whose target dominates its source.
func findBackEdges(f *ssa.Function, dt *DominatorTree) []backEdge {
	var out []backEdge
	for _, b := range f.Blocks() {
		for _, s := range b.Successors() {
			if s != nil && dt.Dominates(s, b) {
				out = append(out, backEdge{latch: b, header: s})
			}
		}
	}
	return out
}

// naturalLoopBody computes the set of blocks in the natural loop of
// (header, latches): header itself plus every block that can reach a latch
// by walking predecessors without passing through header.
func naturalLoopBody(header *ssa.BasicBlock, latches []*ssa.BasicBlock) []*ssa.BasicBlock {
	body := map[*ssa.BasicBlock]bool{header: true}
	var stack []*ssa.BasicBlock
	for _, l := range latches {
		if !body[l] {
			body[l] = true
			stack = append(stack, l)
		}
	}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range b.Predecessors() {
			if !body[p] {
				body[p] = true
				stack = append(stack, p)
			}
		}
	}
	out := make([]*ssa.BasicBlock, 0, len(body))
	for b := range body {
		out = append(out, b)
	}
	return out
}

func sortedBlocks(bs []*ssa.BasicBlock) []*ssa.BasicBlock {
	out := append([]*ssa.BasicBlock(nil), bs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Label() < out[j].Label() })
	return out
}

func dedupBlocks(bs []*ssa.BasicBlock) []*ssa.BasicBlock {
	seen := make(map[*ssa.BasicBlock]bool)
	var out []*ssa.BasicBlock
	for _, b := range bs {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return sortedBlocks(out)
}

// populateClosingPhiPlaceholders leaves ClosingPhi empty until MakeLCSSA
// actually inserts the exit-block phis; Loops() only discovers loop shape,
// it never mutates the function.
func populateClosingPhiPlaceholders(info *LoopInfo) {}

// MakeLCSSA rewrites f so that every value defined inside a loop and used
// outside it passes through an exit-block phi. It must be called
// explicitly by a transform pass (it mutates the CFG's def-use graph);
// Loops() itself never does.
func MakeLCSSA(f *ssa.Function) {
	lf := Loops(f)
	dt := Dominators(f)
	for _, node := range lf.nodes {
		if !node.Proper() {
			continue
		}
		closeLoopLiveOuts(f, node.Loop, lf, dt)
	}
	f.InvalidateCFGInfo()
}

func closeLoopLiveOuts(f *ssa.Function, loop *LoopInfo, lf *LoopForest, dt *DominatorTree) {
	bodySet := make(map[*ssa.BasicBlock]bool, len(loop.Inner))
	for _, b := range loop.Inner {
		bodySet[b] = true
	}

	var defs []ssa.Instruction
	for _, b := range loop.Inner {
		for _, inst := range b.Instructions() {
			if usedOutsideLoop(inst, bodySet) {
				defs = append(defs, inst)
			}
		}
	}

	for _, def := range defs {
		for _, exit := range loop.ExitBlock {
			if bodySet[exit] {
				continue
			}
			key := ExitUse{Exit: exit, Def: def}
			if _, ok := loop.ClosingPhi[key]; ok {
				continue
			}
			b := ssa.NewBuilder(f.Module().Context(), f)
			b.SetInsertPoint(exit, firstNonPhi(exit))
			phi := b.AddPhi(def.AsValue().Type())
			for _, p := range exit.Predecessors() {
				if bodySet[p] {
					phi.AddIncoming(p, def.AsValue())
				} else {
					phi.AddIncoming(p, defaultUndef(f, def.AsValue().Type()))
				}
			}
			loop.ClosingPhi[key] = phi
			redirectOutsideUses(def, phi, bodySet, exit, dt)
		}
	}
}

func usedOutsideLoop(inst ssa.Instruction, bodySet map[*ssa.BasicBlock]bool) bool {
	for _, u := range inst.AsValue().Uses() {
		user, ok := u.User.(ssa.Instruction)
		if !ok {
			continue
		}
		if !bodySet[user.Parent()] {
			return true
		}
	}
	return false
}

func firstNonPhi(b *ssa.BasicBlock) ssa.Instruction {
	nonPhi := b.NonPhiInstructions()
	if len(nonPhi) == 0 {
		return nil
	}
	return nonPhi[0]
}

func defaultUndef(f *ssa.Function, typ sctx.Type) *ssa.Value {
	return f.Module().ConstantValue(f.Module().Context().Undef(typ))
}

// redirectOutsideUses rewrites every use of def that lies outside the loop
// (and is dominated by exit) to read phi instead.
func redirectOutsideUses(def ssa.Instruction, phi *ssa.PhiInst, bodySet map[*ssa.BasicBlock]bool, exit *ssa.BasicBlock, dt *DominatorTree) {
	uses := append([]ssa.Use(nil), def.AsValue().Uses()...)
	for _, u := range uses {
		user, ok := u.User.(ssa.Instruction)
		if !ok || bodySet[user.Parent()] || user.AsValue() == phi.AsValue() {
			continue
		}
		if !dt.Dominates(exit, user.Parent()) {
			continue
		}
		user.SetOperand(u.Slot, phi.AsValue())
	}
}
