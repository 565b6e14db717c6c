package analysis

import (
	"sort"

	"scatha/internal/ssa"
)

// CallGraphNode is one function's node in the call graph: its direct
// callees/callers and, once SCCs are computed, the SCCNode it belongs to.
// Self-calls are not recorded as graph edges, since the inliner handles
// self-recursion separately, but are still reported by IsRecursive.
type CallGraphNode struct {
	Function   *ssa.Function
	Callees    []*CallGraphNode
	Callers    []*CallGraphNode
	Callsites  map[*CallGraphNode][]*ssa.CallInst
	selfCalls  bool
	scc        *SCCNode
}

func (n *CallGraphNode) SCC() *SCCNode { return n.scc }

// IsRecursive reports whether the function calls itself directly.
func (n *CallGraphNode) IsRecursive() bool { return n.selfCalls }

// SCCNode groups one strongly-connected component of the call graph: a set
// of mutually (possibly transitively) recursive functions, or a single
// non-recursive function. Leaf-first topological order over SCCNode edges
// is the order a bottom-up interprocedural pass should visit functions in.
type SCCNode struct {
	Nodes      []*CallGraphNode
	Successors []*SCCNode
	Predecessors []*SCCNode
}

// Recursive reports whether this SCC is a cycle: either more than one
// function, or a single self-recursive function.
func (s *SCCNode) Recursive() bool {
	return len(s.Nodes) > 1 || (len(s.Nodes) == 1 && s.Nodes[0].selfCalls)
}

// CallGraph is the whole-module call graph plus its SCC decomposition.
type CallGraph struct {
	nodes   map[*ssa.Function]*CallGraphNode
	sccs    []*SCCNode
}

// NodeFor returns fn's call graph node.
func (cg *CallGraph) NodeFor(fn *ssa.Function) *CallGraphNode { return cg.nodes[fn] }

// SCCs returns every strongly-connected component, in the reverse
// topological order Tarjan's algorithm naturally produces: callees' SCCs
// are emitted before their callers' (a bottom-up order).
func (cg *CallGraph) SCCs() []*SCCNode { return cg.sccs }

// ComputeCallGraph builds the direct call graph and its SCC decomposition
// for every defined (non-external) function in m. Indirect calls (through
// a Callee.Indirect pointer value) are conservatively not represented as
// edges.
func ComputeCallGraph(m *ssa.Module) *CallGraph {
	cg := &CallGraph{nodes: make(map[*ssa.Function]*CallGraphNode)}
	for _, fn := range m.Functions() {
		cg.nodes[fn] = &CallGraphNode{Function: fn, Callsites: make(map[*CallGraphNode][]*ssa.CallInst)}
	}
	for _, fn := range m.Functions() {
		node := cg.nodes[fn]
		for _, b := range fn.Blocks() {
			for _, inst := range b.Instructions() {
				call, ok := inst.(*ssa.CallInst)
				if !ok || call.Callee.Direct == nil {
					continue
				}
				callee := call.Callee.Direct
				if callee == fn {
					node.selfCalls = true
					continue
				}
				calleeNode := cg.nodes[callee]
				if calleeNode == nil {
					continue
				}
				if !containsNode(node.Callees, calleeNode) {
					node.Callees = append(node.Callees, calleeNode)
					calleeNode.Callers = append(calleeNode.Callers, node)
				}
				node.Callsites[calleeNode] = append(node.Callsites[calleeNode], call)
			}
		}
	}
	cg.sccs = tarjanSCCs(cg)
	return cg
}

func containsNode(xs []*CallGraphNode, n *CallGraphNode) bool {
	for _, x := range xs {
		if x == n {
			return true
		}
	}
	return false
}

// tarjanSCCs runs Tarjan's strongly-connected-components algorithm over
// the call graph's direct-call edges (Callees), then links the resulting
// SCCNodes into a graph of their own by hoisting each function-level edge
// that crosses a component boundary.
func tarjanSCCs(cg *CallGraph) []*SCCNode {
	var funcs []*ssa.Function
	for fn := range cg.nodes {
		funcs = append(funcs, fn)
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name() < funcs[j].Name() })

	index := 0
	indices := make(map[*CallGraphNode]int)
	lowlink := make(map[*CallGraphNode]int)
	onStack := make(map[*CallGraphNode]bool)
	var stack []*CallGraphNode
	var sccs []*SCCNode

	var strongconnect func(v *CallGraphNode)
	strongconnect = func(v *CallGraphNode) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range v.Callees {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			scc := &SCCNode{}
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				w.scc = scc
				scc.Nodes = append(scc.Nodes, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, fn := range funcs {
		v := cg.nodes[fn]
		if _, seen := indices[v]; !seen {
			strongconnect(v)
		}
	}

	for _, scc := range sccs {
		for _, fn := range scc.Nodes {
			for _, callee := range fn.Callees {
				succSCC := callee.scc
				if succSCC == scc || containsSCC(scc.Successors, succSCC) {
					continue
				}
				scc.Successors = append(scc.Successors, succSCC)
				succSCC.Predecessors = append(succSCC.Predecessors, scc)
			}
		}
	}
	return sccs
}

func containsSCC(xs []*SCCNode, n *SCCNode) bool {
	for _, x := range xs {
		if x == n {
			return true
		}
	}
	return false
}
