package transform

import (
	"sort"
	"strings"

	"scatha/internal/analysis"
	"scatha/internal/pass"
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

func init() {
	pass.Register(&pass.Descriptor{
		Name:     "sroa",
		Category: pass.CategoryTransform,
		Requires: []string{"ssa"},
		Provides: []string{"ssa"},
		Function: SROA,
	})
}

// SROA runs Scalar Replacement of Aggregates over every candidate alloca in
// f's entry block: for each alloca whose every use resolves
// to a statically known byte offset, materialize one alloca per accessed
// member and rewrite loads/stores to address those directly, discarding the
// aggregate alloca and its now-dead GEP chains. Idempotent: re-running it
// over the resulting slice allocas is a no-op once they no longer have
// aggregate type, so the driver can rerun it to a fixed point cheaply.
func SROA(f *ssa.Function) bool {
	changed := false
	for round := 0; round < 4; round++ {
		entry := f.Entry()
		if entry == nil {
			break
		}
		roundChanged := false
		for _, inst := range append([]ssa.Instruction(nil), entry.Instructions()...) {
			alloca, ok := inst.(*ssa.AllocaInst)
			if !ok {
				continue
			}
			if sroaAlloca(f, alloca) {
				roundChanged = true
			}
		}
		if !roundChanged {
			break
		}
		changed = true
		f.InvalidateCFGInfo()
		Mem2Reg(f)
	}
	return changed
}

// access is one static load or store reached from an alloca through a chain
// of constant-offset GEPs.
type access struct {
	inst   ssa.Instruction
	offset int
	size   int
}

// bulkAccess is one recognized memcpy/memset call whose pointer argument
// derives from the alloca at a static offset, with a constant byte length.
type bulkAccess struct {
	call     *ssa.CallInst
	ptrArg   int // index in Args() of the alloca-derived pointer
	isMemcpy bool
	offset   int
	size     int
}

// bulkMemoryNames are the external entry points SROA recognizes as plain
// byte-wise memcpy/memset with a (ptr, ptr-or-value, constant length)
// signature.
var bulkMemoryNames = map[string]bool{
	"memcpy":           true,
	"memset":           true,
	"__builtin_memcpy": true,
	"__builtin_memset": true,
}

func bulkCallKind(c *ssa.CallInst) (isMemcpy, ok bool) {
	var name string
	switch {
	case c.Callee.External != nil:
		name = c.Callee.External.Name()
	case c.Callee.Direct != nil:
		name = c.Callee.Direct.Name()
	default:
		return false, false
	}
	if !bulkMemoryNames[name] {
		return false, false
	}
	return !strings.Contains(name, "memset"), true
}

// maxSROAAggregateSize bounds the aggregates this pass will tear apart:
// element-wise access trees of very large arrays cost more to build and
// slice than register promotion of the pieces could ever pay back.
const maxSROAAggregateSize = 4096

// sroaAlloca attempts the three-phase algorithm on one
// candidate. Phase 1 (analyze) and phase 3 (slice and replace) are
// implemented in full, including per-slice splitting of recognized
// memcpy/memset calls; phase 2 (phi rewrite) is deliberately
// conservative — see the doc comment on phiBearing below.
func sroaAlloca(f *ssa.Function, alloca *ssa.AllocaInst) bool {
	if !recordOrArrayType(alloca.Elem) || alloca.Elem.Size() > maxSROAAggregateSize {
		return false
	}
	accesses, bulk, gepChain, phiBearing, ok := analyzeAccesses(alloca)
	if !ok {
		return false
	}
	if phiBearing {
		// Speculatively cloning accesses across a phi's incoming edges is
		// only sound under execution-hazard guards that are easy to get
		// subtly wrong, so any use that reaches a phi disqualifies the
		// whole alloca here: forgone slicing, never wrong IR.
		return false
	}
	if len(accesses) == 0 {
		// A bulk-only alloca gains nothing from slicing (no load/store to
		// promote afterward), and re-slicing it every round would never
		// settle.
		return false
	}

	tree := analysis.BuildAccessTree(alloca.Elem, 0)
	slices := map[sliceKey]analysis.AccessNode{}
	for _, a := range accesses {
		node, ok := analysis.NodeAt(tree, a.offset, a.size)
		if !ok {
			// The access doesn't land on a whole member boundary (e.g. a
			// read spanning two fields at once). Splicing that would need
			// byte-level masking; this IR's types are always byte-addressed with no
			// sub-byte bitfields, so in practice every real access here
			// does resolve to a node, and the conservative bail below only
			// ever fires on a malformed or already-degenerate alloca.
			return false
		}
		slices[sliceKey{node.Offset, node.Type.Size()}] = node
	}
	// Every memcpy/memset range must tile exactly onto access-tree nodes,
	// refined down to the granularity of the scalar accesses above; the
	// tiles join the slice set so a bulk copy can be split per slice.
	// Computed in full before any rewrite so a failure commits nothing.
	bulkTiles := make([][]analysis.AccessNode, len(bulk))
	for i, bop := range bulk {
		tiles, ok := tileBulkRange(tree, slices, bop.offset, bop.size)
		if !ok {
			return false
		}
		bulkTiles[i] = tiles
		for _, tn := range tiles {
			slices[sliceKey{tn.Offset, tn.Type.Size()}] = tn
		}
	}
	// Two accesses at different granularity (a whole-record access plus a
	// field access inside it) would put overlapping byte ranges into
	// separate slice allocas that no longer alias; bail rather than tear
	// such an alloca apart.
	if slicesOverlap(slices) {
		return false
	}
	// A single slice covering the whole aggregate is a rename, not a
	// split: performing it would report a change on every rerun without
	// ever settling.
	if len(slices) == 1 {
		if _, whole := slices[sliceKey{0, alloca.Elem.Size()}]; whole {
			return false
		}
	}

	ctx := f.Module().Context()
	builder := ssa.NewBuilder(ctx, f)
	entry := alloca.Parent()
	builder.SetInsertPoint(entry, alloca)

	newAllocas := make(map[sliceKey]*ssa.AllocaInst, len(slices))
	for _, key := range sortedSliceKeys(slices) {
		node := slices[key]
		one := ctx.IntConstant(1, 64)
		newAllocas[key] = builder.AddAlloca(node.Type, f.Module().ConstantValue(one))
	}

	for _, a := range accesses {
		node, _ := analysis.NodeAt(tree, a.offset, a.size)
		slice := newAllocas[sliceKey{node.Offset, node.Type.Size()}]
		switch inst := a.inst.(type) {
		case *ssa.LoadInst:
			inst.SetOperand(0, slice.AsValue())
		case *ssa.StoreInst:
			inst.SetOperand(0, slice.AsValue())
		}
	}

	for i, bop := range bulk {
		rewriteBulkCall(f, builder, bop, bulkTiles[i], newAllocas)
	}

	for _, gep := range gepChain {
		if gep.AsValue().IsUnused() {
			gep.Parent().Erase(gep)
		}
	}
	if alloca.AsValue().IsUnused() {
		alloca.Parent().Erase(alloca)
	}
	return true
}

// tileBulkRange covers [off, off+size) with access-tree nodes: a node
// fully inside the range is taken whole unless a finer-grained scalar
// slice lives strictly inside it, in which case its children are used
// instead. ok is false when the range cuts through a leaf (it does not
// end on a member boundary) or falls outside the tree.
func tileBulkRange(tree analysis.AccessNode, scalarSlices map[sliceKey]analysis.AccessNode, off, size int) ([]analysis.AccessNode, bool) {
	end := off + size
	var tiles []analysis.AccessNode
	var walk func(n analysis.AccessNode) bool
	walk = func(n analysis.AccessNode) bool {
		ns, ne := n.Offset, n.Offset+n.Type.Size()
		if ne <= off || ns >= end {
			return true
		}
		if ns >= off && ne <= end && !needsRefinement(n, scalarSlices) {
			tiles = append(tiles, n)
			return true
		}
		if len(n.Children) == 0 {
			return false
		}
		for _, c := range n.Children {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	if !walk(tree) || len(tiles) == 0 {
		return nil, false
	}
	return tiles, true
}

// needsRefinement reports whether a scalar access slices strictly inside
// n, forcing a bulk tile at n to split into n's children so the pieces
// stay addressable at the scalar accesses' granularity.
func needsRefinement(n analysis.AccessNode, scalarSlices map[sliceKey]analysis.AccessNode) bool {
	ns, ne := n.Offset, n.Offset+n.Type.Size()
	for key := range scalarSlices {
		if key.offset == ns && key.size == ne-ns {
			continue // same granularity, no conflict
		}
		if key.offset >= ns && key.offset+key.size <= ne {
			return true
		}
	}
	return false
}

// rewriteBulkCall replaces one memcpy/memset with one call per covered
// slice: the alloca-derived pointer argument becomes the slice alloca,
// the length shrinks to the slice's size, and for a memcpy the opposite
// pointer advances by the slice's offset within the copied range (an
// i8-typed byte-offset GEP, elided when zero).
func rewriteBulkCall(f *ssa.Function, builder *ssa.Builder, bop bulkAccess, tiles []analysis.AccessNode, newAllocas map[sliceKey]*ssa.AllocaInst) {
	ctx := f.Module().Context()
	call := bop.call
	sizeBits := bitsOf(call.Args()[2].Type())
	builder.SetInsertPoint(call.Parent(), call)
	for _, tn := range tiles {
		slice := newAllocas[sliceKey{tn.Offset, tn.Type.Size()}]
		args := append([]*ssa.Value(nil), call.Args()...)
		args[bop.ptrArg] = slice.AsValue()
		if bop.isMemcpy {
			other := 1 - bop.ptrArg
			if delta := tn.Offset - bop.offset; delta != 0 {
				adv := builder.AddGEP(args[other],
					f.Module().ConstantValue(ctx.IntConstant(int64(delta), 64)),
					ctx.IntType(8), nil)
				args[other] = adv.AsValue()
			}
		}
		args[2] = f.Module().ConstantValue(ctx.IntConstant(int64(tn.Type.Size()), sizeBits))
		builder.AddCall(call.Callee, args, call.Type())
	}
	call.Parent().Erase(call)
}

// sliceKey identifies one slice alloca by its byte range within the
// original aggregate.
type sliceKey struct {
	offset int
	size   int
}

func slicesOverlap(slices map[sliceKey]analysis.AccessNode) bool {
	keys := sortedSliceKeys(slices)
	for i := 1; i < len(keys); i++ {
		prev, cur := keys[i-1], keys[i]
		if prev.offset+prev.size > cur.offset {
			return true
		}
	}
	return false
}

// analyzeAccesses traces every transitive use of alloca's address. It
// returns the set of loads/stores at statically known offsets, the
// recognized memcpy/memset calls touching the alloca at constant ranges,
// the GEP chain that led to them (left dead once rewritten), and
// whether any use reaches a phi. ok is false if any use escapes in a way
// that cannot be resolved to a static offset (stored elsewhere, passed to
// an unrecognized call, a non-constant array index, or any instruction
// kind other than Load/Store/GEP/Phi/recognized-call).
func analyzeAccesses(alloca *ssa.AllocaInst) (accesses []access, bulk []bulkAccess, geps []*ssa.GEPInst, phiBearing bool, ok bool) {
	type frontier struct {
		val    *ssa.Value
		offset int
		typ    sctx.Type
	}
	var stack []frontier
	stack = append(stack, frontier{alloca.AsValue(), 0, alloca.Elem})
	visited := map[*ssa.Value]bool{}
	bulkSeen := map[*ssa.CallInst]bool{}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur.val] {
			continue
		}
		visited[cur.val] = true

		for _, u := range cur.val.Uses() {
			switch inst := u.User.(type) {
			case *ssa.LoadInst:
				if inst.Addr() != cur.val {
					return nil, nil, nil, false, false
				}
				accesses = append(accesses, access{inst, cur.offset, inst.Type().Size()})
			case *ssa.StoreInst:
				if inst.Addr() != cur.val || inst.Val() == cur.val {
					return nil, nil, nil, false, false
				}
				accesses = append(accesses, access{inst, cur.offset, inst.Val().Type().Size()})
			case *ssa.GEPInst:
				if inst.Base() != cur.val {
					return nil, nil, nil, false, false
				}
				idx, isConst := constIntValue(inst.ArrayIndex())
				if !isConst {
					return nil, nil, nil, false, false
				}
				memberOff, resultType := walkMembers(inst.InboundsType, inst.MemberIndices)
				newOffset := cur.offset + idx*inst.InboundsType.Size() + memberOff
				geps = append(geps, inst)
				stack = append(stack, frontier{inst.AsValue(), newOffset, resultType})
			case *ssa.CallInst:
				ba, callOK := recognizeBulkCall(inst, cur.val, cur.offset)
				if !callOK || bulkSeen[inst] {
					// An unrecognized call is an escape; so is one call
					// reached through two different derived pointers
					// (copying the alloca onto itself).
					return nil, nil, nil, false, false
				}
				bulkSeen[inst] = true
				bulk = append(bulk, ba)
			case *ssa.PhiInst:
				phiBearing = true
			default:
				return nil, nil, nil, false, false
			}
		}
	}
	return accesses, bulk, geps, phiBearing, true
}

// recognizeBulkCall checks that call is a known memcpy/memset, that ptr
// (derived from the alloca at offset) appears in exactly one pointer
// argument slot, that the length is a compile-time constant, and that the
// call's own result is unused (splitting the call per slice cannot
// preserve a consumed result).
func recognizeBulkCall(call *ssa.CallInst, ptr *ssa.Value, offset int) (bulkAccess, bool) {
	isMemcpy, ok := bulkCallKind(call)
	if !ok || !call.AsValue().IsUnused() {
		return bulkAccess{}, false
	}
	args := call.Args()
	if len(args) != 3 {
		return bulkAccess{}, false
	}
	n, ok := constIntValue(args[2])
	if !ok || n <= 0 {
		return bulkAccess{}, false
	}
	ptrSlots := 2
	if !isMemcpy {
		ptrSlots = 1 // memset's second argument is the fill value
	}
	ptrArg := -1
	for i := 0; i < ptrSlots; i++ {
		if args[i] == ptr {
			if ptrArg >= 0 {
				return bulkAccess{}, false
			}
			ptrArg = i
		}
	}
	if ptrArg < 0 {
		return bulkAccess{}, false
	}
	return bulkAccess{call: call, ptrArg: ptrArg, isMemcpy: isMemcpy, offset: offset, size: n}, true
}

// walkMembers descends t through a sequence of constant record-field
// indices, returning the accumulated byte offset and the type found at the
// end of the chain (base + arrayIndex*elemSize + sum(memberOffsets)).
func walkMembers(t sctx.Type, indices []int) (offset int, result sctx.Type) {
	cur := t
	for _, idx := range indices {
		rt, ok := cur.(*sctx.RecordType)
		if !ok || idx < 0 || idx >= len(rt.Fields) {
			return offset, cur
		}
		offset += rt.Fields[idx].Offset
		cur = rt.Fields[idx].Type
	}
	return offset, cur
}

func constIntValue(v *ssa.Value) (int, bool) {
	if v == nil || v.Kind() != ssa.KindConstant {
		return 0, false
	}
	c := v.Constant()
	if c == nil || c.Kind != sctx.ConstInt {
		return 0, false
	}
	return int(c.Int), true
}

func recordOrArrayType(t sctx.Type) bool {
	switch t.(type) {
	case *sctx.RecordType, *sctx.ArrayType:
		return true
	default:
		return false
	}
}

func sortedSliceKeys(m map[sliceKey]analysis.AccessNode) []sliceKey {
	out := make([]sliceKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].offset != out[j].offset {
			return out[i].offset < out[j].offset
		}
		return out[i].size < out[j].size
	})
	return out
}
