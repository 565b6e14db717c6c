package analysis

import (
	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

const pointerKey = "analysis.pointerinfo"

// builtinAllocatorNames names the external functions PointerAnalysis
// treats as the builtin allocator. A real front end would widen this
// list, but the analysis itself is agnostic to how it is populated.
var builtinAllocatorNames = map[string]bool{
	"__scatha_alloc": true,
	"malloc":         true,
}

// RecognizeAllocator registers name as a builtin allocator for the
// purposes of PointerAnalysis. Exposed so front ends/drivers can widen the
// recognized set without forking this package.
func RecognizeAllocator(name string) { builtinAllocatorNames[name] = true }

func isBuiltinAllocCall(c *ssa.CallInst) bool {
	switch {
	case c.Callee.External != nil:
		return builtinAllocatorNames[c.Callee.External.Name()]
	case c.Callee.Direct != nil:
		return builtinAllocatorNames[c.Callee.Direct.Name()]
	default:
		return false
	}
}

// PointerAnalysisResult is a thin marker type so its presence in the
// function's analysis cache means "PointerInfo has been computed and
// installed on every pointer Value of this function"; the actual results
// live on the Values themselves via Value.SetPointerInfo
type PointerAnalysisResult struct{}

// PointerAnalysis runs the forward fixpoint over every
// instruction of f that produces a pointer value, installing a PointerInfo
// on each. Idempotent and safe to call repeatedly; results are cached and
// invalidated with the rest of f's CFG-dependent analyses.
func PointerAnalysis(f *ssa.Function) {
	ssa.GetOrCompute(f, pointerKey, func() PointerAnalysisResult {
		computePointerInfo(f)
		return PointerAnalysisResult{}
	})
}

func computePointerInfo(f *ssa.Function) {
	changed := true
	for changed {
		changed = false
		for _, b := range f.Blocks() {
			for _, inst := range b.Instructions() {
				if updatePointerInfo(inst) {
					changed = true
				}
			}
		}
	}
}

// updatePointerInfo recomputes inst's PointerInfo (if it produces a
// pointer) from its operands' current info, returning whether the info
// changed (drives the fixpoint).
func updatePointerInfo(inst ssa.Instruction) bool {
	v := inst.AsValue()
	if !isPointerType(v) {
		return false
	}
	var next *ssa.PointerInfo
	switch i := inst.(type) {
	case *ssa.AllocaInst:
		next = &ssa.PointerInfo{
			Align:        i.Elem.Align(),
			HasValidSize: i.Count() == nil,
			ValidSize:    i.Elem.Size(),
			Provenance:   ssa.Provenance{Kind: ssa.ProvStatic, Inst: i},
			HasOffset:    true,
			Offset:       0,
			NotNull:      true,
		}
	case *ssa.GEPInst:
		next = gepPointerInfo(i)
	case *ssa.ExtractValueInst:
		next = extractValuePointerInfo(i)
	case *ssa.CallInst:
		if isBuiltinAllocCall(i) {
			next = &ssa.PointerInfo{Align: 16, HasValidSize: false, Provenance: ssa.Provenance{Kind: ssa.ProvStatic, Inst: i}, NotNull: true}
		} else {
			next = &ssa.PointerInfo{Provenance: ssa.Provenance{Kind: ssa.ProvDynamic, Val: i.AsValue()}}
		}
	default:
		next = &ssa.PointerInfo{Provenance: ssa.Provenance{Kind: ssa.ProvDynamic, Val: v}}
	}
	if pointerInfoEqual(v.PointerInfo(), next) {
		return false
	}
	v.SetPointerInfo(next)
	return true
}

func isPointerType(v *ssa.Value) bool {
	_, ok := v.Type().(*sctx.PointerType)
	return ok
}

func gepPointerInfo(g *ssa.GEPInst) *ssa.PointerInfo {
	base := g.Base().PointerInfo()
	if base == nil {
		return &ssa.PointerInfo{Provenance: ssa.Provenance{Kind: ssa.ProvDynamic, Val: g.Base()}}
	}
	constIdx, isConst := constIndex(g.ArrayIndex())
	out := &ssa.PointerInfo{
		Provenance: base.Provenance,
		NotNull:    base.NotNull && (!isConst || constIdx == 0),
	}
	memberOffset := 0
	cur := g.InboundsType
	for _, m := range g.MemberIndices {
		off, next, ok := memberOffsetOf(cur, m)
		if !ok {
			break
		}
		memberOffset += off
		cur = next
	}
	if isConst {
		byteOffset := constIdx*int64(g.InboundsType.Size()) + int64(memberOffset)
		if base.HasOffset {
			out.HasOffset = true
			out.Offset = base.Offset + int(byteOffset)
		}
		out.Align = gcdAlign(base.Align, int(byteOffset))
		if base.HasValidSize {
			out.HasValidSize = true
			out.ValidSize = base.ValidSize - int(byteOffset)
		}
	} else {
		out.Align = gcdAlign(base.Align, g.InboundsType.Size())
	}
	return out
}

// memberOffsetOf returns the byte offset and type of field idx within t, or
// ok=false if t is not a record type or idx is out of range.
func memberOffsetOf(t sctx.Type, idx int) (offset int, next sctx.Type, ok bool) {
	rec, isRec := t.(*sctx.RecordType)
	if !isRec || idx < 0 || idx >= len(rec.Fields) {
		return 0, t, false
	}
	f := rec.Fields[idx]
	return f.Offset, f.Type, true
}

func constIndex(v *ssa.Value) (int64, bool) {
	if v == nil {
		return 0, true // absent array index is treated as constant 0
	}
	c := v.Constant()
	if c == nil || v.Kind() != ssa.KindConstant {
		return 0, false
	}
	return c.Int, true
}

func gcdAlign(a, b int) int {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func extractValuePointerInfo(e *ssa.ExtractValueInst) *ssa.PointerInfo {
	if !isPointerType(e.AsValue()) {
		return nil
	}
	agg := e.Agg().PointerInfo()
	if agg == nil {
		return &ssa.PointerInfo{Provenance: ssa.Provenance{Kind: ssa.ProvDynamic, Val: e.AsValue()}}
	}
	cp := *agg
	return &cp
}

func pointerInfoEqual(a, b *ssa.PointerInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// MayAlias answers the alias query over two pointer Values' current
// PointerInfo. Pointers may alias unless their provenances prove
// disjointness: two distinct static allocation sites (which covers both
// the alloca-vs-alloca and the alloca-vs-builtin-allocator families),
// or a non-escaping alloca against any pointer not derived from it.
func MayAlias(a, b *ssa.Value) bool {
	pa, pb := a.PointerInfo(), b.PointerInfo()
	if pa == nil || pb == nil {
		return true
	}
	if pa.Provenance.Kind == ssa.ProvStatic && pb.Provenance.Kind == ssa.ProvStatic &&
		!pa.Provenance.Equal(pb.Provenance) {
		return false
	}
	if pa.NonEscaping && !pa.Provenance.Equal(pb.Provenance) {
		return false
	}
	if pb.NonEscaping && !pb.Provenance.Equal(pa.Provenance) {
		return false
	}
	return true
}
