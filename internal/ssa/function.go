package ssa

import "scatha/internal/sctx"

// Parameter is a function argument; it is a Value (KindParameter) that
// participates in the use-def graph like any other operand source.
type Parameter struct {
	Value
	index int
}

func (p *Parameter) Index() int    { return p.index }
func (p *Parameter) AsValue() *Value { return &p.Value }

// AttrMemoryWriteNone marks a function whose attribute set guarantees it
// never writes memory; DCE treats calls to such functions as free of side
// effects.
const AttrMemoryWriteNone = "Memory_WriteNone"

// Function is an ordered sequence of BasicBlocks (the first is the entry),
// a parameter list, a return type, an attribute set, and lazily computed
// invalidatable analysis artifacts.
//
// The analysis cache is generic and untyped at this layer on purpose:
// package analysis defines its own cached result types and
// reads/writes the cache through GetOrCompute, so package ssa never needs
// to import package analysis.
type Function struct {
	Value
	name       string
	external   bool
	params     []*Parameter
	returnType sctx.Type
	attrs      map[string]bool
	blocks     []*BasicBlock
	module     *Module

	analysisCache map[string]any
	nameCounter   int
	valueCounter  int
}

func newFunction(name string, params []sctx.Type, returnType sctx.Type, ctx *sctx.Context) *Function {
	f := &Function{
		Value:      newValue(KindFunction, ctx.PtrType()),
		name:       name,
		returnType: returnType,
		attrs:      make(map[string]bool),
	}
	f.Value.name = name
	for idx, pt := range params {
		p := &Parameter{Value: newValue(KindParameter, pt), index: idx}
		p.Value.assignID(f.nextValueID())
		f.params = append(f.params, p)
	}
	return f
}

// nextValueID hands out the next function-unique value identifier, used to
// give every unnamed instruction and parameter a stable "%<id>" slot in the
// textual form.
func (f *Function) nextValueID() int {
	f.valueCounter++
	return f.valueCounter
}

func (f *Function) AsValue() *Value         { return &f.Value }
func (f *Function) Name() string            { return f.name }
func (f *Function) External() bool          { return f.external }
func (f *Function) SetExternal(v bool)      { f.external = v }
func (f *Function) Params() []*Parameter    { return f.params }
func (f *Function) ReturnType() sctx.Type   { return f.returnType }
func (f *Function) Blocks() []*BasicBlock   { return f.blocks }
func (f *Function) Module() *Module         { return f.module }

// Entry returns the function's entry block (the first block), or nil if
// the function has no blocks yet (an external declaration).
func (f *Function) Entry() *BasicBlock {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

func (f *Function) HasAttr(name string) bool { return f.attrs[name] }
func (f *Function) SetAttr(name string)      { f.attrs[name] = true }

// NewBlock creates and appends a new block named name (made unique within
// the function) to the function's block list.
func (f *Function) NewBlock(name string) *BasicBlock {
	b := newBasicBlock(f.uniqueBlockName(name))
	b.parent = f
	f.blocks = append(f.blocks, b)
	f.invalidateCFGInfo()
	return b
}

// AddBlock appends an already-constructed block (used when splitting edges
// or cloning) and wires its parent pointer.
func (f *Function) AddBlock(b *BasicBlock) {
	b.parent = f
	f.blocks = append(f.blocks, b)
	f.invalidateCFGInfo()
}

// RemoveBlock detaches b from the function's block list. Callers must have
// already cleared all predecessor/successor edges into and out of b.
func (f *Function) RemoveBlock(b *BasicBlock) {
	for i, existing := range f.blocks {
		if existing == b {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
			f.invalidateCFGInfo()
			return
		}
	}
}

func (f *Function) uniqueBlockName(want string) string {
	if want == "" {
		want = "bb"
	}
	for _, b := range f.blocks {
		if b.label == want {
			f.nameCounter++
			return f.uniqueBlockName(want + "." + itoa(f.nameCounter))
		}
	}
	return want
}

// InvalidateCFGInfo drops every cached analysis artifact. Every
// structural CFG mutator must call this before returning.
func (f *Function) invalidateCFGInfo() { f.analysisCache = nil }

// InvalidateCFGInfo is the exported form transform passes call explicitly
// after a batch of structural edits.
func (f *Function) InvalidateCFGInfo() { f.invalidateCFGInfo() }

// GetOrCompute primes and returns a cached analysis artifact keyed by a
// pass-chosen string (conventionally the analysis's package-qualified
// name). This is the lazy compute-on-first-read idiom: analyses
// outside package ssa call this instead of reaching into unexported
// fields.
func GetOrCompute[T any](f *Function, key string, compute func() T) T {
	if f.analysisCache == nil {
		f.analysisCache = make(map[string]any)
	}
	if cached, ok := f.analysisCache[key]; ok {
		return cached.(T)
	}
	v := compute()
	f.analysisCache[key] = v
	return v
}

// ReplaceAllUses rewrites every use of a value across the whole module it
// belongs to.
func ReplaceAllUses(old, newVal *Value) { replaceAllUsesWith(old, newVal) }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
