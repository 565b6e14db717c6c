package ssa

import "scatha/internal/sctx"

// GlobalVariable carries a constant initializer and a mutability flag.
// Its Value type is always a pointer: the global's
// name denotes the address of its storage, matching the textual form's
// `@name = global T value` / `@name = constant T value`.
type GlobalVariable struct {
	Value
	name      string
	valueType sctx.Type
	init      *sctx.Constant
	mutable   bool
}

func (g *GlobalVariable) AsValue() *Value       { return &g.Value }
func (g *GlobalVariable) Name() string          { return g.name }
func (g *GlobalVariable) ValueType() sctx.Type  { return g.valueType }
func (g *GlobalVariable) Init() *sctx.Constant  { return g.init }
func (g *GlobalVariable) Mutable() bool         { return g.mutable }
func (g *GlobalVariable) SetInit(c *sctx.Constant) { g.init = c }

// Module is an ordered set of Functions, an ordered set of GlobalVariables
// and externally declared functions, and a set of named struct types.
type Module struct {
	ctx       *sctx.Context
	functions []*Function
	externals []*ExternalFunction
	globals   []*GlobalVariable
	named     map[string]sctx.Type

	funcByName map[string]*Function
	globByName map[string]*GlobalVariable

	constValues map[*sctx.Constant]*Value
}

func NewModule(ctx *sctx.Context) *Module {
	return &Module{
		ctx:        ctx,
		named:      make(map[string]sctx.Type),
		funcByName: make(map[string]*Function),
		globByName: make(map[string]*GlobalVariable),
	}
}

func (m *Module) Context() *sctx.Context           { return m.ctx }
func (m *Module) Functions() []*Function           { return m.functions }
func (m *Module) Externals() []*ExternalFunction    { return m.externals }
func (m *Module) Globals() []*GlobalVariable        { return m.globals }
func (m *Module) FunctionByName(name string) *Function { return m.funcByName[name] }
func (m *Module) GlobalByName(name string) *GlobalVariable { return m.globByName[name] }

// NewFunction declares a function with a body (blocks are added later via
// Function.NewBlock) and registers it under a module-unique name.
func (m *Module) NewFunction(name string, params []sctx.Type, returnType sctx.Type) *Function {
	if _, taken := m.funcByName[name]; taken {
		panic("duplicate function name in module: " + name)
	}
	f := newFunction(name, params, returnType, m.ctx)
	f.module = m
	m.functions = append(m.functions, f)
	m.funcByName[name] = f
	return f
}

// NewExternal declares an external (bodyless) function.
func (m *Module) NewExternal(name string, params []sctx.Type, returnType sctx.Type) *ExternalFunction {
	e := NewExternalFunction(name, params, returnType)
	m.externals = append(m.externals, e)
	return e
}

// NewGlobal declares a module-level GlobalVariable.
func (m *Module) NewGlobal(name string, valueType sctx.Type, init *sctx.Constant, mutable bool) *GlobalVariable {
	if _, taken := m.globByName[name]; taken {
		panic("duplicate global name in module: " + name)
	}
	g := &GlobalVariable{
		Value:     newValue(KindGlobal, m.ctx.PtrType()),
		name:      name,
		valueType: valueType,
		init:      init,
		mutable:   mutable,
	}
	m.globals = append(m.globals, g)
	m.globByName[name] = g
	return g
}

// DeclareStruct registers a named struct type in the module's named-type
// set.
func (m *Module) DeclareStruct(name string, fields []sctx.Field) sctx.Type {
	t := m.ctx.StructType(name, fields)
	m.named[name] = t
	return t
}

func (m *Module) NamedType(name string) (sctx.Type, bool) {
	t, ok := m.named[name]
	return t, ok
}
