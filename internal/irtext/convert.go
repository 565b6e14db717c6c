package irtext

import (
	"fmt"
	"strconv"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// build turns a parsed File AST into an *ssa.Module, in three passes per
// function: first every block header (so forward branches/calls resolve),
// then every instruction body (binding each result into a per-function
// environment keyed by its literal "%token" text), then every phi's
// deferred incoming edges, which may reference values or blocks that only
// became known later in program order than the phi itself.
func build(ctx *sctx.Context, f *File) (*ssa.Module, error) {
	mod := ssa.NewModule(ctx)

	for _, item := range f.Items {
		switch {
		case item.Global != nil:
			if err := buildGlobal(ctx, mod, item.Global); err != nil {
				return nil, err
			}
		case item.External != nil:
			if err := buildExternal(ctx, mod, item.External); err != nil {
				return nil, err
			}
		}
	}
	for _, item := range f.Items {
		if item.Func != nil {
			if err := buildFunction(ctx, mod, item.Func); err != nil {
				return nil, err
			}
		}
	}
	return mod, nil
}

func buildGlobal(ctx *sctx.Context, mod *ssa.Module, g *GlobalDecl) error {
	typ, err := resolveType(ctx, mod, g.Type)
	if err != nil {
		return fmt.Errorf("global @%s: %w", g.Name, err)
	}
	init, err := resolveInit(ctx, mod, typ, g.Init)
	if err != nil {
		return fmt.Errorf("global @%s: %w", g.Name, err)
	}
	mod.NewGlobal(g.Name, typ, init, g.Kind == "global")
	return nil
}

func resolveInit(ctx *sctx.Context, mod *ssa.Module, typ sctx.Type, v *InitValue) (*sctx.Constant, error) {
	switch {
	case v.Zero:
		return nil, nil
	case v.Undef:
		return ctx.Undef(typ), nil
	case v.Null:
		return ctx.NullPointer(), nil
	case v.Bool != "":
		return ctx.BoolConstant(v.Bool == "true"), nil
	case v.Func != "":
		if _, isPtr := typ.(*sctx.PointerType); !isPtr {
			return nil, fmt.Errorf("function reference @%s with non-pointer type %s", v.Func, typ)
		}
		return ctx.FunctionConstant(v.Func), nil
	case v.Array != nil:
		at, ok := typ.(*sctx.ArrayType)
		if !ok {
			return nil, fmt.Errorf("array initializer with non-array type %s", typ)
		}
		if len(v.Array.Elems) != at.Count {
			return nil, fmt.Errorf("array initializer has %d elements, type %s wants %d", len(v.Array.Elems), typ, at.Count)
		}
		elems, err := resolveElems(ctx, mod, v.Array.Elems, func(int) sctx.Type { return at.Elem })
		if err != nil {
			return nil, err
		}
		return ctx.ArrayConstant(at.Elem, elems), nil
	case v.Struct != nil:
		rt, ok := typ.(*sctx.RecordType)
		if !ok {
			return nil, fmt.Errorf("struct initializer with non-record type %s", typ)
		}
		if len(v.Struct.Elems) != len(rt.Fields) {
			return nil, fmt.Errorf("struct initializer has %d fields, type %s wants %d", len(v.Struct.Elems), typ, len(rt.Fields))
		}
		fields, err := resolveElems(ctx, mod, v.Struct.Elems, func(i int) sctx.Type { return rt.Fields[i].Type })
		if err != nil {
			return nil, err
		}
		return ctx.RecordConstant(rt, fields), nil
	default:
		if it, ok := typ.(*sctx.IntType); ok {
			return ctx.IntConstant(v.Int, it.Bits), nil
		}
		if ft, ok := typ.(*sctx.FloatType); ok {
			return ctx.FloatConstant(v.Float, ft.Bits), nil
		}
		return nil, fmt.Errorf("initializer does not match declared type %s", typ)
	}
}

// resolveElems resolves an aggregate literal's element list, checking each
// element's written type against the enclosing type's expectation at that
// position.
func resolveElems(ctx *sctx.Context, mod *ssa.Module, elems []*TypedInit, want func(int) sctx.Type) ([]*sctx.Constant, error) {
	out := make([]*sctx.Constant, len(elems))
	for i, e := range elems {
		et, err := resolveType(ctx, mod, e.Type)
		if err != nil {
			return nil, err
		}
		if w := want(i); et != w {
			return nil, fmt.Errorf("aggregate element %d has type %s, enclosing type wants %s", i, et, w)
		}
		c, err := resolveInit(ctx, mod, et, e.Val)
		if err != nil {
			return nil, err
		}
		if c == nil {
			// "zeroinitializer" has no element-level rendering; the writer
			// never emits it inside an aggregate.
			return nil, fmt.Errorf("aggregate element %d: zeroinitializer is not valid inside an aggregate literal", i)
		}
		out[i] = c
	}
	return out, nil
}

func buildExternal(ctx *sctx.Context, mod *ssa.Module, e *ExternalDecl) error {
	ret, err := resolveType(ctx, mod, e.Return)
	if err != nil {
		return fmt.Errorf("declare @%s: %w", e.Name, err)
	}
	params := make([]sctx.Type, len(e.Params))
	for i, p := range e.Params {
		pt, err := resolveType(ctx, mod, p)
		if err != nil {
			return fmt.Errorf("declare @%s: %w", e.Name, err)
		}
		params[i] = pt
	}
	mod.NewExternal(e.Name, params, ret)
	return nil
}

// funcEnv is the per-function state threaded through instruction
// conversion: the value environment keyed by literal "%token" text, the
// block lookup keyed by label, and the phi edges deferred to the final
// pass.
type funcEnv struct {
	values map[string]*ssa.Value
	blocks map[string]*ssa.BasicBlock
	phis   []deferredPhi
}

type deferredPhi struct {
	inst  *ssa.PhiInst
	edges []*PhiEdgeRef
}

func buildFunction(ctx *sctx.Context, mod *ssa.Module, fd *FuncDecl) error {
	ret, err := resolveType(ctx, mod, fd.Return)
	if err != nil {
		return fmt.Errorf("func @%s: %w", fd.Name, err)
	}
	paramTypes := make([]sctx.Type, len(fd.Params))
	for i, p := range fd.Params {
		pt, err := resolveType(ctx, mod, p.Type)
		if err != nil {
			return fmt.Errorf("func @%s: %w", fd.Name, err)
		}
		paramTypes[i] = pt
	}
	fn := mod.NewFunction(fd.Name, paramTypes, ret)

	env := &funcEnv{values: make(map[string]*ssa.Value), blocks: make(map[string]*ssa.BasicBlock)}
	for i, p := range fd.Params {
		pv := fn.Params()[i].AsValue()
		bindResult(env, p.Name, pv)
	}

	for _, blk := range fd.Blocks {
		env.blocks[blk.Label] = fn.NewBlock(blk.Label)
	}

	for _, blk := range fd.Blocks {
		b := ssa.NewBuilder(ctx, fn)
		b.InsertAtEnd(env.blocks[blk.Label])
		for _, instr := range blk.Instrs {
			if err := convertInstr(b, ctx, mod, env, instr); err != nil {
				return fmt.Errorf("func @%s, block %s: %w", fd.Name, blk.Label, err)
			}
		}
	}

	for _, dp := range env.phis {
		for _, edge := range dp.edges {
			pred, ok := env.blocks[edge.Label]
			if !ok {
				return fmt.Errorf("func @%s: phi references unknown block %s", fd.Name, edge.Label)
			}
			val, err := resolveOperand(ctx, mod, env, edge.Val)
			if err != nil {
				return fmt.Errorf("func @%s: %w", fd.Name, err)
			}
			dp.inst.AddIncoming(pred, val)
		}
	}
	return nil
}

func bindResult(env *funcEnv, token string, v *ssa.Value) {
	env.values[token] = v
	if !isNumeric(token) {
		v.SetName(token)
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ---- Types ----

func resolveType(ctx *sctx.Context, mod *ssa.Module, t *TypeRef) (sctx.Type, error) {
	switch {
	case t.Array != nil:
		elem, err := resolveType(ctx, mod, t.Array.Elem)
		if err != nil {
			return nil, err
		}
		return ctx.ArrayType(elem, t.Array.Count), nil
	case t.Tuple != nil:
		elems := make([]sctx.Type, len(t.Tuple.Elems))
		for i, e := range t.Tuple.Elems {
			et, err := resolveType(ctx, mod, e)
			if err != nil {
				return nil, err
			}
			elems[i] = et
		}
		return ctx.TupleType(elems...), nil
	case t.Named != "":
		named, ok := mod.NamedType(t.Named)
		if !ok {
			return nil, fmt.Errorf("undeclared named type %%%s", t.Named)
		}
		return named, nil
	default:
		return resolveScalarType(ctx, t.Simple)
	}
}

func resolveScalarType(ctx *sctx.Context, name string) (sctx.Type, error) {
	switch name {
	case "void":
		return ctx.VoidType(), nil
	case "ptr":
		return ctx.PtrType(), nil
	}
	if len(name) > 1 && name[0] == 'i' {
		if bits, err := strconv.Atoi(name[1:]); err == nil {
			return ctx.IntType(bits), nil
		}
	}
	if len(name) > 1 && name[0] == 'f' {
		if bits, err := strconv.Atoi(name[1:]); err == nil {
			return ctx.FloatType(bits), nil
		}
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

// ---- Operands ----

func resolveOperand(ctx *sctx.Context, mod *ssa.Module, env *funcEnv, op *Operand) (*ssa.Value, error) {
	switch {
	case op.Undef != nil:
		typ, err := resolveScalarType(ctx, op.Undef.Type)
		if err != nil {
			return nil, err
		}
		return mod.ConstantValue(ctx.Undef(typ)), nil
	case op.ConstFloat != nil:
		typ, err := resolveScalarType(ctx, op.ConstFloat.Type)
		if err != nil {
			return nil, err
		}
		ft, ok := typ.(*sctx.FloatType)
		if !ok {
			return nil, fmt.Errorf("float literal with non-float type %s", typ)
		}
		return mod.ConstantValue(ctx.FloatConstant(op.ConstFloat.Val, ft.Bits)), nil
	case op.ConstInt != nil:
		typ, err := resolveScalarType(ctx, op.ConstInt.Type)
		if err != nil {
			return nil, err
		}
		it, ok := typ.(*sctx.IntType)
		if !ok {
			return nil, fmt.Errorf("int literal with non-int type %s", typ)
		}
		return mod.ConstantValue(ctx.IntConstant(op.ConstInt.Val, it.Bits)), nil
	case op.NullPtr:
		return mod.ConstantValue(ctx.NullPointer()), nil
	case op.Bool != "":
		return mod.ConstantValue(ctx.BoolConstant(op.Bool == "true")), nil
	case op.Local != "":
		v, ok := env.values[op.Local]
		if !ok {
			return nil, fmt.Errorf("reference to undefined value %%%s", op.Local)
		}
		return v, nil
	case op.Global != "":
		if g := mod.GlobalByName(op.Global); g != nil {
			return g.AsValue(), nil
		}
		if fn := mod.FunctionByName(op.Global); fn != nil {
			return fn.AsValue(), nil
		}
		return nil, fmt.Errorf("reference to undefined global @%s", op.Global)
	default:
		return nil, fmt.Errorf("malformed operand")
	}
}

func resolveCallee(mod *ssa.Module, env *funcEnv, c CalleeRef) (ssa.Callee, error) {
	if c.Global != "" {
		if fn := mod.FunctionByName(c.Global); fn != nil {
			return ssa.Callee{Direct: fn}, nil
		}
		for _, e := range mod.Externals() {
			if e.Name() == c.Global {
				return ssa.Callee{External: e}, nil
			}
		}
		return ssa.Callee{}, fmt.Errorf("call to undefined function @%s", c.Global)
	}
	v, ok := env.values[c.Local]
	if !ok {
		return ssa.Callee{}, fmt.Errorf("indirect call through undefined value %%%s", c.Local)
	}
	return ssa.Callee{Indirect: v}, nil
}

// ---- Instructions ----

var arithOps = map[string]sctx.ArithOp{
	"add": sctx.Add, "sub": sctx.Sub, "mul": sctx.Mul,
	"sdiv": sctx.SDiv, "udiv": sctx.UDiv, "srem": sctx.SRem, "urem": sctx.URem,
	"fadd": sctx.FAdd, "fsub": sctx.FSub, "fmul": sctx.FMul, "fdiv": sctx.FDiv, "frem": sctx.FRem,
	"and": sctx.And, "or": sctx.Or, "xor": sctx.XOr,
	"lshl": sctx.LShL, "lshr": sctx.LShR, "ashr": sctx.AShR,
}

var unaryArithOps = map[string]sctx.ArithOp{
	"neg": sctx.Neg, "fneg": sctx.FNeg, "bitnot": sctx.BitNot,
}

var compareModes = map[string]ssa.CompareMode{
	"signed": ssa.CompareSigned, "unsigned": ssa.CompareUnsigned, "float": ssa.CompareFloat,
}

var compareOps = map[string]ssa.CompareOp{
	"eq": ssa.CmpEQ, "neq": ssa.CmpNE, "ls": ssa.CmpLS, "leq": ssa.CmpLE, "grt": ssa.CmpGT, "geq": ssa.CmpGE,
}

var conversionKinds = map[string]ssa.ConversionKind{
	"zext": ssa.ConvZExt, "sext": ssa.ConvSExt, "trunc": ssa.ConvTrunc,
	"fext": ssa.ConvFExt, "ftrunc": ssa.ConvFTrunc,
	"utof": ssa.ConvUToF, "stof": ssa.ConvSToF, "ftou": ssa.ConvFToU, "ftos": ssa.ConvFToS,
	"bitcast": ssa.ConvBitcast,
}

func convertInstr(b *ssa.Builder, ctx *sctx.Context, mod *ssa.Module, env *funcEnv, instr *Instr) error {
	switch {
	case instr.Alloca != nil:
		a := instr.Alloca
		elem, err := resolveType(ctx, mod, a.Elem)
		if err != nil {
			return err
		}
		count, err := resolveOperand(ctx, mod, env, a.Count)
		if err != nil {
			return err
		}
		bindResult(env, a.Result, b.AddAlloca(elem, count).AsValue())

	case instr.Load != nil:
		l := instr.Load
		typ, err := resolveType(ctx, mod, l.Type)
		if err != nil {
			return err
		}
		addr, err := resolveOperand(ctx, mod, env, l.Addr)
		if err != nil {
			return err
		}
		bindResult(env, l.Result, b.AddLoad(addr, typ).AsValue())

	case instr.Store != nil:
		s := instr.Store
		val, err := resolveOperand(ctx, mod, env, s.Val)
		if err != nil {
			return err
		}
		addr, err := resolveOperand(ctx, mod, env, s.Addr)
		if err != nil {
			return err
		}
		b.AddStore(addr, val)

	case instr.GEP != nil:
		g := instr.GEP
		typ, err := resolveType(ctx, mod, g.Type)
		if err != nil {
			return err
		}
		base, err := resolveOperand(ctx, mod, env, g.Base)
		if err != nil {
			return err
		}
		index, err := resolveOperand(ctx, mod, env, g.Index)
		if err != nil {
			return err
		}
		bindResult(env, g.Result, b.AddGEP(base, index, typ, g.Members.Items).AsValue())

	case instr.Cmp != nil:
		c := instr.Cmp
		mode, ok := compareModes[c.Mode]
		if !ok {
			return fmt.Errorf("unknown compare mode %q", c.Mode)
		}
		op, ok := compareOps[c.Op]
		if !ok {
			return fmt.Errorf("unknown compare op %q", c.Op)
		}
		lhs, err := resolveOperand(ctx, mod, env, c.LHS)
		if err != nil {
			return err
		}
		rhs, err := resolveOperand(ctx, mod, env, c.RHS)
		if err != nil {
			return err
		}
		bindResult(env, c.Result, b.AddCompare(mode, op, lhs, rhs).AsValue())

	case instr.Conversion != nil:
		c := instr.Conversion
		kind, ok := conversionKinds[c.Kind]
		if !ok {
			return fmt.Errorf("unknown conversion %q", c.Kind)
		}
		operand, err := resolveOperand(ctx, mod, env, c.Operand)
		if err != nil {
			return err
		}
		target, err := resolveType(ctx, mod, c.Target)
		if err != nil {
			return err
		}
		bindResult(env, c.Result, b.AddConversion(kind, operand, target).AsValue())

	case instr.Call != nil:
		c := instr.Call
		callee, err := resolveCallee(mod, env, c.Callee)
		if err != nil {
			return err
		}
		args := make([]*ssa.Value, len(c.Args))
		for i, a := range c.Args {
			av, err := resolveOperand(ctx, mod, env, a)
			if err != nil {
				return err
			}
			args[i] = av
		}
		retType, err := resolveType(ctx, mod, c.Return)
		if err != nil {
			return err
		}
		call := b.AddCall(callee, args, retType)
		if c.Result != "" {
			bindResult(env, c.Result, call.AsValue())
		}

	case instr.Phi != nil:
		p := instr.Phi
		typ, err := resolveType(ctx, mod, p.Type)
		if err != nil {
			return err
		}
		phi := b.AddPhi(typ)
		bindResult(env, p.Result, phi.AsValue())
		env.phis = append(env.phis, deferredPhi{inst: phi, edges: p.Edges})

	case instr.Select != nil:
		s := instr.Select
		cond, err := resolveOperand(ctx, mod, env, s.Cond)
		if err != nil {
			return err
		}
		thenV, err := resolveOperand(ctx, mod, env, s.Then)
		if err != nil {
			return err
		}
		elseV, err := resolveOperand(ctx, mod, env, s.Else)
		if err != nil {
			return err
		}
		bindResult(env, s.Result, b.AddSelect(cond, thenV, elseV).AsValue())

	case instr.ExtractValue != nil:
		e := instr.ExtractValue
		agg, err := resolveOperand(ctx, mod, env, e.Agg)
		if err != nil {
			return err
		}
		resultType, err := indexedType(agg.Type(), e.Indices.Items)
		if err != nil {
			return err
		}
		bindResult(env, e.Result, b.AddExtractValue(agg, e.Indices.Items, resultType).AsValue())

	case instr.InsertValue != nil:
		iv := instr.InsertValue
		agg, err := resolveOperand(ctx, mod, env, iv.Agg)
		if err != nil {
			return err
		}
		inserted, err := resolveOperand(ctx, mod, env, iv.Inserted)
		if err != nil {
			return err
		}
		bindResult(env, iv.Result, b.AddInsertValue(agg, inserted, iv.Indices.Items).AsValue())

	case instr.Goto != nil:
		target, ok := env.blocks[instr.Goto.Target]
		if !ok {
			return fmt.Errorf("goto references unknown block %s", instr.Goto.Target)
		}
		b.AddGoto(target)

	case instr.Branch != nil:
		br := instr.Branch
		cond, err := resolveOperand(ctx, mod, env, br.Cond)
		if err != nil {
			return err
		}
		thenBB, ok := env.blocks[br.Then]
		if !ok {
			return fmt.Errorf("branch references unknown block %s", br.Then)
		}
		elseBB, ok := env.blocks[br.Else]
		if !ok {
			return fmt.Errorf("branch references unknown block %s", br.Else)
		}
		b.AddBranch(cond, thenBB, elseBB)

	case instr.Return != nil:
		if instr.Return.Val == nil {
			b.AddReturn(nil)
			return nil
		}
		val, err := resolveOperand(ctx, mod, env, instr.Return.Val)
		if err != nil {
			return err
		}
		b.AddReturn(val)

	case instr.Unary != nil:
		u := instr.Unary
		op, ok := unaryArithOps[u.Op]
		if !ok {
			return fmt.Errorf("unknown unary operator %q", u.Op)
		}
		operand, err := resolveOperand(ctx, mod, env, u.Operand)
		if err != nil {
			return err
		}
		bindResult(env, u.Result, b.AddUnaryArithmetic(op, operand).AsValue())

	case instr.Arithmetic != nil:
		a := instr.Arithmetic
		op, ok := arithOps[a.Op]
		if !ok {
			return fmt.Errorf("unknown arithmetic operator %q", a.Op)
		}
		lhs, err := resolveOperand(ctx, mod, env, a.LHS)
		if err != nil {
			return err
		}
		rhs, err := resolveOperand(ctx, mod, env, a.RHS)
		if err != nil {
			return err
		}
		bindResult(env, a.Result, b.AddArithmetic(op, lhs, rhs).AsValue())

	default:
		return fmt.Errorf("malformed instruction")
	}
	return nil
}

func indexedType(agg sctx.Type, indices []int) (sctx.Type, error) {
	cur := agg
	for _, idx := range indices {
		rt, ok := cur.(*sctx.RecordType)
		if !ok {
			return nil, fmt.Errorf("extractvalue index into non-aggregate type %s", cur)
		}
		if idx < 0 || idx >= len(rt.Fields) {
			return nil, fmt.Errorf("extractvalue index %d out of range for %s", idx, cur)
		}
		cur = rt.Fields[idx].Type
	}
	return cur, nil
}
