package irtext

// Grammar structs use participle's struct-tag style: each type is either
// a sequence (plain tags) or a tagged union (the first alternative leads
// with two spaces, later ones with "| "), and every literal token in a
// tag is matched against the value of whatever lexer rule produced it
// (so "alloca" matches an Ident token spelled "alloca").
//
// The shape of every instruction struct is the mirror image of the
// corresponding String() method in internal/ssa/instruction.go — this
// package exists so that ssa.Print's output round-trips back through
// Parse.

// ---- Types ----

// TypeRef is the closed type grammar: void, i<bits>, f<bits>, ptr,
// array, tuple, or a named-struct reference.
type TypeRef struct {
	Array  *ArrayTypeRef `  @@`
	Tuple  *TupleTypeRef `| @@`
	Named  string        `| "%" @Ident`
	Simple string        `| @Ident`
}

type ArrayTypeRef struct {
	Elem  *TypeRef `"[" @@ ","`
	Count int      `@Int "]"`
}

type TupleTypeRef struct {
	Elems []*TypeRef `"{" [ @@ { "," @@ } ] "}"`
}

// ---- Operands ----

// UndefLit and the two typed-constant literals below are distinguished
// from each other by their second token (Ident "undef" vs. an Int vs. a
// Float), which the parser's lookahead resolves without backtracking.
type UndefLit struct {
	Type string `@Ident "undef"`
}

type ConstIntLit struct {
	Type string `@Ident`
	Val  int64  `@Int`
}

type ConstFloatLit struct {
	Type string  `@Ident`
	Val  float64 `@Float`
}

// Operand is any value an instruction can reference: a typed constant, the
// untyped true/false/null/undef-via-bool forms, a local SSA value (by name
// or by the bare numeric id Print falls back to for unnamed values), or a
// global/function reference.
type Operand struct {
	Undef      *UndefLit      `  @@`
	ConstFloat *ConstFloatLit `| @@`
	ConstInt   *ConstIntLit   `| @@`
	NullPtr    bool           `| "ptr" @"null"`
	Bool       string         `| @("true" | "false")`
	Local      string         `| "%" @(Ident | Int)`
	Global     string         `| "@" @Ident`
}

// CalleeRef is a Call's target: a direct/external function by name, or an
// indirect pointer-typed local value.
type CalleeRef struct {
	Global string `  "@" @Ident`
	Local  string `| "%" @(Ident | Int)`
}

// IndexList is a bracketed list of member-selection indices. It accepts
// both the comma-joined form GEPInst.String prints ("[1,2,3]") and the
// space-separated form Go's %v prints for ExtractValue/InsertValue
// ("[1 2 3]"): each element is followed by an optional comma.
type IndexList struct {
	Items []int `"[" { @Int [ "," ] } "]"`
}

// ---- Instructions ----

type AllocaInstr struct {
	Result string   `"%" @(Ident | Int) "=" "alloca"`
	Elem   *TypeRef `@@ ","`
	Count  *Operand `"count" @@`
}

type LoadInstr struct {
	Result string   `"%" @(Ident | Int) "=" "load"`
	Type   *TypeRef `@@ ","`
	Addr   *Operand `"ptr" @@`
}

type StoreInstr struct {
	Val  *Operand `"store" @@ ","`
	Addr *Operand `"ptr" @@`
}

type GEPInstr struct {
	Result  string     `"%" @(Ident | Int) "=" "gep"`
	Type    *TypeRef   `@@ ","`
	Base    *Operand   `"ptr" @@ ","`
	Index   *Operand   `"index" @@ ","`
	Members *IndexList `"members" @@`
}

// ArithmeticInstr lists the binary sctx.ArithOp mnemonics inline in its Op
// tag.
type ArithmeticInstr struct {
	Result string   `"%" @(Ident | Int) "="`
	Op     string   `@( "add" | "sub" | "mul" | "sdiv" | "udiv" | "srem" | "urem" | "fadd" | "fsub" | "fmul" | "fdiv" | "frem" | "and" | "or" | "xor" | "lshl" | "lshr" | "ashr" )`
	LHS    *Operand `@@ ","`
	RHS    *Operand `@@`
}

type UnaryArithmeticInstr struct {
	Result  string   `"%" @(Ident | Int) "="`
	Op      string   `@( "neg" | "fneg" | "bitnot" )`
	Operand *Operand `@@`
}

type CompareInstr struct {
	Result string   `"%" @(Ident | Int) "=" "cmp"`
	Mode   string   `@( "signed" | "unsigned" | "float" )`
	Op     string   `@( "eq" | "neq" | "ls" | "leq" | "grt" | "geq" )`
	LHS    *Operand `@@ ","`
	RHS    *Operand `@@`
}

type ConversionInstr struct {
	Result  string   `"%" @(Ident | Int) "="`
	Kind    string   `@( "zext" | "sext" | "trunc" | "fext" | "ftrunc" | "utof" | "stof" | "ftou" | "ftos" | "bitcast" )`
	Operand *Operand `@@ "to"`
	Target  *TypeRef `@@`
}

type CallInstr struct {
	Result string     `[ "%" @(Ident | Int) "=" ]`
	Return *TypeRef   `"call" @@`
	Callee CalleeRef  `@@`
	Args   []*Operand `"(" [ @@ { "," @@ } ] ")"`
}

type PhiEdgeRef struct {
	Label string   `"[" @Ident ":"`
	Val   *Operand `@@ "]"`
}

type PhiInstr struct {
	Result string        `"%" @(Ident | Int) "=" "phi"`
	Type   *TypeRef      `@@`
	Edges  []*PhiEdgeRef `@@ { "," @@ }`
}

type SelectInstr struct {
	Result string   `"%" @(Ident | Int) "=" "select"`
	Cond   *Operand `@@ ","`
	Then   *Operand `@@ ","`
	Else   *Operand `@@`
}

type ExtractValueInstr struct {
	Result  string     `"%" @(Ident | Int) "=" "extractvalue"`
	Agg     *Operand   `@@ ","`
	Indices *IndexList `@@`
}

type InsertValueInstr struct {
	Result   string     `"%" @(Ident | Int) "=" "insertvalue"`
	Agg      *Operand   `@@ ","`
	Inserted *Operand   `@@ ","`
	Indices  *IndexList `@@`
}

type GotoInstr struct {
	Target string `"goto" @Ident`
}

type BranchInstr struct {
	Cond *Operand `"branch" @@ ","`
	Then string   `@Ident ","`
	Else string   `@Ident`
}

type ReturnInstr struct {
	Val *Operand `"return" @@?`
}

// Instr is the closed union over every instruction kind, dispatched by its
// leading keyword (after an optional "%name =" prefix the parser's
// lookahead sees past). Order favors the more specific/longer literal
// prefixes first.
type Instr struct {
	Alloca       *AllocaInstr          `  @@`
	Load         *LoadInstr            `| @@`
	Store        *StoreInstr           `| @@`
	GEP          *GEPInstr             `| @@`
	Cmp          *CompareInstr         `| @@`
	Conversion   *ConversionInstr      `| @@`
	Call         *CallInstr            `| @@`
	Phi          *PhiInstr             `| @@`
	Select       *SelectInstr          `| @@`
	ExtractValue *ExtractValueInstr    `| @@`
	InsertValue  *InsertValueInstr     `| @@`
	Goto         *GotoInstr            `| @@`
	Branch       *BranchInstr          `| @@`
	Return       *ReturnInstr          `| @@`
	Unary        *UnaryArithmeticInstr `| @@`
	Arithmetic   *ArithmeticInstr      `| @@`
}

// ---- Blocks, functions, globals, module ----

type Block struct {
	Label  string   `@Ident ":"`
	Instrs []*Instr `@@*`
}

type Param struct {
	Type *TypeRef `@@`
	Name string   `"%" @(Ident | Int)`
}

type FuncDecl struct {
	Return *TypeRef `"func" @@`
	Name   string   `"@" @Ident "("`
	Params []*Param `[ @@ { "," @@ } ] ")" "{"`
	Blocks []*Block `@@* "}"`
}

type ExternalDecl struct {
	Return *TypeRef   `"declare" @@`
	Name   string     `"@" @Ident "("`
	Params []*TypeRef `[ @@ { "," @@ } ] ")"`
}

// InitValue is a GlobalVariable's initializer: the explicit
// "zeroinitializer" this package's writer emits for a nil init, one of
// sctx.Constant.Literal's untyped scalar renderings, a function reference
// ("@name"), or a bracketed aggregate whose elements each repeat their
// own type ("[i32 1, i32 2]", "{i64 1, f64 2.5}").
type InitValue struct {
	Zero   bool          `  @"zeroinitializer"`
	Undef  bool          `| @"undef"`
	Null   bool          `| @"null"`
	Bool   string        `| @("true" | "false")`
	Func   string        `| "@" @Ident`
	Array  *AggregateLit `| "[" @@ "]"`
	Struct *AggregateLit `| "{" @@ "}"`
	Float  float64       `| @Float`
	Int    int64         `| @Int`
}

// AggregateLit is the element list of an array or struct initializer.
type AggregateLit struct {
	Elems []*TypedInit `[ @@ { "," @@ } ]`
}

// TypedInit is one aggregate element: its type followed by its value,
// mirroring sctx.Constant.String's typed element rendering. The nested
// value may itself be an aggregate.
type TypedInit struct {
	Type *TypeRef   `@@`
	Val  *InitValue `@@`
}

type GlobalDecl struct {
	Name string     `"@" @Ident "="`
	Kind string     `@( "global" | "constant" )`
	Type *TypeRef   `@@`
	Init *InitValue `@@`
}

type TopLevelItem struct {
	Global   *GlobalDecl   `  @@`
	External *ExternalDecl `| @@`
	Func     *FuncDecl     `| @@`
}

// File is the root production: a module is zero or more top-level items in
// any order, matching ssa.Print's globals-then-externals-then-functions
// layout as one valid ordering among others Parse also accepts.
type File struct {
	Items []*TopLevelItem `@@*`
}
