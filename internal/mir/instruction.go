package mir

import (
	"fmt"
	"strings"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

// Kind is the closed tag of the MIR instruction union.
type Kind int

const (
	KCopy Kind = iota
	KLoad
	KStore
	KCall
	KCondCopy
	KLISP // stack allocation
	KLEA  // address computation
	KCompare
	KTest
	KSet
	KUnaryArithmetic
	KValueArithmetic // arithmetic with an immediate/register RHS
	KLoadArithmetic  // arithmetic with one memory operand
	KConversion
	KJump
	KCondJump
	KReturn
	KPhi
	KSelect
)

func (k Kind) String() string {
	names := [...]string{
		"copy", "load", "store", "call", "condcopy", "lisp", "lea",
		"compare", "test", "set", "uarith", "varith", "larith", "conv",
		"jump", "condjump", "return", "phi", "select",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Callee mirrors ssa.Callee at the MIR level: a direct function is
// resolved to its declared result/argument registers; an external call
// instead encodes a (slot, index) pair into the call data.
type Callee struct {
	Direct       *Function
	ExternalSlot int
	ExternalIdx  int
	IsExternal   bool
	Indirect     *Register
}

func (c Callee) String() string {
	switch {
	case c.Direct != nil:
		return "@" + c.Direct.Name
	case c.IsExternal:
		return fmt.Sprintf("ext(%d,%d)", c.ExternalSlot, c.ExternalIdx)
	default:
		return c.Indirect.String()
	}
}

// PhiEdge is one incoming (predecessor, register) pair of a PhiInst.
type PhiEdge struct {
	Pred *Block
	Val  *Register
}

// Inst is every MIR instruction, represented as one tagged struct rather
// than internal/ssa's per-kind type hierarchy: MIR has no use-def graph to
// maintain,
// so a flat record with a Kind discriminant is the natural shape for a
// near-bytecode level, matching this package's own design-note precedent
// that "the target-language analogue is a tagged sum ... matched on that
// tag".
type Inst struct {
	Kind Kind
	Dest *Register  // result register, nil for Store/Jump/CondJump/Return/Test
	Dest2 *Register // second result register, set only for calls returning 2 words in registers
	Src  []*Register

	Imm    int64
	HasImm bool

	Addr *MemoryAddress

	Op       sctx.ArithOp
	CmpMode  ssa.CompareMode
	CmpOp    ssa.CompareOp
	ConvKind ssa.ConversionKind

	Callee   Callee
	NumRets  int // CallInst: number of return registers expected

	Target     *Block   // Jump
	Then, Else *Block   // CondJump
	Cond       *Register

	Incoming []PhiEdge // Phi

	parent *Block
}

func (i *Inst) Parent() *Block { return i.parent }

func regList(rs []*Register) string {
	parts := make([]string, len(rs))
	for n, r := range rs {
		parts[n] = r.String()
	}
	return strings.Join(parts, ", ")
}

func (i *Inst) String() string {
	switch i.Kind {
	case KCopy:
		return fmt.Sprintf("%s = copy %s", i.Dest, i.Src[0])
	case KLoad:
		return fmt.Sprintf("%s = load %s", i.Dest, i.Addr)
	case KStore:
		return fmt.Sprintf("store %s, %s", i.Addr, i.Src[0])
	case KCall:
		dest := "_"
		if i.Dest != nil {
			dest = i.Dest.String()
			if i.Dest2 != nil {
				dest += ", " + i.Dest2.String()
			}
		}
		return fmt.Sprintf("%s = call %s(%s)", dest, i.Callee, regList(i.Src))
	case KCondCopy:
		return fmt.Sprintf("%s = condcopy %s, %s, %s", i.Dest, i.Cond, i.Src[0], i.Src[1])
	case KLISP:
		return fmt.Sprintf("%s = lisp %d", i.Dest, i.Imm)
	case KLEA:
		return fmt.Sprintf("%s = lea %s", i.Dest, i.Addr)
	case KCompare:
		return fmt.Sprintf("cmp %s %s, %s", i.CmpMode, operand(i.Src[0]), operand(i.Src[1]))
	case KTest:
		return fmt.Sprintf("test %s", i.Src[0])
	case KSet:
		return fmt.Sprintf("%s = set %s", i.Dest, i.CmpOp)
	case KUnaryArithmetic:
		return fmt.Sprintf("%s = %s %s", i.Dest, i.Op, i.Src[0])
	case KValueArithmetic:
		rhs := "?"
		if i.HasImm {
			rhs = fmt.Sprintf("%d", i.Imm)
		} else if len(i.Src) > 1 {
			rhs = i.Src[1].String()
		}
		return fmt.Sprintf("%s = %s %s, %s", i.Dest, i.Op, i.Src[0], rhs)
	case KLoadArithmetic:
		return fmt.Sprintf("%s = %s %s, %s", i.Dest, i.Op, i.Src[0], i.Addr)
	case KConversion:
		return fmt.Sprintf("%s = %s %s", i.Dest, i.ConvKind, i.Src[0])
	case KJump:
		return fmt.Sprintf("jump %s", i.Target.Label)
	case KCondJump:
		return fmt.Sprintf("condjump %s, %s, %s", i.Cond, i.Then.Label, i.Else.Label)
	case KReturn:
		return fmt.Sprintf("return %s", regList(i.Src))
	case KPhi:
		parts := make([]string, len(i.Incoming))
		for n, e := range i.Incoming {
			parts[n] = fmt.Sprintf("[%s : %s]", e.Pred.Label, e.Val)
		}
		return fmt.Sprintf("%s = phi %s", i.Dest, strings.Join(parts, ", "))
	case KSelect:
		return fmt.Sprintf("%s = select %s, %s, %s", i.Dest, i.Cond, i.Src[0], i.Src[1])
	default:
		return "<bad mir inst>"
	}
}

func operand(r *Register) string {
	if r == nil {
		return "<nil>"
	}
	return r.String()
}

func (i *Inst) IsTerminator() bool {
	switch i.Kind {
	case KJump, KCondJump, KReturn:
		return true
	default:
		return false
	}
}

func (i *Inst) Successors() []*Block {
	switch i.Kind {
	case KJump:
		return []*Block{i.Target}
	case KCondJump:
		return []*Block{i.Then, i.Else}
	default:
		return nil
	}
}

// destRegs returns every register this instruction writes, used by
// InstSimplify's def/use rewrite passes.
func (i *Inst) destRegs() []*Register {
	var ds []*Register
	if i.Dest != nil {
		ds = append(ds, i.Dest)
	}
	if i.Dest2 != nil {
		ds = append(ds, i.Dest2)
	}
	return ds
}

// rewriteRegs replaces every occurrence of old with repl across every
// register-valued field of the instruction (Src, Cond, Addr.Base/Offset,
// Callee.Indirect, Phi incoming values). Used by InstSimplify's worklist
// propagation.
func (i *Inst) rewriteRegs(old, repl *Register) {
	for idx, s := range i.Src {
		if s == old {
			i.Src[idx] = repl
		}
	}
	if i.Cond == old {
		i.Cond = repl
	}
	if i.Addr != nil {
		if i.Addr.Base == old {
			i.Addr.Base = repl
		}
		if i.Addr.Offset == old {
			i.Addr.Offset = repl
		}
	}
	if i.Callee.Indirect == old {
		i.Callee.Indirect = repl
	}
	for idx, e := range i.Incoming {
		if e.Val == old {
			i.Incoming[idx].Val = repl
		}
	}
}
