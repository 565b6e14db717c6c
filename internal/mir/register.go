// Package mir implements the lowering layer: a
// register-based, near-bytecode IR produced from the optimized SSA form
// and directly consumable by the assembler.
//
// Mirrors internal/ssa's shape (instructions living in ordered blocks,
// blocks forming functions, functions forming a module) generalized from
// an SSA-value graph to a flat register machine: 's own design
// note observes the same pattern applies "to SSA registers within MIR
// functions" as it does to internal/ssa's instruction arena, so this
// package mirrors internal/ssa's block/function/module layering rather
// than inventing a different shape for the lower level.
package mir

import "fmt"

// Register is one typed, sized SSA register of the machine-level IR,
// prior to register allocation. Size is in bytes; a value whose IR type is wider
// than 8 bytes is modeled as a contiguous RegisterRun of single-word
// registers.
type Register struct {
	id   int
	Size int
	name string
}

func (r *Register) ID() int { return r.id }

func (r *Register) String() string {
	if r.name != "" {
		return "%" + r.name
	}
	return fmt.Sprintf("%%r%d", r.id)
}

// RegisterRun is the register list addressing a value spanning multiple
// words; a single-register value is a RegisterRun of length 1.
type RegisterRun []*Register

// First returns the run's first (lowest-offset) register.
func (r RegisterRun) First() *Register {
	if len(r) == 0 {
		return nil
	}
	return r[0]
}

// registerAllocator hands out function-unique register slots; it is not
// the backend's register allocator (that consumes this package's output
// and lives downstream) — it is just
// this function's virtual-register id counter, named distinctly to avoid
// that confusion.
type registerAllocator struct {
	next int
}

func (a *registerAllocator) new(size int, name string) *Register {
	r := &Register{id: a.next, Size: size, name: name}
	a.next++
	return r
}

// newRun allocates count single-word (<=8 byte) registers, the last one
// carrying the residual width when totalSize isn't a multiple of 8.
func (a *registerAllocator) newRun(totalSize int, name string) RegisterRun {
	if totalSize <= 8 {
		return RegisterRun{a.new(totalSize, name)}
	}
	var run RegisterRun
	remaining := totalSize
	for remaining > 0 {
		word := remaining
		if word > 8 {
			word = 8
		}
		run = append(run, a.new(word, name))
		remaining -= word
	}
	return run
}
