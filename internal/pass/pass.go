// Package pass implements the pass management infrastructure: each
// transform module self-registers (name, category, required invariants)
// into an explicit registration table populated by init() functions, and
// a pipeline executor walks that table rather than the caller hard-coding
// an ordered call sequence.
package pass

import (
	"fmt"
	"io"

	"scatha/internal/ssa"
)

// Category groups passes by the layer they operate on: analyses,
// transforms, or lowering.
type Category int

const (
	CategoryAnalysis Category = iota
	CategoryTransform
	CategoryLowering
)

func (c Category) String() string {
	switch c {
	case CategoryAnalysis:
		return "analysis"
	case CategoryTransform:
		return "transform"
	case CategoryLowering:
		return "lowering"
	default:
		return "unknown"
	}
}

// FunctionPass runs over one function at a time and reports whether it
// changed anything.
type FunctionPass func(fn *ssa.Function) bool

// ModulePass runs over a whole module (e.g. the inliner, which moves code
// across function boundaries and so cannot be expressed per-function).
type ModulePass func(mod *ssa.Module) bool

// Descriptor is one registered pass: its name, category, the named
// invariants it requires to already hold on entry (e.g. "ssa", "no-phi"),
// the ones it establishes once it has run, and its run function. Exactly
// one of Function/Module is set.
type Descriptor struct {
	Name     string
	Category Category
	Requires []string
	Provides []string

	Function FunctionPass
	Module   ModulePass
}

var registry []*Descriptor
var byName = map[string]*Descriptor{}

// Register adds d to the global registry. Called from each pass module's
// init() function. Panics on a duplicate name: registration is a
// startup-time programmer error, not a runtime condition to recover from.
func Register(d *Descriptor) {
	if _, taken := byName[d.Name]; taken {
		panic("pass: duplicate registration: " + d.Name)
	}
	registry = append(registry, d)
	byName[d.Name] = d
}

// Lookup returns the descriptor registered under name, or nil.
func Lookup(name string) *Descriptor { return byName[name] }

// All returns every registered descriptor, in registration order.
func All() []*Descriptor {
	out := make([]*Descriptor, len(registry))
	copy(out, registry)
	return out
}

// Names returns the registered pass names, in registration order, the
// form a `--only=<pass,pass>` driver flag would validate against.
func Names() []string {
	out := make([]string, len(registry))
	for i, d := range registry {
		out[i] = d.Name
	}
	return out
}

// MissingRequirement is returned by Pipeline.Run when a pass's declared
// prerequisite invariant was never established by an earlier step.
type MissingRequirement struct {
	Pass     string
	Requires string
}

func (e *MissingRequirement) Error() string {
	return fmt.Sprintf("pass %q requires invariant %q, which no earlier step established", e.Pass, e.Requires)
}

// Pipeline is an ordered sequence of registered passes, looked up by name so
// a driver can build one from a `--passes=mem2reg,sroa,gvn,dce` flag or a
// built-in default list without depending on the transform packages
// directly.
type Pipeline struct {
	steps []*Descriptor
	// established accumulates the invariants every step so far is known to
	// provide; Run checks each step's Requires against it before running.
	established map[string]bool
	// Out receives the "running / applied / no changes" progress trace;
	// nil discards it.
	Out io.Writer
}

// NewPipeline resolves names against the registry, in order, and returns a
// Pipeline ready to run. An unknown name is a programmer error (a typo in a
// driver flag or a built-in list) and panics immediately rather than
// silently skipping a step.
func NewPipeline(names ...string) *Pipeline {
	// A module reaching the pipeline is in SSA form by construction (the
	// front end lowers to SSA; the textual reader parses it); every other
	// invariant must be earned by an earlier step.
	p := &Pipeline{established: map[string]bool{"ssa": true}}
	for _, n := range names {
		d := Lookup(n)
		if d == nil {
			panic("pass: unknown pass name: " + n)
		}
		p.steps = append(p.steps, d)
	}
	return p
}

// DefaultSSAPipeline is the standard optimization sequence for a function
// already in SSA form: promote memory to registers, split aggregates,
// combine, number values, hoist loop invariants, eliminate dead code, and
// simplify the CFG left behind — repeated to a fixed point by RunToFixpoint.
var DefaultSSAPipeline = []string{"mem2reg", "sroa", "instcombine", "gvn", "dce", "simplifycfg"}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Out == nil {
		return
	}
	fmt.Fprintf(p.Out, format, args...)
}

// Run walks the pipeline once over every function of mod (module passes run
// over the whole module instead), in the pipeline's own order, checking each
// step's Requires against what earlier steps in this Run have Provided.
// It reports whether any step changed anything.
func (p *Pipeline) Run(mod *ssa.Module) (bool, error) {
	changedAny := false
	p.logf("running %d passes...\n", len(p.steps))
	for _, step := range p.steps {
		for _, req := range step.Requires {
			if !p.established[req] {
				return changedAny, &MissingRequirement{Pass: step.Name, Requires: req}
			}
		}
		stepChanged := false
		switch {
		case step.Module != nil:
			p.logf("  - %s (%s)\n", step.Name, step.Category)
			if step.Module(mod) {
				stepChanged = true
			}
		case step.Function != nil:
			p.logf("  - %s (%s)\n", step.Name, step.Category)
			for _, fn := range mod.Functions() {
				if fn.External() || len(fn.Blocks()) == 0 {
					continue
				}
				if step.Function(fn) {
					stepChanged = true
				}
			}
		}
		if stepChanged {
			p.logf("    applied changes\n")
		} else {
			p.logf("    no changes\n")
		}
		changedAny = changedAny || stepChanged
		for _, prov := range step.Provides {
			p.established[prov] = true
		}
	}
	return changedAny, nil
}

// RunToFixpoint repeats Run until a pass over every step makes no further
// change, or maxRounds is reached (guards against a pass pair that keeps
// perturbing each other's output, e.g. SROA re-exposing a mem2reg
// candidate that mem2reg then re-exposes to SROA). RunToFixpoint is the pipeline-level
// generalization shared by every caller instead of each pass
// reimplementing its own round
// counter.
func (p *Pipeline) RunToFixpoint(mod *ssa.Module, maxRounds int) (int, error) {
	for round := 0; round < maxRounds; round++ {
		changed, err := p.Run(mod)
		if err != nil {
			return round, err
		}
		if !changed {
			return round + 1, nil
		}
	}
	return maxRounds, nil
}
