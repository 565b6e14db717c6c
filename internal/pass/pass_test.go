package pass

import (
	"bytes"
	"testing"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

func buildTrivialModule(t *testing.T) *ssa.Module {
	t.Helper()
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	i64 := ctx.IntType(64)
	fn := mod.NewFunction("f", nil, i64)
	b := ssa.NewBuilder(ctx, fn)
	b.AddNewBlock("entry")
	b.AddReturn(mod.ConstantValue(ctx.IntConstant(0, 64)))
	return mod
}

// TestRegisterAndLookup checks the registry round-trips a descriptor by
// name, and that registering the same name twice panics: registration is
// write-once.
func TestRegisterAndLookup(t *testing.T) {
	ran := false
	Register(&Descriptor{
		Name:     "pass-test-noop",
		Category: CategoryTransform,
		Function: func(fn *ssa.Function) bool { ran = true; return false },
	})
	d := Lookup("pass-test-noop")
	if d == nil {
		t.Fatalf("expected Lookup to find the registered descriptor")
	}
	mod := buildTrivialModule(t)
	p := NewPipeline("pass-test-noop")
	if _, err := p.Run(mod); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatalf("expected the registered function to have run")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a duplicate registration to panic")
		}
	}()
	Register(&Descriptor{Name: "pass-test-noop", Category: CategoryTransform})
}

// TestPipelineCheckMissingRequirement checks that a pass declaring a
// Requires invariant no earlier step Provides surfaces a
// MissingRequirement error rather than silently running.
func TestPipelineCheckMissingRequirement(t *testing.T) {
	Register(&Descriptor{
		Name:     "pass-test-needs-ssa2",
		Category: CategoryTransform,
		Requires: []string{"some-invariant-nobody-provides"},
		Function: func(fn *ssa.Function) bool { return false },
	})
	mod := buildTrivialModule(t)
	p := NewPipeline("pass-test-needs-ssa2")
	_, err := p.Run(mod)
	if err == nil {
		t.Fatalf("expected a MissingRequirement error")
	}
	if _, ok := err.(*MissingRequirement); !ok {
		t.Fatalf("expected *MissingRequirement, got %T", err)
	}
}

// TestPipelineRunToFixpointStopsWhenNoChange checks that RunToFixpoint
// stops as soon as a round reports no change, rather than always running
// maxRounds times.
func TestPipelineRunToFixpointStopsWhenNoChange(t *testing.T) {
	calls := 0
	Register(&Descriptor{
		Name:     "pass-test-runs-once",
		Category: CategoryTransform,
		Function: func(fn *ssa.Function) bool {
			calls++
			return calls == 1 // changes on the first call only
		},
	})
	mod := buildTrivialModule(t)
	p := NewPipeline("pass-test-runs-once")
	rounds, err := p.RunToFixpoint(mod, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rounds != 2 {
		t.Fatalf("expected exactly 2 rounds (one that changes, one that confirms the fixed point), got %d", rounds)
	}
}

// TestPipelineSkipsExternalAndEmptyFunctions checks that a FunctionPass
// step is never invoked on an external declaration or a function with no
// blocks yet.
func TestPipelineSkipsExternalAndEmptyFunctions(t *testing.T) {
	seen := map[string]bool{}
	Register(&Descriptor{
		Name:     "pass-test-records-visits",
		Category: CategoryTransform,
		Function: func(fn *ssa.Function) bool { seen[fn.Name()] = true; return false },
	})
	ctx := sctx.NewContext()
	mod := ssa.NewModule(ctx)
	ext := mod.NewFunction("ext", nil, ctx.IntType(64))
	ext.SetExternal(true)
	mod.NewFunction("empty", nil, ctx.IntType(64)) // no blocks appended
	real := mod.NewFunction("real", nil, ctx.IntType(64))
	b := ssa.NewBuilder(ctx, real)
	b.AddNewBlock("entry")
	b.AddReturn(mod.ConstantValue(ctx.IntConstant(0, 64)))

	p := NewPipeline("pass-test-records-visits")
	if _, err := p.Run(mod); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen["ext"] {
		t.Fatalf("an external declaration should never be visited")
	}
	if seen["empty"] {
		t.Fatalf("a function with no blocks should never be visited")
	}
	if !seen["real"] {
		t.Fatalf("expected the real function to be visited")
	}
}

// TestPipelineLogsProgress checks that a non-nil Out receives the
// running/applied-or-no-changes trace.
func TestPipelineLogsProgress(t *testing.T) {
	Register(&Descriptor{
		Name:     "pass-test-logs",
		Category: CategoryTransform,
		Function: func(fn *ssa.Function) bool { return false },
	})
	mod := buildTrivialModule(t)
	var buf bytes.Buffer
	p := NewPipeline("pass-test-logs")
	p.Out = &buf
	if _, err := p.Run(mod); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected Run to write progress output to Out")
	}
}
