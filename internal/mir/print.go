package mir

import (
	"fmt"
	"strings"
)

// Print renders a whole MIR module in a textual form mirroring
// internal/ssa.Print's "func/block/inst" framing, so the CLI's emit-mir
// output reads like a direct continuation of the SSA dump rather than a
// different notation.
func Print(m *Module) string {
	var sb strings.Builder
	for _, e := range m.Externals {
		fmt.Fprintf(&sb, "declare ext(%d,%d) @%s\n", e.Slot, e.Idx, e.Name)
	}
	if len(m.Externals) > 0 {
		sb.WriteByte('\n')
	}
	for i, f := range m.Functions {
		if i > 0 {
			sb.WriteByte('\n')
		}
		PrintFunction(&sb, f)
	}
	return sb.String()
}

// PrintFunction renders a single MIR function's parameter registers and
// block bodies.
func PrintFunction(sb *strings.Builder, f *Function) {
	params := make([]string, 0, len(f.Params))
	for _, run := range f.Params {
		params = append(params, regList(run))
	}
	fmt.Fprintf(sb, "mir func @%s(%s) {\n", f.Name, strings.Join(params, ", "))
	for _, b := range f.Blocks {
		fmt.Fprintf(sb, "%s:\n", b.Label)
		for _, in := range b.Instructions() {
			fmt.Fprintf(sb, "  %s\n", in.String())
		}
	}
	sb.WriteString("}\n")
}
