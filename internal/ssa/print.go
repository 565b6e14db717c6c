package ssa

import (
	"fmt"
	"strings"

	"scatha/internal/sctx"
)

// Print renders a whole module in the textual IR form
// (irtext.Parse is the inverse of this function; round-trip tests in
// package irtext hold Print and Parse to agreement).
func Print(m *Module) string {
	var sb strings.Builder
	for _, g := range m.Globals() {
		kw := "global"
		if !g.Mutable() {
			kw = "constant"
		}
		fmt.Fprintf(&sb, "@%s = %s %s %s\n", g.Name(), kw, g.ValueType(), initString(g.Init()))
	}
	if len(m.Globals()) > 0 {
		sb.WriteByte('\n')
	}
	for _, e := range m.Externals() {
		fmt.Fprintf(&sb, "declare %s @%s(%s)\n", e.ReturnType(), e.Name(), joinTypes(e.Params()))
	}
	if len(m.Externals()) > 0 {
		sb.WriteByte('\n')
	}
	for i, f := range m.Functions() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		PrintFunction(&sb, f)
	}
	return sb.String()
}

func initString(c *sctx.Constant) string {
	if c == nil {
		return "zeroinitializer"
	}
	return c.Literal()
}

func joinTypes(ts []sctx.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// PrintFunction renders a single function's signature and body.
func PrintFunction(sb *strings.Builder, f *Function) {
	params := make([]string, len(f.Params()))
	for i, p := range f.Params() {
		params[i] = fmt.Sprintf("%s %s", p.Type(), refName(p.AsValue()))
	}
	if f.External() {
		fmt.Fprintf(sb, "declare %s @%s(%s)\n", f.ReturnType(), f.Name(), strings.Join(params, ", "))
		return
	}
	fmt.Fprintf(sb, "func %s @%s(%s) {\n", f.ReturnType(), f.Name(), strings.Join(params, ", "))
	for _, b := range f.Blocks() {
		fmt.Fprintf(sb, "%s:\n", b.Label())
		for _, inst := range b.Instructions() {
			fmt.Fprintf(sb, "  %s\n", inst.String())
		}
	}
	sb.WriteString("}\n")
}
