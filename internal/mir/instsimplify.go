package mir

// InstSimplify runs a cleanup pass over a lowered function in repeated
// full sweeps of its blocks: plain register-to-register copies are replaced by their
// source register everywhere they're read, and zero-offset LEAs are
// replaced by their base register. Both rewrites can expose further
// copies or LEAs to fold, so the pass iterates to a fixed point. Returns
// whether anything changed.
func InstSimplify(f *Function) bool {
	changed := false
	for {
		round := false
		defs := defCounts(f)
		for _, b := range f.Blocks {
			round = simplifyBlock(f, b, defs) || round
		}
		if !round {
			break
		}
		changed = true
	}
	return changed
}

// defCounts tallies how many instructions write each register. A copy is
// only foldable when its destination has exactly one definition:
// registers written more than once (conditional-copy pairs, the
// read-modify-write sequences insert-value lowering emits) carry merged
// values their first writer alone doesn't.
func defCounts(f *Function) map[*Register]int {
	out := make(map[*Register]int)
	for _, b := range f.Blocks {
		for _, in := range b.instrs {
			if in.Dest != nil {
				out[in.Dest]++
			}
		}
	}
	return out
}

func simplifyBlock(f *Function, b *Block, defs map[*Register]int) bool {
	changed := false
	kept := b.instrs[:0:0]
	for _, in := range b.instrs {
		if repl, ok := trivialReplacement(in); ok && in.Dest != nil && defs[in.Dest] == 1 {
			rewriteRegEverywhere(f, in.Dest, repl)
			changed = true
			continue
		}
		kept = append(kept, in)
	}
	if changed {
		b.SetInstructions(kept)
	}
	return changed
}

// trivialReplacement reports whether in computes nothing but an existing
// register's value, and if so which register to substitute for its
// destination.
func trivialReplacement(in *Inst) (*Register, bool) {
	switch in.Kind {
	case KCopy:
		if len(in.Src) == 1 && !in.HasImm {
			return in.Src[0], true
		}
	case KLEA:
		if in.Addr != nil && in.Addr.Offset == nil && in.Addr.ByteOffset == 0 {
			return in.Addr.Base, true
		}
	}
	return nil, false
}

func rewriteRegEverywhere(f *Function, old, repl *Register) {
	for _, b := range f.Blocks {
		for _, in := range b.instrs {
			in.rewriteRegs(old, repl)
		}
	}
}
