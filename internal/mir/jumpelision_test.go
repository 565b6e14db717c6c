package mir

import "testing"

// TestJumpElisionRemovesFallthroughJump checks that a KJump to the block
// immediately following it in block order is dropped.
func TestJumpElisionRemovesFallthroughJump(t *testing.T) {
	f := NewFunction("f")
	entry := f.NewBlock("entry")
	next := f.NewBlock("next")
	entry.Append(&Inst{Kind: KJump, Target: next})
	ret := f.NewRegister(8, "v")
	next.Append(&Inst{Kind: KReturn, Src: []*Register{ret}})

	if !JumpElision(f) {
		t.Fatalf("expected JumpElision to report a change")
	}
	if len(entry.Instructions()) != 0 {
		t.Fatalf("expected the fallthrough jump to be removed, got %v", entry.Instructions())
	}
}

// TestJumpElisionReordersToDFSPreorder checks that a function whose
// blocks were appended out of control-flow order gets reordered so that
// each block's successor follows it whenever only one predecessor reaches
// it through a single path.
func TestJumpElisionReordersToDFSPreorder(t *testing.T) {
	f := NewFunction("f")
	entry := f.NewBlock("entry")
	elseBB := f.NewBlock("else")
	thenBB := f.NewBlock("then")

	cond := f.NewRegister(1, "c")
	entry.Append(&Inst{Kind: KCondJump, Cond: cond, Then: thenBB, Else: elseBB})
	thenBB.addPred(entry)
	elseBB.addPred(entry)
	thenBB.Append(&Inst{Kind: KReturn, Src: []*Register{f.NewRegister(8, "t")}})
	elseBB.Append(&Inst{Kind: KReturn, Src: []*Register{f.NewRegister(8, "e")}})

	// f.Blocks is currently [entry, else, then] — not a DFS preorder from
	// entry following Then before Else.
	if f.Blocks[1] != elseBB || f.Blocks[2] != thenBB {
		t.Fatalf("test setup invariant broken: expected [entry, else, then]")
	}

	JumpElision(f)
	if f.Blocks[0] != entry {
		t.Fatalf("expected entry to remain first")
	}
	if f.Blocks[1] != thenBB {
		t.Fatalf("expected then to be visited (and ordered) before else, got %s then %s", f.Blocks[1].Label, f.Blocks[2].Label)
	}
}

// TestJumpElisionDuplicatesReturnTail checks that a backward jump to a
// short return tail is replaced by a private copy of that tail, while
// the tail block survives for its remaining (fallthrough) predecessor.
func TestJumpElisionDuplicatesReturnTail(t *testing.T) {
	f := NewFunction("f")
	entry := f.NewBlock("entry")
	thenBB := f.NewBlock("then")
	elseBB := f.NewBlock("else")
	shared := f.NewBlock("shared")

	cond := f.NewRegister(1, "c")
	entry.Append(&Inst{Kind: KCondJump, Cond: cond, Then: thenBB, Else: elseBB})
	thenBB.addPred(entry)
	elseBB.addPred(entry)
	thenBB.Append(&Inst{Kind: KJump, Target: shared})
	elseBB.Append(&Inst{Kind: KJump, Target: shared})
	shared.addPred(thenBB)
	shared.addPred(elseBB)
	ret := f.NewRegister(8, "v")
	shared.Append(&Inst{Kind: KReturn, Src: []*Register{ret}})

	JumpElision(f)

	// One branch reaches shared by fallthrough; the other gets its own
	// copy of the return instead of a jump.
	var copies int
	for _, b := range []*Block{thenBB, elseBB} {
		term := b.Terminator()
		if term != nil && term.Kind == KReturn {
			copies++
		}
		if term != nil && term.Kind == KJump {
			t.Fatalf("expected no jump to the return tail to survive, %s still has one", b.Label)
		}
	}
	if copies == 0 {
		t.Fatalf("expected at least one branch to carry a duplicated return tail")
	}
}

// TestMergeSingleSuccessorsSplicesBlock checks that a block whose sole
// predecessor has it as its only successor gets spliced directly into that
// predecessor, removing the intervening jump and the now-dead block.
// Exercises mergeSingleSuccessors directly so the fixture isn't also
// rewritten by the earlier fallthrough-elision step in JumpElision.
func TestMergeSingleSuccessorsSplicesBlock(t *testing.T) {
	f := NewFunction("f")
	entry := f.NewBlock("entry")
	next := f.NewBlock("next")
	entry.Append(&Inst{Kind: KJump, Target: next})
	next.addPred(entry)
	retReg := f.NewRegister(8, "v")
	next.Append(&Inst{Kind: KReturn, Src: []*Register{retReg}})

	if !mergeSingleSuccessors(f) {
		t.Fatalf("expected mergeSingleSuccessors to report a change")
	}
	if len(f.Blocks) != 1 {
		t.Fatalf("expected next to be merged away, leaving one block, got %d", len(f.Blocks))
	}
	term := f.Blocks[0].Terminator()
	if term == nil || term.Kind != KReturn {
		t.Fatalf("expected the merged block's terminator to be the spliced-in return, got %v", term)
	}
}
