package mir

import "fmt"

// MemoryAddress models a base register, an optional dynamic-offset
// register, a constant element width, and a constant byte offset term.
type MemoryAddress struct {
	Base       *Register
	Offset     *Register // nil when there is no dynamic offset
	ElemWidth  int        // byte size multiplying Offset; meaningless if Offset is nil
	ByteOffset int
}

func (a MemoryAddress) String() string {
	if a.Offset == nil {
		return fmt.Sprintf("[%s + %d]", a.Base, a.ByteOffset)
	}
	return fmt.Sprintf("[%s + %s*%d + %d]", a.Base, a.Offset, a.ElemWidth, a.ByteOffset)
}

// offsetBy returns a copy of a with ByteOffset advanced by delta bytes,
// used when stepping through a RegisterRun's wide-load/store slices.
func (a MemoryAddress) offsetBy(delta int) MemoryAddress {
	a.ByteOffset += delta
	return a
}
