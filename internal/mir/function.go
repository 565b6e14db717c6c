package mir

// Function is a MIR function: an ordered block list (the first is the
// entry), the registers bound to its IR parameters per the calling
// convention, and its return register layout.
type Function struct {
	Name   string
	Params []RegisterRun // one run per IR parameter slot, pre-bound by the calling convention
	Blocks []*Block

	// ReturnConv is the function's return-value PassingConvention.
	// ImplicitRetPtr is non-nil when ReturnConv.Loc is LocMemory: the
	// pointer register prepended ahead of every ordinary parameter that
	// the caller-allocated return slot is written through.
	ReturnConv    PassingConvention
	ImplicitRetPtr *Register

	regs registerAllocator
}

func NewFunction(name string) *Function {
	return &Function{Name: name}
}

func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

func (f *Function) NewBlock(label string) *Block {
	b := NewBlock(f.uniqueLabel(label))
	b.parent = f
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) uniqueLabel(want string) string {
	for _, b := range f.Blocks {
		if b.Label == want {
			return f.uniqueLabel(want + ".1")
		}
	}
	return want
}

// NewRegister allocates a fresh single register of the given byte size.
func (f *Function) NewRegister(size int, name string) *Register {
	return f.regs.new(size, name)
}

// NewRegisterRun allocates a fresh register run wide enough to hold
// totalSize bytes.
func (f *Function) NewRegisterRun(totalSize int, name string) RegisterRun {
	return f.regs.newRun(totalSize, name)
}
