package asm

// CallConvention records a function's inferred entry/exit register sizes
// and three ordered call-value sets: Inputs, Outputs, and Clobbers. Go
// can't derive inputs/outputs/clobbers by statically analyzing an
// arbitrary host callback (see DESIGN.md's Open Question entry); the
// Builder populates Clobbers from
// operations it knows clobber a register (a callee's declared clobbers in
// CallWithConvention, a non-zero StoreReloc) and leaves Inputs/Outputs for host code to declare explicitly via
// Builder.MarkInput/MarkOutput when it knows more than the builder can
// infer on its own.
type CallConvention struct {
	EntryA, EntryXY RegSize
	ExitA, ExitXY RegSize

	Inputs []CallValue
	Outputs []CallValue
	Clobbers []CallValue
}

// orderedSet is an insertion-ordered, duplicate-free set of CallValues.
type orderedSet struct {
	order []CallValue
	seen map[CallValue]bool
}

func (s *orderedSet) add(v CallValue) {
	if s.seen == nil {
		s.seen = make(map[CallValue]bool, 3)
	}
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.order = append(s.order, v)
}

func (s *orderedSet) values() []CallValue {
	out := make([]CallValue, len(s.order))
	copy(out, s.order)
	return out
}
