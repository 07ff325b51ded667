package asm

// finalizeOffsets assigns each instruction's byte Offset relative to its
// owning function's start, now that every entry has a fixed, final size.
func (b *Builder) finalizeOffsets() {
	offset := 0
	for i := range b.meta {
		b.meta[i].Offset = offset
		offset += b.meta[i].Size()
	}
}

// build runs the two passes that turn a raw instruction stream into a
// finished function body: branch lowering, then offset assignment.
func (b *Builder) build() {
	b.lowerBranches()
	b.finalizeOffsets()
}
