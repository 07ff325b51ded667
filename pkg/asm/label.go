package asm

// labelUndefined marks a label that has been created but not yet defined.
const labelUndefined = -1

// Label is a per-function handle: an index into the owning Builder's
// label pool, which in turn holds either labelUndefined or the
// instruction index (not byte offset) the label was defined at.
type Label int

// Define defines l at the next instruction the owning Builder will emit.
// Equivalent to b.DefineLabel(l).
func (l Label) Define(b *Builder) {
	b.DefineLabel(l)
}
