package inst

// Instruction is a compact representation of one emitted instruction: a
// tag plus a generic operand slot whose meaning depends on Op. Most forms
// don't use Operand at all — their operand bytes live in an attached
// relocation (see pkg/asm) and are filled in by the relocation applier.
// Operand is only meaningful for SEP/REP (the 8-bit mask) and for a BRA
// that was resolved directly by branch lowering rather than through a
// relocation.
type Instruction struct {
	Op      OpCode
	Operand uint32
}

// String renders a short human-readable form, used by tests; it does not attempt to recover a relocation's resolved value.
func (instr Instruction) String() string {
	info := &Catalog[instr.Op]
	switch info.Operand {
	case OperandMask8, OperandRel8Fixed:
		return info.Mnemonic + " " + string(appendHex8(nil, uint8(instr.Operand)))
	default:
		return info.Mnemonic
	}
}
