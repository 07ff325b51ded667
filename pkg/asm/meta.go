package asm

import "github.com/snes65816/romgen/pkg/inst"

// InstrMeta records everything the kernel needs about one emitted
// instruction beyond its raw bytes: the instruction itself, its
// byte offset within the function (filled in during finalization), an
// optional relocation, an optional pre-layout branch relocation, the
// register-size modes in effect when it was emitted, and any captured
// source comments.
type InstrMeta struct {
	Instr inst.Instruction
	Offset int
	Reloc *Relocation
	BranchReloc *BranchReloc
	ASize RegSize
	XYSize RegSize
	Comments []string
}

// Size returns this entry's byte size: opcode byte plus whatever operand
// width its relocation (if any) or its catalog form dictates. It must
// only be called once BranchReloc has been resolved (i.e. after branch
// lowering), since the placeholder opcode has no catalog entry.
func (m *InstrMeta) Size() int {
	if m.Reloc != nil {
		return 1 + m.Reloc.Kind.Width()
	}
	info := &inst.Catalog[m.Instr.Op]
	switch info.Operand {
	case inst.OperandMask8, inst.OperandRel8Fixed:
		return 2
	default:
		return 1
	}
}
