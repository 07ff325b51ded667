package asm

import "github.com/snes65816/romgen/pkg/inst"

// StoreZero stores a zero of size sz into tgt using stz, which
// needs no register value at all. If the current accumulator size
// already matches sz, one instruction suffices. A 16-bit zero requested
// while A is 8-bit is split into two single-byte stz writes rather than
// flipping A's size, since stz's write width already follows whatever
// mode A is in — widening is free, there's nothing to flip. An 8-bit
// zero requested while A is 16-bit does need a temporary flip down (and
// back), since a 16-bit stz would clobber the byte beyond the target.
func (b *Builder) StoreZero(sz RegSize, tgt Symbol) {
	switch {
	case b.aSize == RegNone:
		b.setA(sz)
		b.emitStz(tgt, 0)
	case sz == b.aSize:
		b.emitStz(tgt, 0)
	case sz == Size16 && b.aSize == Size8:
		b.emitStz(tgt, 0)
		b.emitStz(tgt, 1)
	case sz == Size8 && b.aSize == Size16:
		prev := b.aSize
		b.setA(Size8)
		b.emitStz(tgt, 0)
		b.setA(prev)
	}
}

func (b *Builder) emitStz(tgt Symbol, offset uint16) {
	b.EmitReloc(inst.Instruction{Op: inst.STZ_ADDR}, Relocation{Kind: RelocAddr16, TargetSym: tgt, TargetOffset: offset})
}

// StoreValue loads the literal value into reg at size sz and stores it
// to tgt. A zero value collapses to StoreZero (stz doesn't need
// the accumulator, so there's no reason to load one).
func (b *Builder) StoreValue(sz RegSize, reg CallValue, tgt Symbol, value uint16) {
	if value == 0 {
		b.StoreZero(sz, tgt)
		return
	}
	immKind := RelocImm8
	if sz == Size16 {
		immKind = RelocImm16
	}
	b.StoreReloc(sz, reg, tgt, Relocation{Kind: immKind, TargetOffset: value})
}

// StoreReloc loads reg at size sz from src (a load-time relocation — a
// literal immediate, or an address-of-symbol reference) and stores it to
// tgt. A pure-immediate zero still collapses to StoreZero even through
// this generic path; any other source clobbers reg.
func (b *Builder) StoreReloc(sz RegSize, reg CallValue, tgt Symbol, src Relocation) {
	if src.Kind.IsPureImmediate() && src.TargetOffset == 0 {
		b.StoreZero(sz, tgt)
		return
	}
	b.setRegSize(reg, sz)
	b.EmitReloc(inst.Instruction{Op: loadOp(reg)}, src)
	b.EmitReloc(inst.Instruction{Op: storeOp(reg)}, Relocation{Kind: RelocAddr16, TargetSym: tgt})
	b.bumpGeneration(reg)
	b.clobbers.add(reg)
}

func (b *Builder) setRegSize(reg CallValue, sz RegSize) {
	if reg == CallA {
		b.setA(sz)
		return
	}
	b.setXY(sz)
}

func loadOp(reg CallValue) inst.OpCode {
	switch reg {
	case CallA:
		return inst.LDA_IMM
	case CallX:
		return inst.LDX_IMM
	default:
		return inst.LDY_IMM
	}
}

func storeOp(reg CallValue) inst.OpCode {
	switch reg {
	case CallA:
		return inst.STA_ADDR
	case CallX:
		return inst.STX_ADDR
	default:
		return inst.STY_ADDR
	}
}
