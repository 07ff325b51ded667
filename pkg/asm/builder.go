package asm

import (
	"fmt"

	"github.com/snes65816/romgen/pkg/inst"
)

// RegHandle is an opaque, generation-counted reference to a register
// value, per the Design Notes' recommended re-architecture. A handle
// returned by one Builder call becomes stale once an operation that
// advances that register's generation (a clobber, a pull, or an explicit
// size change) has run.
type RegHandle struct {
	reg CallValue
	gen uint32
}

// Stale reports whether h no longer refers to the register's current
// generation.
func (h RegHandle) Stale(b *Builder) bool {
	return h.gen != b.generation(h.reg)
}

// Builder owns the mutable state for exactly one function-in-progress.
// It must not be retained by host code beyond the generator callback's
// return.
type Builder struct {
	reg *Registry
	self *FuncSymbol

	meta []InstrMeta
	labels []int // label id -> instruction index, or labelUndefined

	aSize, xySize RegSize
	startASize, startXYSize RegSize
	endASize, endXYSize RegSize
	endSizesSet bool

	genA, genX, genY uint32

	inputs, outputs, clobbers orderedSet

	comments commentState
}

func newBuilder(reg *Registry, self *FuncSymbol) *Builder {
	return &Builder{reg: reg, self: self}
}

func (b *Builder) generation(reg CallValue) uint32 {
	switch reg {
	case CallA:
		return b.genA
	case CallX:
		return b.genX
	default:
		return b.genY
	}
}

// MarkInput, MarkOutput and MarkClobber let host code declare richer
// calling-convention sets than the Builder can infer on its own (see
// CallConvention's doc comment).
func (b *Builder) MarkInput(v CallValue) { b.inputs.add(v) }
func (b *Builder) MarkOutput(v CallValue) { b.outputs.add(v) }
func (b *Builder) MarkClobber(v CallValue) { b.clobbers.add(v) }

// --- register mode setters ---

func (b *Builder) setA(size RegSize) RegHandle {
	if b.startASize == RegNone {
		b.startASize = size
	}
	if size != RegNone && b.aSize != size {
		mask := StatusFlags{}
		if size == Size8 {
			mask.A8 = Set
		} else {
			mask.A8 = Clear
		}
		b.changeStatusFlagsLocked(mask)
	}
	return RegHandle{CallA, b.genA}
}

func (b *Builder) setXY(size RegSize) {
	if b.startXYSize == RegNone {
		b.startXYSize = size
	}
	if size != RegNone && b.xySize != size {
		mask := StatusFlags{}
		if size == Size8 {
			mask.XY8 = Set
		} else {
			mask.XY8 = Clear
		}
		b.changeStatusFlagsLocked(mask)
	}
}

// RegA8/RegA16 set the accumulator width to 8/16 bits.
func (b *Builder) RegA8() RegHandle { return b.setA(Size8) }
func (b *Builder) RegA16() RegHandle { return b.setA(Size16) }

// RegX8/RegX16 and RegY8/RegY16 set the shared X/Y width; X and Y are the
// same mode variable, so any of these (or the XY pair below) changes both
// registers' effective width.
func (b *Builder) RegX8() RegHandle { b.setXY(Size8); return RegHandle{CallX, b.genX} }
func (b *Builder) RegX16() RegHandle { b.setXY(Size16); return RegHandle{CallX, b.genX} }
func (b *Builder) RegY8() RegHandle { b.setXY(Size8); return RegHandle{CallY, b.genY} }
func (b *Builder) RegY16() RegHandle { b.setXY(Size16); return RegHandle{CallY, b.genY} }

// RegXY8/RegXY16 are the explicit pair form of RegX8/RegX16 etc.
func (b *Builder) RegXY8() { b.setXY(Size8) }
func (b *Builder) RegXY16() { b.setXY(Size16) }

// ChangeStatusFlags coalesces a partial update of the processor status
// register into zero, one, or two instructions. A8/XY8 requests
// that don't actually change the tracked mode are dropped from the mask
// entirely, so they never produce an instruction on their own.
func (b *Builder) ChangeStatusFlags(mask StatusFlags) {
	b.changeStatusFlagsLocked(mask)
}

func (b *Builder) changeStatusFlagsLocked(mask StatusFlags) {
	var setMask, clearMask uint32

	apply := func(tri Tri, bit uint32) {
		switch tri {
		case Set:
			setMask |= bit
		case Clear:
			clearMask |= bit
		}
	}

	if mask.A8 == Set && b.aSize == Size8 {
		mask.A8 = Unchanged
	}
	if mask.A8 == Clear && b.aSize == Size16 {
		mask.A8 = Unchanged
	}
	if mask.XY8 == Set && b.xySize == Size8 {
		mask.XY8 = Unchanged
	}
	if mask.XY8 == Clear && b.xySize == Size16 {
		mask.XY8 = Unchanged
	}

	apply(mask.Carry, statusCarry)
	apply(mask.Zero, statusZero)
	apply(mask.IrqDisable, statusIrqDisable)
	apply(mask.Decimal, statusDecimal)
	apply(mask.XY8, statusXY8)
	apply(mask.A8, statusA8)
	apply(mask.Overflow, statusOverflow)
	apply(mask.Negative, statusNegative)

	if mask.A8 == Set {
		b.aSize = Size8
		b.genA++
	} else if mask.A8 == Clear {
		b.aSize = Size16
		b.genA++
	}
	if mask.XY8 == Set {
		b.xySize = Size8
		b.genX++
		b.genY++
	} else if mask.XY8 == Clear {
		b.xySize = Size16
		b.genX++
		b.genY++
	}

	if setMask != 0 {
		b.emitRaw(inst.Instruction{Op: inst.SEP, Operand: setMask})
	}
	if clearMask != 0 {
		b.emitRaw(inst.Instruction{Op: inst.REP, Operand: clearMask})
	}
}

// --- emission ---

// emitRaw appends a plain instruction (no relocation) with the current
// register-size modes, asserting the return-size invariant for RTS/RTL.
func (b *Builder) emitRaw(instr inst.Instruction) {
	b.append(InstrMeta{Instr: instr, ASize: b.aSize, XYSize: b.xySize})
	b.checkReturn(instr)
}

// Emit appends instr with the current register-size modes and no
// relocation.
func (b *Builder) Emit(instr inst.Instruction) {
	b.emitRaw(instr)
}

// EmitReloc appends instr carrying reloc; its operand bytes are left for
// the relocation applier to fill in after layout. A reloc naming a
// symbol (anything but a pure immediate) registers that symbol now —
// generating it if it's a function the registry hasn't seen yet — so
// every relocation-bearing instruction, not just the ones that went
// through Call, names a symbol that is guaranteed present by layout time.
func (b *Builder) EmitReloc(instr inst.Instruction, reloc Relocation) {
	if !reloc.Kind.IsPureImmediate() && reloc.TargetSym != nil {
		b.reg.RegisterSymbol(reloc.TargetSym)
	}
	b.append(InstrMeta{Instr: instr, ASize: b.aSize, XYSize: b.xySize, Reloc: &reloc})
	b.checkReturn(instr)
}

func (b *Builder) append(m InstrMeta) {
	m.Comments = b.captureComments()
	b.meta = append(b.meta, m)
}

func (b *Builder) checkReturn(instr inst.Instruction) {
	if instr.Op != inst.RTS && instr.Op != inst.RTL {
		return
	}
	if b.endSizesSet {
		if b.endASize != b.aSize || b.endXYSize != b.xySize {
			panic(fmt.Sprintf(
				"inconsistent return sizes: A %s/%s, XY %s/%s",
				b.endASize, b.aSize, b.endXYSize, b.xySize))
		}
		return
	}
	b.endASize, b.endXYSize = b.aSize, b.xySize
	b.endSizesSet = true
}

// --- labels ---

// CreateLabel allocates a new, undefined label owned by this Builder.
func (b *Builder) CreateLabel() Label {
	b.labels = append(b.labels, labelUndefined)
	return Label(len(b.labels) - 1)
}

// DefineLabel defines l at the instruction that will be emitted next.
func (b *Builder) DefineLabel(l Label) {
	b.labels[l] = len(b.meta)
}

// --- calls ---

// Call registers target (forcing its generation if new) and invokes
// CallWithConvention with its resolved calling convention.
func (b *Builder) Call(target *FuncSymbol) {
	rf := b.reg.RegisterFunction(target)
	if rf.Building {
		panic(fmt.Sprintf(
			"circular dependency calling %q: use CallWithConvention or JumpSubroutine",
			target.Name))
	}
	b.CallWithConvention(target, rf.CallConv)
}

// CallWithConvention emits a call to target using an explicitly supplied
// convention instead of reading target's resolved one — the escape hatch
// for circular references. The addr16 relocation still registers target
// through EmitReloc, but a target that is mid-generation is not an error.
func (b *Builder) CallWithConvention(target *FuncSymbol, cc CallConvention) {
	if b.startASize == RegNone && cc.EntryA != RegNone {
		b.aSize, b.startASize = cc.EntryA, cc.EntryA
	} else if cc.EntryA != RegNone {
		b.setA(cc.EntryA)
	}
	if b.startXYSize == RegNone && cc.EntryXY != RegNone {
		b.xySize, b.startXYSize = cc.EntryXY, cc.EntryXY
	} else if cc.EntryXY != RegNone {
		b.setXY(cc.EntryXY)
	}

	if cc.ExitA != RegNone {
		b.aSize = cc.ExitA
	}
	if cc.ExitXY != RegNone {
		b.xySize = cc.ExitXY
	}

	for _, v := range cc.Clobbers {
		b.bumpGeneration(v)
		b.clobbers.add(v)
	}

	b.EmitReloc(inst.Instruction{Op: inst.JSR}, Relocation{Kind: RelocAddr16, TargetSym: target})
}

func (b *Builder) bumpGeneration(v CallValue) {
	switch v {
	case CallA:
		b.genA++
	case CallX:
		b.genX++
	case CallY:
		b.genY++
	}
}

// JumpSubroutine emits a bare machine call with no calling-convention
// bookkeeping at all. Like Call, it registers (and, for a function target
// not yet seen, generates) target through the addr16 relocation EmitReloc
// attaches — but it never reads the resulting calling convention, so a
// target that is itself still mid-generation is not a circular-dependency
// error here.
func (b *Builder) JumpSubroutine(target Symbol) {
	b.EmitReloc(inst.Instruction{Op: inst.JSR}, Relocation{Kind: RelocAddr16, TargetSym: target})
}

// --- branches ---

// BranchAlways appends a branch-relocation placeholder for an
// unconditional control transfer to label, to be resolved by branch
// lowering into a short BRA or a long JMP.
func (b *Builder) BranchAlways(label Label) {
	b.append(InstrMeta{
		Instr: inst.Instruction{Op: inst.BranchPlaceholder},
		ASize: b.aSize,
		XYSize: b.xySize,
		BranchReloc: &BranchReloc{Kind: BranchAlways, Target: label},
	})
}

// JumpLong jumps to either a not-yet-defined in-function label (deferred
// to branch lowering, always resolved to JML) or directly to a symbol
// (emitted immediately as JML with an addr24 relocation).
func (b *Builder) JumpLong(target any) {
	switch t := target.(type) {
	case Label:
		b.append(InstrMeta{
			Instr: inst.Instruction{Op: inst.BranchPlaceholder},
			ASize: b.aSize,
			XYSize: b.xySize,
			BranchReloc: &BranchReloc{Kind: BranchJumpLong, Target: t},
		})
	case Symbol:
		b.EmitReloc(inst.Instruction{Op: inst.JML}, Relocation{Kind: RelocAddr24, TargetSym: t})
	default:
		panic(fmt.Sprintf("JumpLong: target must be a Label or a Symbol, got %T", target))
	}
}

// --- stack ops ---

func (b *Builder) PushA() { b.emitRaw(inst.Instruction{Op: inst.PHA}) }
func (b *Builder) PushX() { b.emitRaw(inst.Instruction{Op: inst.PHX}) }
func (b *Builder) PushY() { b.emitRaw(inst.Instruction{Op: inst.PHY}) }

// PullA/PullX/PullY pull a register off the stack, advancing its
// generation since the pulled value invalidates any handle held for it.
func (b *Builder) PullA() RegHandle { b.emitRaw(inst.Instruction{Op: inst.PLA}); b.genA++; return RegHandle{CallA, b.genA} }
func (b *Builder) PullX() RegHandle { b.emitRaw(inst.Instruction{Op: inst.PLX}); b.genX++; return RegHandle{CallX, b.genX} }
func (b *Builder) PullY() RegHandle { b.emitRaw(inst.Instruction{Op: inst.PLY}); b.genY++; return RegHandle{CallY, b.genY} }

// PushAddr pushes an address value (sym+offset) via PEA.
func (b *Builder) PushAddr(sym Symbol, offset uint16) {
	b.EmitReloc(inst.Instruction{Op: inst.PEA}, Relocation{Kind: RelocAddr16, TargetSym: sym, TargetOffset: offset})
}
