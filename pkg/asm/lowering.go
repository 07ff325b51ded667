package asm

import "github.com/snes65816/romgen/pkg/inst"

const (
	minRel8 = -128
	maxRel8 = 127
)

// lowerBranches resolves every BranchReloc placeholder into a concrete
// instruction. BranchJumpLong always becomes a 4-byte JML — its
// width doesn't depend on distance, so it needs no iteration. BranchAlways
// starts optimistic as a 2-byte BRA and is promoted to a 3-byte JMP once
// its displacement no longer fits a signed 8-bit range; promoting one
// branch can push another branch's target out of range, so the pass
// repeats to a fixed point before anything is finalized.
func (b *Builder) lowerBranches() {
	long := make([]bool, len(b.meta))
	offsets := make([]int, len(b.meta)+1)

	sizeOf := func(i int) int {
		m := &b.meta[i]
		if m.BranchReloc == nil {
			return m.Size()
		}
		if m.BranchReloc.Kind == BranchJumpLong {
			return 4
		}
		if long[i] {
			return 3
		}
		return 2
	}

	recompute := func() {
		offset := 0
		for i := range b.meta {
			offsets[i] = offset
			offset += sizeOf(i)
		}
		offsets[len(b.meta)] = offset
	}

	targetIndex := func(l Label) int {
		idx := b.labels[l]
		if idx < 0 {
			panic("branch target label was never defined")
		}
		return idx
	}

	// anchor is the offset the displacement is measured against: the
	// target instruction's own offset for a branch reaching forward, or
	// the offset of the instruction immediately following the target for
	// a branch reaching backward (or at itself) — the byte distance is
	// summed over every metadata entry strictly between the instruction
	// after s and that anchor, per the branch-lowering accounting.
	anchor := func(targetIdx, s int) int {
		if targetIdx > s {
			return offsets[targetIdx]
		}
		return offsets[targetIdx+1]
	}

	displacement := func(s int) int {
		targetIdx := targetIndex(b.meta[s].BranchReloc.Target)
		return anchor(targetIdx, s) - (offsets[s] + 2)
	}

	for {
		recompute()
		changed := false
		for i := range b.meta {
			br := b.meta[i].BranchReloc
			if br == nil || br.Kind != BranchAlways || long[i] {
				continue
			}
			if disp := displacement(i); disp < minRel8 || disp > maxRel8 {
				long[i] = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	recompute()

	for i := range b.meta {
		m := &b.meta[i]
		br := m.BranchReloc
		if br == nil {
			continue
		}
		switch br.Kind {
		case BranchJumpLong:
			m.Instr = inst.Instruction{Op: inst.JML}
			m.Reloc = &Relocation{
				Kind: RelocAddr24,
				TargetSym: b.self,
				TargetOffset: uint16(offsets[targetIndex(br.Target)]),
			}
		case BranchAlways:
			if long[i] {
				m.Instr = inst.Instruction{Op: inst.JMP}
				m.Reloc = &Relocation{
					Kind: RelocAddr16,
					TargetSym: b.self,
					TargetOffset: uint16(offsets[targetIndex(br.Target)]),
				}
			} else {
				disp := displacement(i)
				m.Instr = inst.Instruction{Op: inst.BRA, Operand: uint32(uint8(int8(disp)))}
			}
		}
		m.BranchReloc = nil
	}
}
