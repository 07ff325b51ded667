package debugfile

import (
	"encoding/binary"
	"io"

	"github.com/snes65816/romgen/pkg/asm"
	"github.com/snes65816/romgen/pkg/inst"
)

// Per-byte coverage flag bits; bit 0 is the LSB. Bits 6 (gsu) and 7
// (cx4) are always 0 — this kernel targets neither coprocessor.
const (
	flagCode byte = 1 << 0
	flagData byte = 1 << 1
	flagJumpTarget byte = 1 << 2
	flagSubEntryPoint byte = 1 << 3
	flagIndexMode8 byte = 1 << 4
	flagMemoryMode8 byte = 1 << 5
)

// BuildCoverage computes the per-ROM-byte coverage-flag array for
// a registry that has already been laid out. Code and mode-flag bits come
// straight off each instruction's own bytes; jump_target/sub_entry_point
// bits require finding the specific instruction a relocation lands on,
// since a relocation's target offset can point mid-function.
func BuildCoverage(romSize int, reg *asm.Registry) []byte {
	flags := make([]byte, romSize)

	for _, rf := range reg.Functions() {
		markCode(flags, rf)
	}
	for _, rd := range reg.DataBlobs() {
		for b := 0; b < len(rd.Bytes); b++ {
			flags[rd.Offset+b] |= flagData
		}
	}
	for _, rf := range reg.Functions() {
		markCallTargets(flags, reg, rf)
	}

	return flags
}

func markCode(flags []byte, rf *asm.ResolvedFunction) {
	for i := range rf.Meta {
		m := &rf.Meta[i]
		size := m.Size()
		pos := rf.Offset + m.Offset
		for b := 0; b < size; b++ {
			flags[pos+b] |= flagCode
			if inst.IsAccumulatorOp(m.Instr.Op) && m.ASize == asm.Size8 {
				flags[pos+b] |= flagMemoryMode8
			}
			if inst.IsIndexOp(m.Instr.Op) && m.XYSize == asm.Size8 {
				flags[pos+b] |= flagIndexMode8
			}
		}
	}
}

func markCallTargets(flags []byte, reg *asm.Registry, rf *asm.ResolvedFunction) {
	for i := range rf.Meta {
		m := &rf.Meta[i]
		if m.Reloc == nil {
			continue
		}
		targetFn, ok := m.Reloc.TargetSym.(*asm.FuncSymbol)
		if !ok {
			continue
		}
		target, ok := reg.LookupFunction(targetFn)
		if !ok {
			continue
		}
		entry := entryAtOrAfter(target, int(m.Reloc.TargetOffset))
		if entry == nil {
			continue
		}

		bit := flagJumpTarget
		if m.Instr.Op == inst.JSR {
			bit = flagSubEntryPoint
		}
		pos := target.Offset + entry.Offset
		for b := 0; b < entry.Size(); b++ {
			flags[pos+b] |= bit
		}
	}
}

// entryAtOrAfter returns the first instruction in rf whose byte offset is
// >= minOffset.
func entryAtOrAfter(rf *asm.ResolvedFunction, minOffset int) *asm.InstrMeta {
	for i := range rf.Meta {
		if rf.Meta[i].Offset >= minOffset {
			return &rf.Meta[i]
		}
	}
	return nil
}

// WriteCoverage writes the full CDLv2 coverage file: the
// literal prefix "CDLv2", a little-endian CRC-32 of rom, then one flag byte per ROM byte.
func WriteCoverage(w io.Writer, rom []byte, reg *asm.Registry) error {
	if _, err := io.WriteString(w, "CDLv2"); err != nil {
		return err
	}
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], CRC32(rom))
	if _, err := w.Write(crcBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(BuildCoverage(len(rom), reg))
	return err
}
