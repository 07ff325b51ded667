// Package rom orchestrates a full build: it owns the symbol registry and
// the output ROM buffer, assigns ROM offsets to every registered function
// and data blob, and patches in every deferred relocation.
package rom

import (
	"fmt"

	"github.com/snes65816/romgen/pkg/asm"
	"github.com/snes65816/romgen/pkg/inst"
	"github.com/snes65816/romgen/pkg/mapper"
)

// BuildContext owns the registry, the in-progress ROM buffer, and the
// chosen cartridge mapping mode for one assembly run.
type BuildContext struct {
	Registry *asm.Registry
	Mode mapper.Mode

	rom []byte
}

// NewBuildContext allocates a zero-filled ROM buffer of romSize bytes and
// a fresh registry.
func NewBuildContext(romSize int, mode mapper.Mode) *BuildContext {
	return &BuildContext{
		Registry: asm.NewRegistry(),
		Mode: mode,
		rom: make([]byte, romSize),
	}
}

// RegisterEntry registers fs as an entry point, which recursively
// generates it and anything it calls.
func (c *BuildContext) RegisterEntry(fs *asm.FuncSymbol) *asm.ResolvedFunction {
	return c.Registry.RegisterFunction(fs)
}

// ROM returns the underlying ROM buffer. Its contents are complete only
// after Layout and ApplyRelocations have both run.
func (c *BuildContext) ROM() []byte {
	return c.rom
}

// Layout assigns ROM offsets to every registered function, then every
// registered data blob, in registration order, and serializes each function's fixed
// instruction bytes into the ROM buffer. Operand bytes belonging to a
// relocation are left zero until ApplyRelocations runs.
func (c *BuildContext) Layout() error {
	offset := 0
	for _, rf := range c.Registry.Functions() {
		rf.Offset = offset
		size := rf.Size()
		if offset+size > len(c.rom) {
			return fmt.Errorf("rom: function %q overflows %d-byte ROM", rf.Name, len(c.rom))
		}
		writeFunction(c.rom, rf)
		offset += size
	}
	for _, rd := range c.Registry.DataBlobs() {
		rd.Offset = offset
		if offset+len(rd.Bytes) > len(c.rom) {
			return fmt.Errorf("rom: data %q overflows %d-byte ROM", rd.Name, len(c.rom))
		}
		copy(c.rom[offset:], rd.Bytes)
		offset += len(rd.Bytes)
	}
	return nil
}

func writeFunction(rom []byte, rf *asm.ResolvedFunction) {
	for i := range rf.Meta {
		m := &rf.Meta[i]
		pos := rf.Offset + m.Offset
		info := &inst.Catalog[m.Instr.Op]
		rom[pos] = info.Byte
		switch info.Operand {
		case inst.OperandMask8, inst.OperandRel8Fixed:
			rom[pos+1] = byte(m.Instr.Operand)
		}
	}
}
