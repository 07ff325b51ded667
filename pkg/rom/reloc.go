package rom

import (
	"fmt"

	"github.com/snes65816/romgen/pkg/asm"
	"github.com/snes65816/romgen/pkg/mapper"
)

// ApplyRelocations walks every registered function's metadata and patches
// the operand bytes for each relocation. Must run after Layout has
// assigned every offset.
func (c *BuildContext) ApplyRelocations() error {
	for _, rf := range c.Registry.Functions() {
		for i := range rf.Meta {
			m := &rf.Meta[i]
			if m.Reloc == nil {
				continue
			}
			if err := c.applyOne(rf, m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *BuildContext) applyOne(rf *asm.ResolvedFunction, m *asm.InstrMeta) error {
	reloc := m.Reloc
	operandPos := rf.Offset + m.Offset + 1

	if reloc.Kind.IsPureImmediate() {
		writeLittleEndian(c.rom[operandPos:], uint32(reloc.TargetOffset), reloc.Kind.Width())
		return nil
	}

	targetAddr, err := c.symbolAddress(reloc.TargetSym)
	if err != nil {
		return fmt.Errorf("rom: relocation in %q at +%#x: %w", rf.Name, m.Offset, err)
	}
	targetAddr += uint32(reloc.TargetOffset)

	switch reloc.Kind {
	case asm.RelocRel8:
		curAddr, err := c.instructionAddress(rf, m)
		if err != nil {
			return err
		}
		disp := int32(targetAddr) - int32(curAddr)
		c.rom[operandPos] = byte(int8(disp))
	case asm.RelocAddr16:
		writeLittleEndian(c.rom[operandPos:], targetAddr&0xFFFF, 2)
	case asm.RelocAddr24:
		writeLittleEndian(c.rom[operandPos:], targetAddr&0xFFFFFF, 3)
	case asm.RelocAddrL:
		c.rom[operandPos] = byte(targetAddr)
	case asm.RelocAddrH:
		c.rom[operandPos] = byte(targetAddr >> 8)
	case asm.RelocAddrBank:
		c.rom[operandPos] = byte(targetAddr >> 16)
	default:
		return fmt.Errorf("rom: unhandled relocation kind %v", reloc.Kind)
	}
	return nil
}

func (c *BuildContext) instructionAddress(rf *asm.ResolvedFunction, m *asm.InstrMeta) (uint32, error) {
	return c.offsetToAddr(rf.Offset + m.Offset)
}

// symbolAddress returns sym's CPU-mapped address: an address symbol is
// its own address; a function or data symbol must already have a ROM
// offset assigned by Layout.
func (c *BuildContext) symbolAddress(sym asm.Symbol) (uint32, error) {
	switch s := sym.(type) {
	case asm.AddressSymbol:
		return s.Addr, nil
	case *asm.FuncSymbol:
		rf, ok := c.Registry.LookupFunction(s)
		if !ok {
			return 0, fmt.Errorf("relocation targets unregistered function %q", s.Name)
		}
		return c.offsetToAddr(rf.Offset)
	case *asm.DataSymbol:
		rd, ok := c.Registry.LookupData(s)
		if !ok {
			return 0, fmt.Errorf("relocation targets unregistered data %q", s.Name)
		}
		return c.offsetToAddr(rd.Offset)
	default:
		return 0, fmt.Errorf("relocation targets unknown symbol type %T", sym)
	}
}

func (c *BuildContext) offsetToAddr(offset int) (uint32, error) {
	addr, err := mapper.OffsetToAddr(c.Mode, uint32(offset))
	if err != nil {
		return 0, fmt.Errorf("unknown symbol at layout: %w", err)
	}
	return addr, nil
}

func writeLittleEndian(buf []byte, v uint32, width int) {
	for i := 0; i < width; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}
