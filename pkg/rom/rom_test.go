package rom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snes65816/romgen/pkg/asm"
	"github.com/snes65816/romgen/pkg/inst"
	"github.com/snes65816/romgen/pkg/mapper"
)

func build(t *testing.T, fs *asm.FuncSymbol) *BuildContext {
	t.Helper()
	c := NewBuildContext(64*1024, mapper.LoROM)
	c.RegisterEntry(fs)
	if err := c.Layout(); err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if err := c.ApplyRelocations(); err != nil {
		t.Fatalf("ApplyRelocations: %v", err)
	}
	return c
}

// Scenario 1: a nop followed by a branch back to itself must assemble to
// a nop, then a short bra back to it. Branch lowering measures a backward
// displacement from the instruction following the target, not the target
// itself, so looping back to offset 0 from a bra at offset 1 gives -2
// (0xFE), matching the scenario's own bytes exactly.
func TestScenarioTinyLoop(t *testing.T) {
	entry := asm.NewFunc("tiny_loop", func(b *asm.Builder) {
		l := b.CreateLabel()
		l.Define(b)
		b.Emit(inst.Instruction{Op: inst.NOP})
		b.BranchAlways(l)
	})

	c := build(t, entry)
	got := c.ROM()[:3]
	want := []byte{0xEA, 0x80, 0xFE}
	if !bytes.Equal(got, want) {
		t.Errorf("tiny loop bytes = % X, want % X", got, want)
	}
}

// Scenario 2: a branch_always whose target is more than 127 bytes behind
// it must be lowered to a long jmp.
func TestScenarioLongBranch(t *testing.T) {
	entry := asm.NewFunc("long_branch", func(b *asm.Builder) {
		l := b.CreateLabel()
		l.Define(b)
		for i := 0; i < 200; i++ {
			b.Emit(inst.Instruction{Op: inst.NOP})
		}
		b.BranchAlways(l)
	})

	c := build(t, entry)
	got := c.ROM()[200:203]
	want := []byte{0x4C, 0x00, 0x80}
	if !bytes.Equal(got, want) {
		t.Errorf("long branch bytes = % X, want % X", got, want)
	}
}

// Scenario 3: calling a function that sets reg_a8 before its own first
// register-size decision propagates that entry size to the caller.
func TestScenarioCallConventionPropagation(t *testing.T) {
	g := asm.NewFunc("g", func(b *asm.Builder) {
		b.RegA8()
		b.Emit(inst.Instruction{Op: inst.RTS})
	})
	f := asm.NewFunc("f", func(b *asm.Builder) {
		b.Call(g)
		b.Emit(inst.Instruction{Op: inst.RTS})
	})

	c := NewBuildContext(4096, mapper.LoROM)
	rf := c.RegisterEntry(f)
	if rf.CallConv.EntryA != asm.Size8 {
		t.Errorf("f.CallConv.EntryA = %v, want Size8", rf.CallConv.EntryA)
	}
}

// Scenario 4: storing a 16-bit zero while A is 8-bit emits two stz
// instructions targeting offsets 0 and 1, with no sep/rep.
func TestScenarioStoreZero16BitWith8BitAccumulator(t *testing.T) {
	target := asm.NewData("target", make([]byte, 2))
	entry := asm.NewFunc("store_zero_entry", func(b *asm.Builder) {
		b.RegA8()
		b.StoreZero(asm.Size16, target)
		b.Emit(inst.Instruction{Op: inst.RTS})
	})

	reg := asm.NewRegistry()
	rf := reg.RegisterFunction(entry)

	// meta[0] is the sep that establishes 8-bit A; the store-zero
	// sequence itself is meta[1:3] and must contain no sep/rep.
	storeSeq := rf.Meta[1:3]

	var stzCount int
	for _, m := range storeSeq {
		if m.Instr.Op == inst.STZ_ADDR {
			stzCount++
			if m.Reloc == nil || m.Reloc.Kind != asm.RelocAddr16 {
				t.Errorf("stz instruction missing addr16 relocation")
			}
		}
		if m.Instr.Op == inst.SEP || m.Instr.Op == inst.REP {
			t.Errorf("unexpected %v instruction in store-zero sequence", m.Instr.Op)
		}
	}
	if stzCount != 2 {
		t.Errorf("got %d stz instructions, want 2", stzCount)
	}
	if storeSeq[1].Reloc.TargetOffset != 1 {
		t.Errorf("second stz targets offset %d, want 1", storeSeq[1].Reloc.TargetOffset)
	}
}

// This fixture exercises several steps together (registration, layout,
// relocation, and address mapping all agreeing on one byte), so the
// multi-field require assertions read more directly than a chain of
// t.Errorf calls would.
func TestLayoutAndRelocationAgainstData(t *testing.T) {
	data := asm.NewData("greeting", []byte{0xAA, 0xBB})
	var loaded *asm.FuncSymbol
	loaded = asm.NewFunc("loader", func(b *asm.Builder) {
		b.RegA16()
		b.EmitReloc(inst.Instruction{Op: inst.LDA_ADDR}, asm.Relocation{Kind: asm.RelocAddr16, TargetSym: data})
		b.Emit(inst.Instruction{Op: inst.RTS})
	})

	c := build(t, loaded)
	rf, ok := c.Registry.LookupFunction(loaded)
	require.True(t, ok, "loader must be registered after build")
	rd, ok := c.Registry.LookupData(data)
	require.True(t, ok, "greeting must be registered after build")
	require.Greater(t, rd.Offset, rf.Offset, "data must be laid out after the function that references it")

	var ldaMeta *asm.InstrMeta
	for i := range rf.Meta {
		if rf.Meta[i].Instr.Op == inst.LDA_ADDR {
			ldaMeta = &rf.Meta[i]
		}
	}
	require.NotNil(t, ldaMeta, "loader must contain an lda instruction")
	require.NotNil(t, ldaMeta.Reloc, "lda instruction must carry a relocation")
	require.Equal(t, asm.RelocAddr16, ldaMeta.Reloc.Kind)

	wantLow := byte(rd.Offset + 0x8000)
	pos := rf.Offset + ldaMeta.Offset + 1
	require.Equal(t, wantLow, c.ROM()[pos], "relocated low address byte")
}
