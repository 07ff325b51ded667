package asm

import (
	"testing"

	"github.com/snes65816/romgen/pkg/inst"
)

func TestChangeStatusFlagsCoalescesAndSkipsNoOps(t *testing.T) {
	reg := NewRegistry()
	fn := NewFunc("f", func(b *Builder) {
		b.RegA8()  // first set: establishes start size, emits sep
		b.RegA8()  // no-op: A is already 8-bit, must not emit anything
		b.RegX16() // emits rep (xy8 clear)
		b.Emit(inst.Instruction{Op: inst.RTS})
	})
	rf := reg.RegisterFunction(fn)

	var seps, reps int
	for _, m := range rf.Meta {
		switch m.Instr.Op {
		case inst.SEP:
			seps++
		case inst.REP:
			reps++
		}
	}
	if seps != 1 {
		t.Errorf("got %d sep instructions, want 1", seps)
	}
	if reps != 1 {
		t.Errorf("got %d rep instructions, want 1", reps)
	}
}

func TestInconsistentReturnSizesPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for inconsistent return sizes")
		}
	}()
	reg := NewRegistry()
	fn := NewFunc("f", func(b *Builder) {
		l := b.CreateLabel()
		b.RegA8()
		b.Emit(inst.Instruction{Op: inst.RTS})
		l.Define(b)
		b.RegA16()
		b.Emit(inst.Instruction{Op: inst.RTS})
	})
	reg.RegisterFunction(fn)
}

func TestCircularDependencyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a circular call")
		}
	}()

	reg := NewRegistry()
	var a, b *FuncSymbol
	a = NewFunc("a", func(bb *Builder) {
		bb.Call(b)
		bb.Emit(inst.Instruction{Op: inst.RTS})
	})
	b = NewFunc("b", func(bb *Builder) {
		bb.Call(a)
		bb.Emit(inst.Instruction{Op: inst.RTS})
	})
	reg.RegisterFunction(a)
}

func TestCallWithConventionBreaksCircularDependency(t *testing.T) {
	reg := NewRegistry()
	var a, b *FuncSymbol
	a = NewFunc("a", func(bb *Builder) {
		bb.CallWithConvention(b, CallConvention{EntryA: Size8, ExitA: Size8})
		bb.Emit(inst.Instruction{Op: inst.RTS})
	})
	b = NewFunc("b", func(bb *Builder) {
		bb.Call(a)
		bb.Emit(inst.Instruction{Op: inst.RTS})
	})
	rf := reg.RegisterFunction(b)
	if rf.Building {
		t.Fatal("b should have finished building")
	}
}

func TestRegHandleStaleness(t *testing.T) {
	reg := NewRegistry()
	var h RegHandle
	fn := NewFunc("f", func(b *Builder) {
		h = b.RegA8()
		if h.Stale(b) {
			t.Error("freshly returned handle must not be stale")
		}
		b.PullA()
		if !h.Stale(b) {
			t.Error("handle must go stale after a pull on the same register")
		}
		b.Emit(inst.Instruction{Op: inst.RTS})
	})
	reg.RegisterFunction(fn)
}

func TestMarkInputOutputClobber(t *testing.T) {
	reg := NewRegistry()
	fn := NewFunc("f", func(b *Builder) {
		b.MarkInput(CallA)
		b.MarkOutput(CallX)
		b.MarkClobber(CallY)
		b.RegA8()
		b.Emit(inst.Instruction{Op: inst.RTS})
	})
	rf := reg.RegisterFunction(fn)
	if len(rf.CallConv.Inputs) != 1 || rf.CallConv.Inputs[0] != CallA {
		t.Errorf("CallConv.Inputs = %v, want [A]", rf.CallConv.Inputs)
	}
	if len(rf.CallConv.Outputs) != 1 || rf.CallConv.Outputs[0] != CallX {
		t.Errorf("CallConv.Outputs = %v, want [X]", rf.CallConv.Outputs)
	}
	if len(rf.CallConv.Clobbers) != 1 || rf.CallConv.Clobbers[0] != CallY {
		t.Errorf("CallConv.Clobbers = %v, want [Y]", rf.CallConv.Clobbers)
	}
}

func TestIdempotentRegistration(t *testing.T) {
	calls := 0
	fn := NewFunc("f", func(b *Builder) {
		calls++
		b.Emit(inst.Instruction{Op: inst.RTS})
	})
	reg := NewRegistry()
	rf1 := reg.RegisterFunction(fn)
	rf2 := reg.RegisterFunction(fn)
	if rf1 != rf2 {
		t.Error("RegisterFunction must return the identical handle on re-registration")
	}
	if calls != 1 {
		t.Errorf("generator invoked %d times, want 1", calls)
	}
}
