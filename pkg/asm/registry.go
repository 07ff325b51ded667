package asm

import (
	"fmt"
	"sync"
)

// ResolvedFunction is the generation result for one FuncSymbol: its
// emitted instruction stream, its inferred calling convention, and (once
// layout has run) its assigned ROM offset. Building is true for the
// duration of the generator callback, letting a re-entrant call into the
// same symbol detect the cycle instead of recursing forever.
type ResolvedFunction struct {
	Name string
	Sym *FuncSymbol
	Meta []InstrMeta
	CallConv CallConvention
	Offset int
	Building bool
}

// Size returns the function's total byte length. Valid only after branch
// lowering has resolved every BranchReloc in Meta.
func (rf *ResolvedFunction) Size() int {
	total := 0
	for i := range rf.Meta {
		total += rf.Meta[i].Size()
	}
	return total
}

// ResolvedData is the registration result for one DataSymbol.
type ResolvedData struct {
	Name string
	Sym *DataSymbol
	Bytes []byte
	Offset int
}

// Registry is the ordered, deduplicating symbol table shared by every
// Builder invocation in one assembly run, shaped after the
// teacher's own insertion-ordered result table: a slice preserves
// registration order for deterministic layout, and a map gives O(1)
// re-registration lookups. Safe for concurrent use, though the kernel
// itself never registers from more than one goroutine.
type Registry struct {
	mu sync.Mutex

	funcOrder []*FuncSymbol
	funcs map[*FuncSymbol]*ResolvedFunction

	dataOrder []*DataSymbol
	data map[*DataSymbol]*ResolvedData
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[*FuncSymbol]*ResolvedFunction),
		data: make(map[*DataSymbol]*ResolvedData),
	}
}

// RegisterFunction returns fs's ResolvedFunction, generating it on first
// reference. The placeholder entry is inserted with Building set before
// the generator runs, and the same pointer is mutated in place once
// generation completes, so any re-entrant Call that lands on it mid-build
// observes Building still true.
func (r *Registry) RegisterFunction(fs *FuncSymbol) *ResolvedFunction {
	r.mu.Lock()
	if rf, ok := r.funcs[fs]; ok {
		r.mu.Unlock()
		return rf
	}
	rf := &ResolvedFunction{Name: fs.Name, Sym: fs, Building: true}
	r.funcs[fs] = rf
	r.funcOrder = append(r.funcOrder, fs)
	r.mu.Unlock()

	b := newBuilder(r, fs)
	fs.Gen(b)
	b.build()

	rf.Meta = b.meta
	rf.CallConv = CallConvention{
		EntryA: b.startASize,
		EntryXY: b.startXYSize,
		ExitA: b.endASize,
		ExitXY: b.endXYSize,
		Inputs: b.inputs.values(),
		Outputs: b.outputs.values(),
		Clobbers: b.clobbers.values(),
	}
	rf.Building = false
	return rf
}

// RegisterData returns ds's ResolvedData, registering it on first
// reference.
func (r *Registry) RegisterData(ds *DataSymbol) *ResolvedData {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rd, ok := r.data[ds]; ok {
		return rd
	}
	rd := &ResolvedData{Name: ds.Name, Sym: ds, Bytes: ds.Bytes}
	r.data[ds] = rd
	r.dataOrder = append(r.dataOrder, ds)
	return rd
}

// RegisterSymbol registers sym according to its concrete type. An
// AddressSymbol has no registration state and is left alone.
func (r *Registry) RegisterSymbol(sym Symbol) {
	switch s := sym.(type) {
	case *FuncSymbol:
		r.RegisterFunction(s)
	case *DataSymbol:
		r.RegisterData(s)
	case AddressSymbol:
	default:
		panic(fmt.Sprintf("RegisterSymbol: unknown symbol type %T", sym))
	}
}

// Functions returns every registered function in registration order.
func (r *Registry) Functions() []*ResolvedFunction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ResolvedFunction, len(r.funcOrder))
	for i, fs := range r.funcOrder {
		out[i] = r.funcs[fs]
	}
	return out
}

// DataBlobs returns every registered data blob in registration order.
func (r *Registry) DataBlobs() []*ResolvedData {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ResolvedData, len(r.dataOrder))
	for i, ds := range r.dataOrder {
		out[i] = r.data[ds]
	}
	return out
}

// LookupFunction returns fs's resolved entry without registering it, for
// the relocation applier: by the time layout runs, every symbol a
// relocation can name must already be registered.
func (r *Registry) LookupFunction(fs *FuncSymbol) (*ResolvedFunction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rf, ok := r.funcs[fs]
	return rf, ok
}

// LookupData returns ds's resolved entry without registering it.
func (r *Registry) LookupData(ds *DataSymbol) (*ResolvedData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.data[ds]
	return rd, ok
}
