package wasm

import (
	"context"

	"github.com/wasmcore/wasmcore/internal/memory"
)

// FunctionInstance is either a WasmFunction or a HostFunction.
type FunctionInstance struct {
	Type *FunctionType

	// Set for a module-defined function.
	Module *ModuleInstance
	Body   []Instruction
	Locals []ValueType // declared locals only, params are not repeated here.

	// Set for a host function; mutually exclusive with Body.
	GoFunc func(ctx context.Context, stack []uint64)

	Name string
}

// IsHost reports whether this instance is a HostFunction.
func (f *FunctionInstance) IsHost() bool { return f.GoFunc != nil }

// TableInstance is a sparse i32-indexed mapping to function addresses,
// bounded by its declared TableType.
type TableInstance struct {
	Type     TableType
	Elements []int64 // -1 marks an empty slot.
}

// TableSlot classifies the result of TableInstance.Get, distinguishing an
// out-of-range index from an in-range slot that no element segment ever
// populated; call_indirect traps differently for each.
type TableSlot int

const (
	TableSlotOK TableSlot = iota
	TableSlotOutOfRange
	TableSlotEmpty
)

// Get returns the function address at i and how it was resolved: the
// address is only meaningful when the result is TableSlotOK.
func (t *TableInstance) Get(i uint32) (int64, TableSlot) {
	if int(i) >= len(t.Elements) {
		return 0, TableSlotOutOfRange
	}
	addr := t.Elements[i]
	if addr < 0 {
		return 0, TableSlotEmpty
	}
	return addr, TableSlotOK
}

// size returns the number of slots in the table.
func (t *TableInstance) size() int { return len(t.Elements) }

// MemoryInstance wraps the linear memory engine with its declared type.
type MemoryInstance struct {
	Type  MemoryType
	Store *memory.Memory
}

// NewMemoryInstance allocates a MemoryInstance per its declared type.
func NewMemoryInstance(t MemoryType) *MemoryInstance {
	max := uint32(memory.MaxPages)
	if t.Max != nil {
		max = *t.Max
	}
	return &MemoryInstance{Type: t, Store: memory.New(t.Min, max)}
}

// GlobalInstance is a mutable cell holding a single Value's bit pattern.
type GlobalInstance struct {
	Type GlobalType
	val  uint64
}

// NewGlobalInstance constructs a GlobalInstance initialized to v.
func NewGlobalInstance(t GlobalType, v uint64) *GlobalInstance {
	return &GlobalInstance{Type: t, val: v}
}

func (g *GlobalInstance) Get() uint64  { return g.val }
func (g *GlobalInstance) Set(v uint64) { g.val = v }

// ModuleInstance is the runtime view of an instantiated module: its index
// spaces map local indices to store addresses.
type ModuleInstance struct {
	Name string

	Types []FunctionType

	// Functions/Tables/Memories/Globals hold store addresses, in index-
	// space order (imports first).
	Functions []int
	Table     *int // at most one; index into Store.Tables.
	Memory    *int
	Globals   []int

	Exports map[string]Export

	FunctionNames map[uint32]string
}
