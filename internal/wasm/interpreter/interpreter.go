// Package interpreter executes a validated module's functions against a
// flattened wazeroir.CompilationResult. It is a plain stack machine: an
// operand stack of raw uint64 bit patterns, a locals slice per
// activation, and a program counter walking the flattened operation
// stream instead of recursing through nested blocks.
package interpreter

import (
	"context"
	"math"
	"math/bits"

	"github.com/wasmcore/wasmcore/internal/memory"
	"github.com/wasmcore/wasmcore/internal/wasm"
	"github.com/wasmcore/wasmcore/internal/wazeroir"
)

// maxCallDepth bounds recursive module-to-module calls; Go's own
// goroutine stack would eventually overflow first, but this gives a
// deterministic, catchable failure.
const maxCallDepth = 2048

// Engine compiles module-defined function bodies on first use and
// executes them against a shared Store.
type Engine struct {
	store    *wasm.Store
	compiled map[int]*wazeroir.CompilationResult
}

// NewEngine creates an Engine bound to store.
func NewEngine(store *wasm.Store) *Engine {
	return &Engine{store: store, compiled: map[int]*wazeroir.CompilationResult{}}
}

func (e *Engine) compile(addr int, fn *wasm.FunctionInstance) (*wazeroir.CompilationResult, error) {
	if cr, ok := e.compiled[addr]; ok {
		return cr, nil
	}
	cr, err := wazeroir.Compile(fn.Body, fn.Module.Types, func(funcIdx uint32) *wasm.FunctionType {
		return e.store.Functions[fn.Module.Functions[funcIdx]].Type
	})
	if err != nil {
		return nil, err
	}
	e.compiled[addr] = cr
	return cr, nil
}

// Call invokes the function at funcAddr with params, returning its
// results in declaration order.
func (e *Engine) Call(ctx context.Context, funcAddr int, params []uint64) ([]uint64, error) {
	return e.call(ctx, funcAddr, params, 0)
}

func (e *Engine) call(ctx context.Context, funcAddr int, params []uint64, depth int) ([]uint64, error) {
	if depth > maxCallDepth {
		return nil, trap(TrapCodeCallStackExhausted)
	}
	fn := e.store.Functions[funcAddr]

	if fn.IsHost() {
		width := len(params)
		if len(fn.Type.Results) > width {
			width = len(fn.Type.Results)
		}
		stack := make([]uint64, width)
		copy(stack, params)
		fn.GoFunc(ctx, stack)
		return append([]uint64(nil), stack[:len(fn.Type.Results)]...), nil
	}

	cr, err := e.compile(funcAddr, fn)
	if err != nil {
		return nil, err
	}

	locals := make([]uint64, len(params)+len(fn.Locals))
	copy(locals, params)

	vm := &vmState{
		engine: e,
		ctx:    ctx,
		module: fn.Module,
		ops:    cr.Operations,
		locals: locals,
		depth:  depth,
	}
	if err := vm.run(); err != nil {
		return nil, err
	}

	n := len(fn.Type.Results)
	results := make([]uint64, n)
	copy(results, vm.stack[len(vm.stack)-n:])
	return results, nil
}

// vmState is one function activation's execution state.
type vmState struct {
	engine *Engine
	ctx    context.Context
	module *wasm.ModuleInstance
	ops    []wazeroir.Operation
	locals []uint64
	stack  []uint64
	depth  int
}

func (vm *vmState) push(v uint64) { vm.stack = append(vm.stack, v) }
func (vm *vmState) top() uint64   { return vm.stack[len(vm.stack)-1] }
func (vm *vmState) pop() uint64 {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *vmState) pushI32(v int32)   { vm.push(uint64(uint32(v))) }
func (vm *vmState) pushU32(v uint32)  { vm.push(uint64(v)) }
func (vm *vmState) pushI64(v int64)   { vm.push(uint64(v)) }
func (vm *vmState) pushF32(v float32) { vm.push(uint64(math.Float32bits(v))) }
func (vm *vmState) pushF64(v float64) { vm.push(math.Float64bits(v)) }
func (vm *vmState) pushBool(v bool) {
	if v {
		vm.push(1)
	} else {
		vm.push(0)
	}
}

func (vm *vmState) popI32() int32   { return int32(uint32(vm.pop())) }
func (vm *vmState) popU32() uint32  { return uint32(vm.pop()) }
func (vm *vmState) popI64() int64   { return int64(vm.pop()) }
func (vm *vmState) popU64() uint64  { return vm.pop() }
func (vm *vmState) popF32() float32 { return math.Float32frombits(uint32(vm.pop())) }
func (vm *vmState) popF64() float64 { return math.Float64frombits(vm.pop()) }

// run walks the operation stream until it falls off the end (an implicit
// return) or a branch resolves past the last operation (wazeroir's
// returnTarget sentinel).
func (vm *vmState) run() error {
	pc := 0
	for pc < len(vm.ops) {
		op := &vm.ops[pc]
		switch op.Kind {
		case wazeroir.OperationKindStartBlock, wazeroir.OperationKindStartLoop, wazeroir.OperationKindEnd:
			pc++
		case wazeroir.OperationKindElse:
			pc = op.End
		case wazeroir.OperationKindStartIf:
			if vm.popU32() != 0 {
				pc++
			} else {
				pc = op.Else
			}
		default:
			next, err := vm.execInstruction(op, pc)
			if err != nil {
				return err
			}
			pc = next
		}
	}
	return nil
}

// takeBranch resolves a branch target to the pc it jumps to, reshaping
// vm.stack on the way: every value is discarded down to t.Base except
// the top t.Arity values, which are the branch's own result (for a
// block/if label) or re-supplied loop parameters (for a loop label).
// Without this, values pushed inside the exited block but not part of
// its declared arity would linger on the stack underneath whatever runs
// next.
func (vm *vmState) takeBranch(t wazeroir.BranchTarget) int {
	if t.Index < 0 {
		return len(vm.ops)
	}
	if t.Arity > 0 {
		copy(vm.stack[t.Base:], vm.stack[len(vm.stack)-t.Arity:])
	}
	vm.stack = vm.stack[:t.Base+t.Arity]
	return t.Index
}

func (vm *vmState) execInstruction(op *wazeroir.Operation, pc int) (int, error) {
	ins := op.Instr
	switch ins.Opcode {
	case wasm.OpcodeUnreachable:
		return 0, trap(TrapCodeUnreachable)
	case wasm.OpcodeNop:
		return pc + 1, nil

	case wasm.OpcodeBr:
		return vm.takeBranch(op.Target), nil
	case wasm.OpcodeBrIf:
		if vm.popU32() != 0 {
			return vm.takeBranch(op.Target), nil
		}
		return pc + 1, nil
	case wasm.OpcodeBrTable:
		idx := int(vm.popU32())
		if idx >= 0 && idx < len(op.Targets) {
			return vm.takeBranch(op.Targets[idx]), nil
		}
		return vm.takeBranch(op.TargetDefault), nil
	case wasm.OpcodeReturn:
		return len(vm.ops), nil

	case wasm.OpcodeCall:
		return pc + 1, vm.call(ins.Index)
	case wasm.OpcodeCallIndirect:
		return pc + 1, vm.callIndirect(ins.Index2)

	case wasm.OpcodeDrop:
		vm.pop()
		return pc + 1, nil
	case wasm.OpcodeSelect:
		c := vm.popU32()
		b := vm.pop()
		a := vm.pop()
		if c != 0 {
			vm.push(a)
		} else {
			vm.push(b)
		}
		return pc + 1, nil

	case wasm.OpcodeLocalGet:
		vm.push(vm.locals[ins.Index])
		return pc + 1, nil
	case wasm.OpcodeLocalSet:
		vm.locals[ins.Index] = vm.pop()
		return pc + 1, nil
	case wasm.OpcodeLocalTee:
		vm.locals[ins.Index] = vm.top()
		return pc + 1, nil

	case wasm.OpcodeGlobalGet:
		addr := vm.module.Globals[ins.Index]
		vm.push(vm.engine.store.Globals[addr].Get())
		return pc + 1, nil
	case wasm.OpcodeGlobalSet:
		addr := vm.module.Globals[ins.Index]
		vm.engine.store.Globals[addr].Set(vm.pop())
		return pc + 1, nil

	case wasm.OpcodeMemorySize:
		vm.pushU32(vm.memory().PageCount())
		return pc + 1, nil
	case wasm.OpcodeMemoryGrow:
		delta := vm.popU32()
		vm.pushU32(vm.memory().Grow(delta))
		return pc + 1, nil

	case wasm.OpcodeI32Const:
		vm.pushI32(ins.ConstI32)
		return pc + 1, nil
	case wasm.OpcodeI64Const:
		vm.pushI64(ins.ConstI64)
		return pc + 1, nil
	case wasm.OpcodeF32Const:
		vm.pushF32(ins.ConstF32)
		return pc + 1, nil
	case wasm.OpcodeF64Const:
		vm.pushF64(ins.ConstF64)
		return pc + 1, nil

	case wasm.OpcodeMiscPrefix:
		return pc + 1, vm.execMisc(ins.Index)
	}

	if isLoadOpcode(ins.Opcode) {
		return pc + 1, vm.execLoad(ins)
	}
	if isStoreOpcode(ins.Opcode) {
		return pc + 1, vm.execStore(ins)
	}

	err := vm.execNumeric(ins.Opcode)
	return pc + 1, err
}

func (vm *vmState) memory() *memory.Memory {
	return vm.engine.store.Memories[*vm.module.Memory].Store
}

func (vm *vmState) call(funcIdx uint32) error {
	addr := vm.module.Functions[funcIdx]
	fn := vm.engine.store.Functions[addr]
	params := make([]uint64, len(fn.Type.Params))
	for i := len(params) - 1; i >= 0; i-- {
		params[i] = vm.pop()
	}
	results, err := vm.engine.call(vm.ctx, addr, params, vm.depth+1)
	if err != nil {
		return err
	}
	for _, r := range results {
		vm.push(r)
	}
	return nil
}

func (vm *vmState) callIndirect(typeIdx uint32) error {
	elemIdx := vm.popU32()
	if vm.module.Table == nil {
		return trap(TrapCodeUndefinedElement)
	}
	table := vm.engine.store.Tables[*vm.module.Table]
	rawAddr, slot := table.Get(elemIdx)
	switch slot {
	case wasm.TableSlotOutOfRange:
		return trap(TrapCodeUndefinedElement)
	case wasm.TableSlotEmpty:
		return trap(TrapCodeUninitializedElement)
	}
	addr := int(rawAddr)
	fn := vm.engine.store.Functions[addr]
	want := vm.module.Types[typeIdx]
	if !fn.Type.EqualsSignature(want.Params, want.Results) {
		return trap(TrapCodeIndirectCallTypeMismatch)
	}
	params := make([]uint64, len(fn.Type.Params))
	for i := len(params) - 1; i >= 0; i-- {
		params[i] = vm.pop()
	}
	results, err := vm.engine.call(vm.ctx, addr, params, vm.depth+1)
	if err != nil {
		return err
	}
	for _, r := range results {
		vm.push(r)
	}
	return nil
}

// effectiveAddr folds an instruction's static offset immediate into the
// popped dynamic base address.
func effectiveAddr(ins wasm.Instruction, base uint32) uint64 {
	return uint64(base) + uint64(ins.Offset)
}

func (vm *vmState) execLoad(ins wasm.Instruction) error {
	base := vm.popU32()
	addr := effectiveAddr(ins, base)
	mem := vm.memory()

	switch ins.Opcode {
	case wasm.OpcodeI32Load:
		v, ok := mem.ReadUint(addr, 4)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.pushU32(uint32(v))
	case wasm.OpcodeI64Load:
		v, ok := mem.ReadUint(addr, 8)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.push(v)
	case wasm.OpcodeF32Load:
		v, ok := mem.ReadUint(addr, 4)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.push(v)
	case wasm.OpcodeF64Load:
		v, ok := mem.ReadUint(addr, 8)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.push(v)
	case wasm.OpcodeI32Load8S:
		v, ok := mem.ReadUint(addr, 1)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.pushI32(int32(int8(v)))
	case wasm.OpcodeI32Load8U:
		v, ok := mem.ReadUint(addr, 1)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.pushU32(uint32(v))
	case wasm.OpcodeI32Load16S:
		v, ok := mem.ReadUint(addr, 2)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.pushI32(int32(int16(v)))
	case wasm.OpcodeI32Load16U:
		v, ok := mem.ReadUint(addr, 2)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.pushU32(uint32(v))
	case wasm.OpcodeI64Load8S:
		v, ok := mem.ReadUint(addr, 1)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.pushI64(int64(int8(v)))
	case wasm.OpcodeI64Load8U:
		v, ok := mem.ReadUint(addr, 1)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.push(v)
	case wasm.OpcodeI64Load16S:
		v, ok := mem.ReadUint(addr, 2)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.pushI64(int64(int16(v)))
	case wasm.OpcodeI64Load16U:
		v, ok := mem.ReadUint(addr, 2)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.push(v)
	case wasm.OpcodeI64Load32S:
		v, ok := mem.ReadUint(addr, 4)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.pushI64(int64(int32(uint32(v))))
	case wasm.OpcodeI64Load32U:
		v, ok := mem.ReadUint(addr, 4)
		if !ok {
			return trap(TrapCodeOutOfBoundsMemoryAccess)
		}
		vm.push(v)
	}
	return nil
}

func (vm *vmState) execStore(ins wasm.Instruction) error {
	var v uint64
	var width int
	switch ins.Opcode {
	case wasm.OpcodeI32Store:
		v, width = uint64(vm.popU32()), 4
	case wasm.OpcodeI64Store:
		v, width = vm.popU64(), 8
	case wasm.OpcodeF32Store:
		v, width = vm.pop(), 4
	case wasm.OpcodeF64Store:
		v, width = vm.pop(), 8
	case wasm.OpcodeI32Store8:
		v, width = uint64(vm.popU32()), 1
	case wasm.OpcodeI32Store16:
		v, width = uint64(vm.popU32()), 2
	case wasm.OpcodeI64Store8:
		v, width = vm.popU64(), 1
	case wasm.OpcodeI64Store16:
		v, width = vm.popU64(), 2
	case wasm.OpcodeI64Store32:
		v, width = vm.popU64(), 4
	}
	base := vm.popU32()
	addr := effectiveAddr(ins, base)
	if !vm.memory().WriteUint(addr, width, v) {
		return trap(TrapCodeOutOfBoundsMemoryAccess)
	}
	return nil
}

func isLoadOpcode(op wasm.Opcode) bool {
	return op >= wasm.OpcodeI32Load && op <= wasm.OpcodeI64Load32U
}

func isStoreOpcode(op wasm.Opcode) bool {
	return op >= wasm.OpcodeI32Store && op <= wasm.OpcodeI64Store32
}

// execMisc dispatches the 0xFC-prefixed saturating truncation opcodes.
// sub is the immediate sub-opcode, stashed in Instruction.Index by the
// decoder.
func (vm *vmState) execMisc(sub uint32) error {
	switch sub {
	case wasm.OpcodeMiscI32TruncSatF32S:
		vm.pushI32(satTruncToI32(float64(vm.popF32())))
	case wasm.OpcodeMiscI32TruncSatF32U:
		vm.pushU32(satTruncToU32(float64(vm.popF32())))
	case wasm.OpcodeMiscI32TruncSatF64S:
		vm.pushI32(satTruncToI32(vm.popF64()))
	case wasm.OpcodeMiscI32TruncSatF64U:
		vm.pushU32(satTruncToU32(vm.popF64()))
	case wasm.OpcodeMiscI64TruncSatF32S:
		vm.pushI64(satTruncToI64(float64(vm.popF32())))
	case wasm.OpcodeMiscI64TruncSatF32U:
		vm.push(satTruncToU64(float64(vm.popF32())))
	case wasm.OpcodeMiscI64TruncSatF64S:
		vm.pushI64(satTruncToI64(vm.popF64()))
	case wasm.OpcodeMiscI64TruncSatF64U:
		vm.push(satTruncToU64(vm.popF64()))
	}
	return nil
}

// execNumeric handles every opcode whose behavior is a pure function of
// its popped operands: constants, branches, memory, and misc are all
// handled by the caller, so this covers comparisons, arithmetic,
// conversions, and sign-extension.
func (vm *vmState) execNumeric(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeI32Eqz:
		vm.pushBool(vm.popI32() == 0)
	case wasm.OpcodeI32Eq:
		b, a := vm.popI32(), vm.popI32()
		vm.pushBool(a == b)
	case wasm.OpcodeI32Ne:
		b, a := vm.popI32(), vm.popI32()
		vm.pushBool(a != b)
	case wasm.OpcodeI32LtS:
		b, a := vm.popI32(), vm.popI32()
		vm.pushBool(a < b)
	case wasm.OpcodeI32LtU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushBool(a < b)
	case wasm.OpcodeI32GtS:
		b, a := vm.popI32(), vm.popI32()
		vm.pushBool(a > b)
	case wasm.OpcodeI32GtU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushBool(a > b)
	case wasm.OpcodeI32LeS:
		b, a := vm.popI32(), vm.popI32()
		vm.pushBool(a <= b)
	case wasm.OpcodeI32LeU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushBool(a <= b)
	case wasm.OpcodeI32GeS:
		b, a := vm.popI32(), vm.popI32()
		vm.pushBool(a >= b)
	case wasm.OpcodeI32GeU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushBool(a >= b)

	case wasm.OpcodeI64Eqz:
		vm.pushBool(vm.popI64() == 0)
	case wasm.OpcodeI64Eq:
		b, a := vm.popI64(), vm.popI64()
		vm.pushBool(a == b)
	case wasm.OpcodeI64Ne:
		b, a := vm.popI64(), vm.popI64()
		vm.pushBool(a != b)
	case wasm.OpcodeI64LtS:
		b, a := vm.popI64(), vm.popI64()
		vm.pushBool(a < b)
	case wasm.OpcodeI64LtU:
		b, a := vm.popU64(), vm.popU64()
		vm.pushBool(a < b)
	case wasm.OpcodeI64GtS:
		b, a := vm.popI64(), vm.popI64()
		vm.pushBool(a > b)
	case wasm.OpcodeI64GtU:
		b, a := vm.popU64(), vm.popU64()
		vm.pushBool(a > b)
	case wasm.OpcodeI64LeS:
		b, a := vm.popI64(), vm.popI64()
		vm.pushBool(a <= b)
	case wasm.OpcodeI64LeU:
		b, a := vm.popU64(), vm.popU64()
		vm.pushBool(a <= b)
	case wasm.OpcodeI64GeS:
		b, a := vm.popI64(), vm.popI64()
		vm.pushBool(a >= b)
	case wasm.OpcodeI64GeU:
		b, a := vm.popU64(), vm.popU64()
		vm.pushBool(a >= b)

	case wasm.OpcodeF32Eq:
		b, a := vm.popF32(), vm.popF32()
		vm.pushBool(a == b)
	case wasm.OpcodeF32Ne:
		b, a := vm.popF32(), vm.popF32()
		vm.pushBool(a != b)
	case wasm.OpcodeF32Lt:
		b, a := vm.popF32(), vm.popF32()
		vm.pushBool(a < b)
	case wasm.OpcodeF32Gt:
		b, a := vm.popF32(), vm.popF32()
		vm.pushBool(a > b)
	case wasm.OpcodeF32Le:
		b, a := vm.popF32(), vm.popF32()
		vm.pushBool(a <= b)
	case wasm.OpcodeF32Ge:
		b, a := vm.popF32(), vm.popF32()
		vm.pushBool(a >= b)

	case wasm.OpcodeF64Eq:
		b, a := vm.popF64(), vm.popF64()
		vm.pushBool(a == b)
	case wasm.OpcodeF64Ne:
		b, a := vm.popF64(), vm.popF64()
		vm.pushBool(a != b)
	case wasm.OpcodeF64Lt:
		b, a := vm.popF64(), vm.popF64()
		vm.pushBool(a < b)
	case wasm.OpcodeF64Gt:
		b, a := vm.popF64(), vm.popF64()
		vm.pushBool(a > b)
	case wasm.OpcodeF64Le:
		b, a := vm.popF64(), vm.popF64()
		vm.pushBool(a <= b)
	case wasm.OpcodeF64Ge:
		b, a := vm.popF64(), vm.popF64()
		vm.pushBool(a >= b)

	default:
		return vm.execArithmeticAndConversion(op)
	}
	return nil
}

func (vm *vmState) execArithmeticAndConversion(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeI32Clz:
		vm.pushI32(int32(bits.LeadingZeros32(vm.popU32())))
	case wasm.OpcodeI32Ctz:
		vm.pushI32(int32(bits.TrailingZeros32(vm.popU32())))
	case wasm.OpcodeI32Popcnt:
		vm.pushI32(int32(bits.OnesCount32(vm.popU32())))
	case wasm.OpcodeI32Add:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(a + b)
	case wasm.OpcodeI32Sub:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(a - b)
	case wasm.OpcodeI32Mul:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(a * b)
	case wasm.OpcodeI32DivS:
		b, a := vm.popI32(), vm.popI32()
		v, err := i32DivS(a, b)
		if err != nil {
			return err
		}
		vm.pushI32(v)
	case wasm.OpcodeI32DivU:
		b, a := vm.popU32(), vm.popU32()
		v, err := i32DivU(a, b)
		if err != nil {
			return err
		}
		vm.pushU32(v)
	case wasm.OpcodeI32RemS:
		b, a := vm.popI32(), vm.popI32()
		v, err := i32RemS(a, b)
		if err != nil {
			return err
		}
		vm.pushI32(v)
	case wasm.OpcodeI32RemU:
		b, a := vm.popU32(), vm.popU32()
		v, err := i32RemU(a, b)
		if err != nil {
			return err
		}
		vm.pushU32(v)
	case wasm.OpcodeI32And:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(a & b)
	case wasm.OpcodeI32Or:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(a | b)
	case wasm.OpcodeI32Xor:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(a ^ b)
	case wasm.OpcodeI32Shl:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(a << (b & 31))
	case wasm.OpcodeI32ShrS:
		b, a := vm.popU32(), vm.popI32()
		vm.pushI32(a >> (b & 31))
	case wasm.OpcodeI32ShrU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(a >> (b & 31))
	case wasm.OpcodeI32Rotl:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(bits.RotateLeft32(a, int(b)))
	case wasm.OpcodeI32Rotr:
		b, a := vm.popU32(), vm.popU32()
		vm.pushU32(bits.RotateLeft32(a, -int(b)))

	case wasm.OpcodeI64Clz:
		vm.pushI64(int64(bits.LeadingZeros64(vm.popU64())))
	case wasm.OpcodeI64Ctz:
		vm.pushI64(int64(bits.TrailingZeros64(vm.popU64())))
	case wasm.OpcodeI64Popcnt:
		vm.pushI64(int64(bits.OnesCount64(vm.popU64())))
	case wasm.OpcodeI64Add:
		b, a := vm.popU64(), vm.popU64()
		vm.push(a + b)
	case wasm.OpcodeI64Sub:
		b, a := vm.popU64(), vm.popU64()
		vm.push(a - b)
	case wasm.OpcodeI64Mul:
		b, a := vm.popU64(), vm.popU64()
		vm.push(a * b)
	case wasm.OpcodeI64DivS:
		b, a := vm.popI64(), vm.popI64()
		v, err := i64DivS(a, b)
		if err != nil {
			return err
		}
		vm.pushI64(v)
	case wasm.OpcodeI64DivU:
		b, a := vm.popU64(), vm.popU64()
		v, err := i64DivU(a, b)
		if err != nil {
			return err
		}
		vm.push(v)
	case wasm.OpcodeI64RemS:
		b, a := vm.popI64(), vm.popI64()
		v, err := i64RemS(a, b)
		if err != nil {
			return err
		}
		vm.pushI64(v)
	case wasm.OpcodeI64RemU:
		b, a := vm.popU64(), vm.popU64()
		v, err := i64RemU(a, b)
		if err != nil {
			return err
		}
		vm.push(v)
	case wasm.OpcodeI64And:
		b, a := vm.popU64(), vm.popU64()
		vm.push(a & b)
	case wasm.OpcodeI64Or:
		b, a := vm.popU64(), vm.popU64()
		vm.push(a | b)
	case wasm.OpcodeI64Xor:
		b, a := vm.popU64(), vm.popU64()
		vm.push(a ^ b)
	case wasm.OpcodeI64Shl:
		b, a := vm.popU64(), vm.popU64()
		vm.push(a << (b & 63))
	case wasm.OpcodeI64ShrS:
		b, a := vm.popU64(), vm.popI64()
		vm.pushI64(a >> (b & 63))
	case wasm.OpcodeI64ShrU:
		b, a := vm.popU64(), vm.popU64()
		vm.push(a >> (b & 63))
	case wasm.OpcodeI64Rotl:
		b, a := vm.popU64(), vm.popU64()
		vm.push(bits.RotateLeft64(a, int(b)))
	case wasm.OpcodeI64Rotr:
		b, a := vm.popU64(), vm.popU64()
		vm.push(bits.RotateLeft64(a, -int(b)))

	case wasm.OpcodeF32Abs:
		vm.pushF32(float32(math.Abs(float64(vm.popF32()))))
	case wasm.OpcodeF32Neg:
		vm.pushF32(-vm.popF32())
	case wasm.OpcodeF32Ceil:
		vm.pushF32(float32(math.Ceil(float64(vm.popF32()))))
	case wasm.OpcodeF32Floor:
		vm.pushF32(float32(math.Floor(float64(vm.popF32()))))
	case wasm.OpcodeF32Trunc:
		vm.pushF32(float32(math.Trunc(float64(vm.popF32()))))
	case wasm.OpcodeF32Nearest:
		vm.pushF32(float32(math.RoundToEven(float64(vm.popF32()))))
	case wasm.OpcodeF32Sqrt:
		vm.pushF32(float32(math.Sqrt(float64(vm.popF32()))))
	case wasm.OpcodeF32Add:
		b, a := vm.popF32(), vm.popF32()
		vm.pushF32(a + b)
	case wasm.OpcodeF32Sub:
		b, a := vm.popF32(), vm.popF32()
		vm.pushF32(a - b)
	case wasm.OpcodeF32Mul:
		b, a := vm.popF32(), vm.popF32()
		vm.pushF32(a * b)
	case wasm.OpcodeF32Div:
		b, a := vm.popF32(), vm.popF32()
		vm.pushF32(a / b)
	case wasm.OpcodeF32Min:
		b, a := vm.popF32(), vm.popF32()
		vm.pushF32(minF32(a, b))
	case wasm.OpcodeF32Max:
		b, a := vm.popF32(), vm.popF32()
		vm.pushF32(maxF32(a, b))
	case wasm.OpcodeF32Copysign:
		b, a := vm.popF32(), vm.popF32()
		vm.pushF32(float32(math.Copysign(float64(a), float64(b))))

	case wasm.OpcodeF64Abs:
		vm.pushF64(math.Abs(vm.popF64()))
	case wasm.OpcodeF64Neg:
		vm.pushF64(-vm.popF64())
	case wasm.OpcodeF64Ceil:
		vm.pushF64(math.Ceil(vm.popF64()))
	case wasm.OpcodeF64Floor:
		vm.pushF64(math.Floor(vm.popF64()))
	case wasm.OpcodeF64Trunc:
		vm.pushF64(math.Trunc(vm.popF64()))
	case wasm.OpcodeF64Nearest:
		vm.pushF64(math.RoundToEven(vm.popF64()))
	case wasm.OpcodeF64Sqrt:
		vm.pushF64(math.Sqrt(vm.popF64()))
	case wasm.OpcodeF64Add:
		b, a := vm.popF64(), vm.popF64()
		vm.pushF64(a + b)
	case wasm.OpcodeF64Sub:
		b, a := vm.popF64(), vm.popF64()
		vm.pushF64(a - b)
	case wasm.OpcodeF64Mul:
		b, a := vm.popF64(), vm.popF64()
		vm.pushF64(a * b)
	case wasm.OpcodeF64Div:
		b, a := vm.popF64(), vm.popF64()
		vm.pushF64(a / b)
	case wasm.OpcodeF64Min:
		b, a := vm.popF64(), vm.popF64()
		vm.pushF64(minF64(a, b))
	case wasm.OpcodeF64Max:
		b, a := vm.popF64(), vm.popF64()
		vm.pushF64(maxF64(a, b))
	case wasm.OpcodeF64Copysign:
		b, a := vm.popF64(), vm.popF64()
		vm.pushF64(math.Copysign(a, b))

	case wasm.OpcodeI32WrapI64:
		vm.pushI32(int32(uint32(vm.popU64())))
	case wasm.OpcodeI64ExtendI32S:
		vm.pushI64(int64(vm.popI32()))
	case wasm.OpcodeI64ExtendI32U:
		vm.pushI64(int64(vm.popU32()))
	case wasm.OpcodeF32DemoteF64:
		vm.pushF32(float32(vm.popF64()))
	case wasm.OpcodeF64PromoteF32:
		vm.pushF64(float64(vm.popF32()))

	case wasm.OpcodeI32TruncF32S:
		v, err := truncToI32(float64(vm.popF32()))
		if err != nil {
			return err
		}
		vm.pushI32(v)
	case wasm.OpcodeI32TruncF32U:
		v, err := truncToU32(float64(vm.popF32()))
		if err != nil {
			return err
		}
		vm.pushU32(v)
	case wasm.OpcodeI32TruncF64S:
		v, err := truncToI32(vm.popF64())
		if err != nil {
			return err
		}
		vm.pushI32(v)
	case wasm.OpcodeI32TruncF64U:
		v, err := truncToU32(vm.popF64())
		if err != nil {
			return err
		}
		vm.pushU32(v)
	case wasm.OpcodeI64TruncF32S:
		v, err := truncToI64(float64(vm.popF32()))
		if err != nil {
			return err
		}
		vm.pushI64(v)
	case wasm.OpcodeI64TruncF32U:
		v, err := truncToU64(float64(vm.popF32()))
		if err != nil {
			return err
		}
		vm.push(v)
	case wasm.OpcodeI64TruncF64S:
		v, err := truncToI64(vm.popF64())
		if err != nil {
			return err
		}
		vm.pushI64(v)
	case wasm.OpcodeI64TruncF64U:
		v, err := truncToU64(vm.popF64())
		if err != nil {
			return err
		}
		vm.push(v)

	case wasm.OpcodeF32ConvertI32S:
		vm.pushF32(float32(vm.popI32()))
	case wasm.OpcodeF32ConvertI32U:
		vm.pushF32(float32(vm.popU32()))
	case wasm.OpcodeF32ConvertI64S:
		vm.pushF32(float32(vm.popI64()))
	case wasm.OpcodeF32ConvertI64U:
		vm.pushF32(float32(vm.popU64()))
	case wasm.OpcodeF64ConvertI32S:
		vm.pushF64(float64(vm.popI32()))
	case wasm.OpcodeF64ConvertI32U:
		vm.pushF64(float64(vm.popU32()))
	case wasm.OpcodeF64ConvertI64S:
		vm.pushF64(float64(vm.popI64()))
	case wasm.OpcodeF64ConvertI64U:
		vm.pushF64(float64(vm.popU64()))

	case wasm.OpcodeI32ReinterpretF32:
		vm.pushU32(uint32(vm.pop()))
	case wasm.OpcodeI64ReinterpretF64, wasm.OpcodeF32ReinterpretI32, wasm.OpcodeF64ReinterpretI64:
		// Bit pattern on the stack is already in the target's
		// representation; nothing to transform.

	case wasm.OpcodeI32Extend8S:
		vm.pushI32(int32(int8(vm.popI32())))
	case wasm.OpcodeI32Extend16S:
		vm.pushI32(int32(int16(vm.popI32())))
	case wasm.OpcodeI64Extend8S:
		vm.pushI64(int64(int8(vm.popI64())))
	case wasm.OpcodeI64Extend16S:
		vm.pushI64(int64(int16(vm.popI64())))
	case wasm.OpcodeI64Extend32S:
		vm.pushI64(int64(int32(vm.popI64())))
	}
	return nil
}
