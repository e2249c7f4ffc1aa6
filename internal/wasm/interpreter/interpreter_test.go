package interpreter

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

func i(op wasm.Opcode) wasm.Instruction { return wasm.Instruction{Opcode: op} }

func br(depth uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpcodeBr, Index: depth}
}

func brIf(depth uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpcodeBrIf, Index: depth}
}

func i32const(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpcodeI32Const, ConstI32: v}
}

func f64const(v float64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpcodeF64Const, ConstF64: v}
}

func localGet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpcodeLocalGet, Index: idx}
}

func localSet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpcodeLocalSet, Index: idx}
}

// newTestEngine builds a Store with one empty ModuleInstance and returns an
// Engine plus the Store/ModuleInstance needed to define functions directly,
// bypassing the decoder/validator (exercised separately in their own
// packages).
func newTestEngine() (*Engine, *wasm.Store, *wasm.ModuleInstance) {
	store := wasm.NewStore()
	mod := &wasm.ModuleInstance{}
	return NewEngine(store), store, mod
}

func defineFunc(store *wasm.Store, mod *wasm.ModuleInstance, ft *wasm.FunctionType, locals []wasm.ValueType, body []wasm.Instruction) int {
	return store.AllocateFunction(&wasm.FunctionInstance{Type: ft, Module: mod, Body: body, Locals: locals})
}

func TestCallAddTwoParams(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		localGet(0), localGet(1), i(wasm.OpcodeI32Add),
	})

	results, err := engine.Call(context.Background(), addr, []uint64{uint64(uint32(7)), uint64(uint32(35))})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestCallUnreachableTraps(t *testing.T) {
	engine, store, mod := newTestEngine()
	addr := defineFunc(store, mod, &wasm.FunctionType{}, nil, []wasm.Instruction{i(wasm.OpcodeUnreachable)})

	_, err := engine.Call(context.Background(), addr, nil)
	var tr *Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, TrapCodeUnreachable, tr.Code)
}

func TestCallDivideByZeroTraps(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		i32const(1), i32const(0), i(wasm.OpcodeI32DivS),
	})

	_, err := engine.Call(context.Background(), addr, nil)
	var tr *Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, TrapCodeIntegerDivideByZero, tr.Code)
}

func TestBlockBranchSkipsRemainderOfBlock(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	// (block (br 0) (unreachable)) i32.const 9
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		{
			Opcode:    wasm.OpcodeBlock,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then:      []wasm.Instruction{br(0), i(wasm.OpcodeUnreachable)},
		},
		i32const(9),
	})

	results, err := engine.Call(context.Background(), addr, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{9}, results)
}

func TestLoopBranchRepeatsUntilConditionFalse(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	// loop increments local 0 and branches back while it stays below 3.
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		{
			Opcode:    wasm.OpcodeLoop,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then: []wasm.Instruction{
				localGet(0), i32const(1), i(wasm.OpcodeI32Add), localSet(0),
				localGet(0), i32const(3), i(wasm.OpcodeI32LtS),
				brIf(0),
			},
		},
		localGet(0),
	})

	results, err := engine.Call(context.Background(), addr, []uint64{0})
	require.NoError(t, err)
	require.Equal(t, []uint64{3}, results)
}

func TestIfElseSelectsBranch(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		localGet(0),
		{
			Opcode:    wasm.OpcodeIf,
			BlockType: wasm.BlockTypeValueSentinel(wasm.ValueTypeI32),
			Then:      []wasm.Instruction{i32const(1)},
			Else:   []wasm.Instruction{i32const(0)},
		},
	})

	results, err := engine.Call(context.Background(), addr, []uint64{1})
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, results)

	results, err = engine.Call(context.Background(), addr, []uint64{0})
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, results)
}

func TestBranchOutOfBlockDiscardsValuesPushedInside(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	// local.get 0; block; i32.const 99; br 0; end; i32.const 1; i32.add
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		localGet(0),
		{
			Opcode:    wasm.OpcodeBlock,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then:      []wasm.Instruction{i32const(99), br(0)},
		},
		i32const(1),
		i(wasm.OpcodeI32Add),
	})

	for _, p := range []uint64{0, 5, 41} {
		results, err := engine.Call(context.Background(), addr, []uint64{p})
		require.NoError(t, err)
		require.Equal(t, []uint64{p + 1}, results, "the 99 pushed and abandoned inside the block must not linger under the result")
	}
}

func TestLoopBranchDoesNotAccumulateGarbageAcrossIterations(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	// every iteration that branches back first pushes a throwaway value
	// (an empty block type re-enters the loop with zero params): that
	// value must be discarded on every backward branch, not just the
	// last one, or a long-running loop accumulates unbounded garbage.
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		{
			Opcode:    wasm.OpcodeLoop,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then: []wasm.Instruction{
				localGet(0), i32const(1), i(wasm.OpcodeI32Add), localSet(0),
				localGet(0), i32const(200), i(wasm.OpcodeI32LtS),
				{
					Opcode:    wasm.OpcodeIf,
					BlockType: wasm.BlockTypeEmptySentinel,
					Then:      []wasm.Instruction{i32const(7), br(1)},
				},
			},
		},
		localGet(0),
	})

	results, err := engine.Call(context.Background(), addr, []uint64{0})
	require.NoError(t, err)
	require.Equal(t, []uint64{200}, results)
}

func TestCallIndirectInvokesTableFunction(t *testing.T) {
	engine, store, mod := newTestEngine()
	calleeType := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	calleeAddr := defineFunc(store, mod, calleeType, nil, []wasm.Instruction{i32const(99)})

	tableAddr := store.AllocateTable(&wasm.TableInstance{Elements: []int64{int64(calleeAddr)}})
	mod.Table = &tableAddr
	mod.Types = []wasm.FunctionType{*calleeType}

	callerAddr := defineFunc(store, mod, &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}, nil, []wasm.Instruction{
		i32const(0),
		{Opcode: wasm.OpcodeCallIndirect, Index2: 0},
	})

	results, err := engine.Call(context.Background(), callerAddr, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{99}, results)
}

func TestCallIndirectTypeMismatchTraps(t *testing.T) {
	engine, store, mod := newTestEngine()
	calleeType := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	calleeAddr := defineFunc(store, mod, calleeType, nil, []wasm.Instruction{i32const(1)})

	tableAddr := store.AllocateTable(&wasm.TableInstance{Elements: []int64{int64(calleeAddr)}})
	mod.Table = &tableAddr
	mod.Types = []wasm.FunctionType{{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}}

	callerAddr := defineFunc(store, mod, &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}, nil, []wasm.Instruction{
		i32const(0),
		{Opcode: wasm.OpcodeCallIndirect, Index2: 0},
	})

	_, err := engine.Call(context.Background(), callerAddr, nil)
	var tr *Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, TrapCodeIndirectCallTypeMismatch, tr.Code)
}

func TestMemoryLoadStoreRoundTrip(t *testing.T) {
	engine, store, mod := newTestEngine()
	memAddr := store.AllocateMemory(wasm.NewMemoryInstance(wasm.MemoryType{Limits: wasm.Limits{Min: 1}}))
	mod.Memory = &memAddr

	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		i32const(0), i32const(12345), {Opcode: wasm.OpcodeI32Store},
		i32const(0), {Opcode: wasm.OpcodeI32Load},
	})

	results, err := engine.Call(context.Background(), addr, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{12345}, results)
}

func TestMemoryLoadOutOfBoundsTraps(t *testing.T) {
	engine, store, mod := newTestEngine()
	memAddr := store.AllocateMemory(wasm.NewMemoryInstance(wasm.MemoryType{Limits: wasm.Limits{Min: 1}}))
	mod.Memory = &memAddr

	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		i32const(70000), {Opcode: wasm.OpcodeI32Load},
	})

	_, err := engine.Call(context.Background(), addr, nil)
	var tr *Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, TrapCodeOutOfBoundsMemoryAccess, tr.Code)
}

func TestHostFunctionCall(t *testing.T) {
	engine, store, mod := newTestEngine()
	hostAddr := store.AllocateFunction(&wasm.FunctionInstance{
		Type: &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		GoFunc: func(ctx context.Context, stack []uint64) {
			stack[0] = stack[0] * 2
		},
	})
	mod.Functions = []int{hostAddr}

	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		i32const(21),
		{Opcode: wasm.OpcodeCall, Index: 0},
	})

	results, err := engine.Call(context.Background(), addr, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestSaturatingTruncationOfNaNYieldsZero(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		f64const(math.NaN()),
		{Opcode: wasm.OpcodeMiscPrefix, Index: wasm.OpcodeMiscI32TruncSatF64S},
	})

	results, err := engine.Call(context.Background(), addr, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, results)
}

func TestTrappingTruncationOfNaNTraps(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		f64const(math.NaN()),
		i(wasm.OpcodeI32TruncF64S),
	})

	_, err := engine.Call(context.Background(), addr, nil)
	var tr *Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, TrapCodeInvalidConversionToInteger, tr.Code)
}

func TestFloatMinPrefersNegativeZero(t *testing.T) {
	engine, store, mod := newTestEngine()
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeF64}}
	addr := defineFunc(store, mod, ft, nil, []wasm.Instruction{
		f64const(0), f64const(math.Copysign(0, -1)),
		i(wasm.OpcodeF64Min),
	})

	results, err := engine.Call(context.Background(), addr, nil)
	require.NoError(t, err)
	require.True(t, math.Signbit(math.Float64frombits(results[0])))
}

func TestDeepRecursionTrapsCallStackExhausted(t *testing.T) {
	engine, store, mod := newTestEngine()
	addr := defineFunc(store, mod, &wasm.FunctionType{}, nil, nil)
	// Self-recursive call with no base case.
	store.Functions[addr].Body = []wasm.Instruction{
		{Opcode: wasm.OpcodeCall, Index: uint32(addr)},
	}
	mod.Functions = []int{addr}

	_, err := engine.Call(context.Background(), addr, nil)
	var tr *Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, TrapCodeCallStackExhausted, tr.Code)
}
