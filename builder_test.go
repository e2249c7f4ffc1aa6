package wasmcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

func TestHostModuleBuilder_WithFunc_Signature(t *testing.T) {
	r := NewRuntime(testCtx)
	compiled, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, x uint32, y uint64, a float32, b float64) (uint32, float64) {
			return x + uint32(y), float64(a) + b
		}).
		Export("combine").
		Compile(testCtx)
	require.NoError(t, err)

	require.Len(t, compiled.module.TypeSection, 1)
	sig := compiled.module.TypeSection[0]
	require.Equal(t, []wasm.ValueType{
		wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
	}, sig.Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeF64}, sig.Results)
}

func TestHostModuleBuilder_WithFunc_RejectsUnsupportedType(t *testing.T) {
	r := NewRuntime(testCtx)
	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(s string) {}).
		Export("bad").
		Compile(testCtx)
	require.Error(t, err)
}

func TestHostModuleBuilder_Instantiate_CallableFromGuest(t *testing.T) {
	r := NewRuntime(testCtx)

	var got uint32
	builder := r.NewHostModuleBuilder("env")
	builder.NewFunctionBuilder().
		WithFunc(func(x uint32) uint32 {
			got = x
			return x * 2
		}).
		Export("double")

	_, err := builder.Instantiate(testCtx)
	require.NoError(t, err)

	guest, err := r.CompileModule(testCtx, []byte(`(module
  (import "env" "double" (func $double (param i32) (result i32)))
  (func $run (export "run") (result i32)
    i32.const 21
    call $double))`))
	require.NoError(t, err)

	m, err := r.InstantiateModule(testCtx, guest, nil)
	require.NoError(t, err)

	fn, ok := m.ExportedFunction("run")
	require.True(t, ok)
	results, err := fn.Call(testCtx)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
	require.EqualValues(t, 21, got)
}

func TestHostModuleBuilder_WithGoFunction_RawStack(t *testing.T) {
	r := NewRuntime(testCtx)
	builder := r.NewHostModuleBuilder("env")
	builder.NewFunctionBuilder().
		WithGoFunction(func(ctx context.Context, stack []uint64) {
			stack[0] = stack[0] + stack[1]
		}, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32}).
		Export("add")

	m, err := builder.Instantiate(testCtx)
	require.NoError(t, err)

	fn, ok := m.ExportedFunction("add")
	require.True(t, ok)
	results, err := fn.Call(testCtx, 40, 2)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}
