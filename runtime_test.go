package wasmcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/internal/wasm/binary"
)

var testCtx = context.Background()

func TestRuntime_CompileModule_TextAndBinary(t *testing.T) {
	r := NewRuntime(testCtx)

	text, err := r.CompileModule(testCtx, []byte(`(module $add
  (func $add (export "add") (param $a i32) (param $b i32) (result i32)
    local.get $a
    local.get $b
    i32.add))`))
	require.NoError(t, err)
	require.Equal(t, "add", text.name)

	decoded, err := r.CompileModule(testCtx, binary.EncodeModule(text.module))
	require.NoError(t, err)
	require.NotNil(t, decoded)
}

func TestRuntime_CompileModule_DecodeError(t *testing.T) {
	r := NewRuntime(testCtx)
	_, err := r.CompileModule(testCtx, []byte(`(module (func $f unreachable`))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "text", de.Format)
}

func TestRuntime_CompileModule_ValidationError(t *testing.T) {
	r := NewRuntime(testCtx)
	_, err := r.CompileModule(testCtx, []byte(`(module (func $f (result i32) i32.add))`))
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRuntime_InstantiateModule_CallExportedFunction(t *testing.T) {
	r := NewRuntime(testCtx)
	compiled, err := r.CompileModule(testCtx, []byte(`(module
  (func $add (export "add") (param $a i32) (param $b i32) (result i32)
    local.get $a
    local.get $b
    i32.add))`))
	require.NoError(t, err)

	m, err := r.InstantiateModule(testCtx, compiled, NewModuleConfig().WithName("math"))
	require.NoError(t, err)

	fn, ok := m.ExportedFunction("add")
	require.True(t, ok)

	results, err := fn.Call(testCtx, 2, 3)
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, results)
}

func TestRuntime_InstantiateModule_Trap(t *testing.T) {
	r := NewRuntime(testCtx)
	compiled, err := r.CompileModule(testCtx, []byte(`(module
  (func $boom (export "boom")
    unreachable))`))
	require.NoError(t, err)

	m, err := r.InstantiateModule(testCtx, compiled, nil)
	require.NoError(t, err)

	fn, ok := m.ExportedFunction("boom")
	require.True(t, ok)

	_, err = fn.Call(testCtx)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	require.Equal(t, TrapCodeUnreachable, trap.Code)
	require.Equal(t, "boom", trap.Function)
}

func TestRuntime_InstantiateModule_LinkImport(t *testing.T) {
	r := NewRuntime(testCtx)

	builder := r.NewHostModuleBuilder("env")
	builder.NewFunctionBuilder().WithFunc(func(x, y uint32) uint32 { return x + y }).Export("add")
	_, err := builder.Instantiate(testCtx)
	require.NoError(t, err)

	guest, err := r.CompileModule(testCtx, []byte(`(module
  (import "env" "add" (func $add (param i32 i32) (result i32)))
  (func $double (export "double") (param $x i32) (result i32)
    local.get $x
    local.get $x
    call $add))`))
	require.NoError(t, err)

	m, err := r.InstantiateModule(testCtx, guest, nil)
	require.NoError(t, err)

	fn, ok := m.ExportedFunction("double")
	require.True(t, ok)
	results, err := fn.Call(testCtx, 21)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestRuntime_InstantiateModule_LinkErrorMissingImport(t *testing.T) {
	r := NewRuntime(testCtx)
	compiled, err := r.CompileModule(testCtx, []byte(`(module
  (import "env" "add" (func $add (param i32 i32) (result i32))))`))
	require.NoError(t, err)

	_, err = r.InstantiateModule(testCtx, compiled, nil)
	var le *LinkError
	require.ErrorAs(t, err, &le)
	require.Equal(t, "env", le.Module)
	require.Equal(t, "add", le.Name)
}

func TestRuntime_InstantiateModule_StartSectionRuns(t *testing.T) {
	r := NewRuntime(testCtx)
	compiled, err := r.CompileModule(testCtx, []byte(`(module
  (memory 1)
  (func $init
    i32.const 0
    i32.const 7
    i32.store)
  (start $init)
  (func $read (export "read") (result i32)
    i32.const 0
    i32.load))`))
	require.NoError(t, err)

	m, err := r.InstantiateModule(testCtx, compiled, nil)
	require.NoError(t, err)

	fn, ok := m.ExportedFunction("read")
	require.True(t, ok)
	results, err := fn.Call(testCtx)
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, results)
}

func TestModule_Close_RemovesFromRegistry(t *testing.T) {
	r := NewRuntime(testCtx)
	compiled, err := r.CompileModule(testCtx, []byte(`(module)`))
	require.NoError(t, err)

	m, err := r.InstantiateModule(testCtx, compiled, NewModuleConfig().WithName("once"))
	require.NoError(t, err)
	require.Same(t, m, r.modules["once"])

	require.NoError(t, m.Close(testCtx))
	require.Nil(t, r.modules["once"])
}
