package text

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

func TestDecodeText_Empty(t *testing.T) {
	mod, err := DecodeText([]byte("(module)"))
	require.NoError(t, err)
	require.Empty(t, mod.TypeSection)
	require.Empty(t, mod.FunctionSection)
}

func TestDecodeText_ImportExportFunc(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (import "foo" "bar" (func $bar (param i32) (result i32)))
  (export "bar" (func $bar))
)`))
	require.NoError(t, err)
	require.Equal(t, []wasm.FunctionType{
		{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
	}, mod.TypeSection)
	require.Equal(t, []wasm.Import{
		{Module: "foo", Name: "bar", Kind: wasm.ExternKindFunc, FuncTypeIndex: 0},
	}, mod.ImportSection)
	require.Equal(t, wasm.Export{Name: "bar", Kind: wasm.ExternKindFunc, Index: 0}, mod.ExportSection["bar"])
	require.Equal(t, "bar", mod.FunctionNames[0])
}

func TestDecodeText_LocalFunctionWithBody(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (func $add (param $a i32) (param $b i32) (result i32)
    local.get $a
    local.get $b
    i32.add)
  (export "add" (func $add))
)`))
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, mod.FunctionSection)
	require.Len(t, mod.CodeSection, 1)
	require.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpcodeLocalGet, Index: 0},
		{Opcode: wasm.OpcodeLocalGet, Index: 1},
		{Opcode: wasm.OpcodeI32Add},
	}, mod.CodeSection[0].Body)
	require.Empty(t, mod.CodeSection[0].LocalTypes)
}

func TestDecodeText_FoldedInstructions(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (func $f (result i32)
    (i32.add (i32.const 1) (i32.const 2)))
)`))
	require.NoError(t, err)
	require.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, ConstI32: 1},
		{Opcode: wasm.OpcodeI32Const, ConstI32: 2},
		{Opcode: wasm.OpcodeI32Add},
	}, mod.CodeSection[0].Body)
}

func TestDecodeText_FoldedIf(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (func $f (param $x i32) (result i32)
    (if (result i32) (local.get $x)
      (then (i32.const 1))
      (else (i32.const 0))))
)`))
	require.NoError(t, err)
	body := mod.CodeSection[0].Body
	require.Len(t, body, 2)
	require.Equal(t, wasm.Instruction{Opcode: wasm.OpcodeLocalGet, Index: 0}, body[0])
	require.Equal(t, wasm.OpcodeIf, body[1].Opcode)
	require.Equal(t, wasm.BlockTypeValueSentinel(wasm.ValueTypeI32), body[1].BlockType)
	require.Equal(t, []wasm.Instruction{{Opcode: wasm.OpcodeI32Const, ConstI32: 1}}, body[1].Then)
	require.Equal(t, []wasm.Instruction{{Opcode: wasm.OpcodeI32Const, ConstI32: 0}}, body[1].Else)
}

func TestDecodeText_PlainBlockAndBranch(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (func $f
    block $done
      br $done
    end)
)`))
	require.NoError(t, err)
	body := mod.CodeSection[0].Body
	require.Len(t, body, 1)
	require.Equal(t, wasm.OpcodeBlock, body[0].Opcode)
	require.Equal(t, []wasm.Instruction{{Opcode: wasm.OpcodeBr, Index: 0}}, body[0].Then)
}

func TestDecodeText_MemoryLoadStoreWithMemArg(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (memory 1)
  (func $f (param $p i32)
    local.get $p
    i32.load offset=4 align=2
    drop)
)`))
	require.NoError(t, err)
	require.Equal(t, wasm.MemoryType{Limits: wasm.Limits{Min: 1}}, mod.MemorySection[0])
	body := mod.CodeSection[0].Body
	require.Equal(t, wasm.Instruction{Opcode: wasm.OpcodeI32Load, Align: 1, Offset: 4}, body[1])
}

func TestDecodeText_GlobalAndData(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (memory 1)
  (global $g (mut i32) (i32.const 5))
  (data (i32.const 0) "hi")
)`))
	require.NoError(t, err)
	require.Equal(t, wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: wasm.Var}, mod.GlobalSection[0].Type)
	require.Equal(t, wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, ConstI32: 5}, mod.GlobalSection[0].Init)
	require.Equal(t, []byte("hi"), mod.DataSection[0].Init)
	require.Equal(t, wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, ConstI32: 0}, mod.DataSection[0].OffsetExpr)
}

func TestDecodeText_TableAndElem(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (table 2 funcref)
  (func $f)
  (func $g)
  (elem (i32.const 0) $f $g)
)`))
	require.NoError(t, err)
	require.Equal(t, wasm.TableType{Limits: wasm.Limits{Min: 2}, ElemType: wasm.ElemTypeFuncref}, mod.TableSection[0])
	require.Equal(t, []uint32{0, 1}, mod.ElementSection[0].Init)
}

func TestDecodeText_StartSection(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (func $main)
  (start $main)
)`))
	require.NoError(t, err)
	require.NotNil(t, mod.StartSection)
	require.Equal(t, uint32(0), *mod.StartSection)
}

func TestDecodeText_ForwardReference(t *testing.T) {
	mod, err := DecodeText([]byte(`(module
  (func $caller (result i32) call $callee)
  (func $callee (result i32) i32.const 9)
)`))
	require.NoError(t, err)
	require.Equal(t, []wasm.Instruction{{Opcode: wasm.OpcodeCall, Index: 1}}, mod.CodeSection[0].Body)
}

func TestDecodeText_SyntaxError(t *testing.T) {
	_, err := DecodeText([]byte(`(module (func (result i32) i32.bogus))`))
	require.Error(t, err)
	_, ok := err.(*DecodeError)
	require.True(t, ok)
}
