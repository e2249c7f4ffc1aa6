package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

func i(op wasm.Opcode) wasm.Instruction { return wasm.Instruction{Opcode: op} }

func localGet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpcodeLocalGet, Index: idx}
}

func i32const(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpcodeI32Const, ConstI32: v}
}

func emptyModule() *wasm.Module {
	return &wasm.Module{ExportSection: map[string]wasm.Export{}}
}

func addFunc(m *wasm.Module, ft wasm.FunctionType, locals []wasm.ValueType, body []wasm.Instruction) {
	m.TypeSection = append(m.TypeSection, ft)
	m.FunctionSection = append(m.FunctionSection, uint32(len(m.TypeSection)-1))
	m.CodeSection = append(m.CodeSection, wasm.Code{LocalTypes: locals, Body: body})
}

func TestValidateAddFunction(t *testing.T) {
	m := emptyModule()
	addFunc(m, wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{localGet(0), localGet(1), i(wasm.OpcodeI32Add)},
	)
	require.NoError(t, ValidateModule(m))
}

func TestValidateTypeMismatchRejected(t *testing.T) {
	m := emptyModule()
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{{Opcode: wasm.OpcodeF32Const}},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateOperandStackUnderflow(t *testing.T) {
	m := emptyModule()
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{i(wasm.OpcodeI32Add)},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateUnreachablePolymorphicStack(t *testing.T) {
	// unreachable followed by an i32.add with nothing on the stack must
	// still type-check.
	m := emptyModule()
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{i(wasm.OpcodeUnreachable), i(wasm.OpcodeI32Add)},
	)
	require.NoError(t, ValidateModule(m))
}

func TestValidateUnreachableStillEnforcesKnownTypes(t *testing.T) {
	// even under unreachable, operands that ARE present on the stack must
	// still match: a known f32 cannot satisfy an i32 add.
	m := emptyModule()
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{i(wasm.OpcodeUnreachable), {Opcode: wasm.OpcodeF32Const}, i(wasm.OpcodeI32Add)},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateBlockResultMismatch(t *testing.T) {
	m := emptyModule()
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{{
			Opcode:    wasm.OpcodeBlock,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then:      []wasm.Instruction{{Opcode: wasm.OpcodeF32Const}},
		}},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateBrTargetsOuterLabel(t *testing.T) {
	// the value br 1 hands to the function's result must be produced
	// inside the block: a value left on the stack from before the block
	// was entered is not visible to the block's own pops.
	m := emptyModule()
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{
			{
				Opcode:    wasm.OpcodeBlock,
				BlockType: wasm.BlockTypeValueSentinel(wasm.ValueTypeI32),
				Then:      []wasm.Instruction{i32const(1), {Opcode: wasm.OpcodeBr, Index: 1}},
			},
		},
	)
	require.NoError(t, ValidateModule(m))
}

func TestValidateBrCannotReachBelowFrameHeight(t *testing.T) {
	// a value pushed before the block starts is not available to satisfy
	// a br out of the block: popping past the block's entry height is an
	// underflow unless the block is already unreachable.
	m := emptyModule()
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{
			i32const(1),
			{
				Opcode:    wasm.OpcodeBlock,
				BlockType: wasm.BlockTypeEmptySentinel,
				Then:      []wasm.Instruction{{Opcode: wasm.OpcodeBr, Index: 1}},
			},
		},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateBrInvalidDepthRejected(t *testing.T) {
	m := emptyModule()
	addFunc(m, wasm.FunctionType{},
		nil,
		[]wasm.Instruction{{Opcode: wasm.OpcodeBr, Index: 5}},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateMemoryInstructionWithoutMemoryRejected(t *testing.T) {
	m := emptyModule()
	addFunc(m, wasm.FunctionType{},
		nil,
		[]wasm.Instruction{i32const(0), {Opcode: wasm.OpcodeI32Load, Align: 2}},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateMisalignedAccessRejected(t *testing.T) {
	m := emptyModule()
	m.MemorySection = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{i32const(0), {Opcode: wasm.OpcodeI32Load, Align: 3}},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateNaturalAlignmentAccepted(t *testing.T) {
	m := emptyModule()
	m.MemorySection = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{i32const(0), {Opcode: wasm.OpcodeI32Load, Align: 2}},
	)
	require.NoError(t, ValidateModule(m))
}

func TestValidateSelectRequiresMatchingOperandTypes(t *testing.T) {
	m := emptyModule()
	addFunc(m, wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		nil,
		[]wasm.Instruction{i32const(1), {Opcode: wasm.OpcodeF32Const}, i32const(1), i(wasm.OpcodeSelect)},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateGlobalSetOnImmutableRejected(t *testing.T) {
	m := emptyModule()
	m.GlobalSection = []wasm.Global{{Type: wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: wasm.Const}}}
	addFunc(m, wasm.FunctionType{},
		nil,
		[]wasm.Instruction{i32const(1), {Opcode: wasm.OpcodeGlobalSet, Index: 0}},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateCallIndirectWithoutTableRejected(t *testing.T) {
	m := emptyModule()
	m.TypeSection = append(m.TypeSection, wasm.FunctionType{})
	addFunc(m, wasm.FunctionType{},
		nil,
		[]wasm.Instruction{i32const(0), {Opcode: wasm.OpcodeCallIndirect, Index2: 0}},
	)
	require.Error(t, ValidateModule(m))
}

func TestValidateMoreThanOneTableRejected(t *testing.T) {
	m := emptyModule()
	m.TableSection = []wasm.TableType{
		{Limits: wasm.Limits{Min: 1}, ElemType: wasm.ElemTypeFuncref},
		{Limits: wasm.Limits{Min: 1}, ElemType: wasm.ElemTypeFuncref},
	}
	require.Error(t, ValidateModuleStructure(m))
}

func TestValidateMoreThanOneMemoryRejected(t *testing.T) {
	m := emptyModule()
	m.MemorySection = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}, {Limits: wasm.Limits{Min: 1}}}
	require.Error(t, ValidateModuleStructure(m))
}
