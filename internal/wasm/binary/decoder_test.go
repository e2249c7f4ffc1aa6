package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/internal/leb128"
	"github.com/wasmcore/wasmcore/internal/wasm"
)

func u32p(v uint32) *uint32 { return &v }

// sampleModule exercises every section this package encodes/decodes: one
// imported function, a local function with locals/control flow/memory
// access, a table with an element segment, a memory with a data segment, a
// global, an export of each kind, a start function, and symbolic names.
func sampleModule() *wasm.Module {
	return &wasm.Module{
		TypeSection: []wasm.FunctionType{
			{Params: nil, Results: nil},
			{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		ImportSection: []wasm.Import{
			{Module: "env", Name: "log", Kind: wasm.ExternKindFunc, FuncTypeIndex: 0},
		},
		FunctionSection: []uint32{1},
		TableSection: []wasm.TableType{
			{Limits: wasm.Limits{Min: 1, Max: u32p(4)}, ElemType: wasm.ElemTypeFuncref},
		},
		MemorySection: []wasm.MemoryType{
			{Limits: wasm.Limits{Min: 1}},
		},
		GlobalSection: []wasm.Global{
			{Type: wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: wasm.Var},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, ConstI32: 7}},
		},
		ExportSection: map[string]wasm.Export{
			"add":    {Name: "add", Kind: wasm.ExternKindFunc, Index: 1},
			"memory": {Name: "memory", Kind: wasm.ExternKindMemory, Index: 0},
		},
		StartSection: nil,
		ElementSection: []wasm.ElementSegment{
			{OffsetExpr: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, ConstI32: 0}, Init: []uint32{1}},
		},
		CodeSection: []wasm.Code{
			{
				LocalTypes: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeF64},
				Body: []wasm.Instruction{
					{Opcode: wasm.OpcodeLocalGet, Index: 0},
					{Opcode: wasm.OpcodeLocalGet, Index: 1},
					{Opcode: wasm.OpcodeI32Add},
					{Opcode: wasm.OpcodeLocalTee, Index: 2},
					{
						Opcode:    wasm.OpcodeIf,
						BlockType: wasm.BlockTypeEmptySentinel,
						Then: []wasm.Instruction{
							{Opcode: wasm.OpcodeI32Const, ConstI32: 1},
							{Opcode: wasm.OpcodeI32Load, Align: 2, Offset: 0},
							{Opcode: wasm.OpcodeDrop},
						},
						Else: []wasm.Instruction{
							{Opcode: wasm.OpcodeNop},
						},
					},
					{Opcode: wasm.OpcodeLocalGet, Index: 2},
				},
			},
		},
		DataSection: []wasm.DataSegment{
			{OffsetExpr: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, ConstI32: 0}, Init: []byte("hi")},
		},
		FunctionNames: map[uint32]string{1: "add"},
		LocalNames: map[uint32]map[uint32]string{
			1: {0: "a", 1: "b"},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := sampleModule()
	encoded := EncodeModule(m)

	decoded, err := DecodeBinary(bytes.NewReader(encoded))
	require.NoError(t, err)

	require.Equal(t, m.TypeSection, decoded.TypeSection)
	require.Equal(t, m.ImportSection, decoded.ImportSection)
	require.Equal(t, m.FunctionSection, decoded.FunctionSection)
	require.Equal(t, m.TableSection, decoded.TableSection)
	require.Equal(t, m.MemorySection, decoded.MemorySection)
	require.Equal(t, m.GlobalSection, decoded.GlobalSection)
	require.Equal(t, m.ExportSection, decoded.ExportSection)
	require.Equal(t, m.StartSection, decoded.StartSection)
	require.Equal(t, m.ElementSection, decoded.ElementSection)
	require.Equal(t, m.CodeSection, decoded.CodeSection)
	require.Equal(t, m.DataSection, decoded.DataSection)
	require.Equal(t, m.FunctionNames, decoded.FunctionNames)
	require.Equal(t, m.LocalNames, decoded.LocalNames)
}

func TestEncodeDecodeRoundTripWithStartSection(t *testing.T) {
	m := sampleModule()
	m.StartSection = u32p(1)
	decoded, err := DecodeBinary(bytes.NewReader(EncodeModule(m)))
	require.NoError(t, err)
	require.Equal(t, m.StartSection, decoded.StartSection)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := DecodeBinary(bytes.NewReader([]byte{0, 1, 2, 3, 1, 0, 0, 0}))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	buf := append(append([]byte{}, magic[:]...), 2, 0, 0, 0)
	_, err := DecodeBinary(bytes.NewReader(buf))
	require.Error(t, err)
}

func TestDecodeRejectsOutOfOrderSections(t *testing.T) {
	var buf []byte
	buf = append(buf, magic[:]...)
	buf = append(buf, 1, 0, 0, 0)
	// function section (3) before type section (1): out of order.
	buf = append(buf, sectionFunction, 1, 0)
	buf = append(buf, sectionType, 1, 0)
	_, err := DecodeBinary(bytes.NewReader(buf))
	require.Error(t, err)
}

func TestDecodeRejectsDuplicateExportNames(t *testing.T) {
	m := sampleModule()
	m.ExportSection = map[string]wasm.Export{
		"add": {Name: "add", Kind: wasm.ExternKindFunc, Index: 1},
	}
	encoded := EncodeModule(m)

	var dup []byte
	dup = append(dup, leb128.EncodeUint32(2)...)
	for i := 0; i < 2; i++ {
		dup = append(dup, leb128.EncodeUint32(uint32(len("add")))...)
		dup = append(dup, "add"...)
		dup = append(dup, byte(wasm.ExternKindFunc))
		dup = append(dup, leb128.EncodeUint32(1)...)
	}

	out := replaceSection(t, encoded, sectionExport, dup)
	_, err := DecodeBinary(bytes.NewReader(out))
	require.Error(t, err)
}

func TestDecodeRejectsTrailingSectionBytes(t *testing.T) {
	m := sampleModule()
	encoded := EncodeModule(m)
	payload := append(encodeTypeSection(m.TypeSection), 0xff)
	corrupted := replaceSection(t, encoded, sectionType, payload)
	_, err := DecodeBinary(bytes.NewReader(corrupted))
	require.Error(t, err)
}

// replaceSection rewrites the payload of the first section with the given
// id in encoded, for constructing malformed inputs in tests.
func replaceSection(t *testing.T, encoded []byte, id byte, payload []byte) []byte {
	t.Helper()
	r := newReader(encoded)
	_, err := r.bytes(8)
	require.NoError(t, err)
	out := append([]byte{}, encoded[:8]...)
	found := false
	for !r.atEnd() {
		sid, err := r.byte()
		require.NoError(t, err)
		size, err := r.u32()
		require.NoError(t, err)
		body, err := r.bytes(int(size))
		require.NoError(t, err)
		if sid == id && !found {
			found = true
			out = append(out, sid)
			out = append(out, leb128.EncodeUint32(uint32(len(payload)))...)
			out = append(out, payload...)
			continue
		}
		out = append(out, sid)
		out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
		out = append(out, body...)
	}
	return out
}
