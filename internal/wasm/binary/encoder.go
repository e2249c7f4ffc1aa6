package binary

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/wasmcore/wasmcore/internal/leb128"
	"github.com/wasmcore/wasmcore/internal/wasm"
)

// EncodeModule serializes a wasm.Module back to the WebAssembly binary
// format. It is the decoder's inverse, used to check the round-trip
// property decode(encode(m)) == m; export iteration order is normalized
// (sorted by name) so the property holds regardless of Go's randomized
// map order.
func EncodeModule(m *wasm.Module) []byte {
	var out []byte
	out = append(out, magic[:]...)
	out = append(out, byte(version), 0, 0, 0)

	if len(m.TypeSection) > 0 {
		out = appendSection(out, sectionType, encodeTypeSection(m.TypeSection))
	}
	if len(m.ImportSection) > 0 {
		out = appendSection(out, sectionImport, encodeImportSection(m.ImportSection))
	}
	if len(m.FunctionSection) > 0 {
		out = appendSection(out, sectionFunction, encodeU32Vec(m.FunctionSection))
	}
	if len(m.TableSection) > 0 {
		out = appendSection(out, sectionTable, encodeTableSection(m.TableSection))
	}
	if len(m.MemorySection) > 0 {
		out = appendSection(out, sectionMemory, encodeMemorySection(m.MemorySection))
	}
	if len(m.GlobalSection) > 0 {
		out = appendSection(out, sectionGlobal, encodeGlobalSection(m.GlobalSection))
	}
	if len(m.ExportSection) > 0 {
		out = appendSection(out, sectionExport, encodeExportSection(m.ExportSection))
	}
	if m.StartSection != nil {
		out = appendSection(out, sectionStart, leb128.EncodeUint32(*m.StartSection))
	}
	if len(m.ElementSection) > 0 {
		out = appendSection(out, sectionElement, encodeElementSection(m.ElementSection))
	}
	if len(m.CodeSection) > 0 {
		out = appendSection(out, sectionCode, encodeCodeSection(m.CodeSection))
	}
	if len(m.DataSection) > 0 {
		out = appendSection(out, sectionData, encodeDataSection(m.DataSection))
	}
	if len(m.FunctionNames) > 0 || len(m.LocalNames) > 0 {
		out = appendSection(out, sectionCustom, encodeNameSection(m))
	}
	return out
}

func appendSection(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = append(out, leb128.EncodeUint32(uint32(len(payload)))...)
	return append(out, payload...)
}

func encodeU32Vec(v []uint32) []byte {
	out := leb128.EncodeUint32(uint32(len(v)))
	for _, x := range v {
		out = append(out, leb128.EncodeUint32(x)...)
	}
	return out
}

func encodeName(s string) []byte {
	out := leb128.EncodeUint32(uint32(len(s)))
	return append(out, s...)
}

func encodeValueTypeVec(vts []wasm.ValueType) []byte {
	out := leb128.EncodeUint32(uint32(len(vts)))
	return append(out, vts...)
}

func encodeLimits(l wasm.Limits) []byte {
	if l.Max != nil {
		out := []byte{1}
		out = append(out, leb128.EncodeUint32(l.Min)...)
		return append(out, leb128.EncodeUint32(*l.Max)...)
	}
	out := []byte{0}
	return append(out, leb128.EncodeUint32(l.Min)...)
}

func encodeTableType(t wasm.TableType) []byte {
	out := []byte{t.ElemType}
	return append(out, encodeLimits(t.Limits)...)
}

func encodeGlobalType(t wasm.GlobalType) []byte {
	mut := byte(0)
	if t.Mutable {
		mut = 1
	}
	return []byte{t.ValType, mut}
}

func encodeTypeSection(types []wasm.FunctionType) []byte {
	out := leb128.EncodeUint32(uint32(len(types)))
	for _, ft := range types {
		out = append(out, 0x60)
		out = append(out, encodeValueTypeVec(ft.Params)...)
		out = append(out, encodeValueTypeVec(ft.Results)...)
	}
	return out
}

func encodeImportSection(imports []wasm.Import) []byte {
	out := leb128.EncodeUint32(uint32(len(imports)))
	for _, im := range imports {
		out = append(out, encodeName(im.Module)...)
		out = append(out, encodeName(im.Name)...)
		out = append(out, byte(im.Kind))
		switch im.Kind {
		case wasm.ExternKindFunc:
			out = append(out, leb128.EncodeUint32(im.FuncTypeIndex)...)
		case wasm.ExternKindTable:
			out = append(out, encodeTableType(im.TableType)...)
		case wasm.ExternKindMemory:
			out = append(out, encodeLimits(im.MemoryType.Limits)...)
		case wasm.ExternKindGlobal:
			out = append(out, encodeGlobalType(im.GlobalType)...)
		}
	}
	return out
}

func encodeTableSection(tables []wasm.TableType) []byte {
	out := leb128.EncodeUint32(uint32(len(tables)))
	for _, t := range tables {
		out = append(out, encodeTableType(t)...)
	}
	return out
}

func encodeMemorySection(mems []wasm.MemoryType) []byte {
	out := leb128.EncodeUint32(uint32(len(mems)))
	for _, mt := range mems {
		out = append(out, encodeLimits(mt.Limits)...)
	}
	return out
}

func encodeConstantExpression(ce wasm.ConstantExpression) []byte {
	var out []byte
	out = append(out, ce.Opcode)
	switch ce.Opcode {
	case wasm.OpcodeI32Const:
		out = append(out, leb128.EncodeInt32(ce.ConstI32)...)
	case wasm.OpcodeI64Const:
		out = append(out, leb128.EncodeInt64(ce.ConstI64)...)
	case wasm.OpcodeF32Const:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(ce.ConstF32))
		out = append(out, b[:]...)
	case wasm.OpcodeF64Const:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(ce.ConstF64))
		out = append(out, b[:]...)
	case wasm.OpcodeGlobalGet:
		out = append(out, leb128.EncodeUint32(ce.GlobalIndex)...)
	}
	out = append(out, wasm.OpcodeEnd)
	return out
}

func encodeGlobalSection(globals []wasm.Global) []byte {
	out := leb128.EncodeUint32(uint32(len(globals)))
	for _, g := range globals {
		out = append(out, encodeGlobalType(g.Type)...)
		out = append(out, encodeConstantExpression(g.Init)...)
	}
	return out
}

func encodeExportSection(exports map[string]wasm.Export) []byte {
	names := make([]string, 0, len(exports))
	for n := range exports {
		names = append(names, n)
	}
	sort.Strings(names)
	out := leb128.EncodeUint32(uint32(len(names)))
	for _, n := range names {
		e := exports[n]
		out = append(out, encodeName(e.Name)...)
		out = append(out, byte(e.Kind))
		out = append(out, leb128.EncodeUint32(e.Index)...)
	}
	return out
}

func encodeElementSection(elems []wasm.ElementSegment) []byte {
	out := leb128.EncodeUint32(uint32(len(elems)))
	for _, e := range elems {
		out = append(out, leb128.EncodeUint32(0)...) // table index, always 0
		out = append(out, encodeConstantExpression(e.OffsetExpr)...)
		out = append(out, encodeU32Vec(e.Init)...)
	}
	return out
}

func encodeDataSection(segs []wasm.DataSegment) []byte {
	out := leb128.EncodeUint32(uint32(len(segs)))
	for _, d := range segs {
		out = append(out, leb128.EncodeUint32(0)...) // memory index, always 0
		out = append(out, encodeConstantExpression(d.OffsetExpr)...)
		out = append(out, leb128.EncodeUint32(uint32(len(d.Init)))...)
		out = append(out, d.Init...)
	}
	return out
}

func encodeCodeSection(codes []wasm.Code) []byte {
	out := leb128.EncodeUint32(uint32(len(codes)))
	for _, c := range codes {
		body := encodeLocalDecls(c.LocalTypes)
		body = append(body, encodeInstructionSeq(c.Body)...)
		body = append(body, wasm.OpcodeEnd)
		out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
		out = append(out, body...)
	}
	return out
}

// encodeLocalDecls re-groups an expanded per-local type list back into the
// binary format's run-length encoding, one group per maximal run of equal
// types (matching what any decoder, including this package's own, produces
// from a single run-length group per declaration in the source module).
func encodeLocalDecls(locals []wasm.ValueType) []byte {
	type group struct {
		vt    wasm.ValueType
		count uint32
	}
	var groups []group
	for _, vt := range locals {
		if len(groups) > 0 && groups[len(groups)-1].vt == vt {
			groups[len(groups)-1].count++
			continue
		}
		groups = append(groups, group{vt: vt, count: 1})
	}
	out := leb128.EncodeUint32(uint32(len(groups)))
	for _, g := range groups {
		out = append(out, leb128.EncodeUint32(g.count)...)
		out = append(out, g.vt)
	}
	return out
}

func encodeInstructionSeq(instrs []wasm.Instruction) []byte {
	var out []byte
	for _, ins := range instrs {
		out = append(out, encodeInstruction(ins)...)
	}
	return out
}

func encodeInstruction(ins wasm.Instruction) []byte {
	out := []byte{ins.Opcode}
	switch ins.Opcode {
	case wasm.OpcodeBlock, wasm.OpcodeLoop:
		out = append(out, leb128.EncodeInt64(ins.BlockType)...)
		out = append(out, encodeInstructionSeq(ins.Then)...)
		out = append(out, wasm.OpcodeEnd)

	case wasm.OpcodeIf:
		out = append(out, leb128.EncodeInt64(ins.BlockType)...)
		out = append(out, encodeInstructionSeq(ins.Then)...)
		if ins.Else != nil {
			out = append(out, wasm.OpcodeElse)
			out = append(out, encodeInstructionSeq(ins.Else)...)
		}
		out = append(out, wasm.OpcodeEnd)

	case wasm.OpcodeBr, wasm.OpcodeBrIf, wasm.OpcodeCall,
		wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee,
		wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		out = append(out, leb128.EncodeUint32(ins.Index)...)

	case wasm.OpcodeBrTable:
		out = append(out, encodeU32Vec(ins.TargetLabels)...)
		out = append(out, leb128.EncodeUint32(ins.DefaultLabel)...)

	case wasm.OpcodeCallIndirect:
		out = append(out, leb128.EncodeUint32(ins.Index2)...)
		out = append(out, 0) // reserved table index

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		out = append(out, 0) // reserved byte

	case wasm.OpcodeI32Const:
		out = append(out, leb128.EncodeInt32(ins.ConstI32)...)

	case wasm.OpcodeI64Const:
		out = append(out, leb128.EncodeInt64(ins.ConstI64)...)

	case wasm.OpcodeF32Const:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(ins.ConstF32))
		out = append(out, b[:]...)

	case wasm.OpcodeF64Const:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(ins.ConstF64))
		out = append(out, b[:]...)

	case wasm.OpcodeMiscPrefix:
		out = append(out, leb128.EncodeUint32(ins.Index)...)

	default:
		if isLoadOrStoreOpcode(ins.Opcode) {
			out = append(out, leb128.EncodeUint32(ins.Align)...)
			out = append(out, leb128.EncodeUint32(ins.Offset)...)
		}
	}
	return out
}

func encodeNameSection(m *wasm.Module) []byte {
	out := encodeName("name")
	if len(m.FunctionNames) > 0 {
		idxs := make([]uint32, 0, len(m.FunctionNames))
		for idx := range m.FunctionNames {
			idxs = append(idxs, idx)
		}
		sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
		var payload []byte
		payload = append(payload, leb128.EncodeUint32(uint32(len(idxs)))...)
		for _, idx := range idxs {
			payload = append(payload, leb128.EncodeUint32(idx)...)
			payload = append(payload, encodeName(m.FunctionNames[idx])...)
		}
		out = append(out, 1)
		out = append(out, leb128.EncodeUint32(uint32(len(payload)))...)
		out = append(out, payload...)
	}
	if len(m.LocalNames) > 0 {
		funcIdxs := make([]uint32, 0, len(m.LocalNames))
		for idx := range m.LocalNames {
			funcIdxs = append(funcIdxs, idx)
		}
		sort.Slice(funcIdxs, func(i, j int) bool { return funcIdxs[i] < funcIdxs[j] })
		var payload []byte
		payload = append(payload, leb128.EncodeUint32(uint32(len(funcIdxs)))...)
		for _, fi := range funcIdxs {
			locals := m.LocalNames[fi]
			localIdxs := make([]uint32, 0, len(locals))
			for li := range locals {
				localIdxs = append(localIdxs, li)
			}
			sort.Slice(localIdxs, func(i, j int) bool { return localIdxs[i] < localIdxs[j] })
			payload = append(payload, leb128.EncodeUint32(fi)...)
			payload = append(payload, leb128.EncodeUint32(uint32(len(localIdxs)))...)
			for _, li := range localIdxs {
				payload = append(payload, leb128.EncodeUint32(li)...)
				payload = append(payload, encodeName(locals[li])...)
			}
		}
		out = append(out, 2)
		out = append(out, leb128.EncodeUint32(uint32(len(payload)))...)
		out = append(out, payload...)
	}
	return out
}
