package binary

import (
	"io"

	"github.com/pkg/errors"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

var magic = [4]byte{0x00, 0x61, 0x73, 0x6d} // "\0asm"

const version = 1

// Section IDs.
const (
	sectionCustom = iota
	sectionType
	sectionImport
	sectionFunction
	sectionTable
	sectionMemory
	sectionGlobal
	sectionExport
	sectionStart
	sectionElement
	sectionCode
	sectionData
)

// DecodeBinary parses the WebAssembly binary format into a wasm.Module. It
// performs no validation beyond what is needed to build a well-formed AST
// (duplicate export names, well-formed LEB128, known section ids);
// semantic checks are package validator's job.
func DecodeBinary(r io.Reader) (*wasm.Module, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading module bytes")
	}
	br := newReader(all)

	hdr, err := br.bytes(4)
	if err != nil {
		return nil, br.decodeErrf("missing magic number")
	}
	if hdr[0] != magic[0] || hdr[1] != magic[1] || hdr[2] != magic[2] || hdr[3] != magic[3] {
		return nil, br.decodeErrf("invalid magic number")
	}
	ver, err := br.bytes(4)
	if err != nil {
		return nil, br.decodeErrf("missing version")
	}
	if ver[0] != version || ver[1] != 0 || ver[2] != 0 || ver[3] != 0 {
		return nil, br.decodeErrf("unsupported binary version")
	}

	mod := &wasm.Module{ExportSection: map[string]wasm.Export{}}

	var lastSectionID = -1
	for !br.atEnd() {
		id, err := br.byte()
		if err != nil {
			return nil, err
		}
		size, err := br.u32()
		if err != nil {
			return nil, err
		}
		payload, err := br.bytes(int(size))
		if err != nil {
			return nil, err
		}
		if id != sectionCustom {
			if int(id) <= lastSectionID {
				return nil, br.decodeErrf("section id %d out of order", id)
			}
			lastSectionID = int(id)
		}
		sr := newReader(payload)
		switch id {
		case sectionCustom:
			if err := decodeCustomSection(sr, mod); err != nil {
				return nil, err
			}
		case sectionType:
			if mod.TypeSection, err = decodeTypeSection(sr); err != nil {
				return nil, err
			}
		case sectionImport:
			if mod.ImportSection, err = decodeImportSection(sr); err != nil {
				return nil, err
			}
		case sectionFunction:
			if mod.FunctionSection, err = decodeFunctionSection(sr); err != nil {
				return nil, err
			}
		case sectionTable:
			if mod.TableSection, err = decodeTableSection(sr); err != nil {
				return nil, err
			}
		case sectionMemory:
			if mod.MemorySection, err = decodeMemorySection(sr); err != nil {
				return nil, err
			}
		case sectionGlobal:
			if mod.GlobalSection, err = decodeGlobalSection(sr); err != nil {
				return nil, err
			}
		case sectionExport:
			if err := decodeExportSection(sr, mod); err != nil {
				return nil, err
			}
		case sectionStart:
			idx, err := sr.u32()
			if err != nil {
				return nil, err
			}
			mod.StartSection = &idx
		case sectionElement:
			if mod.ElementSection, err = decodeElementSection(sr); err != nil {
				return nil, err
			}
		case sectionCode:
			if mod.CodeSection, err = decodeCodeSection(sr); err != nil {
				return nil, err
			}
		case sectionData:
			if mod.DataSection, err = decodeDataSection(sr); err != nil {
				return nil, err
			}
		default:
			return nil, br.decodeErrf("unknown section id %d", id)
		}
		if !sr.atEnd() {
			return nil, sr.decodeErrf("section %d has %d trailing bytes", id, len(sr.buf)-sr.pos)
		}
	}
	return mod, nil
}

func decodeTypeSection(r *reader) ([]wasm.FunctionType, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.FunctionType, n)
	for i := range out {
		form, err := r.byte()
		if err != nil {
			return nil, err
		}
		if form != 0x60 {
			return nil, r.decodeErrf("invalid functype form 0x%x", form)
		}
		params, err := decodeValueTypeVec(r)
		if err != nil {
			return nil, err
		}
		results, err := decodeValueTypeVec(r)
		if err != nil {
			return nil, err
		}
		if len(results) > 1 {
			return nil, r.decodeErrf("function type has more than one result")
		}
		out[i] = wasm.FunctionType{Params: params, Results: results}
	}
	return out, nil
}

func decodeValueTypeVec(r *reader) ([]wasm.ValueType, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ValueType, n)
	for i := range out {
		b, err := r.byte()
		if err != nil {
			return nil, err
		}
		if !isValueType(b) {
			return nil, r.decodeErrf("invalid value type 0x%x", b)
		}
		out[i] = b
	}
	return out, nil
}

func isValueType(b byte) bool {
	switch b {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
		return true
	}
	return false
}

func decodeImportSection(r *reader) ([]wasm.Import, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Import, n)
	for i := range out {
		mod, err := r.name()
		if err != nil {
			return nil, err
		}
		name, err := r.name()
		if err != nil {
			return nil, err
		}
		kind, err := r.byte()
		if err != nil {
			return nil, err
		}
		im := wasm.Import{Module: mod, Name: name, Kind: wasm.ExternKind(kind)}
		switch im.Kind {
		case wasm.ExternKindFunc:
			if im.FuncTypeIndex, err = r.u32(); err != nil {
				return nil, err
			}
		case wasm.ExternKindTable:
			if im.TableType, err = decodeTableType(r); err != nil {
				return nil, err
			}
		case wasm.ExternKindMemory:
			lim, err := r.limits()
			if err != nil {
				return nil, err
			}
			im.MemoryType = wasm.MemoryType{Limits: lim}
		case wasm.ExternKindGlobal:
			if im.GlobalType, err = decodeGlobalType(r); err != nil {
				return nil, err
			}
		default:
			return nil, r.decodeErrf("invalid import kind 0x%x", kind)
		}
		out[i] = im
	}
	return out, nil
}

func decodeTableType(r *reader) (wasm.TableType, error) {
	elem, err := r.byte()
	if err != nil {
		return wasm.TableType{}, err
	}
	if elem != wasm.ElemTypeFuncref {
		return wasm.TableType{}, r.decodeErrf("invalid table element type 0x%x", elem)
	}
	lim, err := r.limits()
	if err != nil {
		return wasm.TableType{}, err
	}
	return wasm.TableType{Limits: lim, ElemType: elem}, nil
}

func decodeGlobalType(r *reader) (wasm.GlobalType, error) {
	vt, err := r.byte()
	if err != nil {
		return wasm.GlobalType{}, err
	}
	if !isValueType(vt) {
		return wasm.GlobalType{}, r.decodeErrf("invalid global value type 0x%x", vt)
	}
	mut, err := r.byte()
	if err != nil {
		return wasm.GlobalType{}, err
	}
	if mut > 1 {
		return wasm.GlobalType{}, r.decodeErrf("invalid mutability 0x%x", mut)
	}
	return wasm.GlobalType{ValType: vt, Mutable: wasm.Mutability(mut == 1)}, nil
}

func decodeFunctionSection(r *reader) ([]uint32, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = r.u32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeTableSection(r *reader) ([]wasm.TableType, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.TableType, n)
	for i := range out {
		if out[i], err = decodeTableType(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeMemorySection(r *reader) ([]wasm.MemoryType, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.MemoryType, n)
	for i := range out {
		lim, err := r.limits()
		if err != nil {
			return nil, err
		}
		out[i] = wasm.MemoryType{Limits: lim}
	}
	return out, nil
}

func decodeGlobalSection(r *reader) ([]wasm.Global, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Global, n)
	for i := range out {
		gt, err := decodeGlobalType(r)
		if err != nil {
			return nil, err
		}
		init, err := decodeConstantExpression(r)
		if err != nil {
			return nil, err
		}
		out[i] = wasm.Global{Type: gt, Init: init}
	}
	return out, nil
}

func decodeConstantExpression(r *reader) (wasm.ConstantExpression, error) {
	op, err := r.byte()
	if err != nil {
		return wasm.ConstantExpression{}, err
	}
	var ce wasm.ConstantExpression
	ce.Opcode = op
	switch op {
	case wasm.OpcodeI32Const:
		if ce.ConstI32, err = r.i32(); err != nil {
			return ce, err
		}
	case wasm.OpcodeI64Const:
		if ce.ConstI64, err = r.i64(); err != nil {
			return ce, err
		}
	case wasm.OpcodeF32Const:
		if ce.ConstF32, err = r.f32(); err != nil {
			return ce, err
		}
	case wasm.OpcodeF64Const:
		if ce.ConstF64, err = r.f64(); err != nil {
			return ce, err
		}
	case wasm.OpcodeGlobalGet:
		if ce.GlobalIndex, err = r.u32(); err != nil {
			return ce, err
		}
	default:
		return ce, r.decodeErrf("invalid constant expression opcode 0x%x", op)
	}
	end, err := r.byte()
	if err != nil {
		return ce, err
	}
	if end != wasm.OpcodeEnd {
		return ce, r.decodeErrf("constant expression missing end opcode")
	}
	return ce, nil
}

func decodeExportSection(r *reader, mod *wasm.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		idx, err := r.u32()
		if err != nil {
			return err
		}
		if _, dup := mod.ExportSection[name]; dup {
			return r.decodeErrf("duplicate export name %q", name)
		}
		mod.ExportSection[name] = wasm.Export{Name: name, Kind: wasm.ExternKind(kind), Index: idx}
	}
	return nil
}

func decodeElementSection(r *reader) ([]wasm.ElementSegment, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ElementSegment, n)
	for i := range out {
		tblIdx, err := r.u32()
		if err != nil {
			return nil, err
		}
		if tblIdx != 0 {
			return nil, r.decodeErrf("non-zero table index %d in element segment", tblIdx)
		}
		offset, err := decodeConstantExpression(r)
		if err != nil {
			return nil, err
		}
		cnt, err := r.u32()
		if err != nil {
			return nil, err
		}
		init := make([]uint32, cnt)
		for j := range init {
			if init[j], err = r.u32(); err != nil {
				return nil, err
			}
		}
		out[i] = wasm.ElementSegment{OffsetExpr: offset, Init: init}
	}
	return out, nil
}

func decodeDataSection(r *reader) ([]wasm.DataSegment, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.DataSegment, n)
	for i := range out {
		memIdx, err := r.u32()
		if err != nil {
			return nil, err
		}
		if memIdx != 0 {
			return nil, r.decodeErrf("non-zero memory index %d in data segment", memIdx)
		}
		offset, err := decodeConstantExpression(r)
		if err != nil {
			return nil, err
		}
		cnt, err := r.u32()
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(cnt))
		if err != nil {
			return nil, err
		}
		out[i] = wasm.DataSegment{OffsetExpr: offset, Init: append([]byte(nil), data...)}
	}
	return out, nil
}

// decodeCustomSection recognizes the "name" custom section; any other custom section is ignored, matching the format's
// forward-compatibility rule that unknown custom sections carry no semantic
// weight.
func decodeCustomSection(r *reader, mod *wasm.Module) error {
	name, err := r.name()
	if err != nil {
		return err
	}
	if name != "name" {
		r.pos = len(r.buf)
		return nil
	}
	for !r.atEnd() {
		subID, err := r.byte()
		if err != nil {
			return err
		}
		size, err := r.u32()
		if err != nil {
			return err
		}
		payload, err := r.bytes(int(size))
		if err != nil {
			return err
		}
		sr := newReader(payload)
		switch subID {
		case 1: // function names
			n, err := sr.u32()
			if err != nil {
				return err
			}
			if mod.FunctionNames == nil {
				mod.FunctionNames = map[uint32]string{}
			}
			for i := uint32(0); i < n; i++ {
				idx, err := sr.u32()
				if err != nil {
					return err
				}
				nm, err := sr.name()
				if err != nil {
					return err
				}
				mod.FunctionNames[idx] = nm
			}
		case 2: // local names
			n, err := sr.u32()
			if err != nil {
				return err
			}
			if mod.LocalNames == nil {
				mod.LocalNames = map[uint32]map[uint32]string{}
			}
			for i := uint32(0); i < n; i++ {
				funcIdx, err := sr.u32()
				if err != nil {
					return err
				}
				cnt, err := sr.u32()
				if err != nil {
					return err
				}
				locals := make(map[uint32]string, cnt)
				for j := uint32(0); j < cnt; j++ {
					localIdx, err := sr.u32()
					if err != nil {
						return err
					}
					nm, err := sr.name()
					if err != nil {
						return err
					}
					locals[localIdx] = nm
				}
				mod.LocalNames[funcIdx] = locals
			}
		default:
			// unrecognized name subsection: skip, per format's
			// forward-compatibility rule.
		}
	}
	return nil
}
