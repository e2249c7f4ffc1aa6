package binary

import "github.com/wasmcore/wasmcore/internal/wasm"

// decodeCodeSection parses the code section's function bodies into the
// recursive wasm.Instruction tree the validator and wazeroir.Compile
// consume.
func decodeCodeSection(r *reader) ([]wasm.Code, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Code, n)
	for i := range out {
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		br := newReader(body)
		locals, err := decodeLocalDecls(br)
		if err != nil {
			return nil, err
		}
		instrs, err := decodeInstructions(br)
		if err != nil {
			return nil, err
		}
		if !br.atEnd() {
			return nil, br.decodeErrf("function body has %d trailing bytes", len(br.buf)-br.pos)
		}
		out[i] = wasm.Code{LocalTypes: locals, Body: instrs}
	}
	return out, nil
}

// decodeLocalDecls reads the run-length-encoded local declarations and
// expands them into one entry per local, in declared order.
func decodeLocalDecls(r *reader) ([]wasm.ValueType, error) {
	groups, err := r.u32()
	if err != nil {
		return nil, err
	}
	var locals []wasm.ValueType
	for i := uint32(0); i < groups; i++ {
		count, err := r.u32()
		if err != nil {
			return nil, err
		}
		vt, err := r.byte()
		if err != nil {
			return nil, err
		}
		if !isValueType(vt) {
			return nil, r.decodeErrf("invalid local type 0x%x", vt)
		}
		for j := uint32(0); j < count; j++ {
			locals = append(locals, vt)
		}
	}
	return locals, nil
}

// decodeInstructions parses a sequence of instructions up to (and
// consuming) the terminating End or Else opcode. The caller distinguishes
// which terminator ended the sequence via the returned terminator byte when
// needed (decodeBlockBody); the top-level function body only ever accepts
// End.
func decodeInstructions(r *reader) ([]wasm.Instruction, error) {
	instrs, term, err := decodeInstructionSeq(r)
	if err != nil {
		return nil, err
	}
	if term != wasm.OpcodeEnd {
		return nil, r.decodeErrf("function body terminated by else")
	}
	return instrs, nil
}

// decodeBlockBody parses a nested block/loop/if body, stopping at an End or
// Else opcode (consuming it) and reporting which one terminated the
// sequence.
func decodeBlockBody(r *reader) ([]wasm.Instruction, byte, error) {
	return decodeInstructionSeq(r)
}

func decodeInstructionSeq(r *reader) ([]wasm.Instruction, byte, error) {
	var out []wasm.Instruction
	for {
		op, err := r.byte()
		if err != nil {
			return nil, 0, err
		}
		if op == wasm.OpcodeEnd || op == wasm.OpcodeElse {
			return out, op, nil
		}
		ins, err := decodeOneInstruction(r, op)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ins)
	}
}

func decodeOneInstruction(r *reader, op byte) (wasm.Instruction, error) {
	ins := wasm.Instruction{Opcode: op}
	switch op {
	case wasm.OpcodeBlock, wasm.OpcodeLoop:
		bt, err := r.blockTypeIdx()
		if err != nil {
			return ins, err
		}
		ins.BlockType = bt
		body, term, err := decodeBlockBody(r)
		if err != nil {
			return ins, err
		}
		if term != wasm.OpcodeEnd {
			return ins, r.decodeErrf("block/loop body terminated by else")
		}
		ins.Then = body

	case wasm.OpcodeIf:
		bt, err := r.blockTypeIdx()
		if err != nil {
			return ins, err
		}
		ins.BlockType = bt
		then, term, err := decodeBlockBody(r)
		if err != nil {
			return ins, err
		}
		ins.Then = then
		if term == wasm.OpcodeElse {
			elseBody, term2, err := decodeBlockBody(r)
			if err != nil {
				return ins, err
			}
			if term2 != wasm.OpcodeEnd {
				return ins, r.decodeErrf("if else-body terminated by else")
			}
			ins.Else = elseBody
		}

	case wasm.OpcodeBr, wasm.OpcodeBrIf:
		idx, err := r.u32()
		if err != nil {
			return ins, err
		}
		ins.Index = idx

	case wasm.OpcodeBrTable:
		cnt, err := r.u32()
		if err != nil {
			return ins, err
		}
		labels := make([]uint32, cnt)
		for i := range labels {
			if labels[i], err = r.u32(); err != nil {
				return ins, err
			}
		}
		def, err := r.u32()
		if err != nil {
			return ins, err
		}
		ins.TargetLabels = labels
		ins.DefaultLabel = def

	case wasm.OpcodeCall:
		idx, err := r.u32()
		if err != nil {
			return ins, err
		}
		ins.Index = idx

	case wasm.OpcodeCallIndirect:
		typeIdx, err := r.u32()
		if err != nil {
			return ins, err
		}
		reserved, err := r.byte()
		if err != nil {
			return ins, err
		}
		if reserved != 0 {
			return ins, r.decodeErrf("non-zero reserved byte in call_indirect")
		}
		ins.Index2 = typeIdx

	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee,
		wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		idx, err := r.u32()
		if err != nil {
			return ins, err
		}
		ins.Index = idx

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		reserved, err := r.byte()
		if err != nil {
			return ins, err
		}
		if reserved != 0 {
			return ins, r.decodeErrf("non-zero reserved byte in memory.size/grow")
		}

	case wasm.OpcodeI32Const:
		v, err := r.i32()
		if err != nil {
			return ins, err
		}
		ins.ConstI32 = v

	case wasm.OpcodeI64Const:
		v, err := r.i64()
		if err != nil {
			return ins, err
		}
		ins.ConstI64 = v

	case wasm.OpcodeF32Const:
		v, err := r.f32()
		if err != nil {
			return ins, err
		}
		ins.ConstF32 = v

	case wasm.OpcodeF64Const:
		v, err := r.f64()
		if err != nil {
			return ins, err
		}
		ins.ConstF64 = v

	case wasm.OpcodeMiscPrefix:
		sub, err := r.u32()
		if err != nil {
			return ins, err
		}
		if sub > wasm.OpcodeMiscI64TruncSatF64U {
			return ins, r.decodeErrf("unknown misc opcode 0x%x", sub)
		}
		ins.Index = sub

	default:
		if isLoadOrStoreOpcode(op) {
			align, err := r.u32()
			if err != nil {
				return ins, err
			}
			offset, err := r.u32()
			if err != nil {
				return ins, err
			}
			ins.Align = align
			ins.Offset = offset
			break
		}
		if !isBareOpcode(op) {
			return ins, r.decodeErrf("unknown opcode 0x%x", op)
		}
	}
	return ins, nil
}

func isLoadOrStoreOpcode(op byte) bool {
	return op >= wasm.OpcodeI32Load && op <= wasm.OpcodeI64Store32
}

// isBareOpcode reports whether op takes no immediate: unreachable/nop/
// drop/select, all comparison/arithmetic/conversion/sign-extension opcodes.
func isBareOpcode(op byte) bool {
	switch {
	case op == wasm.OpcodeUnreachable, op == wasm.OpcodeNop, op == wasm.OpcodeReturn,
		op == wasm.OpcodeDrop, op == wasm.OpcodeSelect:
		return true
	case op >= wasm.OpcodeI32Eqz && op <= wasm.OpcodeF64ReinterpretI64:
		return true
	case op >= wasm.OpcodeI32Extend8S && op <= wasm.OpcodeI64Extend32S:
		return true
	}
	return false
}
