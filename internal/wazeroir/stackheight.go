package wazeroir

import (
	"fmt"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

// stackDelta reports how many operands a straight-line instruction pops
// and pushes, so the compiler can track the operand-stack height it
// expects at run time without re-running full type validation (the body
// is already known to be well-typed). Block/loop/if/else/end, br/br_if/
// br_table, return and unreachable are accounted for separately by their
// own compileXxx methods, since their effect on height depends on
// control-flow structure rather than a fixed arity.
func (c *compiler) stackDelta(ins wasm.Instruction) (pop, push int, err error) {
	switch ins.Opcode {
	case wasm.OpcodeNop:
		return 0, 0, nil

	case wasm.OpcodeDrop:
		return 1, 0, nil
	case wasm.OpcodeSelect:
		return 3, 1, nil

	case wasm.OpcodeLocalGet, wasm.OpcodeGlobalGet:
		return 0, 1, nil
	case wasm.OpcodeLocalSet, wasm.OpcodeGlobalSet:
		return 1, 0, nil
	case wasm.OpcodeLocalTee:
		return 1, 1, nil

	case wasm.OpcodeMemorySize:
		return 0, 1, nil
	case wasm.OpcodeMemoryGrow:
		return 1, 1, nil

	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U:
		return 1, 1, nil

	case wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		return 2, 0, nil

	case wasm.OpcodeI32Const, wasm.OpcodeI64Const, wasm.OpcodeF32Const, wasm.OpcodeF64Const:
		return 0, 1, nil

	case wasm.OpcodeCall:
		ft := c.calleeType(ins.Index)
		return len(ft.Params), len(ft.Results), nil
	case wasm.OpcodeCallIndirect:
		if int(ins.Index2) >= len(c.typeSection) {
			return 0, 0, fmt.Errorf("call_indirect: type index %d out of range", ins.Index2)
		}
		ft := c.typeSection[ins.Index2]
		return len(ft.Params) + 1, len(ft.Results), nil // +1 pops the table index.

	case wasm.OpcodeMiscPrefix:
		// Every OpcodeMiscPrefix instruction in scope (the saturating
		// float-to-int conversions) is unary.
		return 1, 1, nil

	default:
		// Every remaining opcode is a fixed-arity numeric op: comparisons
		// and binary arithmetic pop two operands and push one, unary
		// arithmetic and conversions pop one and push one.
		if isBinaryNumeric(ins.Opcode) {
			return 2, 1, nil
		}
		return 1, 1, nil
	}
}

// isBinaryNumeric reports whether opcode is one of the two-operand
// comparison or arithmetic instructions; everything else reaching the
// default case in stackDelta is a one-operand unary op or conversion.
func isBinaryNumeric(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32Eq, wasm.OpcodeI32Ne, wasm.OpcodeI32LtS, wasm.OpcodeI32LtU,
		wasm.OpcodeI32GtS, wasm.OpcodeI32GtU, wasm.OpcodeI32LeS, wasm.OpcodeI32LeU,
		wasm.OpcodeI32GeS, wasm.OpcodeI32GeU,
		wasm.OpcodeI64Eq, wasm.OpcodeI64Ne, wasm.OpcodeI64LtS, wasm.OpcodeI64LtU,
		wasm.OpcodeI64GtS, wasm.OpcodeI64GtU, wasm.OpcodeI64LeS, wasm.OpcodeI64LeU,
		wasm.OpcodeI64GeS, wasm.OpcodeI64GeU,
		wasm.OpcodeF32Eq, wasm.OpcodeF32Ne, wasm.OpcodeF32Lt, wasm.OpcodeF32Gt, wasm.OpcodeF32Le, wasm.OpcodeF32Ge,
		wasm.OpcodeF64Eq, wasm.OpcodeF64Ne, wasm.OpcodeF64Lt, wasm.OpcodeF64Gt, wasm.OpcodeF64Le, wasm.OpcodeF64Ge,
		wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul, wasm.OpcodeI32DivS, wasm.OpcodeI32DivU,
		wasm.OpcodeI32RemS, wasm.OpcodeI32RemU, wasm.OpcodeI32And, wasm.OpcodeI32Or, wasm.OpcodeI32Xor,
		wasm.OpcodeI32Shl, wasm.OpcodeI32ShrS, wasm.OpcodeI32ShrU, wasm.OpcodeI32Rotl, wasm.OpcodeI32Rotr,
		wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul, wasm.OpcodeI64DivS, wasm.OpcodeI64DivU,
		wasm.OpcodeI64RemS, wasm.OpcodeI64RemU, wasm.OpcodeI64And, wasm.OpcodeI64Or, wasm.OpcodeI64Xor,
		wasm.OpcodeI64Shl, wasm.OpcodeI64ShrS, wasm.OpcodeI64ShrU, wasm.OpcodeI64Rotl, wasm.OpcodeI64Rotr,
		wasm.OpcodeF32Add, wasm.OpcodeF32Sub, wasm.OpcodeF32Mul, wasm.OpcodeF32Div, wasm.OpcodeF32Min, wasm.OpcodeF32Max, wasm.OpcodeF32Copysign,
		wasm.OpcodeF64Add, wasm.OpcodeF64Sub, wasm.OpcodeF64Mul, wasm.OpcodeF64Div, wasm.OpcodeF64Min, wasm.OpcodeF64Max, wasm.OpcodeF64Copysign:
		return true
	default:
		return false
	}
}
