package validator

import "github.com/wasmcore/wasmcore/internal/wasm"

// sig is a fixed input/output type signature for instructions whose arity
// never depends on module context.
type sig struct {
	in, out []wasm.ValueType
}

var (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32
	f64 = wasm.ValueTypeF64
)

func s(in, out []wasm.ValueType) sig { return sig{in: in, out: out} }

// fixedSignatures covers every opcode whose validation rule is a plain
// "pop these, push those" with no module-context lookup: constants,
// unary/binary numeric ops, conversions, comparisons. Control, parametric,
// variable, memory, and call instructions are handled individually in
// validator.go because their signature depends on context.
var fixedSignatures = map[wasm.Opcode]sig{
	wasm.OpcodeI32Const: s(nil, []byte{i32}),
	wasm.OpcodeI64Const: s(nil, []byte{i64}),
	wasm.OpcodeF32Const: s(nil, []byte{f32}),
	wasm.OpcodeF64Const: s(nil, []byte{f64}),

	wasm.OpcodeI32Eqz: s([]byte{i32}, []byte{i32}),
	wasm.OpcodeI32Eq:  s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32Ne:  s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32LtS: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32LtU: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32GtS: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32GtU: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32LeS: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32LeU: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32GeS: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32GeU: s([]byte{i32, i32}, []byte{i32}),

	wasm.OpcodeI64Eqz: s([]byte{i64}, []byte{i32}),
	wasm.OpcodeI64Eq:  s([]byte{i64, i64}, []byte{i32}),
	wasm.OpcodeI64Ne:  s([]byte{i64, i64}, []byte{i32}),
	wasm.OpcodeI64LtS: s([]byte{i64, i64}, []byte{i32}),
	wasm.OpcodeI64LtU: s([]byte{i64, i64}, []byte{i32}),
	wasm.OpcodeI64GtS: s([]byte{i64, i64}, []byte{i32}),
	wasm.OpcodeI64GtU: s([]byte{i64, i64}, []byte{i32}),
	wasm.OpcodeI64LeS: s([]byte{i64, i64}, []byte{i32}),
	wasm.OpcodeI64LeU: s([]byte{i64, i64}, []byte{i32}),
	wasm.OpcodeI64GeS: s([]byte{i64, i64}, []byte{i32}),
	wasm.OpcodeI64GeU: s([]byte{i64, i64}, []byte{i32}),

	wasm.OpcodeF32Eq: s([]byte{f32, f32}, []byte{i32}),
	wasm.OpcodeF32Ne: s([]byte{f32, f32}, []byte{i32}),
	wasm.OpcodeF32Lt: s([]byte{f32, f32}, []byte{i32}),
	wasm.OpcodeF32Gt: s([]byte{f32, f32}, []byte{i32}),
	wasm.OpcodeF32Le: s([]byte{f32, f32}, []byte{i32}),
	wasm.OpcodeF32Ge: s([]byte{f32, f32}, []byte{i32}),

	wasm.OpcodeF64Eq: s([]byte{f64, f64}, []byte{i32}),
	wasm.OpcodeF64Ne: s([]byte{f64, f64}, []byte{i32}),
	wasm.OpcodeF64Lt: s([]byte{f64, f64}, []byte{i32}),
	wasm.OpcodeF64Gt: s([]byte{f64, f64}, []byte{i32}),
	wasm.OpcodeF64Le: s([]byte{f64, f64}, []byte{i32}),
	wasm.OpcodeF64Ge: s([]byte{f64, f64}, []byte{i32}),

	wasm.OpcodeI32Clz: s([]byte{i32}, []byte{i32}), wasm.OpcodeI32Ctz: s([]byte{i32}, []byte{i32}),
	wasm.OpcodeI32Popcnt: s([]byte{i32}, []byte{i32}),
	wasm.OpcodeI32Add:    s([]byte{i32, i32}, []byte{i32}), wasm.OpcodeI32Sub: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32Mul: s([]byte{i32, i32}, []byte{i32}), wasm.OpcodeI32DivS: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32DivU: s([]byte{i32, i32}, []byte{i32}), wasm.OpcodeI32RemS: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32RemU: s([]byte{i32, i32}, []byte{i32}), wasm.OpcodeI32And: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32Or: s([]byte{i32, i32}, []byte{i32}), wasm.OpcodeI32Xor: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32Shl: s([]byte{i32, i32}, []byte{i32}), wasm.OpcodeI32ShrS: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32ShrU: s([]byte{i32, i32}, []byte{i32}), wasm.OpcodeI32Rotl: s([]byte{i32, i32}, []byte{i32}),
	wasm.OpcodeI32Rotr: s([]byte{i32, i32}, []byte{i32}),

	wasm.OpcodeI64Clz: s([]byte{i64}, []byte{i64}), wasm.OpcodeI64Ctz: s([]byte{i64}, []byte{i64}),
	wasm.OpcodeI64Popcnt: s([]byte{i64}, []byte{i64}),
	wasm.OpcodeI64Add:    s([]byte{i64, i64}, []byte{i64}), wasm.OpcodeI64Sub: s([]byte{i64, i64}, []byte{i64}),
	wasm.OpcodeI64Mul: s([]byte{i64, i64}, []byte{i64}), wasm.OpcodeI64DivS: s([]byte{i64, i64}, []byte{i64}),
	wasm.OpcodeI64DivU: s([]byte{i64, i64}, []byte{i64}), wasm.OpcodeI64RemS: s([]byte{i64, i64}, []byte{i64}),
	wasm.OpcodeI64RemU: s([]byte{i64, i64}, []byte{i64}), wasm.OpcodeI64And: s([]byte{i64, i64}, []byte{i64}),
	wasm.OpcodeI64Or: s([]byte{i64, i64}, []byte{i64}), wasm.OpcodeI64Xor: s([]byte{i64, i64}, []byte{i64}),
	wasm.OpcodeI64Shl: s([]byte{i64, i64}, []byte{i64}), wasm.OpcodeI64ShrS: s([]byte{i64, i64}, []byte{i64}),
	wasm.OpcodeI64ShrU: s([]byte{i64, i64}, []byte{i64}), wasm.OpcodeI64Rotl: s([]byte{i64, i64}, []byte{i64}),
	wasm.OpcodeI64Rotr: s([]byte{i64, i64}, []byte{i64}),

	wasm.OpcodeF32Abs: s([]byte{f32}, []byte{f32}), wasm.OpcodeF32Neg: s([]byte{f32}, []byte{f32}),
	wasm.OpcodeF32Ceil: s([]byte{f32}, []byte{f32}), wasm.OpcodeF32Floor: s([]byte{f32}, []byte{f32}),
	wasm.OpcodeF32Trunc: s([]byte{f32}, []byte{f32}), wasm.OpcodeF32Nearest: s([]byte{f32}, []byte{f32}),
	wasm.OpcodeF32Sqrt: s([]byte{f32}, []byte{f32}),
	wasm.OpcodeF32Add:  s([]byte{f32, f32}, []byte{f32}), wasm.OpcodeF32Sub: s([]byte{f32, f32}, []byte{f32}),
	wasm.OpcodeF32Mul: s([]byte{f32, f32}, []byte{f32}), wasm.OpcodeF32Div: s([]byte{f32, f32}, []byte{f32}),
	wasm.OpcodeF32Min: s([]byte{f32, f32}, []byte{f32}), wasm.OpcodeF32Max: s([]byte{f32, f32}, []byte{f32}),
	wasm.OpcodeF32Copysign: s([]byte{f32, f32}, []byte{f32}),

	wasm.OpcodeF64Abs: s([]byte{f64}, []byte{f64}), wasm.OpcodeF64Neg: s([]byte{f64}, []byte{f64}),
	wasm.OpcodeF64Ceil: s([]byte{f64}, []byte{f64}), wasm.OpcodeF64Floor: s([]byte{f64}, []byte{f64}),
	wasm.OpcodeF64Trunc: s([]byte{f64}, []byte{f64}), wasm.OpcodeF64Nearest: s([]byte{f64}, []byte{f64}),
	wasm.OpcodeF64Sqrt: s([]byte{f64}, []byte{f64}),
	wasm.OpcodeF64Add:  s([]byte{f64, f64}, []byte{f64}), wasm.OpcodeF64Sub: s([]byte{f64, f64}, []byte{f64}),
	wasm.OpcodeF64Mul: s([]byte{f64, f64}, []byte{f64}), wasm.OpcodeF64Div: s([]byte{f64, f64}, []byte{f64}),
	wasm.OpcodeF64Min: s([]byte{f64, f64}, []byte{f64}), wasm.OpcodeF64Max: s([]byte{f64, f64}, []byte{f64}),
	wasm.OpcodeF64Copysign: s([]byte{f64, f64}, []byte{f64}),

	wasm.OpcodeI32WrapI64:       s([]byte{i64}, []byte{i32}),
	wasm.OpcodeI32TruncF32S:     s([]byte{f32}, []byte{i32}),
	wasm.OpcodeI32TruncF32U:     s([]byte{f32}, []byte{i32}),
	wasm.OpcodeI32TruncF64S:     s([]byte{f64}, []byte{i32}),
	wasm.OpcodeI32TruncF64U:     s([]byte{f64}, []byte{i32}),
	wasm.OpcodeI64ExtendI32S:    s([]byte{i32}, []byte{i64}),
	wasm.OpcodeI64ExtendI32U:    s([]byte{i32}, []byte{i64}),
	wasm.OpcodeI64TruncF32S:     s([]byte{f32}, []byte{i64}),
	wasm.OpcodeI64TruncF32U:     s([]byte{f32}, []byte{i64}),
	wasm.OpcodeI64TruncF64S:     s([]byte{f64}, []byte{i64}),
	wasm.OpcodeI64TruncF64U:     s([]byte{f64}, []byte{i64}),
	wasm.OpcodeF32ConvertI32S:   s([]byte{i32}, []byte{f32}),
	wasm.OpcodeF32ConvertI32U:   s([]byte{i32}, []byte{f32}),
	wasm.OpcodeF32ConvertI64S:   s([]byte{i64}, []byte{f32}),
	wasm.OpcodeF32ConvertI64U:   s([]byte{i64}, []byte{f32}),
	wasm.OpcodeF32DemoteF64:     s([]byte{f64}, []byte{f32}),
	wasm.OpcodeF64ConvertI32S:   s([]byte{i32}, []byte{f64}),
	wasm.OpcodeF64ConvertI32U:   s([]byte{i32}, []byte{f64}),
	wasm.OpcodeF64ConvertI64S:   s([]byte{i64}, []byte{f64}),
	wasm.OpcodeF64ConvertI64U:   s([]byte{i64}, []byte{f64}),
	wasm.OpcodeF64PromoteF32:    s([]byte{f32}, []byte{f64}),
	wasm.OpcodeI32ReinterpretF32: s([]byte{f32}, []byte{i32}),
	wasm.OpcodeI64ReinterpretF64: s([]byte{f64}, []byte{i64}),
	wasm.OpcodeF32ReinterpretI32: s([]byte{i32}, []byte{f32}),
	wasm.OpcodeF64ReinterpretI64: s([]byte{i64}, []byte{f64}),

	// Sign-extension operators.
	wasm.OpcodeI32Extend8S:  s([]byte{i32}, []byte{i32}),
	wasm.OpcodeI32Extend16S: s([]byte{i32}, []byte{i32}),
	wasm.OpcodeI64Extend8S:  s([]byte{i64}, []byte{i64}),
	wasm.OpcodeI64Extend16S: s([]byte{i64}, []byte{i64}),
	wasm.OpcodeI64Extend32S: s([]byte{i64}, []byte{i64}),
}

// miscSignatures covers the OpcodeMiscPrefix saturating conversions.
var miscSignatures = map[byte]sig{
	wasm.OpcodeMiscI32TruncSatF32S: s([]byte{f32}, []byte{i32}),
	wasm.OpcodeMiscI32TruncSatF32U: s([]byte{f32}, []byte{i32}),
	wasm.OpcodeMiscI32TruncSatF64S: s([]byte{f64}, []byte{i32}),
	wasm.OpcodeMiscI32TruncSatF64U: s([]byte{f64}, []byte{i32}),
	wasm.OpcodeMiscI64TruncSatF32S: s([]byte{f32}, []byte{i64}),
	wasm.OpcodeMiscI64TruncSatF32U: s([]byte{f32}, []byte{i64}),
	wasm.OpcodeMiscI64TruncSatF64S: s([]byte{f64}, []byte{i64}),
	wasm.OpcodeMiscI64TruncSatF64U: s([]byte{f64}, []byte{i64}),
}
