package text

import "github.com/wasmcore/wasmcore/internal/wasm"

// instrKind classifies a mnemonic by what immediate grammar follows it,
// mirroring the opcode-immediate-shape switch package binary's instruction
// decoder performs on the binary encoding (code.go's decodeOneInstruction):
// the two decoders converge on the same wasm.Instruction shape from
// different source grammars.
type instrKind int

const (
	instrBare instrKind = iota
	instrIndex            // local/global/func index: local.get, call, ...
	instrBranchIndex       // label index: br, br_if
	instrBrTable
	instrCallIndirect
	instrMem // loads/stores: optional offset=/align=
	instrMemSizeGrow
	instrI32Const
	instrI64Const
	instrF32Const
	instrF64Const
	instrBlock // block, loop
	instrIf
	instrMisc // saturating truncation, dotted mnemonic -> OpcodeMiscPrefix+sub
)

type mnemonicInfo struct {
	opcode   wasm.Opcode
	kind     instrKind
	miscSub  uint32
}

// mnemonics maps the WebAssembly text format's instruction keywords to their
// opcode and immediate shape conformance. The
// bare-opcode entries are grounded directly in the WebAssembly 1.0 text
// mnemonics, the same names internal/wasm/opcode.go's constants are named
// after.
var mnemonics = map[string]mnemonicInfo{
	"unreachable": {wasm.OpcodeUnreachable, instrBare, 0},
	"nop":         {wasm.OpcodeNop, instrBare, 0},
	"return":      {wasm.OpcodeReturn, instrBare, 0},
	"drop":        {wasm.OpcodeDrop, instrBare, 0},
	"select":      {wasm.OpcodeSelect, instrBare, 0},

	"block": {wasm.OpcodeBlock, instrBlock, 0},
	"loop":  {wasm.OpcodeLoop, instrBlock, 0},
	"if":    {wasm.OpcodeIf, instrIf, 0},

	"br":            {wasm.OpcodeBr, instrBranchIndex, 0},
	"br_if":         {wasm.OpcodeBrIf, instrBranchIndex, 0},
	"br_table":      {wasm.OpcodeBrTable, instrBrTable, 0},
	"call":          {wasm.OpcodeCall, instrIndex, 0},
	"call_indirect": {wasm.OpcodeCallIndirect, instrCallIndirect, 0},

	"local.get":  {wasm.OpcodeLocalGet, instrIndex, 0},
	"local.set":  {wasm.OpcodeLocalSet, instrIndex, 0},
	"local.tee":  {wasm.OpcodeLocalTee, instrIndex, 0},
	"global.get": {wasm.OpcodeGlobalGet, instrIndex, 0},
	"global.set": {wasm.OpcodeGlobalSet, instrIndex, 0},

	"i32.load":    {wasm.OpcodeI32Load, instrMem, 0},
	"i64.load":    {wasm.OpcodeI64Load, instrMem, 0},
	"f32.load":    {wasm.OpcodeF32Load, instrMem, 0},
	"f64.load":    {wasm.OpcodeF64Load, instrMem, 0},
	"i32.load8_s": {wasm.OpcodeI32Load8S, instrMem, 0},
	"i32.load8_u": {wasm.OpcodeI32Load8U, instrMem, 0},
	"i32.load16_s": {wasm.OpcodeI32Load16S, instrMem, 0},
	"i32.load16_u": {wasm.OpcodeI32Load16U, instrMem, 0},
	"i64.load8_s":  {wasm.OpcodeI64Load8S, instrMem, 0},
	"i64.load8_u":  {wasm.OpcodeI64Load8U, instrMem, 0},
	"i64.load16_s": {wasm.OpcodeI64Load16S, instrMem, 0},
	"i64.load16_u": {wasm.OpcodeI64Load16U, instrMem, 0},
	"i64.load32_s": {wasm.OpcodeI64Load32S, instrMem, 0},
	"i64.load32_u": {wasm.OpcodeI64Load32U, instrMem, 0},
	"i32.store":    {wasm.OpcodeI32Store, instrMem, 0},
	"i64.store":    {wasm.OpcodeI64Store, instrMem, 0},
	"f32.store":    {wasm.OpcodeF32Store, instrMem, 0},
	"f64.store":    {wasm.OpcodeF64Store, instrMem, 0},
	"i32.store8":   {wasm.OpcodeI32Store8, instrMem, 0},
	"i32.store16":  {wasm.OpcodeI32Store16, instrMem, 0},
	"i64.store8":   {wasm.OpcodeI64Store8, instrMem, 0},
	"i64.store16":  {wasm.OpcodeI64Store16, instrMem, 0},
	"i64.store32":  {wasm.OpcodeI64Store32, instrMem, 0},

	"memory.size": {wasm.OpcodeMemorySize, instrMemSizeGrow, 0},
	"memory.grow": {wasm.OpcodeMemoryGrow, instrMemSizeGrow, 0},

	"i32.const": {wasm.OpcodeI32Const, instrI32Const, 0},
	"i64.const": {wasm.OpcodeI64Const, instrI64Const, 0},
	"f32.const": {wasm.OpcodeF32Const, instrF32Const, 0},
	"f64.const": {wasm.OpcodeF64Const, instrF64Const, 0},

	"i32.eqz": {wasm.OpcodeI32Eqz, instrBare, 0},
	"i32.eq":  {wasm.OpcodeI32Eq, instrBare, 0},
	"i32.ne":  {wasm.OpcodeI32Ne, instrBare, 0},
	"i32.lt_s": {wasm.OpcodeI32LtS, instrBare, 0},
	"i32.lt_u": {wasm.OpcodeI32LtU, instrBare, 0},
	"i32.gt_s": {wasm.OpcodeI32GtS, instrBare, 0},
	"i32.gt_u": {wasm.OpcodeI32GtU, instrBare, 0},
	"i32.le_s": {wasm.OpcodeI32LeS, instrBare, 0},
	"i32.le_u": {wasm.OpcodeI32LeU, instrBare, 0},
	"i32.ge_s": {wasm.OpcodeI32GeS, instrBare, 0},
	"i32.ge_u": {wasm.OpcodeI32GeU, instrBare, 0},

	"i64.eqz": {wasm.OpcodeI64Eqz, instrBare, 0},
	"i64.eq":  {wasm.OpcodeI64Eq, instrBare, 0},
	"i64.ne":  {wasm.OpcodeI64Ne, instrBare, 0},
	"i64.lt_s": {wasm.OpcodeI64LtS, instrBare, 0},
	"i64.lt_u": {wasm.OpcodeI64LtU, instrBare, 0},
	"i64.gt_s": {wasm.OpcodeI64GtS, instrBare, 0},
	"i64.gt_u": {wasm.OpcodeI64GtU, instrBare, 0},
	"i64.le_s": {wasm.OpcodeI64LeS, instrBare, 0},
	"i64.le_u": {wasm.OpcodeI64LeU, instrBare, 0},
	"i64.ge_s": {wasm.OpcodeI64GeS, instrBare, 0},
	"i64.ge_u": {wasm.OpcodeI64GeU, instrBare, 0},

	"f32.eq": {wasm.OpcodeF32Eq, instrBare, 0},
	"f32.ne": {wasm.OpcodeF32Ne, instrBare, 0},
	"f32.lt": {wasm.OpcodeF32Lt, instrBare, 0},
	"f32.gt": {wasm.OpcodeF32Gt, instrBare, 0},
	"f32.le": {wasm.OpcodeF32Le, instrBare, 0},
	"f32.ge": {wasm.OpcodeF32Ge, instrBare, 0},

	"f64.eq": {wasm.OpcodeF64Eq, instrBare, 0},
	"f64.ne": {wasm.OpcodeF64Ne, instrBare, 0},
	"f64.lt": {wasm.OpcodeF64Lt, instrBare, 0},
	"f64.gt": {wasm.OpcodeF64Gt, instrBare, 0},
	"f64.le": {wasm.OpcodeF64Le, instrBare, 0},
	"f64.ge": {wasm.OpcodeF64Ge, instrBare, 0},

	"i32.clz":    {wasm.OpcodeI32Clz, instrBare, 0},
	"i32.ctz":    {wasm.OpcodeI32Ctz, instrBare, 0},
	"i32.popcnt": {wasm.OpcodeI32Popcnt, instrBare, 0},
	"i32.add":    {wasm.OpcodeI32Add, instrBare, 0},
	"i32.sub":    {wasm.OpcodeI32Sub, instrBare, 0},
	"i32.mul":    {wasm.OpcodeI32Mul, instrBare, 0},
	"i32.div_s":  {wasm.OpcodeI32DivS, instrBare, 0},
	"i32.div_u":  {wasm.OpcodeI32DivU, instrBare, 0},
	"i32.rem_s":  {wasm.OpcodeI32RemS, instrBare, 0},
	"i32.rem_u":  {wasm.OpcodeI32RemU, instrBare, 0},
	"i32.and":    {wasm.OpcodeI32And, instrBare, 0},
	"i32.or":     {wasm.OpcodeI32Or, instrBare, 0},
	"i32.xor":    {wasm.OpcodeI32Xor, instrBare, 0},
	"i32.shl":    {wasm.OpcodeI32Shl, instrBare, 0},
	"i32.shr_s":  {wasm.OpcodeI32ShrS, instrBare, 0},
	"i32.shr_u":  {wasm.OpcodeI32ShrU, instrBare, 0},
	"i32.rotl":   {wasm.OpcodeI32Rotl, instrBare, 0},
	"i32.rotr":   {wasm.OpcodeI32Rotr, instrBare, 0},

	"i64.clz":    {wasm.OpcodeI64Clz, instrBare, 0},
	"i64.ctz":    {wasm.OpcodeI64Ctz, instrBare, 0},
	"i64.popcnt": {wasm.OpcodeI64Popcnt, instrBare, 0},
	"i64.add":    {wasm.OpcodeI64Add, instrBare, 0},
	"i64.sub":    {wasm.OpcodeI64Sub, instrBare, 0},
	"i64.mul":    {wasm.OpcodeI64Mul, instrBare, 0},
	"i64.div_s":  {wasm.OpcodeI64DivS, instrBare, 0},
	"i64.div_u":  {wasm.OpcodeI64DivU, instrBare, 0},
	"i64.rem_s":  {wasm.OpcodeI64RemS, instrBare, 0},
	"i64.rem_u":  {wasm.OpcodeI64RemU, instrBare, 0},
	"i64.and":    {wasm.OpcodeI64And, instrBare, 0},
	"i64.or":     {wasm.OpcodeI64Or, instrBare, 0},
	"i64.xor":    {wasm.OpcodeI64Xor, instrBare, 0},
	"i64.shl":    {wasm.OpcodeI64Shl, instrBare, 0},
	"i64.shr_s":  {wasm.OpcodeI64ShrS, instrBare, 0},
	"i64.shr_u":  {wasm.OpcodeI64ShrU, instrBare, 0},
	"i64.rotl":   {wasm.OpcodeI64Rotl, instrBare, 0},
	"i64.rotr":   {wasm.OpcodeI64Rotr, instrBare, 0},

	"f32.abs":      {wasm.OpcodeF32Abs, instrBare, 0},
	"f32.neg":      {wasm.OpcodeF32Neg, instrBare, 0},
	"f32.ceil":     {wasm.OpcodeF32Ceil, instrBare, 0},
	"f32.floor":    {wasm.OpcodeF32Floor, instrBare, 0},
	"f32.trunc":    {wasm.OpcodeF32Trunc, instrBare, 0},
	"f32.nearest":  {wasm.OpcodeF32Nearest, instrBare, 0},
	"f32.sqrt":     {wasm.OpcodeF32Sqrt, instrBare, 0},
	"f32.add":      {wasm.OpcodeF32Add, instrBare, 0},
	"f32.sub":      {wasm.OpcodeF32Sub, instrBare, 0},
	"f32.mul":      {wasm.OpcodeF32Mul, instrBare, 0},
	"f32.div":      {wasm.OpcodeF32Div, instrBare, 0},
	"f32.min":      {wasm.OpcodeF32Min, instrBare, 0},
	"f32.max":      {wasm.OpcodeF32Max, instrBare, 0},
	"f32.copysign": {wasm.OpcodeF32Copysign, instrBare, 0},

	"f64.abs":      {wasm.OpcodeF64Abs, instrBare, 0},
	"f64.neg":      {wasm.OpcodeF64Neg, instrBare, 0},
	"f64.ceil":     {wasm.OpcodeF64Ceil, instrBare, 0},
	"f64.floor":    {wasm.OpcodeF64Floor, instrBare, 0},
	"f64.trunc":    {wasm.OpcodeF64Trunc, instrBare, 0},
	"f64.nearest":  {wasm.OpcodeF64Nearest, instrBare, 0},
	"f64.sqrt":     {wasm.OpcodeF64Sqrt, instrBare, 0},
	"f64.add":      {wasm.OpcodeF64Add, instrBare, 0},
	"f64.sub":      {wasm.OpcodeF64Sub, instrBare, 0},
	"f64.mul":      {wasm.OpcodeF64Mul, instrBare, 0},
	"f64.div":      {wasm.OpcodeF64Div, instrBare, 0},
	"f64.min":      {wasm.OpcodeF64Min, instrBare, 0},
	"f64.max":      {wasm.OpcodeF64Max, instrBare, 0},
	"f64.copysign": {wasm.OpcodeF64Copysign, instrBare, 0},

	"i32.wrap_i64":        {wasm.OpcodeI32WrapI64, instrBare, 0},
	"i32.trunc_f32_s":     {wasm.OpcodeI32TruncF32S, instrBare, 0},
	"i32.trunc_f32_u":     {wasm.OpcodeI32TruncF32U, instrBare, 0},
	"i32.trunc_f64_s":     {wasm.OpcodeI32TruncF64S, instrBare, 0},
	"i32.trunc_f64_u":     {wasm.OpcodeI32TruncF64U, instrBare, 0},
	"i64.extend_i32_s":    {wasm.OpcodeI64ExtendI32S, instrBare, 0},
	"i64.extend_i32_u":    {wasm.OpcodeI64ExtendI32U, instrBare, 0},
	"i64.trunc_f32_s":     {wasm.OpcodeI64TruncF32S, instrBare, 0},
	"i64.trunc_f32_u":     {wasm.OpcodeI64TruncF32U, instrBare, 0},
	"i64.trunc_f64_s":     {wasm.OpcodeI64TruncF64S, instrBare, 0},
	"i64.trunc_f64_u":     {wasm.OpcodeI64TruncF64U, instrBare, 0},
	"f32.convert_i32_s":   {wasm.OpcodeF32ConvertI32S, instrBare, 0},
	"f32.convert_i32_u":   {wasm.OpcodeF32ConvertI32U, instrBare, 0},
	"f32.convert_i64_s":   {wasm.OpcodeF32ConvertI64S, instrBare, 0},
	"f32.convert_i64_u":   {wasm.OpcodeF32ConvertI64U, instrBare, 0},
	"f32.demote_f64":      {wasm.OpcodeF32DemoteF64, instrBare, 0},
	"f64.convert_i32_s":   {wasm.OpcodeF64ConvertI32S, instrBare, 0},
	"f64.convert_i32_u":   {wasm.OpcodeF64ConvertI32U, instrBare, 0},
	"f64.convert_i64_s":   {wasm.OpcodeF64ConvertI64S, instrBare, 0},
	"f64.convert_i64_u":   {wasm.OpcodeF64ConvertI64U, instrBare, 0},
	"f64.promote_f32":     {wasm.OpcodeF64PromoteF32, instrBare, 0},
	"i32.reinterpret_f32": {wasm.OpcodeI32ReinterpretF32, instrBare, 0},
	"i64.reinterpret_f64": {wasm.OpcodeI64ReinterpretF64, instrBare, 0},
	"f32.reinterpret_i32": {wasm.OpcodeF32ReinterpretI32, instrBare, 0},
	"f64.reinterpret_i64": {wasm.OpcodeF64ReinterpretI64, instrBare, 0},

	"i32.extend8_s":  {wasm.OpcodeI32Extend8S, instrBare, 0},
	"i32.extend16_s": {wasm.OpcodeI32Extend16S, instrBare, 0},
	"i64.extend8_s":  {wasm.OpcodeI64Extend8S, instrBare, 0},
	"i64.extend16_s": {wasm.OpcodeI64Extend16S, instrBare, 0},
	"i64.extend32_s": {wasm.OpcodeI64Extend32S, instrBare, 0},

	"i32.trunc_sat_f32_s": {wasm.OpcodeMiscPrefix, instrMisc, wasm.OpcodeMiscI32TruncSatF32S},
	"i32.trunc_sat_f32_u": {wasm.OpcodeMiscPrefix, instrMisc, wasm.OpcodeMiscI32TruncSatF32U},
	"i32.trunc_sat_f64_s": {wasm.OpcodeMiscPrefix, instrMisc, wasm.OpcodeMiscI32TruncSatF64S},
	"i32.trunc_sat_f64_u": {wasm.OpcodeMiscPrefix, instrMisc, wasm.OpcodeMiscI32TruncSatF64U},
	"i64.trunc_sat_f32_s": {wasm.OpcodeMiscPrefix, instrMisc, wasm.OpcodeMiscI64TruncSatF32S},
	"i64.trunc_sat_f32_u": {wasm.OpcodeMiscPrefix, instrMisc, wasm.OpcodeMiscI64TruncSatF32U},
	"i64.trunc_sat_f64_s": {wasm.OpcodeMiscPrefix, instrMisc, wasm.OpcodeMiscI64TruncSatF64S},
	"i64.trunc_sat_f64_u": {wasm.OpcodeMiscPrefix, instrMisc, wasm.OpcodeMiscI64TruncSatF64U},
}
