package wasm

// Instruction is one element of a function body's flattened instruction
// list. Block/If carry a nested instruction
// sequence for the recursive view the validator uses; the
// interpreter works from the separately-built flattened stream in package
// wazeroir instead.
type Instruction struct {
	Opcode Opcode

	// Numeric constants.
	ConstI32 int32
	ConstI64 int64
	ConstF32 float32
	ConstF64 float64

	// Index operands (local/global/function/type/table/label).
	Index uint32
	// Index2 is used by call_indirect (the type index), where Index holds
	// the table index (always 0 in WebAssembly 1.0).
	Index2 uint32

	// Memory immediate: alignment (as log2) and byte offset.
	Align  uint32
	Offset uint32

	// Block/If/Loop.
	BlockType  int64 // BlockTypeEmptySentinel, BlockTypeValueSentinel(vt) for one ValueType, >=0 a type index.
	Then       []Instruction
	Else       []Instruction

	// br_table.
	TargetLabels []uint32
	DefaultLabel uint32
}

// BlockType sentinels used in Instruction.BlockType, disjoint from valid
// non-negative type indices.
const (
	BlockTypeEmptySentinel = -1
	blockTypeValueBase     = -2 // BlockTypeValueSentinel(vt) = blockTypeValueBase - int64(vt)
)

// BlockTypeValueSentinel encodes a single concrete result type as a
// negative sentinel distinguishable from a type index.
func BlockTypeValueSentinel(vt ValueType) int64 {
	return blockTypeValueBase - int64(vt)
}

// IsBlockTypeValue reports whether bt encodes a single concrete ValueType,
// returning it if so.
func IsBlockTypeValue(bt int64) (ValueType, bool) {
	if bt > blockTypeValueBase || bt < blockTypeValueBase-0x80 {
		return 0, false
	}
	return ValueType(blockTypeValueBase - bt), true
}

// BlockResultType resolves a block-type immediate to its param and result
// types: none for the empty sentinel, one result for a value sentinel, and
// the referenced function type's params/results when bt is a type index into
// typeSection.
func BlockResultType(bt int64, typeSection []FunctionType) ([]ValueType, []ValueType, error) {
	if bt == BlockTypeEmptySentinel {
		return nil, nil, nil
	}
	if vt, ok := IsBlockTypeValue(bt); ok {
		return nil, []ValueType{vt}, nil
	}
	if bt < 0 || int(bt) >= len(typeSection) {
		return nil, nil, errTypeIndexOutOfRange(bt)
	}
	ft := typeSection[bt]
	return ft.Params, ft.Results, nil
}
