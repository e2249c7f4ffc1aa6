// Package wasm holds the abstract syntax tree (AST) shared by both decoders,
// the validator, the store, and the interpreter.
package wasm

import "fmt"

// ValueType is one of the four WebAssembly 1.0 number types.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the mnemonic text-format name of vt, or a hex
// placeholder for an unrecognized byte.
func ValueTypeName(vt ValueType) string {
	switch vt {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return fmt.Sprintf("0x%x", vt)
	}
}

// BlockTypeEmpty is the binary encoding of a block type with no result.
const BlockTypeEmpty = 0x40

// ElemTypeFuncref is the only element kind WebAssembly 1.0 tables support.
const ElemTypeFuncref = 0x70

// FunctionType is a function signature. Results
// has length at most 1.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// EqualsSignature reports whether two function types are structurally
// equal, used by call_indirect's runtime type check.
func (f *FunctionType) EqualsSignature(params, results []ValueType) bool {
	return bytesEqual(f.Params, params) && bytesEqual(f.Results, results)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String renders a FunctionType as "(params) -> (results)" for diagnostics.
func (f *FunctionType) String() string {
	s := "("
	for i, p := range f.Params {
		if i > 0 {
			s += ", "
		}
		s += ValueTypeName(p)
	}
	s += ") -> ("
	for i, r := range f.Results {
		if i > 0 {
			s += ", "
		}
		s += ValueTypeName(r)
	}
	return s + ")"
}

// Limits bound the size of a table or memory.
type Limits struct {
	Min uint32
	Max *uint32 // nil means unbounded (up to the format cap).
}

// TableType is a table's limits plus its element kind, always funcref in
// WebAssembly 1.0.
type TableType struct {
	Limits
	ElemType byte
}

// MemoryPageSize is the fixed size of one unit of linear memory growth.
const MemoryPageSize = 65536

// MemoryMaxPages is the format-level cap on memory size: bounded by 2^16
// pages.
const MemoryMaxPages = 65536

// MemoryType is a memory's limits, expressed in pages.
type MemoryType struct {
	Limits
}

// TableMaxEntries is the format-level cap on table size (2^32 entries),
// represented as the max uint32 value since an actual table of 2^32
// entries is not realizable on 32-bit addressed slices.
const TableMaxEntries = 0xffffffff

// Mutability distinguishes const and var globals.
type Mutability bool

const (
	Const Mutability = false
	Var   Mutability = true
)

// GlobalType is a global's declared value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable Mutability
}

// ExternKind classifies an import or export.
type ExternKind byte

const (
	ExternKindFunc ExternKind = iota
	ExternKindTable
	ExternKindMemory
	ExternKindGlobal
)

func (k ExternKind) String() string {
	switch k {
	case ExternKindFunc:
		return "func"
	case ExternKindTable:
		return "table"
	case ExternKindMemory:
		return "memory"
	case ExternKindGlobal:
		return "global"
	default:
		return fmt.Sprintf("externkind(%d)", byte(k))
	}
}
