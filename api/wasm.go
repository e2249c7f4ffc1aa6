// Package api includes constants and interfaces shared between the
// embedder surface and its users.
package api

import (
	"context"
	"fmt"
	"math"
)

// ValueType is one of the four WebAssembly 1.0 number types a Value may
// hold.
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the text-format mnemonic for vt.
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
		return fmt.Sprintf("unknown(%#x)", vt)
	}
}

// Value is a tagged WebAssembly number. Integers are
// held as unsigned bit patterns; floats preserve the exact bit pattern so
// NaN payloads survive round trips.
type Value struct {
	Type ValueType
	bits uint64
}

// I32 constructs an i32 Value.
func I32(v int32) Value { return Value{Type: ValueTypeI32, bits: uint64(uint32(v))} }

// U32 constructs an i32 Value from its unsigned interpretation.
func U32(v uint32) Value { return Value{Type: ValueTypeI32, bits: uint64(v)} }

// I64 constructs an i64 Value.
func I64(v int64) Value { return Value{Type: ValueTypeI64, bits: uint64(v)} }

// U64 constructs an i64 Value from its unsigned interpretation.
func U64(v uint64) Value { return Value{Type: ValueTypeI64, bits: v} }

// F32 constructs an f32 Value.
func F32(v float32) Value { return Value{Type: ValueTypeF32, bits: uint64(math.Float32bits(v))} }

// F64 constructs an f64 Value.
func F64(v float64) Value { return Value{Type: ValueTypeF64, bits: math.Float64bits(v)} }

// Bits returns the raw 64-bit pattern backing v, zero-extended for i32/f32.
func (v Value) Bits() uint64 { return v.bits }

// I32 returns v's signed 32-bit interpretation.
func (v Value) I32() int32 { return int32(uint32(v.bits)) }

// U32 returns v's unsigned 32-bit interpretation.
func (v Value) U32() uint32 { return uint32(v.bits) }

// I64 returns v's signed 64-bit interpretation.
func (v Value) I64() int64 { return int64(v.bits) }

// U64 returns v's unsigned 64-bit interpretation.
func (v Value) U64() uint64 { return v.bits }

// F32 returns v's float32 interpretation.
func (v Value) F32() float32 { return math.Float32frombits(uint32(v.bits)) }

// F64 returns v's float64 interpretation.
func (v Value) F64() float64 { return math.Float64frombits(v.bits) }

func (v Value) String() string {
	switch v.Type {
	case ValueTypeI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case ValueTypeI64:
		return fmt.Sprintf("i64:%d", v.I64())
	case ValueTypeF32:
		return fmt.Sprintf("f32:%v", v.F32())
	case ValueTypeF64:
		return fmt.Sprintf("f64:%v", v.F64())
	default:
		return "invalid"
	}
}

// FunctionType is a function signature. Results carries at most one value;
// multi-value returns are not supported.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// ExternType classifies an import or export.
type ExternType byte

const (
	ExternTypeFunc ExternType = iota
	ExternTypeTable
	ExternTypeMemory
	ExternTypeGlobal
)

// GoFunction is the low-level host function calling convention: it reads
// its arguments from, and writes its results to, the shared stack slice in
// place.
type GoFunction func(ctx context.Context, stack []uint64)

// Module is an instantiated module as seen by an embedder or by another
// module's host functions.
type Module interface {
	// Name is the module's instantiation name.
	Name() string

	// ExportedFunction looks up an exported function by name.
	ExportedFunction(name string) (fn Function, ok bool)

	// Memory returns the module's exported memory, if it exports one.
	Memory() (mem Memory, ok bool)

	// Global looks up an exported mutable or immutable global by name.
	Global(name string) (g Global, ok bool)

	// Close releases any resources owned exclusively by this instance.
	Close(ctx context.Context) error
}

// Function is a callable export or import.
type Function interface {
	Type() FunctionType
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Memory is the embedder-facing view of a module's linear memory.
type Memory interface {
	Size() uint32 // current size in bytes.
	Grow(deltaPages uint32) (previousPages uint32, ok bool)

	ReadByte(offset uint32) (byte, bool)
	WriteByte(offset uint32, v byte) bool
	ReadUint32Le(offset uint32) (uint32, bool)
	WriteUint32Le(offset uint32, v uint32) bool
	ReadUint64Le(offset uint32) (uint64, bool)
	WriteUint64Le(offset uint32, v uint64) bool
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// Global is the embedder-facing view of a global variable.
type Global interface {
	Type() ValueType
	Get() uint64
	Set(v uint64) // panics if the global is immutable.
}
