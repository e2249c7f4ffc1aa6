// Package binary implements the WebAssembly 1.0 binary format codec.
// DecodeBinary turns a raw byte stream into the shared wasm.Module AST;
// EncodeModule is its inverse, used to round-trip-test the decoder.
package binary

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/wasmcore/wasmcore/internal/leb128"
	"github.com/wasmcore/wasmcore/internal/wasm"
)

// Position identifies a byte offset into the decoded stream, attached to
// a DecodeError so a caller can locate the failure.
type Position struct {
	Offset int
}

// DecodeError reports a malformed or unsupported binary encoding.
type DecodeError struct {
	Pos Position
	Msg string
}

func (e *DecodeError) Error() string {
	return "wasm: decode error at offset " + itoa(e.Pos.Offset) + ": " + e.Msg
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// reader wraps a byte slice with a cursor, matching io.ByteReader so it
// composes directly with package leb128's decode functions.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) decodeErrf(format string, args ...interface{}) error {
	return &DecodeError{Pos: Position{Offset: r.pos}, Msg: errors.Errorf(format, args...).Error()}
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, r.decodeErrf("unexpected EOF reading %d bytes", n)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, r.decodeErrf("unexpected EOF reading a byte")
	}
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	v, n, err := leb128.DecodeUint32(r)
	if err != nil {
		return 0, r.wrapLEB(n, err)
	}
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	v, n, err := leb128.DecodeUint64(r)
	if err != nil {
		return 0, r.wrapLEB(n, err)
	}
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, n, err := leb128.DecodeInt32(r)
	if err != nil {
		return 0, r.wrapLEB(n, err)
	}
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, n, err := leb128.DecodeInt64(r)
	if err != nil {
		return 0, r.wrapLEB(n, err)
	}
	return v, nil
}

func (r *reader) blockTypeIdx() (int64, error) {
	v, n, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return 0, r.wrapLEB(n, err)
	}
	return v, nil
}

func (r *reader) wrapLEB(consumed uint64, err error) error {
	return &DecodeError{Pos: Position{Offset: r.pos - int(consumed)}, Msg: err.Error()}
}

func (r *reader) f32() (float32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) f64() (float64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) limits() (wasm.Limits, error) {
	flag, err := r.byte()
	if err != nil {
		return wasm.Limits{}, err
	}
	min, err := r.u32()
	if err != nil {
		return wasm.Limits{}, err
	}
	l := wasm.Limits{Min: min}
	if flag == 1 {
		max, err := r.u32()
		if err != nil {
			return wasm.Limits{}, err
		}
		l.Max = &max
	} else if flag != 0 {
		return wasm.Limits{}, r.decodeErrf("invalid limits flag 0x%x", flag)
	}
	return l, nil
}

func (r *reader) atEnd() bool { return r.pos >= len(r.buf) }
