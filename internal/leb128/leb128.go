// Package leb128 encodes and decodes LEB128 (Little Endian Base 128)
// variable-length integers, as used throughout the WebAssembly binary
// format for indices, counts, and constant immediates.
package leb128

import (
	"io"

	"github.com/pkg/errors"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = 5
	maxVarintLen64 = 10
)

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte {
	out := make([]byte, 0, maxVarintLen64)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte {
	out := make([]byte, 0, maxVarintLen64)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 uint32 from the head of buf,
// returning the value and the number of bytes consumed.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := DecodeUint32(newByteReader(buf))
	return v, n, err
}

// LoadUint64 decodes an unsigned LEB128 uint64 from the head of buf.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	return DecodeUint64(newByteReader(buf))
}

// LoadInt32 decodes a signed LEB128 int32 from the head of buf.
func LoadInt32(buf []byte) (int32, uint64, error) {
	return DecodeInt32(newByteReader(buf))
}

// LoadInt64 decodes a signed LEB128 int64 from the head of buf.
func LoadInt64(buf []byte) (int64, uint64, error) {
	return DecodeInt64(newByteReader(buf))
}

// byteReader is a minimal io.ByteReader over a slice, avoiding the
// allocation bytes.NewReader would otherwise cost on every decode.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader { return &byteReader{buf: buf} }

func (r *byteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// DecodeUint32 decodes an unsigned LEB128 uint32 from r, returning the
// value and the number of bytes read.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUnsigned(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 decodes an unsigned LEB128 uint64 from r.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUnsigned(r, 64)
}

// DecodeInt32 decodes a signed LEB128 int32 from r.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeSigned(r, 32)
	return int32(v), n, err
}

// DecodeInt64 decodes a signed LEB128 int64 from r.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 64)
}

// DecodeInt33AsInt64 decodes a signed LEB128 value whose represented range
// is 33 bits (as used for the WebAssembly block-type encoding's positive
// type-index case) and sign-extends it to int64.
func DecodeInt33AsInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 33)
}

func decodeUnsigned(r io.ByteReader, bitWidth uint) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var read uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && read > 0 {
				return 0, read, errors.Wrap(io.ErrUnexpectedEOF, "leb128: unexpected EOF while decoding unsigned integer")
			}
			return 0, read, errors.Wrap(err, "leb128: error reading byte")
		}
		read++

		if shift == (bitWidth/7)*7 {
			// Last possible group: only the bits that fit may be set, and
			// the rest must be zero (otherwise this is an over-long
			// encoding with high bits we can't represent).
			remainingBits := bitWidth - shift
			mask := byte(0xff << remainingBits)
			if b&0x80 != 0 {
				return 0, read, errors.New("leb128: unsigned integer has more bits than " + itoa(bitWidth))
			}
			if b&mask != 0 {
				return 0, read, errors.New("leb128: unsigned integer has invalid high bits in final byte")
			}
			result |= uint64(b) << shift
			return result, read, nil
		}

		result |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			return result, read, nil
		}
	}
}

func decodeSigned(r io.ByteReader, bitWidth uint) (int64, uint64, error) {
	var result int64
	var shift uint
	var read uint64
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			if err == io.EOF && read > 0 {
				return 0, read, errors.Wrap(io.ErrUnexpectedEOF, "leb128: unexpected EOF while decoding signed integer")
			}
			return 0, read, errors.Wrap(err, "leb128: error reading byte")
		}
		read++

		if shift+7 >= bitWidth {
			// Final byte: validate the unused high bits are a correct
			// sign extension of the represented value, rejecting
			// over-long encodings.
			if b&0x80 != 0 {
				return 0, read, errors.New("leb128: signed integer has more bits than " + itoa(bitWidth))
			}
			remainingBits := bitWidth - shift
			signExtendMask := byte(0xff << remainingBits)
			signBit := byte(1) << (remainingBits - 1)
			masked := b & signExtendMask
			if b&signBit != 0 {
				// Negative: high bits (beyond remainingBits) must all be 1.
				if masked&0x7f != signExtendMask&0x7f {
					return 0, read, errors.New("leb128: signed integer has invalid sign-extension bits")
				}
			} else {
				if masked != 0 {
					return 0, read, errors.New("leb128: signed integer has invalid high bits")
				}
			}
			result |= int64(b&0x7f) << shift
			shift += 7
			if remainingBits < 7 {
				// sign-extend the result from bitWidth to 64 bits.
				result = signExtend(result, bitWidth)
			}
			return result, read, nil
		}

		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, read, nil
		}
	}
}

func signExtend(v int64, bitWidth uint) int64 {
	shift := uint(64) - bitWidth
	return (v << shift) >> shift
}

func itoa(u uint) string {
	// small, allocation-light itoa for error messages; bitWidth is always
	// one of 32, 33, 64 here.
	switch u {
	case 32:
		return "32"
	case 33:
		return "33"
	case 64:
		return "64"
	default:
		b := [3]byte{}
		i := len(b)
		if u == 0 {
			return "0"
		}
		for u > 0 {
			i--
			b[i] = byte('0' + u%10)
			u /= 10
		}
		return string(b[i:])
	}
}
