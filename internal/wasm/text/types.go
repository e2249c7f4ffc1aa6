package text

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

// parseValueType recognizes the four mnemonic value type keywords.
func parseValueType(b []byte) (wasm.ValueType, error) {
	switch string(b) {
	case "i32":
		return wasm.ValueTypeI32, nil
	case "i64":
		return wasm.ValueTypeI64, nil
	case "f32":
		return wasm.ValueTypeF32, nil
	case "f64":
		return wasm.ValueTypeF64, nil
	default:
		return 0, errors.Errorf("unknown type: %s", b)
	}
}

// stripDigitSeparators removes the `_` digit-group separators the text
// format allows in numeric literals (decimal or hex).
func stripDigitSeparators(s string) string {
	if !strings.ContainsRune(s, '_') {
		return s
	}
	return strings.ReplaceAll(s, "_", "")
}

func parseU32Literal(s string) (uint32, error) {
	s = stripDigitSeparators(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid u32 %q", s)
	}
	return uint32(v), nil
}

func parseI32Literal(s string) (int32, error) {
	v, err := parseSignedLiteral(s, 32)
	return int32(v), err
}

func parseI64Literal(s string) (int64, error) {
	return parseSignedLiteral(s, 64)
}

// parseSignedLiteral parses a decimal or hex integer literal, which may
// additionally be supplied as its unsigned bit-pattern form (the text
// format allows either for i32.const/i64.const).
func parseSignedLiteral(raw string, bits int) (int64, error) {
	neg := false
	s := raw
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	} else if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = stripDigitSeparators(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, base, bits)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid integer literal %q", raw)
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

func parseF32Literal(s string) (float32, error) {
	v, err := parseFloatLiteral(s, 32)
	return float32(v), err
}

func parseF64Literal(s string) (float64, error) {
	return parseFloatLiteral(s, 64)
}

// parseFloatLiteral handles decimal/hex floats plus the special forms
// "inf", "-inf", "nan", "nan:0x<payload>".
func parseFloatLiteral(raw string, bits int) (float64, error) {
	s := stripDigitSeparators(raw)
	neg := false
	body := s
	if strings.HasPrefix(body, "+") {
		body = body[1:]
	} else if strings.HasPrefix(body, "-") {
		neg = true
		body = body[1:]
	}
	switch {
	case body == "inf":
		if neg {
			return math.Inf(-1), nil
		}
		return math.Inf(1), nil
	case body == "nan":
		return math.NaN(), nil
	case strings.HasPrefix(body, "nan:0x"):
		payload, err := strconv.ParseUint(body[6:], 16, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid nan payload %q", raw)
		}
		if bits == 32 {
			bits32 := uint32(0x7f800000) | uint32(payload)
			if neg {
				bits32 |= 0x80000000
			}
			return float64(math.Float32frombits(bits32)), nil
		}
		bits64 := uint64(0x7ff0000000000000) | payload
		if neg {
			bits64 |= 0x8000000000000000
		}
		return math.Float64frombits(bits64), nil
	}
	v, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid float literal %q", raw)
	}
	return v, nil
}
