package text

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

func TestParseValueType(t *testing.T) {
	tests := []struct {
		input    string
		expected wasm.ValueType
	}{
		{"i32", wasm.ValueTypeI32},
		{"i64", wasm.ValueTypeI64},
		{"f32", wasm.ValueTypeF32},
		{"f64", wasm.ValueTypeF64},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.input, func(t *testing.T) {
			v, err := parseValueType([]byte(tc.input))
			require.NoError(t, err)
			require.Equal(t, tc.expected, v)
		})
	}
	t.Run("unknown type", func(t *testing.T) {
		_, err := parseValueType([]byte("f65"))
		require.EqualError(t, err, "unknown type: f65")
	})
}

func TestParseIntegerLiterals(t *testing.T) {
	i32, err := parseI32Literal("-1")
	require.NoError(t, err)
	require.Equal(t, int32(-1), i32)

	i32, err = parseI32Literal("0x7fffffff")
	require.NoError(t, err)
	require.Equal(t, int32(math.MaxInt32), i32)

	i64, err := parseI64Literal("1_000_000")
	require.NoError(t, err)
	require.Equal(t, int64(1000000), i64)

	u32, err := parseU32Literal("0xff")
	require.NoError(t, err)
	require.Equal(t, uint32(0xff), u32)
}

func TestParseFloatLiterals(t *testing.T) {
	f32, err := parseF32Literal("inf")
	require.NoError(t, err)
	require.True(t, math.IsInf(float64(f32), 1))

	f32, err = parseF32Literal("-inf")
	require.NoError(t, err)
	require.True(t, math.IsInf(float64(f32), -1))

	f64, err := parseF64Literal("nan")
	require.NoError(t, err)
	require.True(t, math.IsNaN(f64))

	f64, err = parseF64Literal("3.25")
	require.NoError(t, err)
	require.Equal(t, 3.25, f64)

	f64, err = parseF64Literal("nan:0x4000000000000")
	require.NoError(t, err)
	require.True(t, math.IsNaN(f64))
	bits := math.Float64bits(f64)
	require.Equal(t, uint64(0x4000000000000), bits&0x000fffffffffffff)
}
