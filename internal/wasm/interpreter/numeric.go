package interpreter

import "math"

// Numeric helpers for the instructions whose semantics go beyond a plain
// Go operator: division/remainder traps, float min/max, and the
// trapping vs. saturating float-to-int conversions.

func i32DivS(a, b int32) (int32, error) {
	if b == 0 {
		return 0, trap(TrapCodeIntegerDivideByZero)
	}
	if a == math.MinInt32 && b == -1 {
		return 0, trap(TrapCodeIntegerOverflow)
	}
	return a / b, nil
}

func i32RemS(a, b int32) (int32, error) {
	if b == 0 {
		return 0, trap(TrapCodeIntegerDivideByZero)
	}
	if a == math.MinInt32 && b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func i32DivU(a, b uint32) (uint32, error) {
	if b == 0 {
		return 0, trap(TrapCodeIntegerDivideByZero)
	}
	return a / b, nil
}

func i32RemU(a, b uint32) (uint32, error) {
	if b == 0 {
		return 0, trap(TrapCodeIntegerDivideByZero)
	}
	return a % b, nil
}

func i64DivS(a, b int64) (int64, error) {
	if b == 0 {
		return 0, trap(TrapCodeIntegerDivideByZero)
	}
	if a == math.MinInt64 && b == -1 {
		return 0, trap(TrapCodeIntegerOverflow)
	}
	return a / b, nil
}

func i64RemS(a, b int64) (int64, error) {
	if b == 0 {
		return 0, trap(TrapCodeIntegerDivideByZero)
	}
	if a == math.MinInt64 && b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func i64DivU(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, trap(TrapCodeIntegerDivideByZero)
	}
	return a / b, nil
}

func i64RemU(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, trap(TrapCodeIntegerDivideByZero)
	}
	return a % b, nil
}

func minF32(a, b float32) float32 {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return float32(math.NaN())
	}
	if a == 0 && b == 0 {
		if math.Signbit(float64(a)) || math.Signbit(float64(b)) {
			return float32(math.Copysign(0, -1))
		}
		return 0
	}
	if a < b {
		return a
	}
	return b
}

func maxF32(a, b float32) float32 {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return float32(math.NaN())
	}
	if a == 0 && b == 0 {
		if !math.Signbit(float64(a)) || !math.Signbit(float64(b)) {
			return 0
		}
		return float32(math.Copysign(0, -1))
	}
	if a > b {
		return a
	}
	return b
}

func minF64(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) || math.Signbit(b) {
			return math.Copysign(0, -1)
		}
		return 0
	}
	if a < b {
		return a
	}
	return b
}

func maxF64(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if !math.Signbit(a) || !math.Signbit(b) {
			return 0
		}
		return math.Copysign(0, -1)
	}
	if a > b {
		return a
	}
	return b
}

// Trapping truncation bounds. Bounds are expressed as the widened float64 range each target
// integer type covers.
const (
	i32Min = -2147483648.0
	i32Max = 2147483648.0 // exclusive
	u32Max = 4294967296.0 // exclusive
	i64Min = -9223372036854775808.0
	i64Max = 9223372036854775808.0 // exclusive
	u64Max = 18446744073709551616.0 // exclusive
)

func truncToI32(f float64) (int32, error) {
	if math.IsNaN(f) {
		return 0, trap(TrapCodeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < i32Min || t >= i32Max {
		return 0, trap(TrapCodeIntegerOverflow)
	}
	return int32(t), nil
}

func truncToU32(f float64) (uint32, error) {
	if math.IsNaN(f) {
		return 0, trap(TrapCodeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < 0 || t >= u32Max {
		return 0, trap(TrapCodeIntegerOverflow)
	}
	return uint32(t), nil
}

func truncToI64(f float64) (int64, error) {
	if math.IsNaN(f) {
		return 0, trap(TrapCodeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < i64Min || t >= i64Max {
		return 0, trap(TrapCodeIntegerOverflow)
	}
	return int64(t), nil
}

func truncToU64(f float64) (uint64, error) {
	if math.IsNaN(f) {
		return 0, trap(TrapCodeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < 0 || t >= u64Max {
		return 0, trap(TrapCodeIntegerOverflow)
	}
	return uint64(t), nil
}

// Saturating variants:
// NaN saturates to zero, out-of-range saturates to the nearest
// representable bound, never trapping.
func satTruncToI32(f float64) int32 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if t < i32Min {
		return math.MinInt32
	}
	if t >= i32Max {
		return math.MaxInt32
	}
	return int32(t)
}

func satTruncToU32(f float64) uint32 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if t < 0 {
		return 0
	}
	if t >= u32Max {
		return math.MaxUint32
	}
	return uint32(t)
}

func satTruncToI64(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if t < i64Min {
		return math.MinInt64
	}
	if t >= i64Max {
		return math.MaxInt64
	}
	return int64(t)
}

func satTruncToU64(f float64) uint64 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if t < 0 {
		return 0
	}
	if t >= u64Max {
		return math.MaxUint64
	}
	return uint64(t)
}
