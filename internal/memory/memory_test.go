package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	m := New(1, 1)
	for _, width := range []int{1, 2, 4, 8} {
		ok := m.WriteUint(0, width, 0x0102030405060708)
		require.True(t, ok)
		got, ok := m.ReadUint(0, width)
		require.True(t, ok)
		want := uint64(0x0102030405060708) & ((uint64(1) << (8 * width)) - 1)
		if width == 8 {
			want = 0x0102030405060708
		}
		require.Equal(t, want, got)
	}
}

func TestLittleEndian(t *testing.T) {
	m := New(1, 1)
	require.True(t, m.WriteUint(0, 4, 0x11223344))
	b0, _ := m.ReadUint(0, 1)
	b1, _ := m.ReadUint(1, 1)
	b2, _ := m.ReadUint(2, 1)
	b3, _ := m.ReadUint(3, 1)
	require.Equal(t, uint64(0x44), b0)
	require.Equal(t, uint64(0x33), b1)
	require.Equal(t, uint64(0x22), b2)
	require.Equal(t, uint64(0x11), b3)

	got, ok := m.ReadUint(0, 4)
	require.True(t, ok)
	require.Equal(t, uint64(0x11223344), got)
}

func TestBoundaryAccess(t *testing.T) {
	m := New(1, 1)
	size := m.SizeBytes()

	_, ok := m.ReadUint(size-4, 4)
	require.True(t, ok, "access ending exactly at size_bytes succeeds")

	_, ok = m.ReadUint(size-3, 4)
	require.False(t, ok, "one byte further traps")
}

func TestGrowBoundaries(t *testing.T) {
	m := New(1, 2)

	prev := m.Grow(0)
	require.Equal(t, uint32(1), prev, "grow_by(0) always succeeds and returns the current page count")

	prev = m.Grow(1)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(2), m.PageCount())

	failed := m.Grow(1)
	require.Equal(t, GrowFailed, failed, "current + n > max_pages returns the failure sentinel")
	require.Equal(t, uint32(2), m.PageCount(), "a failed grow does not modify the memory")
}

func TestReadWriteSpanningPages(t *testing.T) {
	m := New(2, 2)
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i + 1)
	}
	offset := uint64(PageSize - 8)
	require.True(t, m.WriteBytes(offset, data))
	got, ok := m.ReadBytes(offset, 16)
	require.True(t, ok)
	require.Equal(t, data, got)
}

func TestInvalidByteWidthPanics(t *testing.T) {
	m := New(1, 1)
	require.Panics(t, func() { m.ReadUint(0, 3) })
}
