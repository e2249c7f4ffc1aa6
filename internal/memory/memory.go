// Package memory implements the linear memory engine. It is a growable
// sequence of fixed-size pages with a little-endian typed access contract
// and a scoped, FIFO-fair lock, owned by a store's MemoryInstance and
// driven by the interpreter's memory instructions. Pages are stored
// individually instead of in one contiguous buffer, so Grow never needs to
// copy the whole memory.
package memory

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// PageSize is the fixed size of one page.
const PageSize = 65536

// MaxPages is the format-level cap on memory size.
const MaxPages = 65536

// GrowFailed is the sentinel failure value for Grow.
const GrowFailed = math.MaxUint32

// ErrInvalidByteWidth is raised for a byte-width outside {1,2,4,8}, a
// programming error rather than a trap.
var ErrInvalidByteWidth = errors.New("memory: byte width must be one of 1, 2, 4, or 8")

// Memory is a growable linear memory.
type Memory struct {
	pages    [][]byte
	min, max uint32 // in pages; max == MaxPages when the module declared none.

	lock fifoLock
}

// New creates a Memory with minPages initial pages, growable up to
// maxPages (capped at MaxPages).
func New(minPages, maxPages uint32) *Memory {
	if maxPages > MaxPages {
		maxPages = MaxPages
	}
	m := &Memory{min: minPages, max: maxPages}
	m.pages = make([][]byte, minPages)
	for i := range m.pages {
		m.pages[i] = make([]byte, PageSize)
	}
	return m
}

// PageCount returns the current number of pages.
func (m *Memory) PageCount() uint32 { return uint32(len(m.pages)) }

// SizeBytes returns the current size in bytes.
func (m *Memory) SizeBytes() uint64 { return uint64(len(m.pages)) * PageSize }

// Grow returns the previous page count on success, or GrowFailed if
// current+n would exceed the declared max. Newly allocated pages are
// zero-initialized. grow_by(0) always succeeds.
func (m *Memory) Grow(n uint32) uint32 {
	m.lock.Lock()
	defer m.lock.Unlock()

	prev := uint32(len(m.pages))
	if n == 0 {
		return prev
	}
	if uint64(prev)+uint64(n) > uint64(m.max) {
		return GrowFailed
	}
	for i := uint32(0); i < n; i++ {
		m.pages = append(m.pages, make([]byte, PageSize))
	}
	return prev
}

// Lock acquires the memory's scoped lock for the duration of fn, totally
// ordering it (FIFO) with respect to other Lock scopes on the same memory.
func (m *Memory) Lock(fn func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	fn()
}

func (m *Memory) pageOf(offset uint64) ([]byte, uint64) {
	return m.pages[offset/PageSize], offset % PageSize
}

func inBounds(size uint64, offset uint64, width uint64) bool {
	return offset+width <= size && offset+width >= offset // guards overflow
}

// ReadBytes copies byteCount bytes starting at offset into a new slice,
// spanning page boundaries transparently.
// The second return is false on an out-of-range access.
func (m *Memory) ReadBytes(offset, byteCount uint64) ([]byte, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !inBounds(m.sizeBytesLocked(), offset, byteCount) {
		return nil, false
	}
	out := make([]byte, byteCount)
	m.copyOutLocked(out, offset)
	return out, true
}

// WriteBytes writes v starting at offset, spanning page boundaries
// transparently. An out-of-range access leaves memory unmodified and
// returns false.
func (m *Memory) WriteBytes(offset uint64, v []byte) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !inBounds(m.sizeBytesLocked(), offset, uint64(len(v))) {
		return false
	}
	m.copyInLocked(offset, v)
	return true
}

func (m *Memory) sizeBytesLocked() uint64 { return uint64(len(m.pages)) * PageSize }

func (m *Memory) copyOutLocked(dst []byte, offset uint64) {
	n := 0
	for n < len(dst) {
		page, inPage := m.pageOf(offset + uint64(n))
		c := copy(dst[n:], page[inPage:])
		n += c
	}
}

func (m *Memory) copyInLocked(offset uint64, src []byte) {
	n := 0
	for n < len(src) {
		page, inPage := m.pageOf(offset + uint64(n))
		c := copy(page[inPage:], src[n:])
		n += c
	}
}

// readLocked reads byteWidth bytes at offset into a little-endian uint64,
// assuming the caller already validated bounds and holds the lock.
func (m *Memory) readLocked(offset uint64, byteWidth int) uint64 {
	var buf [8]byte
	m.copyOutLocked(buf[:byteWidth], offset)
	switch byteWidth {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf[:2]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf[:4]))
	case 8:
		return binary.LittleEndian.Uint64(buf[:8])
	default:
		panic(ErrInvalidByteWidth)
	}
}

func (m *Memory) writeLocked(offset uint64, byteWidth int, v uint64) {
	var buf [8]byte
	switch byteWidth {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf[:2], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf[:8], v)
	default:
		panic(ErrInvalidByteWidth)
	}
	m.copyInLocked(offset, buf[:byteWidth])
}

// ReadUint reads a little-endian unsigned integer of byteWidth bytes.
// byteWidth must be one of 1, 2, 4, 8.
func (m *Memory) ReadUint(offset uint64, byteWidth int) (uint64, bool) {
	if byteWidth != 1 && byteWidth != 2 && byteWidth != 4 && byteWidth != 8 {
		panic(ErrInvalidByteWidth)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if !inBounds(m.sizeBytesLocked(), offset, uint64(byteWidth)) {
		return 0, false
	}
	return m.readLocked(offset, byteWidth), true
}

// WriteUint writes a little-endian unsigned integer of byteWidth bytes.
func (m *Memory) WriteUint(offset uint64, byteWidth int, v uint64) bool {
	if byteWidth != 1 && byteWidth != 2 && byteWidth != 4 && byteWidth != 8 {
		panic(ErrInvalidByteWidth)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if !inBounds(m.sizeBytesLocked(), offset, uint64(byteWidth)) {
		return false
	}
	m.writeLocked(offset, byteWidth, v)
	return true
}
