package pagemap

import (
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/n1ght-hunter/rtmalloc/metadata"
	"github.com/n1ght-hunter/rtmalloc/span"
)

// addrBits is the virtual address width this core sizes the radix tree
// for — the common user-space limit on linux/amd64 and linux/arm64.
// The tree covers every page number a real unix.Mmap-backed address can
// produce at the configured page size; it is not a guess.
const addrBits = 48

const ptrSize = unsafe.Sizeof(unsafe.Pointer(nil))

// bitWidths splits the page-number bits a pageSize-byte-paged,
// addrBits-wide address space needs (addrBits - log2(pageSize)) roughly
// evenly across the tree's three levels, leaf and mid getting the
// smaller shares so root stays the node preallocated eagerly by New.
func bitWidths(pageSize int64) (rootBits, midBits, leafBits int) {
	pageBits := bits.TrailingZeros64(uint64(pageSize))
	total := addrBits - pageBits
	if total < 3 {
		total = 3
	}
	leafBits = total / 3
	midBits = total / 3
	rootBits = total - leafBits - midBits
	return
}

// Map is the page-number-to-span radix tree. Branching factor is
// derived from the adapter's actual page size at construction time (see
// bitWidths), not a fixed guess, so lookup never silently discards high
// bits of a real address's page number.
type Map struct {
	arena *metadata.Arena
	root  []unsafe.Pointer // *[midLen]unsafe.Pointer-shaped backing arrays; length rootLen

	rootShift, midShift         uint
	rootMask, midMask, leafMask int64
	midLen, leafLen             int
}

// New preallocates the root level from arena, sized for pageSize rather
// than a fixed constant.
func New(arena *metadata.Arena, pageSize int64) (*Map, error) {
	rootBits, midBits, leafBits := bitWidths(pageSize)
	rootLen, midLen, leafLen := 1<<rootBits, 1<<midBits, 1<<leafBits

	root, err := allocPointers(arena, rootLen)
	if err != nil {
		return nil, err
	}

	return &Map{
		arena:     arena,
		root:      root,
		rootShift: uint(midBits + leafBits),
		midShift:  uint(leafBits),
		rootMask:  int64(rootLen - 1),
		midMask:   int64(midLen - 1),
		leafMask:  int64(leafLen - 1),
		midLen:    midLen,
		leafLen:   leafLen,
	}, nil
}

// allocPointers carves an n-element array of unsafe.Pointer out of
// arena, returning it as a slice over the freshly zeroed backing
// storage. n varies per-Map (derived from pageSize), which is why the
// tree's nodes can no longer be fixed-size Go arrays.
func allocPointers(arena *metadata.Arena, n int) ([]unsafe.Pointer, error) {
	ptr, err := arena.Alloc(uintptr(n) * ptrSize)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*unsafe.Pointer)(ptr), n), nil
}

func (m *Map) split(page int64) (root, mid, leaf int) {
	root = int((page >> m.rootShift) & m.rootMask)
	mid = int((page >> m.midShift) & m.midMask)
	leaf = int(page & m.leafMask)
	return
}

// Lookup returns the span owning page, or nil if no span has ever
// claimed it. Safe to call concurrently with Insert/Remove.
func (m *Map) Lookup(page int64) *span.Span {
	r, mi, le := m.split(page)

	midBase := atomic.LoadPointer(&m.root[r])
	if midBase == nil {
		return nil
	}
	mid := unsafe.Slice((*unsafe.Pointer)(midBase), m.midLen)

	leafBase := atomic.LoadPointer(&mid[mi])
	if leafBase == nil {
		return nil
	}
	leaf := unsafe.Slice((*unsafe.Pointer)(leafBase), m.leafLen)

	return (*span.Span)(atomic.LoadPointer(&leaf[le]))
}

// Insert records sp as the owner of every page in
// [startPage, startPage+pageCount). Caller must hold the page heap
// lock. Returns an error (never partially applied beyond the page that
// failed) if a fresh radix node could not be allocated.
func (m *Map) Insert(startPage, pageCount int64, sp *span.Span) error {
	for p := startPage; p < startPage+pageCount; p++ {
		if err := m.store(p, unsafe.Pointer(sp)); err != nil {
			return err
		}
	}
	return nil
}

// Remove clears the owner of every page in
// [startPage, startPage+pageCount). Caller must hold the page heap
// lock. Per the two-phase deletion contract in §4.3 of the spec, this
// must only be called after the span is fully reclaimed so a racing
// Lookup with a stale pointer never resolves to a reused span. Remove
// goes through the same store path as Insert, so a node missing on the
// path is allocated before its entry is cleared; Remove therefore fails
// only when that allocation fails, which cannot happen for pages an
// earlier Insert already populated.
func (m *Map) Remove(startPage, pageCount int64) error {
	for p := startPage; p < startPage+pageCount; p++ {
		if err := m.store(p, nil); err != nil {
			return err
		}
	}
	return nil
}

func (m *Map) store(page int64, val unsafe.Pointer) error {
	r, mi, le := m.split(page)

	midBase := atomic.LoadPointer(&m.root[r])
	if midBase == nil {
		fresh, err := m.arena.Alloc(uintptr(m.midLen) * ptrSize)
		if err != nil {
			return err
		}
		atomic.StorePointer(&m.root[r], fresh)
		midBase = fresh
	}
	mid := unsafe.Slice((*unsafe.Pointer)(midBase), m.midLen)

	leafBase := atomic.LoadPointer(&mid[mi])
	if leafBase == nil {
		fresh, err := m.arena.Alloc(uintptr(m.leafLen) * ptrSize)
		if err != nil {
			return err
		}
		atomic.StorePointer(&mid[mi], fresh)
		leafBase = fresh
	}
	leaf := unsafe.Slice((*unsafe.Pointer)(leafBase), m.leafLen)

	atomic.StorePointer(&leaf[le], val)
	return nil
}
