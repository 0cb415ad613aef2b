package metadata

import (
	"sync"
	"unsafe"

	"github.com/n1ght-hunter/rtmalloc/heaperrors"
	"github.com/n1ght-hunter/rtmalloc/platform"
)

// slabPages is how many pages a fresh slab reserves at a time. Span and
// radix-tree node records are tiny, so one slab covers a long run of
// allocations before the arena needs to go back to the platform.
const slabPages = 16

// Arena is a simple bump allocator over platform-reserved pages, with a
// per-size free list for reclaimed blocks (mirrors the teacher's
// flistPools head-insert/pop reuse policy, generalized from user-object
// pools to internal-metadata pools). Safe for concurrent use.
type Arena struct {
	mu       sync.Mutex
	adapter  platform.Adapter
	pageSize int64

	cur    uintptr // bump cursor within the current slab
	curEnd uintptr

	free map[uintptr]unsafe.Pointer // size -> head of reclaimed blocks (intrusive)
}

// New builds an Arena that carves its backing storage from adapter.
func New(adapter platform.Adapter) *Arena {
	return &Arena{
		adapter:  adapter,
		pageSize: adapter.PageSize(),
		free:     make(map[uintptr]unsafe.Pointer),
	}
}

// Alloc returns size bytes of zeroed, 8-byte-aligned storage that will
// never be touched by the Go garbage collector. Returns ErrOutOfMemory
// if the platform adapter cannot satisfy a fresh slab reservation; the
// arena remains usable for callers that free before retrying.
func (a *Arena) Alloc(size uintptr) (unsafe.Pointer, error) {
	size = align8(size)

	a.mu.Lock()
	defer a.mu.Unlock()

	if head := a.free[size]; head != nil {
		a.free[size] = *(*unsafe.Pointer)(head)
		zero(head, size)
		return head, nil
	}

	if a.cur+size > a.curEnd {
		if err := a.growLocked(size); err != nil {
			return nil, err
		}
	}
	ptr := unsafe.Pointer(a.cur)
	a.cur += size
	zero(ptr, size)
	return ptr, nil
}

// Free returns a block of size bytes (as previously returned by Alloc)
// to this arena's per-size free list. Never releases pages back to the
// platform adapter; metadata slabs live for the process lifetime.
func (a *Arena) Free(ptr unsafe.Pointer, size uintptr) {
	size = align8(size)
	a.mu.Lock()
	defer a.mu.Unlock()
	*(*unsafe.Pointer)(ptr) = a.free[size]
	a.free[size] = ptr
}

func (a *Arena) growLocked(need uintptr) error {
	pages := int64(slabPages)
	for int64(need) > pages*a.pageSize {
		pages *= 2
	}
	basePage, err := a.adapter.ReserveAligned(pages)
	if err != nil {
		return heaperrors.OutOfMemoryf("metadata: reserving %d pages for a fresh slab: %v", pages, err)
	}
	a.cur = platform.AddrOf(basePage, a.pageSize)
	a.curEnd = a.cur + uintptr(pages*a.pageSize)
	return nil
}

func align8(n uintptr) uintptr {
	return (n + 7) &^ 7
}

func zero(ptr unsafe.Pointer, size uintptr) {
	sl := unsafe.Slice((*byte)(ptr), size)
	for i := range sl {
		sl[i] = 0
	}
}
