package platform

import (
	"fmt"
	"sync"
	"unsafe"
)

// FakeAdapter backs tests for every layer above the platform boundary
// with plain Go-heap memory instead of a real mmap reservation. It
// satisfies Adapter so pageheap/central/frontend/heap tests can run
// without root or OS-specific syscalls, the same role malloc/debug.go's
// "+build debug" variant plays for the teacher's pool initialization.
//
// Memory handed out by FakeAdapter IS ordinary Go-heap memory, so it is
// not a faithful stand-in for the "never recurse into the Go allocator"
// invariant metadata.Arena relies on in production; it exists purely so
// the pipeline's logic can be exercised deterministically in tests.
type FakeAdapter struct {
	mu          sync.Mutex
	pageSize    int64
	slabs       [][]byte
	DecommitLog []int64 // basePage of every Decommit call, for test assertions

	// FailAfter, when non-zero, makes the (FailAfter+1)'th call to
	// ReserveAligned and every call after it return ErrOutOfMemory
	// instead of reserving, so tests can exercise the OOM path
	// deterministically without exhausting real memory.
	FailAfter    int
	reserveCount int
}

func NewFakeAdapter(pageSize int64) *FakeAdapter {
	return &FakeAdapter{pageSize: pageSize}
}

func (f *FakeAdapter) PageSize() int64 { return f.pageSize }

func (f *FakeAdapter) ReserveAligned(pages int64) (int64, error) {
	if pages <= 0 {
		return 0, fmt.Errorf("platform: ReserveAligned(%d) invalid", pages)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reserveCount++
	if f.FailAfter > 0 && f.reserveCount > f.FailAfter {
		return 0, fmt.Errorf("%w: fake adapter exhausted after %d reservations", ErrOutOfMemory, f.FailAfter)
	}

	size := pages * f.pageSize
	// over-allocate so we can carve out a page-aligned window.
	raw := make([]byte, size+f.pageSize)
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + uintptr(f.pageSize) - 1) &^ (uintptr(f.pageSize) - 1)
	f.slabs = append(f.slabs, raw) // keep alive for the life of the adapter

	basePage := PageOf(aligned, f.pageSize)
	return basePage, nil
}

func (f *FakeAdapter) Decommit(basePage, pages int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DecommitLog = append(f.DecommitLog, basePage)
}
