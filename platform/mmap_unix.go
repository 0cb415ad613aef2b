//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package platform

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmap is the production Adapter, grounded on the teacher's OS-specific
// build-tagged flock package but reaching for golang.org/x/sys/unix
// instead of cgo: unix.Mmap/unix.Munmap/unix.Madvise give anonymous
// read-write page reservation without linking libc.
type Mmap struct {
	mu       sync.Mutex
	pageSize int64
	reserved []region // kept alive only so Close (test teardown) can Munmap
}

type region struct {
	addr uintptr
	size int64
}

// NewMmap constructs a production adapter for the given page size.
func NewMmap(pageSize int64) *Mmap {
	return &Mmap{pageSize: pageSize}
}

func (m *Mmap) PageSize() int64 { return m.pageSize }

// ReserveAligned over-allocates by one page so that slicing off the
// misalignment still leaves a pageSize-aligned, pages*PageSize()-byte
// region, then unmaps the slack on both sides.
func (m *Mmap) ReserveAligned(pages int64) (int64, error) {
	if pages <= 0 {
		return 0, fmt.Errorf("platform: ReserveAligned(%d) invalid", pages)
	}
	want := pages * m.pageSize
	over := want + m.pageSize

	data, err := unix.Mmap(-1, 0, int(over), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	base := uintptr(unsafe.Pointer(&data[0]))
	aligned := (base + uintptr(m.pageSize) - 1) &^ (uintptr(m.pageSize) - 1)
	lead := aligned - base
	if lead > 0 {
		unix.Munmap(data[:lead])
	}
	trail := over - int64(lead) - want
	if trail > 0 {
		unix.Munmap(data[lead+uintptr(want):])
	}

	m.mu.Lock()
	m.reserved = append(m.reserved, region{addr: aligned, size: want})
	m.mu.Unlock()

	return PageOf(aligned, m.pageSize), nil
}

func (m *Mmap) Decommit(basePage, pages int64) {
	addr := AddrOf(basePage, m.pageSize)
	size := pages * m.pageSize
	sl := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	// MADV_DONTNEED is a hint; errors are not actionable here.
	_ = unix.Madvise(sl, unix.MADV_DONTNEED)
}

// Close unmaps every region this adapter ever reserved. Only meant for
// tests and process teardown: spans still referencing this memory must
// not be touched afterwards.
func (m *Mmap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reserved {
		sl := unsafe.Slice((*byte)(unsafe.Pointer(r.addr)), r.size)
		if err := unix.Munmap(sl); err != nil {
			return err
		}
	}
	m.reserved = nil
	return nil
}
