//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package platform

// Mmap on an unsupported GOOS has no working implementation; the core's
// contract (§4.2 of the spec) treats OS primitives as an external
// collaborator, so a stub that always fails is a conforming adapter for
// platforms nobody has wired up yet.
type Mmap struct {
	pageSize int64
}

func NewMmap(pageSize int64) *Mmap {
	return &Mmap{pageSize: pageSize}
}

func (m *Mmap) PageSize() int64 { return m.pageSize }

func (m *Mmap) ReserveAligned(pages int64) (int64, error) {
	return 0, ErrUnsupportedPlatform
}

func (m *Mmap) Decommit(basePage, pages int64) {}

func (m *Mmap) Close() error { return nil }
