//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package platform

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMmapReserveAlignedReturnsPageAlignedAddress(t *testing.T) {
	m := NewMmap(4096)
	defer m.Close()

	basePage, err := m.ReserveAligned(4)
	require.NoError(t, err)

	addr := AddrOf(basePage, m.PageSize())
	assert.Equal(t, uintptr(0), addr%uintptr(m.PageSize()))
}

func TestMmapReserveAlignedIsReadWritable(t *testing.T) {
	m := NewMmap(4096)
	defer m.Close()

	basePage, err := m.ReserveAligned(1)
	require.NoError(t, err)

	sl := unsafe.Slice((*byte)(unsafe.Pointer(AddrOf(basePage, m.PageSize()))), m.PageSize())
	for i := range sl {
		sl[i] = byte(i)
	}
	for i := range sl {
		assert.Equal(t, byte(i), sl[i])
	}
}

func TestMmapDecommitIsSafeAfterReserve(t *testing.T) {
	m := NewMmap(4096)
	defer m.Close()

	basePage, err := m.ReserveAligned(2)
	require.NoError(t, err)
	m.Decommit(basePage, 2) // must not panic; MADV_DONTNEED is a hint
}

func TestMmapCloseUnmapsEveryReservation(t *testing.T) {
	m := NewMmap(4096)

	_, err := m.ReserveAligned(1)
	require.NoError(t, err)
	_, err = m.ReserveAligned(1)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.Empty(t, m.reserved)
}

func TestMmapReserveAlignedRejectsNonPositivePages(t *testing.T) {
	m := NewMmap(4096)
	defer m.Close()

	_, err := m.ReserveAligned(0)
	assert.Error(t, err)
}
