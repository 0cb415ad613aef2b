package pageheap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n1ght-hunter/rtmalloc/metadata"
	"github.com/n1ght-hunter/rtmalloc/pagemap"
	"github.com/n1ght-hunter/rtmalloc/platform"
	"github.com/n1ght-hunter/rtmalloc/span"
)

func newTestHeap(t *testing.T) *Heap {
	adapter := platform.NewFakeAdapter(4096)
	arena := metadata.New(adapter)
	pmap, err := pagemap.New(arena, adapter.PageSize())
	require.NoError(t, err)
	return New(adapter, pmap, arena, 32, 16)
}

func TestAllocSpanExactSize(t *testing.T) {
	h := newTestHeap(t)
	sp, err := h.AllocSpan(4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), sp.PageCount)
}

func TestAllocSpanSplitsRemainder(t *testing.T) {
	h := newTestHeap(t)
	sp, err := h.AllocSpan(4)
	require.NoError(t, err)
	h.FreeSpan(sp)

	// minGrow=16 pages were reserved; freeing leaves one free span of
	// 16 pages. Asking for 4 should split off a 4-page span and leave a
	// 12-page remainder in the bucket.
	got, err := h.AllocSpan(4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.PageCount)
	assert.Equal(t, int64(12), h.FreeBytes()/h.pageSize)
}

func TestFreeSpanCoalescesAdjacentRuns(t *testing.T) {
	h := newTestHeap(t)
	a, err := h.AllocSpan(5)
	require.NoError(t, err)
	b, err := h.AllocSpan(5)
	require.NoError(t, err)
	require.Equal(t, a.StartPage+a.PageCount, b.StartPage)

	h.FreeSpan(a)
	h.FreeSpan(b)

	got, err := h.AllocSpan(10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.PageCount)
	assert.Equal(t, a.StartPage, got.StartPage)
}

func TestFreeSpanCoalescesRegardlessOfOrder(t *testing.T) {
	h := newTestHeap(t)
	a, err := h.AllocSpan(3)
	require.NoError(t, err)
	b, err := h.AllocSpan(3)
	require.NoError(t, err)

	h.FreeSpan(b)
	h.FreeSpan(a)

	got, err := h.AllocSpan(6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.PageCount)
}

func TestAllocSpanGrowsOnExhaustion(t *testing.T) {
	h := newTestHeap(t)
	// Ask for more than maxBucket; must come from a fresh reservation via
	// the overflow path since no bucket can ever hold such a run.
	sp, err := h.AllocSpan(64)
	require.NoError(t, err)
	assert.Equal(t, int64(64), sp.PageCount)
}

func TestDecommitIdleHintsEveryFreeSpanOnce(t *testing.T) {
	adapter := platform.NewFakeAdapter(4096)
	arena := metadata.New(adapter)
	pmap, err := pagemap.New(arena, adapter.PageSize())
	require.NoError(t, err)
	h := New(adapter, pmap, arena, 32, 16)

	sp, err := h.AllocSpan(4)
	require.NoError(t, err)
	h.FreeSpan(sp)

	h.DecommitIdle()
	assert.NotEmpty(t, adapter.DecommitLog)

	before := len(adapter.DecommitLog)
	h.DecommitIdle()
	assert.Equal(t, before, len(adapter.DecommitLog), "already-decommitted spans must not be re-hinted")
}

func TestLargePathDirectMapping(t *testing.T) {
	h := newTestHeap(t)
	sp, err := h.AllocSpan(5)
	require.NoError(t, err)
	sp.State = span.InUseLarge

	h.FreeSpan(sp)
	assert.Equal(t, span.OnPageHeap, sp.State)
}
