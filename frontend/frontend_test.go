package frontend

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n1ght-hunter/rtmalloc/central"
	"github.com/n1ght-hunter/rtmalloc/metadata"
	"github.com/n1ght-hunter/rtmalloc/pageheap"
	"github.com/n1ght-hunter/rtmalloc/pagemap"
	"github.com/n1ght-hunter/rtmalloc/platform"
	"github.com/n1ght-hunter/rtmalloc/sizeclass"
	"github.com/n1ght-hunter/rtmalloc/transfer"
)

func newTestManager(t *testing.T, mode Mode) *Manager {
	table, err := sizeclass.New([]sizeclass.Entry{
		{Size: 32}, {Size: 64}, {Size: 128},
	}, 4096)
	require.NoError(t, err)

	adapter := platform.NewFakeAdapter(4096)
	arena := metadata.New(adapter)
	pmap, err := pagemap.New(arena, adapter.PageSize())
	require.NoError(t, err)
	ph := pageheap.New(adapter, pmap, arena, 32, 4)

	n := table.NumClasses()
	transferCaches := make([]*transfer.Cache, n+1)
	centralLists := make([]*central.List, n+1)
	for cl := 1; cl <= n; cl++ {
		transferCaches[cl] = transfer.New(table.Batch(cl), 4)
		centralLists[cl] = central.New(cl, table.Size(cl), table.Pages(cl), table.ObjectsPerSpan(cl), ph, pmap)
	}

	return New(table, transferCaches, centralLists, 1<<20, mode)
}

func TestAllocateDeallocateRoundTrip(t *testing.T) {
	m := newTestManager(t, PerGoroutine)
	ptr, err := m.Allocate(1)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	m.Deallocate(1, ptr)
}

func TestAllocateDistinctObjects(t *testing.T) {
	m := newTestManager(t, PerGoroutine)
	seen := map[unsafe.Pointer]bool{}
	for i := 0; i < 500; i++ {
		ptr, err := m.Allocate(2)
		require.NoError(t, err)
		assert.False(t, seen[ptr])
		seen[ptr] = true
	}
}

func TestDeallocateScavengesPastCapacity(t *testing.T) {
	m := newTestManager(t, PerGoroutine)
	batch := int(m.table.Batch(1))

	ptrs := make([]unsafe.Pointer, 0, batch*4)
	for i := 0; i < batch*4; i++ {
		ptr, err := m.Allocate(1)
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	for _, p := range ptrs {
		m.Deallocate(1, p)
	}

	cache, done := m.cacheFor()
	done()
	cache.mu.Lock()
	cached := cache.classes[1].cached
	capacity := cache.classes[1].capacity
	cache.mu.Unlock()
	assert.LessOrEqual(t, cached, capacity)
}

func TestBudgetEnforcementCapsFrontendBytes(t *testing.T) {
	m := newTestManager(t, PerGoroutine)
	m.budgetBytes = 256 // tiny, forces aggressive scavenging

	ptrs := make([]unsafe.Pointer, 0, 64)
	for i := 0; i < 64; i++ {
		ptr, err := m.Allocate(1)
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	for _, p := range ptrs {
		m.Deallocate(1, p)
	}

	cache, done := m.cacheFor()
	done()
	cache.mu.Lock()
	total := cache.totalBytesLocked(m.table)
	cache.mu.Unlock()
	assert.LessOrEqual(t, total, m.budgetBytes+m.table.Size(1)*m.table.Batch(1))
}

func TestPerGoroutineIsolatesFrontends(t *testing.T) {
	m := newTestManager(t, PerGoroutine)
	done := make(chan *Cache, 2)
	for i := 0; i < 2; i++ {
		go func() {
			c, release := m.cacheFor()
			release()
			done <- c
		}()
	}
	a, b := <-done, <-done
	assert.NotSame(t, a, b)
}

func TestPerPReusesSameSlotWhilePinned(t *testing.T) {
	m := newTestManager(t, PerP)
	c1, done1 := m.cacheFor()
	done1()
	c2, done2 := m.cacheFor()
	done2()
	assert.Same(t, c1, c2)
}

func TestReapIdleFlushesUntouchedFrontend(t *testing.T) {
	m := newTestManager(t, PerGoroutine)
	ptr, err := m.Allocate(1)
	require.NoError(t, err)
	m.Deallocate(1, ptr)

	cache, done := m.cacheFor()
	done()
	cache.mu.Lock()
	cache.lastTouch = time.Now().Add(-time.Hour).UnixNano()
	cache.mu.Unlock()

	m.ReapIdle(time.Minute)

	count := 0
	m.perG.Range(func(_, _ interface{}) bool { count++; return true })
	assert.Equal(t, 0, count)
}

func TestReapIdleSkipsRecentlyTouchedFrontend(t *testing.T) {
	m := newTestManager(t, PerGoroutine)
	ptr, err := m.Allocate(1)
	require.NoError(t, err)
	m.Deallocate(1, ptr)

	m.ReapIdle(time.Hour)

	count := 0
	m.perG.Range(func(_, _ interface{}) bool { count++; return true })
	assert.Equal(t, 1, count)
}
