package frontend

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/n1ght-hunter/rtmalloc/central"
	"github.com/n1ght-hunter/rtmalloc/platform"
	"github.com/n1ght-hunter/rtmalloc/runtimeid"
	"github.com/n1ght-hunter/rtmalloc/sizeclass"
	"github.com/n1ght-hunter/rtmalloc/transfer"
)

// Mode selects what a frontend instance is keyed by.
type Mode int

const (
	// PerGoroutine keys frontends by a parsed goroutine id, stored in a
	// sync.Map and torn down cooperatively by ReapIdle. This is the
	// default mode.
	PerGoroutine Mode = iota
	// PerP keys frontends by a pinned P id in a fixed-size array.
	// Experimental: correct only as long as no code elsewhere pins the
	// same P and assumes it owns it exclusively across a call boundary.
	PerP
)

type classState struct {
	head        unsafe.Pointer // chain of free objects, linked via first word
	cached      int64          // objects currently on head
	capacity    int64          // soft target: scavenge once cached exceeds this
	maxCapacity int64          // hard cap on capacity, independent of the budget
}

// Cache is one frontend's private view of every size class. A goroutine
// or P owns exactly one Cache at a time; Manager is responsible for
// handing out the right one and for ReapIdle's cooperative teardown.
type Cache struct {
	mu        sync.Mutex
	lastTouch int64 // unix nanos, read by ReapIdle without the lock
	classes   []classState
}

func newCache(table *sizeclass.Table) *Cache {
	n := table.NumClasses()
	c := &Cache{classes: make([]classState, n+1)}
	for cl := 1; cl <= n; cl++ {
		max := table.ObjectsPerSpan(cl) / 2
		if max < table.Batch(cl) {
			max = table.Batch(cl)
		}
		c.classes[cl].maxCapacity = max
	}
	c.touch()
	return c
}

func (c *Cache) touch() {
	atomic.StoreInt64(&c.lastTouch, time.Now().UnixNano())
}

func (c *Cache) totalBytesLocked(table *sizeclass.Table) int64 {
	var total int64
	for cl := 1; cl <= table.NumClasses(); cl++ {
		total += c.classes[cl].cached * table.Size(cl)
	}
	return total
}

// Manager is the process-wide coordinator for every frontend instance: it
// owns the routing policy (PerGoroutine vs PerP), the per-class transfer
// caches and central free lists frontends refill from and drain to, and
// the thread_cache_size_max budget each frontend is held to.
type Manager struct {
	table          *sizeclass.Table
	transferCaches []*transfer.Cache // index 1..NumClasses
	centralLists   []*central.List   // index 1..NumClasses
	budgetBytes    int64

	mode Mode
	perG sync.Map // goroutine id (uint64) -> *Cache, PerGoroutine mode only
	perP []*Cache // index: pinned P id, PerP mode only
}

// New builds a frontend Manager. transferCaches and centralLists must be
// indexed the same way as table's classes (index 0 unused, 1..NumClasses
// populated). budgetBytes is the thread_cache_size_max enforced per
// frontend instance, not process-wide across all of them.
func New(table *sizeclass.Table, transferCaches []*transfer.Cache, centralLists []*central.List, budgetBytes int64, mode Mode) *Manager {
	m := &Manager{
		table:          table,
		transferCaches: transferCaches,
		centralLists:   centralLists,
		budgetBytes:    budgetBytes,
		mode:           mode,
	}
	if mode == PerP {
		m.perP = make([]*Cache, platform.NumP())
	}
	return m
}

// cacheFor returns the calling goroutine's frontend and a function that
// must be called once the caller is done with it (releases the P pin in
// PerP mode, a no-op in PerGoroutine mode).
func (m *Manager) cacheFor() (*Cache, func()) {
	if m.mode == PerP {
		pin := platform.PinP()
		if pin >= len(m.perP) {
			// GOMAXPROCS grew after Manager was built; fall back to a
			// throwaway cache rather than index out of range.
			platform.UnpinP()
			return newCache(m.table), func() {}
		}
		c := m.perP[pin]
		if c == nil {
			c = newCache(m.table)
			m.perP[pin] = c
		}
		return c, platform.UnpinP
	}

	// PerGoroutine mode has no equivalent of PinP/UnpinP to fall back
	// on: the Go runtime exposes no cheap, stable, already-resolved
	// notion of "which goroutine is this" the way it exposes a pinned
	// P. runtimeid.Current resolves it fresh on every call; see its doc
	// comment for why a per-P hint cache was tried and rejected.
	id := runtimeid.Current()
	if v, ok := m.perG.Load(id); ok {
		return v.(*Cache), func() {}
	}
	fresh := newCache(m.table)
	actual, _ := m.perG.LoadOrStore(id, fresh)
	return actual.(*Cache), func() {}
}

// Allocate returns one object of class, taking the fast path when the
// frontend already has one cached and falling back to the transfer cache
// and then the central free list otherwise.
func (m *Manager) Allocate(class int) (unsafe.Pointer, error) {
	cache, done := m.cacheFor()
	defer done()

	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.touch()

	cs := &cache.classes[class]
	if cs.head != nil {
		obj := cs.head
		cs.head = *(*unsafe.Pointer)(obj)
		cs.cached--
		return obj, nil
	}
	return m.refillAndAllocLocked(cache, class)
}

func (m *Manager) refillAndAllocLocked(cache *Cache, class int) (unsafe.Pointer, error) {
	cs := &cache.classes[class]

	if head, ok := m.transferCaches[class].TryPopBatch(); ok {
		cs.head = head
		cs.cached += m.table.Batch(class)
	} else {
		n := int(m.table.Batch(class))
		dst := make([]unsafe.Pointer, n)
		got, err := m.centralLists[class].FetchBatch(dst, n)
		if got == 0 {
			return nil, err
		}
		cs.head = linkChain(dst[:got])
		cs.cached += int64(got)
	}

	m.growCapacityLocked(cs, class)

	obj := cs.head
	cs.head = *(*unsafe.Pointer)(obj)
	cs.cached--
	m.enforceBudgetLocked(cache)
	return obj, nil
}

// growCapacityLocked doubles a class's soft capacity target on every
// refill, the slow-start policy described in §4.7: a frontend that is
// actually being used grows quickly, one that refills once and goes
// quiet never grows past its first batch.
func (m *Manager) growCapacityLocked(cs *classState, class int) {
	if cs.capacity == 0 {
		cs.capacity = m.table.Batch(class)
	} else {
		cs.capacity *= 2
	}
	if cs.capacity > cs.maxCapacity {
		cs.capacity = cs.maxCapacity
	}
}

// Deallocate returns one object of class to the frontend, scavenging a
// batch downward if the class has grown past its soft capacity or the
// frontend as a whole has grown past its byte budget.
func (m *Manager) Deallocate(class int, ptr unsafe.Pointer) {
	cache, done := m.cacheFor()
	defer done()

	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.touch()

	cs := &cache.classes[class]
	*(*unsafe.Pointer)(ptr) = cs.head
	cs.head = ptr
	cs.cached++

	if cs.cached > cs.capacity {
		m.scavengeLocked(cache, class)
	}
	m.enforceBudgetLocked(cache)
}

// scavengeLocked removes one class's worth of Batch objects from the
// frontend, handing them to the transfer cache on a hit or straight to
// the central free list on a miss, and decays the class's soft capacity
// toward its floor (low-water-mark decay, the mirror of slow-start).
func (m *Manager) scavengeLocked(cache *Cache, class int) {
	cs := &cache.classes[class]
	batch := m.table.Batch(class)
	if cs.cached < batch {
		return
	}

	n := int(batch)
	buf := make([]unsafe.Pointer, n)
	head := cs.head
	for i := 0; i < n; i++ {
		buf[i] = head
		head = *(*unsafe.Pointer)(head)
	}
	// cut the batch off the rest of the frontend's list so the transfer
	// cache holds a chain of exactly batch objects.
	*(*unsafe.Pointer)(buf[n-1]) = nil
	cs.head = head
	cs.cached -= int64(n)

	if !m.transferCaches[class].TryPushBatch(buf[0]) {
		m.centralLists[class].ReleaseBatch(buf, n)
	}

	cs.capacity -= batch
	if cs.capacity < batch {
		cs.capacity = batch
	}
}

// enforceBudgetLocked repeatedly scavenges the class currently holding
// the most bytes until the frontend is back under its byte budget, or
// until nothing left can be scavenged in whole batches.
func (m *Manager) enforceBudgetLocked(cache *Cache) {
	for cache.totalBytesLocked(m.table) > m.budgetBytes {
		worst, worstBytes := -1, int64(-1)
		for cl := 1; cl <= m.table.NumClasses(); cl++ {
			b := cache.classes[cl].cached * m.table.Size(cl)
			if b > worstBytes {
				worstBytes, worst = b, cl
			}
		}
		if worst < 0 || cache.classes[worst].cached < m.table.Batch(worst) {
			return
		}
		m.scavengeLocked(cache, worst)
	}
}

// ReapIdle flushes and discards every PerGoroutine frontend that has not
// been touched in maxAge, returning its cached objects to the central
// free lists. It is a no-op in PerP mode: pinned-P frontends live for
// the process's lifetime and are never individually idle in a way that
// is safe to observe from outside.
func (m *Manager) ReapIdle(maxAge time.Duration) {
	if m.mode != PerGoroutine {
		return
	}
	cutoff := time.Now().Add(-maxAge).UnixNano()
	m.perG.Range(func(key, value interface{}) bool {
		cache := value.(*Cache)
		if !cache.mu.TryLock() {
			// Busy right now: by definition not idle this round.
			return true
		}
		if atomic.LoadInt64(&cache.lastTouch) < cutoff {
			m.flushLocked(cache)
			m.perG.Delete(key)
		}
		cache.mu.Unlock()
		return true
	})
}

func (m *Manager) flushLocked(cache *Cache) {
	for cl := 1; cl <= m.table.NumClasses(); cl++ {
		cs := &cache.classes[cl]
		if cs.cached == 0 {
			continue
		}
		n := int(cs.cached)
		buf := make([]unsafe.Pointer, n)
		head := cs.head
		for i := 0; i < n; i++ {
			buf[i] = head
			head = *(*unsafe.Pointer)(head)
		}
		m.centralLists[cl].ReleaseBatch(buf, n)
		cs.head, cs.cached = nil, 0
	}
}

// linkChain threads objs[i]'s first word to point at objs[i+1], turning
// a plain slice of pointers into the intrusive chain format every other
// tier in the pipeline expects.
func linkChain(objs []unsafe.Pointer) unsafe.Pointer {
	for i := 0; i < len(objs)-1; i++ {
		*(*unsafe.Pointer)(objs[i]) = objs[i+1]
	}
	*(*unsafe.Pointer)(objs[len(objs)-1]) = nil
	return objs[0]
}
