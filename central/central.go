package central

import (
	"sync"
	"unsafe"

	"github.com/n1ght-hunter/rtmalloc/heaperrors"
	"github.com/n1ght-hunter/rtmalloc/lib"
	"github.com/n1ght-hunter/rtmalloc/pageheap"
	"github.com/n1ght-hunter/rtmalloc/pagemap"
	"github.com/n1ght-hunter/rtmalloc/span"
)

// List is the central free list for one size class.
type List struct {
	mu sync.Mutex

	class          int
	objSize        int64
	pagesPerSpan   int64
	objectsPerSpan int64
	pageSize       int64

	head  *span.Span // spans that are not full, FIFO head-of-list reuse
	count int64      // number of spans currently linked

	allocated int64 // objects currently checked out, across every span of this class

	a_fetchsize *lib.AverageInt64 // distribution of FetchBatch delivery sizes

	pheap *pageheap.Heap
	pmap  *pagemap.Map
}

// New builds the central free list for class, sized for objSize objects
// carved out of spans of pagesPerSpan pages (objectsPerSpan objects
// each).
func New(class int, objSize, pagesPerSpan, objectsPerSpan int64, pheap *pageheap.Heap, pmap *pagemap.Map) *List {
	return &List{
		class:          class,
		objSize:        objSize,
		pagesPerSpan:   pagesPerSpan,
		objectsPerSpan: objectsPerSpan,
		pageSize:       pheap.PageSize(),
		a_fetchsize:    &lib.AverageInt64{},
		pheap:          pheap,
		pmap:           pmap,
	}
}

// FetchSizeStats reports the mean and standard deviation of FetchBatch
// delivery sizes, for Stats() to surface per-class transfer behaviour.
func (l *List) FetchSizeStats() (mean int64, sd float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a_fetchsize.Mean(), l.a_fetchsize.SD()
}

// SpanCount returns how many spans are currently linked into this
// class's central list, used by the "no leaks" property (§8.3).
func (l *List) SpanCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Allocated returns how many objects of this class are currently
// checked out, across every span, for Stats()'s utilization reporting.
func (l *List) Allocated() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allocated
}

// FetchBatch fills dst[:n] with up to n objects of this class, pulling
// from linked spans and, when they run dry, fresh spans from the page
// heap. Returns the number actually delivered; less than n only when
// the page heap could not grow (OutOfMemory).
func (l *List) FetchBatch(dst []unsafe.Pointer, n int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	got := 0
	for got < n {
		if l.head == nil {
			sp, err := l.pheap.AllocSpan(l.pagesPerSpan)
			if err != nil {
				return got, err
			}
			debugf("central[%d]: threaded fresh span at page %d", l.class, sp.StartPage)
			l.threadSpanLocked(sp)
			span.PushFront(&l.head, sp, span.LocCentral)
			l.count++
		}

		sp := l.head
		for sp.LocalFree != nil && got < n {
			dst[got] = sp.PopFree()
			got++
		}
		if sp.IsFull() {
			span.Remove(&l.head, sp)
			l.count--
		}
	}
	l.allocated += int64(got)
	l.a_fetchsize.Add(int64(got))
	return got, nil
}

// ReleaseBatch returns src[:n] — objects known to belong to this class
// — to their owning spans, relinking any span that transitions from
// full to not-full, and returning to the page heap any span whose
// allocated count reaches zero.
func (l *List) ReleaseBatch(src []unsafe.Pointer, n int) {
	l.mu.Lock()
	var freed []*span.Span
	for i := 0; i < n; i++ {
		ptr := src[i]
		page := int64(uintptr(ptr)) / l.pageSize
		sp := l.pmap.Lookup(page)
		if sp == nil || sp.State != span.InUseSmall {
			heaperrors.Abortf("central: release of pointer %p not owned by this class", ptr)
		}
		wasFull := sp.IsFull()
		sp.PushFree(ptr)
		if wasFull {
			span.PushFront(&l.head, sp, span.LocCentral)
			l.count++
		}
		if sp.IsEmpty() {
			span.Remove(&l.head, sp)
			l.count--
			sp.SizeClass = 0
			freed = append(freed, sp)
		}
	}
	l.allocated -= int64(n)
	l.mu.Unlock()

	// pageheap's lock is acquired only after central's has been
	// released, respecting the transfer -> central -> page-heap order.
	for _, sp := range freed {
		l.pheap.FreeSpan(sp)
	}
}

func (l *List) threadSpanLocked(sp *span.Span) {
	sp.State = span.InUseSmall
	sp.SizeClass = l.class
	sp.ObjectSize = l.objSize
	sp.ObjectsPerSpan = l.objectsPerSpan
	sp.ThreadFreeList(l.pageSize)
}
