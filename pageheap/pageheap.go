package pageheap

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/n1ght-hunter/rtmalloc/heaperrors"
	"github.com/n1ght-hunter/rtmalloc/metadata"
	"github.com/n1ght-hunter/rtmalloc/pagemap"
	"github.com/n1ght-hunter/rtmalloc/platform"
	"github.com/n1ght-hunter/rtmalloc/span"
)

// Heap is the backend page heap, guarded by a single mutex.
type Heap struct {
	mu sync.Mutex

	adapter  platform.Adapter
	pmap     *pagemap.Map
	arena    *metadata.Arena
	pageSize int64

	maxBucket int64
	minGrow   int64

	buckets  []*span.Span // buckets[n] holds free spans of exactly n pages, 1 <= n <= maxBucket
	overflow *span.Span   // free spans with more than maxBucket pages, first-fit scanned

	highestPage int64
	freeBytes   int64
}

// New builds a page heap. maxBucket bounds the small-bucket index
// space; minGrow is the minimum number of pages requested from the
// platform adapter on every fresh reservation.
func New(adapter platform.Adapter, pmap *pagemap.Map, arena *metadata.Arena, maxBucket, minGrow int64) *Heap {
	return &Heap{
		adapter:   adapter,
		pmap:      pmap,
		arena:     arena,
		pageSize:  adapter.PageSize(),
		maxBucket: maxBucket,
		minGrow:   minGrow,
		buckets:   make([]*span.Span, maxBucket+1),
	}
}

func (h *Heap) PageSize() int64 { return h.pageSize }

func (h *Heap) FreeBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freeBytes
}

// SpanBytes is the O(1) map_size_of classifier from §4.4.
func (h *Heap) SpanBytes(sp *span.Span) int64 {
	return sp.PageCount * h.pageSize
}

// AllocSpan returns a span of exactly pages pages, carved from a free
// bucket, the overflow list, or a fresh platform reservation.
func (h *Heap) AllocSpan(pages int64) (*span.Span, error) {
	if pages <= 0 {
		return nil, fmt.Errorf("pageheap: AllocSpan(%d) invalid", pages)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	var sp *span.Span
	var err error
	if pages <= h.maxBucket {
		sp, err = h.takeSmallLocked(pages)
	} else {
		// A small bucket can never hold a run longer than maxBucket,
		// so only the overflow list can satisfy an oversized request.
		sp, err = h.takeOverflowLocked(pages)
	}
	if err != nil {
		return nil, err
	}
	if sp != nil {
		return sp, nil
	}
	return h.growLocked(pages)
}

// FreeSpan returns sp to the page heap, coalescing with any immediate
// OnPageHeap neighbours before filing it into the matching bucket. The
// page map entries being touched here were all populated by a prior
// successful Insert, so a failure here is a corrupted-bookkeeping
// invariant violation rather than a recoverable condition.
func (h *Heap) FreeSpan(sp *span.Span) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start, count := sp.StartPage, sp.PageCount
	sp.SizeClass, sp.AllocatedCount, sp.LocalFree = 0, 0, nil

	if left := h.pmap.Lookup(start - 1); left != nil && left.State == span.OnPageHeap {
		h.removeFreeLocked(left)
		if err := h.pmap.Remove(left.StartPage, left.PageCount); err != nil {
			heaperrors.Abortf("pageheap: removing left neighbour at page %d: %v", left.StartPage, err)
		}
		start = left.StartPage
		count += left.PageCount
		h.arena.Free(unsafe.Pointer(left), unsafe.Sizeof(span.Span{}))
	}
	if right := h.pmap.Lookup(start + count); right != nil && right.State == span.OnPageHeap {
		h.removeFreeLocked(right)
		if err := h.pmap.Remove(right.StartPage, right.PageCount); err != nil {
			heaperrors.Abortf("pageheap: removing right neighbour at page %d: %v", right.StartPage, err)
		}
		count += right.PageCount
		h.arena.Free(unsafe.Pointer(right), unsafe.Sizeof(span.Span{}))
	}

	if err := h.pmap.Remove(sp.StartPage, sp.PageCount); err != nil {
		heaperrors.Abortf("pageheap: removing freed span at page %d: %v", sp.StartPage, err)
	}
	sp.StartPage, sp.PageCount, sp.State = start, count, span.OnPageHeap
	if err := h.pmap.Insert(start, count, sp); err != nil {
		heaperrors.Abortf("pageheap: re-inserting coalesced span at page %d: %v", start, err)
	}
	h.insertFreeLocked(sp)
}

func (h *Heap) takeSmallLocked(pages int64) (*span.Span, error) {
	for n := pages; n <= h.maxBucket; n++ {
		if h.buckets[n] == nil {
			continue
		}
		sp := h.buckets[n]
		span.Remove(&h.buckets[n], sp)
		h.freeBytes -= sp.PageCount * h.pageSize
		return h.splitLocked(sp, pages)
	}
	return nil, nil
}

func (h *Heap) takeOverflowLocked(pages int64) (*span.Span, error) {
	for sp := h.overflow; sp != nil; sp = sp.Next {
		if sp.PageCount >= pages {
			span.Remove(&h.overflow, sp)
			h.freeBytes -= sp.PageCount * h.pageSize
			return h.splitLocked(sp, pages)
		}
	}
	return nil, nil
}

// splitLocked trims sp down to exactly pages pages, filing the
// remainder (if any) back into the appropriate free list.
func (h *Heap) splitLocked(sp *span.Span, pages int64) (*span.Span, error) {
	if sp.PageCount == pages {
		return sp, nil
	}
	remStart, remCount := sp.StartPage+pages, sp.PageCount-pages
	sp.PageCount = pages

	rem, err := h.newSpanLocked(remStart, remCount)
	if err != nil {
		// No record for the remainder could be allocated: sp is
		// restored to its full length and filed back as a free span,
		// and the caller gets the error instead of a span.
		sp.PageCount += remCount
		h.insertFreeLocked(sp)
		return nil, err
	}
	rem.State = span.OnPageHeap
	if err := h.pmap.Insert(remStart, remCount, rem); err != nil {
		return nil, err
	}
	h.insertFreeLocked(rem)
	return sp, nil
}

// growLocked reserves fresh pages from the platform adapter. The lock
// is dropped for the duration of the (potentially slow) reservation
// call and reacquired before the new span is registered, per §5's
// "mutexes are never held across a platform reservation call".
func (h *Heap) growLocked(pages int64) (*span.Span, error) {
	grow := pages
	if grow < h.minGrow {
		grow = h.minGrow
	}

	h.mu.Unlock()
	basePage, err := h.adapter.ReserveAligned(grow)
	h.mu.Lock()
	if err != nil {
		return nil, heaperrors.OutOfMemoryf("pageheap: reserving %d pages from the platform adapter: %v", grow, err)
	}
	debugf("pageheap: grew by %d pages at page %d", grow, basePage)

	if basePage+grow > h.highestPage {
		h.highestPage = basePage + grow
	}
	fresh, err := h.newSpanLocked(basePage, grow)
	if err != nil {
		return nil, err
	}
	fresh.State = span.OnPageHeap
	if err := h.pmap.Insert(basePage, grow, fresh); err != nil {
		return nil, err
	}
	return h.splitLocked(fresh, pages)
}

func (h *Heap) newSpanLocked(startPage, pages int64) (*span.Span, error) {
	ptr, err := h.arena.Alloc(unsafe.Sizeof(span.Span{}))
	if err != nil {
		return nil, err
	}
	sp := (*span.Span)(ptr)
	sp.StartPage, sp.PageCount = startPage, pages
	return sp, nil
}

func (h *Heap) insertFreeLocked(sp *span.Span) {
	sp.Decommitted = false
	if sp.PageCount <= h.maxBucket {
		span.PushFront(&h.buckets[sp.PageCount], sp, span.LocPageHeapBucket)
	} else {
		span.PushFront(&h.overflow, sp, span.LocPageHeapOverflow)
	}
	h.freeBytes += sp.PageCount * h.pageSize
}

// DecommitIdle hints the platform adapter to release every free
// page-heap span, however recently it was freed, per the "never
// decommit automatically, only on ReapIdle" policy (§9 open questions).
// Spans already hinted since they last became free are skipped.
func (h *Heap) DecommitIdle() {
	h.mu.Lock()
	defer h.mu.Unlock()

	decommit := func(sp *span.Span) {
		for ; sp != nil; sp = sp.Next {
			if sp.Decommitted {
				continue
			}
			h.adapter.Decommit(sp.StartPage, sp.PageCount)
			sp.Decommitted = true
		}
	}
	for _, head := range h.buckets {
		decommit(head)
	}
	decommit(h.overflow)
}

func (h *Heap) removeFreeLocked(sp *span.Span) {
	if sp.PageCount <= h.maxBucket {
		span.Remove(&h.buckets[sp.PageCount], sp)
	} else {
		span.Remove(&h.overflow, sp)
	}
	h.freeBytes -= sp.PageCount * h.pageSize
}
