package heap

import (
	"fmt"
	"io"
	"sync"
	"time"
	"unsafe"

	"github.com/n1ght-hunter/rtmalloc/central"
	"github.com/n1ght-hunter/rtmalloc/config"
	"github.com/n1ght-hunter/rtmalloc/frontend"
	"github.com/n1ght-hunter/rtmalloc/heaperrors"
	"github.com/n1ght-hunter/rtmalloc/lib"
	"github.com/n1ght-hunter/rtmalloc/metadata"
	"github.com/n1ght-hunter/rtmalloc/pageheap"
	"github.com/n1ght-hunter/rtmalloc/pagemap"
	"github.com/n1ght-hunter/rtmalloc/platform"
	"github.com/n1ght-hunter/rtmalloc/span"
	"github.com/n1ght-hunter/rtmalloc/transfer"
)

// defaultMinGrowPages is how many pages the page heap reserves from the
// platform adapter on a fresh growth, independent of any single
// request's size (a request larger than this simply grows by its own
// size instead).
const defaultMinGrowPages = int64(16)

// Heap is the allocator's coordinator: the exported type wiring every
// layer of the pipeline together and exposing Allocate/Deallocate/
// Reallocate/Stats/ReapIdle/Close.
type Heap struct {
	cfg     config.Config
	id      lib.Uuid
	adapter platform.Adapter
	arena   *metadata.Arena
	pmap    *pagemap.Map
	pheap   *pageheap.Heap

	centralLists   []*central.List   // index 1..NumClasses
	transferCaches []*transfer.Cache // index 1..NumClasses
	frontend       *frontend.Manager

	histMu    sync.Mutex
	h_reqsize *lib.HistogramInt64 // request-size distribution, grounded on llrb.h_upsertdepth's usage
}

// New builds a Heap from validated configuration, using a production
// unix mmap adapter. See NewWithAdapter to inject a different adapter
// (tests use platform.FakeAdapter).
func New(cfg config.Config) (*Heap, error) {
	return NewWithAdapter(cfg, platform.NewMmap(cfg.PageSize))
}

// NewWithAdapter builds a Heap against a caller-supplied platform
// adapter, the seam the distilled spec calls out in §1 ("OS primitives
// ... external collaborators").
func NewWithAdapter(cfg config.Config, adapter platform.Adapter) (*Heap, error) {
	arena := metadata.New(adapter)
	pmap, err := pagemap.New(arena, adapter.PageSize())
	if err != nil {
		return nil, fmt.Errorf("heap: %w", err)
	}
	pheap := pageheap.New(adapter, pmap, arena, cfg.MaxPagesBucket, defaultMinGrowPages)

	n := cfg.Table.NumClasses()
	centralLists := make([]*central.List, n+1)
	transferCaches := make([]*transfer.Cache, n+1)
	for c := 1; c <= n; c++ {
		centralLists[c] = central.New(c, cfg.Table.Size(c), cfg.Table.Pages(c), cfg.Table.ObjectsPerSpan(c), pheap, pmap)
		transferCaches[c] = transfer.New(cfg.Table.Batch(c), int(cfg.MaxTransferSlots))
	}

	fm := frontend.New(cfg.Table, transferCaches, centralLists, cfg.ThreadCacheSizeMax, frontend.PerGoroutine)

	id, err := lib.Allocuuid(16)
	if err != nil {
		return nil, fmt.Errorf("heap: %w", err)
	}

	return &Heap{
		cfg:            cfg,
		id:             id,
		adapter:        adapter,
		arena:          arena,
		pmap:           pmap,
		pheap:          pheap,
		centralLists:   centralLists,
		transferCaches: transferCaches,
		frontend:       fm,
		h_reqsize:      lib.NewhistorgramInt64(8, cfg.Table.MaxSize(), 64),
	}, nil
}

// ID returns this heap instance's hex identifier, for correlating
// log lines across a process that runs more than one Heap.
func (h *Heap) ID() string {
	out := make([]byte, 2*len(h.id)+4)
	n := h.id.Format(out)
	return string(out[:n])
}

// Allocate returns size bytes aligned to align (a power of two),
// routing through the frontend for a configured size class or taking
// the large path directly through the page heap otherwise.
func (h *Heap) Allocate(size, align uintptr) (unsafe.Pointer, error) {
	h.histMu.Lock()
	h.h_reqsize.Add(int64(size))
	h.histMu.Unlock()

	class, _ := h.cfg.Table.ClassOf(int64(size), int64(align))
	if class == 0 {
		return h.allocateLarge(int64(size))
	}
	ptr, err := h.frontend.Allocate(class)
	if err != nil {
		return nil, fmt.Errorf("heap: %w", err)
	}
	return ptr, nil
}

func (h *Heap) allocateLarge(size int64) (unsafe.Pointer, error) {
	pages := platform.PagesFor(size, h.pheap.PageSize())
	sp, err := h.pheap.AllocSpan(pages)
	if err != nil {
		warnf("heap: large allocation of %d bytes failed: %v", size, err)
		return nil, fmt.Errorf("heap: %w", err)
	}
	sp.State = span.InUseLarge
	return unsafe.Pointer(sp.Base(h.pheap.PageSize())), nil
}

// Deallocate releases ptr, which must have been returned by Allocate (or
// be nil, a no-op). sizeHint/alignHint are accepted but unused: the page
// map resolves the owning span in O(1) regardless.
func (h *Heap) Deallocate(ptr unsafe.Pointer, sizeHint, alignHint uintptr) {
	if ptr == nil {
		return
	}
	sp := h.lookupOwning(ptr, "deallocate")
	switch sp.State {
	case span.InUseLarge:
		h.pheap.FreeSpan(sp)
	case span.InUseSmall:
		h.frontend.Deallocate(sp.SizeClass, ptr)
	default:
		heaperrors.Abortf("deallocate: pointer %p resolves to a span in state %d", ptr, sp.State)
	}
}

// Reallocate resizes the block at ptr to newSize bytes aligned to
// align, preserving min(old, new) bytes of content. A nil ptr behaves
// like Allocate.
func (h *Heap) Reallocate(ptr unsafe.Pointer, newSize, align uintptr) (unsafe.Pointer, error) {
	if ptr == nil {
		return h.Allocate(newSize, align)
	}

	sp := h.lookupOwning(ptr, "reallocate")
	var oldSize int64
	switch sp.State {
	case span.InUseSmall:
		oldSize = sp.ObjectSize
	case span.InUseLarge:
		oldSize = sp.Bytes(h.pheap.PageSize())
	default:
		heaperrors.Abortf("reallocate: pointer %p resolves to a span in state %d", ptr, sp.State)
	}

	newPtr, err := h.Allocate(newSize, align)
	if err != nil {
		return nil, err
	}
	copySize := oldSize
	if int64(newSize) < copySize {
		copySize = int64(newSize)
	}
	copyBytes(newPtr, ptr, uintptr(copySize))
	h.Deallocate(ptr, uintptr(oldSize), align)
	return newPtr, nil
}

// ReapIdle flushes untouched PerGoroutine frontends to their central
// free lists, returns every batch parked in the transfer caches to the
// central free lists, and issues decommit hints for free page-heap spans
// not yet hinted since they last became free. Intended to be called
// periodically by an embedder, the way bogn's compactor is externally
// driven.
func (h *Heap) ReapIdle(maxAge time.Duration) {
	h.frontend.ReapIdle(maxAge)
	for c := 1; c < len(h.transferCaches); c++ {
		n := int(h.cfg.Table.Batch(c))
		buf := make([]unsafe.Pointer, n)
		for head, ok := h.transferCaches[c].TryPopBatch(); ok; head, ok = h.transferCaches[c].TryPopBatch() {
			for i := 0; i < n; i++ {
				buf[i], head = head, *(*unsafe.Pointer)(head)
			}
			h.centralLists[c].ReleaseBatch(buf, n)
		}
	}
	h.pheap.DecommitIdle()
}

// Close releases the platform adapter's resources. Only meaningful for
// adapters that own OS-level state (the production unix mmap adapter);
// a no-op otherwise.
func (h *Heap) Close() error {
	if closer, ok := h.adapter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (h *Heap) lookupOwning(ptr unsafe.Pointer, op string) *span.Span {
	page := platform.PageOf(uintptr(ptr), h.pheap.PageSize())
	sp := h.pmap.Lookup(page)
	if sp == nil {
		heaperrors.Abortf("%s: pointer %p not owned by this allocator", op, ptr)
	}
	return sp
}

// copyBytes copies n bytes from src to dst, both of which may point
// outside the Go heap (platform-reserved memory never scanned by the
// garbage collector), mirroring lib.Memcpy's role for the teacher.
func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
