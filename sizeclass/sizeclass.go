package sizeclass

import (
	"fmt"
	"sort"

	"github.com/n1ght-hunter/rtmalloc/lib"
)

// MaxClasses bounds the number of classes a Table may hold, including
// the sentinel class 0.
const MaxClasses = 64

// MaxObjectSize is the largest object size a class is allowed to serve;
// requests larger than this always take the large path.
const MaxObjectSize = 256 * 1024

// Entry describes one size class as supplied by the configuration
// front-end. Pages and Batch are optional: zero means "compute it".
type Entry struct {
	Size  int64
	Pages int64
	Batch int64
}

type class struct {
	size           int64
	pages          int64
	objectsPerSpan int64
	batch          int64
}

// Table is the immutable size-class table. The zero class is always the
// "too big" sentinel and carries no object size.
type Table struct {
	pageSize int64
	classes  []class // classes[0] is the sentinel
}

// New builds a Table from entries sorted ascending by Size. pageSize must
// be a power of two. Returns a plain error describing the first
// malformed entry; config.Validate wraps it as ConfigurationInvalid.
func New(entries []Entry, pageSize int64) (*Table, error) {
	if pageSize <= 0 || (pageSize&(pageSize-1)) != 0 {
		return nil, fmt.Errorf("sizeclass: page size %d is not a power of two", pageSize)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("sizeclass: no size classes supplied")
	}
	if len(entries)+1 > MaxClasses {
		return nil, fmt.Errorf("sizeclass: %d classes exceeds max %d", len(entries), MaxClasses-1)
	}

	t := &Table{pageSize: pageSize, classes: make([]class, 1, len(entries)+1)}
	prev := int64(0)
	for i, e := range entries {
		if e.Size%8 != 0 {
			return nil, fmt.Errorf("sizeclass: entry %d size %d is not 8-byte aligned", i, e.Size)
		}
		if e.Size <= prev {
			return nil, fmt.Errorf("sizeclass: entry %d size %d is not strictly increasing", i, e.Size)
		}
		if e.Size > MaxObjectSize {
			return nil, fmt.Errorf("sizeclass: entry %d size %d exceeds max %d", i, e.Size, MaxObjectSize)
		}
		prev = e.Size

		pages := e.Pages
		if pages <= 0 {
			pages = choosePages(e.Size, pageSize)
		}
		objects := (pages * pageSize) / e.Size
		if objects < 1 {
			return nil, fmt.Errorf("sizeclass: entry %d pages %d too small for size %d", i, pages, e.Size)
		}

		batch := e.Batch
		if batch <= 0 {
			batch = objects / 2
			if batch > 32 {
				batch = 32
			}
			if batch < 2 {
				batch = 2
			}
			if batch > objects {
				batch = objects
			}
		}

		t.classes = append(t.classes, class{
			size: e.Size, pages: pages, objectsPerSpan: objects, batch: batch,
		})
	}
	return t, nil
}

// choosePages picks the smallest page count up to 32 with no leftover
// bytes, falling back to the smallest page count (of any size) that
// holds at least one object.
func choosePages(size, pageSize int64) int64 {
	for pages := int64(1); pages <= 32; pages++ {
		if (pages*pageSize)%size == 0 {
			return pages
		}
	}
	// bounded waste: smallest page count that still yields >= 1 object.
	for pages := int64(1); ; pages++ {
		if (pages * pageSize) >= size {
			return pages
		}
	}
}

// ClassOf returns the smallest class whose object size is >=
// max(size, align), or the sentinel class 0 if none fits (too big, or
// the alignment exceeds any class's natural 8-byte guarantee beyond what
// the object size itself already provides). effSize is the class's
// object size (the number of bytes actually reserved for the caller).
func (t *Table) ClassOf(size, align int64) (c int, effSize int64) {
	if align > 0 {
		if align > (1 << 32) || lib.Bit32(align).Ones() != 1 {
			return 0, size
		}
	}
	want := size
	if align > want {
		want = align
	}
	if want <= 0 {
		want = 8
	}
	if want > t.classes[len(t.classes)-1].size {
		return 0, size
	}
	// classes[1:] are sorted ascending; classes[0] is the sentinel.
	lo := 1
	n := sort.Search(len(t.classes)-lo, func(i int) bool {
		return t.classes[lo+i].size >= want
	})
	idx := lo + n
	if idx >= len(t.classes) {
		return 0, size
	}
	// Alignment beyond 8 bytes must divide the class's object size evenly
	// for every object in the span to land at the requested alignment.
	if align > 8 && t.classes[idx].size%align != 0 {
		return 0, size
	}
	return idx, t.classes[idx].size
}

// NumClasses returns the number of non-sentinel classes.
func (t *Table) NumClasses() int { return len(t.classes) - 1 }

// MaxSize returns the largest object size served directly.
func (t *Table) MaxSize() int64 { return t.classes[len(t.classes)-1].size }

func (t *Table) Size(c int) int64           { return t.classes[c].size }
func (t *Table) Pages(c int) int64          { return t.classes[c].pages }
func (t *Table) ObjectsPerSpan(c int) int64 { return t.classes[c].objectsPerSpan }
func (t *Table) Batch(c int) int64          { return t.classes[c].batch }
func (t *Table) PageSize() int64            { return t.pageSize }
