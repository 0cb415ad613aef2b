package span

import "unsafe"

// State is the lifecycle state of a Span.
type State int8

const (
	// OnPageHeap: the span's pages are free, sitting in a page-heap
	// bucket, eligible for coalescing with free neighbours.
	OnPageHeap State = iota
	// InUseSmall: the span is subdivided into SizeClass-sized objects,
	// registered with a central.List.
	InUseSmall
	// InUseLarge: the span serves a single large allocation directly.
	InUseLarge
)

// Location identifies which intrusive list currently owns a span, so
// that list's owner can be found without a linear scan.
type Location int8

const (
	LocNone Location = iota
	LocPageHeapBucket
	LocPageHeapOverflow
	LocCentral
)

// Span is a contiguous run of OS pages owned as a unit. See §3 of the
// spec for the full invariant list; this type only carries data, all
// invariant enforcement lives in the owning package (pageheap, central).
type Span struct {
	StartPage int64
	PageCount int64
	State     State

	// Meaningful only when State == InUseSmall.
	SizeClass      int
	ObjectSize     int64
	ObjectsPerSpan int64
	AllocatedCount int64
	LocalFree      unsafe.Pointer // head of the span-local free list

	// Intrusive doubly-linked list membership. Exactly one list owns a
	// span at any time; Location says which, for assertions and O(1)
	// removal without knowing the owner up front.
	Prev, Next *Span
	Location   Location

	// Decommitted tracks whether ReapIdle has already issued a decommit
	// hint for this span's pages since it last became free. Reset to
	// false whenever the span (re)joins a page-heap free bucket.
	Decommitted bool
}

// Base returns the span's starting address given the platform's page
// size.
func (s *Span) Base(pageSize int64) uintptr {
	return uintptr(s.StartPage * pageSize)
}

// Bytes returns the span's extent in bytes.
func (s *Span) Bytes(pageSize int64) int64 {
	return s.PageCount * pageSize
}

func (s *Span) IsFull() bool {
	return s.AllocatedCount >= s.ObjectsPerSpan
}

func (s *Span) IsEmpty() bool {
	return s.AllocatedCount == 0
}

func (s *Span) IsNonEmpty() bool {
	return s.AllocatedCount < s.ObjectsPerSpan && s.LocalFree != nil
}

// ThreadFreeList initializes LocalFree by walking the span's address
// range and linking every object's first word to the next one down,
// the intrusive free list described in §9 of the spec.
func (s *Span) ThreadFreeList(pageSize int64) {
	base := s.Base(pageSize)
	n := s.ObjectsPerSpan
	size := s.ObjectSize
	var head unsafe.Pointer
	for i := n - 1; i >= 0; i-- {
		obj := unsafe.Pointer(base + uintptr(i*size))
		*(*unsafe.Pointer)(obj) = head
		head = obj
	}
	s.LocalFree = head
	s.AllocatedCount = 0
}

// PopFree removes and returns the head of the span-local free list,
// bumping AllocatedCount. Caller must check LocalFree != nil first.
func (s *Span) PopFree() unsafe.Pointer {
	obj := s.LocalFree
	s.LocalFree = *(*unsafe.Pointer)(obj)
	s.AllocatedCount++
	return obj
}

// PushFree links obj onto the head of the span-local free list and
// decrements AllocatedCount. obj must belong to this span.
func (s *Span) PushFree(obj unsafe.Pointer) {
	*(*unsafe.Pointer)(obj) = s.LocalFree
	s.LocalFree = obj
	s.AllocatedCount--
}

// PushFront links s onto the head of the intrusive list rooted at
// *head, tagging its Location.
func PushFront(head **Span, s *Span, loc Location) {
	s.Prev, s.Next = nil, *head
	if *head != nil {
		(*head).Prev = s
	}
	*head = s
	s.Location = loc
}

// Remove unlinks s from whichever intrusive list rooted at *head
// currently contains it. O(1): no scan required.
func Remove(head **Span, s *Span) {
	if s.Prev != nil {
		s.Prev.Next = s.Next
	} else {
		*head = s.Next
	}
	if s.Next != nil {
		s.Next.Prev = s.Prev
	}
	s.Prev, s.Next = nil, nil
	s.Location = LocNone
}
