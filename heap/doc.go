// Package heap is the allocator's top-level coordinator: it wires a
// size-class table, platform adapter, page map, metadata arena, page
// heap, one central free list and transfer cache per size class, and a
// frontend manager into the three-tier pipeline the rest of this module
// implements, and exposes the public Allocate/Deallocate/Reallocate/
// Stats/ReapIdle/Close surface.
//
// Grounded on the teacher's top-level Arena/Mpooler split
// (malloc.Arena.Alloc routes to the right Mpooler) but restructured
// into the three-tier pipeline this allocator requires instead of the
// teacher's two-tier arena-of-pools.
package heap
