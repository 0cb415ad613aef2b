// Package metadata supplies the bump-and-free arena that backs every
// allocator-internal record: span.Span structs and page map radix-tree
// nodes. None of it is ever carved
// out of the Go heap, so the allocator's own metadata never recurses
// into a user-visible allocation and is invisible to the garbage
// collector, mirroring the teacher's malloc.Arena bump/pool-per-size
// discipline (there backed by C.malloc, here by platform.Adapter).
package metadata
