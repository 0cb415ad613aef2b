// Package pageheap is the backend of the allocator: it owns every page
// reserved from the platform adapter, splits and coalesces spans, and
// satisfies both small-class span requests (from central.List) and
// large direct allocations.
//
// All mutation goes through a single mutex, exactly the way
// llrb.LLRB's rw.Lock()/Unlock() pairing guards every tree mutation
// with one lock rather than a reader/writer split, because every
// page-heap operation here is a write.
package pageheap
