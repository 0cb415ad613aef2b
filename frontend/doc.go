// Package frontend is the allocator's hot path: a private, per-identity
// view of each size class's free list, refilled from and drained to the
// transfer cache / central free list below it.
//
// Go gives user code no thread-local storage and no portable way to
// read the current logical CPU, and goroutines migrate between OS
// threads and between Ps at arbitrary safepoints — so "per-thread" and
// "per-cpu" as specified literally cannot be built. This package keeps
// the two-tier contract (private fast path, process-wide slow path)
// but relocates frontend identity to what Go actually offers stably
// inside a single Allocate/Deallocate call: PerGoroutine keys a
// sync.Map by a parsed goroutine id (runtimeid.Current, resolved fresh
// on every call since Go offers no cheaper way to amortize it), and PerP
// indexes a fixed-size array by a pinned P id (platform.PinP), the
// same exported-runtime-symbol technique sync.Pool itself relies on.
package frontend
