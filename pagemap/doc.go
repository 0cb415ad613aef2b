// Package pagemap resolves a page number to the span.Span that owns
// it: the structure deallocate and span-coalescing both depend on to
// turn an arbitrary interior pointer into a size class (or "this isn't
// ours").
//
// It is a fixed-depth radix tree, generalizing the teacher's
// malloc/freebits.go multi-level bitmap recursion (there: track which
// blocks in a pool are free, walking a tree of bitmaps; here: track
// which span owns each page, walking a tree of pointers). Every node
// below the root is allocated on first touch from a metadata.Arena, so
// sparse address ranges cost nothing.
//
// Writers must already hold the page heap's lock; Insert/Remove are
// not safe to call concurrently with each other. Lookup is safe at any
// time, including concurrently with Insert/Remove, via acquire loads.
package pagemap
