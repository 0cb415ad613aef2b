// Package span defines the Span record, the unit of backend bookkeeping
// shared by the page heap, the central free lists, and the page map.
//
// Span records never live on the Go heap: every Span is carved out of
// metadata.Arena, so the garbage collector never scans or moves one
// while a page map reader holds an unsafe.Pointer to it.
package span
