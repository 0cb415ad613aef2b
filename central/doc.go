// Package central holds, one instance per size class, the spans that
// are partially used: not full, so still able to hand out objects, and
// not completely free, so not yet worth returning to the page heap.
//
// Generalizes the teacher's malloc/pool_flist.go flistPools: there, one
// flistPools per block size manages poolflist blocks with an
// independent lock and a head-of-free-list reuse policy (toheadfree);
// here, one central.List per size class manages span.Span runs the
// same way, except a span's objects are threaded via an intrusive free
// list inside the span itself rather than an out-of-band []uint16.
package central
