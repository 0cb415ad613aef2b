// Package sizeclass supplies the read-only table that rounds an
// allocation request to one of a small fixed set of object sizes.
//
//   - Class 0 is the sentinel "too big" class; callers of ClassOf that
//     receive it must take the large (direct page-span) path.
//   - Every other class has an object size that is a multiple of 8 bytes
//     and strictly larger than the class before it.
//   - The table is built once, from a sorted list of entries, and never
//     mutated again: every method is safe for concurrent read access
//     without any locking, the same guarantee malloc.Blocksizes gives
//     its caller once Arena construction has returned.
package sizeclass
