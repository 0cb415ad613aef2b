package heaperrors

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned when the platform adapter cannot satisfy a
// reservation, or internal metadata could not be allocated. The
// allocator remains usable after returning it.
var ErrOutOfMemory = errors.New("heap.outofmemory")

// ErrConfigurationInvalid is returned from config.Validate; the
// allocator refuses to come up. Use errors.Is against this sentinel;
// the wrapped detail names the offending key.
var ErrConfigurationInvalid = errors.New("heap.configurationinvalid")

// errInvalidFree is never returned to a caller. deallocate on a pointer
// the page map cannot resolve, or whose owning span is not in an
// in-use state, is a precondition violation: the caller corrupted its
// own bookkeeping, and the only safe response is to abort.
var errInvalidFree = errors.New("heap.invalidfree")

// Abortf reports a detected precondition violation — double-free,
// corrupt free list, a span in the wrong state — and panics. Mirrors
// malloc's panic(fmt.Errorf(...)) convention for programmer-error
// conditions: these are never recoverable, so they are never wrapped in
// a returned error.
func Abortf(format string, args ...interface{}) {
	panic(fmt.Errorf("%w: %s", errInvalidFree, fmt.Sprintf(format, args...)))
}

// Invalidf wraps detail around ErrConfigurationInvalid for a returned
// error, the way config.Validate reports the first violated
// precondition.
func Invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfigurationInvalid, fmt.Sprintf(format, args...))
}

// OutOfMemoryf wraps detail around ErrOutOfMemory for a returned error.
// Every translation point that turns a platform reservation failure (or
// a metadata-arena growth failure) into a caller-visible error goes
// through this, so errors.Is(err, ErrOutOfMemory) succeeds no matter
// which layer first hit the failure.
func OutOfMemoryf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrOutOfMemory, fmt.Sprintf(format, args...))
}
