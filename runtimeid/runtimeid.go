// Package runtimeid names the identity a PerGoroutine frontend is keyed
// by. It exists as its own package, rather than being inlined into
// frontend, because SPEC_FULL.md's frontend-identity discussion refers to
// it by name and more than one caller may eventually need "which
// goroutine is this" without depending on frontend itself.
package runtimeid

import "github.com/n1ght-hunter/rtmalloc/platform"

// Current returns a token that uniquely and stably identifies the
// calling goroutine for as long as it keeps running.
//
// Go gives user code no thread-local storage and no goroutine-exit
// notification, so there is no way to install a token once and retrieve
// it cheaply on a later, unrelated call the way platform.PinP does for
// the PerP frontend: every call here pays for a runtime.Stack parse of
// the calling goroutine's own header (see platform.GoroutineID). An
// earlier revision of frontend.Manager tried to paper over that cost
// with a per-P hint cache — the last *Cache resolved while running on a
// given P, reused on the next call without resolving an identity at
// all. That is unsound: two different goroutines that happen to run on
// the same P in sequence (trivially true at GOMAXPROCS=1) would collide
// on the same hint slot and share a frontend, which breaks the "private
// to a goroutine" guarantee PerGoroutine mode exists to provide. Paying
// the resolution cost on every call is the price of that guarantee.
func Current() uint64 {
	return platform.GoroutineID()
}
