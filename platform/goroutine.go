package platform

import (
	"bytes"
	"runtime"
	"strconv"
)

// GoroutineID parses the calling goroutine's id out of a truncated
// runtime.Stack dump. Go deliberately exposes no cheaper way to ask
// "who am I" from inside user code; this is the same hack a handful of
// debugging libraries in the wider ecosystem rely on. runtimeid.Current
// calls this on every PerGoroutine frontend lookup, one per
// Allocate/Deallocate — there is no install-once shortcut, since Go
// gives goroutines no exit hook and no cheap way to re-identify one on a
// later, unrelated call.
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic("platform: could not parse goroutine id: " + err.Error())
	}
	return id
}
