package heap

import (
	"sync/atomic"

	log "github.com/bnclabs/golog"
)

var logok = int64(0)

// LogComponents enables logging for the heap coordinator. Disabled by
// default; pass "heap" or "all", mirroring llrb.LogComponents.
func LogComponents(components ...string) {
	for _, comp := range components {
		switch comp {
		case "heap", "all":
			atomic.StoreInt64(&logok, 1)
		}
	}
}

func warnf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Warnf(format, v...)
	}
}
