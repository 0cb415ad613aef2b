package pageheap

import (
	"sync/atomic"

	log "github.com/bnclabs/golog"
)

var logok = int64(0)

// LogComponents enables logging for the page heap. Disabled by default;
// pass "pageheap" or "all", mirroring llrb.LogComponents.
func LogComponents(components ...string) {
	for _, comp := range components {
		switch comp {
		case "pageheap", "all":
			atomic.StoreInt64(&logok, 1)
		}
	}
}

func debugf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Debugf(format, v...)
	}
}

func warnf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Warnf(format, v...)
	}
}
