package central

import (
	"sync/atomic"

	log "github.com/bnclabs/golog"
)

var logok = int64(0)

// LogComponents enables logging for central free lists. Disabled by
// default; pass "central" or "all", mirroring llrb.LogComponents.
func LogComponents(components ...string) {
	for _, comp := range components {
		switch comp {
		case "central", "all":
			atomic.StoreInt64(&logok, 1)
		}
	}
}

func debugf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Debugf(format, v...)
	}
}
