// Package lib provide useful functions and features that are not
// particularly tied up with any storage algorithm. They are meant
// to be small, self-contained and shall not depend on anything
// other than the standard library.
//
// Trimmed down from the teacher's lib package to the pieces the
// allocator actually exercises: AverageInt64 and HistogramInt64 back
// central and heap telemetry, Bit32 backs the size-class table's
// alignment check, and Uuid stamps a Heap's instance id. Settings and
// Config were dropped: as retrieved, both call an undefined panicerr
// helper and would not compile on their own; config.Settings in this
// module is an alias of gosettings.Settings instead. Util's gen-server
// and JSON helpers had no allocator concern to serve.
package lib
