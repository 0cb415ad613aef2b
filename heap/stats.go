package heap

import "github.com/dustin/go-humanize"

// Stats is a point-in-time snapshot of the allocator's internal state,
// the hook point §1 reserves for an external telemetry aggregator: this
// package never persists or aggregates history, it only reports.
type Stats struct {
	PageHeapFreeBytes int64

	// ClassSizes and ClassUtilPct share an index, the same shape as the
	// teacher's Mpooler.Utilization() ([]int, []float64).
	ClassSizes    []int
	ClassUtilPct  []float64
	SpansPerClass []int64
	AvgFetchBatch []int64
	FetchBatchSD  []float64

	// RequestHistogram is a JSON-ish distribution of Allocate sizes,
	// rendered by lib.HistogramInt64.Logstring the way llrb renders its
	// depth/height histograms for logging.
	RequestHistogram string
}

// Stats returns a snapshot of the page heap's free bytes and per-class
// span counts and utilization.
func (h *Heap) Stats() Stats {
	n := h.cfg.Table.NumClasses()
	sizes := make([]int, 0, n)
	util := make([]float64, 0, n)
	spans := make([]int64, n+1)
	avgFetch := make([]int64, n+1)
	fetchSD := make([]float64, n+1)

	for c := 1; c <= n; c++ {
		list := h.centralLists[c]
		spanCount := list.SpanCount()
		allocated := list.Allocated()
		objectsPerSpan := h.cfg.Table.ObjectsPerSpan(c)

		spans[c] = spanCount
		avgFetch[c], fetchSD[c] = list.FetchSizeStats()
		sizes = append(sizes, int(h.cfg.Table.Size(c)))

		// spanCount only tracks not-full spans; capacity for utilization
		// purposes is approximated from allocated objects themselves, so
		// a class with zero live objects reports 0% rather than NaN.
		capacity := allocated
		if spanCount > 0 {
			capacity += spanCount * objectsPerSpan
		}
		if capacity == 0 {
			util = append(util, 0)
		} else {
			util = append(util, (float64(allocated)/float64(capacity))*100)
		}
	}

	h.histMu.Lock()
	reqHist := h.h_reqsize.Logstring()
	h.histMu.Unlock()

	return Stats{
		PageHeapFreeBytes: h.pheap.FreeBytes(),
		ClassSizes:        sizes,
		ClassUtilPct:      util,
		SpansPerClass:     spans,
		AvgFetchBatch:     avgFetch,
		FetchBatchSD:      fetchSD,
		RequestHistogram:  reqHist,
	}
}

// String renders a human-readable summary, the way llrb/stats.go and
// bogn/config.go use go-humanize for byte counts.
func (s Stats) String() string {
	return "pageheap free: " + humanize.Bytes(uint64(s.PageHeapFreeBytes))
}
