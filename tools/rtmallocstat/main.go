package main

import "flag"
import "fmt"
import "math/rand"
import "time"

import "github.com/n1ght-hunter/rtmalloc/central"
import "github.com/n1ght-hunter/rtmalloc/config"
import "github.com/n1ght-hunter/rtmalloc/heap"
import log "github.com/bnclabs/golog"
import "github.com/n1ght-hunter/rtmalloc/pageheap"

var options struct {
	n       int
	minsize int
	maxsize int
	verbose bool
}

func argParse() {
	flag.IntVar(&options.n, "n", 100000,
		"number of alloc/free cycles to drive through the heap")
	flag.IntVar(&options.minsize, "minsize", 8,
		"minimum request size")
	flag.IntVar(&options.maxsize, "maxsize", 64*1024,
		"maximum request size")
	flag.BoolVar(&options.verbose, "verbose", false,
		"enable heap/pageheap/central debug logging")
	flag.Parse()
}

func main() {
	argParse()
	if options.verbose {
		heap.LogComponents("all")
		central.LogComponents("all")
		pageheap.LogComponents("all")
		log.SetLogger(nil, map[string]interface{}{"log.level": "debug", "log.file": ""})
	}

	cfg, err := config.Validate(config.Defaultsettings())
	if err != nil {
		fmt.Println("configuration rejected:", err)
		return
	}

	h, err := heap.New(cfg)
	if err != nil {
		fmt.Println("heap construction failed:", err)
		return
	}
	defer h.Close()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	drive(h, r)

	h.ReapIdle(0)
	tellstats(h)
}

func drive(h *heap.Heap, r *rand.Rand) {
	span := options.maxsize - options.minsize
	if span <= 0 {
		span = 1
	}
	for i := 0; i < options.n; i++ {
		size := uintptr(options.minsize + r.Intn(span))
		ptr, err := h.Allocate(size, 8)
		if err != nil {
			continue
		}
		h.Deallocate(ptr, size, 8)
	}
}

func tellstats(h *heap.Heap) {
	stats := h.Stats()
	fmt.Println(stats.String())
	for i, size := range stats.ClassSizes {
		fmt.Printf("class size %8v, util %6.2f%%, spans %v\n",
			size, stats.ClassUtilPct[i], stats.SpansPerClass[i+1])
	}
}
