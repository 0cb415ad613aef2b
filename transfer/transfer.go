package transfer

import (
	"sync"
	"unsafe"
)

// Cache is a bounded stack of pre-linked object batches for one size
// class. Each slot holds the head of a chain of exactly BatchSize
// objects linked via their first word; the cache never looks inside a
// batch, it only moves the head pointer.
type Cache struct {
	mu        sync.Mutex
	batchSize int64
	maxSlots  int
	slots     []unsafe.Pointer // stack of batch heads, len(slots) <= maxSlots
}

// New builds a transfer cache holding up to maxSlots batches of
// batchSize objects each.
func New(batchSize int64, maxSlots int) *Cache {
	return &Cache{
		batchSize: batchSize,
		maxSlots:  maxSlots,
		slots:     make([]unsafe.Pointer, 0, maxSlots),
	}
}

func (c *Cache) BatchSize() int64 { return c.batchSize }

// TryPopBatch pops one pre-linked batch head, or reports a miss.
func (c *Cache) TryPopBatch() (unsafe.Pointer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.slots)
	if n == 0 {
		return nil, false
	}
	head := c.slots[n-1]
	c.slots = c.slots[:n-1]
	return head, true
}

// TryPushBatch pushes one pre-linked batch head. Reports false if the
// cache is already at capacity; the caller must then release the batch
// to the central free list instead.
func (c *Cache) TryPushBatch(head unsafe.Pointer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.slots) >= c.maxSlots {
		return false
	}
	c.slots = append(c.slots, head)
	return true
}

// Len reports how many batches are currently cached, for stats.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
