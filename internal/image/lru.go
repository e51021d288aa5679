package image

import (
	"container/list"
	"sync"

	"github.com/coral-mesh/irscan/internal/ir"
)

// liftCache is a fixed-capacity LRU cache of lifted instruction lists keyed
// by function start.
type liftCache struct {
	capacity int
	mu       sync.Mutex
	items    map[uint64]*list.Element
	lruList  *list.List
}

type liftEntry struct {
	start  uint64
	instrs []*ir.Node
}

func newLiftCache(capacity int) *liftCache {
	if capacity < 1 {
		capacity = 1
	}
	return &liftCache{
		capacity: capacity,
		items:    make(map[uint64]*list.Element),
		lruList:  list.New(),
	}
}

// Get returns the cached instructions and marks them as recently used.
func (c *liftCache) Get(start uint64) ([]*ir.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[start]; ok {
		c.lruList.MoveToFront(elem)
		return elem.Value.(*liftEntry).instrs, true
	}
	return nil, false
}

// Put adds or replaces an entry, evicting the oldest one when full.
func (c *liftCache) Put(start uint64, instrs []*ir.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[start]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value.(*liftEntry).instrs = instrs
		return
	}

	elem := c.lruList.PushFront(&liftEntry{start: start, instrs: instrs})
	c.items[start] = elem

	if c.lruList.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *liftCache) evictOldest() {
	elem := c.lruList.Back()
	if elem != nil {
		c.lruList.Remove(elem)
		delete(c.items, elem.Value.(*liftEntry).start)
	}
}

// Len returns the number of cached functions.
func (c *liftCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// Reset drops every entry.
func (c *liftCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[uint64]*list.Element)
	c.lruList.Init()
}
