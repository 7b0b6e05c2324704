package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// entry is one cached understanding with its insertion time
type entry struct {
	Key        string                   `json:"key"`
	Value      *types.PageUnderstanding `json:"value"`
	InsertedAt time.Time                `json:"inserted_at"`
}

// lru is a strict least-recently-used map guarded by one mutex
type lru struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

func newLRU(capacity int) *lru {
	return &lru{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// get returns the entry and marks it most recently used
func (c *lru) get(key string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry), true
}

// put inserts or replaces an entry and returns the keys evicted to make room
func (c *lru) put(e *entry) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[e.Key]; ok {
		el.Value = e
		c.ll.MoveToFront(el)
		return nil
	}

	c.items[e.Key] = c.ll.PushFront(e)

	var evicted []string
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		key := oldest.Value.(*entry).Key
		delete(c.items, key)
		evicted = append(evicted, key)
	}
	return evicted
}

func (c *lru) remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.ll.Remove(el)
	delete(c.items, key)
	return true
}

// removeEntry drops key only while it still maps to e, so a fresh entry
// stored after e was read survives
func (c *lru) removeEntry(e *entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[e.Key]
	if !ok || el.Value.(*entry) != e {
		return false
	}
	c.ll.Remove(el)
	delete(c.items, e.Key)
	return true
}

// removeIf drops every entry whose key matches and returns how many went
func (c *lru) removeIf(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, el := range c.items {
		if match(key) {
			c.ll.Remove(el)
			delete(c.items, key)
			n++
		}
	}
	return n
}

func (c *lru) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// keys returns keys from most to least recently used
func (c *lru) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).Key)
	}
	return out
}
