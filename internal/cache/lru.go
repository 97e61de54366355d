package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache bounds entries by count and, optionally, by age. Expired entries
// are dropped lazily on Get and in bulk by CleanExpired.
type LRUCache[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	index    map[string]*list.Element
	order    *list.List // front is most recently used
	now      func() time.Time
	stats    Stats
}

// Stats counts cache outcomes since creation.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
}

type entry[T any] struct {
	key     string
	value   T
	expires time.Time
}

// NewLRUCache creates a cache holding at most capacity entries (minimum 1).
// A non-positive ttl disables expiry.
func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		capacity: max(capacity, 1),
		ttl:      ttl,
		index:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *LRUCache[T]) stale(e *entry[T], now time.Time) bool {
	return c.ttl > 0 && now.After(e.expires)
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.index[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := el.Value.(*entry[T])
	if c.stale(e, c.now()) {
		c.drop(el)
		c.stats.Expired++
		c.stats.Misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Set inserts or refreshes key and evicts the least recently used entry
// when over capacity.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)

	for c.order.Len() > c.capacity {
		c.drop(c.order.Back())
		c.stats.Evictions++
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.drop(el)
	}
}

// Clear removes every entry. Stats are kept.
func (c *LRUCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.index)
	c.order.Init()
}

func (c *LRUCache[T]) drop(el *list.Element) {
	delete(c.index, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}

// CleanExpired removes all expired entries and returns how many it removed.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if c.stale(el.Value.(*entry[T]), now) {
			c.drop(el)
			removed++
		}
		el = prev
	}
	c.stats.Expired += int64(removed)
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Stats returns a copy of the counters.
func (c *LRUCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
