// Package cache provides a small bounded cache for generated responses.
//
// Eviction is strictly by insertion order: when the cache is full, the entry
// that was stored first is evicted, regardless of how recently or often it
// was read. Get never promotes an entry. This keeps eviction deterministic
// under mixed read traffic.
package cache

import (
	"container/list"
	"sync"
)

// Cache is a bounded string-keyed cache, safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	cap     int
	order   *list.List
	entries map[string]*list.Element
}

type entry[V any] struct {
	key   string
	value V
}

// New returns a cache holding at most capacity entries. Capacities below 1
// are treated as 1.
func New[V any](capacity int) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[V]{
		cap:     capacity,
		order:   list.New(),
		entries: make(map[string]*list.Element, capacity),
	}
}

// Get returns the value stored under key. A hit does not affect the entry's
// eviction position.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		return el.Value.(entry[V]).value, true
	}
	var zero V
	return zero, false
}

// Set stores value under key. Overwriting an existing key updates the value
// in place and keeps the original insertion position. A new key that pushes
// the cache past capacity evicts the oldest insertion first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value = entry[V]{key: key, value: value}
		return
	}

	if c.order.Len() >= c.cap {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(entry[V]).key)
		}
	}
	c.entries[key] = c.order.PushBack(entry[V]{key: key, value: value})
}

// Len reports the number of stored entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Reset drops every entry.
func (c *Cache[V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element, c.cap)
}
