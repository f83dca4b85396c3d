package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU implements a thread-safe least-recently-used cache.
//
// A size of zero or less disables eviction by size; a ttl of zero or less
// disables expiry.
type LRU[K comparable, V any] struct {
	size      int
	ttl       time.Duration
	evictList *list.List
	items     map[K]*list.Element
	now       func() time.Time
	mu        sync.Mutex
}

// entry is stored in the cache
type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// Option configures an LRU
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates a new LRU cache with the given size and entry lifetime
func New[K comparable, V any](size int, ttl time.Duration, opts ...Option) *LRU[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &LRU[K, V]{
		size:      size,
		ttl:       ttl,
		evictList: list.New(),
		items:     make(map[K]*list.Element),
		now:       o.now,
	}
}

// Get retrieves a value from the cache
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	node, exists := c.items[key]
	if !exists {
		return zero, false
	}

	ent := node.Value.(*entry[K, V])
	if c.expired(ent) {
		c.removeElement(node)
		return zero, false
	}

	// Move to front (most recently used)
	c.evictList.MoveToFront(node)
	return ent.value, true
}

// Put adds or updates a value in the cache
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}

	if node, exists := c.items[key]; exists {
		c.evictList.MoveToFront(node)
		ent := node.Value.(*entry[K, V])
		ent.value = value
		ent.expires = expires
		return
	}

	ent := &entry[K, V]{key: key, value: value, expires: expires}
	c.items[key] = c.evictList.PushFront(ent)

	if c.size > 0 && c.evictList.Len() > c.size {
		c.removeOldest()
	}
}

// Remove deletes a key from the cache
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.items[key]; exists {
		c.removeElement(node)
	}
}

// Clear removes all items from the cache
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.evictList.Init()
}

// Size returns the number of items in the cache, expired ones included
// until they are touched or evicted.
func (c *LRU[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictList.Len()
}

func (c *LRU[K, V]) expired(ent *entry[K, V]) bool {
	return !ent.expires.IsZero() && !c.now().Before(ent.expires)
}

// removeOldest removes the least recently used item
func (c *LRU[K, V]) removeOldest() {
	if node := c.evictList.Back(); node != nil {
		c.removeElement(node)
	}
}

func (c *LRU[K, V]) removeElement(node *list.Element) {
	c.evictList.Remove(node)
	delete(c.items, node.Value.(*entry[K, V]).key)
}
