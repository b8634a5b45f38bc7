package cache

import (
	"container/list"
	"sync"
	"time"
)

// Clock returns the current time. Injected so staleness is testable.
type Clock func() time.Time

type ttlEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTL is a thread-safe, capacity-bounded LRU cache whose entries go stale after a fixed duration.
// Expiry is computed lazily on read; there is no background janitor.
type TTL[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	now      Clock
	items    map[K]*list.Element
	eviction *list.List
	mu       sync.Mutex
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewTTL creates a cache holding at most capacity entries, each fresh for ttl.
// Panics if capacity or ttl is not positive.
func NewTTL[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) *TTL[K, V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	if ttl <= 0 {
		panic("cache: ttl must be positive")
	}

	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &TTL[K, V]{
		capacity: capacity,
		ttl:      ttl,
		now:      o.clock,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
	}
}

// Get returns the cached value and true if it exists and is still fresh.
// A stale entry is removed and reported as a miss.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*ttlEntry[K, V])
	if !c.now().Before(entry.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.eviction.MoveToFront(elem)
	return entry.value, true
}

// Put stores the value with a fresh expiry, evicting the least recently used entry at capacity.
func (c *TTL[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(key, value)
}

// PutIf stores the value only if cond reports true. cond runs under the cache lock, so
// an Invalidate that follows whatever makes cond false cannot be overtaken by the insert.
func (c *TTL[K, V]) PutIf(key K, value V, cond func() bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !cond() {
		return false
	}
	c.put(key, value)
	return true
}

// Must be called with lock held.
func (c *TTL[K, V]) put(key K, value V) {
	expiresAt := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*ttlEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.eviction.MoveToFront(elem)
		return
	}

	elem := c.eviction.PushFront(&ttlEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.eviction.Len() > c.capacity {
		if oldest := c.eviction.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Invalidate removes the entry for key, if any.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Len returns the number of entries, including stale ones not yet read.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Purge removes all entries.
func (c *TTL[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.eviction.Init()
}

// TTL returns the staleness window.
func (c *TTL[K, V]) TTL() time.Duration {
	return c.ttl
}

// Must be called with lock held.
func (c *TTL[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*ttlEntry[K, V])
	delete(c.items, entry.key)
}
