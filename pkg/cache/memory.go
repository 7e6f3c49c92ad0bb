package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry holds a cached value with its expiration time and key.
type entry[V any] struct {
	expiresAt time.Time // zero value = never expires
	value     V
	key       string
	cost      int64
}

// Memory is the minimal local store: a map for O(1) lookups and a
// doubly-linked list for LRU ordering, with lazy expiry on access and an
// optional janitor goroutine sweeping expired entries.
//
// The most recently accessed items are at the front of the list; the least
// recently used are at the back.
type Memory[V any] struct {
	items    map[string]*list.Element
	eviction *list.List
	opts     *memoryOptions
	onEvict  func(key string, value V)
	done     chan struct{}
	size     int64
	mu       sync.Mutex
	closed   bool
}

// NewMemory creates a new in-memory local store.
//
// Example:
//
//	m := cache.NewMemory[string](
//	    cache.WithCleanupInterval(30 * time.Second),
//	    cache.WithMaxEntries(10000),
//	)
//	defer m.Close()
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory[V]{
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		opts:     o,
		done:     make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go m.janitor()
	}

	return m
}

// SetEvictCallback sets a callback function that is called when items
// are removed from the store: LRU eviction, expiry, deletion and flushing.
// The callback runs with the store locked and must not call back into it.
func (m *Memory[V]) SetEvictCallback(fn func(key string, value V)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// Get retrieves a value by key.
// Accessing a key marks it as recently used for LRU purposes.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key, time.Now())
	if !ok {
		var zero V
		return zero, false
	}

	m.eviction.MoveToFront(m.items[key])

	return e.value, true
}

// Set stores a value with the given TTL. A zero or negative TTL never expires.
func (m *Memory[V]) Set(key string, value V, ttl time.Duration, cost int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	expiresAt := expiry(time.Now(), ttl)

	// Update existing entry.
	if elem, ok := m.items[key]; ok {
		e := elem.Value.(*entry[V])
		m.size += cost - e.cost
		e.value = value
		e.expiresAt = expiresAt
		e.cost = cost
		m.eviction.MoveToFront(elem)
		return true
	}

	// Evict LRU entry if at capacity.
	if m.opts.maxEntries > 0 && len(m.items) >= m.opts.maxEntries {
		m.evictOldest()
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt, cost: cost}
	m.items[key] = m.eviction.PushFront(e)
	m.size += cost

	return true
}

// Delete removes a key and reports how many entries were removed.
// An expired entry counts as already gone.
func (m *Memory[V]) Delete(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return 0
	}

	live := !expired(elem.Value.(*entry[V]).expiresAt, time.Now())
	m.removeElement(elem)
	if !live {
		return 0
	}

	return 1
}

// Has checks whether a key exists and has not expired.
func (m *Memory[V]) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.lookup(key, time.Now())
	return ok
}

// Keys returns live keys from most to least recently used.
func (m *Memory[V]) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(m.items))
	for elem := m.eviction.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*entry[V])
		if expired(e.expiresAt, now) {
			m.removeElement(elem)
		} else {
			keys = append(keys, e.key)
		}
		elem = next
	}

	return keys
}

// Flush removes all entries.
func (m *Memory[V]) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.onEvict != nil {
		for _, elem := range m.items {
			e := elem.Value.(*entry[V])
			m.onEvict(e.key, e.value)
		}
	}

	m.items = make(map[string]*list.Element)
	m.eviction.Init()
	m.size = 0
}

// Len returns the number of stored entries.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Size returns the summed cost of stored entries.
func (m *Memory[V]) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Close stops the janitor goroutine and rejects further writes.
// Reads keep working on whatever is left. Close is idempotent.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)

	return nil
}

// lookup returns the live entry for key, dropping it if expired.
// Caller must hold the mutex.
func (m *Memory[V]) lookup(key string, now time.Time) (*entry[V], bool) {
	elem, ok := m.items[key]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*entry[V])
	if expired(e.expiresAt, now) {
		m.removeElement(elem)
		return nil, false
	}

	return e, true
}

// janitor periodically removes expired entries.
func (m *Memory[V]) janitor() {
	ticker := time.NewTicker(m.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.deleteExpired()
		}
	}
}

// deleteExpired removes all expired entries from back to front.
func (m *Memory[V]) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for elem := m.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if expired(elem.Value.(*entry[V]).expiresAt, now) {
			m.removeElement(elem)
		}
		elem = prev
	}
}

// evictOldest removes the least recently used entry.
// Caller must hold the mutex.
func (m *Memory[V]) evictOldest() {
	if elem := m.eviction.Back(); elem != nil {
		m.removeElement(elem)
	}
}

// removeElement removes a specific element and triggers the eviction callback.
// Caller must hold the mutex.
func (m *Memory[V]) removeElement(elem *list.Element) {
	m.eviction.Remove(elem)
	e := elem.Value.(*entry[V])
	delete(m.items, e.key)
	m.size -= e.cost

	if m.onEvict != nil {
		m.onEvict(e.key, e.value)
	}
}

var _ Local[any] = (*Memory[any])(nil)
