package cache

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	unboundedRistrettoEntries = 1 << 20
	minRistrettoCounters      = 1000
)

type ristrettoEntry[V any] struct {
	expiresAt time.Time
	value     V
	key       string
	cost      int64
}

// Ristretto is the native local store backed by dgraph-io/ristretto.
//
// Ristretto admits and evicts by its own TinyLFU policy and cannot enumerate
// keys, so a key index is kept alongside it. Every entry carries its own
// deadline and is checked on read, independent of ristretto's expiry buckets.
// Writes wait for ristretto's buffers so a Set is visible to the next Get.
type Ristretto[V any] struct {
	cache *ristretto.Cache
	index map[string]*ristrettoEntry[V]
	size  int64

	// mu guards index and size; it is never held across ristretto calls
	// because ristretto invokes forget from inside Wait and Clear.
	mu sync.Mutex
	// writeMu serializes mutations so the index follows ristretto's order.
	writeMu sync.Mutex
	closed  bool
}

// NewRistretto creates a native local store holding up to maxEntries
// entries; zero means effectively unbounded.
func NewRistretto[V any](maxEntries int) (*Ristretto[V], error) {
	if maxEntries <= 0 {
		maxEntries = unboundedRistrettoEntries
	}

	// NumCounters should be ~10x the number of entries for optimal admission.
	numCounters := max(int64(maxEntries)*10, minRistrettoCounters)

	r := &Ristretto[V]{
		index: make(map[string]*ristrettoEntry[V]),
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        numCounters,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict:            r.forget,
		OnReject:           r.forget,
	})
	if err != nil {
		return nil, err
	}
	r.cache = c

	return r, nil
}

// Get retrieves a value by key, dropping it if its deadline has passed.
func (r *Ristretto[V]) Get(key string) (V, bool) {
	var zero V

	raw, ok := r.cache.Get(key)
	if !ok {
		return zero, false
	}

	e, ok := raw.(*ristrettoEntry[V])
	if !ok {
		r.Delete(key)
		return zero, false
	}

	if expired(e.expiresAt, time.Now()) {
		r.Delete(key)
		return zero, false
	}

	return e.value, true
}

// Set stores a value. A zero or negative TTL never expires.
// Each entry weighs 1 against the capacity; cost only feeds Size.
func (r *Ristretto[V]) Set(key string, value V, ttl time.Duration, cost int64) bool {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.closed {
		return false
	}

	e := &ristrettoEntry[V]{key: key, value: value, expiresAt: expiry(time.Now(), ttl), cost: cost}

	// Index first: a rejection reported during Wait must find the entry.
	r.mu.Lock()
	if prev, ok := r.index[key]; ok {
		r.size -= prev.cost
	}
	r.index[key] = e
	r.size += cost
	r.mu.Unlock()

	var ristrettoTTL time.Duration
	if ttl > 0 {
		ristrettoTTL = ttl
	}

	if !r.cache.SetWithTTL(key, e, 1, ristrettoTTL) {
		r.drop(e)
		return false
	}
	r.cache.Wait()

	return true
}

// Delete removes a key and reports how many live entries were removed.
func (r *Ristretto[V]) Delete(key string) int {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	e, ok := r.index[key]
	r.mu.Unlock()

	r.cache.Del(key)
	if !ok {
		return 0
	}

	r.drop(e)
	if expired(e.expiresAt, time.Now()) {
		return 0
	}

	return 1
}

// Has checks whether a key exists and has not expired.
func (r *Ristretto[V]) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns the live keys in no particular order.
func (r *Ristretto[V]) Keys() []string {
	now := time.Now()

	r.mu.Lock()
	keys := make([]string, 0, len(r.index))
	var stale []string
	for key, e := range r.index {
		if expired(e.expiresAt, now) {
			stale = append(stale, key)
			continue
		}
		keys = append(keys, key)
	}
	r.mu.Unlock()

	for _, key := range stale {
		r.Delete(key)
	}

	return keys
}

// Flush removes all entries.
func (r *Ristretto[V]) Flush() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.closed {
		return
	}

	r.cache.Clear()

	r.mu.Lock()
	r.index = make(map[string]*ristrettoEntry[V])
	r.size = 0
	r.mu.Unlock()
}

// Len returns the number of indexed entries.
func (r *Ristretto[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

// Size returns the summed cost of indexed entries.
func (r *Ristretto[V]) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Close stops ristretto's goroutines. Close is idempotent.
func (r *Ristretto[V]) Close() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.cache.Close()

	r.mu.Lock()
	r.index = make(map[string]*ristrettoEntry[V])
	r.size = 0
	r.mu.Unlock()

	return nil
}

// forget removes an entry ristretto evicted, rejected or expired on its own.
func (r *Ristretto[V]) forget(item *ristretto.Item) {
	if e, ok := item.Value.(*ristrettoEntry[V]); ok {
		r.drop(e)
	}
}

// drop removes e from the index unless the key has since been overwritten.
func (r *Ristretto[V]) drop(e *ristrettoEntry[V]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.index[e.key]; ok && cur == e {
		delete(r.index, e.key)
		r.size -= e.cost
	}
}

var _ Local[any] = (*Ristretto[any])(nil)
