package cache_test

import (
	"context"
	"sync"
	"time"

	"github.com/emrvault/tiercache/pkg/cache"
)

// fakeStore is an in-memory shared tier that counts calls and can be
// switched off to simulate an outage.
type fakeStore struct {
	data     map[string][]byte
	ttls     map[string]time.Duration
	failKeys map[string]bool
	calls    []string
	gets     int
	down     bool
	mu       sync.Mutex
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:     make(map[string][]byte),
		ttls:     make(map[string]time.Duration),
		failKeys: make(map[string]bool),
	}
}

func (f *fakeStore) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.down {
		return nil, false
	}
	data, ok := f.data[key]
	return data, ok
}

func (f *fakeStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down || f.failKeys[key] {
		return false
	}
	f.data[key] = data
	f.ttls[key] = ttl
	return true
}

func (f *fakeStore) Delete(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false
	}
	_, ok := f.data[key]
	delete(f.data, key)
	return ok
}

func (f *fakeStore) Exists(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false
	}
	_, ok := f.data[key]
	return ok
}

func (f *fakeStore) Clear(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clear")
	if f.down {
		return false
	}
	f.data = make(map[string][]byte)
	return true
}

func (f *fakeStore) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.down
}

func (f *fakeStore) State() string {
	if f.Ready() {
		return cache.StateReady
	}
	return cache.StateDegraded
}

func (f *fakeStore) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("close")
	return nil
}

func (f *fakeStore) ForceClose() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("force-close")
	return nil
}

func (f *fakeStore) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeStore) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeStore) ttl(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

func (f *fakeStore) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recordingLocal wraps a local store, rejects writes to chosen keys and
// logs lifecycle calls.
type recordingLocal[V any] struct {
	cache.Local[V]
	reject map[string]bool
	calls  []string
	mu     sync.Mutex
}

func newRecordingLocal[V any](reject ...string) *recordingLocal[V] {
	r := &recordingLocal[V]{
		Local:  cache.NewMemory[V](cache.WithCleanupInterval(0)),
		reject: make(map[string]bool),
	}
	for _, key := range reject {
		r.reject[key] = true
	}
	return r
}

func (r *recordingLocal[V]) Set(key string, value V, ttl time.Duration, cost int64) bool {
	if r.reject[key] {
		return false
	}
	return r.Local.Set(key, value, ttl, cost)
}

func (r *recordingLocal[V]) Flush() {
	r.mu.Lock()
	r.calls = append(r.calls, "flush")
	r.mu.Unlock()
	r.Local.Flush()
}

func (r *recordingLocal[V]) Close() error {
	r.mu.Lock()
	r.calls = append(r.calls, "close")
	r.mu.Unlock()
	return r.Local.Close()
}

func (r *recordingLocal[V]) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// fakeRegistrar records registrations the way a lifecycle coordinator would.
type fakeRegistrar struct {
	fns          map[string]func(context.Context) error
	priorities   map[string]int
	unregistered []string
	mu           sync.Mutex
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		fns:        make(map[string]func(context.Context) error),
		priorities: make(map[string]int),
	}
}

func (r *fakeRegistrar) Register(name string, priority int, fn func(context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
	r.priorities[name] = priority
	return nil
}

func (r *fakeRegistrar) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregistered = append(r.unregistered, name)
	_, ok := r.fns[name]
	delete(r.fns, name)
	return ok
}

func (r *fakeRegistrar) only() (string, func(context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, fn := range r.fns {
		return name, fn
	}
	return "", nil
}

// fixedFrequency reports preset access counts.
type fixedFrequency map[string]int

func (fixedFrequency) Record(string) {}

func (f fixedFrequency) Frequency(key string) int { return f[key] }
