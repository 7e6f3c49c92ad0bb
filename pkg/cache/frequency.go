package cache

import (
	"sync"
	"time"
)

// FrequencyEstimator tracks how often keys are read. SmartSet consults it
// to stretch or shrink TTLs.
type FrequencyEstimator interface {
	Record(key string)
	Frequency(key string) int
}

// DefaultFrequencyWindow is the window used by the facade's default estimator.
const DefaultFrequencyWindow = time.Minute

// WindowCounter counts accesses per key in fixed windows. Frequency is the
// larger of the current and the previous window's count, so a key does not
// look cold right after a window boundary.
type WindowCounter struct {
	now      func() time.Time
	start    time.Time
	current  map[string]int
	previous map[string]int
	window   time.Duration
	mu       sync.Mutex
}

// WindowOption configures a WindowCounter.
type WindowOption func(*WindowCounter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) WindowOption {
	return func(w *WindowCounter) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWindowCounter creates a counter with the given window length.
// A non-positive window falls back to DefaultFrequencyWindow.
func NewWindowCounter(window time.Duration, opts ...WindowOption) *WindowCounter {
	if window <= 0 {
		window = DefaultFrequencyWindow
	}

	w := &WindowCounter{
		now:     time.Now,
		window:  window,
		current: make(map[string]int),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.start = w.now()

	return w
}

// Record counts one access to key.
func (w *WindowCounter) Record(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rotate()
	w.current[key]++
}

// Frequency returns the access count for key.
func (w *WindowCounter) Frequency(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rotate()
	return max(w.current[key], w.previous[key])
}

// rotate advances the window when it has elapsed. Caller must hold the mutex.
func (w *WindowCounter) rotate() {
	elapsed := w.now().Sub(w.start)
	if elapsed < w.window {
		return
	}

	if elapsed < 2*w.window {
		w.previous = w.current
	} else {
		w.previous = nil
	}
	w.current = make(map[string]int)
	w.start = w.start.Add(elapsed - elapsed%w.window)
}

var _ FrequencyEstimator = (*WindowCounter)(nil)
