package alerting

import (
	"sync"
	"time"
)

// Window is a sliding-window counter backed by a ring of per-second buckets.
// Sum reports the total recorded within the trailing span. Accurate under
// bursty load, unlike a decay-after-delay approximation.
type Window struct {
	mu       sync.Mutex
	buckets  []float64
	lastTick int64 // unix second of the bucket at lastIdx
	lastIdx  int
	now      func() time.Time
}

// NewWindow creates a counter covering the trailing span, rounded up to whole
// seconds (minimum 1s).
func NewWindow(span time.Duration) *Window {
	n := int((span + time.Second - 1) / time.Second)
	if n < 1 {
		n = 1
	}
	return &Window{buckets: make([]float64, n), now: time.Now}
}

// Incr records n at the current instant.
func (w *Window) Incr(n float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	w.buckets[w.lastIdx] += n
}

// Sum returns the total recorded within the trailing span.
func (w *Window) Sum() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	var total float64
	for _, v := range w.buckets {
		total += v
	}
	return total
}

// Reset discards all recorded values.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.buckets {
		w.buckets[i] = 0
	}
}

// advance zeroes buckets for the seconds elapsed since the last update.
// Callers must hold mu.
func (w *Window) advance() {
	nowSec := w.now().Unix()
	if w.lastTick == 0 {
		w.lastTick = nowSec
		return
	}
	elapsed := nowSec - w.lastTick
	if elapsed <= 0 {
		return
	}
	if elapsed >= int64(len(w.buckets)) {
		for i := range w.buckets {
			w.buckets[i] = 0
		}
	} else {
		for i := int64(1); i <= elapsed; i++ {
			w.buckets[(w.lastIdx+int(i))%len(w.buckets)] = 0
		}
	}
	w.lastIdx = (w.lastIdx + int(elapsed)) % len(w.buckets)
	w.lastTick = nowSec
}

// Trackers bundles the sliding windows that feed the default alert rules.
// One instance is shared by the HTTP middleware, DB instrumentation and the
// outbound call wrapper.
type Trackers struct {
	Requests     *Window
	Errors       *Window
	SlowRequests *Window
	DBErrors     *Window

	mu        sync.Mutex
	apiErrors map[string]*Window
	span      time.Duration
}

// NewTrackers creates trackers over a 5-minute trailing window.
func NewTrackers() *Trackers {
	return NewTrackersWithSpan(5 * time.Minute)
}

func NewTrackersWithSpan(span time.Duration) *Trackers {
	return &Trackers{
		Requests:     NewWindow(span),
		Errors:       NewWindow(span),
		SlowRequests: NewWindow(span),
		DBErrors:     NewWindow(span),
		apiErrors:    make(map[string]*Window),
		span:         span,
	}
}

// APIError records one failed outbound call for the named API.
func (t *Trackers) APIError(api string) {
	t.apiWindow(api).Incr(1)
}

// APIErrorCount returns the failure count for the named API in the window.
func (t *Trackers) APIErrorCount(api string) float64 {
	return t.apiWindow(api).Sum()
}

func (t *Trackers) apiWindow(api string) *Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.apiErrors[api]
	if w == nil {
		w = NewWindow(t.span)
		t.apiErrors[api] = w
	}
	return w
}
