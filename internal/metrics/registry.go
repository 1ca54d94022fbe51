package metrics

import (
	"sync"
	"time"
)

type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindHistogram Kind = "histogram"
)

// histValue holds per-series histogram state. counts[i] is the cumulative
// count of observations <= buckets[i]: every observation increments every
// bucket whose bound is at or above the value.
type histValue struct {
	counts []float64
	sum    float64
	count  float64
}

type metric struct {
	name    string
	help    string
	kind    Kind
	buckets []float64 // ascending upper bounds, histograms only
	values  map[string]float64
	hists   map[string]*histValue
}

// Registry is an in-memory counter/gauge/histogram store. All operations are
// safe for concurrent use. Update operations on unknown or wrong-kind names
// are silent no-ops so instrumentation call sites can never fail.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	metrics map[string]*metric
	started time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]*metric),
		started: time.Now(),
	}
}

// RegisterCounter registers a counter family. Registering an existing name is
// a no-op; the first registration wins.
func (r *Registry) RegisterCounter(name, help string) {
	r.register(name, help, KindCounter, nil)
}

func (r *Registry) RegisterGauge(name, help string) {
	r.register(name, help, KindGauge, nil)
}

// RegisterHistogram registers a histogram family with ascending inclusive
// upper bounds. Buckets are immutable after registration.
func (r *Registry) RegisterHistogram(name, help string, buckets []float64) {
	r.register(name, help, KindHistogram, buckets)
}

func (r *Registry) register(name, help string, kind Kind, buckets []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metrics[name]; ok {
		return
	}
	m := &metric{name: name, help: help, kind: kind}
	if kind == KindHistogram {
		m.buckets = append([]float64(nil), buckets...)
		m.hists = make(map[string]*histValue)
	} else {
		m.values = make(map[string]float64)
	}
	r.metrics[name] = m
	r.order = append(r.order, name)
}

// IncCounter adds 1 to the series identified by labels.
func (r *Registry) IncCounter(name string, labels Labels) {
	r.AddCounter(name, labels, 1)
}

// AddCounter adds v to the series identified by labels. Fractional values are
// allowed (byte counts, revenue cents).
func (r *Registry) AddCounter(name string, labels Labels, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	if !ok || m.kind != KindCounter {
		return
	}
	m.values[canonicalKey(labels)] += v
}

func (r *Registry) SetGauge(name string, labels Labels, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	if !ok || m.kind != KindGauge {
		return
	}
	m.values[canonicalKey(labels)] = v
}

func (r *Registry) IncGauge(name string, labels Labels, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	if !ok || m.kind != KindGauge {
		return
	}
	m.values[canonicalKey(labels)] += v
}

func (r *Registry) DecGauge(name string, labels Labels, v float64) {
	r.IncGauge(name, labels, -v)
}

// ObserveHistogram records v into the series identified by labels, bumping
// every bucket whose upper bound is >= v plus the running sum and count.
func (r *Registry) ObserveHistogram(name string, v float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	if !ok || m.kind != KindHistogram {
		return
	}
	key := canonicalKey(labels)
	h := m.hists[key]
	if h == nil {
		h = &histValue{counts: make([]float64, len(m.buckets))}
		m.hists[key] = h
	}
	for i, bound := range m.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
	h.sum += v
	h.count++
}

// CounterValue returns the current value of one counter series. Intended for
// rule conditions and tests.
func (r *Registry) CounterValue(name string, labels Labels) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[name]
	if !ok || m.kind != KindCounter {
		return 0
	}
	return m.values[canonicalKey(labels)]
}

// GaugeValue returns the current value of one gauge series.
func (r *Registry) GaugeValue(name string, labels Labels) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[name]
	if !ok || m.kind != KindGauge {
		return 0
	}
	return m.values[canonicalKey(labels)]
}

// Uptime reports how long the registry has existed.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.started)
}

// Reset clears all series but keeps registrations. Test hook.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.metrics {
		if m.kind == KindHistogram {
			m.hists = make(map[string]*histValue)
		} else {
			m.values = make(map[string]float64)
		}
	}
}
