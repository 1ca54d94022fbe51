package metrics

import (
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// HistogramSnapshot is the raw per-series record exposed by JSON().
type HistogramSnapshot struct {
	Buckets []float64 `json:"buckets"`
	Counts  []float64 `json:"counts"`
	Sum     float64   `json:"sum"`
	Count   float64   `json:"count"`
}

// MetricSnapshot is one family in the JSON export.
type MetricSnapshot struct {
	Type   Kind           `json:"type"`
	Help   string         `json:"help"`
	Values map[string]any `json:"values"`
}

// MemorySnapshot is a point-in-time view of process memory.
type MemorySnapshot struct {
	HeapAllocBytes uint64 `json:"heapAllocBytes"`
	HeapSysBytes   uint64 `json:"heapSysBytes"`
	NumGC          uint32 `json:"numGC"`
	Goroutines     int    `json:"goroutines"`
}

// Snapshot is the full JSON export shape consumed by the dashboard.
type Snapshot struct {
	UptimeSeconds float64                   `json:"uptimeSeconds"`
	Memory        MemorySnapshot            `json:"memory"`
	Metrics       map[string]MetricSnapshot `json:"metrics"`
}

// Prometheus renders the registry in Prometheus text exposition format.
// Families appear in registration order, preceded by two process gauges.
func (r *Registry) Prometheus() string {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	var b strings.Builder
	writeFamily := func(name, help string, kind Kind) {
		fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, kind)
	}

	writeFamily("process_uptime_seconds", "Seconds since the metrics registry was constructed.", KindGauge)
	fmt.Fprintf(&b, "process_uptime_seconds %s\n", formatValue(r.Uptime().Seconds()))
	writeFamily("process_heap_bytes", "Current heap usage in bytes.", KindGauge)
	fmt.Fprintf(&b, "process_heap_bytes %s\n", formatValue(float64(ms.HeapAlloc)))

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		m := r.metrics[name]
		writeFamily(m.name, m.help, m.kind)
		switch m.kind {
		case KindHistogram:
			for _, key := range sortedKeys(m.hists) {
				h := m.hists[key]
				for i, bound := range m.buckets {
					fmt.Fprintf(&b, "%s_bucket{%s} %s\n", m.name,
						withLE(key, formatValue(bound)), formatValue(h.counts[i]))
				}
				fmt.Fprintf(&b, "%s_bucket{%s} %s\n", m.name, withLE(key, "+Inf"), formatValue(h.count))
				fmt.Fprintf(&b, "%s_sum%s %s\n", m.name, braced(key), formatValue(h.sum))
				fmt.Fprintf(&b, "%s_count%s %s\n", m.name, braced(key), formatValue(h.count))
			}
		default:
			for _, key := range sortedKeys(m.values) {
				fmt.Fprintf(&b, "%s%s %s\n", m.name, braced(key), formatValue(m.values[key]))
			}
		}
	}
	return b.String()
}

// JSON returns the raw registry state for the dashboard bundle.
func (r *Registry) JSON() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := Snapshot{
		UptimeSeconds: r.Uptime().Seconds(),
		Memory: MemorySnapshot{
			HeapAllocBytes: ms.HeapAlloc,
			HeapSysBytes:   ms.HeapSys,
			NumGC:          ms.NumGC,
			Goroutines:     runtime.NumGoroutine(),
		},
		Metrics: make(map[string]MetricSnapshot, len(r.metrics)),
	}
	for _, name := range r.order {
		m := r.metrics[name]
		snap := MetricSnapshot{Type: m.kind, Help: m.help, Values: map[string]any{}}
		if m.kind == KindHistogram {
			for key, h := range m.hists {
				snap.Values[key] = HistogramSnapshot{
					Buckets: append([]float64(nil), m.buckets...),
					Counts:  append([]float64(nil), h.counts...),
					Sum:     h.sum,
					Count:   h.count,
				}
			}
		} else {
			for key, v := range m.values {
				snap.Values[key] = v
			}
		}
		out.Metrics[name] = snap
	}
	return out
}

func withLE(key, bound string) string {
	if key == "" {
		return `le="` + bound + `"`
	}
	return key + `,le="` + bound + `"`
}

func braced(key string) string {
	if key == "" {
		return ""
	}
	return "{" + key + "}"
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
