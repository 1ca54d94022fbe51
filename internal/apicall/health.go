package apicall

import (
	"sort"
	"sync"
	"time"
)

// APIHealth is the per-provider view exposed by /health and the dashboard.
type APIHealth struct {
	Name         string     `json:"name"`
	Success      int64      `json:"success"`
	Failure      int64      `json:"failure"`
	LastSuccess  *time.Time `json:"lastSuccess,omitempty"`
	LastFailure  *time.Time `json:"lastFailure,omitempty"`
	AvgLatencyMs float64    `json:"avgLatencyMs"`
	Healthy      bool       `json:"healthy"`
}

type apiHealth struct {
	success      int64
	failure      int64
	totalLatency time.Duration
	lastSuccess  time.Time
	lastFailure  time.Time
}

// HealthTracker accumulates per-API success/failure counts and latency for
// the process lifetime, independent of the 5-minute alert windows. Healthy
// means success ratio above 0.9.
type HealthTracker struct {
	mu   sync.Mutex
	apis map[string]*apiHealth
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{apis: make(map[string]*apiHealth)}
}

// Record notes one call outcome. Average latency is derived from running
// totals on read, never stored.
func (t *HealthTracker) Record(api string, ok bool, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.apis[api]
	if h == nil {
		h = &apiHealth{}
		t.apis[api] = h
	}
	now := time.Now()
	if ok {
		h.success++
		h.lastSuccess = now
	} else {
		h.failure++
		h.lastFailure = now
	}
	h.totalLatency += latency
}

// Snapshot returns per-API health sorted by name.
func (t *HealthTracker) Snapshot() []APIHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]APIHealth, 0, len(t.apis))
	for name, h := range t.apis {
		out = append(out, h.view(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Unhealthy lists APIs whose success ratio has dropped to 0.9 or below.
func (t *HealthTracker) Unhealthy() []string {
	var names []string
	for _, h := range t.Snapshot() {
		if !h.Healthy {
			names = append(names, h.Name)
		}
	}
	return names
}

// Reset clears all accumulated state. Test hook.
func (t *HealthTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apis = make(map[string]*apiHealth)
}

func (h *apiHealth) view(name string) APIHealth {
	total := h.success + h.failure
	out := APIHealth{
		Name:    name,
		Success: h.success,
		Failure: h.failure,
		Healthy: true,
	}
	if total > 0 {
		out.Healthy = float64(h.success)/float64(total) > 0.9
		out.AvgLatencyMs = float64(h.totalLatency) / float64(total) / float64(time.Millisecond)
	}
	if !h.lastSuccess.IsZero() {
		ts := h.lastSuccess
		out.LastSuccess = &ts
	}
	if !h.lastFailure.IsZero() {
		ts := h.lastFailure
		out.LastFailure = &ts
	}
	return out
}
