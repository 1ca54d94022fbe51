package dbobs

import (
	"sort"
	"sync"
	"time"
)

// QueryStat aggregates executions of one (model, action) pair. Only running
// aggregates are kept, no samples; the average is derived from the sum.
type QueryStat struct {
	Model         string
	Action        string
	Count         int64
	TotalDuration time.Duration
	Min           time.Duration
	Max           time.Duration
	Errors        int64
	Slow          int64
}

// QueryStatView is the read-only shape served by the observability surface.
type QueryStatView struct {
	Model      string  `json:"model"`
	Action     string  `json:"action"`
	Count      int64   `json:"count"`
	AvgMs      float64 `json:"avgDurationMs"`
	MinMs      float64 `json:"minDurationMs"`
	MaxMs      float64 `json:"maxDurationMs"`
	TotalMs    float64 `json:"totalDurationMs"`
	Errors     int64   `json:"errors"`
	Slow       int64   `json:"slowQueries"`
	ErrorRatio float64 `json:"errorRatio"`
}

// Summary totals the stat map and carries the five slowest pairs by average.
type Summary struct {
	TotalQueries int64           `json:"totalQueries"`
	TotalErrors  int64           `json:"totalErrors"`
	TotalSlow    int64           `json:"totalSlow"`
	TopSlow      []QueryStatView `json:"topSlow"`
}

// Stats owns the per-(model, action) aggregates. Single writer path via
// Observe, many readers via the view methods.
type Stats struct {
	mu            sync.Mutex
	byKey         map[string]*QueryStat
	slowThreshold time.Duration
}

func NewStats(slowThreshold time.Duration) *Stats {
	if slowThreshold <= 0 {
		slowThreshold = 500 * time.Millisecond
	}
	return &Stats{byKey: make(map[string]*QueryStat), slowThreshold: slowThreshold}
}

// SlowThreshold returns the configured slow-query cutoff.
func (s *Stats) SlowThreshold() time.Duration { return s.slowThreshold }

// Observe records one executed query.
func (s *Stats) Observe(model, action string, d time.Duration, failed bool) {
	if model == "" {
		model = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model + "." + action
	st := s.byKey[key]
	if st == nil {
		st = &QueryStat{Model: model, Action: action, Min: d, Max: d}
		s.byKey[key] = st
	}
	st.Count++
	st.TotalDuration += d
	if d < st.Min {
		st.Min = d
	}
	if d > st.Max {
		st.Max = d
	}
	if failed {
		st.Errors++
	}
	if d > s.slowThreshold {
		st.Slow++
	}
}

// SlowQueries returns pairs that have been slow at least once, by descending
// average duration.
func (s *Stats) SlowQueries() []QueryStatView {
	views := s.views(func(st *QueryStat) bool { return st.Slow > 0 })
	sort.Slice(views, func(i, j int) bool { return views[i].AvgMs > views[j].AvgMs })
	return views
}

// TopByCount returns the n most frequently executed pairs.
func (s *Stats) TopByCount(n int) []QueryStatView {
	views := s.views(nil)
	sort.Slice(views, func(i, j int) bool { return views[i].Count > views[j].Count })
	return truncate(views, n)
}

// TopByAvgDuration returns the n slowest pairs by average duration.
func (s *Stats) TopByAvgDuration(n int) []QueryStatView {
	views := s.views(nil)
	sort.Slice(views, func(i, j int) bool { return views[i].AvgMs > views[j].AvgMs })
	return truncate(views, n)
}

// ErrorProne returns pairs with at least one error, by descending error ratio.
func (s *Stats) ErrorProne() []QueryStatView {
	views := s.views(func(st *QueryStat) bool { return st.Errors > 0 })
	sort.Slice(views, func(i, j int) bool { return views[i].ErrorRatio > views[j].ErrorRatio })
	return views
}

// Summarize computes totals plus the top-5 slow pairs, on demand.
func (s *Stats) Summarize() Summary {
	sum := Summary{TopSlow: s.TopByAvgDuration(5)}
	for _, v := range s.views(nil) {
		sum.TotalQueries += v.Count
		sum.TotalErrors += v.Errors
		sum.TotalSlow += v.Slow
	}
	return sum
}

// Reset clears all aggregates. Test hook.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey = make(map[string]*QueryStat)
}

// Get returns the aggregate for one pair, if present.
func (s *Stats) Get(model, action string) (QueryStatView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byKey[model+"."+action]
	if !ok {
		return QueryStatView{}, false
	}
	return st.view(), true
}

func (s *Stats) views(keep func(*QueryStat) bool) []QueryStatView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueryStatView, 0, len(s.byKey))
	for _, st := range s.byKey {
		if keep != nil && !keep(st) {
			continue
		}
		out = append(out, st.view())
	}
	return out
}

func (st *QueryStat) view() QueryStatView {
	v := QueryStatView{
		Model:   st.Model,
		Action:  st.Action,
		Count:   st.Count,
		MinMs:   millis(st.Min),
		MaxMs:   millis(st.Max),
		TotalMs: millis(st.TotalDuration),
		Errors:  st.Errors,
		Slow:    st.Slow,
	}
	if st.Count > 0 {
		v.AvgMs = millis(st.TotalDuration) / float64(st.Count)
		v.ErrorRatio = float64(st.Errors) / float64(st.Count)
	}
	return v
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func truncate(v []QueryStatView, n int) []QueryStatView {
	if n > 0 && len(v) > n {
		return v[:n]
	}
	return v
}
