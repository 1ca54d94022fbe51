package dbobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAggregates(t *testing.T) {
	s := NewStats(0)
	s.Observe("user", "findMany", 100*time.Millisecond, false)
	s.Observe("user", "findMany", 200*time.Millisecond, false)
	s.Observe("user", "findMany", 300*time.Millisecond, false)

	v, ok := s.Get("user", "findMany")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.Count)
	assert.Equal(t, 200.0, v.AvgMs)
	assert.Equal(t, 100.0, v.MinMs)
	assert.Equal(t, 300.0, v.MaxMs)
	assert.Equal(t, 600.0, v.TotalMs)
	assert.Equal(t, int64(0), v.Errors)
}

func TestObserveEmptyModelFallsBackToUnknown(t *testing.T) {
	s := NewStats(0)
	s.Observe("", "select", 10*time.Millisecond, false)

	_, ok := s.Get("unknown", "select")
	assert.True(t, ok)
}

func TestSlowQueryCounting(t *testing.T) {
	s := NewStats(500 * time.Millisecond)
	s.Observe("report", "aggregate", 499*time.Millisecond, false)
	s.Observe("report", "aggregate", 501*time.Millisecond, false)
	s.Observe("user", "findUnique", 5*time.Millisecond, false)

	v, _ := s.Get("report", "aggregate")
	assert.Equal(t, int64(1), v.Slow, "strictly above the threshold counts")

	slow := s.SlowQueries()
	require.Len(t, slow, 1)
	assert.Equal(t, "report", slow[0].Model)
}

func TestErrorProneOrdering(t *testing.T) {
	s := NewStats(0)
	for i := 0; i < 10; i++ {
		s.Observe("user", "create", time.Millisecond, i < 2) // 20% errors
	}
	for i := 0; i < 10; i++ {
		s.Observe("invoice", "create", time.Millisecond, i < 5) // 50% errors
	}
	s.Observe("session", "delete", time.Millisecond, false)

	prone := s.ErrorProne()
	require.Len(t, prone, 2)
	assert.Equal(t, "invoice", prone[0].Model)
	assert.Equal(t, 0.5, prone[0].ErrorRatio)
	assert.Equal(t, "user", prone[1].Model)
}

func TestTopByCountAndAvgDuration(t *testing.T) {
	s := NewStats(0)
	for i := 0; i < 5; i++ {
		s.Observe("user", "findMany", 10*time.Millisecond, false)
	}
	s.Observe("report", "aggregate", 900*time.Millisecond, false)

	byCount := s.TopByCount(1)
	require.Len(t, byCount, 1)
	assert.Equal(t, "user", byCount[0].Model)

	byAvg := s.TopByAvgDuration(1)
	require.Len(t, byAvg, 1)
	assert.Equal(t, "report", byAvg[0].Model)
}

func TestSummarize(t *testing.T) {
	s := NewStats(100 * time.Millisecond)
	s.Observe("user", "findMany", 50*time.Millisecond, false)
	s.Observe("user", "findMany", 150*time.Millisecond, true)
	s.Observe("invoice", "create", 20*time.Millisecond, false)

	sum := s.Summarize()
	assert.Equal(t, int64(3), sum.TotalQueries)
	assert.Equal(t, int64(1), sum.TotalErrors)
	assert.Equal(t, int64(1), sum.TotalSlow)
	require.NotEmpty(t, sum.TopSlow)
	assert.Equal(t, "user", sum.TopSlow[0].Model)
}

func TestReset(t *testing.T) {
	s := NewStats(0)
	s.Observe("user", "findMany", time.Millisecond, false)
	s.Reset()
	_, ok := s.Get("user", "findMany")
	assert.False(t, ok)
}
