package dbobs

import (
	"context"
	"time"

	"github.com/luminahq/observe/internal/alerting"
	"github.com/luminahq/observe/internal/logging"
	"github.com/luminahq/observe/internal/metrics"
)

// Instrumentor bundles the sinks fed by query instrumentation.
type Instrumentor struct {
	Stats    *Stats
	Registry *metrics.Registry
	Logger   *logging.Logger
	Trackers *alerting.Trackers
}

// Observe wraps one repository call with timing and telemetry. The wrapped
// call's outcome passes through untouched; instrumentation never swallows or
// transforms the error.
func Observe[T any](ctx context.Context, ins *Instrumentor, model, action string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	data, err := fn(ctx)
	ins.record(ctx, model, action, time.Since(start), err)
	return data, err
}

func (ins *Instrumentor) record(ctx context.Context, model, action string, d time.Duration, err error) {
	if ins == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	failed := err != nil
	if ins.Stats != nil {
		ins.Stats.Observe(model, action, d, failed)
	}
	if ins.Registry != nil {
		status := "success"
		if failed {
			status = "error"
		}
		ins.Registry.IncCounter("db_queries_total", metrics.Labels{
			"model": model, "action": action, "status": status,
		})
		ins.Registry.ObserveHistogram("db_query_duration_ms",
			float64(d)/float64(time.Millisecond), metrics.Labels{"model": model})
	}
	if ins.Logger != nil {
		ins.Logger.DBQuery(ctx, model, action, d, err)
	}
	if failed && ins.Trackers != nil {
		ins.Trackers.DBErrors.Incr(1)
	}
}

// Pinger is the round-trip surface of a connection pool. *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is the database health probe result.
type Health struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Err     string        `json:"error,omitempty"`
}

// CheckHealth issues a trivial round trip and reports latency. It never
// propagates a failure, only reports it.
func CheckHealth(ctx context.Context, p Pinger) (h Health) {
	defer func() {
		if r := recover(); r != nil {
			h = Health{Healthy: false, Err: "health check panic"}
		}
	}()
	if p == nil {
		return Health{Healthy: false, Err: "database not configured"}
	}
	start := time.Now()
	err := p.Ping(ctx)
	h.Latency = time.Since(start)
	if err != nil {
		h.Err = err.Error()
		return h
	}
	h.Healthy = true
	return h
}
