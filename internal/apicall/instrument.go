package apicall

import (
	"context"
	"strconv"
	"time"

	"github.com/luminahq/observe/internal/alerting"
	"github.com/luminahq/observe/internal/logging"
	"github.com/luminahq/observe/internal/metrics"
)

const (
	defaultMaxRetries = 2
	defaultRetryDelay = time.Second
)

// Config identifies one outbound call site and its retry budget.
type Config struct {
	API        string
	Operation  string
	MaxRetries int           // attempts beyond the first; 0 means default, <0 disables retries
	RetryDelay time.Duration // base delay; grows linearly per attempt
}

func (c Config) maxRetries() int {
	if c.MaxRetries == 0 {
		return defaultMaxRetries
	}
	if c.MaxRetries < 0 {
		return 0
	}
	return c.MaxRetries
}

func (c Config) retryDelay() time.Duration {
	if c.RetryDelay <= 0 {
		return defaultRetryDelay
	}
	return c.RetryDelay
}

// CallStats reports timing across all attempts of one logical call.
type CallStats struct {
	Duration time.Duration
	Retries  int
}

// Instrumentor bundles the telemetry sinks fed by every instrumented call.
type Instrumentor struct {
	Logger   *logging.Logger
	Registry *metrics.Registry
	Trackers *alerting.Trackers
	Health   *HealthTracker
}

// Do runs call with retries, classification and telemetry. The wrapped error
// is surfaced as a *CallError; the call's own outcome is never altered.
//
// Retry policy: non-retryable classifications short-circuit after one attempt;
// retryable ones wait RetryDelay*attempt between attempts (linear backoff)
// until MaxRetries extra attempts have been spent. Duration spans all
// attempts. MaxRetries bounds attempt count, not elapsed time.
func Do[T any](ctx context.Context, ins *Instrumentor, cfg Config, call func(context.Context) (T, error)) (T, CallStats, error) {
	var zero T
	start := time.Now()
	maxRetries := cfg.maxRetries()

	var cerr *CallError
	for attempt := 0; ; attempt++ {
		data, err := call(ctx)
		if err == nil {
			stats := CallStats{Duration: time.Since(start), Retries: attempt}
			ins.recordSuccess(ctx, cfg, stats)
			return data, stats, nil
		}
		cerr = Classify(err)
		if !cerr.Retryable || attempt >= maxRetries {
			stats := CallStats{Duration: time.Since(start), Retries: attempt}
			ins.recordFailure(ctx, cfg, stats, cerr)
			return zero, stats, cerr
		}
		select {
		case <-ctx.Done():
			stats := CallStats{Duration: time.Since(start), Retries: attempt}
			ins.recordFailure(ctx, cfg, stats, cerr)
			return zero, stats, cerr
		case <-time.After(cfg.retryDelay() * time.Duration(attempt+1)):
		}
	}
}

func (ins *Instrumentor) recordSuccess(ctx context.Context, cfg Config, stats CallStats) {
	if ins == nil {
		return
	}
	if ins.Health != nil {
		ins.Health.Record(cfg.API, true, stats.Duration)
	}
	if ins.Registry != nil {
		ins.Registry.IncCounter("external_api_calls_total", metrics.Labels{
			"api": cfg.API, "operation": cfg.Operation, "status": "success",
		})
		ins.Registry.ObserveHistogram("external_api_duration_ms",
			float64(stats.Duration)/float64(time.Millisecond),
			metrics.Labels{"api": cfg.API})
	}
	if ins.Logger != nil {
		ins.Logger.ExternalAPI(ctx, cfg.API, cfg.Operation, true, stats.Duration,
			map[string]any{"retries": stats.Retries})
	}
}

func (ins *Instrumentor) recordFailure(ctx context.Context, cfg Config, stats CallStats, cerr *CallError) {
	if ins == nil {
		return
	}
	if ins.Health != nil {
		ins.Health.Record(cfg.API, false, stats.Duration)
	}
	if ins.Trackers != nil {
		ins.Trackers.APIError(cfg.API)
	}
	if ins.Registry != nil {
		ins.Registry.IncCounter("external_api_calls_total", metrics.Labels{
			"api": cfg.API, "operation": cfg.Operation, "status": "error",
		})
		ins.Registry.ObserveHistogram("external_api_duration_ms",
			float64(stats.Duration)/float64(time.Millisecond),
			metrics.Labels{"api": cfg.API})
		ins.Registry.IncCounter("errors_total", metrics.Labels{
			"source": "external_api", "api": cfg.API,
		})
	}
	if ins.Logger != nil {
		ins.Logger.ExternalAPI(ctx, cfg.API, cfg.Operation, false, stats.Duration, map[string]any{
			"retries":    stats.Retries,
			"errorType":  string(cerr.Type),
			"statusCode": strconv.Itoa(cerr.StatusCode),
			"retryable":  cerr.Retryable,
		})
	}
}
