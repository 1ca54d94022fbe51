package alerting

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// TrackedAPIs are the external providers monitored by the default rule set.
var TrackedAPIs = []string{"stripe", "openai", "anthropic", "elevenlabs", "supabase"}

// DefaultRules builds the standard rule set over the shared trackers. Every
// rule follows the threshold-over-trailing-window pattern except the two
// point-in-time checks (heap, daily cost).
func DefaultRules(t *Trackers) []*Rule {
	rules := []*Rule{
		{
			ID:          "high-error-rate",
			Name:        "High error rate",
			Description: "more than 10% of requests failed over the last 5 minutes",
			Severity:    SeverityCritical,
			Cooldown:    10 * time.Minute,
			Enabled:     true,
			Condition: func(context.Context) (bool, error) {
				total := t.Requests.Sum()
				if total < 10 {
					return false, nil
				}
				return t.Errors.Sum()/total > 0.10, nil
			},
		},
		{
			ID:          "slow-requests",
			Name:        "Slow requests",
			Description: "more than 10 slow requests in the last 5 minutes",
			Severity:    SeverityWarning,
			Cooldown:    10 * time.Minute,
			Enabled:     true,
			Condition: func(context.Context) (bool, error) {
				return t.SlowRequests.Sum() > 10, nil
			},
		},
		{
			ID:          "db-errors",
			Name:        "Database errors",
			Description: "more than 5 database errors in the last 5 minutes",
			Severity:    SeverityCritical,
			Cooldown:    5 * time.Minute,
			Enabled:     true,
			Condition: func(context.Context) (bool, error) {
				return t.DBErrors.Sum() > 5, nil
			},
		},
		{
			ID:          "high-memory",
			Name:        "High memory usage",
			Description: "heap usage above 90% of the heap reserved from the OS",
			Severity:    SeverityCritical,
			Cooldown:    15 * time.Minute,
			Enabled:     true,
			Condition: func(context.Context) (bool, error) {
				var ms runtime.MemStats
				runtime.ReadMemStats(&ms)
				if ms.HeapSys == 0 {
					return false, nil
				}
				return float64(ms.HeapAlloc)/float64(ms.HeapSys) > 0.90, nil
			},
		},
		{
			ID:          "daily-cost-warning",
			Name:        "Daily cost approaching budget",
			Description: "current daily spend is at 80% of the configured limit",
			Severity:    SeverityWarning,
			Cooldown:    time.Hour,
			Enabled:     true,
			Condition: func(context.Context) (bool, error) {
				ratio, ok := costRatio()
				return ok && ratio >= 0.8 && ratio < 1.0, nil
			},
		},
		{
			ID:          "daily-cost-exceeded",
			Name:        "Daily cost budget exceeded",
			Description: "current daily spend has reached the configured limit",
			Severity:    SeverityCritical,
			Cooldown:    time.Hour,
			Enabled:     true,
			Condition: func(context.Context) (bool, error) {
				ratio, ok := costRatio()
				return ok && ratio >= 1.0, nil
			},
		},
	}

	for _, api := range TrackedAPIs {
		api := api
		threshold := 5.0
		severity := SeverityWarning
		if api == "stripe" {
			// billing failures page someone
			threshold = 3.0
			severity = SeverityCritical
		}
		rules = append(rules, &Rule{
			ID:          api + "-errors",
			Name:        fmt.Sprintf("%s API errors", api),
			Description: fmt.Sprintf("more than %.0f %s API failures in the last 5 minutes", threshold, api),
			Severity:    severity,
			Cooldown:    15 * time.Minute,
			Enabled:     true,
			Condition: func(context.Context) (bool, error) {
				return t.APIErrorCount(api) > threshold, nil
			},
		})
	}
	return rules
}

// costRatio reads budget figures from the environment at evaluation time,
// never cached. Returns ok=false when no usable limit is set.
func costRatio() (float64, bool) {
	limit, err := strconv.ParseFloat(os.Getenv("DAILY_COST_LIMIT"), 64)
	if err != nil || limit <= 0 {
		return 0, false
	}
	current, err := strconv.ParseFloat(os.Getenv("CURRENT_DAILY_COST"), 64)
	if err != nil {
		return 0, false
	}
	return current / limit, true
}
