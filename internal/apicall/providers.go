package apicall

import (
	"context"
	"time"

	"github.com/luminahq/observe/internal/metrics"
)

// ProviderConfig returns the call config for a named provider, fixing its
// retry posture. Unknown providers get the generic defaults.
func ProviderConfig(api, operation string) Config {
	cfg := Config{API: api, Operation: operation}
	switch api {
	case "stripe":
		cfg.MaxRetries = 2
		cfg.RetryDelay = 500 * time.Millisecond
	case "openai", "anthropic":
		cfg.MaxRetries = 2
		cfg.RetryDelay = time.Second
	case "elevenlabs":
		cfg.MaxRetries = 1
		cfg.RetryDelay = 2 * time.Second
	case "supabase":
		cfg.MaxRetries = 3
		cfg.RetryDelay = 300 * time.Millisecond
	}
	return cfg
}

// Stripe runs call under the stripe retry posture.
func Stripe[T any](ctx context.Context, ins *Instrumentor, operation string, call func(context.Context) (T, error)) (T, CallStats, error) {
	return Do(ctx, ins, ProviderConfig("stripe", operation), call)
}

func OpenAI[T any](ctx context.Context, ins *Instrumentor, operation string, call func(context.Context) (T, error)) (T, CallStats, error) {
	return Do(ctx, ins, ProviderConfig("openai", operation), call)
}

func Anthropic[T any](ctx context.Context, ins *Instrumentor, operation string, call func(context.Context) (T, error)) (T, CallStats, error) {
	return Do(ctx, ins, ProviderConfig("anthropic", operation), call)
}

func ElevenLabs[T any](ctx context.Context, ins *Instrumentor, operation string, call func(context.Context) (T, error)) (T, CallStats, error) {
	return Do(ctx, ins, ProviderConfig("elevenlabs", operation), call)
}

func Supabase[T any](ctx context.Context, ins *Instrumentor, operation string, call func(context.Context) (T, error)) (T, CallStats, error) {
	return Do(ctx, ins, ProviderConfig("supabase", operation), call)
}

// Usage recorders: thin writes into the metrics registry plus a business
// event log line. These back the billing and usage dashboards.

func (ins *Instrumentor) RecordTokenUsage(ctx context.Context, provider, model string, tokens float64) {
	ins.Registry.AddCounter("tokens_used_total",
		metrics.Labels{"provider": provider, "model": model, "unit": "tokens"}, tokens)
	ins.Logger.BusinessEvent(ctx, "tokens_used", map[string]any{
		"provider": provider, "model": model, "tokens": tokens,
	})
}

func (ins *Instrumentor) RecordCharacterUsage(ctx context.Context, provider, voice string, characters float64) {
	ins.Registry.AddCounter("tokens_used_total",
		metrics.Labels{"provider": provider, "voice": voice, "unit": "characters"}, characters)
	ins.Logger.BusinessEvent(ctx, "characters_used", map[string]any{
		"provider": provider, "voice": voice, "characters": characters,
	})
}

func (ins *Instrumentor) RecordTokensPurchased(ctx context.Context, plan string, tokens float64) {
	ins.Registry.AddCounter("tokens_purchased_total", metrics.Labels{"plan": plan}, tokens)
	ins.Logger.BusinessEvent(ctx, "tokens_purchased", map[string]any{
		"plan": plan, "tokens": tokens,
	})
}

func (ins *Instrumentor) RecordRevenue(ctx context.Context, source string, cents float64) {
	ins.Registry.AddCounter("revenue_cents_total", metrics.Labels{"source": source}, cents)
	ins.Logger.BusinessEvent(ctx, "revenue_recognized", map[string]any{
		"source": source, "cents": cents,
	})
}

func (ins *Instrumentor) RecordSubscriptionEvent(ctx context.Context, kind string) {
	ins.Registry.IncCounter("subscriptions_total", metrics.Labels{"event": kind})
	ins.Logger.BusinessEvent(ctx, "subscription_"+kind, nil)
}

func (ins *Instrumentor) RecordQueueDepth(depth float64) {
	ins.Registry.SetGauge("queue_size", nil, depth)
}

func (ins *Instrumentor) RecordActiveUsers(n float64) {
	ins.Registry.SetGauge("active_users", nil, n)
}

func (ins *Instrumentor) RecordQueueJob(ctx context.Context, outcome string) {
	ins.Registry.IncCounter("queue_jobs_processed_total", metrics.Labels{"outcome": outcome})
}
