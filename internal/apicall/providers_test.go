package apicall

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminahq/observe/internal/metrics"
)

func TestProviderConfigPostures(t *testing.T) {
	stripe := ProviderConfig("stripe", "createCharge")
	assert.Equal(t, 2, stripe.maxRetries())
	assert.Equal(t, 500*time.Millisecond, stripe.retryDelay())

	eleven := ProviderConfig("elevenlabs", "tts")
	assert.Equal(t, 1, eleven.maxRetries())
	assert.Equal(t, 2*time.Second, eleven.retryDelay())

	supabase := ProviderConfig("supabase", "select")
	assert.Equal(t, 3, supabase.maxRetries())
	assert.Equal(t, 300*time.Millisecond, supabase.retryDelay())

	other := ProviderConfig("somethingelse", "op")
	assert.Equal(t, defaultMaxRetries, other.maxRetries())
	assert.Equal(t, defaultRetryDelay, other.retryDelay())
}

func TestProviderWrapperRecordsUnderProviderName(t *testing.T) {
	ins := testInstrumentor(t)

	out, _, err := Anthropic(context.Background(), ins, "messages",
		func(context.Context) (string, error) { return "msg_1", nil })

	require.NoError(t, err)
	assert.Equal(t, "msg_1", out)
	assert.Equal(t, 1.0, ins.Registry.CounterValue("external_api_calls_total",
		metrics.Labels{"api": "anthropic", "operation": "messages", "status": "success"}))
}

func TestUsageRecorders(t *testing.T) {
	ins := testInstrumentor(t)
	ctx := context.Background()

	ins.RecordTokenUsage(ctx, "openai", "gpt-4o", 1200)
	ins.RecordTokenUsage(ctx, "openai", "gpt-4o", 300)
	ins.RecordCharacterUsage(ctx, "elevenlabs", "rachel", 450)
	ins.RecordTokensPurchased(ctx, "pro", 50000)
	ins.RecordRevenue(ctx, "stripe", 1999)
	ins.RecordSubscriptionEvent(ctx, "created")
	ins.RecordQueueDepth(12)
	ins.RecordQueueJob(ctx, "completed")
	ins.RecordActiveUsers(37)

	r := ins.Registry
	assert.Equal(t, 1500.0, r.CounterValue("tokens_used_total",
		metrics.Labels{"provider": "openai", "model": "gpt-4o", "unit": "tokens"}))
	assert.Equal(t, 450.0, r.CounterValue("tokens_used_total",
		metrics.Labels{"provider": "elevenlabs", "voice": "rachel", "unit": "characters"}))
	assert.Equal(t, 50000.0, r.CounterValue("tokens_purchased_total", metrics.Labels{"plan": "pro"}))
	assert.Equal(t, 1999.0, r.CounterValue("revenue_cents_total", metrics.Labels{"source": "stripe"}))
	assert.Equal(t, 1.0, r.CounterValue("subscriptions_total", metrics.Labels{"event": "created"}))
	assert.Equal(t, 12.0, r.GaugeValue("queue_size", nil))
	assert.Equal(t, 37.0, r.GaugeValue("active_users", nil))
	assert.Equal(t, 1.0, r.CounterValue("queue_jobs_processed_total", metrics.Labels{"outcome": "completed"}))
}
