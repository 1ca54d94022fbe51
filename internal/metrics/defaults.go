package metrics

// Bucket sets are tuned per family: HTTP handlers span 5ms-10s, DB queries
// 1ms-2.5s, external API calls 50ms-30s. All bounds are milliseconds.
var (
	HTTPBuckets     = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	DBBuckets       = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}
	ExternalBuckets = []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}
)

// RegisterDefaults registers the fixed metric families every deployment
// carries. Safe to call more than once.
func (r *Registry) RegisterDefaults() {
	r.RegisterCounter("http_requests_total", "Total HTTP requests by method, path and status class.")
	r.RegisterHistogram("http_request_duration_ms", "HTTP request duration in milliseconds.", HTTPBuckets)
	r.RegisterCounter("http_response_size_bytes_total", "Total response bytes written.")
	r.RegisterCounter("errors_total", "Total errors by source.")
	r.RegisterCounter("slow_requests_total", "Requests slower than the configured threshold, by bucket.")
	r.RegisterCounter("security_events_total", "Security events by type.")
	r.RegisterCounter("db_queries_total", "Database queries by model, action and outcome.")
	r.RegisterHistogram("db_query_duration_ms", "Database query duration in milliseconds.", DBBuckets)
	r.RegisterCounter("external_api_calls_total", "Outbound API calls by api, operation and status.")
	r.RegisterHistogram("external_api_duration_ms", "Outbound API call duration in milliseconds.", ExternalBuckets)
	r.RegisterCounter("tokens_used_total", "AI tokens consumed by provider and model.")
	r.RegisterCounter("tokens_purchased_total", "Tokens purchased by plan.")
	r.RegisterCounter("subscriptions_total", "Subscription lifecycle events by kind.")
	r.RegisterCounter("revenue_cents_total", "Recognized revenue in cents.")
	r.RegisterGauge("active_connections", "In-flight HTTP connections.")
	r.RegisterGauge("active_users", "Currently active users.")
	r.RegisterGauge("queue_size", "Background queue depth.")
	r.RegisterCounter("queue_jobs_processed_total", "Background jobs processed by outcome.")
	r.RegisterCounter("alerts_fired_total", "Alerts fired by severity and rule.")
	r.RegisterCounter("alerts_resolved_total", "Alerts resolved by severity and rule.")
}
