package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminahq/observe/internal/alerting"
	"github.com/luminahq/observe/internal/logging"
	"github.com/luminahq/observe/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type middlewareFixture struct {
	logger   *logging.Logger
	registry *metrics.Registry
	trackers *alerting.Trackers
}

func newFixture(t *testing.T) *middlewareFixture {
	t.Helper()
	registry := metrics.NewRegistry()
	registry.RegisterDefaults()
	return &middlewareFixture{
		logger:   logging.New(logging.Options{Level: logging.LevelError, Out: io.Discard, ErrOut: io.Discard}),
		registry: registry,
		trackers: alerting.NewTrackers(),
	}
}

func perform(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCorrelationIDEchoesInbound(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID())
	var seen string
	router.GET("/x", func(c *gin.Context) {
		seen = logging.CorrelationIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := perform(router, http.MethodGet, "/x", map[string]string{HeaderCorrelationID: "abc-123"})

	assert.Equal(t, "abc-123", w.Header().Get(HeaderCorrelationID))
	assert.Equal(t, "abc-123", seen, "handler sees the inbound id via context")
}

func TestCorrelationIDGeneratedWhenAbsent(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(router, http.MethodGet, "/x", nil)
	first := w.Header().Get(HeaderCorrelationID)
	require.NotEmpty(t, first)

	w = perform(router, http.MethodGet, "/x", nil)
	assert.NotEqual(t, first, w.Header().Get(HeaderCorrelationID), "fresh id per request")
}

func TestRequestLoggingMetrics(t *testing.T) {
	f := newFixture(t)
	router := gin.New()
	router.Use(CorrelationID(), RequestLogging(f.logger, f.registry, f.trackers, false))
	router.GET("/users/:id", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	perform(router, http.MethodGet, "/users/42", nil)
	perform(router, http.MethodGet, "/users/43", nil)
	perform(router, http.MethodGet, "/broken", nil)

	assert.Equal(t, 2.0, f.registry.CounterValue("http_requests_total",
		metrics.Labels{"method": "GET", "path": "/users/:id", "status": "2xx"}),
		"route template keeps cardinality bounded")
	assert.Equal(t, 1.0, f.registry.CounterValue("http_requests_total",
		metrics.Labels{"method": "GET", "path": "/broken", "status": "5xx"}))
	assert.Equal(t, 10.0, f.registry.CounterValue("http_response_size_bytes_total",
		metrics.Labels{"path": "/users/:id"}))
	assert.Equal(t, 0.0, f.registry.GaugeValue("active_connections", nil))
	assert.Equal(t, 3.0, f.trackers.Requests.Sum())
	assert.Equal(t, 1.0, f.trackers.Errors.Sum())
}

func TestSlowRequestRecorded(t *testing.T) {
	f := newFixture(t)
	router := gin.New()
	router.Use(SlowRequest(time.Millisecond, f.logger, f.registry, f.trackers))
	router.GET("/slow", func(c *gin.Context) {
		time.Sleep(10 * time.Millisecond)
		c.Status(http.StatusOK)
	})
	router.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(router, http.MethodGet, "/slow", nil)
	perform(router, http.MethodGet, "/fast", nil)

	assert.Equal(t, 1.0, f.registry.CounterValue("slow_requests_total", metrics.Labels{"bucket": "<3s"}))
	assert.Equal(t, 1.0, f.trackers.SlowRequests.Sum())
}

func TestRequestLoggingPanicReleasesGaugeAndCounts(t *testing.T) {
	f := newFixture(t)
	router := gin.New()
	router.Use(
		CorrelationID(),
		ErrorHandler(f.logger, f.registry, false),
		SlowRequest(time.Second, f.logger, f.registry, f.trackers),
		SecurityLogging(f.logger, f.registry),
		RequestLogging(f.logger, f.registry, f.trackers, false),
	)
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	for i := 0; i < 3; i++ {
		w := perform(router, http.MethodGet, "/panic", nil)
		require.Equal(t, http.StatusInternalServerError, w.Code)
	}

	assert.Equal(t, 0.0, f.registry.GaugeValue("active_connections", nil),
		"gauge must come back down after every panic")
	assert.Equal(t, 3.0, f.trackers.Requests.Sum())
	assert.Equal(t, 3.0, f.trackers.Errors.Sum(), "panics feed the error-rate window")
	assert.Equal(t, 3.0, f.registry.CounterValue("http_requests_total",
		metrics.Labels{"method": "GET", "path": "/panic", "status": "5xx"}),
		"panicked requests are counted exactly once")

	snap := f.registry.JSON()
	durations := snap.Metrics["http_request_duration_ms"].Values
	assert.NotEmpty(t, durations[`method="GET",path="/panic"`],
		"duration is still observed for panicked requests")
}

func TestSlowRequestRecordedOnPanic(t *testing.T) {
	f := newFixture(t)
	router := gin.New()
	router.Use(
		ErrorHandler(f.logger, f.registry, false),
		SlowRequest(time.Millisecond, f.logger, f.registry, f.trackers),
	)
	router.GET("/slowpanic", func(c *gin.Context) {
		time.Sleep(10 * time.Millisecond)
		panic("boom")
	})

	perform(router, http.MethodGet, "/slowpanic", nil)

	assert.Equal(t, 1.0, f.registry.CounterValue("slow_requests_total", metrics.Labels{"bucket": "<3s"}))
	assert.Equal(t, 1.0, f.trackers.SlowRequests.Sum())
}

func TestSecurityLoggingRecordedOnPanic(t *testing.T) {
	f := newFixture(t)
	router := gin.New()
	router.Use(
		CorrelationID(),
		ErrorHandler(f.logger, f.registry, false),
		SecurityLogging(f.logger, f.registry),
	)
	router.GET("/secret", func(c *gin.Context) {
		c.Status(http.StatusUnauthorized)
		panic("boom")
	})

	perform(router, http.MethodGet, "/secret", nil)

	assert.Equal(t, 1.0, f.registry.CounterValue("security_events_total",
		metrics.Labels{"event": "authentication_failed"}))
}

func TestSlowBuckets(t *testing.T) {
	assert.Equal(t, "<3s", slowBucket(2*time.Second))
	assert.Equal(t, "<5s", slowBucket(4*time.Second))
	assert.Equal(t, "<10s", slowBucket(9*time.Second))
	assert.Equal(t, "10s+", slowBucket(15*time.Second))
}

func TestSecurityLogging(t *testing.T) {
	f := newFixture(t)
	router := gin.New()
	router.Use(CorrelationID(), SecurityLogging(f.logger, f.registry))
	router.GET("/secret", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })
	router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	router.GET("/open", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(router, http.MethodGet, "/secret", nil)
	perform(router, http.MethodGet, "/admin", nil)
	perform(router, http.MethodGet, "/open", nil)

	assert.Equal(t, 1.0, f.registry.CounterValue("security_events_total",
		metrics.Labels{"event": "authentication_failed"}))
	assert.Equal(t, 1.0, f.registry.CounterValue("security_events_total",
		metrics.Labels{"event": "authorization_failed"}))
}
