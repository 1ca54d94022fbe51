package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luminahq/observe/internal/alerting"
	"github.com/luminahq/observe/internal/logging"
	"github.com/luminahq/observe/internal/metrics"
)

// HeaderCorrelationID is echoed back on every response.
const HeaderCorrelationID = "X-Correlation-ID"

const startTimeKey = "obs.startTime"

// CorrelationID reads or generates the correlation id, echoes it on the
// response, and installs the request context for everything downstream.
// Must run first: all later stages and handlers rely on it.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(HeaderCorrelationID)
		if cid == "" {
			cid = logging.NewCorrelationID()
		}
		rc := &logging.RequestContext{
			CorrelationID: cid,
			RequestID:     uuid.NewString(),
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			UserAgent:     c.Request.UserAgent(),
		}
		c.Set(startTimeKey, time.Now())
		c.Writer.Header().Set(HeaderCorrelationID, cid)
		c.Request = c.Request.WithContext(logging.WithRequestContext(c.Request.Context(), rc))
		c.Next()
	}
}

// SlowRequest times the request independently and records requests slower
// than the threshold. The bucket labels are fixed regardless of the
// configured threshold.
func SlowRequest(threshold time.Duration, logger *logging.Logger, registry *metrics.Registry, trackers *alerting.Trackers) gin.HandlerFunc {
	if threshold <= 0 {
		threshold = 3 * time.Second
	}
	return func(c *gin.Context) {
		start := time.Now()
		// deferred so a panicking handler is still timed
		defer func() {
			elapsed := time.Since(start)
			if elapsed <= threshold {
				return
			}
			bucket := slowBucket(elapsed)
			logger.Warn(c.Request.Context(), "slow request", map[string]any{
				"type":       "slow_request",
				"method":     c.Request.Method,
				"path":       routePath(c),
				"durationMs": elapsed.Milliseconds(),
				"bucket":     bucket,
			})
			registry.IncCounter("slow_requests_total", metrics.Labels{"bucket": bucket})
			trackers.SlowRequests.Incr(1)
		}()
		c.Next()
	}
}

func slowBucket(d time.Duration) string {
	switch {
	case d < 3*time.Second:
		return "<3s"
	case d < 5*time.Second:
		return "<5s"
	case d < 10*time.Second:
		return "<10s"
	}
	return "10s+"
}

// SecurityLogging records auth failures after the response completes.
func SecurityLogging(logger *logging.Logger, registry *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			var event, severity string
			switch c.Writer.Status() {
			case 401:
				event, severity = "authentication_failed", "low"
			case 403:
				event, severity = "authorization_failed", "medium"
			default:
				return
			}
			logger.SecurityEvent(c.Request.Context(), event, severity, map[string]any{
				"method": c.Request.Method,
				"path":   routePath(c),
				"ip":     c.ClientIP(),
			})
			registry.IncCounter("security_events_total", metrics.Labels{"event": event})
		}()
		c.Next()
	}
}

// RequestLogging logs request start/completion and records the HTTP metrics.
// The client IP is omitted in production.
func RequestLogging(logger *logging.Logger, registry *metrics.Registry, trackers *alerting.Trackers, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()
		logger.Debug(ctx, "request started", map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		registry.IncGauge("active_connections", nil, 1)

		// deferred so panic unwind still releases the gauge and records the
		// request; a panic ends up as a 500 once the error handler renders it
		finished := false
		defer func() {
			registry.DecGauge("active_connections", nil, 1)
			elapsed := time.Since(start)
			status := c.Writer.Status()
			if !finished && status < 500 {
				status = 500
			}
			path := routePath(c)

			extra := map[string]any{"userAgent": c.Request.UserAgent()}
			if uid := c.GetString("userId"); uid != "" {
				extra["userId"] = uid
			}
			if !production {
				extra["ip"] = c.ClientIP()
			}
			logger.HTTPRequest(ctx, c.Request.Method, c.Request.URL.Path, status, elapsed, extra)

			if finished {
				// on the panic path the error handler counts the request
				registry.IncCounter("http_requests_total", metrics.Labels{
					"method": c.Request.Method,
					"path":   path,
					"status": statusClass(status),
				})
			}
			registry.ObserveHistogram("http_request_duration_ms",
				float64(elapsed)/float64(time.Millisecond),
				metrics.Labels{"method": c.Request.Method, "path": path})
			if size := c.Writer.Size(); size > 0 {
				registry.AddCounter("http_response_size_bytes_total",
					metrics.Labels{"path": path}, float64(size))
			}
			trackers.Requests.Incr(1)
			if status >= 500 {
				trackers.Errors.Incr(1)
			}
		}()

		c.Next()
		finished = true
	}
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

// routePath prefers the route template over the raw URL to keep label
// cardinality bounded.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
