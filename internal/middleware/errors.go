package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/luminahq/observe/internal/logging"
	"github.com/luminahq/observe/internal/metrics"
)

// ErrorHandler is the terminal failure path: it recovers panics, drains
// gin's error list, records error telemetry, and renders a JSON error body
// when nothing has been written yet. Production responses scrub 5xx detail;
// the correlation id is always included so operators can find the logs.
func ErrorHandler(logger *logging.Logger, registry *metrics.Registry, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				handleFailure(c, logger, registry, production, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
		if len(c.Errors) > 0 {
			handleFailure(c, logger, registry, production, c.Errors.Last().Err)
		}
	}
}

func handleFailure(c *gin.Context, logger *logging.Logger, registry *metrics.Registry, production bool, err error) {
	ctx := c.Request.Context()
	var elapsed time.Duration
	if v, ok := c.Get(startTimeKey); ok {
		if start, ok := v.(time.Time); ok {
			elapsed = time.Since(start)
		}
	}

	status := failureStatus(c, err)
	logger.Error(ctx, "request failed", map[string]any{
		"type":       "http_request",
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"statusCode": status,
		"durationMs": elapsed.Milliseconds(),
	}, err)

	registry.IncCounter("errors_total", metrics.Labels{"source": "http"})
	registry.IncCounter("http_requests_total", metrics.Labels{
		"method": c.Request.Method,
		"path":   routePath(c),
		"status": statusClass(status),
	})

	if c.Writer.Written() {
		return
	}
	body := gin.H{
		"success":       false,
		"error":         errorMessage(status, err, production),
		"correlationId": logging.CorrelationIDFrom(ctx),
	}
	if !production {
		body["name"] = fmt.Sprintf("%T", err)
		body["stack"] = string(debug.Stack())
	}
	c.AbortWithStatusJSON(status, body)
}

func failureStatus(c *gin.Context, err error) int {
	if c.Writer.Written() && c.Writer.Status() >= 400 {
		return c.Writer.Status()
	}
	var coder interface{ StatusCode() int }
	if errors.As(err, &coder) && coder.StatusCode() >= 400 {
		return coder.StatusCode()
	}
	return http.StatusInternalServerError
}

func errorMessage(status int, err error, production bool) string {
	if production && status >= 500 {
		return "Internal server error"
	}
	return err.Error()
}
