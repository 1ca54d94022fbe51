package logging

import (
	"context"
	"fmt"
	"time"
)

// The typed emitters below build the conventional context shapes consumed by
// dashboards and log search. The "type" field is the discriminator.

// HTTPRequest logs one completed request: 5xx at error, 4xx at warn, else info.
func (l *Logger) HTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration, extra map[string]any) {
	level := LevelInfo
	switch {
	case status >= 500:
		level = LevelError
	case status >= 400:
		level = LevelWarn
	}
	fields := mergeFields(extra, map[string]any{
		"type":       "http_request",
		"method":     method,
		"path":       path,
		"statusCode": status,
		"durationMs": durationMillis(duration),
	})
	l.Log(ctx, level, fmt.Sprintf("%s %s %d", method, path, status), fields, nil)
}

// ExternalAPI logs one outbound call outcome: failures at error, else info.
func (l *Logger) ExternalAPI(ctx context.Context, api, operation string, success bool, duration time.Duration, extra map[string]any) {
	level := LevelInfo
	msg := fmt.Sprintf("%s.%s succeeded", api, operation)
	if !success {
		level = LevelError
		msg = fmt.Sprintf("%s.%s failed", api, operation)
	}
	fields := mergeFields(extra, map[string]any{
		"type":       "external_api",
		"api":        api,
		"operation":  operation,
		"success":    success,
		"durationMs": durationMillis(duration),
	})
	l.Log(ctx, level, msg, fields, nil)
}

// DBQuery logs one query: failures at error, slow (>1s) at warn, else debug.
func (l *Logger) DBQuery(ctx context.Context, model, action string, duration time.Duration, err error) {
	level := LevelDebug
	switch {
	case err != nil:
		level = LevelError
	case duration > time.Second:
		level = LevelWarn
	}
	fields := map[string]any{
		"type":       "db_query",
		"model":      model,
		"action":     action,
		"durationMs": durationMillis(duration),
	}
	l.Log(ctx, level, fmt.Sprintf("db %s.%s", model, action), fields, err)
}

// BusinessEvent logs a domain event at info.
func (l *Logger) BusinessEvent(ctx context.Context, event string, extra map[string]any) {
	fields := mergeFields(extra, map[string]any{
		"type":  "business_event",
		"event": event,
	})
	l.Log(ctx, LevelInfo, event, fields, nil)
}

// SecurityEvent logs a security-relevant event at warn.
func (l *Logger) SecurityEvent(ctx context.Context, event, severity string, extra map[string]any) {
	fields := mergeFields(extra, map[string]any{
		"type":     "security_event",
		"event":    event,
		"severity": severity,
	})
	l.Log(ctx, LevelWarn, event, fields, nil)
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
