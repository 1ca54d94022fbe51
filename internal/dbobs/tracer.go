package dbobs

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type modelKey struct{}

// WithModel tags ctx with the logical model name for queries executed under
// it. The tracer falls back to "unknown" without it.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, modelKey{}, model)
}

func modelFrom(ctx context.Context) string {
	if m, ok := ctx.Value(modelKey{}).(string); ok && m != "" {
		return m
	}
	return "unknown"
}

type traceKey struct{}

type traceData struct {
	start time.Time
	sql   string
}

// Tracer taps the raw pgx query stream, independent of the Observe wrapper.
// Plug it into pgxpool via Config.ConnConfig.Tracer. Query text and args are
// logged at trace only when logAll is set, so parameter PII never leaks by
// default.
type Tracer struct {
	Ins    *Instrumentor
	LogAll bool
}

func (t *Tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if t.LogAll && t.Ins != nil && t.Ins.Logger != nil {
		t.Ins.Logger.Trace(ctx, "executing query", map[string]any{
			"type": "db_query_raw",
			"sql":  data.SQL,
			"args": data.Args,
		})
	}
	return context.WithValue(ctx, traceKey{}, &traceData{start: time.Now(), sql: data.SQL})
}

func (t *Tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	td, ok := ctx.Value(traceKey{}).(*traceData)
	if !ok || t.Ins == nil {
		return
	}
	t.Ins.record(ctx, modelFrom(ctx), sqlAction(td.sql), time.Since(td.start), data.Err)
}

// sqlAction derives the action identifier from the leading SQL verb.
func sqlAction(sql string) string {
	fields := strings.Fields(strings.TrimSpace(sql))
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
