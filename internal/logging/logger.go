package logging

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level orders verbosity: lower values are more severe and always pass the gate.
type Level int8

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	}
	return "info"
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "trace":
		return LevelTrace
	}
	return LevelInfo
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelTrace:
		return zerolog.TraceLevel
	}
	return zerolog.InfoLevel
}

var fieldNamesOnce sync.Once

// Options configures a Logger. Out/ErrOut default to stdout/stderr.
type Options struct {
	Level      Level
	Service    string
	Env        string
	Production bool
	Out        io.Writer
	ErrOut     io.Writer
}

// Logger emits one JSON line per call. error/warn go to ErrOut, everything
// else to Out. Child loggers share the sinks and extend the default context.
type Logger struct {
	level      Level
	service    string
	env        string
	production bool
	defaults   map[string]any
	out        zerolog.Logger
	errOut     zerolog.Logger
}

func New(opts Options) *Logger {
	fieldNamesOnce.Do(func() {
		zerolog.TimestampFieldName = "timestamp"
		zerolog.MessageFieldName = "message"
	})
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := opts.ErrOut
	if errOut == nil {
		errOut = os.Stderr
	}
	pid := os.Getpid()
	base := func(w io.Writer) zerolog.Logger {
		return zerolog.New(w).Level(zerolog.TraceLevel).With().
			Timestamp().
			Str("service", opts.Service).
			Str("env", opts.Env).
			Int("pid", pid).
			Logger()
	}
	return &Logger{
		level:      opts.Level,
		service:    opts.Service,
		env:        opts.Env,
		production: opts.Production,
		defaults:   map[string]any{},
		out:        base(out),
		errOut:     base(errOut),
	}
}

// Child returns a logger whose default context is the merge of the parent's
// and extra. The parent is not mutated.
func (l *Logger) Child(extra map[string]any) *Logger {
	c := *l
	c.defaults = mergeFields(l.defaults, extra)
	return &c
}

// Level returns the configured minimum verbosity.
func (l *Logger) Level() Level { return l.level }

// Log emits one entry when level passes the configured gate.
func (l *Logger) Log(ctx context.Context, level Level, msg string, fields map[string]any, err error) {
	if level > l.level {
		return
	}
	l.write(ctx, level, msg, fields, err, -1)
}

func (l *Logger) Error(ctx context.Context, msg string, fields map[string]any, err error) {
	l.Log(ctx, LevelError, msg, fields, err)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, LevelWarn, msg, fields, nil)
}

func (l *Logger) Info(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, LevelInfo, msg, fields, nil)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, LevelDebug, msg, fields, nil)
}

func (l *Logger) Trace(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, LevelTrace, msg, fields, nil)
}

func (l *Logger) write(ctx context.Context, level Level, msg string, fields map[string]any, err error, durationMs float64) {
	merged := mergeFields(l.defaults, fields)

	correlationID, _ := merged["correlationId"].(string)
	if correlationID != "" {
		delete(merged, "correlationId")
	} else {
		correlationID = CorrelationIDFrom(ctx)
	}

	if l.production {
		msg = Mask(msg)
	}

	sink := &l.out
	if level <= LevelWarn {
		sink = &l.errOut
	}
	ev := sink.WithLevel(level.zerolog())
	if correlationID != "" {
		ev = ev.Str("correlationId", correlationID)
	}
	if len(merged) > 0 {
		ev = ev.Interface("context", merged)
	}
	if err != nil {
		ev = ev.Dict("error", l.errorDict(err))
	}
	if durationMs >= 0 {
		ev = ev.Float64("durationMs", durationMs)
	}
	ev.Msg(msg)
}

func (l *Logger) errorDict(err error) *zerolog.Event {
	message := err.Error()
	if l.production {
		message = Mask(message)
	}
	d := zerolog.Dict().
		Str("name", fmt.Sprintf("%T", err)).
		Str("message", message)
	if !l.production {
		d = d.Str("stack", string(debug.Stack()))
	}
	if coded, ok := err.(interface{ Code() string }); ok {
		d = d.Str("code", coded.Code())
	}
	return d
}

// Timer measures one logical operation from StartTimer to End.
type Timer struct {
	logger *Logger
	op     string
	fields map[string]any
	start  time.Time
}

func (l *Logger) StartTimer(op string, fields map[string]any) *Timer {
	return &Timer{logger: l, op: op, fields: fields, start: time.Now()}
}

// End logs msg with the elapsed milliseconds and returns them. The elapsed
// value is returned even when the entry is filtered out by level.
func (t *Timer) End(ctx context.Context, msg string, level Level) float64 {
	elapsed := math.Round(float64(time.Since(t.start)) / float64(time.Millisecond))
	if msg == "" {
		msg = t.op + " completed"
	}
	if level <= t.logger.level {
		fields := mergeFields(t.fields, map[string]any{"operation": t.op})
		t.logger.write(ctx, level, msg, fields, nil, elapsed)
	}
	return elapsed
}

func mergeFields(base, extra map[string]any) map[string]any {
	if len(base) == 0 && len(extra) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
