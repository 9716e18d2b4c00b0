package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "aixbt-agent"

var (
	base     = slog.Default()
	debugOn  bool
	tracing  bool
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
)

// LogConfig selects level, format and sinks of the process logger.
type LogConfig struct {
	Level    string // DEBUG, INFO, WARN, ERROR
	Format   string // json or text
	Detailed bool   // source locations and debug records
	Tracing  bool   // export spans next to the log stream
	// Output defaults to stdout. The MCP stdio server must log to stderr.
	Output io.Writer
}

// InitWithConfig replaces the process logger and, when asked, starts span export.
func InitWithConfig(cfg LogConfig) error {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	level := parseLevel(cfg.Level)
	debugOn = cfg.Detailed || level == slog.LevelDebug

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.Detailed}
	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	}
	base = slog.New(h).With("service", serviceName)
	slog.SetDefault(base)

	tracing = false
	if cfg.Tracing {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			base.Warn("Span export unavailable, tracing disabled", "error", err)
			return nil
		}
		provider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		)
		otel.SetTracerProvider(provider)
		tracer = provider.Tracer(serviceName)
		tracing = true
	}
	return nil
}

// Shutdown flushes pending spans.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		s = "WARN"
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// activeSpan is the recording span of ctx, or nil when tracing is off.
func activeSpan(ctx context.Context) trace.Span {
	if !tracing {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

func emit(ctx context.Context, level slog.Level, msg string, args []any) {
	if span := activeSpan(ctx); span != nil {
		sc := span.SpanContext()
		args = append([]any{"trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String()}, args...)
	}
	base.Log(ctx, level, msg, args...)
}

// Debug is dropped unless the logger runs at DEBUG or detailed.
func Debug(ctx context.Context, msg string, args ...any) {
	if debugOn {
		emit(ctx, slog.LevelDebug, msg, args)
	}
}

func Info(ctx context.Context, msg string, args ...any) { emit(ctx, slog.LevelInfo, msg, args) }

func Warn(ctx context.Context, msg string, args ...any) { emit(ctx, slog.LevelWarn, msg, args) }

// ErrorWithErr logs err and marks the active span failed.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	if span := activeSpan(ctx); span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	emit(ctx, slog.LevelError, msg, append([]any{"error", err}, args...))
}

// Analysis is the INFO record of one generated project analysis.
func Analysis(ctx context.Context, ticker, summary string, fields ...any) {
	if span := activeSpan(ctx); span != nil {
		span.AddEvent("project_analysis", trace.WithAttributes(
			attribute.String("ticker", ticker),
			attribute.Int("summary_length", len(summary)),
		))
	}
	emit(ctx, slog.LevelInfo, "Generated project analysis",
		append([]any{"type", "ANALYSIS", "ticker", ticker, "summary", summary}, fields...))
}

// OperationTimer is a timed, optionally traced unit of work.
type OperationTimer struct {
	ctx    context.Context
	span   trace.Span
	start  time.Time
	fields []any
}

// StartOperation opens the operation; fields are key/value pairs repeated on its end record.
func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	var span trace.Span
	if tracing {
		ctx, span = tracer.Start(ctx, operation, trace.WithAttributes(toAttributes(fields)...))
	}
	ot := &OperationTimer{ctx: ctx, span: span, start: time.Now(), fields: append([]any{"operation", operation}, fields...)}
	Debug(ctx, "Operation started", ot.fields...)
	return ot
}

// Context carries the operation span.
func (ot *OperationTimer) Context() context.Context { return ot.ctx }

func (ot *OperationTimer) End(fields ...any) {
	ot.finish(nil, fields)
}

// EndWithError logs the failure at WARN; the caller decides whether it is an error.
func (ot *OperationTimer) EndWithError(err error, fields ...any) {
	ot.finish(err, fields)
}

func (ot *OperationTimer) finish(err error, extra []any) {
	elapsed := time.Since(ot.start).Milliseconds()
	if ot.span != nil {
		ot.span.SetAttributes(attribute.Int64("duration_ms", elapsed))
		ot.span.SetAttributes(toAttributes(extra)...)
		if err != nil {
			ot.span.RecordError(err)
			ot.span.SetStatus(codes.Error, err.Error())
		} else {
			ot.span.SetStatus(codes.Ok, "")
		}
		ot.span.End()
	}

	args := append(append([]any{}, ot.fields...), "duration_ms", elapsed)
	if err != nil {
		Warn(ot.ctx, "Operation failed", append(append(args, "error", err), extra...)...)
		return
	}
	Debug(ot.ctx, "Operation completed", append(args, extra...)...)
}

func toAttributes(fields []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case interface{ String() string }:
			attrs = append(attrs, attribute.String(key, v.String()))
		}
	}
	return attrs
}
