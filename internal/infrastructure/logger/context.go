package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	requestIDKey  contextKey = "request_id"
	sourceFileKey contextKey = "source_file"
)

// WithContext returns a copy of ctx carrying l
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequestID tags ctx and its logger with a request id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return WithContext(ctx, FromContext(ctx).With(zap.String("request_id", requestID)))
}

// WithSourceFile tags ctx and its logger with the claim file being processed
func WithSourceFile(ctx context.Context, name string) context.Context {
	ctx = context.WithValue(ctx, sourceFileKey, name)
	return WithContext(ctx, FromContext(ctx).With(zap.String("source_file", name)))
}

// GetRequestID retrieves the request id from ctx
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetSourceFile retrieves the source file name from ctx
func GetSourceFile(ctx context.Context) string {
	name, _ := ctx.Value(sourceFileKey).(string)
	return name
}

// L returns the context logger with trace_id and span_id attached when ctx
// carries a valid span.
//
//	logger.L(ctx).Info("file committed", zap.Int("rows", n))
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
