package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// SKUKey is the context key for the SKU a computation runs against
	SKUKey contextKey = "sku"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithSKU adds the SKU to context and returns an enriched logger
func WithSKU(ctx context.Context, logger *zap.Logger, sku string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, SKUKey, sku)
	enriched := logger.With(zap.String("sku", sku))
	return WithContext(ctx, enriched), enriched
}

// GetSKU retrieves the SKU from context
func GetSKU(ctx context.Context) string {
	if sku, ok := ctx.Value(SKUKey).(string); ok {
		return sku
	}
	return ""
}

// WithTraceContext adds trace_id and span_id to the logger from the context's
// span. If no valid span exists, returns the original logger unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return logger
	}
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
