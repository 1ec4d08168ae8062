package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds flow-scoped logging context for a single TCP flow
// being reassembled by the capture pipeline.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	DestPort  uint16    // Destination port identifying the flow
	SrcAddr   string    // Source IP address of the flow's traffic
	Region    string    // Active region when this context was created
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a flow identified by destPort.
func NewLogContext(destPort uint16) *LogContext {
	return &LogContext{
		DestPort:  destPort,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		DestPort:  lc.DestPort,
		SrcAddr:   lc.SrcAddr,
		Region:    lc.Region,
		StartTime: lc.StartTime,
	}
}

// WithSrcAddr returns a copy with the source address set
func (lc *LogContext) WithSrcAddr(addr string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SrcAddr = addr
	}
	return clone
}

// WithRegion returns a copy with the region set
func (lc *LogContext) WithRegion(region string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Region = region
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
