package logger

import (
	"context"
	"log/slog"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context
type LogContext struct {
	RequestID string    // X-Request-Id / X-Vcap-Request-Id
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	ClientIP  string    // Client IP address (without port)
	Resource  string    // buildpacks, droplets, packages
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

// NewLogContext creates a new LogContext with the given request ID and client IP
func NewLogContext(requestID, clientIP string) *LogContext {
	return &LogContext{
		RequestID: requestID,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	cp := *lc
	return &cp
}

// WithResource returns a copy with the resource set
func (lc *LogContext) WithResource(resource string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Resource = resource
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

// contextHandler prepends LogContext fields to records logged with a
// context, so *Context logging calls pick up the request id.
type contextHandler struct {
	slog.Handler
}

func newContextHandler(h slog.Handler) *contextHandler {
	return &contextHandler{Handler: h}
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if lc := FromContext(ctx); lc != nil {
		attrs := make([]slog.Attr, 0, 5)
		if lc.RequestID != "" {
			attrs = append(attrs, slog.String(KeyRequestID, lc.RequestID))
		}
		if lc.TraceID != "" {
			attrs = append(attrs, slog.String(KeyTraceID, lc.TraceID))
		}
		if lc.SpanID != "" {
			attrs = append(attrs, slog.String(KeySpanID, lc.SpanID))
		}
		if lc.ClientIP != "" {
			attrs = append(attrs, slog.String(KeyClientIP, lc.ClientIP))
		}
		if lc.Resource != "" {
			attrs = append(attrs, slog.String(KeyResource, lc.Resource))
		}
		if len(attrs) > 0 {
			nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
			nr.AddAttrs(attrs...)
			r.Attrs(func(a slog.Attr) bool {
				nr.AddAttrs(a)
				return true
			})
			r = nr
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
