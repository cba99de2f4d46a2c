package tracing

import (
	"context"
	"time"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type ctxKey struct{}

// request is what the HTTP layer stores for one inbound request.
type request struct {
	id    string
	start time.Time
}

// RequestInfo is the correlation data logged with every request. Trace and
// span ids come from the active span, if any.
type RequestInfo struct {
	RequestID string    `json:"request_id"`
	TraceID   string    `json:"trace_id"`
	SpanID    string    `json:"span_id"`
	StartTime time.Time `json:"start_time"`
}

// GenerateRequestID returns "req_" followed by a random UUID.
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

func fromContext(ctx context.Context) request {
	r, _ := ctx.Value(ctxKey{}).(request)
	return r
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	r := fromContext(ctx)
	r.id = requestID
	return context.WithValue(ctx, ctxKey{}, r)
}

func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	r := fromContext(ctx)
	r.start = startTime
	return context.WithValue(ctx, ctxKey{}, r)
}

func GetRequestID(ctx context.Context) string {
	return fromContext(ctx).id
}

func GetTraceID(ctx context.Context) string {
	if sc := oteltrace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func GetSpanID(ctx context.Context) string {
	if sc := oteltrace.SpanContextFromContext(ctx); sc.HasSpanID() {
		return sc.SpanID().String()
	}
	return ""
}

func GetRequestInfo(ctx context.Context) *RequestInfo {
	r := fromContext(ctx)
	return &RequestInfo{
		RequestID: r.id,
		TraceID:   GetTraceID(ctx),
		SpanID:    GetSpanID(ctx),
		StartTime: r.start,
	}
}

// Duration is the time elapsed since the request started, or 0.
func Duration(ctx context.Context) time.Duration {
	start := fromContext(ctx).start
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
