package observability

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/movievault/api/internal/platform/requestctx"
)

const (
	tracerName        = "github.com/movievault/api"
	traceparentHeader = "traceparent"
)

// Tracer returns the shared tracer used for request spans.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan begins a span and mirrors its identifiers into the request context.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, name, opts...)
	sc := span.SpanContext()
	if sc.IsValid() {
		ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{
			TraceID: sc.TraceID().String(),
			SpanID:  sc.SpanID().String(),
			Sampled: sc.IsSampled(),
		})
	}
	return ctx, span
}

// TraceInfoFromRequest parses the W3C traceparent header so logs can be
// correlated with upstream traces even when no SDK exporter is installed.
func TraceInfoFromRequest(r *http.Request) (requestctx.TraceInfo, bool) {
	if r == nil {
		return requestctx.TraceInfo{}, false
	}
	header := strings.TrimSpace(r.Header.Get(traceparentHeader))
	if header == "" {
		return requestctx.TraceInfo{}, false
	}

	// traceparent: version "-" trace-id "-" span-id "-" flags
	parts := strings.Split(header, "-")
	if len(parts) != 4 {
		return requestctx.TraceInfo{}, false
	}
	traceID := strings.ToLower(parts[1])
	spanID := strings.ToLower(parts[2])
	if len(traceID) != 32 || !isHex(traceID) || traceID == strings.Repeat("0", 32) {
		return requestctx.TraceInfo{}, false
	}
	if len(spanID) != 16 || !isHex(spanID) || spanID == strings.Repeat("0", 16) {
		return requestctx.TraceInfo{}, false
	}

	sampled := false
	if len(parts[3]) == 2 && isHex(strings.ToLower(parts[3])) {
		sampled = strings.HasSuffix(parts[3], "1")
	}

	return requestctx.TraceInfo{TraceID: traceID, SpanID: spanID, Sampled: sampled}, true
}

func isHex(value string) bool {
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return value != ""
}
