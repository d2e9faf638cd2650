package correlation

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

type correlationKey struct{}

const (
	MetadataCorrelationID = "correlation_id"
	MetadataTraceID       = "trace_id"
	MetadataSpanID        = "span_id"
)

// ExtractCorrelationID fetches a correlation ID from the context if present.
func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

// ContextWithCorrelationID sets the correlation ID onto the context.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := ExtractCorrelationID(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return ContextWithCorrelationID(ctx, cid), cid
}

// Metadata captures the correlation and span identifiers of ctx so work
// deferred through the outbox can be stitched back to the originating request.
func Metadata(ctx context.Context) map[string]string {
	_, cid := EnsureCorrelationID(ctx)
	md := map[string]string{MetadataCorrelationID: cid}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		md[MetadataTraceID] = sc.TraceID().String()
		md[MetadataSpanID] = sc.SpanID().String()
	}
	return md
}

// ContextFromMetadata restores what Metadata captured.
func ContextFromMetadata(ctx context.Context, md map[string]string) context.Context {
	ctx = ContextWithRemoteSpan(ctx, md[MetadataTraceID], md[MetadataSpanID])
	return ContextWithCorrelationID(ctx, md[MetadataCorrelationID])
}

// ContextWithRemoteSpan seeds the context with a remote span if valid identifiers are provided.
func ContextWithRemoteSpan(ctx context.Context, traceIDHex, spanIDHex string) context.Context {
	if traceIDHex == "" || spanIDHex == "" {
		return ctx
	}

	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(spanIDHex)
	if err != nil {
		return ctx
	}

	parent := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled, Remote: true})
	return trace.ContextWithSpanContext(ctx, parent)
}
