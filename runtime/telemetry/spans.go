package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrSessionID = attribute.Key("mediagateway.session_id")
	AttrProvider  = attribute.Key("mediagateway.provider")
	AttrTextLen   = attribute.Key("mediagateway.text_length")
	AttrFrames    = attribute.Key("mediagateway.frames")
)

// Span names for pipeline stages.
const (
	SpanGenerate   = "session.generate"
	SpanSynthesize = "session.synthesize"
	SpanSTTOpen    = "stt.open"
)

// ExtractRemote returns ctx with any trace context carried by inbound
// request headers, so call spans join the caller's trace.
func ExtractRemote(ctx context.Context, header http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))
}

// StartStage starts a client span for one pipeline stage of a call.
func StartStage(
	ctx context.Context, tracer trace.Tracer, name, sessionID, provider string,
) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrSessionID.String(sessionID),
			AttrProvider.String(provider),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
