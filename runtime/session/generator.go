package session

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/parvbhullar/media-gateway/runtime/logger"
	metrics "github.com/parvbhullar/media-gateway/runtime/metrics/prometheus"
	"github.com/parvbhullar/media-gateway/runtime/providers"
	"github.com/parvbhullar/media-gateway/runtime/telemetry"
	"github.com/parvbhullar/media-gateway/runtime/types"
)

const stageLLM = "llm"

// FallbackReply is spoken when the model produced no text.
const FallbackReply = "Sorry, I had a problem generating a response."

// Reply is the outcome of one generation.
type Reply struct {
	// Text is the trimmed reply, or FallbackReply.
	Text string

	// Fallback is true when Text is FallbackReply because the stream
	// produced no text.
	Fallback bool

	// StreamErr is a mid-stream provider failure. Text then holds what
	// arrived before it.
	StreamErr error
}

// ResponseGenerator turns a conversation history into reply text with one
// streaming LLM call. It holds no per-call state.
type ResponseGenerator struct {
	provider providers.ChatProvider
	tracer   trace.Tracer
}

// NewResponseGenerator creates a generator over provider. A nil tracer uses
// the global tracer provider.
func NewResponseGenerator(provider providers.ChatProvider, tracer trace.Tracer) *ResponseGenerator {
	if tracer == nil {
		tracer = telemetry.Tracer(nil)
	}
	return &ResponseGenerator{provider: provider, tracer: tracer}
}

// Provider returns the LLM provider name.
func (g *ResponseGenerator) Provider() string {
	return g.provider.ID()
}

// Generate streams a completion for history and concatenates its fragments.
// It fails only when the stream cannot be opened; a stream that breaks
// midway yields the partial text with StreamErr set.
func (g *ResponseGenerator) Generate(ctx context.Context, sessionID string, history []types.Message) (Reply, error) {
	ctx, span := telemetry.StartStage(ctx, g.tracer, telemetry.SpanGenerate, sessionID, g.provider.ID())
	logger.ProviderCall(ctx, stageLLM, g.provider.ID(), "model", g.provider.Model(), "messages", len(history))
	start := time.Now()

	chunks, err := g.provider.ChatStream(ctx, history)
	if err != nil {
		metrics.RecordProviderCall(stageLLM, g.provider.ID(), time.Since(start).Seconds(), err)
		telemetry.EndSpan(span, err)
		return Reply{}, err
	}

	reply := aggregate(chunks)
	metrics.RecordProviderCall(stageLLM, g.provider.ID(), time.Since(start).Seconds(), reply.StreamErr)
	span.SetAttributes(telemetry.AttrTextLen.Int(len(reply.Text)))
	telemetry.EndSpan(span, reply.StreamErr)
	return reply, nil
}

// aggregate drains chunks and builds the reply.
func aggregate(chunks <-chan providers.StreamChunk) Reply {
	var b strings.Builder
	var streamErr error
	for chunk := range chunks {
		if chunk.Error != nil {
			streamErr = chunk.Error
			continue
		}
		switch chunk.Delta.Kind {
		case providers.DeltaContent, providers.DeltaOutputText:
			b.WriteString(chunk.Delta.Text)
		case providers.DeltaOther:
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return Reply{Text: FallbackReply, Fallback: true, StreamErr: streamErr}
	}
	return Reply{Text: text, StreamErr: streamErr}
}
