package session

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/parvbhullar/media-gateway/runtime/audio"
	"github.com/parvbhullar/media-gateway/runtime/logger"
	metrics "github.com/parvbhullar/media-gateway/runtime/metrics/prometheus"
	"github.com/parvbhullar/media-gateway/runtime/stt"
	"github.com/parvbhullar/media-gateway/runtime/telemetry"
)

const stageSTT = "stt"

// TranscriptStreamAdapter opens STT streams for sessions and moves
// normalized frames into them. It holds no per-call state.
type TranscriptStreamAdapter struct {
	svc    stt.StreamingService
	cfg    stt.StreamConfig
	tracer trace.Tracer
}

// NewTranscriptStreamAdapter creates an adapter over svc. A nil tracer uses
// the global tracer provider.
func NewTranscriptStreamAdapter(svc stt.StreamingService, cfg stt.StreamConfig, tracer trace.Tracer) *TranscriptStreamAdapter {
	if tracer == nil {
		tracer = telemetry.Tracer(nil)
	}
	return &TranscriptStreamAdapter{svc: svc, cfg: cfg, tracer: tracer}
}

// Provider returns the STT provider name.
func (a *TranscriptStreamAdapter) Provider() string {
	return a.svc.Name()
}

// Open opens one STT stream.
func (a *TranscriptStreamAdapter) Open(ctx context.Context, sessionID string) (stt.Stream, error) {
	ctx, span := telemetry.StartStage(ctx, a.tracer, telemetry.SpanSTTOpen, sessionID, a.svc.Name())
	logger.ProviderCall(ctx, stageSTT, a.svc.Name())

	start := time.Now()
	stream, err := a.svc.OpenStream(ctx, a.cfg)
	metrics.RecordProviderCall(stageSTT, a.svc.Name(), time.Since(start).Seconds(), err)
	telemetry.EndSpan(span, err)
	return stream, err
}

// Push sends one frame into the stream. Frames pushed after EndInput are
// dropped by the stream.
func (a *TranscriptStreamAdapter) Push(stream stt.Stream, frame audio.Frame) error {
	if frame.SampleCount() == 0 {
		return nil
	}
	return stream.Push(frame.PCM())
}

// EndInput finalizes the stream's input.
func (a *TranscriptStreamAdapter) EndInput(stream stt.Stream) error {
	return stream.EndInput()
}
