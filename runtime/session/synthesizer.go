package session

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/parvbhullar/media-gateway/runtime/logger"
	metrics "github.com/parvbhullar/media-gateway/runtime/metrics/prometheus"
	"github.com/parvbhullar/media-gateway/runtime/telemetry"
	"github.com/parvbhullar/media-gateway/runtime/tts"
)

const stageTTS = "tts"

// FrameSink receives synthesized audio frames as they arrive.
type FrameSink interface {
	SendAudio(pcm []byte) error
}

// Synthesis is the outcome of one synthesize call.
type Synthesis struct {
	// Sent is the number of frames the sink accepted.
	Sent int

	// Dropped is the number of frames the sink refused.
	Dropped int
}

// SpeechSynthesizer streams reply audio to a sink with one TTS call per
// reply. It holds no per-call state.
type SpeechSynthesizer struct {
	svc    tts.StreamingService
	cfg    tts.StreamConfig
	tracer trace.Tracer
}

// NewSpeechSynthesizer creates a synthesizer over svc. A nil tracer uses the
// global tracer provider.
func NewSpeechSynthesizer(svc tts.StreamingService, cfg tts.StreamConfig, tracer trace.Tracer) *SpeechSynthesizer {
	if tracer == nil {
		tracer = telemetry.Tracer(nil)
	}
	return &SpeechSynthesizer{svc: svc, cfg: cfg, tracer: tracer}
}

// Provider returns the TTS provider name.
func (s *SpeechSynthesizer) Provider() string {
	return s.svc.Name()
}

// Synthesize speaks text into sink. Each audio event is forwarded the
// moment it arrives. A frame the sink refuses is dropped with a warning and
// synthesis continues. Synthesize returns once the provider signals the end
// of audio, or with an error if the stream could not be opened or failed.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, sessionID, text string, sink FrameSink) (Synthesis, error) {
	ctx, span := telemetry.StartStage(ctx, s.tracer, telemetry.SpanSynthesize, sessionID, s.svc.Name())
	span.SetAttributes(telemetry.AttrTextLen.Int(len(text)))
	logger.ProviderCall(ctx, stageTTS, s.svc.Name(), "chars", len(text))
	start := time.Now()

	result, err := s.run(ctx, text, sink)

	metrics.RecordProviderCall(stageTTS, s.svc.Name(), time.Since(start).Seconds(), err)
	span.SetAttributes(telemetry.AttrFrames.Int(result.Sent))
	telemetry.EndSpan(span, err)
	return result, err
}

func (s *SpeechSynthesizer) run(ctx context.Context, text string, sink FrameSink) (Synthesis, error) {
	var result Synthesis

	stream, err := s.svc.OpenStream(ctx, s.cfg)
	if err != nil {
		return result, err
	}
	defer stream.Close()

	if err := stream.PushText(text); err != nil {
		return result, err
	}
	if err := stream.EndInput(); err != nil {
		return result, err
	}

	for ev := range stream.Events() {
		switch {
		case ev.Err != nil:
			return result, ev.Err
		case ev.Final:
			return result, nil
		case len(ev.Audio) > 0:
			if err := sink.SendAudio(ev.Audio); err != nil {
				result.Dropped++
				s.dropped(ctx, err)
				continue
			}
			result.Sent++
			metrics.RecordTTSFrameSent()
		}
	}
	return result, ErrUnexpectedEnd
}

func (s *SpeechSynthesizer) dropped(ctx context.Context, err error) {
	if errors.Is(err, ErrSessionClosed) {
		metrics.RecordFrameDropped(metrics.DropClosed)
		return
	}
	metrics.RecordFrameDropped(metrics.DropTransportClosed)
	logger.WarnContext(ctx, "dropping synthesized frame", "error", err)
}
